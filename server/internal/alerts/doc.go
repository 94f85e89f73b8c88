// Package alerts implements the rule evaluation engine and webhook delivery
// for rulboard alerting. Rules are evaluated against the summary of each
// newly received prediction batch; webhooks are delivered to Teams, Slack or
// generic HTTP targets.
package alerts
