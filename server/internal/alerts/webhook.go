package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

// payloadFunc renders an alert as the JSON body for one webhook type.
type payloadFunc func(a *Alert) any

var payloads = map[string]payloadFunc{
	"slack": slackPayload,
	"teams": teamsPayload,
	"http":  func(a *Alert) any { return map[string]any{"alert": a} },
}

// deliver posts a to every configured webhook. Failures are logged and never
// reach the caller.
func (e *Engine) deliver(a *Alert) {
	e.mu.Lock()
	targets := e.webhooks
	e.mu.Unlock()

	for _, wh := range targets {
		url := wh.URL()
		if url == "" {
			continue
		}
		render, ok := payloads[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		body, err := json.Marshal(render(a))
		if err == nil {
			err = e.post(url, body)
		}
		if err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type, "rule", a.RuleName, "source", a.SourceID, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered",
			"type", wh.Type, "rule", a.RuleName, "source", a.SourceID, "state", a.State)
	}
}

// headline is the one-line summary shared by chat payloads, e.g.
// "plant-a: critical_devices firing, 4 of 120 devices critical, lowest RUL 3.0 days".
func headline(a *Alert) string {
	b := a.Batch
	if b.Devices == 0 {
		return fmt.Sprintf("%s: %s %s, no valid predictions", a.SourceID, a.RuleName, a.State)
	}
	return fmt.Sprintf("%s: %s %s, %d of %d devices critical, lowest RUL %.1f days",
		a.SourceID, a.RuleName, a.State, b.Critical, b.Devices, b.MinRULDays)
}

// batchFacts lists the batch context as name/value pairs in display order.
func batchFacts(a *Alert) [][2]string {
	b := a.Batch
	facts := [][2]string{
		{"Source", a.SourceID},
		{"Devices", strconv.Itoa(b.Devices)},
		{"Critical", strconv.Itoa(b.Critical)},
		{"Attention", strconv.Itoa(b.Attention)},
		{"At risk", fmt.Sprintf("%.0f%%", b.AtRiskPct)},
	}
	if b.Devices > 0 {
		facts = append(facts, [2]string{"Lowest RUL", fmt.Sprintf("%.1f days", b.MinRULDays)})
	}
	if b.Rejected > 0 {
		facts = append(facts, [2]string{"Rejected records", strconv.Itoa(b.Rejected)})
	}
	return facts
}

// slackPayload uses a legacy attachment so the severity colour shows as the
// message bar.
func slackPayload(a *Alert) any {
	fields := make([]map[string]any, 0, 8)
	for _, f := range batchFacts(a) {
		fields = append(fields, map[string]any{"title": f[0], "value": f[1], "short": true})
	}
	return map[string]any{
		"text": fmt.Sprintf("%s %s", severityLabel(a.Severity, a.State), headline(a)),
		"attachments": []map[string]any{{
			"color":    "#" + severityColor(a.Severity, a.State),
			"fallback": a.Message,
			"text":     a.Message,
			"fields":   fields,
		}},
	}
}

func teamsPayload(a *Alert) any {
	facts := make([]map[string]string, 0, 8)
	for _, f := range batchFacts(a) {
		facts = append(facts, map[string]string{"name": f[0], "value": f[1]})
	}
	return map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(a.Severity, a.State),
		"summary":    headline(a),
		"title":      fmt.Sprintf("%s %s on %s", severityLabel(a.Severity, a.State), a.RuleName, a.SourceID),
		"text":       a.Message,
		"sections":   []map[string]any{{"facts": facts}},
	}
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// severityLabel tags chat messages; a resolved alert is always [RESOLVED].
func severityLabel(severity, state string) string {
	if state == "resolved" {
		return "[RESOLVED]"
	}
	switch severity {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

// severityColor matches the dashboard palette; resolved alerts turn green.
func severityColor(severity, state string) string {
	if state == "resolved" {
		return "10B981"
	}
	switch severity {
	case "critical":
		return "EF4444"
	case "warning":
		return "F59E0B"
	default:
		return "3B82F6"
	}
}
