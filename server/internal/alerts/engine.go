package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rulboard/rulboard/server/internal/compute"
	"github.com/rulboard/rulboard/server/internal/config"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	SourceID   string     `json:"source_id"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"

	// Batch describes the batch that fired the alert, or the batch that
	// resolved it once State is "resolved".
	Batch BatchContext `json:"batch"`
}

// BatchContext is the slice of a batch summary carried by alert notifications.
type BatchContext struct {
	Devices    int     `json:"devices"`
	Critical   int     `json:"critical"`
	Attention  int     `json:"attention"`
	AtRiskPct  float64 `json:"at_risk_pct"`
	MinRULDays float64 `json:"min_rul_days"`
	Rejected   int     `json:"rejected"`
}

func batchContext(sum compute.Summary) BatchContext {
	return BatchContext{
		Devices:    sum.Total,
		Critical:   sum.PriorityCount(compute.PriorityCritical),
		Attention:  sum.PriorityCount(compute.PriorityAttention),
		AtRiskPct:  sum.AtRiskPct(),
		MinRULDays: sum.MinRULDays,
		Rejected:   sum.Rejected,
	}
}

// Engine evaluates alert rules against batch summaries and delivers webhook
// notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []config.AlertRule
	webhooks []config.WebhookConfig
	active   map[string]*Alert    // key: "ruleName:sourceID"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts
	client   *http.Client
	now      func() time.Time
}

// New creates an Engine from the server alert configuration.
// An Engine with empty rules is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	return &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// Reload replaces the rules and webhooks. Active alerts whose rule no longer
// exists are dropped without a resolve notification.
func (e *Engine) Reload(cfg config.AlertsConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = cfg.Rules
	e.webhooks = cfg.Webhooks

	names := make(map[string]struct{}, len(cfg.Rules))
	for _, r := range cfg.Rules {
		names[r.Name] = struct{}{}
	}
	for key, a := range e.active {
		if _, ok := names[a.RuleName]; !ok {
			delete(e.active, key)
		}
	}
}

// Evaluate tests all configured rules against the summary of sourceID's
// latest batch. Alerts that fire are stored and webhook delivery is triggered
// asynchronously. Alerts that were firing but whose condition is now false
// are resolved.
func (e *Engine) Evaluate(sourceID string, sum compute.Summary) {
	e.mu.Lock()
	rules := e.rules
	e.mu.Unlock()
	if len(rules) == 0 {
		return
	}

	now := e.now()
	for _, rule := range rules {
		key := rule.Name + ":" + sourceID
		fires, value := evalCondition(rule.Condition, sum)

		if fires {
			if a := e.fire(rule, key, sourceID, value, sum, now); a != nil {
				slog.Warn("alert fired",
					"rule", rule.Name,
					"source", sourceID,
					"value", value,
					"severity", a.Severity,
				)
				go e.deliver(a)
			}
			continue
		}
		if a := e.resolve(key, sum, now); a != nil {
			slog.Info("alert resolved", "rule", rule.Name, "source", sourceID)
			go e.deliver(a)
		}
	}
}

// fire records a firing alert unless the rule is cooling down. It returns a
// copy of the new alert, or nil when suppressed.
func (e *Engine) fire(rule config.AlertRule, key, sourceID string, value float64, sum compute.Summary, now time.Time) *Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cooldown := rule.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if now.Sub(e.lastFire[key]) <= cooldown {
		return nil
	}
	sev := rule.Severity
	if sev == "" {
		sev = "warning"
	}
	a := &Alert{
		ID:       uuid.NewString(),
		RuleName: rule.Name,
		SourceID: sourceID,
		Severity: sev,
		Value:    value,
		Message: fmt.Sprintf("[%s] %s fired on %s: %s = %.2f",
			sev, rule.Name, sourceID, rule.Condition, value),
		FiredAt: now,
		State:   "firing",
		Batch:   batchContext(sum),
	}
	e.active[key] = a
	e.lastFire[key] = now
	cp := *a
	return &cp
}

// resolve moves a firing alert to history. It returns a copy of the resolved
// alert, or nil when nothing was firing.
func (e *Engine) resolve(key string, sum compute.Summary, now time.Time) *Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.active[key]
	if !ok || a.State != "firing" {
		return nil
	}
	resolved := now
	a.State = "resolved"
	a.ResolvedAt = &resolved
	a.Batch = batchContext(sum)
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	cp := *a
	return &cp
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// FiringCount returns the number of currently firing alerts.
func (e *Engine) FiringCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}
