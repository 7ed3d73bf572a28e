// Package alerthook implements the post-ingest alerting supplement carried
// over from original_source/backend/app/services/alerts.py: after a run
// finalizes, its point metrics are checked against a set of threshold rules
// and a webhook notification is sent for any that fire. The distilled spec
// does not name this feature; it is not excluded by any Non-goal, so it is
// supplemented here in the teacher's idiom (a small capability interface
// rather than a notification class hierarchy).
package alerthook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/synopticspread/core/internal/models"
	"github.com/synopticspread/core/internal/obsmetrics"
)

// Comparison is the closed set of threshold comparisons a Rule can use.
type Comparison string

const (
	GreaterThan Comparison = "gt"
	LessThan    Comparison = "lt"
)

// Metric names which field of a PointMetric a Rule evaluates.
type Metric string

const (
	MetricSpread Metric = "spread"
	MetricRMSE   Metric = "rmse"
	MetricBias   Metric = "bias"
)

// Rule is one threshold alert definition, the Go counterpart of
// original_source's AlertRule row.
type Rule struct {
	Variable   models.Variable
	Metric     Metric
	Threshold  float64
	Comparison Comparison
	// Point restricts the rule to metrics within the spec §6 0.5-degree
	// proximity window of (Lat, Lon); a rule with Point == nil matches
	// every point.
	Point *models.MonitorPoint
}

func (r Rule) value(m models.PointMetric) float64 {
	switch r.Metric {
	case MetricRMSE:
		return m.RMSE
	case MetricBias:
		return m.Bias
	default:
		return m.Spread
	}
}

func (r Rule) exceeded(value float64) bool {
	switch r.Comparison {
	case GreaterThan:
		return value > r.Threshold
	case LessThan:
		return value < r.Threshold
	default:
		return false
	}
}

func (r Rule) matchesPoint(lat, lon float64) bool {
	if r.Point == nil {
		return true
	}
	const window = 0.5
	return abs(r.Point.Lat-lat) <= window && abs(r.Point.Lon-lon) <= window
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Event is one triggered rule against one metric row.
type Event struct {
	Variable  models.Variable
	Value     float64
	Lat       float64
	Lon       float64
	LeadHour  int
	Label     string
}

// CheckAlerts evaluates every rule against the metrics from one finalized
// run's evaluation and returns the events that fired.
func CheckAlerts(rules []Rule, metrics []models.PointMetric) []Event {
	var triggered []Event
	for _, m := range metrics {
		for _, r := range rules {
			if r.Variable != m.Variable {
				continue
			}
			if !r.matchesPoint(m.Lat, m.Lon) {
				continue
			}
			value := r.value(m)
			if !r.exceeded(value) {
				continue
			}
			label := ""
			if r.Point != nil {
				label = r.Point.Label
			}
			triggered = append(triggered, Event{
				Variable: m.Variable,
				Value:    value,
				Lat:      m.Lat,
				Lon:      m.Lon,
				LeadHour: m.LeadHour,
				Label:    label,
			})
		}
	}
	return triggered
}

// Hook is the capability the orchestrator calls once per successfully
// finalized run, with the run and the point metrics just inserted.
type Hook interface {
	Notify(ctx context.Context, run models.ModelRun, metrics []models.PointMetric) error
}

// WebhookHook evaluates a fixed set of threshold rules against a run's
// metrics and posts a JSON payload to a configured URL for anything that
// fires, mirroring original_source's check_alerts + _send_webhook: failures
// are logged, never propagated, since alerting must not fail an otherwise
// successful run.
type WebhookHook struct {
	URL     string
	Rules   []Rule
	Client  *http.Client
	Logger  *slog.Logger
	Metrics *obsmetrics.Metrics
}

func NewWebhookHook(url string, rules []Rule, timeout time.Duration, logger *slog.Logger) *WebhookHook {
	return &WebhookHook{
		URL:    url,
		Rules:  rules,
		Client: &http.Client{Timeout: timeout},
		Logger: logger,
	}
}

type webhookPayload struct {
	Text   string        `json:"text"`
	Alerts []webhookItem `json:"alerts"`
}

type webhookItem struct {
	Variable string  `json:"variable"`
	Value    float64 `json:"value"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Label    string  `json:"location,omitempty"`
	LeadHour int     `json:"lead_hour"`
}

func (h *WebhookHook) Notify(ctx context.Context, run models.ModelRun, metrics []models.PointMetric) error {
	events := CheckAlerts(h.Rules, metrics)
	if h.URL == "" || len(events) == 0 {
		h.incAlertsSent("skipped")
		return nil
	}

	payload := webhookPayload{
		Text: fmt.Sprintf("synopticspread: %d alert(s) triggered for %s %s", len(events), run.ModelName, run.InitTime.Format(time.RFC3339)),
	}
	for _, e := range events {
		payload.Alerts = append(payload.Alerts, webhookItem{
			Variable: e.Variable.String(),
			Value:    e.Value,
			Lat:      e.Lat,
			Lon:      e.Lon,
			Label:    e.Label,
			LeadHour: e.LeadHour,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		h.Logger.Warn("alert webhook payload marshal failed", "error", err)
		h.incAlertsSent("error")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		h.Logger.Warn("alert webhook request build failed", "error", err)
		h.incAlertsSent("error")
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		h.Logger.Warn("alert webhook send failed", "error", err)
		h.incAlertsSent("error")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		h.Logger.Warn("alert webhook returned non-2xx", "status", resp.StatusCode)
		h.incAlertsSent("error")
		return nil
	}

	h.incAlertsSent("sent")
	return nil
}

func (h *WebhookHook) incAlertsSent(outcome string) {
	if h.Metrics != nil {
		h.Metrics.AlertsSent.WithLabelValues(outcome).Inc()
	}
}
