package alerthook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/synopticspread/core/internal/models"
)

func metric(variable models.Variable, lat, lon float64, rmse, bias, spread float64) models.PointMetric {
	return models.PointMetric{
		Variable: variable,
		Lat:      lat,
		Lon:      lon,
		LeadHour: 6,
		RMSE:     rmse,
		Bias:     bias,
		Spread:   spread,
	}
}

func TestCheckAlertsSpreadThresholdTriggers(t *testing.T) {
	rules := []Rule{
		{Variable: models.WindSpeed, Metric: MetricSpread, Threshold: 5, Comparison: GreaterThan},
	}
	metrics := []models.PointMetric{
		metric(models.WindSpeed, 40.7, -74.0, 1, 0.5, 6.2),
	}

	events := CheckAlerts(rules, metrics)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Value != 6.2 {
		t.Errorf("Value = %v, want 6.2", events[0].Value)
	}
}

func TestCheckAlertsBelowThresholdDoesNotTrigger(t *testing.T) {
	rules := []Rule{
		{Variable: models.WindSpeed, Metric: MetricSpread, Threshold: 5, Comparison: GreaterThan},
	}
	metrics := []models.PointMetric{
		metric(models.WindSpeed, 40.7, -74.0, 1, 0.5, 2.0),
	}

	if events := CheckAlerts(rules, metrics); len(events) != 0 {
		t.Fatalf("got %d events, want 0", len(events))
	}
}

func TestCheckAlertsLessThanComparison(t *testing.T) {
	rules := []Rule{
		{Variable: models.MSLP, Metric: MetricRMSE, Threshold: 50, Comparison: LessThan},
	}
	metrics := []models.PointMetric{
		metric(models.MSLP, 41.85, -87.65, 30, 0, 0),
	}

	if events := CheckAlerts(rules, metrics); len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
}

func TestCheckAlertsVariableMismatchSkipped(t *testing.T) {
	rules := []Rule{
		{Variable: models.Precip, Metric: MetricSpread, Threshold: 1, Comparison: GreaterThan},
	}
	metrics := []models.PointMetric{
		metric(models.WindSpeed, 40.7, -74.0, 1, 0.5, 10),
	}

	if events := CheckAlerts(rules, metrics); len(events) != 0 {
		t.Fatalf("got %d events, want 0", len(events))
	}
}

func TestCheckAlertsProximityScoping(t *testing.T) {
	nyc := &models.MonitorPoint{Lat: 40.7, Lon: -74.0, Label: "New York City"}
	rules := []Rule{
		{Variable: models.Precip, Metric: MetricSpread, Threshold: 1, Comparison: GreaterThan, Point: nyc},
	}
	metrics := []models.PointMetric{
		metric(models.Precip, 40.7, -74.0, 0, 0, 5),  // inside window
		metric(models.Precip, 55.0, 10.0, 0, 0, 5),   // far away, should be skipped
	}

	events := CheckAlerts(rules, metrics)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Lat != 40.7 {
		t.Errorf("Lat = %v, want 40.7", events[0].Lat)
	}
}

func TestWebhookHookNotifySendsExpectedPayload(t *testing.T) {
	var received webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rules := []Rule{
		{Variable: models.WindSpeed, Metric: MetricSpread, Threshold: 5, Comparison: GreaterThan},
	}
	hook := NewWebhookHook(srv.URL, rules, 5*time.Second, slog.Default())
	run := models.ModelRun{ID: uuid.New(), ModelName: "GFS", InitTime: time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)}
	metrics := []models.PointMetric{
		metric(models.WindSpeed, 40.7, -74.0, 1, 0.5, 6.2),
	}

	if err := hook.Notify(context.Background(), run, metrics); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(received.Alerts) != 1 {
		t.Fatalf("got %d alerts in payload, want 1", len(received.Alerts))
	}
	if received.Alerts[0].Variable != "wind_speed" {
		t.Errorf("Variable = %q, want wind_speed", received.Alerts[0].Variable)
	}
}

func TestWebhookHookNotifyNoopWithoutURL(t *testing.T) {
	rules := []Rule{{Variable: models.Precip, Metric: MetricSpread, Threshold: 0, Comparison: GreaterThan}}
	hook := NewWebhookHook("", rules, 5*time.Second, slog.Default())
	run := models.ModelRun{ID: uuid.New(), ModelName: "GFS", InitTime: time.Now()}

	err := hook.Notify(context.Background(), run, []models.PointMetric{metric(models.Precip, 0, 0, 0, 0, 1)})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
}

func TestWebhookHookNotifySwallowsUnreachableServer(t *testing.T) {
	rules := []Rule{{Variable: models.Precip, Metric: MetricSpread, Threshold: 0, Comparison: GreaterThan}}
	hook := NewWebhookHook("http://127.0.0.1:0", rules, 1*time.Second, slog.Default())
	run := models.ModelRun{ID: uuid.New(), ModelName: "GFS", InitTime: time.Now()}

	err := hook.Notify(context.Background(), run, []models.PointMetric{metric(models.Precip, 0, 0, 0, 0, 1)})
	if err != nil {
		t.Fatalf("Notify should swallow transport errors, got: %v", err)
	}
}
