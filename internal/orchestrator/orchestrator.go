// Package orchestrator implements ingest_and_process, the per-(model,
// init_time) workflow (spec §4.5): idempotency check, fetch the primary
// model, gather companion models that already hold a complete run for the
// same cycle, compute pairwise and ensemble metrics, persist, and finalize.
// Grounded on the teacher's internal/ingest package for the
// create-pending/fetch/finalize shape, generalized from a single station
// poll loop to a multi-model comparison workflow.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/synopticspread/core/internal/alerthook"
	"github.com/synopticspread/core/internal/arraystore"
	"github.com/synopticspread/core/internal/fetcher"
	"github.com/synopticspread/core/internal/kernel"
	"github.com/synopticspread/core/internal/metric"
	"github.com/synopticspread/core/internal/models"
	"github.com/synopticspread/core/internal/obsmetrics"
	"github.com/synopticspread/core/internal/store"
)

// CanonicalVariables is the fixed processing order spec §5 requires
// ("variables in a fixed canonical order") — same ordering as
// models.Variables, expressed as fetcher-facing strings.
var CanonicalVariables = []string{"precip", "wind_speed", "mslp", "hgt_500"}

// gridResolution is the 0.25-degree target axis spec §4.3 step 2 specifies
// for grid divergence.
const gridResolution = 0.25

// Orchestrator holds every collaborator ingest_and_process needs, injected
// explicitly per spec §9's "no global mutable state" guidance.
type Orchestrator struct {
	Store       *store.Store
	ArrayStore  *arraystore.Store
	Fetchers    map[string]fetcher.ModelFetcher
	LeadHours   map[string][]int
	Points      []models.MonitorPoint
	Clock       clockwork.Clock
	Logger      *slog.Logger
	Metrics     *obsmetrics.Metrics
	Hook        alerthook.Hook
	JobDeadline time.Duration
}

// New builds an Orchestrator. A nil Hook is a no-op; a nil Clock defaults to
// the real wall clock.
func New(st *store.Store, as *arraystore.Store, fetchers map[string]fetcher.ModelFetcher, leadHours map[string][]int, points []models.MonitorPoint, clock clockwork.Clock, logger *slog.Logger, m *obsmetrics.Metrics, hook alerthook.Hook, jobDeadline time.Duration) *Orchestrator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Orchestrator{
		Store:       st,
		ArrayStore:  as,
		Fetchers:    fetchers,
		LeadHours:   leadHours,
		Points:      points,
		Clock:       clock,
		Logger:      logger,
		Metrics:     m,
		Hook:        hook,
		JobDeadline: jobDeadline,
	}
}

// modelFields is what IngestAndProcess accumulates per model across its
// decoded lead hours before the compute-and-persist phase.
type modelFields struct {
	runID      uuid.UUID
	byLeadHour map[int]kernel.FieldSet
}

// IngestAndProcess runs the full ingest_and_process workflow for one model
// and (optionally resolved) init time, returning the terminal ModelRun row.
func (o *Orchestrator) IngestAndProcess(ctx context.Context, modelName string, initTime *time.Time) (*models.ModelRun, error) {
	primaryFetcher, ok := o.Fetchers[modelName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoModelFetcher, modelName)
	}

	resolved := o.resolveInitTime(initTime)

	existing, err := o.Store.FindRun(modelName, resolved)
	if err != nil && err != store.ErrNotFound {
		return nil, fmt.Errorf("%w: probe existing run: %v", ErrStorageFailure, err)
	}
	if err == nil {
		switch existing.Status {
		case models.StatusComplete:
			return existing, nil
		case models.StatusPending:
			return nil, ErrConcurrentRunInProgress
		}
	}

	run := models.ModelRun{
		ID:            uuid.New(),
		ModelName:     modelName,
		InitTime:      resolved,
		ForecastHours: nil,
		Status:        models.StatusPending,
		CreatedAt:     o.Clock.Now().UTC(),
	}
	if err := o.Store.InsertRun(run); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, ErrDuplicateRun
		}
		return nil, fmt.Errorf("%w: create run: %v", ErrStorageFailure, err)
	}
	if o.Metrics != nil {
		o.Metrics.RunsStarted.WithLabelValues(modelName).Inc()
		o.Metrics.ActiveRuns.Inc()
	}

	deadline := ctx
	var cancel context.CancelFunc
	if o.JobDeadline > 0 {
		deadline, cancel = context.WithTimeout(ctx, o.JobDeadline)
		defer cancel()
	}

	started := o.Clock.Now()
	terminal, procErr := o.process(deadline, run, primaryFetcher)

	if o.Metrics != nil {
		o.Metrics.ActiveRuns.Dec()
		o.Metrics.RunDuration.WithLabelValues(modelName).Observe(o.Clock.Now().Sub(started).Seconds())
	}

	if procErr != nil {
		if updErr := o.Store.UpdateRunStatus(run.ID, models.StatusError, run.ForecastHours); updErr != nil {
			o.Logger.Error("failed to mark run as error after processing failure", "run_id", run.ID, "error", updErr)
		}
		if o.Metrics != nil {
			o.Metrics.RunsErrored.WithLabelValues(modelName).Inc()
		}
		return nil, procErr
	}

	if o.Metrics != nil {
		o.Metrics.RunsCompleted.WithLabelValues(modelName).Inc()
	}
	return terminal, nil
}

// resolveInitTime implements step 1: when initTime is nil, resolve to the
// latest wall-clock 6-hour cycle boundary <= now in UTC.
func (o *Orchestrator) resolveInitTime(initTime *time.Time) time.Time {
	if initTime != nil {
		return fetcher.NormalizeInitTime(*initTime)
	}
	now := o.Clock.Now().UTC()
	cycleHour := (now.Hour() / 6) * 6
	return time.Date(now.Year(), now.Month(), now.Day(), cycleHour, 0, 0, 0, time.UTC)
}

// process implements steps 4-7 of ingest_and_process once the run row exists.
func (o *Orchestrator) process(ctx context.Context, run models.ModelRun, primary fetcher.ModelFetcher) (*models.ModelRun, error) {
	fields := map[string]*modelFields{}

	primaryResult, primaryHours, err := o.fetchModel(ctx, primary, run.InitTime, o.LeadHours[run.ModelName])
	if err != nil {
		return nil, fmt.Errorf("fetch primary model %s: %w", run.ModelName, err)
	}
	if len(primaryHours) == 0 {
		return nil, fmt.Errorf("fetch primary model %s: no lead hours decoded", run.ModelName)
	}
	fields[run.ModelName] = &modelFields{runID: run.ID, byLeadHour: primaryResult}
	run.ForecastHours = primaryHours

	if err := o.Store.UpdateRunStatus(run.ID, models.StatusPending, run.ForecastHours); err != nil {
		return nil, fmt.Errorf("%w: record forecast hours: %v", ErrStorageFailure, err)
	}

	for otherModel, otherFetcher := range o.Fetchers {
		if otherModel == run.ModelName {
			continue
		}
		companionRun, err := o.Store.FindRun(otherModel, run.InitTime)
		if err != nil || companionRun.Status != models.StatusComplete {
			continue
		}

		companionResult, companionHours, err := o.fetchModel(ctx, otherFetcher, run.InitTime, companionRun.ForecastHours)
		if err != nil || len(companionHours) == 0 {
			o.Logger.Warn("companion re-fetch failed, excluding from comparison",
				"model", otherModel, "init_time", run.InitTime, "error", err)
			continue
		}
		fields[otherModel] = &modelFields{runID: companionRun.ID, byLeadHour: companionResult}
	}

	allMetrics, err := o.computeAndPersist(ctx, run, fields)
	if err != nil {
		return nil, err
	}

	if err := o.Store.UpdateRunStatus(run.ID, models.StatusComplete, run.ForecastHours); err != nil {
		return nil, fmt.Errorf("%w: finalize run: %v", ErrStorageFailure, err)
	}
	run.Status = models.StatusComplete

	if o.Hook != nil {
		if err := o.Hook.Notify(ctx, run, allMetrics); err != nil {
			o.Logger.Warn("alert hook notify failed", "run_id", run.ID, "error", err)
		}
	}

	return &run, nil
}

// fetchModel drains a fetcher's channel-based lazy sequence into an
// in-memory map keyed by lead hour, plus the ascending list of hours that
// actually decoded (spec §4.2's "MUST preserve ascending order").
func (o *Orchestrator) fetchModel(ctx context.Context, f fetcher.ModelFetcher, initTime time.Time, leadHours []int) (map[int]kernel.FieldSet, []int, error) {
	started := o.Clock.Now()
	out, errc := f.Fetch(ctx, initTime, CanonicalVariables, leadHours)

	result := map[int]kernel.FieldSet{}
	var hours []int
	for lhf := range out {
		result[lhf.LeadHour] = lhf.Fields
		hours = append(hours, lhf.LeadHour)
	}
	sort.Ints(hours)

	if o.Metrics != nil {
		o.Metrics.FetchDuration.WithLabelValues(f.Name()).Observe(o.Clock.Now().Sub(started).Seconds())
	}

	if err := <-errc; err != nil {
		if len(hours) == 0 {
			return nil, nil, err
		}
		o.Logger.Warn("fetcher reported a terminal error after partial success",
			"model", f.Name(), "init_time", initTime, "error", err)
	}
	return result, hours, nil
}

// computeAndPersist implements step 6: for each lead hour present in >= 2
// models, for each variable present in >= 2 of those models, compute point
// metrics for every monitor point and grid divergence, persisting both.
// Per-(lead_hour, variable) failures are isolated (spec §4.5 step 6, §7's
// PartialLeadHourFailure).
func (o *Orchestrator) computeAndPersist(ctx context.Context, run models.ModelRun, fields map[string]*modelFields) ([]models.PointMetric, error) {
	leadHours := unionLeadHours(fields)
	var allMetrics []models.PointMetric

	for _, lhr := range leadHours {
		runIDs := map[string]uuid.UUID{}
		present := map[string]kernel.FieldSet{}
		for model, mf := range fields {
			fs, ok := mf.byLeadHour[lhr]
			if !ok {
				continue
			}
			present[model] = fs
			runIDs[model] = mf.runID
		}
		if len(present) < 2 {
			continue
		}

		var batch []models.PointMetric
		now := o.Clock.Now().UTC()

		for _, varName := range CanonicalVariables {
			variable, ok := models.ParseVariable(varName)
			if !ok {
				continue
			}

			varFields := map[string]*kernel.Field{}
			for model, fs := range present {
				if f, ok := fs[varName]; ok && f != nil {
					varFields[model] = f
				}
			}
			if len(varFields) < 2 {
				continue
			}

			for _, pt := range o.Points {
				pairs, err := metric.PointMetrics(varFields, pt.Lat, pt.Lon)
				if err != nil {
					o.logPartialFailure(run, lhr, varName, "point_metrics", err)
					continue
				}
				for _, pair := range pairs {
					batch = append(batch, models.PointMetric{
						RunAID:    runIDs[pair.ModelA],
						RunBID:    runIDs[pair.ModelB],
						Variable:  variable,
						Lat:       pt.Lat,
						Lon:       pt.Lon,
						LeadHour:  lhr,
						RMSE:      pair.RMSE,
						Bias:      pair.Bias,
						Spread:    pair.Spread,
						CreatedAt: now,
					})
				}
			}

			if err := o.persistGridDivergence(run, lhr, variable, varName, varFields, now); err != nil {
				o.logPartialFailure(run, lhr, varName, "grid_divergence", err)
			}
		}

		if len(batch) > 0 {
			if err := o.Store.InsertPointMetrics(batch); err != nil {
				return nil, fmt.Errorf("%w: insert point metrics for lead hour %d: %v", ErrStorageFailure, lhr, err)
			}
			allMetrics = append(allMetrics, batch...)
		}
	}

	return allMetrics, nil
}

func (o *Orchestrator) persistGridDivergence(run models.ModelRun, lhr int, variable models.Variable, varName string, varFields map[string]*kernel.Field, now time.Time) error {
	divergence, targetLat, targetLon, err := metric.GridDivergence(varFields, gridResolution)
	if err != nil {
		if metric.IsNotEnoughModels(err) {
			return nil
		}
		return err
	}

	handle, err := o.ArrayStore.Put(run.InitTime, varName, lhr, divergence)
	if err != nil {
		return fmt.Errorf("%w: array store put: %v", ErrStorageFailure, err)
	}

	snap := models.GridSnapshot{
		InitTime: run.InitTime,
		Variable: variable,
		LeadHour: lhr,
		BBox: models.BBox{
			MinLat: targetLat[0],
			MaxLat: targetLat[len(targetLat)-1],
			MinLon: targetLon[0],
			MaxLon: targetLon[len(targetLon)-1],
		},
		ArrayHandle: handle,
		CreatedAt:   now,
	}
	if err := o.Store.InsertGridSnapshot(snap); err != nil {
		return fmt.Errorf("%w: insert grid snapshot: %v", ErrStorageFailure, err)
	}
	return nil
}

func (o *Orchestrator) logPartialFailure(run models.ModelRun, leadHour int, variable, stage string, err error) {
	o.Logger.Warn("partial lead hour failure",
		"error_type", errPartialLeadHourFailure.Error(),
		"run_id", run.ID, "model", run.ModelName, "lead_hour", leadHour,
		"variable", variable, "stage", stage, "error", err)
	if o.Metrics != nil {
		o.Metrics.LeadHoursSkipped.WithLabelValues(run.ModelName, stage).Inc()
	}
}

func unionLeadHours(fields map[string]*modelFields) []int {
	seen := map[int]bool{}
	for _, mf := range fields {
		for lhr := range mf.byLeadHour {
			seen[lhr] = true
		}
	}
	hours := make([]int, 0, len(seen))
	for lhr := range seen {
		hours = append(hours, lhr)
	}
	sort.Ints(hours)
	return hours
}
