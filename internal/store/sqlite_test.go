package store

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/google/uuid"
	"github.com/synopticspread/core/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestInsertAndFindRun(t *testing.T) {
	s := setupTestStore(t)

	run := models.ModelRun{
		ID:            uuid.New(),
		ModelName:     "GFS",
		InitTime:      time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC),
		ForecastHours: []int{0, 6, 12},
		Status:        models.StatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.InsertRun(run); err != nil {
		t.Fatalf("InsertRun: %v", err)
	}

	got, err := s.FindRun("GFS", run.InitTime)
	if err != nil {
		t.Fatalf("FindRun: %v", err)
	}
	if got.ID != run.ID {
		t.Errorf("ID = %v, want %v", got.ID, run.ID)
	}
	if len(got.ForecastHours) != 3 || got.ForecastHours[2] != 12 {
		t.Errorf("ForecastHours = %v, want [0 6 12]", got.ForecastHours)
	}
	if got.Status != models.StatusPending {
		t.Errorf("Status = %v, want pending", got.Status)
	}
}

func TestFindRunNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.FindRun("GFS", time.Now())
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestInsertRunDuplicateViolatesUnique(t *testing.T) {
	s := setupTestStore(t)

	initTime := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	run := models.ModelRun{ID: uuid.New(), ModelName: "GFS", InitTime: initTime, Status: models.StatusPending, CreatedAt: time.Now().UTC()}
	if err := s.InsertRun(run); err != nil {
		t.Fatalf("first InsertRun: %v", err)
	}

	dup := models.ModelRun{ID: uuid.New(), ModelName: "GFS", InitTime: initTime, Status: models.StatusPending, CreatedAt: time.Now().UTC()}
	if err := s.InsertRun(dup); err == nil {
		t.Fatal("expected unique constraint violation for duplicate (model_name, init_time)")
	}
}

func TestUpdateRunStatus(t *testing.T) {
	s := setupTestStore(t)

	run := models.ModelRun{ID: uuid.New(), ModelName: "GFS", InitTime: time.Now().UTC(), Status: models.StatusPending, CreatedAt: time.Now().UTC()}
	if err := s.InsertRun(run); err != nil {
		t.Fatalf("InsertRun: %v", err)
	}

	if err := s.UpdateRunStatus(run.ID, models.StatusComplete, []int{0, 6, 12}); err != nil {
		t.Fatalf("UpdateRunStatus: %v", err)
	}

	got, err := s.FindRunByID(run.ID)
	if err != nil {
		t.Fatalf("FindRunByID: %v", err)
	}
	if got.Status != models.StatusComplete {
		t.Errorf("Status = %v, want complete", got.Status)
	}
	if len(got.ForecastHours) != 3 || got.ForecastHours[2] != 12 {
		t.Errorf("ForecastHours = %v, want [0 6 12]", got.ForecastHours)
	}
}

func TestUpdateRunStatusErrorDoesNotBlockRetry(t *testing.T) {
	s := setupTestStore(t)
	initTime := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	first := models.ModelRun{ID: uuid.New(), ModelName: "GFS", InitTime: initTime, Status: models.StatusPending, CreatedAt: time.Now().UTC()}
	if err := s.InsertRun(first); err != nil {
		t.Fatalf("InsertRun first: %v", err)
	}
	if err := s.UpdateRunStatus(first.ID, models.StatusError, nil); err != nil {
		t.Fatalf("UpdateRunStatus: %v", err)
	}

	second := models.ModelRun{ID: uuid.New(), ModelName: "GFS", InitTime: initTime, Status: models.StatusPending, CreatedAt: time.Now().UTC()}
	if err := s.InsertRun(second); err != nil {
		t.Fatalf("InsertRun second should succeed after first errored: %v", err)
	}

	if _, err := s.FindRun("GFS", initTime); err != nil {
		t.Fatalf("FindRun: %v", err)
	}
}

func TestRunsByModelNewestFirst(t *testing.T) {
	s := setupTestStore(t)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := models.ModelRun{
			ID:        uuid.New(),
			ModelName: "GFS",
			InitTime:  base.Add(time.Duration(i) * 24 * time.Hour),
			Status:    models.StatusComplete,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.InsertRun(run); err != nil {
			t.Fatalf("InsertRun %d: %v", i, err)
		}
	}

	runs, err := s.RunsByModel("GFS", 10)
	if err != nil {
		t.Fatalf("RunsByModel: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len(runs) = %d, want 3", len(runs))
	}
	if !runs[0].InitTime.After(runs[1].InitTime) || !runs[1].InitTime.After(runs[2].InitTime) {
		t.Errorf("runs not in newest-first order: %v", runs)
	}
}

func TestInsertPointMetricsAndProximityQuery(t *testing.T) {
	s := setupTestStore(t)

	runA := uuid.New()
	runB := uuid.New()
	now := time.Now().UTC()

	metrics := []models.PointMetric{
		{RunAID: runA, RunBID: runB, Variable: models.WindSpeed, Lat: 40.7, Lon: -74.0, LeadHour: 6, RMSE: 2.0, Bias: -2.0, Spread: 1.414, CreatedAt: now},
		{RunAID: runA, RunBID: runB, Variable: models.WindSpeed, Lat: 55.0, Lon: 10.0, LeadHour: 6, RMSE: 1.0, Bias: 1.0, Spread: 0.7, CreatedAt: now},
	}
	if err := s.InsertPointMetrics(metrics); err != nil {
		t.Fatalf("InsertPointMetrics: %v", err)
	}

	near, err := s.PointMetricsNear(models.WindSpeed, 40.7, -74.0, 10)
	if err != nil {
		t.Fatalf("PointMetricsNear: %v", err)
	}
	if len(near) != 1 {
		t.Fatalf("len(near) = %d, want 1 (proximity window excludes the Denmark point)", len(near))
	}
	if near[0].RMSE != 2.0 {
		t.Errorf("RMSE = %v, want 2.0", near[0].RMSE)
	}
}

func TestInsertGridSnapshotLatestByInitTime(t *testing.T) {
	s := setupTestStore(t)

	bbox := models.BBox{MinLat: 20, MaxLat: 50, MinLon: -130, MaxLon: -60}
	older := models.GridSnapshot{InitTime: time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC), Variable: models.MSLP, LeadHour: 6, BBox: bbox, ArrayHandle: "old-handle", CreatedAt: time.Now().UTC()}
	newer := models.GridSnapshot{InitTime: time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC), Variable: models.MSLP, LeadHour: 6, BBox: bbox, ArrayHandle: "new-handle", CreatedAt: time.Now().UTC()}

	if err := s.InsertGridSnapshot(older); err != nil {
		t.Fatalf("InsertGridSnapshot older: %v", err)
	}
	if err := s.InsertGridSnapshot(newer); err != nil {
		t.Fatalf("InsertGridSnapshot newer: %v", err)
	}

	latest, err := s.LatestGridSnapshot(models.MSLP, 6)
	if err != nil {
		t.Fatalf("LatestGridSnapshot: %v", err)
	}
	if latest.ArrayHandle != "new-handle" {
		t.Errorf("ArrayHandle = %q, want new-handle", latest.ArrayHandle)
	}
}
