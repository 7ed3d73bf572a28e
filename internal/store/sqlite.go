// Package store implements the relational side of the system's storage
// layer: model run tracking, pairwise point metrics, and the grid-snapshot
// catalog pointing into the array store. Grounded on the teacher's
// internal/store/sqlite.go — same *sql.DB wrapper, same upsert/idempotency
// idioms — adapted from station observations to model-divergence rows.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/synopticspread/core/internal/models"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by single-row lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens a sqlite database at path and applies the pragmas the teacher's
// cmd/wandiweather/main.go sets for a single-writer workload.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	return New(db), nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func encodeForecastHours(hours []int) string {
	parts := make([]string, len(hours))
	for i, h := range hours {
		parts[i] = strconv.Itoa(h)
	}
	return strings.Join(parts, ",")
}

func decodeForecastHours(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	hours := make([]int, len(parts))
	for i, p := range parts {
		h, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("decode forecast_hours %q: %w", s, err)
		}
		hours[i] = h
	}
	return hours, nil
}

// IsUniqueViolation reports whether err came from sqlite rejecting a write
// against the partial unique index on (model_name, init_time). Callers use
// this to distinguish a genuine idempotency conflict (two concurrent
// InsertRun calls racing the FindRun probe) from any other storage failure.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

// InsertRun creates a new pending ModelRun row. Returns sqlite's UNIQUE
// constraint violation on (model_name, init_time) unchanged so callers can
// detect a duplicate with IsUniqueViolation; the orchestrator classifies
// that into ErrDuplicateRun.
func (s *Store) InsertRun(run models.ModelRun) error {
	_, err := s.db.Exec(`
		INSERT INTO model_runs (id, model_name, init_time, forecast_hours, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID.String(), run.ModelName, run.InitTime, encodeForecastHours(run.ForecastHours), string(run.Status), run.CreatedAt)
	return err
}

// FindRun looks up the active (non-error) run for (model_name, init_time) —
// the idempotency probe the orchestrator runs before creating a new run
// (spec §4.5). An errored attempt never blocks this probe from reporting
// "no active run", since at most one non-error row can exist per the partial
// unique index backing this invariant.
func (s *Store) FindRun(modelName string, initTime time.Time) (*models.ModelRun, error) {
	row := s.db.QueryRow(`
		SELECT id, model_name, init_time, forecast_hours, status, created_at
		FROM model_runs
		WHERE model_name = ? AND init_time = ? AND status != ?
	`, modelName, initTime, string(models.StatusError))
	return scanRun(row)
}

func (s *Store) FindRunByID(id uuid.UUID) (*models.ModelRun, error) {
	row := s.db.QueryRow(`
		SELECT id, model_name, init_time, forecast_hours, status, created_at
		FROM model_runs
		WHERE id = ?
	`, id.String())
	return scanRun(row)
}

func scanRun(row *sql.Row) (*models.ModelRun, error) {
	var run models.ModelRun
	var idStr, hoursStr, statusStr string
	err := row.Scan(&idStr, &run.ModelName, &run.InitTime, &hoursStr, &statusStr, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse run id %q: %w", idStr, err)
	}
	run.ID = id
	run.Status = models.RunStatus(statusStr)
	run.ForecastHours, err = decodeForecastHours(hoursStr)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// UpdateRunStatus transitions a run to a terminal (or pending) status and
// records the forecast hours actually ingested so far. The orchestrator's
// state machine never calls this to move a run backward out of a terminal
// state (spec §4.5 invariant).
func (s *Store) UpdateRunStatus(id uuid.UUID, status models.RunStatus, forecastHours []int) error {
	_, err := s.db.Exec(`UPDATE model_runs SET status = ?, forecast_hours = ? WHERE id = ?`,
		string(status), encodeForecastHours(forecastHours), id.String())
	return err
}

// RunsByModel returns every run for a model, newest init_time first.
func (s *Store) RunsByModel(modelName string, limit int) ([]models.ModelRun, error) {
	rows, err := s.db.Query(`
		SELECT id, model_name, init_time, forecast_hours, status, created_at
		FROM model_runs
		WHERE model_name = ?
		ORDER BY init_time DESC
		LIMIT ?
	`, modelName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ModelRun
	for rows.Next() {
		var run models.ModelRun
		var idStr, hoursStr, statusStr string
		if err := rows.Scan(&idStr, &run.ModelName, &run.InitTime, &hoursStr, &statusStr, &run.CreatedAt); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse run id %q: %w", idStr, err)
		}
		run.ID = id
		run.Status = models.RunStatus(statusStr)
		run.ForecastHours, err = decodeForecastHours(hoursStr)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// InsertPointMetrics batch-inserts the given PointMetric rows (the
// orchestrator passes every pair row of one lead hour, across all variables
// and monitor points) inside a single transaction so a partial write never
// leaves half the batch persisted.
func (s *Store) InsertPointMetrics(metrics []models.PointMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO point_metrics (run_a_id, run_b_id, variable, lat, lon, lead_hour, rmse, bias, spread, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_a_id, run_b_id, variable, lat, lon, lead_hour) DO UPDATE SET
			rmse = excluded.rmse,
			bias = excluded.bias,
			spread = excluded.spread
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, m := range metrics {
		if _, err := stmt.Exec(m.RunAID.String(), m.RunBID.String(), m.Variable.String(), m.Lat, m.Lon, m.LeadHour, m.RMSE, m.Bias, m.Spread, m.CreatedAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert point metric: %w", err)
		}
	}

	return tx.Commit()
}

// PointMetricsNear returns point metrics within the proximity window
// (|lat-q_lat| <= 0.5 AND |lon-q_lon| <= 0.5, spec §6) for a variable,
// newest first.
func (s *Store) PointMetricsNear(variable models.Variable, lat, lon float64, limit int) ([]models.PointMetric, error) {
	const window = 0.5
	rows, err := s.db.Query(`
		SELECT id, run_a_id, run_b_id, variable, lat, lon, lead_hour, rmse, bias, spread, created_at
		FROM point_metrics
		WHERE variable = ?
		  AND lat BETWEEN ? AND ?
		  AND lon BETWEEN ? AND ?
		ORDER BY created_at DESC
		LIMIT ?
	`, variable.String(), lat-window, lat+window, lon-window, lon+window, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PointMetric
	for rows.Next() {
		m, err := scanPointMetric(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanPointMetric(rows *sql.Rows) (models.PointMetric, error) {
	var m models.PointMetric
	var runAStr, runBStr, varStr string
	if err := rows.Scan(&m.ID, &runAStr, &runBStr, &varStr, &m.Lat, &m.Lon, &m.LeadHour, &m.RMSE, &m.Bias, &m.Spread, &m.CreatedAt); err != nil {
		return m, err
	}

	runA, err := uuid.Parse(runAStr)
	if err != nil {
		return m, fmt.Errorf("parse run_a_id %q: %w", runAStr, err)
	}
	runB, err := uuid.Parse(runBStr)
	if err != nil {
		return m, fmt.Errorf("parse run_b_id %q: %w", runBStr, err)
	}
	variable, ok := models.ParseVariable(varStr)
	if !ok {
		return m, fmt.Errorf("unknown variable %q in point_metrics row", varStr)
	}
	m.RunAID, m.RunBID, m.Variable = runA, runB, variable
	return m, nil
}

// InsertGridSnapshot records a catalog row pointing at one array-store
// object. Idempotent on (init_time, variable, lead_hour): a re-run of a
// lead hour overwrites the pointer rather than duplicating the row.
func (s *Store) InsertGridSnapshot(snap models.GridSnapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO grid_snapshots (init_time, variable, lead_hour, min_lat, max_lat, min_lon, max_lon, array_handle, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(init_time, variable, lead_hour) DO UPDATE SET
			min_lat = excluded.min_lat,
			max_lat = excluded.max_lat,
			min_lon = excluded.min_lon,
			max_lon = excluded.max_lon,
			array_handle = excluded.array_handle
	`, snap.InitTime, snap.Variable.String(), snap.LeadHour, snap.BBox.MinLat, snap.BBox.MaxLat, snap.BBox.MinLon, snap.BBox.MaxLon, snap.ArrayHandle, snap.CreatedAt)
	return err
}

// LatestGridSnapshot returns the most recent snapshot for a variable and
// lead hour (newest init_time first, spec §6).
func (s *Store) LatestGridSnapshot(variable models.Variable, leadHour int) (*models.GridSnapshot, error) {
	row := s.db.QueryRow(`
		SELECT id, init_time, variable, lead_hour, min_lat, max_lat, min_lon, max_lon, array_handle, created_at
		FROM grid_snapshots
		WHERE variable = ? AND lead_hour = ?
		ORDER BY init_time DESC
		LIMIT 1
	`, variable.String(), leadHour)

	var snap models.GridSnapshot
	var varStr string
	err := row.Scan(&snap.ID, &snap.InitTime, &varStr, &snap.LeadHour, &snap.BBox.MinLat, &snap.BBox.MaxLat, &snap.BBox.MinLon, &snap.BBox.MaxLon, &snap.ArrayHandle, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	variable, ok := models.ParseVariable(varStr)
	if !ok {
		return nil, fmt.Errorf("unknown variable %q in grid_snapshots row", varStr)
	}
	snap.Variable = variable
	return &snap, nil
}
