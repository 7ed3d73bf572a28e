// Package models holds the relational row shapes shared across the storage,
// orchestrator, and metric-engine packages.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Variable is the closed set of canonical meteorological variables this
// system tracks. The relational column remains a short string (see
// Variable.String) for forward compatibility, per the "dynamic typing ->
// tagged variants" guidance: the Go type is a closed sum, not an open string.
type Variable int

const (
	Precip Variable = iota
	WindSpeed
	MSLP
	Hgt500
)

// Variables is the canonical ordering used wherever the spec requires
// "variables in a fixed canonical order" (batched inserts, deterministic
// iteration).
var Variables = [...]Variable{Precip, WindSpeed, MSLP, Hgt500}

func (v Variable) String() string {
	switch v {
	case Precip:
		return "precip"
	case WindSpeed:
		return "wind_speed"
	case MSLP:
		return "mslp"
	case Hgt500:
		return "hgt_500"
	default:
		return "unknown"
	}
}

// Unit returns the fixed physical unit for the variable (spec §3).
func (v Variable) Unit() string {
	switch v {
	case Precip:
		return "mm"
	case WindSpeed:
		return "m/s"
	case MSLP:
		return "Pa"
	case Hgt500:
		return "m"
	default:
		return ""
	}
}

// ParseVariable resolves a canonical variable name back to its Variable.
func ParseVariable(s string) (Variable, bool) {
	for _, v := range Variables {
		if v.String() == s {
			return v, true
		}
	}
	return 0, false
}

// RunStatus is the closed set of states in the ModelRun lifecycle (spec §4.5).
type RunStatus string

const (
	StatusPending  RunStatus = "pending"
	StatusComplete RunStatus = "complete"
	StatusError    RunStatus = "error"
)

// ModelRun is the relational row tracking one (model_name, init_time) ingestion.
type ModelRun struct {
	ID            uuid.UUID
	ModelName     string
	InitTime      time.Time
	ForecastHours []int
	Status        RunStatus
	CreatedAt     time.Time
}

// MonitorPoint is a fixed (lat, lon, label) the metric engine evaluates on
// every run (spec §6 configuration surface).
type MonitorPoint struct {
	Lat   float64
	Lon   float64
	Label string
}

// PointMetric is one pairwise-comparison row for a single variable, monitor
// point, and lead hour (spec §3).
type PointMetric struct {
	ID        int64
	RunAID    uuid.UUID
	RunBID    uuid.UUID
	Variable  Variable
	Lat       float64
	Lon       float64
	LeadHour  int
	RMSE      float64
	Bias      float64
	Spread    float64
	CreatedAt time.Time
}

// BBox is an axis-aligned lat/lon bounding box.
type BBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// GridSnapshot is a catalog row pointing at an array-store object holding one
// persisted divergence field (spec §3).
type GridSnapshot struct {
	ID          int64
	InitTime    time.Time
	Variable    Variable
	LeadHour    int
	BBox        BBox
	ArrayHandle string
	CreatedAt   time.Time
}
