// Package fetcher implements the per-model fetcher contract: given an
// initialization time and a requested set of {variables, lead hours}, return
// a lazy sequence of (lead_hour, FieldSet) pairs (spec §4.2).
//
// The contract is a small interface (capability), not a class hierarchy:
// model-specific byte-range/message-search logic lives behind ModelFetcher
// in per-model files (gfs.go, nam.go, ecmwf.go, hrrr.go, aigfs.go, rrfs.go).
package fetcher

import (
	"context"
	"time"

	"github.com/synopticspread/core/internal/kernel"
)

// LeadHourFields is one (lead_hour, FieldSet) pair in the sequence a fetcher
// produces.
type LeadHourFields struct {
	LeadHour int
	Fields   kernel.FieldSet
}

// ModelFetcher is the polymorphic capability every NWP model source
// implements. init_time is timezone-stripped UTC before being passed to the
// external source; variables is a subset of the canonical set; lead_hours is
// caller-ordered ascending.
//
// Fetch returns a channel the caller ranges over to consume hours as they
// decode (the "lazy sequence" of spec §4.2) and a channel that carries the
// terminal error, if any — non-nil only when zero lead hours decoded
// successfully (see errors.go's first-three-of-four taxonomy).
type ModelFetcher interface {
	// Name is the canonical short model name, uppercase (e.g. "GFS").
	Name() string

	// Fetch streams decoded (lead_hour, FieldSet) pairs in ascending order.
	// Per-hour failures are caught and logged internally; skipped hours never
	// appear on the returned channel. The error channel receives at most one
	// value, sent after the results channel is closed.
	Fetch(ctx context.Context, initTime time.Time, variables []string, leadHours []int) (<-chan LeadHourFields, <-chan error)
}

// NormalizeInitTime strips any timezone/location info, converting to bare
// UTC, per spec §4.2's "init_time is timezone-stripped UTC before being
// passed to the external source."
func NormalizeInitTime(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), 0, time.UTC)
}
