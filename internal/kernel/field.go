// Package kernel implements the labelled 2-D field representation shared by
// every fetcher and the metric engine: nearest-neighbour point extraction and
// regrid-to-regular-grid over both regular (1-D axis) and projected (2-D
// auxiliary coordinate) grids.
package kernel

import (
	"errors"
)

// ErrInvalidGrid is returned when a Field is neither Regular nor Projected
// per the shapes defined in spec §3.
var ErrInvalidGrid = errors.New("kernel: field coordinates are neither regular nor projected")

// Shape tags which coordinate representation a Field carries.
type Shape int

const (
	Regular Shape = iota
	Projected
)

// Field is a 2-D floating-point array indexed by latitude and longitude,
// represented as a tagged variant (Regular or Projected) rather than as a
// class hierarchy, per the kernel dispatching on the tag.
//
// Regular: LatAxis and LonAxis are strictly monotonic 1-D axes; Values is
// shaped [len(LatAxis)][len(LonAxis)].
//
// Projected: Lat2D and Lon2D are 2-D auxiliary coordinate arrays with the
// same shape as Values (e.g. Lambert Conformal grids).
//
// Missing cells are represented by math.NaN().
type Field struct {
	Shape Shape

	LatAxis []float64
	LonAxis []float64

	Lat2D [][]float64
	Lon2D [][]float64

	Values [][]float64
}

// NewRegular builds a Regular field. latAxis and lonAxis must be strictly
// monotonic; values must be shaped [len(latAxis)][len(lonAxis)].
func NewRegular(latAxis, lonAxis []float64, values [][]float64) *Field {
	return &Field{Shape: Regular, LatAxis: latAxis, LonAxis: lonAxis, Values: values}
}

// NewProjected builds a Projected field. lat2D, lon2D, and values must share
// the same shape.
func NewProjected(lat2D, lon2D, values [][]float64) *Field {
	return &Field{Shape: Projected, Lat2D: lat2D, Lon2D: lon2D, Values: values}
}

func (f *Field) validate() error {
	switch f.Shape {
	case Regular:
		if len(f.LatAxis) == 0 || len(f.LonAxis) == 0 || len(f.Values) == 0 {
			return ErrInvalidGrid
		}
	case Projected:
		if len(f.Lat2D) == 0 || len(f.Lon2D) == 0 || len(f.Values) == 0 {
			return ErrInvalidGrid
		}
	default:
		return ErrInvalidGrid
	}
	return nil
}

// Dims returns (rows, cols) of the value array.
func (f *Field) Dims() (int, int) {
	rows := len(f.Values)
	if rows == 0 {
		return 0, 0
	}
	return rows, len(f.Values[0])
}

// FieldSet maps a canonical variable name to its Field for a single
// (model, init_time, lead_hour). Keyed by string (not models.Variable) so
// the kernel package has no dependency on the models package.
type FieldSet map[string]*Field
