// Package metric implements the stateless divergence math: pairwise
// RMSE/bias between models at a point, ensemble spread, and per-grid-cell
// divergence (spec §4.3). Grounded on original_source's
// services/processing/metrics.py and services/processing/grid.py.
package metric

import (
	"math"
	"sort"

	"github.com/synopticspread/core/internal/kernel"
)

// PointPair is one pairwise comparison row between two models at a point,
// variable, and lead hour.
type PointPair struct {
	ModelA, ModelB string
	RMSE, Bias     float64
	Spread         float64
}

// PointMetrics computes, for a single variable and monitor point, the
// per-model scalar extraction, the ensemble spread, and every unordered
// pairwise comparison (A < B lexicographically), per spec §4.3.
//
// fields maps model name -> that model's Field for the variable in question.
// Models missing the variable should simply be absent from the map.
func PointMetrics(fields map[string]*kernel.Field, lat, lon float64) ([]PointPair, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make(map[string]float64, len(names))
	for _, name := range names {
		v, err := kernel.ExtractPoint(fields[name], lat, lon)
		if err != nil {
			return nil, err
		}
		values[name] = v
	}

	spread := EnsembleSpread(values)

	var pairs []PointPair
	for i, a := range names {
		for _, b := range names[i+1:] {
			va, vb := values[a], values[b]
			pairs = append(pairs, PointPair{
				ModelA: a,
				ModelB: b,
				RMSE:   math.Abs(va - vb),
				Bias:   va - vb,
				Spread: spread,
			})
		}
	}
	return pairs, nil
}

// EnsembleSpread returns the sample standard deviation (ddof=1) of the given
// per-model values, or 0 when fewer than two models contributed.
func EnsembleSpread(values map[string]float64) float64 {
	if len(values) < 2 {
		return 0
	}
	vs := make([]float64, 0, len(values))
	for _, v := range values {
		vs = append(vs, v)
	}
	return sampleStdDev(vs)
}

// sampleStdDev computes the n-1 sample standard deviation. NaN inputs
// propagate (matching numpy's default behaviour, which the original relied
// on implicitly).
func sampleStdDev(vs []float64) float64 {
	n := float64(len(vs))
	mean := 0.0
	for _, v := range vs {
		mean += v
	}
	mean /= n

	var sumSq float64
	for _, v := range vs {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / (n - 1))
}

// GridDivergence computes the per-cell sample standard deviation (ddof=1)
// across models, after regridding every model's field for the variable onto
// a common 0.25° axis covering their shared bbox (spec §4.3 steps 1-4).
// Cells where fewer than two models have non-NaN data become NaN.
//
// Returns the divergence field plus the target latitude/longitude axes it
// was computed on.
func GridDivergence(fields map[string]*kernel.Field, resolution float64) (*kernel.Field, []float64, []float64, error) {
	if len(fields) < 2 {
		return nil, nil, nil, errNotEnoughModels
	}

	regridded, targetLat, targetLon, err := kernel.RegridAllToCommon(fields, resolution)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(regridded) < 2 {
		return nil, nil, nil, errNotEnoughModels
	}

	rows := len(targetLat)
	cols := len(targetLon)
	values := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		values[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			var cellValues []float64
			for _, f := range regridded {
				v := f.Values[i][j]
				if !math.IsNaN(v) {
					cellValues = append(cellValues, v)
				}
			}
			if len(cellValues) < 2 {
				values[i][j] = math.NaN()
			} else {
				values[i][j] = sampleStdDev(cellValues)
			}
		}
	}

	return kernel.NewRegular(targetLat, targetLon, values), targetLat, targetLon, nil
}
