package metric

import (
	"math"
	"testing"

	"github.com/synopticspread/core/internal/kernel"
)

func singleCellField(lat, lon, value float64) *kernel.Field {
	return kernel.NewRegular([]float64{lat}, []float64{lon}, [][]float64{{value}})
}

// S1 — two-model ensemble, one lead hour, one point.
func TestPointMetricsTwoModels(t *testing.T) {
	fields := map[string]*kernel.Field{
		"A": singleCellField(40.7, -74.0, 10.0),
		"B": singleCellField(40.7, -74.0, 12.0),
	}

	pairs, err := PointMetrics(fields, 40.7, -74.0)
	if err != nil {
		t.Fatalf("PointMetrics: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("len(pairs) = %d, want 1", len(pairs))
	}

	p := pairs[0]
	if p.ModelA != "A" || p.ModelB != "B" {
		t.Errorf("pair models = (%s, %s), want (A, B)", p.ModelA, p.ModelB)
	}
	if p.RMSE != 2.0 {
		t.Errorf("RMSE = %v, want 2.0", p.RMSE)
	}
	if p.Bias != -2.0 {
		t.Errorf("Bias = %v, want -2.0", p.Bias)
	}
	wantSpread := math.Abs(10.0-12.0) / math.Sqrt(2) // stddev(n=2, ddof=1)
	if math.Abs(p.Spread-wantSpread) > 1e-9 {
		t.Errorf("Spread = %v, want %v", p.Spread, wantSpread)
	}
}

func TestSingleModelNoSpreadNoPairs(t *testing.T) {
	fields := map[string]*kernel.Field{
		"A": singleCellField(0, 0, 5.0),
	}
	pairs, err := PointMetrics(fields, 0, 0)
	if err != nil {
		t.Fatalf("PointMetrics: %v", err)
	}
	if len(pairs) != 0 {
		t.Fatalf("len(pairs) = %d, want 0", len(pairs))
	}
	if s := EnsembleSpread(map[string]float64{"A": 5.0}); s != 0 {
		t.Errorf("EnsembleSpread(single model) = %v, want 0", s)
	}
}

func TestThreeModelsPairCount(t *testing.T) {
	fields := map[string]*kernel.Field{
		"A": singleCellField(0, 0, 10),
		"B": singleCellField(0, 0, 12),
		"C": singleCellField(0, 0, 8),
	}
	pairs, err := PointMetrics(fields, 0, 0)
	if err != nil {
		t.Fatalf("PointMetrics: %v", err)
	}
	// N*(N-1)/2 = 3
	if len(pairs) != 3 {
		t.Fatalf("len(pairs) = %d, want 3", len(pairs))
	}
	for _, p := range pairs {
		if p.RMSE < 0 {
			t.Errorf("RMSE must be non-negative, got %v", p.RMSE)
		}
	}
}

// S2 — three-model grid cell: stddev([10,12,8], ddof=1) = 2.0.
func TestGridDivergenceThreeModels(t *testing.T) {
	fields := map[string]*kernel.Field{
		"A": kernel.NewRegular([]float64{40.0, 40.25}, []float64{-75.0, -74.75}, [][]float64{{10, 10}, {10, 10}}),
		"B": kernel.NewRegular([]float64{40.0, 40.25}, []float64{-75.0, -74.75}, [][]float64{{12, 12}, {12, 12}}),
		"C": kernel.NewRegular([]float64{40.0, 40.25}, []float64{-75.0, -74.75}, [][]float64{{8, 8}, {8, 8}}),
	}

	div, lats, lons, err := GridDivergence(fields, 0.25)
	if err != nil {
		t.Fatalf("GridDivergence: %v", err)
	}
	if len(lats) == 0 || len(lons) == 0 {
		t.Fatalf("expected non-empty target axes")
	}
	got := div.Values[0][0]
	if math.Abs(got-2.0) > 1e-9 {
		t.Errorf("divergence = %v, want 2.0", got)
	}
}

func TestGridDivergenceRequiresTwoModels(t *testing.T) {
	fields := map[string]*kernel.Field{
		"A": singleCellField(0, 0, 1),
	}
	if _, _, _, err := GridDivergence(fields, 0.25); !IsNotEnoughModels(err) {
		t.Errorf("GridDivergence with one model: err = %v, want ErrNotEnoughModels", err)
	}
}
