package kernel

import (
	"math"
	"testing"
)

func TestExtractPointRegular(t *testing.T) {
	f := NewRegular(
		[]float64{40.0, 40.5, 41.0},
		[]float64{-75.0, -74.5, -74.0},
		[][]float64{
			{1, 2, 3},
			{4, 5, 6},
			{7, 8, 9},
		},
	)

	tests := []struct {
		name     string
		lat, lon float64
		want     float64
	}{
		{"exact cell centre", 40.5, -74.5, 5},
		{"nearest rounds down", 40.6, -74.4, 5},
		{"nearest rounds up", 40.9, -74.1, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractPoint(f, tt.lat, tt.lon)
			if err != nil {
				t.Fatalf("ExtractPoint: %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractPoint(%v, %v) = %v, want %v", tt.lat, tt.lon, got, tt.want)
			}
		})
	}
}

func TestExtractPointProjectedExactCell(t *testing.T) {
	lat2d := make([][]float64, 10)
	lon2d := make([][]float64, 10)
	values := make([][]float64, 10)
	for i := 0; i < 10; i++ {
		lat2d[i] = make([]float64, 10)
		lon2d[i] = make([]float64, 10)
		values[i] = make([]float64, 10)
		for j := 0; j < 10; j++ {
			lat2d[i][j] = 30.0 + float64(i)*0.03
			lon2d[i][j] = -90.0 + float64(j)*0.03
			values[i][j] = float64(i*10 + j)
		}
	}
	f := NewProjected(lat2d, lon2d, values)

	// Scenario S6: query at the exact centre of cell (i=5, j=7).
	got, err := ExtractPoint(f, lat2d[5][7], lon2d[5][7])
	if err != nil {
		t.Fatalf("ExtractPoint: %v", err)
	}
	if got != values[5][7] {
		t.Errorf("ExtractPoint at exact cell centre = %v, want %v", got, values[5][7])
	}
}

func TestExtractPointProjectedNaNHandling(t *testing.T) {
	lat2d := [][]float64{{10, 10}, {11, 11}}
	lon2d := [][]float64{{20, 21}, {20, 21}}
	values := [][]float64{{math.NaN(), 2}, {3, 4}}
	f := NewProjected(lat2d, lon2d, values)

	// Nearest to (10, 20) is the NaN cell; it's still the valid nearest
	// candidate since nothing else is closer.
	got, err := ExtractPoint(f, 10, 20)
	if err != nil {
		t.Fatalf("ExtractPoint: %v", err)
	}
	if !math.IsNaN(got) {
		t.Errorf("ExtractPoint(10,20) = %v, want NaN", got)
	}
}

func TestMakeAxis(t *testing.T) {
	axis := MakeAxis(0, 1, 0.25)
	want := []float64{0, 0.25, 0.5, 0.75}
	if len(axis) != len(want) {
		t.Fatalf("len(axis) = %d, want %d", len(axis), len(want))
	}
	for i := range want {
		if math.Abs(axis[i]-want[i]) > 1e-9 {
			t.Errorf("axis[%d] = %v, want %v", i, axis[i], want[i])
		}
	}
}

func TestCommonBBoxIntersection(t *testing.T) {
	a := NewRegular([]float64{10, 20, 30}, []float64{-80, -70, -60}, [][]float64{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}})
	b := NewRegular([]float64{15, 25, 35}, []float64{-75, -65, -55}, [][]float64{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}})

	box, err := CommonBBox([]*Field{a, b})
	if err != nil {
		t.Fatalf("CommonBBox: %v", err)
	}
	if box.MinLat != 15 || box.MaxLat != 30 || box.MinLon != -75 || box.MaxLon != -60 {
		t.Errorf("CommonBBox = %+v, want {15 30 -75 -60}", box)
	}
}

func TestRegridToRegularProjected(t *testing.T) {
	lat2d := [][]float64{{10, 10}, {10.5, 10.5}}
	lon2d := [][]float64{{20, 20.5}, {20, 20.5}}
	values := [][]float64{{1, 2}, {3, 4}}
	f := NewProjected(lat2d, lon2d, values)

	out, err := RegridToRegular(f, []float64{10, 10.5}, []float64{20, 20.5})
	if err != nil {
		t.Fatalf("RegridToRegular: %v", err)
	}
	if out.Shape != Regular {
		t.Fatalf("regridded field shape = %v, want Regular", out.Shape)
	}
	if out.Values[0][0] != 1 || out.Values[1][1] != 4 {
		t.Errorf("regridded values = %+v", out.Values)
	}
}

func TestInvalidGrid(t *testing.T) {
	f := &Field{}
	if _, err := ExtractPoint(f, 0, 0); err != ErrInvalidGrid {
		t.Errorf("ExtractPoint on empty field: err = %v, want ErrInvalidGrid", err)
	}
}
