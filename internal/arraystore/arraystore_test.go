package arraystore

import (
	"testing"
	"time"

	"github.com/synopticspread/core/internal/kernel"
)

func TestPutGetRegularField(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	field := kernel.NewRegular([]float64{10, 10.25}, []float64{-80, -79.75}, [][]float64{{1, 2}, {3, 4}})
	initTime := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)

	handle, err := s.Put(initTime, "mslp", 6, field)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(handle)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Shape != kernel.Regular {
		t.Errorf("Shape = %v, want Regular", got.Shape)
	}
	if got.Values[1][1] != 4 {
		t.Errorf("Values[1][1] = %v, want 4", got.Values[1][1])
	}
	if got.LatAxis[1] != 10.25 {
		t.Errorf("LatAxis[1] = %v, want 10.25", got.LatAxis[1])
	}
}

func TestPutGetProjectedField(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	lat2d := [][]float64{{40.0, 40.1}, {40.2, 40.3}}
	lon2d := [][]float64{{-75.0, -74.9}, {-74.8, -74.7}}
	values := [][]float64{{1, 2}, {3, 4}}
	field := kernel.NewProjected(lat2d, lon2d, values)
	initTime := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)

	handle, err := s.Put(initTime, "wind_speed", 24, field)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(handle)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Shape != kernel.Projected {
		t.Errorf("Shape = %v, want Projected", got.Shape)
	}
	if got.Lat2D[1][1] != 40.3 {
		t.Errorf("Lat2D[1][1] = %v, want 40.3", got.Lat2D[1][1])
	}
}

func TestGetMissingHandle(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Get("divergence/2026080300/mslp/fhr006.bin.gz")
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDropTreeRemovesAllLeadHours(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	field := kernel.NewRegular([]float64{0}, []float64{0}, [][]float64{{1}})
	initTime := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)

	h1, err := s.Put(initTime, "precip", 6, field)
	if err != nil {
		t.Fatalf("Put 1: %v", err)
	}
	h2, err := s.Put(initTime, "mslp", 12, field)
	if err != nil {
		t.Fatalf("Put 2: %v", err)
	}

	if err := s.DropTree(initTime); err != nil {
		t.Fatalf("DropTree: %v", err)
	}

	if _, err := s.Get(h1); err != ErrNotFound {
		t.Errorf("h1 still present after DropTree")
	}
	if _, err := s.Get(h2); err != ErrNotFound {
		t.Errorf("h2 still present after DropTree")
	}
}
