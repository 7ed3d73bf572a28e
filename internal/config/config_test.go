package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "DATABASE_PATH", "ARRAYSTORE_PATH", "FETCH_TIMEOUT", "JOB_DEADLINE", "MONITOR_POINTS", "SCHEDULER_ENABLED")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabasePath != "data/synopticspread.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.FetchTimeout != 10*time.Minute {
		t.Errorf("FetchTimeout = %v, want 10m", cfg.FetchTimeout)
	}
	if !cfg.SchedulerEnabled {
		t.Error("SchedulerEnabled should default to true")
	}
	if len(cfg.MonitorPoints) == 0 {
		t.Error("expected default monitor points")
	}
}

func TestLoadRejectsInvalidFetchTimeout(t *testing.T) {
	clearEnv(t, "FETCH_TIMEOUT")
	os.Setenv("FETCH_TIMEOUT", "not-a-duration")
	defer os.Unsetenv("FETCH_TIMEOUT")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid FETCH_TIMEOUT")
	}
}

func TestLoadRejectsEmptyMonitorPoints(t *testing.T) {
	clearEnv(t, "MONITOR_POINTS")
	os.Setenv("MONITOR_POINTS", "[]")
	defer os.Unsetenv("MONITOR_POINTS")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for empty MONITOR_POINTS")
	}
}

func TestParseCSVTrimsAndDrops(t *testing.T) {
	got := parseCSV(" a, b ,,c")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
