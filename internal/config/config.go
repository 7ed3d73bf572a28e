// Package config loads the service's settings from environment variables,
// following couchcryptid-storm-data-etl-service's internal/config pattern
// (EnvOrDefault-style helpers, one Load() entry point, required-field
// validation). cmd/ingestd is an unattended daemon with no CLI flags; every
// setting is read from the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/synopticspread/core/internal/models"
)

// Config holds every setting the ingestion daemon needs, populated from
// environment variables with defaults applied where unset (spec §6).
type Config struct {
	DatabasePath     string
	ArrayStorePath   string
	SchedulerEnabled bool
	MonitorPoints    []models.MonitorPoint
	AllowedOrigins   []string
	FetchTimeout     time.Duration
	JobDeadline      time.Duration
	LogLevel         string
	LogFormat        string

	GFSBaseURL   string
	NAMBaseURL   string
	ECMWFBaseURL string
	HRRRBaseURL  string
	AIGFSBaseURL string
	RRFSBaseURL  string

	AlertWebhookURL string
}

// Load reads configuration from the environment, applying the defaults spec
// §6 names and validating required fields.
func Load() (*Config, error) {
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "10m")
	if err != nil {
		return nil, err
	}
	jobDeadline, err := parseDuration("JOB_DEADLINE", "30m")
	if err != nil {
		return nil, err
	}

	points, err := parseMonitorPoints(envOrDefault("MONITOR_POINTS", defaultMonitorPointsJSON))
	if err != nil {
		return nil, fmt.Errorf("parse MONITOR_POINTS: %w", err)
	}
	if len(points) == 0 {
		return nil, errors.New("MONITOR_POINTS must name at least one point")
	}

	cfg := &Config{
		DatabasePath:     envOrDefault("DATABASE_PATH", "data/synopticspread.db"),
		ArrayStorePath:   envOrDefault("ARRAYSTORE_PATH", "data/arrays"),
		SchedulerEnabled: envOrDefault("SCHEDULER_ENABLED", "true") == "true",
		MonitorPoints:    points,
		AllowedOrigins:   parseCSV(envOrDefault("ALLOWED_ORIGINS", "*")),
		FetchTimeout:     fetchTimeout,
		JobDeadline:      jobDeadline,
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("LOG_FORMAT", "json"),

		GFSBaseURL:   envOrDefault("GFS_BASE_URL", "https://nomads.ncep.noaa.gov/pub/data/nccf/com/gfs/prod"),
		NAMBaseURL:   envOrDefault("NAM_BASE_URL", "https://nomads.ncep.noaa.gov/pub/data/nccf/com/nam/prod"),
		ECMWFBaseURL: envOrDefault("ECMWF_BASE_URL", "https://data.ecmwf.int/forecasts"),
		HRRRBaseURL:  envOrDefault("HRRR_BASE_URL", "https://nomads.ncep.noaa.gov/pub/data/nccf/com/hrrr/prod"),
		AIGFSBaseURL: envOrDefault("AIGFS_BASE_URL", "https://noaa-oar-mlwp-data.s3.amazonaws.com"),
		RRFSBaseURL:  envOrDefault("RRFS_BASE_URL", "https://noaa-rrfs-pds.s3.amazonaws.com"),

		AlertWebhookURL: os.Getenv("ALERT_WEBHOOK_URL"),
	}

	if cfg.DatabasePath == "" {
		return nil, errors.New("DATABASE_PATH is required")
	}
	if cfg.ArrayStorePath == "" {
		return nil, errors.New("ARRAYSTORE_PATH is required")
	}
	if cfg.FetchTimeout <= 0 {
		return nil, errors.New("FETCH_TIMEOUT must be positive")
	}
	if cfg.JobDeadline <= 0 {
		return nil, errors.New("JOB_DEADLINE must be positive")
	}

	return cfg, nil
}

const defaultMonitorPointsJSON = `[{"lat":40.7,"lon":-74.0,"label":"New York City"},{"lat":41.85,"lon":-87.65,"label":"Chicago"},{"lat":34.05,"lon":-118.25,"label":"Los Angeles"}]`

func parseMonitorPoints(raw string) ([]models.MonitorPoint, error) {
	var points []models.MonitorPoint
	if err := json.Unmarshal([]byte(raw), &points); err != nil {
		return nil, err
	}
	return points, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := envOrDefault(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func parseCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
