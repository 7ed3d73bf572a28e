package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/synopticspread/core/internal/kernel"
)

// hrrrSearch maps canonical variable names to HRRR .idx description
// substrings, ported from
// original_source/backend/app/services/ingestion/hrrr.py's HRRR_SEARCH
// table. Like NAM, wind_speed has no entry: U and V share one byte range.
var hrrrSearch = map[string]string{
	"precip":  ":APCP:surface:",
	"mslp":    ":MSLMA:mean sea level",
	"hgt_500": ":HGT:500 mb",
}

// HRRRDefaultLeadHours is 0-48h in 6h steps (spec §4.2).
var HRRRDefaultLeadHours = leadHourRange(0, 48, 6)

// HRRRFetcher fetches the 3-km Lambert Conformal HRRR product.
type HRRRFetcher struct {
	BaseURL      string // e.g. "https://nomads.ncep.noaa.gov/pub/data/nccf/com/hrrr/prod"
	Client       *http.Client
	Logger       *slog.Logger
	FetchTimeout time.Duration
}

func NewHRRRFetcher(baseURL string, fetchTimeout time.Duration, logger *slog.Logger) *HRRRFetcher {
	return &HRRRFetcher{
		BaseURL:      baseURL,
		Client:       newHTTPClient(fetchTimeout),
		Logger:       logger,
		FetchTimeout: fetchTimeout,
	}
}

func (f *HRRRFetcher) Name() string { return "HRRR" }

func (f *HRRRFetcher) Fetch(ctx context.Context, initTime time.Time, variables []string, leadHours []int) (<-chan LeadHourFields, <-chan error) {
	initTime = NormalizeInitTime(initTime)
	return runFetchLoop(ctx, f.Logger, f.Name(), initTime, variables, leadHours, f.fetchHour)
}

func (f *HRRRFetcher) fetchHour(ctx context.Context, initTime time.Time, leadHour int, variables []string) (kernel.FieldSet, error) {
	cycleStr := initTime.Format("20060102")
	hourStr := initTime.Format("15")
	dataURL := fmt.Sprintf("%s/hrrr.%s/conus/hrrr.t%sz.wrfsfcf%02d.grib2", f.BaseURL, cycleStr, hourStr, leadHour)
	idxURL := dataURL + ".idx"

	entries, err := fetchIdx(ctx, f.Client, idxURL)
	if err != nil {
		return nil, err
	}

	fields := kernel.FieldSet{}

	for _, v := range variables {
		if v == "wind_speed" {
			u, vf, err := fetchWindUVDual(ctx, f.Client, entries, dataURL)
			if err != nil {
				return nil, err
			}
			ws, err := windSpeedField(u, vf)
			if err != nil {
				return nil, err
			}
			fields[v] = ws
			continue
		}

		key, ok := hrrrSearch[v]
		if !ok {
			return nil, fmt.Errorf("%w: no HRRR search key for variable %q", ErrUnexpectedSchema, v)
		}
		field, err := fetchVariableMessage(ctx, f.Client, entries, dataURL, key)
		if err != nil {
			return nil, err
		}
		fields[v] = field
	}

	return fields, nil
}
