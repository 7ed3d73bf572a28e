package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/synopticspread/core/internal/kernel"
)

// ecmwfSearch maps canonical variable names to ECMWF IFS open-data .idx
// description substrings, ported from
// original_source/backend/app/services/ingestion/ecmwf.py's ECMWF_SEARCH
// table. ECMWF publishes surface variables and the 500 hPa level in separate
// files per lead hour; hgt_500 is fetched from the pressure-level file while
// everything else comes from the surface file.
var ecmwfSearch = map[string]string{
	"precip":  ":tp:",
	"wind_u":  ":10u:",
	"wind_v":  ":10v:",
	"mslp":    ":msl:",
	"hgt_500": ":gh:500:",
}

// ECMWFDefaultLeadHours is 0-120h in 6h steps (spec §4.2).
var ECMWFDefaultLeadHours = leadHourRange(0, 120, 6)

// ECMWFFetcher fetches the 0.25° regular IFS open-data product.
type ECMWFFetcher struct {
	BaseURL      string // e.g. "https://data.ecmwf.int/forecasts"
	Client       *http.Client
	Logger       *slog.Logger
	FetchTimeout time.Duration
}

func NewECMWFFetcher(baseURL string, fetchTimeout time.Duration, logger *slog.Logger) *ECMWFFetcher {
	return &ECMWFFetcher{
		BaseURL:      baseURL,
		Client:       newHTTPClient(fetchTimeout),
		Logger:       logger,
		FetchTimeout: fetchTimeout,
	}
}

func (f *ECMWFFetcher) Name() string { return "ECMWF" }

func (f *ECMWFFetcher) Fetch(ctx context.Context, initTime time.Time, variables []string, leadHours []int) (<-chan LeadHourFields, <-chan error) {
	initTime = NormalizeInitTime(initTime)
	return runFetchLoop(ctx, f.Logger, f.Name(), initTime, variables, leadHours, f.fetchHour)
}

func (f *ECMWFFetcher) fetchHour(ctx context.Context, initTime time.Time, leadHour int, variables []string) (kernel.FieldSet, error) {
	dateStr := initTime.Format("20060102")
	hourStr := initTime.Format("15")
	surfaceURL := fmt.Sprintf("%s/%s/%sz/ifs/0p25/oper/%s%s0000-%dh-oper-fc.grib2", f.BaseURL, dateStr, hourStr, dateStr, hourStr, leadHour)
	plevURL := fmt.Sprintf("%s/%s/%sz/ifs/0p25/oper/%s%s0000-%dh-plev-fc.grib2", f.BaseURL, dateStr, hourStr, dateStr, hourStr, leadHour)

	var surfaceEntries, plevEntries []idxEntry
	var err error

	fields := kernel.FieldSet{}
	var windU, windV *kernel.Field

	for _, v := range variables {
		switch v {
		case "hgt_500":
			if plevEntries == nil {
				plevEntries, err = fetchIdx(ctx, f.Client, plevURL+".idx")
				if err != nil {
					return nil, err
				}
			}
			field, err := fetchVariableMessage(ctx, f.Client, plevEntries, plevURL, ecmwfSearch[v])
			if err != nil {
				return nil, err
			}
			fields[v] = field

		case "wind_speed":
			if surfaceEntries == nil {
				surfaceEntries, err = fetchIdx(ctx, f.Client, surfaceURL+".idx")
				if err != nil {
					return nil, err
				}
			}
			u, err := fetchVariableMessage(ctx, f.Client, surfaceEntries, surfaceURL, ecmwfSearch["wind_u"])
			if err != nil {
				return nil, err
			}
			vf, err := fetchVariableMessage(ctx, f.Client, surfaceEntries, surfaceURL, ecmwfSearch["wind_v"])
			if err != nil {
				return nil, err
			}
			windU, windV = u, vf

		default:
			key, ok := ecmwfSearch[v]
			if !ok {
				return nil, fmt.Errorf("%w: no ECMWF search key for variable %q", ErrUnexpectedSchema, v)
			}
			if surfaceEntries == nil {
				surfaceEntries, err = fetchIdx(ctx, f.Client, surfaceURL+".idx")
				if err != nil {
					return nil, err
				}
			}
			field, err := fetchVariableMessage(ctx, f.Client, surfaceEntries, surfaceURL, key)
			if err != nil {
				return nil, err
			}
			fields[v] = field
		}
	}

	if windU != nil && windV != nil {
		ws, err := windSpeedField(windU, windV)
		if err != nil {
			return nil, err
		}
		fields["wind_speed"] = ws
	}

	return fields, nil
}
