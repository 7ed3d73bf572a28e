package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/synopticspread/core/internal/kernel"
)

// rrfsSearch maps canonical variable names to RRFS .idx description
// substrings, ported from
// original_source/backend/app/services/ingestion/rrfs.py's RRFS_SEARCH
// table. RRFS is supplemented from original_source: not named in the
// distilled spec, but is NOAA's convection-allowing successor to HRRR and
// shares its Lambert Conformal grid and dual-byte-range UV packing. RRFS
// uses MSLET (not PRMSL, and not HRRR's MSLMA) for mean sea-level pressure.
var rrfsSearch = map[string]string{
	"precip":  ":APCP:surface:",
	"mslp":    ":MSLET:mean sea level",
	"hgt_500": ":HGT:500 mb",
}

// RRFSDefaultLeadHours is 0-60h in 6h steps (spec §4.2 supplement).
var RRFSDefaultLeadHours = leadHourRange(0, 60, 6)

// RRFSCycleHours restricts RRFS to its four daily cycles.
var RRFSCycleHours = map[int]bool{0: true, 6: true, 12: true, 18: true}

// RRFSFetcher fetches the 3-km Lambert Conformal RRFS product.
type RRFSFetcher struct {
	BaseURL      string
	Client       *http.Client
	Logger       *slog.Logger
	FetchTimeout time.Duration
}

func NewRRFSFetcher(baseURL string, fetchTimeout time.Duration, logger *slog.Logger) *RRFSFetcher {
	return &RRFSFetcher{
		BaseURL:      baseURL,
		Client:       newHTTPClient(fetchTimeout),
		Logger:       logger,
		FetchTimeout: fetchTimeout,
	}
}

func (f *RRFSFetcher) Name() string { return "RRFS" }

func (f *RRFSFetcher) Fetch(ctx context.Context, initTime time.Time, variables []string, leadHours []int) (<-chan LeadHourFields, <-chan error) {
	initTime = NormalizeInitTime(initTime)
	if !RRFSCycleHours[initTime.Hour()] {
		out := make(chan LeadHourFields)
		errc := make(chan error, 1)
		close(out)
		errc <- fmt.Errorf("%w: RRFS only publishes 00/06/12/18Z cycles, got %02dZ", ErrUnexpectedSchema, initTime.Hour())
		close(errc)
		return out, errc
	}
	return runFetchLoop(ctx, f.Logger, f.Name(), initTime, variables, leadHours, f.fetchHour)
}

func (f *RRFSFetcher) fetchHour(ctx context.Context, initTime time.Time, leadHour int, variables []string) (kernel.FieldSet, error) {
	cycleStr := initTime.Format("20060102")
	hourStr := initTime.Format("15")
	dataURL := fmt.Sprintf("%s/rrfs.%s/%s/rrfs.t%sz.prslev.f%03d.grib2", f.BaseURL, cycleStr, hourStr, hourStr, leadHour)
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

		key, ok := rrfsSearch[v]
		if !ok {
			return nil, fmt.Errorf("%w: no RRFS search key for variable %q", ErrUnexpectedSchema, v)
		}
		field, err := fetchVariableMessage(ctx, f.Client, entries, dataURL, key)
		if err != nil {
			return nil, err
		}
		fields[v] = field
	}

	return fields, nil
}
