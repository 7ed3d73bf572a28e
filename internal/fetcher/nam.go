package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/synopticspread/core/internal/kernel"
)

// namSearch maps canonical variable names to NAM CONUSNEST .idx description
// substrings, ported from
// original_source/backend/app/services/ingestion/nam.py's NAM_SEARCH table.
// wind_speed has no entry of its own: U and V share one byte range and are
// located via windUVKey/windUVMatch below.
var namSearch = map[string]string{
	"precip":  ":APCP:surface:",
	"mslp":    ":PRMSL:mean sea level",
	"hgt_500": ":HGT:500 mb",
}

// NAMDefaultLeadHours is 0-72h in 6h steps (spec §4.2).
var NAMDefaultLeadHours = leadHourRange(0, 72, 6)

// NAMFetcher fetches the 3-km Lambert Conformal CONUSNEST product. Its
// fields carry 2-D auxiliary lat/lon coordinates (kernel.Projected) because
// the projection is not expressible as independent lat/lon axes.
type NAMFetcher struct {
	BaseURL      string // e.g. "https://nomads.ncep.noaa.gov/pub/data/nccf/com/nam/prod"
	Client       *http.Client
	Logger       *slog.Logger
	FetchTimeout time.Duration
}

func NewNAMFetcher(baseURL string, fetchTimeout time.Duration, logger *slog.Logger) *NAMFetcher {
	return &NAMFetcher{
		BaseURL:      baseURL,
		Client:       newHTTPClient(fetchTimeout),
		Logger:       logger,
		FetchTimeout: fetchTimeout,
	}
}

func (f *NAMFetcher) Name() string { return "NAM" }

func (f *NAMFetcher) Fetch(ctx context.Context, initTime time.Time, variables []string, leadHours []int) (<-chan LeadHourFields, <-chan error) {
	initTime = NormalizeInitTime(initTime)
	return runFetchLoop(ctx, f.Logger, f.Name(), initTime, variables, leadHours, f.fetchHour)
}

func (f *NAMFetcher) fetchHour(ctx context.Context, initTime time.Time, leadHour int, variables []string) (kernel.FieldSet, error) {
	cycleStr := initTime.Format("20060102")
	hourStr := initTime.Format("15")
	dataURL := fmt.Sprintf("%s/nam.%s/nam.t%sz.conusnest.hiresf%02d.tm00.grib2", f.BaseURL, cycleStr, hourStr, leadHour)
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

		key, ok := namSearch[v]
		if !ok {
			return nil, fmt.Errorf("%w: no NAM search key for variable %q", ErrUnexpectedSchema, v)
		}
		field, err := fetchVariableMessage(ctx, f.Client, entries, dataURL, key)
		if err != nil {
			return nil, err
		}
		fields[v] = field
	}

	return fields, nil
}

// fetchWindUVDual locates the single byte range carrying both the UGRD and
// VGRD 10-m messages and decodes them together (spec §4.2: NAM CONUSNEST and
// HRRR pack U and V in the same byte range, so they must be fetched as one
// Range request rather than two).
func fetchWindUVDual(ctx context.Context, client *http.Client, entries []idxEntry, dataURL string) (u, v *kernel.Field, err error) {
	start, end, found := searchIdxByteRange(entries, windUVMatch)
	if !found {
		return nil, nil, fmt.Errorf("%w: no UGRD/VGRD message pair found", ErrUnexpectedSchema)
	}

	body, _, err := getWithRetry(ctx, client, dataURL, map[string]string{"Range": rangeHeader(start, end)})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	return decodeGrib2DualMessage(body)
}

func windUVMatch(desc string) bool {
	return strings.Contains(desc, ":UGRD:10 m above ground") || strings.Contains(desc, ":VGRD:10 m above ground")
}
