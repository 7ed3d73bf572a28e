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

// gfsSearch maps canonical variable names to the GRIB2 message description
// substrings NOMADS' .idx files carry for GFS pgrb2.0p25, ported from
// original_source/backend/app/services/ingestion/gfs.py's GFS_SEARCH table.
var gfsSearch = map[string]string{
	"precip":  ":APCP:surface:0-",
	"wind_u":  ":UGRD:10 m above ground",
	"wind_v":  ":VGRD:10 m above ground",
	"mslp":    ":PRMSL:mean sea level",
	"hgt_500": ":HGT:500 mb",
}

// GFSDefaultLeadHours is 0-120h in 6h steps (spec §4.2).
var GFSDefaultLeadHours = leadHourRange(0, 120, 6)

func leadHourRange(start, end, step int) []int {
	var hours []int
	for h := start; h <= end; h += step {
		hours = append(hours, h)
	}
	return hours
}

// GFSFetcher fetches the 0.25° regular NOMADS GFS pgrb2.0p25 product.
type GFSFetcher struct {
	BaseURL    string // e.g. "https://nomads.ncep.noaa.gov/pub/data/nccf/com/gfs/prod"
	Client     *http.Client
	Logger     *slog.Logger
	FetchTimeout time.Duration
}

func NewGFSFetcher(baseURL string, fetchTimeout time.Duration, logger *slog.Logger) *GFSFetcher {
	return &GFSFetcher{
		BaseURL:      baseURL,
		Client:       newHTTPClient(fetchTimeout),
		Logger:       logger,
		FetchTimeout: fetchTimeout,
	}
}

func (f *GFSFetcher) Name() string { return "GFS" }

func (f *GFSFetcher) Fetch(ctx context.Context, initTime time.Time, variables []string, leadHours []int) (<-chan LeadHourFields, <-chan error) {
	initTime = NormalizeInitTime(initTime)
	return runFetchLoop(ctx, f.Logger, f.Name(), initTime, variables, leadHours, f.fetchHour)
}

func (f *GFSFetcher) fetchHour(ctx context.Context, initTime time.Time, leadHour int, variables []string) (kernel.FieldSet, error) {
	cycleStr := initTime.Format("20060102")
	hourStr := initTime.Format("15")
	dataURL := fmt.Sprintf("%s/gfs.%s/%s/atmos/gfs.t%sz.pgrb2.0p25.f%03d", f.BaseURL, cycleStr, hourStr, hourStr, leadHour)
	idxURL := dataURL + ".idx"

	entries, err := fetchIdx(ctx, f.Client, idxURL)
	if err != nil {
		return nil, err
	}

	fields := kernel.FieldSet{}
	var windU, windV *kernel.Field

	for _, v := range variables {
		switch v {
		case "wind_speed":
			u, err := fetchVariableMessage(ctx, f.Client, entries, dataURL, gfsSearch["wind_u"])
			if err != nil {
				return nil, err
			}
			vf, err := fetchVariableMessage(ctx, f.Client, entries, dataURL, gfsSearch["wind_v"])
			if err != nil {
				return nil, err
			}
			windU, windV = u, vf
		default:
			key, ok := gfsSearch[v]
			if !ok {
				return nil, fmt.Errorf("%w: no GFS search key for variable %q", ErrUnexpectedSchema, v)
			}
			field, err := fetchVariableMessage(ctx, f.Client, entries, dataURL, key)
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

// fetchVariableMessage locates a variable's message in the idx, downloads
// its byte range, and decodes it.
func fetchVariableMessage(ctx context.Context, client *http.Client, entries []idxEntry, dataURL, searchKey string) (*kernel.Field, error) {
	start, end, found := searchIdxByteRange(entries, func(desc string) bool {
		return strings.Contains(desc, searchKey)
	})
	if !found {
		return nil, fmt.Errorf("%w: no message matching %q", ErrUnexpectedSchema, searchKey)
	}

	body, _, err := getWithRetry(ctx, client, dataURL, map[string]string{"Range": rangeHeader(start, end)})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	return decodeGrib2Message(body)
}
