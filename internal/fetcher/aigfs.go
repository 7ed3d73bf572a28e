package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/synopticspread/core/internal/kernel"
)

// aigfsSfcSearch and aigfsPresSearch map canonical variable names to AIGFS
// .idx description substrings, ported from
// original_source/backend/app/services/ingestion/aigfs.py's AIGFS_SFC_SEARCH
// and AIGFS_PRES_SEARCH tables. AIGFS is supplemented from original_source:
// it is not named in the distilled spec, but its ingestion mirrors GFS
// closely enough (same 0.25° regular grid, same NOMADS-style .idx mechanism)
// to reuse GFS's fetchHour pattern, aside from its 00Z/12Z-only cycle
// schedule and its surface/pressure-level product split. AIGFS does NOT
// produce precipitation; precip is filtered out of the requested variable
// list with a warning rather than failing the fetch.
var aigfsSfcSearch = map[string]string{
	"wind_u": ":UGRD:10 m above ground",
	"wind_v": ":VGRD:10 m above ground",
	"mslp":   ":PRMSL:mean sea level",
}

var aigfsPresSearch = map[string]string{
	"hgt_500": ":HGT:500 mb",
}

// AIGFSDefaultLeadHours is 0-384h in 6h steps (spec §4.2 supplement).
var AIGFSDefaultLeadHours = leadHourRange(0, 384, 6)

// AIGFSPublicationDelay is the approximate delay between an AIGFS cycle's
// nominal init time and the availability of its first lead hour, per
// original_source/backend/app/services/ingestion/aigfs.py. The scheduler
// uses this to offset its polling window.
const AIGFSPublicationDelay = 5 * time.Hour

// AIGFSCycleHours restricts AIGFS to 00Z and 12Z; other hours are not
// published.
var AIGFSCycleHours = map[int]bool{0: true, 12: true}

// AIGFSFetcher fetches the 0.25° regular AI-model forecast product.
type AIGFSFetcher struct {
	BaseURL      string
	Client       *http.Client
	Logger       *slog.Logger
	FetchTimeout time.Duration
}

func NewAIGFSFetcher(baseURL string, fetchTimeout time.Duration, logger *slog.Logger) *AIGFSFetcher {
	return &AIGFSFetcher{
		BaseURL:      baseURL,
		Client:       newHTTPClient(fetchTimeout),
		Logger:       logger,
		FetchTimeout: fetchTimeout,
	}
}

func (f *AIGFSFetcher) Name() string { return "AIGFS" }

func (f *AIGFSFetcher) Fetch(ctx context.Context, initTime time.Time, variables []string, leadHours []int) (<-chan LeadHourFields, <-chan error) {
	initTime = NormalizeInitTime(initTime)
	if !AIGFSCycleHours[initTime.Hour()] {
		out := make(chan LeadHourFields)
		errc := make(chan error, 1)
		close(out)
		errc <- fmt.Errorf("%w: AIGFS only publishes 00Z and 12Z cycles, got %02dZ", ErrUnexpectedSchema, initTime.Hour())
		close(errc)
		return out, errc
	}
	return runFetchLoop(ctx, f.Logger, f.Name(), initTime, variables, leadHours, f.fetchHour)
}

func (f *AIGFSFetcher) fetchHour(ctx context.Context, initTime time.Time, leadHour int, variables []string) (kernel.FieldSet, error) {
	variables = filterOutPrecip(f.Logger, "AIGFS", variables)

	cycleStr := initTime.Format("20060102")
	hourStr := initTime.Format("15")
	sfcURL := fmt.Sprintf("%s/aigfs.%s/%s/aigfs.t%sz.sfc.0p25.f%03d", f.BaseURL, cycleStr, hourStr, hourStr, leadHour)
	presURL := fmt.Sprintf("%s/aigfs.%s/%s/aigfs.t%sz.pres.0p25.f%03d", f.BaseURL, cycleStr, hourStr, hourStr, leadHour)

	var sfcEntries, presEntries []idxEntry
	var err error

	fields := kernel.FieldSet{}
	var windU, windV *kernel.Field

	for _, v := range variables {
		switch v {
		case "wind_speed":
			if sfcEntries == nil {
				sfcEntries, err = fetchIdx(ctx, f.Client, sfcURL+".idx")
				if err != nil {
					return nil, err
				}
			}
			u, err := fetchVariableMessage(ctx, f.Client, sfcEntries, sfcURL, aigfsSfcSearch["wind_u"])
			if err != nil {
				return nil, err
			}
			vf, err := fetchVariableMessage(ctx, f.Client, sfcEntries, sfcURL, aigfsSfcSearch["wind_v"])
			if err != nil {
				return nil, err
			}
			windU, windV = u, vf

		case "hgt_500":
			if presEntries == nil {
				presEntries, err = fetchIdx(ctx, f.Client, presURL+".idx")
				if err != nil {
					return nil, err
				}
			}
			field, err := fetchVariableMessage(ctx, f.Client, presEntries, presURL, aigfsPresSearch[v])
			if err != nil {
				return nil, err
			}
			fields[v] = field

		default:
			key, ok := aigfsSfcSearch[v]
			if !ok {
				return nil, fmt.Errorf("%w: no AIGFS search key for variable %q", ErrUnexpectedSchema, v)
			}
			if sfcEntries == nil {
				sfcEntries, err = fetchIdx(ctx, f.Client, sfcURL+".idx")
				if err != nil {
					return nil, err
				}
			}
			field, err := fetchVariableMessage(ctx, f.Client, sfcEntries, sfcURL, key)
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

// filterOutPrecip drops "precip" from variables with a warning, mirroring
// original_source/backend/app/services/ingestion/aigfs.py's variable filter
// for models that don't produce precipitation.
func filterOutPrecip(logger *slog.Logger, modelName string, variables []string) []string {
	out := make([]string, 0, len(variables))
	for _, v := range variables {
		if v == "precip" {
			logger.Warn("model does not produce precipitation, skipping", "model", modelName)
			continue
		}
		out = append(out, v)
	}
	return out
}
