package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/synopticspread/core/internal/kernel"
)

// hourDecoder decodes one model's data for a single lead hour. Implementations
// live in gfs.go, nam.go, ecmwf.go, hrrr.go, aigfs.go, rrfs.go.
type hourDecoder func(ctx context.Context, initTime time.Time, leadHour int, variables []string) (kernel.FieldSet, error)

// runFetchLoop implements the shared per-hour isolation and lazy-sequence
// streaming every concrete fetcher shares (spec §4.2): iterate lead hours in
// ascending order, catch and log per-hour failures without propagating them,
// skip hours that didn't decode, and only report a fetcher-level error when
// nothing decoded at all.
func runFetchLoop(ctx context.Context, logger *slog.Logger, modelName string, initTime time.Time, variables []string, leadHours []int, decode hourDecoder) (<-chan LeadHourFields, <-chan error) {
	out := make(chan LeadHourFields)
	errc := make(chan error, 1)

	sorted := append([]int(nil), leadHours...)
	sort.Ints(sorted)

	go func() {
		var terminal error
		defer func() {
			close(out)
			if terminal != nil {
				errc <- terminal
			}
			close(errc)
		}()

		scratch, err := newScratchDir(modelName)
		if err != nil {
			terminal = fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
			return
		}
		defer func() {
			if releaseErr := scratch.Release(); releaseErr != nil {
				logger.Warn("scratch dir release failed", "model", modelName, "error", releaseErr)
			}
		}()

		decoded := 0
		var lastErr error

		for _, fhr := range sorted {
			if ctx.Err() != nil {
				break
			}

			fields, err := decode(ctx, initTime, fhr, variables)
			if err != nil {
				logger.Warn("lead hour skipped",
					"model", modelName, "init_time", initTime, "lead_hour", fhr, "error", err)
				lastErr = err
				continue
			}

			decoded++
			select {
			case out <- LeadHourFields{LeadHour: fhr, Fields: fields}:
			case <-ctx.Done():
				return
			}
		}

		if decoded == 0 {
			if lastErr == nil {
				lastErr = ErrSourceUnavailable
			}
			terminal = classifyFetcherError(lastErr)
		}
	}()

	return out, errc
}

// classifyFetcherError maps an underlying per-hour error to one of the three
// fetcher-level taxonomy errors that may propagate (spec §4.2/§7): the first
// three of SourceUnavailable/DecodeFailure/UnexpectedSchema, raised only when
// no lead hour decoded successfully.
func classifyFetcherError(err error) error {
	switch {
	case errors.Is(err, ErrDecodeFailure):
		return ErrDecodeFailure
	case errors.Is(err, ErrUnexpectedSchema):
		return ErrUnexpectedSchema
	default:
		return ErrSourceUnavailable
	}
}
