package fetcher

import "errors"

// Failure taxonomy (spec §4.2, §7). SourceUnavailable, DecodeFailure, and
// UnexpectedSchema are raised only when no lead hour decoded successfully;
// Skipped never propagates past the per-hour boundary — it is logged and the
// hour is simply absent from the fetcher's output channel.
var (
	ErrSourceUnavailable = errors.New("fetcher: source unavailable")
	ErrDecodeFailure     = errors.New("fetcher: message decode failure")
	ErrUnexpectedSchema  = errors.New("fetcher: required variable missing from decoded schema")
	ErrSkipped           = errors.New("fetcher: lead hour skipped")
)
