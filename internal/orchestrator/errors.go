package orchestrator

import "errors"

// Error taxonomy (spec §7). DuplicateRun/ConcurrentRunInProgress are
// idempotency-enforced conflicts; StorageFailure wraps relational or
// array-store I/O that stops a run outright. PartialLeadHourFailure never
// propagates past IngestAndProcess — it is logged and counted, matching the
// spec's "internal, never surfaced" classification.
var (
	ErrDuplicateRun            = errors.New("orchestrator: a non-error run already exists for this model and init time")
	ErrConcurrentRunInProgress = errors.New("orchestrator: a run is already pending for this model and init time")
	ErrStorageFailure          = errors.New("orchestrator: storage failure")
	ErrNoModelFetcher          = errors.New("orchestrator: no fetcher registered for model")
	errPartialLeadHourFailure  = errors.New("orchestrator: partial lead hour failure")
)
