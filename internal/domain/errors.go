package domain

import "errors"

// Error taxonomy. Row-level errors (ErrUnparseablePeriod,
// ErrMalformedSourceNode) are logged and skipped so one bad record never
// blocks an ingestion run. Batch-level and safety errors (ErrUnsafeQuery,
// ErrStorageUnavailable) always abort and are surfaced to the caller.
var (
	// ErrUnparseablePeriod indicates a period token that matches no known
	// representation (month-name label, ISO start date, column metadata).
	ErrUnparseablePeriod = errors.New("unparseable period")

	// ErrMalformedSourceNode indicates a source node whose shape does not
	// line up with its surroundings, e.g. a row with a value-cell count that
	// does not match the period header list.
	ErrMalformedSourceNode = errors.New("malformed source node")

	// ErrUnsafeQuery indicates a candidate query that failed read-only or
	// statement-shape validation. The query is rejected whole, never
	// auto-repaired.
	ErrUnsafeQuery = errors.New("unsafe query")

	// ErrStorageUnavailable indicates the storage collaborator could not
	// serve a call. Ingestion aborts the batch rather than committing
	// partial data; retry policy belongs to the caller.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
