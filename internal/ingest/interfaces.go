package ingest

import (
	"context"

	"github.com/avelkov/finfacts/internal/domain"
)

// Batch lifecycle statuses. A batch starts RUNNING, ends COMMITTED or
// FAILED, and an older committed batch of the same source becomes SUPERSEDED
// when a newer one commits. Queries only ever see COMMITTED facts, so a
// failed batch never leaks partial data.
const (
	BatchStatusRunning    = "RUNNING"
	BatchStatusCommitted  = "COMMITTED"
	BatchStatusFailed     = "FAILED"
	BatchStatusSuperseded = "SUPERSEDED"
)

// Batch is one ingestion generation of a single source document.
type Batch struct {
	ID          string
	Source      string
	Fingerprint string
	Status      string
	FactCount   int
}

// FactStore is the storage collaborator the pipeline writes through. It is
// defined here, on the consumer side, so tests can substitute an in-memory
// implementation.
type FactStore interface {
	// FindBatchByFingerprint returns the committed batch with the given
	// fingerprint, or nil when none exists.
	FindBatchByFingerprint(ctx context.Context, fingerprint string) (*Batch, error)

	StartBatch(ctx context.Context, source, fingerprint string) (*Batch, error)
	InsertFacts(ctx context.Context, batchID string, facts []domain.FinancialFact) error
	CommitBatch(ctx context.Context, batchID string, factCount int) error
	FailBatch(ctx context.Context, batchID string, reason string) error

	// SupersedeBatches marks every committed batch of the source other than
	// keepBatchID as superseded.
	SupersedeBatches(ctx context.Context, source, keepBatchID string) error

	// CountFacts reports the number of facts visible to queries, used by the
	// first-run emptiness gate.
	CountFacts(ctx context.Context) (int64, error)
}

// Invalidator is notified after a batch commits so query-time caches drop
// state derived from the previous generation.
type Invalidator interface {
	Invalidate()
}
