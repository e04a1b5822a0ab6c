// Package ingest turns raw financial report documents into normalized fact
// rows. Two source shapes are supported, a column/row report and a
// category/line-item tree; both feed the same validation and idempotent
// batch-write path.
package ingest

import (
	"context"
	"fmt"

	"github.com/avelkov/finfacts/internal/domain"
	"github.com/avelkov/finfacts/internal/logger"
)

// SourceDocument is one raw report handed to the pipeline. Source selects
// the adapter and marks the lineage of every fact the document produces.
type SourceDocument struct {
	Source string
	Raw    []byte
}

// Result summarizes one ingestion run across all supplied documents.
type Result struct {
	FactsWritten int
	Skipped      int
	Warnings     []string
}

type Pipeline struct {
	store        FactStore
	invalidators []Invalidator
}

func NewPipeline(store FactStore, invalidators ...Invalidator) *Pipeline {
	return &Pipeline{store: store, invalidators: invalidators}
}

// IngestIfEmpty runs ingestion only when no facts are visible yet. This is
// the startup gate: a restarted process does not re-ingest, while a fresh
// deployment seeds itself.
func (p *Pipeline) IngestIfEmpty(ctx context.Context, docs []SourceDocument) (*Result, error) {
	count, err := p.store.CountFacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("IngestIfEmpty: counting facts: %w", err)
	}
	if count > 0 {
		log := logger.FromContext(ctx)
		log.Info().Int64("facts", count).Msg("facts already present, skipping ingestion")
		return &Result{Skipped: len(docs)}, nil
	}
	return p.IngestSources(ctx, docs)
}

// IngestSources ingests each document as its own batch. A document whose
// fingerprint matches an already committed batch is skipped entirely; a new
// fingerprint becomes a new generation that supersedes prior committed
// batches of the same source once it commits. A batch either commits whole
// or is marked failed, never partially.
func (p *Pipeline) IngestSources(ctx context.Context, docs []SourceDocument) (*Result, error) {
	result := &Result{}
	for _, doc := range docs {
		if err := p.ingestOne(ctx, doc, result); err != nil {
			return result, fmt.Errorf("IngestSources: source %s: %w", doc.Source, err)
		}
	}

	if result.FactsWritten > 0 {
		for _, inv := range p.invalidators {
			inv.Invalidate()
		}
	}
	return result, nil
}

func (p *Pipeline) ingestOne(ctx context.Context, doc SourceDocument, result *Result) error {
	log := logger.FromContext(ctx).With().Str("source", doc.Source).Logger()

	fingerprint := Fingerprint(doc.Raw)
	existing, err := p.store.FindBatchByFingerprint(ctx, fingerprint)
	if err != nil {
		return fmt.Errorf("looking up fingerprint: %w", err)
	}
	if existing != nil {
		log.Info().Str("batch_id", existing.ID).Msg("fingerprint already committed, skipping")
		result.Skipped++
		return nil
	}

	facts, warnings, err := p.runAdapter(ctx, doc)
	if err != nil {
		return fmt.Errorf("adapting document: %w", err)
	}
	result.Warnings = append(result.Warnings, warnings...)

	cleaned, vwarnings, err := ValidateFacts(ctx, facts)
	result.Warnings = append(result.Warnings, vwarnings...)
	if err != nil {
		return fmt.Errorf("validating facts: %w", err)
	}

	batch, err := p.store.StartBatch(ctx, doc.Source, fingerprint)
	if err != nil {
		return fmt.Errorf("starting batch: %w", err)
	}

	if err := p.store.InsertFacts(ctx, batch.ID, cleaned); err != nil {
		if failErr := p.store.FailBatch(ctx, batch.ID, err.Error()); failErr != nil {
			log.Error().Err(failErr).Str("batch_id", batch.ID).Msg("marking batch failed")
		}
		return fmt.Errorf("inserting facts: %w", err)
	}

	if err := p.store.CommitBatch(ctx, batch.ID, len(cleaned)); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	if err := p.store.SupersedeBatches(ctx, doc.Source, batch.ID); err != nil {
		return fmt.Errorf("superseding prior batches: %w", err)
	}

	log.Info().Str("batch_id", batch.ID).Int("facts", len(cleaned)).Msg("batch committed")
	result.FactsWritten += len(cleaned)
	return nil
}

func (p *Pipeline) runAdapter(ctx context.Context, doc SourceDocument) ([]domain.FinancialFact, []string, error) {
	switch doc.Source {
	case domain.SourceColumnReport:
		report, err := ParseColumnReport(doc.Raw)
		if err != nil {
			return nil, nil, err
		}
		return FactsFromColumnReport(ctx, report)
	case domain.SourceCategoryReport:
		entries, err := ParseCategoryReport(doc.Raw)
		if err != nil {
			return nil, nil, err
		}
		return FactsFromCategoryReport(ctx, entries)
	default:
		return nil, nil, fmt.Errorf("unknown source %q", doc.Source)
	}
}
