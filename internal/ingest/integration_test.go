package ingest_test

import (
	"context"
	"sync"
	"testing"

	"github.com/avelkov/finfacts/internal/domain"
	"github.com/avelkov/finfacts/internal/ingest"
)

// memStore is a minimal FactStore used to exercise the full ingestion flow
// through the public API.
type memStore struct {
	mu      sync.Mutex
	batches map[string]*ingest.Batch
	facts   map[string][]domain.FinancialFact
	nextID  int
}

func newMemStore() *memStore {
	return &memStore{
		batches: make(map[string]*ingest.Batch),
		facts:   make(map[string][]domain.FinancialFact),
	}
}

func (s *memStore) FindBatchByFingerprint(ctx context.Context, fingerprint string) (*ingest.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.batches {
		if b.Fingerprint == fingerprint && b.Status == ingest.BatchStatusCommitted {
			return b, nil
		}
	}
	return nil, nil
}

func (s *memStore) StartBatch(ctx context.Context, source, fingerprint string) (*ingest.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	b := &ingest.Batch{
		ID:          string(rune('0' + s.nextID)),
		Source:      source,
		Fingerprint: fingerprint,
		Status:      ingest.BatchStatusRunning,
	}
	s.batches[b.ID] = b
	return b, nil
}

func (s *memStore) InsertFacts(ctx context.Context, batchID string, facts []domain.FinancialFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts[batchID] = append(s.facts[batchID], facts...)
	return nil
}

func (s *memStore) CommitBatch(ctx context.Context, batchID string, factCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[batchID].Status = ingest.BatchStatusCommitted
	s.batches[batchID].FactCount = factCount
	return nil
}

func (s *memStore) FailBatch(ctx context.Context, batchID string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[batchID].Status = ingest.BatchStatusFailed
	return nil
}

func (s *memStore) SupersedeBatches(ctx context.Context, source, keepBatchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range s.batches {
		if b.Source == source && b.Status == ingest.BatchStatusCommitted && id != keepBatchID {
			b.Status = ingest.BatchStatusSuperseded
		}
	}
	return nil
}

func (s *memStore) CountFacts(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, facts := range s.facts {
		if s.batches[id].Status == ingest.BatchStatusCommitted {
			n += int64(len(facts))
		}
	}
	return n, nil
}

func (s *memStore) committedFacts() []domain.FinancialFact {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.FinancialFact
	for id, facts := range s.facts {
		if s.batches[id].Status == ingest.BatchStatusCommitted {
			out = append(out, facts...)
		}
	}
	return out
}

const categoryDoc = `{
  "data": [{
    "revenue": {
      "period_start": "2024-03-01",
      "line_items": [{"name": "Sales", "value": 100}]
    },
    "cost_of_goods_sold": {
      "period_start": "2024-03-01",
      "line_items": [{"name": "Materials", "value": 40}]
    }
  }]
}`

func TestIngestLifecycle(t *testing.T) {
	store := newMemStore()
	p := ingest.NewPipeline(store)
	ctx := context.Background()

	docs := []ingest.SourceDocument{{Source: domain.SourceCategoryReport, Raw: []byte(categoryDoc)}}

	result, err := p.IngestSources(ctx, docs)
	if err != nil {
		t.Fatalf("first ingestion failed: %v", err)
	}
	// Two line items plus three derived metrics.
	if result.FactsWritten != 5 {
		t.Fatalf("facts written = %d, want 5", result.FactsWritten)
	}

	var gross *domain.FinancialFact
	for _, f := range store.committedFacts() {
		if f.AccountID == domain.DerivedIDPrefix+"gross_profit" {
			g := f
			gross = &g
		}
	}
	if gross == nil {
		t.Fatal("no committed gross profit fact")
	}
	if gross.Amount.IntPart() != 60 {
		t.Errorf("gross profit = %s, want 60", gross.Amount)
	}

	// Re-ingesting the same bytes is a no-op: same fact set, no new batch.
	again, err := p.IngestSources(ctx, docs)
	if err != nil {
		t.Fatalf("second ingestion failed: %v", err)
	}
	if again.FactsWritten != 0 || again.Skipped != 1 {
		t.Errorf("second run = %+v, want skipped no-op", again)
	}
	if len(store.committedFacts()) != 5 {
		t.Errorf("committed facts = %d after re-ingestion, want 5", len(store.committedFacts()))
	}

	// A changed document becomes a new generation and retires the old one.
	changed := []ingest.SourceDocument{{
		Source: domain.SourceCategoryReport,
		Raw:    []byte(categoryDoc + "\n"),
	}}
	if _, err := p.IngestSources(ctx, changed); err != nil {
		t.Fatalf("third ingestion failed: %v", err)
	}

	committed := 0
	for _, b := range store.batches {
		if b.Status == ingest.BatchStatusCommitted {
			committed++
		}
	}
	if committed != 1 {
		t.Errorf("committed batches = %d, want 1 after supersede", committed)
	}
}
