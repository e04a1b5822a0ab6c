// Package introspect produces a compact description of the fact schema and
// its current value ranges. The snapshot is handed to the LLM layer as
// context for query construction, so it stays small and cheap to regenerate.
package introspect

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
)

// DefaultNameSampleSize bounds the account-name sample so the snapshot stays
// prompt-sized even against a large chart of accounts.
const DefaultNameSampleSize = 200

// SchemaReader is the bounded-cost read surface the introspector draws from.
type SchemaReader interface {
	AccountNameSample(ctx context.Context, limit int) ([]string, error)
	PeriodRange(ctx context.Context) (min, max civil.Date, err error)
	ListCategories(ctx context.Context) ([]string, error)

	// LatestBatchID identifies the newest committed ingestion batch and
	// doubles as the snapshot freshness token.
	LatestBatchID(ctx context.Context) (string, error)
}

// Snapshot describes the queryable schema at one point in time. Token names
// the ingestion generation it was built from; a caller holding a snapshot
// with the current token needs no new one.
type Snapshot struct {
	AccountNames []string   `json:"account_names"`
	PeriodMin    civil.Date `json:"period_min"`
	PeriodMax    civil.Date `json:"period_max"`
	Categories   []string   `json:"categories"`
	Token        string     `json:"token"`
	GeneratedAt  time.Time  `json:"generated_at"`
}

type Introspector struct {
	reader     SchemaReader
	sampleSize int

	mu     sync.RWMutex
	cached *Snapshot
}

func New(reader SchemaReader, sampleSize int) *Introspector {
	if sampleSize <= 0 {
		sampleSize = DefaultNameSampleSize
	}
	return &Introspector{reader: reader, sampleSize: sampleSize}
}

// Snapshot returns the current schema snapshot. The cached copy is served
// whenever it was built from the latest committed batch; the caller's token
// only tells it which generation the returned snapshot belongs to.
func (i *Introspector) Snapshot(ctx context.Context, freshnessToken string) (*Snapshot, error) {
	token, err := i.reader.LatestBatchID(ctx)
	if err != nil {
		return nil, fmt.Errorf("Snapshot: reading freshness token: %w", err)
	}

	i.mu.RLock()
	cached := i.cached
	i.mu.RUnlock()
	if cached != nil && cached.Token == token {
		return cached, nil
	}

	snap, err := i.build(ctx, token)
	if err != nil {
		return nil, err
	}

	i.mu.Lock()
	i.cached = snap
	i.mu.Unlock()
	return snap, nil
}

// Invalidate drops the cached snapshot after an ingestion batch commits.
func (i *Introspector) Invalidate() {
	i.mu.Lock()
	i.cached = nil
	i.mu.Unlock()
}

func (i *Introspector) build(ctx context.Context, token string) (*Snapshot, error) {
	names, err := i.reader.AccountNameSample(ctx, i.sampleSize)
	if err != nil {
		return nil, fmt.Errorf("Snapshot: sampling account names: %w", err)
	}
	min, max, err := i.reader.PeriodRange(ctx)
	if err != nil {
		return nil, fmt.Errorf("Snapshot: reading period range: %w", err)
	}
	categories, err := i.reader.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("Snapshot: listing categories: %w", err)
	}

	return &Snapshot{
		AccountNames: names,
		PeriodMin:    min,
		PeriodMax:    max,
		Categories:   categories,
		Token:        token,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}

// Text renders the snapshot as plain text for inclusion in an LLM prompt.
func (s *Snapshot) Text() string {
	var b strings.Builder
	b.WriteString("Table: financial_facts\n")
	b.WriteString("Columns: period (DATE, first of month), account_id (STRING), account_name (STRING), amount (NUMERIC), parent_account_id (STRING, nullable), category (STRING), source (STRING)\n")
	fmt.Fprintf(&b, "Period range: %s to %s\n", s.PeriodMin, s.PeriodMax)
	if len(s.Categories) > 0 {
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(s.Categories, ", "))
	}
	if len(s.AccountNames) > 0 {
		fmt.Fprintf(&b, "Account names (sample of %d):\n", len(s.AccountNames))
		for _, name := range s.AccountNames {
			b.WriteString("  - ")
			b.WriteString(name)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
