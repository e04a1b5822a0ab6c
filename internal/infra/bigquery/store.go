// Package bigquery is the warehouse storage layer: fact rows, ingestion
// batch lifecycle, and the bounded read primitives the query-time packages
// draw from. Facts join against committed batches everywhere, so a failed or
// superseded batch is invisible to every reader.
package bigquery

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/avelkov/finfacts/internal/domain"
	"github.com/avelkov/finfacts/internal/ingest"
)

const (
	factsTable   = "financial_facts"
	batchesTable = "ingestion_batches"
)

var (
	projectID = envOr("BQ_PROJECT_ID", "finfacts-dev")
	datasetID = envOr("BQ_DATASET_ID", "finfacts")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Store wraps a shared BigQuery client and implements the storage interfaces
// consumed by the ingestion pipeline and the query-time packages.
type Store struct {
	client *bigquery.Client
}

func NewStore(ctx context.Context) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: bigquery client: %w", err)
	}
	return &Store{client: client}, nil
}

func NewStoreWithClient(client *bigquery.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// storageErr tags any warehouse failure so callers can distinguish storage
// outages from their own domain errors.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

func (s *Store) FindBatchByFingerprint(ctx context.Context, fingerprint string) (*ingest.Batch, error) {
	b, err := FindBatchByFingerprintWithClient(ctx, s.client, fingerprint)
	if err != nil {
		return nil, storageErr("FindBatchByFingerprint", err)
	}
	return b, nil
}

func (s *Store) StartBatch(ctx context.Context, source, fingerprint string) (*ingest.Batch, error) {
	b, err := StartBatchWithClient(ctx, s.client, source, fingerprint)
	if err != nil {
		return nil, storageErr("StartBatch", err)
	}
	return b, nil
}

func (s *Store) InsertFacts(ctx context.Context, batchID string, facts []domain.FinancialFact) error {
	if err := InsertFactsWithClient(ctx, s.client, batchID, facts); err != nil {
		return storageErr("InsertFacts", err)
	}
	return nil
}

func (s *Store) CommitBatch(ctx context.Context, batchID string, factCount int) error {
	if err := CommitBatchWithClient(ctx, s.client, batchID, factCount); err != nil {
		return storageErr("CommitBatch", err)
	}
	return nil
}

func (s *Store) FailBatch(ctx context.Context, batchID string, reason string) error {
	if err := FailBatchWithClient(ctx, s.client, batchID, reason); err != nil {
		return storageErr("FailBatch", err)
	}
	return nil
}

func (s *Store) SupersedeBatches(ctx context.Context, source, keepBatchID string) error {
	if err := SupersedeBatchesWithClient(ctx, s.client, source, keepBatchID); err != nil {
		return storageErr("SupersedeBatches", err)
	}
	return nil
}

func (s *Store) CountFacts(ctx context.Context) (int64, error) {
	n, err := CountFactsWithClient(ctx, s.client)
	if err != nil {
		return 0, storageErr("CountFacts", err)
	}
	return n, nil
}

func (s *Store) ListDistinctAccountNames(ctx context.Context) ([]string, error) {
	names, err := ListDistinctAccountNamesWithClient(ctx, s.client)
	if err != nil {
		return nil, storageErr("ListDistinctAccountNames", err)
	}
	return names, nil
}

func (s *Store) AccountNameSample(ctx context.Context, limit int) ([]string, error) {
	names, err := AccountNameSampleWithClient(ctx, s.client, limit)
	if err != nil {
		return nil, storageErr("AccountNameSample", err)
	}
	return names, nil
}

func (s *Store) PeriodRange(ctx context.Context) (civil.Date, civil.Date, error) {
	min, max, err := PeriodRangeWithClient(ctx, s.client)
	if err != nil {
		return civil.Date{}, civil.Date{}, storageErr("PeriodRange", err)
	}
	return min, max, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	categories, err := ListCategoriesWithClient(ctx, s.client)
	if err != nil {
		return nil, storageErr("ListCategories", err)
	}
	return categories, nil
}

func (s *Store) LatestBatchID(ctx context.Context) (string, error) {
	id, err := LatestBatchIDWithClient(ctx, s.client)
	if err != nil {
		return "", storageErr("LatestBatchID", err)
	}
	return id, nil
}

func (s *Store) ExecuteReadQuery(ctx context.Context, query string) ([]string, [][]string, error) {
	columns, rows, err := ExecuteReadQueryWithClient(ctx, s.client, query)
	if err != nil {
		return nil, nil, storageErr("ExecuteReadQuery", err)
	}
	return columns, rows, nil
}
