package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/avelkov/finfacts/internal/ingest"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// FindBatchByFingerprintWithClient returns the committed batch carrying the
// fingerprint, or nil when none exists.
func FindBatchByFingerprintWithClient(ctx context.Context, client *bigquery.Client, fingerprint string) (*ingest.Batch, error) {
	query := fmt.Sprintf(`
		SELECT batch_id, source, fingerprint, status, fact_count
		FROM `+"`%s.%s.%s`"+`
		WHERE fingerprint = @fingerprint
		  AND status = @status
		ORDER BY started_ts DESC
		LIMIT 1
	`, projectID, datasetID, batchesTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "fingerprint", Value: fingerprint},
		{Name: "status", Value: ingest.BatchStatusCommitted},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindBatchByFingerprintWithClient: reading query: %w", err)
	}

	var row BatchRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindBatchByFingerprintWithClient: iterating: %w", err)
	}

	return batchFromRow(&row), nil
}

// StartBatchWithClient inserts a new RUNNING batch and returns it.
func StartBatchWithClient(ctx context.Context, client *bigquery.Client, source, fingerprint string) (*ingest.Batch, error) {
	batchID := uuid.NewString()

	q := client.Query(fmt.Sprintf(`
		INSERT `+"`%s.%s.%s`"+` (batch_id, source, fingerprint, started_ts, status)
		VALUES (@batch_id, @source, @fingerprint, @started_ts, @status)
	`, projectID, datasetID, batchesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "batch_id", Value: batchID},
		{Name: "source", Value: source},
		{Name: "fingerprint", Value: fingerprint},
		{Name: "started_ts", Value: time.Now()},
		{Name: "status", Value: ingest.BatchStatusRunning},
	}

	if err := runAndWait(ctx, q); err != nil {
		return nil, fmt.Errorf("StartBatchWithClient: %w", err)
	}

	return &ingest.Batch{
		ID:          batchID,
		Source:      source,
		Fingerprint: fingerprint,
		Status:      ingest.BatchStatusRunning,
	}, nil
}

// CommitBatchWithClient moves a batch to COMMITTED and records its fact count.
func CommitBatchWithClient(ctx context.Context, client *bigquery.Client, batchID string, factCount int) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE `+"`%s.%s.%s`"+`
		SET status = @status,
		    finished_ts = @finished_ts,
		    fact_count = @fact_count
		WHERE batch_id = @batch_id
	`, projectID, datasetID, batchesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: ingest.BatchStatusCommitted},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "fact_count", Value: factCount},
		{Name: "batch_id", Value: batchID},
	}

	if err := runAndWait(ctx, q); err != nil {
		return fmt.Errorf("CommitBatchWithClient: %w", err)
	}
	return nil
}

// FailBatchWithClient moves a batch to FAILED with a truncated reason.
func FailBatchWithClient(ctx context.Context, client *bigquery.Client, batchID string, reason string) error {
	const maxLen = 2000
	if len(reason) > maxLen {
		reason = reason[:maxLen]
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE `+"`%s.%s.%s`"+`
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE batch_id = @batch_id
	`, projectID, datasetID, batchesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: ingest.BatchStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: reason},
		{Name: "batch_id", Value: batchID},
	}

	if err := runAndWait(ctx, q); err != nil {
		return fmt.Errorf("FailBatchWithClient: %w", err)
	}
	return nil
}

// SupersedeBatchesWithClient marks every committed batch of the source other
// than keepBatchID as superseded, retiring prior generations in one step.
func SupersedeBatchesWithClient(ctx context.Context, client *bigquery.Client, source, keepBatchID string) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE `+"`%s.%s.%s`"+`
		SET status = @superseded,
		    finished_ts = @finished_ts
		WHERE source = @source
		  AND status = @committed
		  AND batch_id != @keep_batch_id
	`, projectID, datasetID, batchesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "superseded", Value: ingest.BatchStatusSuperseded},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "source", Value: source},
		{Name: "committed", Value: ingest.BatchStatusCommitted},
		{Name: "keep_batch_id", Value: keepBatchID},
	}

	if err := runAndWait(ctx, q); err != nil {
		return fmt.Errorf("SupersedeBatchesWithClient: %w", err)
	}
	return nil
}

// CountFactsWithClient counts the facts visible to queries, i.e. those in
// committed batches.
func CountFactsWithClient(ctx context.Context, client *bigquery.Client) (int64, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM `+"`%s.%s.%s`"+` f
		JOIN `+"`%s.%s.%s`"+` b ON f.batch_id = b.batch_id
		WHERE b.status = @status
	`, projectID, datasetID, factsTable, projectID, datasetID, batchesTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: ingest.BatchStatusCommitted},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountFactsWithClient: reading query: %w", err)
	}

	var row []bigquery.Value
	if err := it.Next(&row); err != nil {
		return 0, fmt.Errorf("CountFactsWithClient: iterating: %w", err)
	}
	count, ok := row[0].(int64)
	if !ok {
		return 0, fmt.Errorf("CountFactsWithClient: unexpected count type %T", row[0])
	}
	return count, nil
}

// LatestBatchIDWithClient returns the newest committed batch id, or empty
// when nothing has been ingested yet.
func LatestBatchIDWithClient(ctx context.Context, client *bigquery.Client) (string, error) {
	query := fmt.Sprintf(`
		SELECT batch_id
		FROM `+"`%s.%s.%s`"+`
		WHERE status = @status
		ORDER BY finished_ts DESC
		LIMIT 1
	`, projectID, datasetID, batchesTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: ingest.BatchStatusCommitted},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return "", fmt.Errorf("LatestBatchIDWithClient: reading query: %w", err)
	}

	var row struct {
		BatchID string `bigquery:"batch_id"`
	}
	err = it.Next(&row)
	if err == iterator.Done {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("LatestBatchIDWithClient: iterating: %w", err)
	}
	return row.BatchID, nil
}

func batchFromRow(row *BatchRow) *ingest.Batch {
	b := &ingest.Batch{
		ID:          row.BatchID,
		Source:      row.Source,
		Fingerprint: row.Fingerprint,
		Status:      row.Status,
	}
	if row.FactCount.Valid {
		b.FactCount = int(row.FactCount.Int64)
	}
	return b
}

func runAndWait(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
