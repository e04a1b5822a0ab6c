package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/avelkov/finfacts/internal/domain"
	"github.com/avelkov/finfacts/internal/ingest"
	"google.golang.org/api/iterator"
)

// InsertFactsWithClient streams a batch of facts through the table inserter.
// Row visibility is controlled by the batch status, so a failed stream never
// exposes partial data even though rows may already be in the table.
func InsertFactsWithClient(ctx context.Context, client *bigquery.Client, batchID string, facts []domain.FinancialFact) error {
	if len(facts) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]*FactRow, 0, len(facts))
	for i := range facts {
		f := &facts[i]
		row := &FactRow{
			Period:      f.Period,
			AccountID:   f.AccountID,
			AccountName: f.AccountName,
			Amount:      f.Amount.Rat(),
			Category:    f.Group,
			Source:      f.Source,
			BatchID:     batchID,
			CreatedTS:   now,
		}
		if f.ParentAccountID != "" {
			row.ParentAccountID = bigquery.NullString{StringVal: f.ParentAccountID, Valid: true}
		}
		rows = append(rows, row)
	}

	inserter := client.Dataset(datasetID).Table(factsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertFactsWithClient: streaming %d rows: %w", len(rows), err)
	}
	return nil
}

// ExecuteReadQueryWithClient runs an already validated read query and returns
// the result stringified, column names first. Type mapping stays here; the
// caller only ever sees strings.
func ExecuteReadQueryWithClient(ctx context.Context, client *bigquery.Client, query string) ([]string, [][]string, error) {
	q := client.Query(query)
	q.DefaultProjectID = projectID
	q.DefaultDatasetID = datasetID

	it, err := q.Read(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("ExecuteReadQueryWithClient: reading query: %w", err)
	}

	var columns []string
	var rows [][]string
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("ExecuteReadQueryWithClient: iterating: %w", err)
		}

		if columns == nil {
			for _, field := range it.Schema {
				columns = append(columns, field.Name)
			}
		}

		row := make([]string, len(values))
		for i, v := range values {
			if v == nil {
				continue
			}
			row[i] = fmt.Sprint(v)
		}
		rows = append(rows, row)
	}

	if columns == nil {
		for _, field := range it.Schema {
			columns = append(columns, field.Name)
		}
	}
	return columns, rows, nil
}

// ListDistinctAccountNamesWithClient returns every distinct account name in
// committed batches, feeding the resolver cache.
func ListDistinctAccountNamesWithClient(ctx context.Context, client *bigquery.Client) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT f.account_name
		FROM `+"`%s.%s.%s`"+` f
		JOIN `+"`%s.%s.%s`"+` b ON f.batch_id = b.batch_id
		WHERE b.status = @status
		ORDER BY f.account_name
	`, projectID, datasetID, factsTable, projectID, datasetID, batchesTable)

	return readStringColumn(ctx, client, query, "ListDistinctAccountNamesWithClient")
}

// AccountNameSampleWithClient returns a bounded sample of distinct account
// names for the schema snapshot.
func AccountNameSampleWithClient(ctx context.Context, client *bigquery.Client, limit int) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT f.account_name
		FROM `+"`%s.%s.%s`"+` f
		JOIN `+"`%s.%s.%s`"+` b ON f.batch_id = b.batch_id
		WHERE b.status = @status
		ORDER BY f.account_name
		LIMIT %d
	`, projectID, datasetID, factsTable, projectID, datasetID, batchesTable, limit)

	return readStringColumn(ctx, client, query, "AccountNameSampleWithClient")
}

// ListCategoriesWithClient returns the distinct category labels over
// committed facts.
func ListCategoriesWithClient(ctx context.Context, client *bigquery.Client) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT f.category
		FROM `+"`%s.%s.%s`"+` f
		JOIN `+"`%s.%s.%s`"+` b ON f.batch_id = b.batch_id
		WHERE b.status = @status
		  AND f.category IS NOT NULL
		ORDER BY f.category
	`, projectID, datasetID, factsTable, projectID, datasetID, batchesTable)

	return readStringColumn(ctx, client, query, "ListCategoriesWithClient")
}

// PeriodRangeWithClient returns the min and max period over committed facts.
func PeriodRangeWithClient(ctx context.Context, client *bigquery.Client) (civil.Date, civil.Date, error) {
	query := fmt.Sprintf(`
		SELECT MIN(f.period) AS min_period, MAX(f.period) AS max_period
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
		return civil.Date{}, civil.Date{}, fmt.Errorf("PeriodRangeWithClient: reading query: %w", err)
	}

	var row struct {
		MinPeriod bigquery.NullDate `bigquery:"min_period"`
		MaxPeriod bigquery.NullDate `bigquery:"max_period"`
	}
	if err := it.Next(&row); err != nil {
		return civil.Date{}, civil.Date{}, fmt.Errorf("PeriodRangeWithClient: iterating: %w", err)
	}

	var min, max civil.Date
	if row.MinPeriod.Valid {
		min = row.MinPeriod.Date
	}
	if row.MaxPeriod.Valid {
		max = row.MaxPeriod.Date
	}
	return min, max, nil
}

func readStringColumn(ctx context.Context, client *bigquery.Client, query, op string) ([]string, error) {
	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: ingest.BatchStatusCommitted},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: reading query: %w", op, err)
	}

	var out []string
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iterating: %w", op, err)
		}
		if s, ok := row[0].(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}
