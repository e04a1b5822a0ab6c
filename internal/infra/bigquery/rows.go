package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

type FactRow struct {
	Period      civil.Date `bigquery:"period"`       // REQUIRED
	AccountID   string     `bigquery:"account_id"`   // REQUIRED
	AccountName string     `bigquery:"account_name"` // REQUIRED
	Amount      *big.Rat   `bigquery:"amount"`       // REQUIRED, NUMERIC

	ParentAccountID bigquery.NullString `bigquery:"parent_account_id"` // NULLABLE

	Category string `bigquery:"category"` // NULLABLE
	Source   string `bigquery:"source"`   // REQUIRED

	BatchID   string    `bigquery:"batch_id"`   // REQUIRED
	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

type BatchRow struct {
	BatchID     string `bigquery:"batch_id"`    // REQUIRED
	Source      string `bigquery:"source"`      // REQUIRED
	Fingerprint string `bigquery:"fingerprint"` // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string             `bigquery:"status"`        // REQUIRED
	ErrorMessage string             `bigquery:"error_message"` // NULLABLE
	FactCount    bigquery.NullInt64 `bigquery:"fact_count"`    // NULLABLE
}
