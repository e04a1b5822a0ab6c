package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/avelkov/finfacts/internal/domain"
	"github.com/shopspring/decimal"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("report body"))
	b := Fingerprint([]byte("report body"))
	c := Fingerprint([]byte("different body"))

	if a != b {
		t.Errorf("same bytes produced different fingerprints: %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("different bytes produced the same fingerprint: %q", a)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}

func TestValidateFacts(t *testing.T) {
	jan := civil.Date{Year: 2024, Month: time.January, Day: 1}
	fact := func(id, parent string) domain.FinancialFact {
		return domain.FinancialFact{
			Period:          jan,
			AccountID:       id,
			AccountName:     id,
			Amount:          decimal.NewFromInt(1),
			ParentAccountID: parent,
			Group:           domain.GroupOther,
			Source:          domain.SourceColumnReport,
		}
	}

	t.Run("drops facts missing required fields", func(t *testing.T) {
		in := []domain.FinancialFact{
			fact("a", ""),
			{AccountID: "no-period", Source: domain.SourceColumnReport},
			{Period: jan, AccountName: "no-id", Source: domain.SourceColumnReport},
		}
		out, warnings, err := ValidateFacts(context.Background(), in)
		if err != nil {
			t.Fatalf("ValidateFacts failed: %v", err)
		}
		if len(out) != 1 || out[0].AccountID != "a" {
			t.Errorf("cleaned = %+v, want only fact a", out)
		}
		if len(warnings) != 2 {
			t.Errorf("got %d warnings, want 2: %v", len(warnings), warnings)
		}
	})

	t.Run("collapses in-batch duplicates to first occurrence", func(t *testing.T) {
		first := fact("a", "")
		second := fact("a", "")
		second.Amount = decimal.NewFromInt(99)

		out, warnings, err := ValidateFacts(context.Background(), []domain.FinancialFact{first, second})
		if err != nil {
			t.Fatalf("ValidateFacts failed: %v", err)
		}
		if len(out) != 1 {
			t.Fatalf("got %d facts, want 1", len(out))
		}
		if !out[0].Amount.Equal(decimal.NewFromInt(1)) {
			t.Errorf("kept amount = %s, want the first occurrence", out[0].Amount)
		}
		if len(warnings) != 1 {
			t.Errorf("got %d warnings, want 1", len(warnings))
		}
	})

	t.Run("same account from different sources is not a duplicate", func(t *testing.T) {
		a := fact("a", "")
		b := fact("a", "")
		b.Source = domain.SourceCategoryReport

		out, _, err := ValidateFacts(context.Background(), []domain.FinancialFact{a, b})
		if err != nil {
			t.Fatalf("ValidateFacts failed: %v", err)
		}
		if len(out) != 2 {
			t.Errorf("got %d facts, want 2", len(out))
		}
	})

	t.Run("parent cycle fails the batch", func(t *testing.T) {
		in := []domain.FinancialFact{fact("a", "b"), fact("b", "c"), fact("c", "a")}
		_, _, err := ValidateFacts(context.Background(), in)
		if !errors.Is(err, domain.ErrMalformedSourceNode) {
			t.Fatalf("error = %v, want ErrMalformedSourceNode", err)
		}
	})

	t.Run("parent outside the batch is allowed", func(t *testing.T) {
		in := []domain.FinancialFact{fact("a", "not-in-batch")}
		out, _, err := ValidateFacts(context.Background(), in)
		if err != nil {
			t.Fatalf("ValidateFacts failed: %v", err)
		}
		if len(out) != 1 {
			t.Errorf("got %d facts, want 1", len(out))
		}
	})
}
