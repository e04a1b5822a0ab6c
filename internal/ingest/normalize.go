package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/avelkov/finfacts/internal/domain"
	"github.com/avelkov/finfacts/internal/logger"
)

// Fingerprint identifies an ingestion batch by the content of its raw source
// document. Identical bytes always produce the same fingerprint, which is how
// re-running ingestion against unchanged sources becomes a no-op.
func Fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ValidateFacts enforces the shared invariants over a batch after the
// adapters run: every fact carries a period and an account identifier, the
// parent graph is acyclic, and in-batch duplicates on (period, account_id,
// source) collapse to the first occurrence with a warning. Returns the
// cleaned slice; an invariant the batch cannot satisfy by dropping rows
// (a parent cycle) fails the whole batch.
func ValidateFacts(ctx context.Context, facts []domain.FinancialFact) ([]domain.FinancialFact, []string, error) {
	log := logger.FromContext(ctx)
	var warnings []string
	warnf := func(format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		warnings = append(warnings, msg)
		log.Warn().Msg(msg)
	}

	type factKey struct {
		period    string
		accountID string
		source    string
	}
	seen := make(map[factKey]struct{}, len(facts))
	parents := make(map[string]string)
	cleaned := make([]domain.FinancialFact, 0, len(facts))

	for i := range facts {
		f := &facts[i]

		if f.Period.IsZero() {
			warnf("fact %q: missing period, dropped", f.AccountID)
			continue
		}
		if f.AccountID == "" {
			warnf("fact %q: missing account identifier, dropped", f.AccountName)
			continue
		}

		key := factKey{period: f.Period.String(), accountID: f.AccountID, source: f.Source}
		if _, dup := seen[key]; dup {
			warnf("fact %q for %s: duplicate in batch, keeping first occurrence", f.AccountID, f.Period)
			continue
		}
		seen[key] = struct{}{}

		if f.ParentAccountID != "" {
			parents[f.AccountID] = f.ParentAccountID
		}
		cleaned = append(cleaned, *f)
	}

	if err := checkAcyclic(parents); err != nil {
		return nil, warnings, fmt.Errorf("ValidateFacts: %w", err)
	}
	return cleaned, warnings, nil
}

// checkAcyclic follows every parent chain to its root. Parent references are
// structural and may point at accounts not present in the batch; only a chain
// that revisits an account is a violation.
func checkAcyclic(parents map[string]string) error {
	for start := range parents {
		visited := map[string]struct{}{start: {}}
		current := start
		for {
			next, ok := parents[current]
			if !ok {
				break
			}
			if _, seen := visited[next]; seen {
				return fmt.Errorf("parent cycle through account %q: %w", next, domain.ErrMalformedSourceNode)
			}
			visited[next] = struct{}{}
			current = next
		}
	}
	return nil
}
