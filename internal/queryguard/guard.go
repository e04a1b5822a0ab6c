// Package queryguard statically validates candidate read queries before they
// reach the warehouse. It enforces single-statement read-only shape and
// bounds the result size; it never judges whether a query is semantically
// sensible.
package queryguard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/avelkov/finfacts/internal/domain"
)

const DefaultMaxRows = 200

// Mutation and DDL keywords matched on word boundaries, so a column named
// created_ts is not mistaken for CREATE.
var forbiddenRe = regexp.MustCompile(`(?i)\b(update|delete|insert|merge|alter|drop|create|grant|revoke|truncate|call|begin|commit)\b`)

// The row bound must close the statement; a LIMIT buried in a subquery does
// not bound the outer result set.
var limitRe = regexp.MustCompile(`(?i)\blimit\s+(\d+)(\s+offset\s+\d+)?\s*$`)

type Guard struct {
	MaxRows int
}

func New(maxRows int) *Guard {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Guard{MaxRows: maxRows}
}

// Validate accepts a single read-only statement and returns it rewritten to
// carry a row bound no looser than MaxRows. Rejections wrap ErrUnsafeQuery
// and name the violated rule; the query is never auto-repaired beyond the
// LIMIT rewrite.
func (g *Guard) Validate(query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", fmt.Errorf("Validate: empty query: %w", domain.ErrUnsafeQuery)
	}
	q = strings.TrimRight(q, "; \t\r\n")

	lower := strings.ToLower(q)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return "", fmt.Errorf("Validate: only SELECT statements are allowed: %w", domain.ErrUnsafeQuery)
	}

	if strings.Contains(q, ";") {
		return "", fmt.Errorf("Validate: multiple statements are not allowed: %w", domain.ErrUnsafeQuery)
	}

	if m := forbiddenRe.FindString(q); m != "" {
		return "", fmt.Errorf("Validate: forbidden keyword %s: %w", strings.ToUpper(m), domain.ErrUnsafeQuery)
	}

	return g.ensureLimit(q), nil
}

// ensureLimit appends the cap when the statement does not end in a LIMIT
// clause, and clamps an existing one that exceeds it. A tighter
// caller-supplied bound is kept.
func (g *Guard) ensureLimit(q string) string {
	loc := limitRe.FindStringSubmatchIndex(q)
	if loc == nil {
		return fmt.Sprintf("%s LIMIT %d", q, g.MaxRows)
	}

	n, err := strconv.Atoi(q[loc[2]:loc[3]])
	if err != nil || n > g.MaxRows {
		return q[:loc[2]] + strconv.Itoa(g.MaxRows) + q[loc[3]:]
	}
	return q
}
