// Package period canonicalizes the heterogeneous period representations found
// in source documents into a single first-of-month date.
package period

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/avelkov/finfacts/internal/domain"
)

// Layouts tried in order when resolving a period token. Short and long month
// names cover labels like "Jan 2020"; the date layouts cover explicit start
// dates from column metadata and category sections.
var layouts = []string{
	"Jan 2006",
	"January 2006",
	"Jan-2006",
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01",
}

// Resolve turns a period token into the first day of its month.
// Returns domain.ErrUnparseablePeriod when no recognizable pattern matches;
// callers skip the row and log, never abort the whole ingestion.
func Resolve(token string) (civil.Date, error) {
	s := strings.TrimSpace(token)
	if s == "" {
		return civil.Date{}, fmt.Errorf("Resolve: empty token: %w", domain.ErrUnparseablePeriod)
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return FirstOfMonth(t), nil
	}

	return civil.Date{}, fmt.Errorf("Resolve: no layout matches %q: %w", s, domain.ErrUnparseablePeriod)
}

// FirstOfMonth truncates a timestamp to the first day of its month.
func FirstOfMonth(t time.Time) civil.Date {
	return civil.Date{Year: t.Year(), Month: t.Month(), Day: 1}
}
