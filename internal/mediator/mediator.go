// Package mediator is the single entry point for query-time callers. It
// combines the account resolver, the query guard, and the schema
// introspector so the LLM layer only ever talks to one surface.
package mediator

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/avelkov/finfacts/internal/introspect"
	"github.com/avelkov/finfacts/internal/logger"
	"github.com/avelkov/finfacts/internal/queryguard"
	"github.com/avelkov/finfacts/internal/resolver"
)

// MaxCellLength bounds individual result cells before they are returned to
// the prompt-building caller.
const MaxCellLength = 1000

// QueryExecutor is the warehouse read primitive. Rows come back stringified;
// the mediator owns truncation and rendering, not type mapping.
type QueryExecutor interface {
	ExecuteReadQuery(ctx context.Context, query string) (columns []string, rows [][]string, err error)
}

// Request carries exactly one intent: a candidate query to execute, an
// account term to resolve, or a schema fetch.
type Request struct {
	SQL            string  `json:"sql,omitempty"`
	AccountTerm    string  `json:"account_term,omitempty"`
	MaxResults     int     `json:"max_results,omitempty"`
	MinScore       float64 `json:"min_score,omitempty"`
	FetchSchema    bool    `json:"fetch_schema,omitempty"`
	FreshnessToken string  `json:"freshness_token,omitempty"`
}

type Response struct {
	Columns  []string             `json:"columns,omitempty"`
	Rows     [][]string           `json:"rows,omitempty"`
	Rendered string               `json:"rendered,omitempty"`
	Matches  []resolver.Match     `json:"matches,omitempty"`
	Schema   *introspect.Snapshot `json:"schema,omitempty"`
}

type Mediator struct {
	guard        *queryguard.Guard
	resolver     *resolver.Resolver
	introspector *introspect.Introspector
	executor     QueryExecutor
}

func New(guard *queryguard.Guard, res *resolver.Resolver, intro *introspect.Introspector, exec QueryExecutor) *Mediator {
	return &Mediator{guard: guard, resolver: res, introspector: intro, executor: exec}
}

// Handle dispatches the request to the matching collaborator. A request
// naming zero or several intents is rejected before anything runs.
func (m *Mediator) Handle(ctx context.Context, req Request) (*Response, error) {
	intents := 0
	if req.SQL != "" {
		intents++
	}
	if req.AccountTerm != "" {
		intents++
	}
	if req.FetchSchema {
		intents++
	}
	if intents != 1 {
		return nil, fmt.Errorf("Handle: request must carry exactly one of sql, account_term, fetch_schema")
	}

	switch {
	case req.SQL != "":
		return m.runQuery(ctx, req.SQL)
	case req.AccountTerm != "":
		matches, err := m.resolver.Resolve(ctx, req.AccountTerm, req.MaxResults, req.MinScore)
		if err != nil {
			return nil, fmt.Errorf("Handle: resolving account term: %w", err)
		}
		return &Response{Matches: matches}, nil
	default:
		snap, err := m.introspector.Snapshot(ctx, req.FreshnessToken)
		if err != nil {
			return nil, fmt.Errorf("Handle: building schema snapshot: %w", err)
		}
		return &Response{Schema: snap, Rendered: snap.Text()}, nil
	}
}

func (m *Mediator) runQuery(ctx context.Context, candidate string) (*Response, error) {
	safe, err := m.guard.Validate(candidate)
	if err != nil {
		return nil, fmt.Errorf("runQuery: %w", err)
	}

	columns, rows, err := m.executor.ExecuteReadQuery(ctx, safe)
	if err != nil {
		return nil, fmt.Errorf("runQuery: executing: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Debug().Int("rows", len(rows)).Msg("read query executed")

	for _, row := range rows {
		for i, cell := range row {
			row[i] = truncateCell(cell)
		}
	}

	return &Response{
		Columns:  columns,
		Rows:     rows,
		Rendered: renderMarkdown(columns, rows),
	}, nil
}

func truncateCell(s string) string {
	if len(s) <= MaxCellLength {
		return s
	}
	// Back up to a rune boundary so the cut never emits invalid UTF-8.
	cut := MaxCellLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... [truncated]"
}

// renderMarkdown renders a result set as a markdown table, the shape the
// LLM layer folds back into its answer.
func renderMarkdown(columns []string, rows [][]string) string {
	if len(columns) == 0 {
		return "(no results)"
	}

	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(strings.Join(columns, " | "))
	b.WriteString(" |\n|")
	for range columns {
		b.WriteString(" --- |")
	}
	b.WriteByte('\n')

	for _, row := range rows {
		cells := make([]string, len(columns))
		for i := range columns {
			if i < len(row) {
				cells[i] = strings.ReplaceAll(row[i], "|", `\|`)
			}
		}
		b.WriteString("| ")
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
	}
	return b.String()
}
