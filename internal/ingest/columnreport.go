package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/avelkov/finfacts/internal/domain"
	"github.com/avelkov/finfacts/internal/logger"
	"github.com/avelkov/finfacts/internal/period"
)

// ColumnReport is the column/row source shape: the account hierarchy lives in
// nested rows, time periods in a parallel column header list. The first cell
// of every row carries the account identity; value cells align positionally
// with the columns.
type ColumnReport struct {
	Header  ReportHeader `json:"Header"`
	Columns ColumnSet    `json:"Columns"`
	Rows    RowSet       `json:"Rows"`
}

type ReportHeader struct {
	ReportName  string `json:"ReportName"`
	ReportBasis string `json:"ReportBasis"`
	StartPeriod string `json:"StartPeriod"`
	EndPeriod   string `json:"EndPeriod"`
	Currency    string `json:"Currency"`
	Time        string `json:"Time"`
}

type ColumnSet struct {
	Column []Column `json:"Column"`
}

type Column struct {
	ColTitle string       `json:"ColTitle"`
	ColType  string       `json:"ColType"`
	MetaData []ColumnMeta `json:"MetaData,omitempty"`
}

type ColumnMeta struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type RowSet struct {
	Row []ReportRow `json:"Row"`
}

// ReportRow is one node of the row tree. Grouping rows carry their identity in
// Header and nest children under Rows; data-bearing rows carry identity plus
// value cells in ColData; summary rows repeat section totals and are never
// ingested (their values are derivable from the data rows beneath them).
type ReportRow struct {
	Type    string     `json:"type,omitempty"`
	Group   string     `json:"group,omitempty"`
	Header  *RowHeader `json:"Header,omitempty"`
	Summary *RowHeader `json:"Summary,omitempty"`
	ColData []Cell     `json:"ColData,omitempty"`
	Rows    *RowSet    `json:"Rows,omitempty"`
}

type RowHeader struct {
	ColData []Cell `json:"ColData"`
}

type Cell struct {
	Value string `json:"value"`
	ID    string `json:"id,omitempty"`
}

// rowKind is the explicit discriminant for the row tree walk.
type rowKind int

const (
	rowKindEmpty rowKind = iota
	rowKindSection
	rowKindData
	rowKindSummary
)

func (r *ReportRow) kind() rowKind {
	switch r.Type {
	case "Data":
		return rowKindData
	case "Section":
		return rowKindSection
	}
	// Untyped rows: classify by shape.
	if r.Header != nil || r.Rows != nil {
		return rowKindSection
	}
	if r.Summary != nil {
		return rowKindSummary
	}
	if len(r.ColData) > 0 {
		return rowKindData
	}
	return rowKindEmpty
}

// ParseColumnReport decodes raw JSON into the typed report shape. Source
// documents wrap the report under a top-level "data" key.
func ParseColumnReport(raw []byte) (*ColumnReport, error) {
	var envelope struct {
		Data *ColumnReport `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("ParseColumnReport: decoding document: %w", err)
	}
	if envelope.Data == nil {
		// Some exports omit the envelope.
		var report ColumnReport
		if err := json.Unmarshal(raw, &report); err != nil {
			return nil, fmt.Errorf("ParseColumnReport: decoding report: %w", err)
		}
		return &report, nil
	}
	return envelope.Data, nil
}

// FactsFromColumnReport walks the row tree depth-first and emits one fact per
// (period, data row). Malformed rows are skipped with a warning; the walk
// never aborts on a single bad node.
func FactsFromColumnReport(ctx context.Context, report *ColumnReport) ([]domain.FinancialFact, []string, error) {
	if report == nil {
		return nil, nil, fmt.Errorf("FactsFromColumnReport: nil report")
	}

	w := &columnWalker{
		ctx:        ctx,
		numColumns: len(report.Columns.Column),
	}
	w.resolveColumns(report.Columns.Column)

	if len(w.periods) == 0 {
		return nil, w.warnings, fmt.Errorf("FactsFromColumnReport: no resolvable period columns: %w", domain.ErrMalformedSourceNode)
	}

	w.walkRows(report.Rows.Row, "", "")
	return w.facts, w.warnings, nil
}

type columnWalker struct {
	ctx        context.Context
	numColumns int
	periods    map[int]civil.Date
	facts      []domain.FinancialFact
	warnings   []string
}

// resolveColumns builds the column-index → period map once, from StartDate
// metadata when present, falling back to parsing the column title. Column 0
// is the account-identity column and never maps to a period; unresolvable
// columns (e.g. a trailing "Total") stay unmapped.
func (w *columnWalker) resolveColumns(columns []Column) {
	w.periods = make(map[int]civil.Date, len(columns))
	for i, col := range columns {
		if i == 0 {
			continue
		}

		token := col.ColTitle
		for _, meta := range col.MetaData {
			if meta.Name == "StartDate" {
				token = meta.Value
				break
			}
		}

		p, err := period.Resolve(token)
		if err != nil {
			if col.ColTitle != "" && col.ColTitle != "Total" {
				w.warnf("column %d (%q): %v", i, col.ColTitle, err)
			}
			continue
		}
		w.periods[i] = p
	}
}

// walkRows carries the identifier of the nearest enclosing grouping row as
// the parent for everything beneath it. Grouping rows emit no facts
// themselves but may be referenced as parents.
func (w *columnWalker) walkRows(rows []ReportRow, parentID, group string) {
	for i := range rows {
		row := &rows[i]

		currentGroup := row.Group
		if currentGroup == "" {
			currentGroup = group
		}

		switch row.kind() {
		case rowKindSection:
			sectionID := parentID
			if row.Header != nil && len(row.Header.ColData) > 0 {
				identity := row.Header.ColData[0]
				if id := accountIDFromCell(identity, currentGroup); id != "" {
					sectionID = id
				}
			}
			if row.Rows != nil {
				w.walkRows(row.Rows.Row, sectionID, currentGroup)
			}

		case rowKindData:
			w.emitDataRow(row, parentID, currentGroup)
			if row.Rows != nil {
				w.walkRows(row.Rows.Row, parentID, currentGroup)
			}

		case rowKindSummary, rowKindEmpty:
			// Totals and spacer rows carry no new observations.
		}
	}
}

func (w *columnWalker) emitDataRow(row *ReportRow, parentID, group string) {
	cells := row.ColData
	if len(cells) == 0 {
		w.warnf("data row with no cells skipped: %v", domain.ErrMalformedSourceNode)
		return
	}
	identity := cells[0]
	name := identity.Value
	if name == "" {
		w.warnf("data row with empty account name skipped")
		return
	}

	if len(cells) != w.numColumns {
		w.warnf("row %q: %d cells, %d columns: %v", name, len(cells), w.numColumns, domain.ErrMalformedSourceNode)
		return
	}

	accountID := accountIDFromCell(identity, group)
	if group == "" {
		group = domain.GroupOther
	}

	for i := 1; i < len(cells); i++ {
		p, ok := w.periods[i]
		if !ok {
			continue
		}

		amount, emitted, err := parseAmount(cells[i].Value)
		if err != nil {
			w.warnf("row %q, column %d: %v", name, i, err)
			continue
		}
		if !emitted {
			continue
		}

		w.facts = append(w.facts, domain.FinancialFact{
			Period:          p,
			AccountID:       accountID,
			AccountName:     name,
			Amount:          amount,
			ParentAccountID: parentID,
			Group:           group,
			Source:          domain.SourceColumnReport,
		})
	}
}

func (w *columnWalker) warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	w.warnings = append(w.warnings, msg)
	log := logger.FromContext(w.ctx)
	log.Warn().Str("source", domain.SourceColumnReport).Msg(msg)
}

// accountIDFromCell prefers the source-assigned identifier and falls back to
// a deterministic identifier derived from the group and display name.
func accountIDFromCell(c Cell, group string) string {
	if c.ID != "" {
		return c.ID
	}
	if c.Value == "" {
		return ""
	}
	return deriveAccountID(group, c.Value)
}
