package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/avelkov/finfacts/internal/domain"
	"github.com/avelkov/finfacts/internal/logger"
	"github.com/avelkov/finfacts/internal/period"
	"github.com/shopspring/decimal"
)

// CategoryEntry is one period record of the category/line-item source shape.
// The financial categories are fixed top-level keys; each section carries its
// own period start and a nested line-item tree with explicit amounts.
type CategoryEntry struct {
	Revenue              *CategorySection `json:"revenue"`
	CostOfGoodsSold      *CategorySection `json:"cost_of_goods_sold"`
	OperatingExpenses    *CategorySection `json:"operating_expenses"`
	NonOperatingRevenue  *CategorySection `json:"non_operating_revenue"`
	NonOperatingExpenses *CategorySection `json:"non_operating_expenses"`
}

type CategorySection struct {
	PeriodStart string     `json:"period_start"`
	PeriodEnd   string     `json:"period_end"`
	LineItems   []LineItem `json:"line_items"`
}

type LineItem struct {
	AccountID string      `json:"account_id"`
	Name      string      `json:"name"`
	Value     json.Number `json:"value"`
	LineItems []LineItem  `json:"line_items"`
}

// categorySpec binds a section to its canonical group label and its sign in
// the derived profit chain.
type categorySpec struct {
	key   string
	group string
	get   func(*CategoryEntry) *CategorySection
}

var categorySpecs = []categorySpec{
	{key: "revenue", group: domain.GroupRevenue, get: func(e *CategoryEntry) *CategorySection { return e.Revenue }},
	{key: "cost_of_goods_sold", group: domain.GroupCOGS, get: func(e *CategoryEntry) *CategorySection { return e.CostOfGoodsSold }},
	{key: "operating_expenses", group: domain.GroupOpex, get: func(e *CategoryEntry) *CategorySection { return e.OperatingExpenses }},
	{key: "non_operating_revenue", group: domain.GroupNonOpRevenue, get: func(e *CategoryEntry) *CategorySection { return e.NonOperatingRevenue }},
	{key: "non_operating_expenses", group: domain.GroupNonOpExpense, get: func(e *CategoryEntry) *CategorySection { return e.NonOperatingExpenses }},
}

// ParseCategoryReport decodes raw JSON into period entries. The export wraps
// the entries under a top-level "data" key, either as a list (one entry per
// period) or a single object.
func ParseCategoryReport(raw []byte) ([]CategoryEntry, error) {
	var listEnvelope struct {
		Data []CategoryEntry `json:"data"`
	}
	if err := json.Unmarshal(raw, &listEnvelope); err == nil && len(listEnvelope.Data) > 0 {
		return listEnvelope.Data, nil
	}

	var oneEnvelope struct {
		Data *CategoryEntry `json:"data"`
	}
	if err := json.Unmarshal(raw, &oneEnvelope); err == nil && oneEnvelope.Data != nil {
		return []CategoryEntry{*oneEnvelope.Data}, nil
	}

	var entry CategoryEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("ParseCategoryReport: decoding document: %w", err)
	}
	return []CategoryEntry{entry}, nil
}

// FactsFromCategoryReport walks every category section of every entry and
// emits one fact per line item, then appends the derived profit metrics per
// period. A section with an unresolvable period is skipped with a warning.
func FactsFromCategoryReport(ctx context.Context, entries []CategoryEntry) ([]domain.FinancialFact, []string, error) {
	w := &categoryWalker{
		ctx:    ctx,
		totals: make(map[civil.Date]map[string]decimal.Decimal),
	}

	for i := range entries {
		for _, spec := range categorySpecs {
			section := spec.get(&entries[i])
			if section == nil {
				continue
			}
			w.walkSection(spec, section)
		}
	}

	w.emitDerived()
	return w.facts, w.warnings, nil
}

type categoryWalker struct {
	ctx      context.Context
	facts    []domain.FinancialFact
	warnings []string

	// totals accumulates per-period category totals from top-level items
	// only; nested items are already included in their parent's amount.
	totals map[civil.Date]map[string]decimal.Decimal
}

func (w *categoryWalker) walkSection(spec categorySpec, section *CategorySection) {
	p, err := period.Resolve(section.PeriodStart)
	if err != nil {
		w.warnf("category %q: %v", spec.key, err)
		return
	}

	rootID := "grp:" + slug(spec.key)
	for i := range section.LineItems {
		w.walkItem(&section.LineItems[i], spec, p, rootID, true)
	}
}

func (w *categoryWalker) walkItem(item *LineItem, spec categorySpec, p civil.Date, parentID string, topLevel bool) {
	if item.Name == "" {
		w.warnf("category %q: unnamed line item skipped: %v", spec.key, domain.ErrMalformedSourceNode)
		return
	}

	id := item.AccountID
	if id == "" {
		id = deriveAccountID(spec.key, item.Name)
	}

	if raw := item.Value.String(); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			w.warnf("category %q, item %q: value %q is not numeric", spec.key, item.Name, raw)
		} else {
			w.facts = append(w.facts, domain.FinancialFact{
				Period:          p,
				AccountID:       id,
				AccountName:     item.Name,
				Amount:          amount,
				ParentAccountID: parentID,
				Group:           spec.group,
				Source:          domain.SourceCategoryReport,
			})
			if topLevel {
				w.addTotal(p, spec.group, amount)
			}
		}
	}

	for i := range item.LineItems {
		w.walkItem(&item.LineItems[i], spec, p, id, false)
	}
}

func (w *categoryWalker) addTotal(p civil.Date, group string, amount decimal.Decimal) {
	byGroup, ok := w.totals[p]
	if !ok {
		byGroup = make(map[string]decimal.Decimal)
		w.totals[p] = byGroup
	}
	byGroup[group] = byGroup[group].Add(amount)
}

// emitDerived appends the profit chain for every period seen during the walk.
// A category absent for a period contributes zero rather than failing the
// computation. Derived facts live in a reserved identifier namespace and have
// no parent.
func (w *categoryWalker) emitDerived() {
	periods := make([]civil.Date, 0, len(w.totals))
	for p := range w.totals {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	for _, p := range periods {
		byGroup := w.totals[p]
		revenue := byGroup[domain.GroupRevenue]
		cogs := byGroup[domain.GroupCOGS]
		opex := byGroup[domain.GroupOpex]
		nonOpRev := byGroup[domain.GroupNonOpRevenue]
		nonOpExp := byGroup[domain.GroupNonOpExpense]

		gross := revenue.Sub(cogs)
		operating := gross.Sub(opex)
		net := operating.Add(nonOpRev).Sub(nonOpExp)

		w.emitDerivedFact(p, "gross_profit", "Gross Profit", gross)
		w.emitDerivedFact(p, "operating_profit", "Operating Profit", operating)
		w.emitDerivedFact(p, "net_profit", "Net Profit", net)
	}
}

func (w *categoryWalker) emitDerivedFact(p civil.Date, idSuffix, name string, amount decimal.Decimal) {
	w.facts = append(w.facts, domain.FinancialFact{
		Period:      p,
		AccountID:   domain.DerivedIDPrefix + idSuffix,
		AccountName: name,
		Amount:      amount,
		Group:       domain.GroupDerived,
		Source:      domain.SourceCategoryReport,
	})
}

func (w *categoryWalker) warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	w.warnings = append(w.warnings, msg)
	log := logger.FromContext(w.ctx)
	log.Warn().Str("source", domain.SourceCategoryReport).Msg(msg)
}
