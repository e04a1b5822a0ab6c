package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Source identifies the lineage of a fact. Facts from different sources are
// never merged, even when account names coincide; each source keeps its own
// account_id space.
const (
	SourceColumnReport   = "column_report"
	SourceCategoryReport = "category_report"
)

// Standard account groups shared by both source formats.
const (
	GroupRevenue      = "Income"
	GroupCOGS         = "Cost of Goods Sold"
	GroupOpex         = "Operating Expense"
	GroupNonOpRevenue = "Non-Operating Revenue"
	GroupNonOpExpense = "Non-Operating Expense"
	GroupDerived      = "Derived"
	GroupOther        = "Other"
)

// DerivedIDPrefix namespaces account IDs of computed aggregate facts so they
// can never collide with IDs taken from a source document.
const DerivedIDPrefix = "derived:"

// FinancialFact is one (period, account, amount) observation in the canonical
// schema. Facts are immutable once written; ParentAccountID forms a forest
// over accounts within a source and is structural, not period-scoped.
type FinancialFact struct {
	Period          civil.Date // first day of the period
	AccountID       string
	AccountName     string
	Amount          decimal.Decimal
	ParentAccountID string // empty for root accounts
	Group           string
	Source          string
}

// IsDerived reports whether the fact is a computed aggregate rather than a
// value taken verbatim from a source document.
func (f *FinancialFact) IsDerived() bool {
	return len(f.AccountID) > len(DerivedIDPrefix) && f.AccountID[:len(DerivedIDPrefix)] == DerivedIDPrefix
}
