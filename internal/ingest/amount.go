package ingest

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// parseAmount parses a raw value cell into a decimal amount.
// Report exports use thousands separators ("1,234.56") and accounting-style
// parenthesized negatives ("(500.00)"). An empty cell carries no observation
// and is reported via the emitted flag; a non-numeric token is an error so the
// caller can skip the cell with a warning instead of coercing it to zero.
func parseAmount(raw string) (amount decimal.Decimal, emitted bool, err error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false, nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parseAmount: %q is not numeric", raw)
	}
	if negative {
		d = d.Neg()
	}

	return d, true, nil
}
