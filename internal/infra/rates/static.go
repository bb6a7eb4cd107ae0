package rates

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/cashflowiq-go/internal/domain"

	"github.com/shopspring/decimal"
)

// StaticName is the source label of the static table.
const StaticName = "static"

// DefaultStaticRates are the last-resort rates, keyed "BASE_TARGET".
var DefaultStaticRates = map[string]string{
	"USD_EUR": "0.92",
	"USD_ILS": "3.75",
	"USD_GBP": "0.79",
	"EUR_USD": "1.09",
	"EUR_ILS": "4.08",
	"EUR_GBP": "0.86",
	"ILS_USD": "0.27",
	"ILS_EUR": "0.24",
	"ILS_GBP": "0.21",
	"GBP_USD": "1.26",
	"GBP_EUR": "1.16",
	"GBP_ILS": "4.75",
}

// StaticTable answers from a fixed set of pairs.
type StaticTable struct {
	rates map[string]decimal.Decimal
}

// NewStaticTable builds the table from DefaultStaticRates with overrides
// applied on top.
func NewStaticTable(overrides map[string]string) (*StaticTable, error) {
	t := &StaticTable{rates: make(map[string]decimal.Decimal, len(DefaultStaticRates)+len(overrides))}
	for _, src := range []map[string]string{DefaultStaticRates, overrides} {
		for pair, v := range src {
			rate, err := decimal.NewFromString(v)
			if err != nil || !rate.IsPositive() {
				return nil, fmt.Errorf("invalid static rate %s=%q", pair, v)
			}
			t.rates[strings.ToUpper(pair)] = rate
		}
	}
	return t, nil
}

// Name returns StaticName.
func (t *StaticTable) Name() string {
	return StaticName
}

// Rate returns the tabled rate or domain.ErrRateUnavailable.
func (t *StaticTable) Rate(_ context.Context, base, target string) (decimal.Decimal, error) {
	rate, ok := t.rates[base+"_"+target]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s_%s: %w", base, target, domain.ErrRateUnavailable)
	}
	return rate, nil
}
