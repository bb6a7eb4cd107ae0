package analytics

import (
	"sort"

	"github.com/boddenberg/cashflowiq-go/internal/domain"

	"github.com/shopspring/decimal"
)

// MonthlyFlows sums inflows and outflows per YYYY-MM, ascending by month.
func MonthlyFlows(txns []domain.Transaction) []domain.MonthlyFlow {
	byMonth := make(map[string]*domain.MonthlyFlow)
	for _, t := range txns {
		key := t.Date.MonthKey()
		m, ok := byMonth[key]
		if !ok {
			m = &domain.MonthlyFlow{Month: key}
			byMonth[key] = m
		}
		if t.Amount.IsPositive() {
			m.Inflows = m.Inflows.Add(t.Amount)
		} else {
			m.Outflows = m.Outflows.Add(t.Amount.Abs())
		}
		m.Net = m.Inflows.Sub(m.Outflows)
	}

	out := make([]domain.MonthlyFlow, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// TotalsByType splits absolute amounts per transaction type into income
// (positive amounts) and expense (negative amounts), largest first.
func TotalsByType(txns []domain.Transaction) (income, expense []domain.TypeTotal) {
	in := make(map[string]decimal.Decimal)
	out := make(map[string]decimal.Decimal)
	for _, t := range txns {
		switch t.Amount.Sign() {
		case 1:
			in[t.Type] = in[t.Type].Add(t.Amount)
		case -1:
			out[t.Type] = out[t.Type].Add(t.Amount.Abs())
		}
	}
	return sortedTotals(in), sortedTotals(out)
}

func sortedTotals(m map[string]decimal.Decimal) []domain.TypeTotal {
	totals := make([]domain.TypeTotal, 0, len(m))
	for k, v := range m {
		totals = append(totals, domain.TypeTotal{Type: k, Amount: v})
	}
	sort.Slice(totals, func(i, j int) bool {
		if c := totals[i].Amount.Cmp(totals[j].Amount); c != 0 {
			return c > 0
		}
		return totals[i].Type < totals[j].Type
	})
	return totals
}
