package analytics

import (
	"github.com/boddenberg/cashflowiq-go/internal/domain"

	"github.com/shopspring/decimal"
)

// Reconcile runs the running-balance scan over nets in the order given:
// opening[0] = initial, closing[i] = opening[i] + nets[i],
// opening[i+1] = closing[i]. Row order is significant and is not changed.
func Reconcile(nets []decimal.Decimal, initial decimal.Decimal) []domain.BalanceRecord {
	out := make([]domain.BalanceRecord, len(nets))
	opening := initial
	for i, net := range nets {
		closing := opening.Add(net)
		out[i] = domain.BalanceRecord{Opening: opening, Closing: closing}
		opening = closing
	}
	return out
}

// ReconcileRows is Reconcile over ordered (date, net) rows.
func ReconcileRows(rows []domain.NetRow, initial decimal.Decimal) []domain.BalanceRecord {
	nets := make([]decimal.Decimal, len(rows))
	for i, r := range rows {
		nets[i] = r.NetAmount
	}
	return Reconcile(nets, initial)
}

// BuildStatement attaches reconciled balances to daily aggregates.
func BuildStatement(daily []domain.DailyAggregate, initial decimal.Decimal) []domain.StatementRow {
	balances := ReconcileRows(NetRows(daily), initial)
	rows := make([]domain.StatementRow, len(daily))
	for i := range daily {
		rows[i] = domain.StatementRow{DailyAggregate: daily[i], BalanceRecord: balances[i]}
	}
	return rows
}

// ProjectionSeed is the balance a forecast projection starts from: the sum
// of the filtered history, or fallback when there is no history.
func ProjectionSeed(history []domain.Transaction, fallback decimal.Decimal) decimal.Decimal {
	if len(history) == 0 {
		return fallback
	}
	sum := decimal.Zero
	for _, t := range history {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// ProjectForecast applies the running-balance scan to forecast periods,
// starting from seed. A positive forecast value is booked as inflow and a
// negative one as outflow.
func ProjectForecast(periods []domain.ForecastPeriod, seed decimal.Decimal) []domain.ProjectedPeriod {
	nets := make([]decimal.Decimal, len(periods))
	for i, p := range periods {
		nets[i] = p.Value
	}
	balances := Reconcile(nets, seed)

	out := make([]domain.ProjectedPeriod, len(periods))
	for i, p := range periods {
		pp := domain.ProjectedPeriod{ForecastPeriod: p, BalanceRecord: balances[i]}
		if p.Value.IsPositive() {
			pp.Inflow = p.Value
		} else {
			pp.Outflow = p.Value.Abs()
		}
		out[i] = pp
	}
	return out
}
