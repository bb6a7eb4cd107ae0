package analytics

import (
	"sort"
	"strings"

	"github.com/boddenberg/cashflowiq-go/internal/domain"

	"github.com/shopspring/decimal"
)

// BaselineWindow is how many trailing months feed the forecast baseline.
const BaselineWindow = 6

// Forecast extrapolates periods future months from the history.
//
// The history is summed per calendar month. The baseline is the mean of the
// last BaselineWindow monthly sums and the trend is the two-point slope
// between the first and last month. Period i lands i months after the
// latest observation and is valued baseline + trend*i.
//
// An empty history yields domain.ErrInsufficientData.
func Forecast(history []domain.DatedAmount, periods int) (*domain.Forecast, error) {
	if periods <= 0 {
		return nil, &domain.ErrValidation{Field: "periods", Message: "must be a positive integer"}
	}
	if len(history) == 0 {
		return nil, domain.ErrInsufficientData
	}

	monthly := MonthlySeries(history)

	window := monthly
	if len(window) > BaselineWindow {
		window = window[len(window)-BaselineWindow:]
	}
	sum := decimal.Zero
	for _, m := range window {
		sum = sum.Add(m.Amount)
	}
	baseline := sum.Div(decimal.NewFromInt(int64(len(window))))

	trend := decimal.Zero
	if n := len(monthly); n > 1 {
		trend = monthly[n-1].Amount.Sub(monthly[0].Amount).Div(decimal.NewFromInt(int64(n - 1)))
	}

	last := history[0].Date
	for _, h := range history[1:] {
		if h.Date.After(last) {
			last = h.Date
		}
	}

	out := make([]domain.ForecastPeriod, periods)
	for i := 1; i <= periods; i++ {
		out[i-1] = domain.ForecastPeriod{
			Index: i,
			Date:  last.AddMonths(i),
			Value: baseline.Add(trend.Mul(decimal.NewFromInt(int64(i)))),
		}
	}

	return &domain.Forecast{
		Monthly:  monthly,
		Baseline: baseline,
		Trend:    trend,
		Periods:  out,
	}, nil
}

// MonthlySeries sums the history per calendar month. Each entry is dated
// on the first day of its month; months without observations are absent.
func MonthlySeries(history []domain.DatedAmount) []domain.DatedAmount {
	sums := make(map[string]*domain.DatedAmount)
	for _, h := range history {
		key := h.Date.MonthKey()
		m, ok := sums[key]
		if !ok {
			m = &domain.DatedAmount{Date: domain.NewDate(h.Date.Year(), h.Date.Month(), 1)}
			sums[key] = m
		}
		m.Amount = m.Amount.Add(h.Amount)
	}

	out := make([]domain.DatedAmount, 0, len(sums))
	for _, m := range sums {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// History projects transactions onto the (date, amount) pairs the
// forecaster consumes.
func History(txns []domain.Transaction) []domain.DatedAmount {
	out := make([]domain.DatedAmount, len(txns))
	for i, t := range txns {
		out[i] = domain.DatedAmount{Date: t.Date, Amount: t.Amount}
	}
	return out
}

// ParseHistory reads a header-plus-rows table into forecast history. The
// table must have "date" and "amount" columns (case-insensitive); otherwise
// *domain.ErrSchema is returned before any row is read.
func ParseHistory(header []string, rows [][]string) ([]domain.DatedAmount, error) {
	idx := ColumnIndex(header)
	if missing := MissingColumns(idx, "date", "amount"); len(missing) > 0 {
		return nil, &domain.ErrSchema{Missing: missing}
	}

	out := make([]domain.DatedAmount, 0, len(rows))
	for i, row := range rows {
		rawDate := cell(row, idx["date"])
		d, err := domain.ParseDate(rawDate)
		if err != nil {
			return nil, &domain.ErrData{Row: i + 1, Column: "date", Value: rawDate, Err: err}
		}
		rawAmount := cell(row, idx["amount"])
		amt, err := ParseAmount(rawAmount)
		if err != nil {
			return nil, &domain.ErrData{Row: i + 1, Column: "amount", Value: rawAmount, Err: err}
		}
		out = append(out, domain.DatedAmount{Date: d, Amount: amt})
	}
	return out, nil
}

// ColumnIndex maps lower-cased, trimmed header names to their position.
func ColumnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	return idx
}

// MissingColumns lists the required names absent from idx, in order.
func MissingColumns(idx map[string]int, required ...string) []string {
	var missing []string
	for _, r := range required {
		if _, ok := idx[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

// ParseAmount reads a signed decimal, tolerating thousands separators.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	return decimal.NewFromString(s)
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
