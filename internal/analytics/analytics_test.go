package analytics_test

import (
	"errors"
	"testing"

	"github.com/boddenberg/cashflowiq-go/internal/analytics"
	"github.com/boddenberg/cashflowiq-go/internal/domain"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func txn(date, amount, category, typ, desc string) domain.Transaction {
	return domain.Transaction{
		Date:        domain.MustParseDate(date),
		Amount:      dec(amount),
		Category:    category,
		Type:        typ,
		Description: desc,
	}
}

func sampleLedger() []domain.Transaction {
	return []domain.Transaction{
		txn("2024-01-01", "1000", "Income", "Sales", "Invoice 1"),
		txn("2024-01-01", "-200", "Expense", "Rent", "Office"),
		txn("2024-01-02", "-50", "Expense", "Supplies", "Paper"),
		txn("2024-01-03", "300", "Income", "Services", "Consulting"),
		txn("2024-01-05", "-75", "Expense", "Supplies", "Ink"),
	}
}

// --- Filter ---

func TestFilter_EmptySetsReturnEverything(t *testing.T) {
	ledger := sampleLedger()

	got, err := analytics.Filter(ledger, domain.FilterSpec{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != len(ledger) {
		t.Errorf("expected %d rows, got %d", len(ledger), len(got))
	}
}

func TestFilter_DateRangeIsInclusive(t *testing.T) {
	spec := domain.FilterSpec{Range: &domain.DateRange{
		Start: domain.MustParseDate("2024-01-01"),
		End:   domain.MustParseDate("2024-01-03"),
	}}

	got, err := analytics.Filter(sampleLedger(), spec)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(got))
	}
	for _, tx := range got {
		if !spec.Range.Contains(tx.Date) {
			t.Errorf("row %s outside range", tx.Date)
		}
	}
}

func TestFilter_CategoryAndTypeAreConjunctive(t *testing.T) {
	spec := domain.FilterSpec{
		Categories: []string{"Expense"},
		Types:      []string{"Supplies", "Sales"},
	}

	got, err := analytics.Filter(sampleLedger(), spec)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	for _, tx := range got {
		if tx.Category != "Expense" || tx.Type != "Supplies" {
			t.Errorf("unexpected row %+v", tx)
		}
	}
}

func TestFilter_InvertedRangeIsRejected(t *testing.T) {
	spec := domain.FilterSpec{Range: &domain.DateRange{
		Start: domain.MustParseDate("2024-02-01"),
		End:   domain.MustParseDate("2024-01-01"),
	}}

	_, err := analytics.Filter(sampleLedger(), spec)
	var rangeErr *domain.ErrInvalidDateRange
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
}

func TestFilter_NoMatchIsEmptyNotError(t *testing.T) {
	got, err := analytics.Filter(sampleLedger(), domain.FilterSpec{Categories: []string{"Tax"}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

// --- Daily aggregation ---

func TestAggregateDaily_NetEqualsInflowsMinusOutflows(t *testing.T) {
	rows := analytics.AggregateDaily(sampleLedger())

	if len(rows) != 4 {
		t.Fatalf("expected 4 days, got %d", len(rows))
	}
	for _, r := range rows {
		if !r.NetAmount.Equal(r.Inflows.Sub(r.Outflows)) {
			t.Errorf("%s: net %s != %s - %s", r.Date, r.NetAmount, r.Inflows, r.Outflows)
		}
		if r.Inflows.IsNegative() || r.Outflows.IsNegative() {
			t.Errorf("%s: flows must not be negative", r.Date)
		}
	}

	first := rows[0]
	if !first.Inflows.Equal(dec("1000")) || !first.Outflows.Equal(dec("200")) || !first.NetAmount.Equal(dec("800")) {
		t.Errorf("unexpected first row %+v", first)
	}
}

func TestAggregateDaily_AscendingAndOrderIndependent(t *testing.T) {
	ledger := sampleLedger()
	reversed := make([]domain.Transaction, len(ledger))
	for i := range ledger {
		reversed[len(ledger)-1-i] = ledger[i]
	}

	a := analytics.AggregateDaily(ledger)
	b := analytics.AggregateDaily(reversed)

	for i := range a {
		if i > 0 && !a[i-1].Date.Before(a[i].Date) {
			t.Errorf("rows not ascending at %d", i)
		}
		if !a[i].Date.Equal(b[i].Date) || !a[i].NetAmount.Equal(b[i].NetAmount) || a[i].Notes != b[i].Notes {
			t.Errorf("row %d differs with input order: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestAggregateDaily_NotesCappedWithMarker(t *testing.T) {
	day := []domain.Transaction{
		txn("2024-03-01", "10", "Income", "Sales", "d"),
		txn("2024-03-01", "10", "Income", "Sales", "b"),
		txn("2024-03-01", "10", "Income", "Sales", "a"),
		txn("2024-03-01", "10", "Income", "Sales", "c"),
		txn("2024-03-01", "10", "Income", "Sales", "a"),
	}

	rows := analytics.AggregateDaily(day)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if want := "a, b, c..."; rows[0].Notes != want {
		t.Errorf("expected notes %q, got %q", want, rows[0].Notes)
	}

	rows = analytics.AggregateDaily(day[:2])
	if want := "b, d"; rows[0].Notes != want {
		t.Errorf("expected notes %q, got %q", want, rows[0].Notes)
	}
}

// --- Balance reconstruction ---

func TestReconcile_Example(t *testing.T) {
	got := analytics.Reconcile([]decimal.Decimal{dec("500"), dec("-200"), dec("100")}, dec("1000"))

	want := [][2]string{{"1000", "1500"}, {"1500", "1300"}, {"1300", "1400"}}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i, w := range want {
		if !got[i].Opening.Equal(dec(w[0])) || !got[i].Closing.Equal(dec(w[1])) {
			t.Errorf("record %d: expected (%s,%s), got (%s,%s)", i, w[0], w[1], got[i].Opening, got[i].Closing)
		}
	}
}

func TestReconcile_ChainInvariant(t *testing.T) {
	nets := []decimal.Decimal{dec("12.5"), dec("-3.25"), dec("0"), dec("-100"), dec("40")}
	got := analytics.Reconcile(nets, dec("7"))

	for i := range got {
		if !got[i].Closing.Equal(got[i].Opening.Add(nets[i])) {
			t.Errorf("record %d: closing != opening + net", i)
		}
		if i > 0 && !got[i].Opening.Equal(got[i-1].Closing) {
			t.Errorf("record %d: opening != previous closing", i)
		}
	}
}

func TestReconcile_OrderSensitive(t *testing.T) {
	forward := analytics.Reconcile([]decimal.Decimal{dec("500"), dec("-200"), dec("100")}, dec("1000"))
	backward := analytics.Reconcile([]decimal.Decimal{dec("100"), dec("-200"), dec("500")}, dec("1000"))

	if forward[0].Closing.Equal(backward[0].Closing) {
		t.Error("expected reordering to change balances")
	}
}

func TestReconcile_Empty(t *testing.T) {
	if got := analytics.Reconcile(nil, dec("1000")); len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}

func TestBuildStatement_UsesDailyOrder(t *testing.T) {
	rows := analytics.BuildStatement(analytics.AggregateDaily(sampleLedger()), dec("100000"))

	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if !rows[0].Opening.Equal(dec("100000")) {
		t.Errorf("expected opening 100000, got %s", rows[0].Opening)
	}
	if want := dec("100975"); !rows[len(rows)-1].Closing.Equal(want) {
		t.Errorf("expected final closing %s, got %s", want, rows[len(rows)-1].Closing)
	}
}

// --- Forecast ---

func history(pairs ...string) []domain.DatedAmount {
	out := make([]domain.DatedAmount, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.DatedAmount{Date: domain.MustParseDate(pairs[i]), Amount: dec(pairs[i+1])})
	}
	return out
}

func TestForecast_Example(t *testing.T) {
	h := history("2024-01-05", "1000", "2024-02-05", "1200", "2024-03-05", "800")

	f, err := analytics.Forecast(h, 2)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !f.Baseline.Equal(dec("1000")) {
		t.Errorf("expected baseline 1000, got %s", f.Baseline)
	}
	if !f.Trend.Equal(dec("-100")) {
		t.Errorf("expected trend -100, got %s", f.Trend)
	}

	want := []struct {
		date  string
		value string
	}{{"2024-04-05", "900"}, {"2024-05-05", "800"}}
	if len(f.Periods) != len(want) {
		t.Fatalf("expected %d periods, got %d", len(want), len(f.Periods))
	}
	for i, w := range want {
		p := f.Periods[i]
		if p.Index != i+1 {
			t.Errorf("period %d: expected index %d, got %d", i, i+1, p.Index)
		}
		if p.Date.String() != w.date {
			t.Errorf("period %d: expected date %s, got %s", i, w.date, p.Date)
		}
		if !p.Value.Equal(dec(w.value)) {
			t.Errorf("period %d: expected value %s, got %s", i, w.value, p.Value)
		}
	}
}

func TestForecast_ConstantSeriesHasZeroTrend(t *testing.T) {
	h := history("2024-01-10", "250", "2024-02-10", "250", "2024-03-10", "250", "2024-04-10", "250")

	f, err := analytics.Forecast(h, 5)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !f.Trend.IsZero() {
		t.Errorf("expected zero trend, got %s", f.Trend)
	}
	for _, p := range f.Periods {
		if !p.Value.Equal(dec("250")) {
			t.Errorf("period %d: expected 250, got %s", p.Index, p.Value)
		}
	}
}

func TestForecast_HorizonLongerThanHistory(t *testing.T) {
	f, err := analytics.Forecast(history("2024-06-15", "42"), 12)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(f.Periods) != 12 {
		t.Fatalf("expected 12 periods, got %d", len(f.Periods))
	}
	if !f.Trend.IsZero() {
		t.Errorf("single month must have zero trend, got %s", f.Trend)
	}
	if f.Periods[11].Date.String() != "2025-06-15" {
		t.Errorf("expected last period 2025-06-15, got %s", f.Periods[11].Date)
	}
}

func TestForecast_BaselineUsesLastSixMonths(t *testing.T) {
	h := history(
		"2024-01-01", "10000",
		"2024-02-01", "100", "2024-03-01", "100", "2024-04-01", "100",
		"2024-05-01", "100", "2024-06-01", "100", "2024-07-01", "100",
	)

	f, err := analytics.Forecast(h, 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !f.Baseline.Equal(dec("100")) {
		t.Errorf("expected baseline 100, got %s", f.Baseline)
	}
	if want := dec("-1650"); !f.Trend.Equal(want) {
		t.Errorf("expected trend %s, got %s", want, f.Trend)
	}
}

func TestForecast_Deterministic(t *testing.T) {
	h := history("2024-01-05", "1000", "2024-01-20", "-300", "2024-03-05", "800")

	a, _ := analytics.Forecast(h, 3)
	b, _ := analytics.Forecast(h, 3)
	for i := range a.Periods {
		if !a.Periods[i].Value.Equal(b.Periods[i].Value) || !a.Periods[i].Date.Equal(b.Periods[i].Date) {
			t.Errorf("period %d differs between runs", i)
		}
	}
}

func TestForecast_EmptyHistoryIsInsufficientData(t *testing.T) {
	_, err := analytics.Forecast(nil, 3)
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestForecast_NonPositivePeriods(t *testing.T) {
	_, err := analytics.Forecast(history("2024-01-05", "1"), 0)
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestForecast_MonthEndClamping(t *testing.T) {
	f, err := analytics.Forecast(history("2024-01-31", "10"), 2)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := f.Periods[0].Date.String(); got != "2024-02-29" {
		t.Errorf("expected 2024-02-29, got %s", got)
	}
	if got := f.Periods[1].Date.String(); got != "2024-03-31" {
		t.Errorf("expected 2024-03-31, got %s", got)
	}
}

func TestParseHistory_MissingColumns(t *testing.T) {
	_, err := analytics.ParseHistory([]string{"when", "amount"}, [][]string{{"2024-01-01", "1"}})
	var schema *domain.ErrSchema
	if !errors.As(err, &schema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
	if len(schema.Missing) != 1 || schema.Missing[0] != "date" {
		t.Errorf("expected missing [date], got %v", schema.Missing)
	}
}

func TestParseHistory_BadAmount(t *testing.T) {
	_, err := analytics.ParseHistory([]string{"Date", "Amount"}, [][]string{{"2024-01-01", "abc"}})
	var dataErr *domain.ErrData
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected ErrData, got %v", err)
	}
	if dataErr.Column != "amount" || dataErr.Row != 1 {
		t.Errorf("unexpected error location %+v", dataErr)
	}
}

// --- Projection ---

func TestProjectForecast_SeededFromHistory(t *testing.T) {
	f, err := analytics.Forecast(history("2024-01-05", "1000", "2024-02-05", "1200", "2024-03-05", "800"), 2)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	hist := []domain.Transaction{
		txn("2024-01-05", "1000", "Income", "Sales", ""),
		txn("2024-02-05", "1200", "Income", "Sales", ""),
		txn("2024-03-05", "800", "Income", "Sales", ""),
	}

	seed := analytics.ProjectionSeed(hist, dec("100000"))
	if !seed.Equal(dec("3000")) {
		t.Fatalf("expected seed 3000, got %s", seed)
	}

	proj := analytics.ProjectForecast(f.Periods, seed)
	if !proj[0].Opening.Equal(dec("3000")) || !proj[0].Closing.Equal(dec("3900")) {
		t.Errorf("unexpected first projection %+v", proj[0].BalanceRecord)
	}
	if !proj[1].Opening.Equal(proj[0].Closing) || !proj[1].Closing.Equal(dec("4700")) {
		t.Errorf("unexpected second projection %+v", proj[1].BalanceRecord)
	}
	for _, p := range proj {
		if !p.Closing.Equal(p.Opening.Add(p.Value)) {
			t.Errorf("period %d: closing != opening + forecast", p.Index)
		}
		if !p.Inflow.Sub(p.Outflow).Equal(p.Value) {
			t.Errorf("period %d: inflow - outflow != forecast", p.Index)
		}
	}
}

func TestProjectionSeed_FallbackWhenNoHistory(t *testing.T) {
	if got := analytics.ProjectionSeed(nil, dec("100000")); !got.Equal(dec("100000")) {
		t.Errorf("expected fallback seed, got %s", got)
	}
}

// --- Summaries ---

func TestMonthlyFlows(t *testing.T) {
	ledger := append(sampleLedger(), txn("2024-02-10", "-30", "Expense", "Rent", "Feb"))

	got := analytics.MonthlyFlows(ledger)
	if len(got) != 2 {
		t.Fatalf("expected 2 months, got %d", len(got))
	}
	if got[0].Month != "2024-01" || !got[0].Inflows.Equal(dec("1300")) || !got[0].Outflows.Equal(dec("325")) {
		t.Errorf("unexpected january %+v", got[0])
	}
	if got[1].Month != "2024-02" || !got[1].Net.Equal(dec("-30")) {
		t.Errorf("unexpected february %+v", got[1])
	}
}

func TestTotalsByType(t *testing.T) {
	income, expense := analytics.TotalsByType(sampleLedger())

	if len(income) != 2 || income[0].Type != "Sales" {
		t.Errorf("unexpected income totals %+v", income)
	}
	if len(expense) != 2 || expense[0].Type != "Rent" || !expense[1].Amount.Equal(dec("125")) {
		t.Errorf("unexpected expense totals %+v", expense)
	}
}
