// Package domain defines the core entities of the cash-flow engine.
// These models are independent of storage and transport and represent the
// canonical data structures used throughout CashFlowIQ.
package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ============================================================
// Ledger
// ============================================================

// Transaction is one ledger entry. The sign of Amount alone decides
// whether it is an inflow (positive) or an outflow (negative).
type Transaction struct {
	Date           Date             `json:"date"`
	Amount         decimal.Decimal  `json:"amount"`
	Category       string           `json:"category"`
	Type           string           `json:"type"`
	Description    string           `json:"description"`
	Component      string           `json:"component,omitempty"`
	InventoryLevel *decimal.Decimal `json:"inventory_level,omitempty"`
}

// Validate checks the invariants every stored transaction must hold.
func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return &ErrValidation{Field: "date", Message: "transaction date is required"}
	}
	return nil
}

// Key identifies a transaction by its full content. Two rows with the same
// key are duplicates for merge purposes.
func (t Transaction) Key() string {
	inv := ""
	if t.InventoryLevel != nil {
		inv = t.InventoryLevel.String()
	}
	return strings.Join([]string{
		t.Date.String(), t.Amount.String(), t.Category, t.Type,
		t.Description, t.Component, inv,
	}, "\x1f")
}

// LedgerColumns is the column order used by every tabular ledger format.
var LedgerColumns = []string{"date", "amount", "category", "type", "description", "component", "inventory_level"}

// RequiredLedgerColumns must be present in any imported ledger file.
var RequiredLedgerColumns = []string{"date", "amount", "category", "type", "description"}

// DateRange is a closed interval of days.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Contains reports whether d lies inside the range, bounds included.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// FilterSpec narrows a ledger. A nil Range or an empty set disables that
// criterion; the criteria combine conjunctively.
type FilterSpec struct {
	Range      *DateRange `json:"range,omitempty"`
	Categories []string   `json:"categories,omitempty"`
	Types      []string   `json:"types,omitempty"`
}

// FilterOptions lists the values a ledger can be filtered by, in the order
// they first appear.
type FilterOptions struct {
	Categories []string `json:"categories"`
	Types      []string `json:"types"`
}

// ImportResult describes the outcome of merging an uploaded ledger.
type ImportResult struct {
	Received   int  `json:"received"`
	Added      int  `json:"added"`
	Duplicates int  `json:"duplicates"`
	Total      int  `json:"total"`
	Saved      bool `json:"saved"`
}

// ============================================================
// Statement
// ============================================================

// DailyAggregate is one row per calendar day present after filtering.
// NetAmount always equals Inflows minus Outflows.
type DailyAggregate struct {
	Date      Date            `json:"date"`
	NetAmount decimal.Decimal `json:"net_amount"`
	Inflows   decimal.Decimal `json:"inflows"`
	Outflows  decimal.Decimal `json:"outflows"`
	Notes     string          `json:"notes"`
}

// BalanceRecord carries the running balance around one row.
type BalanceRecord struct {
	Opening decimal.Decimal `json:"opening_balance"`
	Closing decimal.Decimal `json:"closing_balance"`
}

// StatementRow is a daily aggregate with its reconciled balances.
type StatementRow struct {
	DailyAggregate
	BalanceRecord
}

// MonthlyFlow sums inflows and outflows for one YYYY-MM bucket.
type MonthlyFlow struct {
	Month    string          `json:"month"`
	Inflows  decimal.Decimal `json:"inflows"`
	Outflows decimal.Decimal `json:"outflows"`
	Net      decimal.Decimal `json:"net"`
}

// TypeTotal is the absolute amount booked under one transaction type.
type TypeTotal struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

// Statement is the reconciled cash-flow statement for a filtered ledger.
type Statement struct {
	Currency        string          `json:"currency"`
	Rate            *Rate           `json:"rate,omitempty"`
	RateUnavailable bool            `json:"rate_unavailable,omitempty"`
	Empty           bool            `json:"empty"`
	InitialBalance  decimal.Decimal `json:"initial_balance"`
	FinalBalance    decimal.Decimal `json:"final_balance"`
	TotalInflows    decimal.Decimal `json:"total_inflows"`
	TotalOutflows   decimal.Decimal `json:"total_outflows"`
	Rows            []StatementRow  `json:"rows"`
	Monthly         []MonthlyFlow   `json:"monthly"`
	IncomeByType    []TypeTotal     `json:"income_by_type"`
	ExpenseByType   []TypeTotal     `json:"expense_by_type"`
}

// ============================================================
// Forecast
// ============================================================

// DatedAmount is one (date, amount) observation fed to the forecaster.
type DatedAmount struct {
	Date   Date            `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// NetRow is one ordered (date, net amount) input to balance reconciliation.
type NetRow struct {
	Date      Date            `json:"date"`
	NetAmount decimal.Decimal `json:"net_amount"`
}

// ForecastPeriod is one projected future month.
type ForecastPeriod struct {
	Index int             `json:"period_index"`
	Date  Date            `json:"date"`
	Value decimal.Decimal `json:"forecast_value"`
}

// ProjectedPeriod is a forecast period with its projected balances.
type ProjectedPeriod struct {
	ForecastPeriod
	BalanceRecord
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
}

// Forecast is the trend extrapolation over the monthly history.
type Forecast struct {
	Monthly  []DatedAmount    `json:"monthly_history"`
	Baseline decimal.Decimal  `json:"baseline"`
	Trend    decimal.Decimal  `json:"trend"`
	Periods  []ForecastPeriod `json:"periods"`
}

// ForecastReport is a forecast together with its balance projection.
// When the filter matched nothing, the forecast is computed over the whole
// ledger and UsedFullHistory is set.
type ForecastReport struct {
	Forecast
	Currency        string            `json:"currency"`
	Rate            *Rate             `json:"rate,omitempty"`
	RateUnavailable bool              `json:"rate_unavailable,omitempty"`
	UsedFullHistory bool              `json:"used_full_history"`
	SeedBalance     decimal.Decimal   `json:"seed_balance"`
	Projection      []ProjectedPeriod `json:"projection"`
}

// ============================================================
// Query
// ============================================================

// Column describes one column of a query result.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// QueryResult is the table returned by a sandboxed query. A result with
// zero rows is valid and distinct from an execution failure.
type QueryResult struct {
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Empty reports whether the query matched nothing.
func (r *QueryResult) Empty() bool { return len(r.Rows) == 0 }

// QueryRun records one natural-language question answered end to end.
type QueryRun struct {
	ID          string       `json:"id"`
	Question    string       `json:"question,omitempty"`
	Translation Translation  `json:"translation"`
	Result      *QueryResult `json:"result,omitempty"`
}

// ============================================================
// Currency
// ============================================================

// Rate is an exchange rate and the source that produced it.
type Rate struct {
	Base   string          `json:"base"`
	Target string          `json:"target"`
	Value  decimal.Decimal `json:"value"`
	Source string          `json:"source"`
}

// ============================================================
// Contracts
// ============================================================

// ContractAnalysis holds the financial terms extracted from a contract.
type ContractAnalysis struct {
	Terms map[string]any `json:"terms"`
	Model string         `json:"model"`
}

// ContractAnswer is a free-text answer about a contract.
type ContractAnswer struct {
	Answer string `json:"answer"`
	Model  string `json:"model"`
}

// ============================================================
// Language model
// ============================================================

// CompletionRequest is one prompt sent to a language model.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Completion is a language model reply with its token usage.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
