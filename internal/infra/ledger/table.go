// Package ledger implements the transaction ledger backends: CSV and XLSX
// files and an SQLite database. All of them share one tabular layout whose
// header is domain.LedgerColumns.
package ledger

import (
	"strings"

	"github.com/boddenberg/cashflowiq-go/internal/analytics"
	"github.com/boddenberg/cashflowiq-go/internal/domain"
)

// DecodeTable converts a header and its data rows into transactions.
// Required columns are checked before any row is read; malformed values
// produce *domain.ErrData with a 1-based data row number.
func DecodeTable(header []string, rows [][]string) ([]domain.Transaction, error) {
	idx := analytics.ColumnIndex(header)
	if missing := analytics.MissingColumns(idx, domain.RequiredLedgerColumns...); len(missing) > 0 {
		return nil, &domain.ErrSchema{Missing: missing}
	}

	get := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	txns := make([]domain.Transaction, 0, len(rows))
	for n, row := range rows {
		if blank(row) {
			continue
		}

		rawDate := get(row, "date")
		date, err := domain.ParseDate(rawDate)
		if err != nil {
			return nil, &domain.ErrData{Row: n + 1, Column: "date", Value: rawDate, Err: err}
		}
		rawAmount := get(row, "amount")
		amount, err := analytics.ParseAmount(rawAmount)
		if err != nil {
			return nil, &domain.ErrData{Row: n + 1, Column: "amount", Value: rawAmount, Err: err}
		}

		t := domain.Transaction{
			Date:        date,
			Amount:      amount,
			Category:    get(row, "category"),
			Type:        get(row, "type"),
			Description: get(row, "description"),
			Component:   get(row, "component"),
		}
		if rawInv := get(row, "inventory_level"); rawInv != "" {
			inv, err := analytics.ParseAmount(rawInv)
			if err != nil {
				return nil, &domain.ErrData{Row: n + 1, Column: "inventory_level", Value: rawInv, Err: err}
			}
			t.InventoryLevel = &inv
		}
		txns = append(txns, t)
	}
	return txns, nil
}

// EncodeTable renders transactions as header plus rows.
func EncodeTable(txns []domain.Transaction) [][]string {
	out := make([][]string, 0, len(txns)+1)
	out = append(out, append([]string(nil), domain.LedgerColumns...))
	for _, t := range txns {
		out = append(out, encodeRow(t))
	}
	return out
}

func encodeRow(t domain.Transaction) []string {
	inv := ""
	if t.InventoryLevel != nil {
		inv = t.InventoryLevel.String()
	}
	return []string{
		t.Date.String(),
		t.Amount.String(),
		t.Category,
		t.Type,
		t.Description,
		t.Component,
		inv,
	}
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
