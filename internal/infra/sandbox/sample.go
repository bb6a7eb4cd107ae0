package sandbox

import (
	"strings"
	"text/tabwriter"

	"github.com/boddenberg/cashflowiq-go/internal/domain"
)

// ColumnNames returns the column names of TableName in order.
func ColumnNames() []string {
	names := make([]string, len(Schema))
	for i, c := range Schema {
		names[i] = c.Name
	}
	return names
}

// Sample renders the first n transactions as an aligned text table, the
// way they would look when selected from TableName.
func Sample(txns []domain.Transaction, n int) string {
	if n > len(txns) {
		n = len(txns)
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	w.Write([]byte(strings.Join(ColumnNames(), "\t") + "\n"))
	for _, t := range txns[:n] {
		inv := ""
		if t.InventoryLevel != nil {
			inv = t.InventoryLevel.String()
		}
		w.Write([]byte(strings.Join([]string{
			t.Date.String(), t.Amount.String(), t.Category, t.Type,
			t.Description, t.Component, inv,
		}, "\t") + "\n"))
	}
	w.Flush()
	return strings.TrimRight(sb.String(), "\n")
}
