package analytics

import (
	"sort"
	"strings"

	"github.com/boddenberg/cashflowiq-go/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	// MaxNotes is how many distinct descriptions a daily row shows.
	MaxNotes = 3
	// NotesSeparator joins the descriptions of one day.
	NotesSeparator = ", "
	// NotesMoreMarker is appended when a day has more than MaxNotes descriptions.
	NotesMoreMarker = "..."
)

// AggregateDaily collapses transactions into one row per calendar day,
// ordered by ascending date. The result does not depend on the order of
// transactions within a day.
func AggregateDaily(txns []domain.Transaction) []domain.DailyAggregate {
	type bucket struct {
		date         domain.Date
		in, out      decimal.Decimal
		descriptions map[string]bool
	}

	buckets := make(map[string]*bucket)
	for _, t := range txns {
		key := t.Date.String()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{date: t.Date, descriptions: make(map[string]bool)}
			buckets[key] = b
		}
		switch t.Amount.Sign() {
		case 1:
			b.in = b.in.Add(t.Amount)
		case -1:
			b.out = b.out.Add(t.Amount.Neg())
		}
		if d := strings.TrimSpace(t.Description); d != "" {
			b.descriptions[d] = true
		}
	}

	rows := make([]domain.DailyAggregate, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, domain.DailyAggregate{
			Date:      b.date,
			NetAmount: b.in.Sub(b.out),
			Inflows:   b.in,
			Outflows:  b.out,
			Notes:     mergeNotes(b.descriptions),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows
}

func mergeNotes(set map[string]bool) string {
	notes := make([]string, 0, len(set))
	for d := range set {
		notes = append(notes, d)
	}
	sort.Strings(notes)
	if len(notes) <= MaxNotes {
		return strings.Join(notes, NotesSeparator)
	}
	return strings.Join(notes[:MaxNotes], NotesSeparator) + NotesMoreMarker
}

// NetRows projects daily aggregates onto the (date, net) pairs consumed by
// balance reconciliation.
func NetRows(daily []domain.DailyAggregate) []domain.NetRow {
	rows := make([]domain.NetRow, len(daily))
	for i, d := range daily {
		rows[i] = domain.NetRow{Date: d.Date, NetAmount: d.NetAmount}
	}
	return rows
}
