// Package analytics implements the deterministic cash-flow pipeline:
// filtering, daily aggregation, balance reconciliation and trend
// forecasting. Every function here is pure; none mutates its input.
package analytics

import (
	"github.com/boddenberg/cashflowiq-go/internal/domain"
)

// Filter returns the transactions matching every criterion of spec.
// A range whose start is after its end is rejected with
// *domain.ErrInvalidDateRange. An empty match is a valid, non-nil result.
func Filter(txns []domain.Transaction, spec domain.FilterSpec) ([]domain.Transaction, error) {
	if r := spec.Range; r != nil && r.Start.After(r.End) {
		return nil, &domain.ErrInvalidDateRange{Start: r.Start, End: r.End}
	}

	categories := toSet(spec.Categories)
	types := toSet(spec.Types)

	out := make([]domain.Transaction, 0, len(txns))
	for _, t := range txns {
		if spec.Range != nil && !spec.Range.Contains(t.Date) {
			continue
		}
		if categories != nil && !categories[t.Category] {
			continue
		}
		if types != nil && !types[t.Type] {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// toSet returns nil for an empty list, meaning "no filtering".
func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// Span returns the earliest and latest dates in txns.
// ok is false when txns is empty.
func Span(txns []domain.Transaction) (first, last domain.Date, ok bool) {
	for i, t := range txns {
		if i == 0 || t.Date.Before(first) {
			first = t.Date
		}
		if i == 0 || t.Date.After(last) {
			last = t.Date
		}
	}
	return first, last, len(txns) > 0
}

// Distinct lists the distinct values of field over txns in first-seen order.
func Distinct(txns []domain.Transaction, field func(domain.Transaction) string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, t := range txns {
		v := field(t)
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
