package service

import (
	"context"
	"fmt"
	"io"

	"github.com/boddenberg/cashflowiq-go/internal/analytics"
	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/infra/observability"
	"github.com/boddenberg/cashflowiq-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// LedgerService lists, imports and exports ledger transactions.
type LedgerService struct {
	store   *Store
	codec   port.LedgerCodec
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewLedgerService creates a LedgerService using codec for uploads and
// downloads.
func NewLedgerService(store *Store, codec port.LedgerCodec, metrics *observability.Metrics, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		store:   store,
		codec:   codec,
		metrics: metrics,
		logger:  logger,
	}
}

// Page is one page of a filtered ledger listing.
type Page struct {
	Items   []domain.Transaction
	Total   int
	HasMore bool
}

// DefaultPageSize is used when List is given no usable page size.
const DefaultPageSize = 20

// List returns the filtered ledger, page by page (page is 1-based).
func (l *LedgerService) List(ctx context.Context, filter domain.FilterSpec, page, pageSize int) (*Page, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.List")
	defer span.End()

	txns, err := l.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	filtered, err := analytics.Filter(txns, filter)
	if err != nil {
		return nil, err
	}

	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	// pages past the end are empty; the bound keeps the offset from overflowing
	from := len(filtered)
	if page-1 <= len(filtered)/pageSize {
		from = min((page-1)*pageSize, len(filtered))
	}
	to := from + min(pageSize, len(filtered)-from)
	return &Page{Items: filtered[from:to], Total: len(filtered), HasMore: to < len(filtered)}, nil
}

// Options lists the distinct categories and types of the current ledger.
func (l *LedgerService) Options(ctx context.Context) (*domain.FilterOptions, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.Options")
	defer span.End()

	txns, err := l.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.FilterOptions{
		Categories: analytics.Distinct(txns, func(t domain.Transaction) string { return t.Category }),
		Types:      analytics.Distinct(txns, func(t domain.Transaction) string { return t.Type }),
	}, nil
}

// Import decodes an uploaded ledger and merges it into the current one,
// dropping exact duplicates. With save unset the merge is only previewed.
func (l *LedgerService) Import(ctx context.Context, r io.Reader, save bool) (*domain.ImportResult, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.Import")
	defer span.End()

	incoming, err := l.codec.Decode(r)
	if err != nil {
		return nil, err
	}
	for i, t := range incoming {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	span.SetAttributes(
		attribute.Int("import.rows", len(incoming)),
		attribute.Bool("import.save", save),
	)

	result := &domain.ImportResult{Received: len(incoming)}
	merge := func(current []domain.Transaction) []domain.Transaction {
		merged, added := Merge(current, incoming)
		result.Added = added
		result.Duplicates = len(incoming) - added
		result.Total = len(merged)
		return merged
	}

	if !save {
		current, err := l.store.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		merge(current)
		return result, nil
	}

	err = l.store.Update(ctx, func(current []domain.Transaction) ([]domain.Transaction, error) {
		return merge(current), nil
	})
	if err != nil {
		return nil, err
	}
	result.Saved = true

	l.logger.Info("ledger imported",
		zap.Int("received", result.Received),
		zap.Int("added", result.Added),
		zap.Int("total", result.Total),
	)
	return result, nil
}

// Export writes the current ledger in the codec's format.
func (l *LedgerService) Export(ctx context.Context, w io.Writer) error {
	ctx, span := tracer.Start(ctx, "LedgerService.Export")
	defer span.End()

	txns, err := l.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	return l.codec.Encode(w, txns)
}

// ContentType is the media type Export writes.
func (l *LedgerService) ContentType() string {
	return l.codec.ContentType()
}

// Merge appends incoming to current and drops exact duplicates, keeping the
// first occurrence. added counts the incoming rows that were new.
func Merge(current, incoming []domain.Transaction) (merged []domain.Transaction, added int) {
	seen := make(map[string]bool, len(current)+len(incoming))
	merged = make([]domain.Transaction, 0, len(current)+len(incoming))
	for _, t := range current {
		if k := t.Key(); !seen[k] {
			seen[k] = true
			merged = append(merged, t)
		}
	}
	for _, t := range incoming {
		if k := t.Key(); !seen[k] {
			seen[k] = true
			merged = append(merged, t)
			added++
		}
	}
	return merged, added
}
