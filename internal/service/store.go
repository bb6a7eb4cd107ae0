package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/infra/observability"
	"github.com/boddenberg/cashflowiq-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("service")

const ledgerCacheKey = "ledger"

// Store is the process-wide view of the ledger. Reads are served from a
// TTL cache; concurrent misses share a single load. Writes go to the
// backend and drop the cached copy while holding the write lock, so no
// reader sees a ledger that differs from what was persisted.
type Store struct {
	ledger  port.Ledger
	cache   port.Cache[[]domain.Transaction]
	group   singleflight.Group
	mu      sync.RWMutex
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewStore creates a Store over the given backend.
func NewStore(ledger port.Ledger, cache port.Cache[[]domain.Transaction], metrics *observability.Metrics, logger *zap.Logger) *Store {
	return &Store{
		ledger:  ledger,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// Backend names the ledger backend.
func (s *Store) Backend() string {
	return s.ledger.Name()
}

// Ping checks the backend is reachable. Backends without a liveness check
// always report nil.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.ledger.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Snapshot returns a copy of the current ledger. Callers may reorder or
// reslice it freely.
func (s *Store) Snapshot(ctx context.Context) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Store.Snapshot")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if cached, ok := s.cache.Get(ledgerCacheKey); ok {
		s.metrics.IncrCacheHit(ledgerCacheKey)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return slices.Clone(cached), nil
	}
	s.metrics.IncrCacheMiss(ledgerCacheKey)

	v, err, shared := s.group.Do(ledgerCacheKey, func() (any, error) {
		return s.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Bool("load.shared", shared))
	return slices.Clone(v.([]domain.Transaction)), nil
}

// Save replaces the persisted ledger and invalidates the cache.
func (s *Store) Save(ctx context.Context, txns []domain.Transaction) error {
	ctx, span := tracer.Start(ctx, "Store.Save")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, txns)
}

// Update applies fn to the current ledger and persists its result. The
// whole read-modify-write runs under the write lock.
func (s *Store) Update(ctx context.Context, fn func(current []domain.Transaction) ([]domain.Transaction, error)) error {
	ctx, span := tracer.Start(ctx, "Store.Update")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.cache.Get(ledgerCacheKey)
	if !ok {
		var err error
		if current, err = s.load(ctx); err != nil {
			return err
		}
	}

	next, err := fn(slices.Clone(current))
	if err != nil {
		return err
	}
	return s.save(ctx, next)
}

// Invalidate drops the cached ledger; the next read reloads it.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(ledgerCacheKey)
}

func (s *Store) load(ctx context.Context) ([]domain.Transaction, error) {
	start := time.Now()
	txns, err := s.ledger.Load(ctx)
	s.metrics.RecordRequestDuration("ledger_load", time.Since(start))
	if err != nil {
		s.logger.Error("failed to load ledger",
			zap.String("backend", s.ledger.Name()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}

	s.cache.Set(ledgerCacheKey, txns)
	s.metrics.SetLedgerRows(len(txns))
	s.logger.Debug("ledger loaded",
		zap.String("backend", s.ledger.Name()),
		zap.Int("rows", len(txns)),
	)
	return txns, nil
}

func (s *Store) save(ctx context.Context, txns []domain.Transaction) error {
	for i, t := range txns {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
	}

	start := time.Now()
	err := s.ledger.Save(ctx, txns)
	s.metrics.RecordRequestDuration("ledger_save", time.Since(start))
	s.cache.Delete(ledgerCacheKey)
	if err != nil {
		s.logger.Error("failed to save ledger",
			zap.String("backend", s.ledger.Name()),
			zap.Error(err),
		)
		return fmt.Errorf("save ledger: %w", err)
	}

	s.metrics.SetLedgerRows(len(txns))
	s.logger.Info("ledger saved",
		zap.String("backend", s.ledger.Name()),
		zap.Int("rows", len(txns)),
	)
	return nil
}
