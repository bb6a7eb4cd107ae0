package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/infra/cache"
	"github.com/boddenberg/cashflowiq-go/internal/infra/observability"
	"github.com/boddenberg/cashflowiq-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Mocks ---

type mockLedger struct {
	mu      sync.Mutex
	txns    []domain.Transaction
	loadErr error
	saveErr error
	pingErr error
	delay   time.Duration
	loads   atomic.Int32
	saves   atomic.Int32
}

func (m *mockLedger) Name() string { return "mock" }

func (m *mockLedger) Ping(_ context.Context) error { return m.pingErr }

func (m *mockLedger) Load(_ context.Context) ([]domain.Transaction, error) {
	m.loads.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make([]domain.Transaction, len(m.txns))
	copy(out, m.txns)
	return out, nil
}

func (m *mockLedger) Save(_ context.Context, txns []domain.Transaction) error {
	m.saves.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.txns = append([]domain.Transaction(nil), txns...)
	return nil
}

func txn(date, amount, category, typ, desc string) domain.Transaction {
	return domain.Transaction{
		Date:        domain.MustParseDate(date),
		Amount:      decimal.RequireFromString(amount),
		Category:    category,
		Type:        typ,
		Description: desc,
	}
}

func newStore(l *mockLedger, metrics *observability.Metrics) *service.Store {
	return service.NewStore(l, cache.New[[]domain.Transaction](time.Minute), metrics, zap.NewNop())
}

// --- Tests ---

func TestStore_SnapshotIsCached(t *testing.T) {
	l := &mockLedger{txns: []domain.Transaction{txn("2024-01-01", "10", "Income", "Sales", "a")}}
	metrics := observability.NewMetrics()
	store := newStore(l, metrics)

	for i := 0; i < 3; i++ {
		got, err := store.Snapshot(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 transaction, got %d", len(got))
		}
	}

	if n := l.loads.Load(); n != 1 {
		t.Errorf("expected a single load, got %d", n)
	}
	if rate := metrics.Snapshot().StoreCacheHitRate; rate < 0.66 || rate > 0.67 {
		t.Errorf("expected hit rate 2/3, got %f", rate)
	}
}

func TestStore_ConcurrentMissesShareOneLoad(t *testing.T) {
	l := &mockLedger{
		txns:  []domain.Transaction{txn("2024-01-01", "10", "Income", "Sales", "a")},
		delay: 50 * time.Millisecond,
	}
	store := newStore(l, observability.NewMetrics())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Snapshot(context.Background()); err != nil {
				t.Errorf("snapshot: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := l.loads.Load(); n != 1 {
		t.Errorf("expected concurrent misses to share one load, got %d", n)
	}
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	l := &mockLedger{txns: []domain.Transaction{txn("2024-01-01", "10", "Income", "Sales", "a")}}
	store := newStore(l, observability.NewMetrics())

	first, _ := store.Snapshot(context.Background())
	first[0].Description = "changed"

	second, _ := store.Snapshot(context.Background())
	if second[0].Description != "a" {
		t.Errorf("cached ledger was modified through a snapshot: %q", second[0].Description)
	}
}

func TestStore_SaveInvalidates(t *testing.T) {
	l := &mockLedger{txns: []domain.Transaction{txn("2024-01-01", "10", "Income", "Sales", "a")}}
	store := newStore(l, observability.NewMetrics())

	if _, err := store.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	next := []domain.Transaction{
		txn("2024-01-01", "10", "Income", "Sales", "a"),
		txn("2024-01-02", "-4", "Expense", "Rent", "b"),
	}
	if err := store.Save(context.Background(), next); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, _ := store.Snapshot(context.Background())
	if len(got) != 2 {
		t.Fatalf("expected saved ledger to be visible, got %d rows", len(got))
	}
	if n := l.loads.Load(); n != 2 {
		t.Errorf("expected a reload after save, got %d loads", n)
	}
}

func TestStore_SaveFailureStillInvalidates(t *testing.T) {
	l := &mockLedger{txns: []domain.Transaction{txn("2024-01-01", "10", "Income", "Sales", "a")}, saveErr: errors.New("disk full")}
	store := newStore(l, observability.NewMetrics())
	store.Snapshot(context.Background())

	if err := store.Save(context.Background(), nil); err == nil {
		t.Fatal("expected save error")
	}
	store.Snapshot(context.Background())
	if n := l.loads.Load(); n != 2 {
		t.Errorf("expected reload after failed save, got %d loads", n)
	}
}

func TestStore_SaveRejectsUndatedTransaction(t *testing.T) {
	l := &mockLedger{}
	store := newStore(l, observability.NewMetrics())

	err := store.Save(context.Background(), []domain.Transaction{{Amount: decimal.NewFromInt(1)}})
	var valErr *domain.ErrValidation
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if l.saves.Load() != 0 {
		t.Error("invalid ledger must not reach the backend")
	}
}

func TestStore_Ping(t *testing.T) {
	l := &mockLedger{}
	store := newStore(l, observability.NewMetrics())
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("expected reachable ledger, got %v", err)
	}

	l.pingErr = errors.New("database is locked")
	if err := store.Ping(context.Background()); !errors.Is(err, l.pingErr) {
		t.Errorf("expected ping error, got %v", err)
	}
}

func TestStore_LoadError(t *testing.T) {
	store := newStore(&mockLedger{loadErr: errors.New("permission denied")}, observability.NewMetrics())

	if _, err := store.Snapshot(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestStore_Update(t *testing.T) {
	l := &mockLedger{txns: []domain.Transaction{txn("2024-01-01", "10", "Income", "Sales", "a")}}
	store := newStore(l, observability.NewMetrics())

	err := store.Update(context.Background(), func(cur []domain.Transaction) ([]domain.Transaction, error) {
		return append(cur, txn("2024-01-03", "5", "Income", "Interest", "c")), nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := store.Snapshot(context.Background())
	if len(got) != 2 || got[1].Type != "Interest" {
		t.Errorf("expected appended transaction, got %+v", got)
	}
}
