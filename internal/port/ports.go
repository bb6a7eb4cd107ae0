// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"io"

	"github.com/boddenberg/cashflowiq-go/internal/domain"

	"github.com/shopspring/decimal"
)

// LedgerSource loads the full transaction ledger.
type LedgerSource interface {
	Load(ctx context.Context) ([]domain.Transaction, error)
}

// LedgerWriter replaces the persisted ledger with txns.
type LedgerWriter interface {
	Save(ctx context.Context, txns []domain.Transaction) error
}

// Ledger is a readable and writable ledger backend.
type Ledger interface {
	LedgerSource
	LedgerWriter
	// Name identifies the backend in logs and health checks.
	Name() string
}

// LedgerCodec converts between transactions and an upload/download format.
type LedgerCodec interface {
	Decode(r io.Reader) ([]domain.Transaction, error)
	Encode(w io.Writer, txns []domain.Transaction) error
	ContentType() string
}

// Completer sends one prompt to a language model.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error)
}

// QueryEngine runs a read-only query over a ledger snapshot.
type QueryEngine interface {
	Execute(ctx context.Context, txns []domain.Transaction, query string) (*domain.QueryResult, error)
}

// RateProvider answers exchange-rate lookups.
type RateProvider interface {
	Name() string
	Rate(ctx context.Context, base, target string) (decimal.Decimal, error)
}

// RateLookup resolves a rate through whatever fallbacks it owns.
type RateLookup interface {
	Lookup(ctx context.Context, base, target string) (*domain.Rate, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
