package ledger

import (
	"context"
	"fmt"

	"github.com/boddenberg/cashflowiq-go/internal/infra/resilience"
	"github.com/boddenberg/cashflowiq-go/internal/port"
)

// Backend names accepted by Open.
const (
	BackendCSV    = "csv"
	BackendXLSX   = "xlsx"
	BackendSQLite = "sqlite"
)

// Open returns the ledger backend named by backend, stored at path.
func Open(ctx context.Context, backend, path string, retry resilience.Config) (port.Ledger, error) {
	switch backend {
	case BackendCSV, "":
		return NewCSVFile(path), nil
	case BackendXLSX:
		return NewXLSXFile(path), nil
	case BackendSQLite:
		return NewSQLite(ctx, path, retry)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}
