package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/infra/resilience"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite is a ledger stored in an SQLite database file.
type SQLite struct {
	db    *sql.DB
	retry resilience.Config
}

// NewSQLite opens (creating if needed) the database at path and migrates it.
// Writes that hit a busy or locked database are retried per retry.
func NewSQLite(ctx context.Context, path string, retry resilience.Config) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, err
	}

	retry.Retryable = isBusy
	return &SQLite{db: db, retry: retry}, nil
}

func (s *SQLite) Name() string { return "sqlite" }

// Close releases the database handle.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const selectLedger = `SELECT date, amount, category, type, description, component, inventory_level
FROM transactions ORDER BY id`

// Load returns every stored transaction in insertion order.
func (s *SQLite) Load(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, selectLedger)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var table [][]string
	for rows.Next() {
		var date, amount, category, typ, desc, component string
		var inv sql.NullString
		if err := rows.Scan(&date, &amount, &category, &typ, &desc, &component, &inv); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		table = append(table, []string{date, amount, category, typ, desc, component, inv.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger: %w", err)
	}
	return DecodeTable(domain.LedgerColumns, table)
}

const insertLedger = `INSERT INTO transactions
(date, amount, category, type, description, component, inventory_level)
VALUES (?, ?, ?, ?, ?, ?, ?)`

// Save replaces the stored ledger with txns in a single transaction.
func (s *SQLite) Save(ctx context.Context, txns []domain.Transaction) error {
	start := time.Now()
	err := resilience.RetryWithBackoff(ctx, s.retry, func() error {
		return s.replace(ctx, txns)
	})
	if err != nil {
		return fmt.Errorf("save ledger after %s: %w", time.Since(start).Round(time.Millisecond), err)
	}
	return nil
}

func (s *SQLite) replace(ctx context.Context, txns []domain.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertLedger)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txns {
		var inv any
		if t.InventoryLevel != nil {
			inv = t.InventoryLevel.String()
		}
		if _, err := stmt.ExecContext(ctx,
			t.Date.String(), t.Amount.String(), t.Category, t.Type,
			t.Description, t.Component, inv,
		); err != nil {
			return fmt.Errorf("insert %s: %w", t.Date, err)
		}
	}
	return tx.Commit()
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
