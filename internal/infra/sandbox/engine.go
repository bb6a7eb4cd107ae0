// Package sandbox executes read-only SQL over a ledger snapshot using an
// embedded SQLite engine.
//
// Every execution gets its own private in-memory database holding a single
// table named "data":
//
//	date TEXT, amount REAL, category TEXT, type TEXT,
//	description TEXT, component TEXT, inventory_level REAL
//
// Dates are stored as ISO text (YYYY-MM-DD). Compare them through SQLite's
// date() function, e.g. WHERE date(date) >= '2024-01-02'; date parts are
// available through strftime('%Y-%m', date).
package sandbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/infra/observability"
	"github.com/boddenberg/cashflowiq-go/internal/infra/resilience"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var tracer = otel.Tracer("sandbox")

// TableName is the only table visible to queries.
const TableName = "data"

// Schema lists the columns of TableName in order, with their SQL types.
var Schema = []domain.Column{
	{Name: "date", Type: "TEXT"},
	{Name: "amount", Type: "REAL"},
	{Name: "category", Type: "TEXT"},
	{Name: "type", Type: "TEXT"},
	{Name: "description", Type: "TEXT"},
	{Name: "component", Type: "TEXT"},
	{Name: "inventory_level", Type: "REAL"},
}

// Engine runs queries in isolated in-memory databases.
type Engine struct {
	bulkhead *resilience.Bulkhead
	timeout  time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewEngine creates an engine allowing maxConcurrent simultaneous
// executions, each bounded by timeout (zero means no extra bound).
func NewEngine(maxConcurrent int, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Engine {
	return &Engine{
		bulkhead: resilience.NewBulkhead(maxConcurrent),
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger,
	}
}

// Execute loads txns into a fresh table and runs query against it. query
// must be a single SELECT, WITH or VALUES statement. The connection is
// switched to query_only and cannot attach other databases, so the snapshot
// table is all the query can see; txns itself is never touched. Any failure
// to prepare or run the query is returned as *domain.ErrExecution.
func (e *Engine) Execute(ctx context.Context, txns []domain.Transaction, query string) (*domain.QueryResult, error) {
	ctx, span := tracer.Start(ctx, "Engine.Execute")
	defer span.End()
	span.SetAttributes(attribute.Int("ledger.rows", len(txns)))

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	query = strings.TrimSpace(query)
	stmt, err := singleStatement(query)
	if err != nil {
		return nil, e.fail(query, err)
	}

	var result *domain.QueryResult
	err = e.bulkhead.Do(ctx, func() error {
		var runErr error
		result, runErr = e.run(ctx, txns, stmt)
		return runErr
	})
	if err != nil {
		return nil, e.fail(query, err)
	}

	if result.Empty() {
		e.metrics.IncrQuery("empty")
	} else {
		e.metrics.IncrQuery("ok")
	}
	span.SetAttributes(attribute.Int("result.rows", len(result.Rows)))
	return result, nil
}

func (e *Engine) fail(query string, err error) error {
	e.metrics.IncrQuery("error")
	e.logger.Debug("sandbox query failed", zap.String("query", query), zap.Error(err))
	var execErr *domain.ErrExecution
	if errors.As(err, &execErr) {
		return err
	}
	return &domain.ErrExecution{Query: query, Err: err}
}

func (e *Engine) run(ctx context.Context, txns []domain.Transaction, query string) (*domain.QueryResult, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sandbox: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	// one connection keeps the in-memory database alive for the whole run
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire sandbox connection: %w", err)
	}
	defer conn.Close()

	if err := load(ctx, conn, txns); err != nil {
		return nil, err
	}
	if _, err := sqlite.Limit(conn, sqlite3.SQLITE_LIMIT_ATTACHED, 0); err != nil {
		return nil, fmt.Errorf("lock sandbox: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return nil, fmt.Errorf("lock sandbox: %w", err)
	}

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collect(rows)
}

func load(ctx context.Context, conn *sql.Conn, txns []domain.Transaction) error {
	cols := make([]string, len(Schema))
	for i, c := range Schema {
		cols[i] = c.Name + " " + c.Type
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", TableName, strings.Join(cols, ", "))
	if _, err := conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sandbox table: %w", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sandbox load: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s VALUES (?, ?, ?, ?, ?, ?, ?)", TableName))
	if err != nil {
		return fmt.Errorf("prepare sandbox load: %w", err)
	}
	defer stmt.Close()

	for _, t := range txns {
		var inv any
		if t.InventoryLevel != nil {
			inv = t.InventoryLevel.InexactFloat64()
		}
		if _, err := stmt.ExecContext(ctx,
			t.Date.String(), t.Amount.InexactFloat64(), t.Category, t.Type,
			t.Description, t.Component, inv,
		); err != nil {
			return fmt.Errorf("load sandbox row: %w", err)
		}
	}
	return tx.Commit()
}

func collect(rows *sql.Rows) (*domain.QueryResult, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	result := &domain.QueryResult{
		Columns: make([]domain.Column, len(types)),
		Rows:    [][]any{},
	}
	for i, ct := range types {
		result.Columns[i] = domain.Column{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
