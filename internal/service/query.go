package service

import (
	"context"
	"time"

	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/infra/observability"
	"github.com/boddenberg/cashflowiq-go/internal/infra/sandbox"
	"github.com/boddenberg/cashflowiq-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SampleRows is how many ledger rows are shown to the model.
const SampleRows = 3

// QueryService answers natural-language questions about the ledger.
type QueryService struct {
	store      *Store
	translator *Translator
	engine     port.QueryEngine
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewQueryService creates a QueryService.
func NewQueryService(store *Store, translator *Translator, engine port.QueryEngine, metrics *observability.Metrics, logger *zap.Logger) *QueryService {
	return &QueryService{
		store:      store,
		translator: translator,
		engine:     engine,
		metrics:    metrics,
		logger:     logger,
	}
}

// Ask translates question and runs the resulting query. The returned run
// is populated as far as the pipeline got, also on error: a failed
// translation yields *domain.ErrTranslation and a failed execution
// *domain.ErrExecution, both with the run's translation filled in.
func (q *QueryService) Ask(ctx context.Context, question, model string) (*domain.QueryRun, error) {
	ctx, span := tracer.Start(ctx, "QueryService.Ask")
	defer span.End()

	start := time.Now()
	defer func() {
		q.metrics.RecordRequestDuration("query", time.Since(start))
	}()

	run := &domain.QueryRun{ID: uuid.NewString(), Question: question}
	span.SetAttributes(attribute.String("query.run_id", run.ID))

	txns, err := q.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	run.Translation = q.translator.Translate(ctx, TranslationRequest{
		Question: question,
		Schema:   schemaColumns(),
		Sample:   sandbox.Sample(txns, SampleRows),
		Model:    model,
	})
	if !run.Translation.OK() {
		return run, run.Translation.Err()
	}

	result, err := q.engine.Execute(ctx, txns, run.Translation.Query())
	if err != nil {
		q.logger.Info("translated query failed",
			zap.String("run_id", run.ID),
			zap.String("query", run.Translation.Query()),
			zap.Error(err),
		)
		return run, err
	}
	run.Result = result
	return run, nil
}

// Execute runs a caller-written query against the current ledger.
func (q *QueryService) Execute(ctx context.Context, query string) (*domain.QueryResult, error) {
	ctx, span := tracer.Start(ctx, "QueryService.Execute")
	defer span.End()

	txns, err := q.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return q.engine.Execute(ctx, txns, query)
}

func schemaColumns() []string {
	cols := make([]string, len(sandbox.Schema))
	for i, c := range sandbox.Schema {
		cols[i] = c.Name + " " + c.Type
	}
	return cols
}
