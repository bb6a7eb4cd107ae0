package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/infra/observability"
	"github.com/boddenberg/cashflowiq-go/internal/infra/sandbox"
	"github.com/boddenberg/cashflowiq-go/internal/port"
	"github.com/boddenberg/cashflowiq-go/internal/service"

	"go.uber.org/zap"
)

type mockCompleter struct {
	text  string
	err   error
	calls int
	last  domain.CompletionRequest
}

func (m *mockCompleter) Complete(_ context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	m.calls++
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Completion{Text: m.text, PromptTokens: 10, CompletionTokens: 5}, nil
}

type mockEngine struct {
	result *domain.QueryResult
	err    error
	calls  int
}

func (m *mockEngine) Execute(_ context.Context, _ []domain.Transaction, query string) (*domain.QueryResult, error) {
	m.calls++
	if m.err != nil {
		return nil, &domain.ErrExecution{Query: query, Err: m.err}
	}
	return m.result, nil
}

func translate(completer *mockCompleter, question string) domain.Translation {
	tr := service.NewTranslator(completer, "test-model", observability.NewMetrics(), zap.NewNop())
	return tr.Translate(context.Background(), service.TranslationRequest{
		Question: question,
		Schema:   []string{"date TEXT", "amount REAL"},
		Sample:   "date        amount\n2024-01-01  10",
	})
}

// --- Translator ---

func TestTranslate_StripsFences(t *testing.T) {
	completer := &mockCompleter{text: "```sql\nSELECT SUM(amount) FROM data WHERE date(date) >= '2024-02-01'\n```"}

	got := translate(completer, "How much income since February?")
	if !got.OK() {
		t.Fatalf("expected translation, got failure %q", got.Reason())
	}
	if got.Query() != "SELECT SUM(amount) FROM data WHERE date(date) >= '2024-02-01'" {
		t.Errorf("unexpected query %q", got.Query())
	}
	if completer.last.Temperature != service.TranslationTemperature {
		t.Errorf("expected temperature %v, got %v", service.TranslationTemperature, completer.last.Temperature)
	}
	if completer.last.Model != "test-model" {
		t.Errorf("expected configured model, got %q", completer.last.Model)
	}
	for _, want := range []string{"Table: data", "amount REAL", "2024-01-01  10", "How much income since February?"} {
		if !strings.Contains(completer.last.Prompt, want) {
			t.Errorf("prompt is missing %q:\n%s", want, completer.last.Prompt)
		}
	}
	if !strings.Contains(completer.last.System, "date(date)") {
		t.Error("system prompt must state the date comparison rule")
	}
}

func TestTranslate_ProviderFailure(t *testing.T) {
	completer := &mockCompleter{err: &domain.ErrExternalService{Service: "openai", Err: errors.New("503")}}

	got := translate(completer, "total income?")
	if got.OK() {
		t.Fatal("expected failed translation")
	}
	if !strings.HasPrefix(got.Display(), domain.TranslationErrorMarker) {
		t.Errorf("expected display to start with marker, got %q", got.Display())
	}
	var trErr *domain.ErrTranslation
	if !errors.As(got.Err(), &trErr) {
		t.Errorf("expected ErrTranslation, got %v", got.Err())
	}
}

func TestTranslate_RejectsWrites(t *testing.T) {
	got := translate(&mockCompleter{text: "DROP TABLE data"}, "delete everything")
	if got.OK() {
		t.Fatalf("expected write statement to be rejected, got %q", got.Query())
	}
}

func TestTranslate_AcceptsCTE(t *testing.T) {
	got := translate(&mockCompleter{text: "with m as (select 1 as x) select x from m"}, "q")
	if !got.OK() {
		t.Fatalf("expected CTE to be accepted, got %q", got.Reason())
	}
}

func TestTranslate_EmptyReply(t *testing.T) {
	got := translate(&mockCompleter{text: "```sql\n```"}, "q")
	if got.OK() {
		t.Fatal("expected empty reply to fail")
	}
}

func TestTranslate_EmptyQuestion(t *testing.T) {
	completer := &mockCompleter{text: "SELECT 1"}

	got := translate(completer, "   ")
	if got.OK() {
		t.Fatal("expected empty question to fail")
	}
	if completer.calls != 0 {
		t.Error("model must not be called for an empty question")
	}
}

func TestTranslate_NoModelConfigured(t *testing.T) {
	tr := service.NewTranslator(nil, "", observability.NewMetrics(), zap.NewNop())

	got := tr.Translate(context.Background(), service.TranslationRequest{Question: "q"})
	if got.OK() {
		t.Fatal("expected failure without a model")
	}
}

func TestTranslate_CountsFailures(t *testing.T) {
	metrics := observability.NewMetrics()
	tr := service.NewTranslator(&mockCompleter{text: "UPDATE data SET amount = 0"}, "", metrics, zap.NewNop())

	tr.Translate(context.Background(), service.TranslationRequest{Question: "q"})
	if n := metrics.Snapshot().TranslationFailures; n != 1 {
		t.Errorf("expected 1 translation failure, got %d", n)
	}
}

func TestCleanQuery(t *testing.T) {
	tests := map[string]string{
		"SELECT 1":                   "SELECT 1",
		"  ```sql\nSELECT 1\n```  ":  "SELECT 1",
		"```SQL SELECT 1```":         "SELECT 1",
		"```\nSELECT 1;\n```":        "SELECT 1;",
		"```sqlite\nSELECT 2\n```\n": "SELECT 2",
	}
	for in, want := range tests {
		if got := service.CleanQuery(in); got != want {
			t.Errorf("CleanQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

// --- QueryService ---

func newQueryService(completer *mockCompleter, engine port.QueryEngine) *service.QueryService {
	metrics := observability.NewMetrics()
	store := newStore(&mockLedger{txns: statementLedger()}, metrics)
	tr := service.NewTranslator(completer, "", metrics, zap.NewNop())
	return service.NewQueryService(store, tr, engine, metrics, zap.NewNop())
}

func TestAsk_EndToEnd(t *testing.T) {
	engine := sandbox.NewEngine(1, 5*time.Second, observability.NewMetrics(), zap.NewNop())
	completer := &mockCompleter{text: "SELECT SUM(amount) AS total FROM data WHERE category = 'Income'"}

	run, err := newQueryService(completer, engine).Ask(context.Background(), "Total income?", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if run.ID == "" || !run.Translation.OK() {
		t.Errorf("unexpected run %+v", run)
	}
	if run.Result == nil || len(run.Result.Rows) != 1 || run.Result.Rows[0][0] != float64(600) {
		t.Errorf("expected total 600, got %+v", run.Result)
	}
	if !strings.Contains(completer.last.Prompt, "Invoice") {
		t.Error("expected ledger sample rows in the prompt")
	}
}

func TestAsk_TranslationFailureSkipsExecution(t *testing.T) {
	engine := &mockEngine{}
	completer := &mockCompleter{err: errors.New("quota exceeded")}

	run, err := newQueryService(completer, engine).Ask(context.Background(), "Total income?", "")
	var trErr *domain.ErrTranslation
	if !errors.As(err, &trErr) {
		t.Fatalf("expected ErrTranslation, got %v", err)
	}
	if run == nil || run.Translation.OK() {
		t.Fatalf("expected failed translation in run, got %+v", run)
	}
	if engine.calls != 0 {
		t.Error("failed translation must not be executed")
	}
}

func TestAsk_ExecutionFailure(t *testing.T) {
	engine := &mockEngine{err: errors.New("no such column: balance")}
	completer := &mockCompleter{text: "SELECT balance FROM data"}

	run, err := newQueryService(completer, engine).Ask(context.Background(), "Balance?", "")
	var execErr *domain.ErrExecution
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
	if run.Translation.Query() != "SELECT balance FROM data" {
		t.Errorf("expected translated query to be kept, got %q", run.Translation.Query())
	}
}

func TestExecute_Direct(t *testing.T) {
	engine := &mockEngine{result: &domain.QueryResult{Columns: []domain.Column{{Name: "n"}}, Rows: [][]any{}}}

	res, err := newQueryService(&mockCompleter{}, engine).Execute(context.Background(), "SELECT 1 AS n WHERE 0")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !res.Empty() {
		t.Error("expected empty result")
	}
}
