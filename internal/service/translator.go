package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/infra/observability"
	"github.com/boddenberg/cashflowiq-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// TranslationTemperature keeps generated queries close to deterministic.
const TranslationTemperature float32 = 0.1

const translatorSystemPrompt = `You are a professional SQL assistant.
Convert natural-language questions into a single valid SQLite query that fits the given schema.
Query only the table named "data". The "date" column holds ISO text (YYYY-MM-DD): compare it through date(date), for example WHERE date(date) >= '2024-02-01', and use strftime('%Y-%m', date) for months.
Positive amounts are income, negative amounts are expenses.
Return only the SQL query, without explanations or Markdown.`

var (
	fenceOpen  = regexp.MustCompile("(?i)^```(?:sqlite|sql)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
	readOnly   = regexp.MustCompile(`(?i)^(SELECT|WITH)\b`)
)

// TranslationRequest carries a question with the table context it is asked
// against.
type TranslationRequest struct {
	Question string
	// Schema lists the table columns, e.g. "amount REAL".
	Schema []string
	// Sample shows a few rows of the table as text.
	Sample string
	Model  string
}

// Translator turns natural-language questions into sandbox queries with a
// single language model call per question.
type Translator struct {
	completer port.Completer
	model     string
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewTranslator creates a Translator. completer may be nil when no model is
// configured; every translation then fails.
func NewTranslator(completer port.Completer, model string, metrics *observability.Metrics, logger *zap.Logger) *Translator {
	return &Translator{
		completer: completer,
		model:     model,
		metrics:   metrics,
		logger:    logger,
	}
}

// Translate never returns a Go error: any failure, including one of the
// model provider, is reported as a failed Translation.
func (t *Translator) Translate(ctx context.Context, req TranslationRequest) domain.Translation {
	ctx, span := tracer.Start(ctx, "Translator.Translate")
	defer span.End()

	tr := t.translate(ctx, req)
	t.metrics.IncrTranslation(tr.Status())
	span.SetAttributes(attribute.String("translation.status", string(tr.Status())))
	if !tr.OK() {
		t.logger.Warn("translation failed",
			zap.String("question", req.Question),
			zap.String("reason", tr.Reason()),
		)
	}
	return tr
}

func (t *Translator) translate(ctx context.Context, req TranslationRequest) domain.Translation {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return domain.Failed("question is empty")
	}
	if t.completer == nil {
		return domain.Failed("no language model configured")
	}

	model := req.Model
	if model == "" {
		model = t.model
	}

	completion, err := t.completer.Complete(ctx, domain.CompletionRequest{
		Model:       model,
		System:      translatorSystemPrompt,
		Prompt:      buildTranslationPrompt(question, req.Schema, req.Sample),
		Temperature: TranslationTemperature,
	})
	if err != nil {
		return domain.Failed(err.Error())
	}

	query := CleanQuery(completion.Text)
	if query == "" {
		return domain.Failed("model returned an empty query")
	}
	if !readOnly.MatchString(query) {
		return domain.Failed(fmt.Sprintf("model did not return a read-only query: %q", truncate(query, 120)))
	}
	return domain.Translated(query)
}

func buildTranslationPrompt(question string, schema []string, sample string) string {
	var sb strings.Builder
	sb.WriteString("Table: data\n")
	sb.WriteString("Schema: ")
	sb.WriteString(strings.Join(schema, ", "))
	sb.WriteString("\n\nSample rows:\n")
	sb.WriteString(sample)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nSQL query:")
	return sb.String()
}

// CleanQuery strips Markdown code fences and surrounding whitespace from a
// model reply.
func CleanQuery(text string) string {
	q := strings.TrimSpace(text)
	q = fenceOpen.ReplaceAllString(q, "")
	q = fenceClose.ReplaceAllString(q, "")
	return strings.TrimSpace(q)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
