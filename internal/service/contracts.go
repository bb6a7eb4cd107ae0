package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/infra/observability"
	"github.com/boddenberg/cashflowiq-go/internal/port"

	"go.uber.org/zap"
)

// MaxContractChars bounds how much contract text is sent to the model.
const MaxContractChars = 3000

const (
	contractTemperature  float32 = 0.2
	analyzeMaxTokens             = 800
	askMaxTokens                 = 400
	contractAnalysisName         = "contract-analysis"
)

const analyzeSystemPrompt = "You are a financial contract analysis assistant. " +
	"Extract the following financial terms from the contract and return ONLY valid JSON, no explanations. " +
	"Each field should be a list of objects with the specified keys."

const analyzePrompt = `Extract the following financial terms from the contract text and return them as a JSON object with these fields:
- Payment Amounts: a list of objects, each with 'Product', 'Description', and 'Value' fields.
- Payment Dates: a list of objects, each with 'Type', 'Description', and 'Date' fields.
- Payment Terms: a list of objects, each with 'Type', 'Description', and 'Details' fields.
- Penalties: a list of objects, each with 'Type', 'Description', and 'Value' fields.
- Contract Period: a list of objects, each with 'Type', 'Description', and 'Value' fields.
Return only valid JSON, with each field as a list of objects as described above. Do not add any text or explanation.

`

const askSystemPrompt = "You are a smart contract assistant. " +
	"Answer every question about the attached contract briefly, clearly and accurately."

// ContractAnalyzer extracts financial terms from contract text and answers
// questions about it.
type ContractAnalyzer struct {
	completer port.Completer
	model     string
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewContractAnalyzer creates a ContractAnalyzer. completer may be nil when
// no model is configured.
func NewContractAnalyzer(completer port.Completer, model string, metrics *observability.Metrics, logger *zap.Logger) *ContractAnalyzer {
	return &ContractAnalyzer{
		completer: completer,
		model:     model,
		metrics:   metrics,
		logger:    logger,
	}
}

// Analyze returns the JSON object the model extracts from text.
func (a *ContractAnalyzer) Analyze(ctx context.Context, text, model string) (*domain.ContractAnalysis, error) {
	ctx, span := tracer.Start(ctx, "ContractAnalyzer.Analyze")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return nil, &domain.ErrValidation{Field: "text", Message: "contract text is required"}
	}

	model = a.pickModel(model)
	completion, err := a.complete(ctx, domain.CompletionRequest{
		Model:       model,
		System:      analyzeSystemPrompt,
		Prompt:      analyzePrompt + truncate(text, MaxContractChars),
		Temperature: contractTemperature,
		MaxTokens:   analyzeMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	raw := ExtractJSONObject(completion.Text)
	if raw == "" {
		return nil, &domain.ErrExternalService{Service: contractAnalysisName, Err: fmt.Errorf("model reply contains no JSON object")}
	}
	var terms map[string]any
	if err := json.Unmarshal([]byte(raw), &terms); err != nil {
		a.logger.Warn("contract analysis is not valid JSON", zap.Error(err))
		return nil, &domain.ErrExternalService{Service: contractAnalysisName, Err: fmt.Errorf("decode model reply: %w", err)}
	}
	return &domain.ContractAnalysis{Terms: terms, Model: model}, nil
}

// Ask answers a free-text question about the contract.
func (a *ContractAnalyzer) Ask(ctx context.Context, text, question, model string) (*domain.ContractAnswer, error) {
	ctx, span := tracer.Start(ctx, "ContractAnalyzer.Ask")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return nil, &domain.ErrValidation{Field: "text", Message: "contract text is required"}
	}
	if strings.TrimSpace(question) == "" {
		return nil, &domain.ErrValidation{Field: "question", Message: "question is required"}
	}

	model = a.pickModel(model)
	completion, err := a.complete(ctx, domain.CompletionRequest{
		Model:       model,
		System:      askSystemPrompt,
		Prompt:      fmt.Sprintf("Contract:\n%s\n\nQuestion: %s", truncate(text, MaxContractChars), question),
		Temperature: contractTemperature,
		MaxTokens:   askMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	return &domain.ContractAnswer{Answer: strings.TrimSpace(completion.Text), Model: model}, nil
}

func (a *ContractAnalyzer) complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	if a.completer == nil {
		return nil, &domain.ErrExternalService{Service: contractAnalysisName, Err: fmt.Errorf("no language model configured")}
	}
	return a.completer.Complete(ctx, req)
}

func (a *ContractAnalyzer) pickModel(model string) string {
	if model != "" {
		return model
	}
	return a.model
}

// ExtractJSONObject returns the span from the first '{' to the last '}' in
// text, or "" when there is none.
func ExtractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}
