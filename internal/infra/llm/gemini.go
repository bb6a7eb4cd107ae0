package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/infra/observability"
	"github.com/boddenberg/cashflowiq-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when neither the config nor the request names one.
const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini completes prompts with the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
	metrics *observability.Metrics
}

// NewGemini creates a Gemini completer. An empty apiKey falls back to the
// GEMINI_API_KEY / GOOGLE_API_KEY environment variables read by the SDK.
func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration, limiter *rate.Limiter, cb *gobreaker.CircuitBreaker, metrics *observability.Metrics) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{
		client:  client,
		model:   model,
		timeout: timeout,
		limiter: limiter,
		cb:      cb,
		metrics: metrics,
	}, nil
}

// Complete sends one generation request.
func (g *Gemini) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	ctx, span := tracer.Start(ctx, "Gemini.Complete")
	defer span.End()

	model := req.Model
	if model == "" {
		model = g.model
	}
	span.SetAttributes(attribute.String("llm.model", model))

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, resilience.ExternalError("gemini", err)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	result, err := g.cb.Execute(func() (any, error) {
		resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), cfg)
		if err != nil {
			return nil, err
		}
		text := resp.Text()
		if text == "" {
			return nil, fmt.Errorf("empty response from model %s", model)
		}
		out := &domain.Completion{Text: text}
		if resp.UsageMetadata != nil {
			out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
			out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		}
		return out, nil
	})
	if err != nil {
		g.metrics.IncrExternalError("gemini")
		return nil, resilience.ExternalError("gemini", err)
	}

	completion := result.(*domain.Completion)
	g.metrics.RecordTokens(completion.PromptTokens, completion.CompletionTokens)
	return completion, nil
}
