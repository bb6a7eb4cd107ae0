package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/infra/observability"
	"github.com/boddenberg/cashflowiq-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// DefaultChatBaseURL is the OpenAI API root.
const DefaultChatBaseURL = "https://api.openai.com/v1"

// DefaultChatModel is used when neither the config nor the request names one.
const DefaultChatModel = "gpt-4o-mini"

// ChatClient calls an OpenAI-compatible chat completions endpoint.
type ChatClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
}

// NewChatClient creates a new ChatClient.
func NewChatClient(httpClient *http.Client, baseURL, apiKey, model string, limiter *rate.Limiter, cb *gobreaker.CircuitBreaker, metrics *observability.Metrics) *ChatClient {
	if baseURL == "" {
		baseURL = DefaultChatBaseURL
	}
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		limiter:    limiter,
		cb:         cb,
		metrics:    metrics,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends one chat completion request. Requests are not retried:
// a translation is a single external call.
func (c *ChatClient) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	ctx, span := tracer.Start(ctx, "ChatClient.Complete")
	defer span.End()

	model := req.Model
	if model == "" {
		model = c.model
	}
	span.SetAttributes(attribute.String("llm.model", model))

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, resilience.ExternalError("openai", err)
	}

	payload := chatRequest{
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.System != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: req.System})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: req.Prompt})

	result, err := c.cb.Execute(func() (any, error) {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("chat API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}

		var chatResp chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
			return nil, fmt.Errorf("decode chat response: %w", err)
		}
		if len(chatResp.Choices) == 0 {
			return nil, fmt.Errorf("chat API returned no choices")
		}
		return &domain.Completion{
			Text:             chatResp.Choices[0].Message.Content,
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
		}, nil
	})
	if err != nil {
		c.metrics.IncrExternalError("openai")
		return nil, resilience.ExternalError("openai", err)
	}

	completion := result.(*domain.Completion)
	c.metrics.RecordTokens(completion.PromptTokens, completion.CompletionTokens)
	return completion, nil
}
