// internal/llmclient/openai_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/config"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, DeepSeek, GLM).
type OpenAIClient struct {
	client  *openai.Client
	cfg     config.LLMModelConfig
	logger  *zap.Logger
	retrier *retrier
}

var _ schemas.Oracle = (*OpenAIClient)(nil)

// NewOpenAIClient initializes the client. An empty Endpoint selects the
// provider's public API.
func NewOpenAIClient(cfg config.LLMModelConfig, logger *zap.Logger, r *retrier) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", cfg.Provider)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s model is required", cfg.Provider)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.APITimeout}

	logger = logger.Named("llm_client.openai").With(zap.String("provider", string(cfg.Provider)), zap.String("model", cfg.Model))
	if r == nil {
		r = newRetrier(logger, 0, 0)
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     cfg,
		logger:  logger,
		retrier: r,
	}, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.OracleResponse, error) {
	chatReq := c.buildRequest(req)

	var out *schemas.OracleResponse
	operation := func() error {
		start := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return classify(openAIStatus(err), fmt.Errorf("%s chat completion failed: %w", c.cfg.Provider, err))
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%s returned no choices", c.cfg.Provider)
		}

		msg := resp.Choices[0].Message
		out = &schemas.OracleResponse{
			Text: msg.Content,
			Usage: schemas.TokenUsage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
		}
		for _, tc := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, schemas.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}

		c.logger.Debug("LLM generation complete.",
			zap.Duration("duration", time.Since(start)),
			zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
			zap.Int("tool_calls", len(out.ToolCalls)),
			zap.Int("total_tokens", resp.Usage.TotalTokens))
		return nil
	}

	if err := c.retrier.do(ctx, operation); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OpenAIClient) buildRequest(req schemas.GenerationRequest) openai.ChatCompletionRequest {
	temperature := req.Options.Temperature
	if temperature == 0 {
		temperature = float64(c.cfg.Temperature)
	}
	maxTokens := req.Options.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    toOpenAIMessages(expandMessages(req)),
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
	}
	for _, tool := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	// JSON mode is incompatible with tool calling on most compatible providers.
	if req.Options.ForceJSONFormat && len(req.Tools) == 0 {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return chatReq
}

func toOpenAIMessages(msgs []schemas.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		msg := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if m.Role == schemas.RoleTool {
			msg.Name = m.Name
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

// openAIStatus extracts the HTTP status from a go-openai error, or 0 for
// transport failures.
func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func (c *OpenAIClient) Close() error { return nil }

// expandMessages returns the request's history, or the two message history
// built from its system and user prompts.
func expandMessages(req schemas.GenerationRequest) []schemas.Message {
	if len(req.Messages) > 0 {
		return req.Messages
	}
	var msgs []schemas.Message
	if req.SystemPrompt != "" {
		msgs = append(msgs, schemas.SystemMessage(req.SystemPrompt))
	}
	return append(msgs, schemas.UserMessage(req.UserPrompt))
}
