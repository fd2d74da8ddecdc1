// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/config"
)

// GeminiClient implements schemas.Oracle for Google Gemini models.
type GeminiClient struct {
	client  *genai.Client
	cfg     config.LLMModelConfig
	logger  *zap.Logger
	retrier *retrier
}

var _ schemas.Oracle = (*GeminiClient)(nil)

// NewGeminiClient initializes the client. Endpoint, when set, replaces the
// public API base URL.
func NewGeminiClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger, r *retrier) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("Gemini model is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.APITimeout},
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	logger = logger.Named("llm_client.gemini").With(zap.String("model", cfg.Model))
	if r == nil {
		r = newRetrier(logger, 0, 0)
	}
	return &GeminiClient{client: client, cfg: cfg, logger: logger, retrier: r}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.OracleResponse, error) {
	contents, genCfg, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}

	var out *schemas.OracleResponse
	operation := func() error {
		start := time.Now()
		resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, genCfg)
		if err != nil {
			return classify(geminiStatus(err), fmt.Errorf("gemini request failed: %w", err))
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return backoff.Permanent(errors.New("gemini API returned no candidates"))
		}

		candidate := resp.Candidates[0]
		if len(candidate.Content.Parts) == 0 {
			reason := string(candidate.FinishReason)
			if reason == "SAFETY" || reason == "BLOCKLIST" {
				return backoff.Permanent(fmt.Errorf("gemini API blocked the request (Reason: %s)", reason))
			}
			return fmt.Errorf("gemini API returned empty content parts (Reason: %s)", reason)
		}

		out = &schemas.OracleResponse{}
		var text strings.Builder
		for i, part := range candidate.Content.Parts {
			if part.Text != "" && !part.Thought {
				text.WriteString(part.Text)
			}
			if fc := part.FunctionCall; fc != nil {
				args, err := json.MarshalToString(fc.Args)
				if err != nil {
					return backoff.Permanent(fmt.Errorf("failed to encode function call arguments: %w", err))
				}
				id := fc.ID
				if id == "" {
					id = fmt.Sprintf("call_%d", i)
				}
				out.ToolCalls = append(out.ToolCalls, schemas.ToolCall{ID: id, Name: fc.Name, Arguments: args})
			}
		}
		out.Text = text.String()
		if u := resp.UsageMetadata; u != nil {
			out.Usage = schemas.TokenUsage{
				PromptTokens:     int(u.PromptTokenCount),
				CompletionTokens: int(u.CandidatesTokenCount),
				TotalTokens:      int(u.TotalTokenCount),
			}
		}

		c.logger.Debug("LLM generation complete (Gemini).",
			zap.Duration("duration", time.Since(start)),
			zap.Int("tool_calls", len(out.ToolCalls)),
			zap.Int("total_tokens", out.Usage.TotalTokens))
		return nil
	}

	if err := c.retrier.do(ctx, operation); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *GeminiClient) buildRequest(req schemas.GenerationRequest) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	temperature := float32(req.Options.Temperature)
	if temperature == 0 {
		temperature = c.cfg.Temperature
	}
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}
	maxTokens := req.Options.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}
	if maxTokens > 0 {
		genCfg.MaxOutputTokens = int32(maxTokens)
	}
	if req.Options.ForceJSONFormat && len(req.Tools) == 0 {
		genCfg.ResponseMIMEType = "application/json"
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, tool := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 tool.Name,
				Description:          tool.Description,
				ParametersJsonSchema: tool.Parameters,
			})
		}
		genCfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	var system []string
	var contents []*genai.Content
	for _, m := range expandMessages(req) {
		switch m.Role {
		case schemas.RoleSystem:
			system = append(system, m.Content)

		case schemas.RoleAssistant:
			content := &genai.Content{Role: string(genai.RoleModel)}
			if m.Content != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				args := map[string]any{}
				if strings.TrimSpace(tc.Arguments) != "" {
					if err := json.UnmarshalFromString(tc.Arguments, &args); err != nil {
						return nil, nil, fmt.Errorf("tool call %s has invalid arguments: %w", tc.ID, err)
					}
				}
				content.Parts = append(content.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args}})
			}
			contents = append(contents, content)

		case schemas.RoleTool:
			contents = append(contents, &genai.Content{
				Role: string(genai.RoleUser),
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       m.ToolCallID,
					Name:     m.Name,
					Response: map[string]any{"output": m.Content},
				}}},
			})

		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		genCfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return contents, genCfg, nil
}

// geminiStatus extracts the HTTP status from a genai error, or 0 for
// transport failures.
func geminiStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

func (c *GeminiClient) Close() error { return nil }
