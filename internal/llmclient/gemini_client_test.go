package llmclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/config"
)

// -- Test Setup Helpers --

// setupGeminiClient rigs up a GeminiClient pointed at a mock HTTP server.
func setupGeminiClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	if handler == nil {
		handler = func(w http.ResponseWriter, r *http.Request) {
			t.Log("Warning: Unexpected HTTP request in test.")
			w.WriteHeader(http.StatusNotFound)
		}
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewGeminiClient(context.Background(), getValidLLMConfig(config.ProviderGemini, server.URL), setupTestLogger(t), fastRetrier(t))
	require.NoError(t, err, "NewGeminiClient initialization failed")
	return client
}

func isGenerateContent(r *http.Request) bool {
	return strings.HasSuffix(r.URL.Path, "/models/test-model:generateContent")
}

// -- Test Cases: Initialization --

func TestNewGeminiClient_Failure_MissingAPIKey(t *testing.T) {
	cfg := getValidLLMConfig(config.ProviderGemini, "")
	cfg.APIKey = ""

	client, err := NewGeminiClient(context.Background(), cfg, setupTestLogger(t), nil)
	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "Gemini API key is required")
}

// -- Test Cases: Request Building --

func TestGeminiClient_BuildRequest(t *testing.T) {
	client := setupGeminiClient(t, nil)

	req := schemas.GenerationRequest{
		Messages: []schemas.Message{
			schemas.SystemMessage("Analyze the project."),
			schemas.UserMessage("What framework is this?"),
			schemas.AssistantMessage("Looking.", []schemas.ToolCall{{ID: "call_0", Name: "read_file", Arguments: `{"path":"package.json"}`}}),
			{Role: schemas.RoleTool, Content: `{"name":"demo"}`, ToolCallID: "call_0", Name: "read_file"},
		},
		Tools: []schemas.ToolSchema{{Name: "read_file", Description: "Read a file", Parameters: map[string]any{"type": "object"}}},
		Options: schemas.GenerationOptions{
			ForceJSONFormat: true,
			Temperature:     0.2,
		},
	}

	contents, genCfg, err := client.buildRequest(req)
	require.NoError(t, err)

	require.NotNil(t, genCfg.SystemInstruction)
	assert.Equal(t, "Analyze the project.", genCfg.SystemInstruction.Parts[0].Text)
	assert.Equal(t, float32(0.2), *genCfg.Temperature)
	assert.Equal(t, int32(512), genCfg.MaxOutputTokens)
	assert.Empty(t, genCfg.ResponseMIMEType, "JSON mode is not combined with tools")
	require.Len(t, genCfg.Tools, 1)
	assert.Equal(t, "read_file", genCfg.Tools[0].FunctionDeclarations[0].Name)

	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	assert.Equal(t, "Looking.", contents[1].Parts[0].Text)
	assert.Equal(t, map[string]any{"path": "package.json"}, contents[1].Parts[1].FunctionCall.Args)
	assert.Equal(t, "read_file", contents[2].Parts[0].FunctionResponse.Name)
	assert.Equal(t, map[string]any{"output": `{"name":"demo"}`}, contents[2].Parts[0].FunctionResponse.Response)
}

func TestGeminiClient_BuildRequest_PromptPair(t *testing.T) {
	client := setupGeminiClient(t, nil)

	contents, genCfg, err := client.buildRequest(schemas.GenerationRequest{
		SystemPrompt: "System prompt instructions.",
		UserPrompt:   "User query.",
		Options:      schemas.GenerationOptions{ForceJSONFormat: true},
	})
	require.NoError(t, err)

	assert.Equal(t, "application/json", genCfg.ResponseMIMEType)
	assert.Equal(t, float32(0.7), *genCfg.Temperature, "falls back to the configured temperature")
	require.Len(t, contents, 1)
	assert.Equal(t, "User query.", contents[0].Parts[0].Text)
}

func TestGeminiClient_BuildRequest_InvalidToolArguments(t *testing.T) {
	client := setupGeminiClient(t, nil)
	_, _, err := client.buildRequest(schemas.GenerationRequest{Messages: []schemas.Message{
		schemas.AssistantMessage("", []schemas.ToolCall{{ID: "c", Name: "read_file", Arguments: "{not json"}}),
	}})
	assert.ErrorContains(t, err, "invalid arguments")
}

// -- Test Cases: Generate --

func TestGeminiClient_Generate_Text(t *testing.T) {
	client := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !isGenerateContent(r) {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
  "candidates": [{"content": {"role": "model", "parts": [{"text": "{\"framework\": \"react\"}"}]}, "finishReason": "STOP"}],
  "usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 4, "totalTokenCount": 14}
}`)
	})

	resp, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "Which framework?"})
	require.NoError(t, err)
	assert.Equal(t, `{"framework": "react"}`, resp.Text)
	assert.Equal(t, schemas.TokenUsage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14}, resp.Usage)
}

func TestGeminiClient_Generate_FunctionCall(t *testing.T) {
	client := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
  "candidates": [{"content": {"role": "model", "parts": [{"functionCall": {"name": "list_directory", "args": {"path": "src"}}}]}, "finishReason": "STOP"}]
}`)
	})

	resp, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "Explore."})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "list_directory", resp.ToolCalls[0].Name)
	assert.Equal(t, "call_0", resp.ToolCalls[0].ID, "missing call IDs are synthesized")
	assert.JSONEq(t, `{"path": "src"}`, resp.ToolCalls[0].Arguments)
}

func TestGeminiClient_Generate_Errors(t *testing.T) {
	t.Run("permanent", func(t *testing.T) {
		var calls int32
		client := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error": {"code": 400, "message": "API key not valid", "status": "INVALID_ARGUMENT"}}`)
		})

		_, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "hi"})
		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		var apiErr genai.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.Code)
	})

	t.Run("blocked", func(t *testing.T) {
		client := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"candidates": [{"content": {"role": "model", "parts": []}, "finishReason": "SAFETY"}]}`)
		})

		_, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "hi"})
		assert.ErrorContains(t, err, "blocked the request (Reason: SAFETY)")
	})

	t.Run("transient then success", func(t *testing.T) {
		var calls int32
		client := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = io.WriteString(w, `{"error": {"code": 503, "message": "overloaded", "status": "UNAVAILABLE"}}`)
				return
			}
			_, _ = io.WriteString(w, `{"candidates": [{"content": {"role": "model", "parts": [{"text": "ok"}]}, "finishReason": "STOP"}]}`)
		})

		resp, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "hi"})
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Text)
		assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
	})
}
