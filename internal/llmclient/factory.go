// -- internal/llmclient/factory.go --
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/config"
)

// ErrNoProvider is returned when no provider is configured and none of the
// credential environment variables is set.
var ErrNoProvider = errors.New("no LLM provider configured: set DEEPSEEK_TOKEN, GLM_API_KEY, OPENAI_API_KEY or GEMINI_API_KEY")

// providerDefaults describes where a provider's credentials, endpoint and
// default models come from.
type providerDefaults struct {
	keyEnvs       []string
	endpointEnv   string
	endpoint      string
	modelEnv      string
	fastModel     string
	powerfulModel string
}

// resolutionOrder is the order in which credentials are probed when no
// provider is configured explicitly.
var resolutionOrder = []config.LLMProvider{
	config.ProviderDeepSeek,
	config.ProviderGLM,
	config.ProviderOpenAI,
	config.ProviderGemini,
}

var defaults = map[config.LLMProvider]providerDefaults{
	config.ProviderDeepSeek: {
		keyEnvs:       []string{"DEEPSEEK_TOKEN", "DEEPSEEK_API_KEY"},
		endpointEnv:   "DEEPSEEK_BASE_URL",
		endpoint:      "https://api.deepseek.com/v1",
		modelEnv:      "DEEPSEEK_MODEL",
		fastModel:     "deepseek-chat",
		powerfulModel: "deepseek-chat",
	},
	config.ProviderGLM: {
		keyEnvs:       []string{"GLM_API_KEY", "GLM_TOKEN"},
		endpointEnv:   "LLM_BASE_URL",
		endpoint:      "https://open.bigmodel.cn/api/paas/v4",
		modelEnv:      "LLM_MODEL",
		fastModel:     "glm-4-air",
		powerfulModel: "glm-4-air",
	},
	config.ProviderOpenAI: {
		keyEnvs:       []string{"OPENAI_API_KEY"},
		endpointEnv:   "OPENAI_BASE_URL",
		modelEnv:      "OPENAI_MODEL",
		fastModel:     "gpt-4o-mini",
		powerfulModel: "gpt-4o-mini",
	},
	config.ProviderGemini: {
		keyEnvs:       []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
		endpointEnv:   "GEMINI_BASE_URL",
		modelEnv:      "GEMINI_MODEL",
		fastModel:     "gemini-2.5-flash",
		powerfulModel: "gemini-2.5-pro",
	},
}

// Resolve turns the Oracle configuration into the model configurations of
// the fast and powerful tiers. An explicit provider wins; otherwise the first
// provider in resolution order with a credential in the environment is used.
// Explicit config values override environment values, which override the
// provider defaults.
func Resolve(cfg config.LLMConfig, getenv func(string) string) (fast, powerful config.LLMModelConfig, err error) {
	provider := cfg.Provider
	if provider == "" {
		for _, p := range resolutionOrder {
			if firstEnv(getenv, defaults[p].keyEnvs) != "" {
				provider = p
				break
			}
		}
		if provider == "" && cfg.APIKey == "" {
			return fast, powerful, ErrNoProvider
		}
		if provider == "" {
			provider = config.ProviderOpenAI
		}
	}

	d, ok := defaults[provider]
	if !ok {
		return fast, powerful, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'", provider)
	}

	base := config.LLMModelConfig{
		Provider:    provider,
		APIKey:      firstNonEmpty(cfg.APIKey, firstEnv(getenv, d.keyEnvs)),
		Endpoint:    firstNonEmpty(cfg.Endpoint, getenv(d.endpointEnv), d.endpoint),
		APITimeout:  cfg.APITimeout,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	if base.APIKey == "" {
		return fast, powerful, fmt.Errorf("%w: provider %s has no API key (set %s)", ErrNoProvider, provider, d.keyEnvs[0])
	}

	envModel := getenv(d.modelEnv)
	fast, powerful = base, base
	fast.Model = firstNonEmpty(cfg.FastModel, envModel, d.fastModel)
	powerful.Model = firstNonEmpty(cfg.PowerfulModel, envModel, d.powerfulModel)
	return fast, powerful, nil
}

// NewOracle builds the tier router for the configured provider, reading
// credentials from the process environment.
func NewOracle(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*Router, error) {
	return newOracle(ctx, cfg, logger, os.Getenv)
}

func newOracle(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger, getenv func(string) string) (*Router, error) {
	fastCfg, powerfulCfg, err := Resolve(cfg, getenv)
	if err != nil {
		return nil, err
	}

	// Both tiers share one limiter so the configured rate holds per provider.
	r := newRetrier(logger.Named("llm_retry"), cfg.RequestsPerSecond, cfg.RetryMaxElapsed)

	fast, err := newClient(ctx, fastCfg, logger, r)
	if err != nil {
		return nil, err
	}
	powerful := fast
	if powerfulCfg.Model != fastCfg.Model {
		if powerful, err = newClient(ctx, powerfulCfg, logger, r); err != nil {
			return nil, err
		}
	}

	logger.Info("Oracle configured.",
		zap.String("provider", string(fastCfg.Provider)),
		zap.String("fast_model", fastCfg.Model),
		zap.String("powerful_model", powerfulCfg.Model))
	return NewRouter(logger, fast, powerful)
}

// newClient creates the Oracle client for one resolved model.
func newClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger, r *retrier) (schemas.Oracle, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger, r)
	case config.ProviderOpenAI, config.ProviderDeepSeek, config.ProviderGLM:
		return NewOpenAIClient(cfg, logger, r)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'", cfg.Provider)
	}
}

func firstEnv(getenv func(string) string, keys []string) string {
	for _, k := range keys {
		if v := getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
