package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Veraticus/spice-deduct/internal/common"
	"github.com/Veraticus/spice-deduct/internal/config"
	"github.com/Veraticus/spice-deduct/internal/llm"
)

// createLLMClient creates the classification client named by llm.provider.
// API keys come from the config file first, then the provider's usual
// environment variable.
func createLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	provider := strings.ToLower(cfg.LLM.Provider)
	if provider == "" {
		provider = llm.ProviderOpenAI
	}

	clientCfg := llm.Config{
		Provider:    provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		HTTPTimeout: cfg.LLM.Timeout,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		RateLimit:   cfg.LLM.RateLimit,
	}

	var configured, envVar string
	switch provider {
	case llm.ProviderOpenAI:
		configured, envVar = cfg.LLM.OpenAIAPIKey, "OPENAI_API_KEY"
	case llm.ProviderAnthropic:
		configured, envVar = cfg.LLM.AnthropicAPIKey, "ANTHROPIC_API_KEY"
	case llm.ProviderGemini:
		configured, envVar = cfg.LLM.GeminiAPIKey, "GEMINI_API_KEY"
	case llm.ProviderStub:
	default:
		return nil, common.NewUserError("unsupported llm.provider "+cfg.LLM.Provider, common.ErrInvalidConfig)
	}

	if envVar != "" {
		clientCfg.APIKey = configured
		if clientCfg.APIKey == "" {
			clientCfg.APIKey = os.Getenv(envVar)
		}
		if clientCfg.APIKey == "" {
			return nil, common.NewUserError(
				fmt.Sprintf("%s API key not found in config or %s environment variable", provider, envVar),
				common.ErrMissingConfig)
		}
	}

	client, err := llm.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return client, nil
}
