package models

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"github.com/easeaico/recall/internal/config"
)

// NewLLM builds the chat backend selected by cfg.LLMProvider.
//
// OpenAI, Grok and OpenRouter share the OpenAI-compatible adapter and differ
// only by base URL; OpenRouter model names keep the vendor prefix
// ("openai/gpt-4o-mini"). Gemini goes through adk's native backend.
func NewLLM(ctx context.Context, cfg *config.Config) (model.LLM, error) {
	clientCfg := &genai.ClientConfig{APIKey: cfg.APIKey()}
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return NewOpenAIModel(ctx, cfg.ChatModel, clientCfg)
	case config.ProviderGrok:
		return newOpenAICompatible("grok", grokBaseURL, cfg.ChatModel, clientCfg)
	case config.ProviderOpenRouter:
		return newOpenAICompatible("openrouter", openRouterBaseURL, cfg.ChatModel, clientCfg)
	case config.ProviderGemini:
		return newGeminiModel(ctx, cfg.ChatModel, clientCfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}

func newGeminiModel(ctx context.Context, modelName string, cfg *genai.ClientConfig) (model.LLM, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini: %w", errMissingAPIKey)
	}
	if cfg.Backend == genai.BackendUnspecified {
		cfg.Backend = genai.BackendGeminiAPI
	}
	llm, err := gemini.NewModel(ctx, modelName, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini model: %w", err)
	}
	return llm, nil
}
