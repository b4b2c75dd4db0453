package ai

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/wise-mentor/backend/internal/config"
	"github.com/zhouzirui/wise-mentor/backend/internal/model/persona"
)

// NewFactory returns the provider constructor selected by cfg, or nil when the
// provider's credentials are missing.
func NewFactory(cfg config.AIConfig, p persona.Persona, log *logrus.Logger) Factory {
	if !cfg.Enabled() {
		return nil
	}

	switch cfg.Provider {
	case config.ProviderArk:
		return func(ctx context.Context) (Provider, error) {
			chatModel, err := cfg.NewChatModel(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to create chat model: %w", err)
			}
			return NewChainProvider(ctx, chatModel, p.SystemInstruction, cfg.HistoryTurns, log)
		}
	case config.ProviderGemini:
		return func(ctx context.Context) (Provider, error) {
			return NewGeminiProvider(ctx, GeminiOptions{
				ProjectID:         cfg.GeminiProject,
				Location:          cfg.GeminiLocation,
				Model:             cfg.GeminiModel,
				CredentialsFile:   cfg.GeminiCredentialsFile,
				SystemInstruction: p.SystemInstruction,
				Temperature:       cfg.Temperature,
				TopP:              cfg.TopP,
				TopK:              cfg.TopK,
				MaxTokens:         cfg.MaxTokens,
			}, log)
		}
	case config.ProviderOpenAI:
		return func(context.Context) (Provider, error) {
			return NewOpenAIProvider(OpenAIOptions{
				APIKey:            cfg.OpenAIKey,
				BaseURL:           cfg.OpenAIBaseURL,
				Model:             cfg.OpenAIModel,
				SystemInstruction: p.SystemInstruction,
				Temperature:       cfg.Temperature,
				TopP:              cfg.TopP,
				MaxTokens:         cfg.MaxTokens,
				HistoryTurns:      cfg.HistoryTurns,
			}, log), nil
		}
	default:
		return nil
	}
}
