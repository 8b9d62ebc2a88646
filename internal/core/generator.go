package core

import (
	"log/slog"
	"os"

	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/llm"
	"github.com/joseph-ayodele/invoice-extract/internal/llm/inference"
	"github.com/joseph-ayodele/invoice-extract/internal/llm/openai"
)

// NewGenerator picks the model backend named by cfg.Provider. It returns nil
// when the backend has no endpoint or key configured; extraction then only
// accepts text that is already model output.
func NewGenerator(cfg common.LLMConfig, logger *slog.Logger) llm.Generator {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
			logger.Warn("llm.backend.disabled", "provider", cfg.Provider, "reason", "no api key")
			return nil
		}
		logger.Info("llm.backend", "provider", cfg.Provider, "model", cfg.Model)
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxNewTokens,
			Timeout:     cfg.Timeout,
		}, logger)
	default:
		if cfg.BaseURL == "" {
			logger.Warn("llm.backend.disabled", "provider", cfg.Provider, "reason", "LLM_BASE_URL not set")
			return nil
		}
		logger.Info("llm.backend", "provider", cfg.Provider, "base_url", cfg.BaseURL)
		return inference.NewClient(inference.Config{
			BaseURL:      cfg.BaseURL,
			APIKey:       cfg.APIKey,
			MaxNewTokens: cfg.MaxNewTokens,
			Temperature:  cfg.Temperature,
			TopK:         cfg.TopK,
			Timeout:      cfg.Timeout,
		}, logger)
	}
}
