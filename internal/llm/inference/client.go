// Package inference talks to a self-hosted text-generation server that serves
// the fine-tuned invoice model.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extract/internal/llm"
)

// ErrNotConfigured is returned when no base URL was provided.
var ErrNotConfigured = errors.New("inference endpoint not configured")

// Config for the inference client.
type Config struct {
	BaseURL      string // e.g. http://localhost:8000
	APIKey       string // sent as a bearer token when set
	MaxNewTokens int
	Temperature  float32
	TopK         int
	Timeout      time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.MaxNewTokens <= 0 {
		cfg.MaxNewTokens = 1024
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type generateRequest struct {
	Prompt       string  `json:"prompt"`
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float32 `json:"temperature"`
	TopK         int     `json:"top_k"`
	DoSample     bool    `json:"do_sample"`
}

type generateResponse struct {
	GeneratedText string `json:"generated_text"`
}

// Generate implements llm.Generator. The returned text may still contain the
// echoed prompt; callers cut at the response marker.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(c.cfg.BaseURL) == "" {
		return "", ErrNotConfigured
	}
	start := time.Now()
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/generate"

	var headers map[string]string
	if c.cfg.APIKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	}

	raw, _, err := llm.SendJSON(ctx, c.http, endpoint, generateRequest{
		Prompt:       prompt,
		MaxNewTokens: c.cfg.MaxNewTokens,
		Temperature:  c.cfg.Temperature,
		TopK:         c.cfg.TopK,
		DoSample:     c.cfg.Temperature > 0,
	}, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.generate.http_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("generate: %w", err)
	}

	// Some servers wrap the result in a one-element array.
	trimmed := strings.TrimSpace(string(raw))
	var out generateResponse
	if strings.HasPrefix(trimmed, "[") {
		var arr []generateResponse
		if err := json.Unmarshal(raw, &arr); err != nil {
			return "", fmt.Errorf("decode generate response: %w", err)
		}
		if len(arr) == 0 {
			return "", fmt.Errorf("empty generate response")
		}
		out = arr[0]
	} else if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}

	c.logger.Info("llm.generate.ok",
		"prompt_len", len(prompt),
		"output_len", len(out.GeneratedText),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out.GeneratedText, nil
}
