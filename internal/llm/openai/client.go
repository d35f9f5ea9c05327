package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/h2g-data/bidscan/internal/common"
	"github.com/h2g-data/bidscan/internal/llm"
)

// Client implements llm.CompletionService against an OpenAI-compatible
// chat completions endpoint.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends one user prompt and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	if c.cfg.APIKey == "" {
		return "", common.WrapError(common.ErrCompletion, "missing API key")
	}

	maxTokens := opts.MaxCompletionTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxCompletionTokens
	}
	effort := opts.ReasoningEffort
	if effort == "" {
		effort = c.cfg.ReasoningEffort
	}
	verbosity := opts.Verbosity
	if verbosity == "" {
		verbosity = c.cfg.Verbosity
	}

	body := map[string]any{
		"model":                 c.cfg.Model,
		"messages":              []chatMessage{{Role: "user", Content: prompt}},
		"max_completion_tokens": maxTokens,
	}
	if effort != "" {
		body["reasoning_effort"] = effort
	}
	if verbosity != "" {
		body["verbosity"] = verbosity
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}

	raw, status, err := llm.SendJSON(ctx, c.http, url, body, headers, c.logger)
	if err != nil {
		var parsed chatResponse
		if len(raw) > 0 && json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil {
			return "", common.WrapError(common.ErrCompletion,
				fmt.Sprintf("completion failed (status %d, %s): %s", status, parsed.Error.Type, parsed.Error.Message))
		}
		return "", fmt.Errorf("%w: %v", common.ErrCompletion, err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", common.WrapError(common.ErrCompletion, "decode completion response")
	}
	if len(parsed.Choices) == 0 {
		return "", common.WrapError(common.ErrCompletion, "completion returned no choices")
	}
	content := parsed.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", common.WrapError(common.ErrCompletion, "completion returned empty content")
	}
	return content, nil
}
