package openai

import "time"

// Config holds connection settings for the chat completions endpoint.
type Config struct {
	BaseURL             string
	APIKey              string
	Model               string
	MaxCompletionTokens int
	ReasoningEffort     string
	Verbosity           string
	Timeout             time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = "gpt-5-mini"
	}
	if c.MaxCompletionTokens <= 0 {
		c.MaxCompletionTokens = 8000
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	return c
}
