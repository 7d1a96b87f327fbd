package llm

import (
	"context"
	"time"
)

// Client defines the interface for LLM providers.
type Client interface {
	Classify(ctx context.Context, req Request) (Response, error)
}

// Request is one classification prompt.
type Request struct {
	System string
	Prompt string
	// Vendor is the normalized key being classified; providers ignore it,
	// the stub uses it to script answers.
	Vendor string
}

// Response is the collaborator's raw answer.
type Response struct {
	Text  string
	Model string
}

// Config holds provider settings.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	HTTPTimeout time.Duration
	Temperature float64
	MaxTokens   int
	RateLimit   int
}

func (c Config) httpTimeout() time.Duration {
	if c.HTTPTimeout <= 0 {
		return 60 * time.Second
	}
	return c.HTTPTimeout
}

func (c Config) maxTokens() int {
	if c.MaxTokens <= 0 {
		return 300
	}
	return c.MaxTokens
}
