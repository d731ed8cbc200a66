// Package api talks to hosted language models. Providers wrap a single vendor
// SDK (Anthropic directly or through AWS Bedrock, Google Gemini). Client
// fans a request over the configured providers with a response cache in
// front and a heuristic fallback behind.
package api

import (
	"context"
	"errors"
)

// ErrNoProviders is returned when no provider is configured and the
// heuristic fallback is disabled.
var ErrNoProviders = errors.New("no AI providers configured")

// Provider is one language-model backend.
type Provider interface {
	// Name identifies the provider ("anthropic", "gemini").
	Name() string
	// Model is the model identifier requests are sent to.
	Model() string
	// Generate sends a single-turn request and returns the text reply.
	Generate(ctx context.Context, system, prompt string) (string, error)
	// Tracker reports token usage for the provider.
	Tracker() *TokenTracker
}
