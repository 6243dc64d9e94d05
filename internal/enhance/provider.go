// Package enhance implements the constrained enhancement tier: a single
// bounded language-model call for fields the deterministic tiers left
// below threshold. The model is an untrusted producer — its output must
// pass schema validation, the locked-field constraint, and the
// hallucination guard before any value crosses into the parsed event.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JacoLabs/eventparse/internal/config"
)

// Default provider endpoints and models.
const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-haiku-20241022"
	defaultOpenAIBaseURL    = "https://api.openai.com"
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultBaseBackoff      = 200 * time.Millisecond
	defaultBurst            = 5
)

// Provider generates a completion for a prompt. Implementations must
// decode at temperature 0 so identical inputs produce identical outputs.
type Provider interface {
	// Name identifies the provider in logs and audit records.
	Name() string

	// Complete sends the prompt and returns the raw model text.
	Complete(ctx context.Context, system, user string) (string, error)
}

// NewProvider creates a provider from configuration, or nil when the tier
// is disabled.
func NewProvider(cfg config.EnhanceConfig) (Provider, error) {
	if !cfg.Enabled || cfg.Provider == "disabled" || cfg.Provider == "" {
		return nil, nil
	}
	switch cfg.Provider {
	case "anthropic":
		return newAnthropicProvider(cfg)
	case "openai":
		return newOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown enhancement provider: %q", cfg.Provider)
	}
}

// retryableError marks transient failures worth one more attempt.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryableError reports whether an error is marked transient.
func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
