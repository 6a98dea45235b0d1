// Package echo provides a testing provider that echoes the prompt back. It
// implements the domain.Provider interface without external API calls,
// giving deterministic responses for development and tests.
package echo

import (
	"context"
	"errors"
	"strings"

	"github.com/promptroute/promptroute/internal/domain"
	"github.com/promptroute/promptroute/internal/observability"
)

const providerName = "echo"

// Provider implements the domain.Provider interface for echo testing.
type Provider struct {
	name string
}

// NewProvider creates a new echo provider. No configuration is required as
// this provider operates entirely in-memory.
func NewProvider() *Provider {
	return &Provider{name: providerName}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Complete echoes the prompt back with word-based token counts.
func (p *Provider) Complete(
	ctx context.Context,
	_ string,
	req *domain.CompletionRequest,
) (*domain.CompletionResult, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	observability.FromContext(ctx).Debug("echoing request")

	tokens := countTokens(req.Prompt)
	return &domain.CompletionResult{
		Reply:        req.Prompt,
		InputTokens:  tokens,
		OutputTokens: tokens, // echo returns same size
	}, nil
}

// countTokens performs simple word-based token counting.
func countTokens(content string) int {
	return len(strings.Fields(content))
}
