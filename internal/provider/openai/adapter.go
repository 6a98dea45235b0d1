// Package openai provides an adapter for the OpenAI API using the official
// SDK. It implements the domain.Provider interface; the API key belongs to
// the tenant and arrives on every call, so a client is built per request.
package openai

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/promptroute/promptroute/internal/domain"
	"github.com/promptroute/promptroute/internal/observability"
)

const systemPrompt = "You are a helpful assistant."

// Config contains OpenAI adapter configuration. API keys are per-tenant and
// never part of the config.
type Config struct {
	BaseURL string
	Timeout int // seconds
}

// Provider implements the domain.Provider interface for OpenAI.
type Provider struct {
	config Config
	name   string
}

// NewProvider creates a new OpenAI provider.
func NewProvider(config Config) *Provider {
	return &Provider{
		config: config,
		name:   "openai",
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Complete sends one completion request with the tenant's API key.
func (p *Provider) Complete(
	ctx context.Context,
	apiKey string,
	req *domain.CompletionRequest,
) (*domain.CompletionResult, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if apiKey == "" {
		return nil, domain.UpstreamError(p.name, errors.New("API key is empty"))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if p.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.config.BaseURL))
	}
	if p.config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(p.config.Timeout)*time.Second))
	}

	client := openai.NewClient(opts...)

	logger := observability.FromContext(ctx)
	logger.Debug("calling OpenAI API")

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(req.Prompt),
		},
	})
	if err != nil {
		logger.Error("OpenAI API call failed", zap.Error(err))
		return nil, domain.UpstreamError(p.name, err)
	}

	reply := ""
	if len(resp.Choices) > 0 {
		reply = resp.Choices[0].Message.Content
	}

	// Usage may be absent; zero values are acceptable.
	result := &domain.CompletionResult{
		Reply:        reply,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}

	logger.Debug("OpenAI API call succeeded",
		zap.Int("input_tokens", result.InputTokens),
		zap.Int("output_tokens", result.OutputTokens),
	)

	return result, nil
}
