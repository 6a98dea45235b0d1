// Package cohere provides an adapter for the Cohere chat API.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/promptroute/promptroute/internal/domain"
)

// Config contains Cohere adapter configuration.
type Config struct {
	BaseURL string
	Timeout int // seconds
}

// Provider implements the domain.Provider interface for Cohere.
type Provider struct {
	baseURL    string
	httpClient *http.Client
	name       string
}

// NewProvider creates a new Cohere provider.
func NewProvider(config Config) *Provider {
	return &Provider{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
		name: "cohere",
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Cohere chat takes a single message field rather than a message list.
type chatRequest struct {
	Model   string `json:"model"`
	Message string `json:"message"`
}

type chatResponse struct {
	Text string `json:"text"`
	Meta struct {
		BilledUnits struct {
			InputTokens  float64 `json:"input_tokens"`
			OutputTokens float64 `json:"output_tokens"`
		} `json:"billed_units"`
	} `json:"meta"`
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

	reqBody, err := json.Marshal(chatRequest{Model: req.Model, Message: req.Prompt})
	if err != nil {
		return nil, domain.UpstreamError(p.name, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.baseURL+"/v1/chat",
		bytes.NewReader(reqBody),
	)
	if err != nil {
		return nil, domain.UpstreamError(p.name, fmt.Errorf("failed to create request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.UpstreamError(p.name, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return nil, domain.UpstreamError(p.name,
			fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(detail)))
	}

	var apiResp chatResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&apiResp); decodeErr != nil {
		return nil, domain.UpstreamError(p.name, fmt.Errorf("failed to decode response: %w", decodeErr))
	}

	return &domain.CompletionResult{
		Reply:        apiResp.Text,
		InputTokens:  int(apiResp.Meta.BilledUnits.InputTokens),
		OutputTokens: int(apiResp.Meta.BilledUnits.OutputTokens),
	}, nil
}
