// Package anthropic provides an adapter for the Anthropic Messages API.
package anthropic

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

const (
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 1024
)

// Config contains Anthropic adapter configuration.
type Config struct {
	BaseURL string
	Timeout int // seconds
}

// Provider implements the domain.Provider interface for Anthropic.
type Provider struct {
	baseURL    string
	httpClient *http.Client
	name       string
}

// NewProvider creates a new Anthropic provider.
func NewProvider(config Config) *Provider {
	return &Provider{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
		name: "anthropic",
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Anthropic API request/response structures.
type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
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

	body := messagesRequest{
		Model:     req.Model,
		MaxTokens: defaultMaxTokens,
		Messages: []message{
			{Role: "user", Content: req.Prompt},
		},
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, domain.UpstreamError(p.name, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.baseURL+"/v1/messages",
		bytes.NewReader(reqBody),
	)
	if err != nil {
		return nil, domain.UpstreamError(p.name, fmt.Errorf("failed to create request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

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

	var apiResp messagesResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&apiResp); decodeErr != nil {
		return nil, domain.UpstreamError(p.name, fmt.Errorf("failed to decode response: %w", decodeErr))
	}

	reply := ""
	if len(apiResp.Content) > 0 {
		reply = apiResp.Content[0].Text
	}

	return &domain.CompletionResult{
		Reply:        reply,
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
	}, nil
}
