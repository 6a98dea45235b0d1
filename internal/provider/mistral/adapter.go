// Package mistral provides an adapter for the Mistral chat completions API.
package mistral

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

// Config contains Mistral adapter configuration.
type Config struct {
	BaseURL string
	Timeout int // seconds
}

// Provider implements the domain.Provider interface for Mistral.
type Provider struct {
	baseURL    string
	httpClient *http.Client
	name       string
}

// NewProvider creates a new Mistral provider.
func NewProvider(config Config) *Provider {
	return &Provider{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
		name: "mistral",
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
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

	body := chatRequest{
		Model: req.Model,
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
		p.baseURL+"/v1/chat/completions",
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

	reply := ""
	if len(apiResp.Choices) > 0 {
		reply = apiResp.Choices[0].Message.Content
	}

	return &domain.CompletionResult{
		Reply:        reply,
		InputTokens:  apiResp.Usage.PromptTokens,
		OutputTokens: apiResp.Usage.CompletionTokens,
	}, nil
}
