// Package gemini provides an adapter for the Google Gemini generateContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/promptroute/promptroute/internal/domain"
)

// Config contains Gemini adapter configuration.
type Config struct {
	BaseURL string
	Timeout int // seconds
}

// Provider implements the domain.Provider interface for Gemini.
type Provider struct {
	baseURL    string
	httpClient *http.Client
	name       string
}

// NewProvider creates a new Gemini provider.
func NewProvider(config Config) *Provider {
	return &Provider{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
		name: "gemini",
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	// usageMetadata may be absent depending on model/version.
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
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

	body := generateRequest{
		Contents: []content{
			{Parts: []part{{Text: req.Prompt}}},
		},
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, domain.UpstreamError(p.name, fmt.Errorf("failed to marshal request: %w", err))
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		p.baseURL, url.PathEscape(req.Model), url.QueryEscape(apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, domain.UpstreamError(p.name, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	var apiResp generateResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&apiResp); decodeErr != nil {
		return nil, domain.UpstreamError(p.name, fmt.Errorf("failed to decode response: %w", decodeErr))
	}

	reply := ""
	if len(apiResp.Candidates) > 0 && len(apiResp.Candidates[0].Content.Parts) > 0 {
		reply = apiResp.Candidates[0].Content.Parts[0].Text
	}

	return &domain.CompletionResult{
		Reply:        reply,
		InputTokens:  apiResp.UsageMetadata.PromptTokenCount,
		OutputTokens: apiResp.UsageMetadata.CandidatesTokenCount,
	}, nil
}
