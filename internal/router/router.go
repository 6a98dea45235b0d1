// Package router is the core orchestrator: it authenticates callers, resolves
// the owning tenant and its provider credential, dispatches to the provider
// adapter, prices the call, and records usage.
package router

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/promptroute/promptroute/internal/domain"
	"github.com/promptroute/promptroute/internal/keys"
	"github.com/promptroute/promptroute/internal/observability"
	"github.com/promptroute/promptroute/internal/pricing"
	"github.com/promptroute/promptroute/internal/store"
)

// placeholder is the single substitution point in a prompt template.
const placeholder = "{input}"

// Store is the persistence surface the router needs.
type Store interface {
	ServiceKeyByHash(ctx context.Context, keyHash string) (*store.ServiceAPIKey, error)
	PromptTemplateByID(ctx context.Context, promptID string) (*store.PromptTemplate, error)
	HasActiveMembership(ctx context.Context, orgID, userID string) (bool, error)
	CredentialByUser(ctx context.Context, userID, provider string) (*store.Credential, error)
	CredentialByOrg(ctx context.Context, orgID, provider string) (*store.Credential, error)
}

// KeyCache is the optional authentication fast path.
type KeyCache interface {
	GetUserID(ctx context.Context, keyHash string) (string, bool)
	SetUserID(ctx context.Context, keyHash, userID string)
}

// Recorder persists usage after a successful dispatch.
type Recorder interface {
	Record(ctx context.Context, rec *domain.UsageRecord)
}

// Service routes prompt requests to provider adapters.
type Service struct {
	store    Store
	registry domain.ProviderRegistry
	cipher   domain.Cipher
	recorder Recorder
	cache    KeyCache
}

// NewService creates the router (DI constructor). cache may be nil.
func NewService(
	st Store,
	registry domain.ProviderRegistry,
	cipher domain.Cipher,
	recorder Recorder,
	cache KeyCache,
) *Service {
	return &Service{
		store:    st,
		registry: registry,
		cipher:   cipher,
		recorder: recorder,
		cache:    cache,
	}
}

// PromptRequest is a fully-specified routing request: the caller names the
// tenant scope, provider, model, and prompt text directly.
type PromptRequest struct {
	UserID    string `json:"user_id"`
	OrgID     string `json:"org_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	PromptID  string `json:"prompt_id,omitempty"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
}

// TemplateRequest is the strictly-typed envelope for the authenticated
// universal prompt endpoint.
type TemplateRequest struct {
	PromptID string `json:"prompt_id"`
	Input    string `json:"input"`
}

// TemplateResult is the universal endpoint's response shape.
type TemplateResult struct {
	Reply    string `json:"response"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	PromptID string `json:"prompt_id"`
}

// Authenticate resolves the user owning the presented bearer token. The token
// is looked up by its SHA-256 hash; authentication fails closed.
func (s *Service) Authenticate(ctx context.Context, bearer string) (string, error) {
	if bearer == "" {
		return "", domain.AuthenticationError("missing or invalid Authorization header")
	}

	hash := keys.HashKey(bearer)

	if s.cache != nil {
		if userID, ok := s.cache.GetUserID(ctx, hash); ok {
			return userID, nil
		}
	}

	key, err := s.store.ServiceKeyByHash(ctx, hash)
	if err != nil {
		return "", err
	}
	if key == nil {
		return "", domain.AuthenticationError("invalid API key")
	}

	if s.cache != nil {
		s.cache.SetUserID(ctx, hash, key.UserID)
	}

	return key.UserID, nil
}

// RoutePrompt dispatches one fully-specified prompt request: resolve the
// provider adapter and tenant credential, call the provider once (no
// retries), price the token counts, and record usage. A usage-write failure
// never fails the completion the caller already received.
func (s *Service) RoutePrompt(ctx context.Context, req *PromptRequest) (*domain.RouteResult, error) {
	if req.Provider == "" || req.Model == "" {
		return nil, domain.ValidationError("provider and model are required")
	}

	providerName := strings.ToLower(req.Provider)
	ctx = observability.WithProvider(ctx, providerName)
	ctx = observability.WithModel(ctx, req.Model)

	provider, err := s.registry.Get(ctx, providerName)
	if err != nil {
		return nil, err
	}

	apiKey, err := s.resolveCredential(ctx, req.UserID, req.OrgID, providerName)
	if err != nil {
		return nil, err
	}

	result, err := provider.Complete(ctx, apiKey, &domain.CompletionRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
	})
	if err != nil {
		// A failed upstream call is reported, not retried: LLM calls are
		// neither idempotent nor cheap to repeat.
		return nil, err
	}

	cost := pricing.Cost(providerName, req.Model, result.InputTokens, result.OutputTokens)

	logger := observability.FromContext(ctx)
	logger.Info("completion succeeded",
		zap.Int("total_tokens", result.TotalTokens()),
		zap.Float64("cost_usd", cost),
	)

	s.recorder.Record(ctx, &domain.UsageRecord{
		UserID:       req.UserID,
		OrgID:        req.OrgID,
		ProjectID:    req.ProjectID,
		PromptID:     req.PromptID,
		Provider:     providerName,
		Model:        req.Model,
		Prompt:       req.Prompt,
		Response:     result.Reply,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		TotalTokens:  result.TotalTokens(),
		CostUSD:      cost,
	})

	return &domain.RouteResult{
		Reply:        result.Reply,
		Provider:     providerName,
		Model:        req.Model,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		TotalTokens:  result.TotalTokens(),
		CostUSD:      cost,
	}, nil
}

// RouteTemplate serves the authenticated universal prompt path: fetch the
// named template, gate on template access, substitute the caller input, and
// dispatch through RoutePrompt.
func (s *Service) RouteTemplate(ctx context.Context, userID string, req *TemplateRequest) (*TemplateResult, error) {
	if req.PromptID == "" || req.Input == "" {
		return nil, domain.ValidationError("missing prompt_id or input")
	}

	ctx = observability.WithUserID(ctx, userID)

	tmpl, err := s.store.PromptTemplateByID(ctx, req.PromptID)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, domain.NotFoundError("prompt template not found")
	}

	if err := s.checkTemplateAccess(ctx, userID, tmpl); err != nil {
		return nil, err
	}

	// A template without the placeholder is sent verbatim and the caller's
	// input is discarded. Deliberate policy, surprising or not.
	promptText := req.Input
	if tmpl.Prompt != "" {
		promptText = strings.ReplaceAll(tmpl.Prompt, placeholder, req.Input)
	}

	result, err := s.RoutePrompt(ctx, &PromptRequest{
		UserID:    userID,
		OrgID:     tmpl.OrgID,
		ProjectID: tmpl.ProjectID,
		PromptID:  tmpl.ID,
		Provider:  tmpl.Provider,
		Model:     tmpl.Model,
		Prompt:    promptText,
	})
	if err != nil {
		return nil, err
	}

	return &TemplateResult{
		Reply:    result.Reply,
		Provider: result.Provider,
		Model:    result.Model,
		PromptID: tmpl.ID,
	}, nil
}

// checkTemplateAccess allows the template owner, then active members of the
// template's org. Templates without an org are owner-only.
func (s *Service) checkTemplateAccess(ctx context.Context, userID string, tmpl *store.PromptTemplate) error {
	if tmpl.UserID == userID {
		return nil
	}
	if tmpl.OrgID == "" {
		return domain.AuthorizationError("you do not have access to this prompt")
	}

	isMember, err := s.store.HasActiveMembership(ctx, tmpl.OrgID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return domain.AuthorizationError("you do not have access to this prompt")
	}
	return nil
}

// resolveCredential finds and decrypts the tenant credential for a provider.
// A user-scoped credential overrides the org default; a row that exists but
// cannot be decrypted aborts the call with a decryption error, distinct from
// not-found.
func (s *Service) resolveCredential(ctx context.Context, userID, orgID, provider string) (string, error) {
	cred, err := s.store.CredentialByUser(ctx, userID, provider)
	if err != nil {
		return "", err
	}
	if cred == nil && orgID != "" {
		cred, err = s.store.CredentialByOrg(ctx, orgID, provider)
		if err != nil {
			return "", err
		}
	}
	if cred == nil {
		return "", domain.NotFoundError("API key not found for user/provider")
	}

	apiKey, err := s.cipher.Decrypt(cred.APIKey)
	if err != nil {
		observability.FromContext(ctx).Error("credential decryption failed",
			zap.String("credential_id", cred.ID), zap.Error(err))
		return "", err
	}

	return apiKey, nil
}
