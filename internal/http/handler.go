package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/promptroute/promptroute/internal/access"
	"github.com/promptroute/promptroute/internal/domain"
	"github.com/promptroute/promptroute/internal/keys"
	"github.com/promptroute/promptroute/internal/observability"
	"github.com/promptroute/promptroute/internal/pricing"
	"github.com/promptroute/promptroute/internal/router"
)

// Handler handles HTTP requests.
type Handler struct {
	router    *router.Service
	keys      *keys.Service
	evaluator *access.Evaluator
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(routerSvc *router.Service, keySvc *keys.Service, evaluator *access.Evaluator) *Handler {
	return &Handler{
		router:    routerSvc,
		keys:      keySvc,
		evaluator: evaluator,
	}
}

// writeJSON encodes a response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps an application error to its HTTP-equivalent status.
func writeError(w http.ResponseWriter, err error) {
	var appErr *domain.Error
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.Kind.HTTPStatus(), map[string]string{"error": appErr.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// decodeBody strictly decodes a JSON request body.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.ValidationError(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// bearerToken extracts the Bearer credential from the Authorization header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// HandleUniversalPrompt serves POST /v1/prompt: authenticate the service key,
// resolve the named template, and route.
func (h *Handler) HandleUniversalPrompt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := h.router.Authenticate(ctx, bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	ctx = observability.WithUserID(ctx, userID)

	var req router.TemplateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.router.RouteTemplate(ctx, userID, &req)
	if err != nil {
		observability.FromContext(ctx).Error("universal prompt failed", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		*router.TemplateResult
	}{Status: "success", TemplateResult: result})
}

// HandleRoutePrompt serves POST /route-prompt with an explicit tenant,
// provider, model, and prompt.
func (h *Handler) HandleRoutePrompt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req router.PromptRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID == "" {
		writeError(w, domain.ValidationError("user_id is required"))
		return
	}
	ctx = observability.WithUserID(ctx, req.UserID)

	result, err := h.router.RoutePrompt(ctx, &req)
	if err != nil {
		observability.FromContext(ctx).Error("route-prompt failed", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		*domain.RouteResult
	}{Status: "success", RouteResult: result})
}

// HandleStoreKey serves POST /store-key: encrypt and upsert a provider
// credential for a user or org scope.
func (h *Handler) HandleStoreKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		OrgID    string `json:"org_id"`
		Provider string `json:"provider"`
		APIKey   string `json:"api_key"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.keys.StoreCredential(r.Context(), req.UserID, req.OrgID, req.Provider, req.APIKey); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// HandleGetKeys serves GET /get-keys/{user_id}: list decrypted credentials.
func (h *Handler) HandleGetKeys(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	list, err := h.keys.ListCredentials(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "keys": list})
}

// HandleDeleteKey serves DELETE /delete-key.
func (h *Handler) HandleDeleteKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		Provider string `json:"provider"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.keys.DeleteCredential(r.Context(), req.UserID, req.Provider); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// HandleGenerateServiceKey serves POST /generate-service-api-key/{user_id}.
// Idempotent: repeat calls return the existing key.
func (h *Handler) HandleGenerateServiceKey(w http.ResponseWriter, r *http.Request) {
	raw, err := h.keys.GenerateServiceKey(r.Context(), r.PathValue("user_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"api_key": raw})
}

// HandleListServiceKeys serves GET /list-service-api-keys/{user_id} with
// masked key values.
func (h *Handler) HandleListServiceKeys(w http.ResponseWriter, r *http.Request) {
	list, err := h.keys.ListServiceKeys(r.Context(), r.PathValue("user_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"keys": list})
}

// HandleDeleteServiceKey serves DELETE /delete-service-api-key/{key_id}.
func (h *Handler) HandleDeleteServiceKey(w http.ResponseWriter, r *http.Request) {
	if err := h.keys.DeleteServiceKey(r.Context(), r.PathValue("key_id")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// HandleSuggestModel serves POST /suggest-model.
func (h *Handler) HandleSuggestModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Prompt == "" {
		writeError(w, domain.ValidationError("prompt is required"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"suggestion": pricing.SuggestModel(req.Prompt)})
}

// HandleCreateOrganization serves POST /api/organizations/create.
func (h *Handler) HandleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  string `json:"user_id"`
		OrgName string `json:"org_name"`
		Plan    string `json:"plan"`
		Type    string `json:"type"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID == "" || req.OrgName == "" {
		writeError(w, domain.ValidationError("user_id and org_name are required"))
		return
	}

	org, err := h.evaluator.CreateOrganization(r.Context(), req.UserID, req.OrgName, req.Plan, req.Type)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, org)
}

// HandleInviteMember serves POST /api/organizations/invite.
func (h *Handler) HandleInviteMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrgID string `json:"org_id"`
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.OrgID == "" || req.Email == "" {
		writeError(w, domain.ValidationError("org_id and email are required"))
		return
	}

	member, err := h.evaluator.InviteMember(r.Context(), req.OrgID, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, member)
}

// HandleJoinOrganization serves POST /api/organizations/join.
func (h *Handler) HandleJoinOrganization(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		OrgID  string `json:"org_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID == "" || req.OrgID == "" {
		writeError(w, domain.ValidationError("user_id and org_id are required"))
		return
	}

	member, err := h.evaluator.JoinOrganization(r.Context(), req.UserID, req.OrgID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, member)
}

// HandleRemoveMember serves POST /api/organizations/remove-member.
// Removing an absent member is a no-op, not an error.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrgID  string `json:"org_id"`
		UserID string `json:"user_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.OrgID == "" || req.UserID == "" {
		writeError(w, domain.ValidationError("org_id and user_id are required"))
		return
	}

	if err := h.evaluator.RemoveMember(r.Context(), req.OrgID, req.UserID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// HandleCheckAccess serves GET /api/organizations/{org_id}/check-access.
func (h *Handler) HandleCheckAccess(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, domain.ValidationError("user_id query parameter is required"))
		return
	}

	decision, err := h.evaluator.CheckAccess(r.Context(), userID, r.PathValue("org_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}
