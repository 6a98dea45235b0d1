package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/promptroute/promptroute/internal/access"
	"github.com/promptroute/promptroute/internal/config"
	"github.com/promptroute/promptroute/internal/crypto"
	"github.com/promptroute/promptroute/internal/domain"
	gatewayhttp "github.com/promptroute/promptroute/internal/http"
	"github.com/promptroute/promptroute/internal/keys"
	"github.com/promptroute/promptroute/internal/provider/echo"
	"github.com/promptroute/promptroute/internal/provider/registry"
	"github.com/promptroute/promptroute/internal/router"
	"github.com/promptroute/promptroute/internal/store"
)

// combinedStore is one in-memory store backing the router, key service, and
// access evaluator in handler tests.
type combinedStore struct {
	users       map[string]*store.User
	orgs        map[string]*store.Organization
	memberships []*store.OrganizationMember
	credentials []*store.Credential
	serviceKeys []*store.ServiceAPIKey
	templates   map[string]*store.PromptTemplate
	nextID      int
}

func newCombinedStore() *combinedStore {
	return &combinedStore{
		users:     make(map[string]*store.User),
		orgs:      make(map[string]*store.Organization),
		templates: make(map[string]*store.PromptTemplate),
	}
}

func (s *combinedStore) id() string {
	s.nextID++
	return fmt.Sprintf("id-%d", s.nextID)
}

func (s *combinedStore) ServiceKeyByHash(_ context.Context, keyHash string) (*store.ServiceAPIKey, error) {
	for _, k := range s.serviceKeys {
		if k.KeyHash == keyHash {
			return k, nil
		}
	}
	return nil, nil
}

func (s *combinedStore) PromptTemplateByID(_ context.Context, promptID string) (*store.PromptTemplate, error) {
	return s.templates[promptID], nil
}

func (s *combinedStore) HasActiveMembership(_ context.Context, orgID, userID string) (bool, error) {
	for _, m := range s.memberships {
		if m.OrgID == orgID && m.UserID == userID && m.Status == domain.StatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (s *combinedStore) CredentialByUser(_ context.Context, userID, provider string) (*store.Credential, error) {
	for _, c := range s.credentials {
		if c.UserID == userID && c.Provider == provider {
			return c, nil
		}
	}
	return nil, nil
}

func (s *combinedStore) CredentialByOrg(_ context.Context, orgID, provider string) (*store.Credential, error) {
	for _, c := range s.credentials {
		if c.OrgID == orgID && c.Provider == provider {
			return c, nil
		}
	}
	return nil, nil
}

func (s *combinedStore) CredentialsByUser(_ context.Context, userID string) ([]store.Credential, error) {
	var out []store.Credential
	for _, c := range s.credentials {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *combinedStore) UpsertCredential(_ context.Context, cred *store.Credential) error {
	for _, c := range s.credentials {
		if c.UserID == cred.UserID && c.OrgID == cred.OrgID && c.Provider == cred.Provider {
			c.APIKey = cred.APIKey
			return nil
		}
	}
	cred.ID = s.id()
	s.credentials = append(s.credentials, cred)
	return nil
}

func (s *combinedStore) DeleteCredential(_ context.Context, userID, provider string) (int64, error) {
	kept := s.credentials[:0]
	var deleted int64
	for _, c := range s.credentials {
		if c.UserID == userID && c.Provider == provider {
			deleted++
			continue
		}
		kept = append(kept, c)
	}
	s.credentials = kept
	return deleted, nil
}

func (s *combinedStore) FirstServiceKeyByUser(_ context.Context, userID string) (*store.ServiceAPIKey, error) {
	for _, k := range s.serviceKeys {
		if k.UserID == userID {
			return k, nil
		}
	}
	return nil, nil
}

func (s *combinedStore) ServiceKeyByID(_ context.Context, keyID string) (*store.ServiceAPIKey, error) {
	for _, k := range s.serviceKeys {
		if k.ID == keyID {
			return k, nil
		}
	}
	return nil, nil
}

func (s *combinedStore) ServiceKeysByUser(_ context.Context, userID string) ([]store.ServiceAPIKey, error) {
	var out []store.ServiceAPIKey
	for _, k := range s.serviceKeys {
		if k.UserID == userID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (s *combinedStore) InsertServiceKey(_ context.Context, key *store.ServiceAPIKey) error {
	key.ID = s.id()
	key.CreatedAt = time.Now()
	s.serviceKeys = append(s.serviceKeys, key)
	return nil
}

func (s *combinedStore) DeleteServiceKey(_ context.Context, keyID string) (int64, error) {
	kept := s.serviceKeys[:0]
	var deleted int64
	for _, k := range s.serviceKeys {
		if k.ID == keyID {
			deleted++
			continue
		}
		kept = append(kept, k)
	}
	s.serviceKeys = kept
	return deleted, nil
}

func (s *combinedStore) UserByID(_ context.Context, userID string) (*store.User, error) {
	return s.users[userID], nil
}

func (s *combinedStore) OrganizationByID(_ context.Context, orgID string) (*store.Organization, error) {
	return s.orgs[orgID], nil
}

func (s *combinedStore) OrganizationsCreatedBy(_ context.Context, userID string) ([]store.Organization, error) {
	var out []store.Organization
	for _, org := range s.orgs {
		if org.CreatedBy == userID {
			out = append(out, *org)
		}
	}
	return out, nil
}

func (s *combinedStore) CreateOrganizationWithAdmin(_ context.Context, org *store.Organization) error {
	org.ID = s.id()
	s.orgs[org.ID] = org
	s.memberships = append(s.memberships, &store.OrganizationMember{
		ID: s.id(), OrgID: org.ID, UserID: org.CreatedBy,
		Role: domain.RoleAdmin, Status: domain.StatusActive,
	})
	return nil
}

func (s *combinedStore) CountActiveMembers(_ context.Context, orgID string) (int64, error) {
	var count int64
	for _, m := range s.memberships {
		if m.OrgID == orgID && m.Status == domain.StatusActive {
			count++
		}
	}
	return count, nil
}

func (s *combinedStore) MembershipForUser(_ context.Context, orgID, userID string) (*store.OrganizationMember, error) {
	for _, m := range s.memberships {
		if m.OrgID == orgID && m.UserID == userID {
			return m, nil
		}
	}
	return nil, nil
}

func (s *combinedStore) MembershipForEmail(_ context.Context, orgID, email string) (*store.OrganizationMember, error) {
	for _, m := range s.memberships {
		if m.OrgID == orgID && m.InvitedEmail == email {
			return m, nil
		}
	}
	return nil, nil
}

func (s *combinedStore) InsertMembership(_ context.Context, member *store.OrganizationMember) error {
	member.ID = s.id()
	s.memberships = append(s.memberships, member)
	return nil
}

func (s *combinedStore) RemoveMembership(_ context.Context, orgID, userID, email string) error {
	kept := s.memberships[:0]
	for _, m := range s.memberships {
		drop := m.OrgID == orgID &&
			(m.UserID == userID || (email != "" && m.InvitedEmail == email))
		if !drop {
			kept = append(kept, m)
		}
	}
	s.memberships = kept
	return nil
}

// noopRecorder discards usage records.
type noopRecorder struct{}

func (noopRecorder) Record(context.Context, *domain.UsageRecord) {}

// memoryCache stands in for the Redis auth cache.
type memoryCache struct {
	entries map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]string)}
}

func (c *memoryCache) GetUserID(_ context.Context, keyHash string) (string, bool) {
	userID, ok := c.entries[keyHash]
	return userID, ok
}

func (c *memoryCache) SetUserID(_ context.Context, keyHash, userID string) {
	c.entries[keyHash] = userID
}

func (c *memoryCache) Invalidate(_ context.Context, keyHash string) {
	delete(c.entries, keyHash)
}

type fixture struct {
	store   *combinedStore
	cache   *memoryCache
	keys    *keys.Service
	handler *gatewayhttp.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := newCombinedStore()
	cache := newMemoryCache()
	cipher := crypto.New("test-passphrase")

	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(context.Background(), echo.NewProvider()))

	routerSvc := router.NewService(st, reg, cipher, noopRecorder{}, cache)
	keySvc := keys.NewService(st, cipher, cache)
	evaluator := access.NewEvaluator(st, &config.AccessConfig{EnforceJoinLimit: false})

	return &fixture{
		store:   st,
		cache:   cache,
		keys:    keySvc,
		handler: gatewayhttp.NewHandler(routerSvc, keySvc, evaluator),
	}
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHandler_Health(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handler.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "healthy", decodeResponse(t, rec)["status"])
}

func TestHandler_SuggestModel(t *testing.T) {
	f := newFixture(t)

	t.Run("should return a suggestion", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/suggest-model",
			jsonBody(t, map[string]string{"prompt": "short question"}))

		f.handler.HandleSuggestModel(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		suggestion := decodeResponse(t, rec)["suggestion"].(map[string]any)
		require.Equal(t, "openai", suggestion["provider"])
		require.Equal(t, "gpt-3.5-turbo", suggestion["model"])
	})

	t.Run("missing prompt is a 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/suggest-model", jsonBody(t, map[string]string{}))

		f.handler.HandleSuggestModel(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_RoutePrompt(t *testing.T) {
	t.Run("should route through the named provider", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.keys.StoreCredential(context.Background(), "u1", "", "echo", "any-key"))

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/route-prompt", jsonBody(t, map[string]string{
			"user_id":  "u1",
			"provider": "echo",
			"model":    "test-model",
			"prompt":   "repeat after me",
		}))

		f.handler.HandleRoutePrompt(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeResponse(t, rec)
		require.Equal(t, "success", body["status"])
		require.Equal(t, "repeat after me", body["response"])
		require.Equal(t, "echo", body["provider"])
	})

	t.Run("missing user_id is a 400", func(t *testing.T) {
		f := newFixture(t)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/route-prompt", jsonBody(t, map[string]string{
			"provider": "echo", "model": "m", "prompt": "hi",
		}))

		f.handler.HandleRoutePrompt(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing credential is a 404", func(t *testing.T) {
		f := newFixture(t)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/route-prompt", jsonBody(t, map[string]string{
			"user_id": "u1", "provider": "echo", "model": "m", "prompt": "hi",
		}))

		f.handler.HandleRoutePrompt(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_UniversalPrompt(t *testing.T) {
	t.Run("should authenticate and route the template", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()

		serviceKey, err := f.keys.GenerateServiceKey(ctx, "u1")
		require.NoError(t, err)
		require.NoError(t, f.keys.StoreCredential(ctx, "u1", "", "echo", "any-key"))
		f.store.templates["p1"] = &store.PromptTemplate{
			ID: "p1", UserID: "u1", Provider: "echo", Model: "m", Prompt: "Say: {input}",
		}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/prompt",
			jsonBody(t, map[string]string{"prompt_id": "p1", "input": "hello"}))
		req.Header.Set("Authorization", "Bearer "+serviceKey)

		f.handler.HandleUniversalPrompt(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeResponse(t, rec)
		require.Equal(t, "success", body["status"])
		require.Equal(t, "Say: hello", body["response"])
		require.Equal(t, "p1", body["prompt_id"])
	})

	t.Run("missing Authorization header is a 401", func(t *testing.T) {
		f := newFixture(t)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/prompt",
			jsonBody(t, map[string]string{"prompt_id": "p1", "input": "x"}))

		f.handler.HandleUniversalPrompt(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown key is a 401", func(t *testing.T) {
		f := newFixture(t)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/prompt",
			jsonBody(t, map[string]string{"prompt_id": "p1", "input": "x"}))
		req.Header.Set("Authorization", "Bearer bogus-token")

		f.handler.HandleUniversalPrompt(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHandler_CredentialLifecycle(t *testing.T) {
	f := newFixture(t)

	storeRec := httptest.NewRecorder()
	f.handler.HandleStoreKey(storeRec, httptest.NewRequest(http.MethodPost, "/store-key",
		jsonBody(t, map[string]string{"user_id": "u1", "provider": "OpenAI", "api_key": "sk-secret"})))
	require.Equal(t, http.StatusOK, storeRec.Code)

	listRec := httptest.NewRecorder()
	listReq := httptest.NewRequest(http.MethodGet, "/get-keys/u1", nil)
	listReq.SetPathValue("user_id", "u1")
	f.handler.HandleGetKeys(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	listBody := decodeResponse(t, listRec)
	credentials := listBody["keys"].([]any)
	require.Len(t, credentials, 1)
	entry := credentials[0].(map[string]any)
	require.Equal(t, "openai", entry["provider"])
	require.Equal(t, "sk-secret", entry["api_key"])

	deleteRec := httptest.NewRecorder()
	f.handler.HandleDeleteKey(deleteRec, httptest.NewRequest(http.MethodDelete, "/delete-key",
		jsonBody(t, map[string]string{"user_id": "u1", "provider": "openai"})))
	require.Equal(t, http.StatusOK, deleteRec.Code)

	missingRec := httptest.NewRecorder()
	f.handler.HandleDeleteKey(missingRec, httptest.NewRequest(http.MethodDelete, "/delete-key",
		jsonBody(t, map[string]string{"user_id": "u1", "provider": "openai"})))
	require.Equal(t, http.StatusNotFound, missingRec.Code)
}

func TestHandler_ServiceKeyLifecycle(t *testing.T) {
	f := newFixture(t)

	generate := func() string {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/generate-service-api-key/u1", nil)
		req.SetPathValue("user_id", "u1")
		f.handler.HandleGenerateServiceKey(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		return decodeResponse(t, rec)["api_key"].(string)
	}

	first := generate()
	second := generate()
	require.Equal(t, first, second) // idempotent

	listRec := httptest.NewRecorder()
	listReq := httptest.NewRequest(http.MethodGet, "/list-service-api-keys/u1", nil)
	listReq.SetPathValue("user_id", "u1")
	f.handler.HandleListServiceKeys(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	keyList := decodeResponse(t, listRec)["keys"].([]any)
	require.Len(t, keyList, 1)
	masked := keyList[0].(map[string]any)["api_key_masked"].(string)
	require.NotEqual(t, first, masked)

	keyID := keyList[0].(map[string]any)["id"].(string)
	deleteRec := httptest.NewRecorder()
	deleteReq := httptest.NewRequest(http.MethodDelete, "/delete-service-api-key/"+keyID, nil)
	deleteReq.SetPathValue("key_id", keyID)
	f.handler.HandleDeleteServiceKey(deleteRec, deleteReq)
	require.Equal(t, http.StatusOK, deleteRec.Code)
}

func TestHandler_RevokedServiceKey(t *testing.T) {
	t.Run("revoked key stops authenticating even when cached", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()

		serviceKey, err := f.keys.GenerateServiceKey(ctx, "u1")
		require.NoError(t, err)
		require.NoError(t, f.keys.StoreCredential(ctx, "u1", "", "echo", "any-key"))
		f.store.templates["p1"] = &store.PromptTemplate{
			ID: "p1", UserID: "u1", Provider: "echo", Model: "m", Prompt: "{input}",
		}

		call := func() int {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/prompt",
				jsonBody(t, map[string]string{"prompt_id": "p1", "input": "hi"}))
			req.Header.Set("Authorization", "Bearer "+serviceKey)
			f.handler.HandleUniversalPrompt(rec, req)
			return rec.Code
		}

		// First call succeeds and warms the auth cache.
		require.Equal(t, http.StatusOK, call())
		require.Len(t, f.cache.entries, 1)

		keyID := f.store.serviceKeys[0].ID
		deleteRec := httptest.NewRecorder()
		deleteReq := httptest.NewRequest(http.MethodDelete, "/delete-service-api-key/"+keyID, nil)
		deleteReq.SetPathValue("key_id", keyID)
		f.handler.HandleDeleteServiceKey(deleteRec, deleteReq)
		require.Equal(t, http.StatusOK, deleteRec.Code)

		require.Empty(t, f.cache.entries)
		require.Equal(t, http.StatusUnauthorized, call())
	})
}

func TestHandler_Organizations(t *testing.T) {
	f := newFixture(t)
	f.store.users["u1"] = &store.User{ID: "u1", Email: "u1@example.com", Plan: domain.PlanFree}

	createRec := httptest.NewRecorder()
	f.handler.HandleCreateOrganization(createRec, httptest.NewRequest(http.MethodPost, "/api/organizations/create",
		jsonBody(t, map[string]string{"user_id": "u1", "org_name": "acme"})))
	require.Equal(t, http.StatusOK, createRec.Code)
	orgID := decodeResponse(t, createRec)["id"].(string)

	// Free plan ceiling: a second org is a 403 with an upgrade hint.
	limitRec := httptest.NewRecorder()
	f.handler.HandleCreateOrganization(limitRec, httptest.NewRequest(http.MethodPost, "/api/organizations/create",
		jsonBody(t, map[string]string{"user_id": "u1", "org_name": "second"})))
	require.Equal(t, http.StatusForbidden, limitRec.Code)
	require.Contains(t, decodeResponse(t, limitRec)["error"], "Upgrade")

	checkRec := httptest.NewRecorder()
	checkReq := httptest.NewRequest(http.MethodGet, "/api/organizations/"+orgID+"/check-access?user_id=u1", nil)
	checkReq.SetPathValue("org_id", orgID)
	f.handler.HandleCheckAccess(checkRec, checkReq)
	require.Equal(t, http.StatusOK, checkRec.Code)
	require.Equal(t, true, decodeResponse(t, checkRec)["can_access"])

	removeRec := httptest.NewRecorder()
	f.handler.HandleRemoveMember(removeRec, httptest.NewRequest(http.MethodPost, "/api/organizations/remove-member",
		jsonBody(t, map[string]string{"org_id": orgID, "user_id": "u1"})))
	require.Equal(t, http.StatusOK, removeRec.Code)
	require.Empty(t, f.store.memberships)
}
