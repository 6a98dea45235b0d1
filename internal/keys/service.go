// Package keys manages tenant provider credentials and service API keys.
// Secrets are encrypted at rest; service keys additionally carry a SHA-256
// lookup hash so authentication is an indexed query.
package keys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/promptroute/promptroute/internal/domain"
	"github.com/promptroute/promptroute/internal/observability"
	"github.com/promptroute/promptroute/internal/store"
)

// MaskedValue replaces a credential that cannot be decrypted. The raw
// ciphertext is never surfaced to callers.
const MaskedValue = "***DECRYPTION_FAILED***"

const serviceKeyBytes = 32

// Store is the persistence surface the key service needs.
type Store interface {
	CredentialByUser(ctx context.Context, userID, provider string) (*store.Credential, error)
	CredentialsByUser(ctx context.Context, userID string) ([]store.Credential, error)
	UpsertCredential(ctx context.Context, cred *store.Credential) error
	DeleteCredential(ctx context.Context, userID, provider string) (int64, error)
	FirstServiceKeyByUser(ctx context.Context, userID string) (*store.ServiceAPIKey, error)
	ServiceKeyByID(ctx context.Context, keyID string) (*store.ServiceAPIKey, error)
	ServiceKeysByUser(ctx context.Context, userID string) ([]store.ServiceAPIKey, error)
	InsertServiceKey(ctx context.Context, key *store.ServiceAPIKey) error
	DeleteServiceKey(ctx context.Context, keyID string) (int64, error)
}

// Cache drops cached authentication mappings when a key is revoked. May be
// nil when no cache is configured.
type Cache interface {
	Invalidate(ctx context.Context, keyHash string)
}

// Service implements credential and service-key management.
type Service struct {
	store  Store
	cipher domain.Cipher
	cache  Cache
}

// NewService creates a key service (DI constructor).
func NewService(st Store, cipher domain.Cipher, cache Cache) *Service {
	return &Service{store: st, cipher: cipher, cache: cache}
}

// HashKey returns the deterministic lookup hash of a raw service key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// StoreCredential encrypts and upserts a provider credential. Exactly one of
// userID/orgID scopes the row.
func (s *Service) StoreCredential(ctx context.Context, userID, orgID, provider, rawKey string) error {
	if provider == "" || rawKey == "" {
		return domain.ValidationError("provider and api_key are required")
	}
	if userID == "" && orgID == "" {
		return domain.ValidationError("a user or organization scope is required")
	}

	encrypted, err := s.cipher.Encrypt(rawKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt API key: %w", err)
	}

	cred := &store.Credential{
		UserID:   userID,
		OrgID:    orgID,
		Provider: strings.ToLower(provider),
		APIKey:   encrypted,
	}
	if err := s.store.UpsertCredential(ctx, cred); err != nil {
		return err
	}

	observability.FromContext(ctx).Info("credential stored",
		zap.String("provider", cred.Provider))
	return nil
}

// DecryptedCredential is a credential row with its secret in the clear, or
// masked when undecryptable.
type DecryptedCredential struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	APIKey    string    `json:"api_key"`
	CreatedAt time.Time `json:"created_at"`
}

// ListCredentials returns the user's credentials with decrypted secrets.
// Rows that fail to decrypt come back masked rather than failing the list.
func (s *Service) ListCredentials(ctx context.Context, userID string) ([]DecryptedCredential, error) {
	rows, err := s.store.CredentialsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]DecryptedCredential, 0, len(rows))
	for _, row := range rows {
		secret, decErr := s.cipher.Decrypt(row.APIKey)
		if decErr != nil {
			observability.FromContext(ctx).Warn("credential failed to decrypt",
				zap.String("credential_id", row.ID), zap.Error(decErr))
			secret = MaskedValue
		}
		out = append(out, DecryptedCredential{
			ID:        row.ID,
			Provider:  row.Provider,
			APIKey:    secret,
			CreatedAt: row.CreatedAt,
		})
	}

	return out, nil
}

// DeleteCredential removes the user's credential for a provider.
func (s *Service) DeleteCredential(ctx context.Context, userID, provider string) error {
	deleted, err := s.store.DeleteCredential(ctx, userID, strings.ToLower(provider))
	if err != nil {
		return err
	}
	if deleted == 0 {
		return domain.NotFoundError("no API key found to delete")
	}
	return nil
}

// GenerateServiceKey returns the user's service key, minting one on first
// call. Repeated calls return the existing key.
func (s *Service) GenerateServiceKey(ctx context.Context, userID string) (string, error) {
	existing, err := s.store.FirstServiceKeyByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		raw, decErr := s.cipher.Decrypt(existing.APIKey)
		if decErr != nil {
			return "", decErr
		}
		return raw, nil
	}

	buf := make([]byte, serviceKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate key material: %w", err)
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)

	encrypted, err := s.cipher.Encrypt(raw)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt service key: %w", err)
	}

	key := &store.ServiceAPIKey{
		UserID:  userID,
		APIKey:  encrypted,
		KeyHash: HashKey(raw),
	}
	if err := s.store.InsertServiceKey(ctx, key); err != nil {
		return "", err
	}

	observability.FromContext(ctx).Info("service key generated")
	return raw, nil
}

// MaskedServiceKey is a listing entry showing only the edges of the key.
type MaskedServiceKey struct {
	ID           string    `json:"id"`
	APIKeyMasked string    `json:"api_key_masked"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListServiceKeys lists the user's service keys with masked values.
func (s *Service) ListServiceKeys(ctx context.Context, userID string) ([]MaskedServiceKey, error) {
	rows, err := s.store.ServiceKeysByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]MaskedServiceKey, 0, len(rows))
	for _, row := range rows {
		masked := MaskedValue
		if raw, decErr := s.cipher.Decrypt(row.APIKey); decErr == nil {
			masked = maskKey(raw)
		}
		out = append(out, MaskedServiceKey{
			ID:           row.ID,
			APIKeyMasked: masked,
			CreatedAt:    row.CreatedAt,
		})
	}

	return out, nil
}

// DeleteServiceKey removes a service key by id. The cached authentication
// mapping is dropped with it so a revoked key stops authenticating
// immediately rather than at cache-TTL expiry.
func (s *Service) DeleteServiceKey(ctx context.Context, keyID string) error {
	key, err := s.store.ServiceKeyByID(ctx, keyID)
	if err != nil {
		return err
	}
	if key == nil {
		return domain.NotFoundError("service key not found")
	}

	deleted, err := s.store.DeleteServiceKey(ctx, keyID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return domain.NotFoundError("service key not found")
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, key.KeyHash)
	}

	observability.FromContext(ctx).Info("service key revoked",
		zap.String("key_id", keyID))
	return nil
}

// maskKey shows only the first and last four characters.
func maskKey(raw string) string {
	if len(raw) <= 8 {
		return "****"
	}
	return raw[:4] + "..." + raw[len(raw)-4:]
}
