package domain

import "context"

// Provider represents any LLM provider backend.
//
// Credentials are resolved per tenant and passed on every call; adapters must
// not cache them across requests.
type Provider interface {
	// Complete performs one completion call with the given decrypted API key.
	Complete(ctx context.Context, apiKey string, req *CompletionRequest) (*CompletionResult, error)

	// Name returns the lowercase provider identifier.
	Name() string
}

// ProviderRegistry manages available providers.
type ProviderRegistry interface {
	// Register adds a provider to the registry.
	Register(ctx context.Context, provider Provider) error

	// Get retrieves a provider by name (case-insensitive).
	Get(ctx context.Context, providerName string) (Provider, error)

	// List returns all available provider names.
	List(ctx context.Context) ([]string, error)
}

// Cipher encrypts and decrypts tenant credentials at rest.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
