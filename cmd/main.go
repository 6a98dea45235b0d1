package main

import (
	"context"
	"fmt"
	"log"

	"go.uber.org/dig"

	"github.com/promptroute/promptroute/internal/access"
	"github.com/promptroute/promptroute/internal/cache/redis"
	"github.com/promptroute/promptroute/internal/config"
	"github.com/promptroute/promptroute/internal/crypto"
	"github.com/promptroute/promptroute/internal/domain"
	"github.com/promptroute/promptroute/internal/http"
	"github.com/promptroute/promptroute/internal/http/middleware"
	"github.com/promptroute/promptroute/internal/keys"
	"github.com/promptroute/promptroute/internal/observability"
	"github.com/promptroute/promptroute/internal/optimizer"
	"github.com/promptroute/promptroute/internal/provider/anthropic"
	"github.com/promptroute/promptroute/internal/provider/cohere"
	"github.com/promptroute/promptroute/internal/provider/gemini"
	"github.com/promptroute/promptroute/internal/provider/mistral"
	"github.com/promptroute/promptroute/internal/provider/openai"
	"github.com/promptroute/promptroute/internal/provider/registry"
	"github.com/promptroute/promptroute/internal/router"
	"github.com/promptroute/promptroute/internal/store"
	"github.com/promptroute/promptroute/internal/usage"
)

func main() {
	container := buildContainer()

	err := container.Invoke(func(server *http.Server) {
		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}

	// Credential cipher
	if err := container.Provide(func(cfg *config.CryptoConfig) domain.Cipher {
		return crypto.New(cfg.EncryptionKey)
	}); err != nil {
		log.Fatalf("Failed to provide cipher: %v", err)
	}

	// Store
	if err := container.Provide(store.Open); err != nil {
		log.Fatalf("Failed to provide store: %v", err)
	}

	// Service-key cache (nil when Redis is not configured)
	if err := container.Provide(redis.NewKeyCache); err != nil {
		log.Fatalf("Failed to provide key cache: %v", err)
	}

	// Provider Registry
	if err := container.Provide(func() domain.ProviderRegistry {
		return registry.NewRegistry()
	}); err != nil {
		log.Fatalf("Failed to provide registry: %v", err)
	}

	// Register provider adapters (invoked for side effects)
	if err := container.Invoke(func(reg domain.ProviderRegistry, cfg *config.ProviderConfig) error {
		ctx := context.Background()

		providers := []domain.Provider{
			openai.NewProvider(openai.Config{BaseURL: cfg.OpenAIBaseURL, Timeout: cfg.Timeout}),
			anthropic.NewProvider(anthropic.Config{BaseURL: cfg.AnthropicBaseURL, Timeout: cfg.Timeout}),
			mistral.NewProvider(mistral.Config{BaseURL: cfg.MistralBaseURL, Timeout: cfg.Timeout}),
			cohere.NewProvider(cohere.Config{BaseURL: cfg.CohereBaseURL, Timeout: cfg.Timeout}),
			gemini.NewProvider(gemini.Config{BaseURL: cfg.GeminiBaseURL, Timeout: cfg.Timeout}),
		}
		for _, p := range providers {
			if err := reg.Register(ctx, p); err != nil {
				return fmt.Errorf("failed to register %s provider: %w", p.Name(), err)
			}
		}

		return nil
	}); err != nil {
		log.Fatalf("Failed to register providers: %v", err)
	}

	// Domain Services
	if err := container.Provide(func(st *store.Store) *optimizer.Engine {
		return optimizer.NewEngine(st)
	}); err != nil {
		log.Fatalf("Failed to provide optimizer: %v", err)
	}
	if err := container.Provide(func(st *store.Store, opt *optimizer.Engine) *usage.Recorder {
		return usage.NewRecorder(st, opt)
	}); err != nil {
		log.Fatalf("Failed to provide usage recorder: %v", err)
	}
	if err := container.Provide(func(st *store.Store, cfg *config.AccessConfig) *access.Evaluator {
		return access.NewEvaluator(st, cfg)
	}); err != nil {
		log.Fatalf("Failed to provide access evaluator: %v", err)
	}
	if err := container.Provide(func(st *store.Store, cipher domain.Cipher, cache *redis.KeyCache) *keys.Service {
		return keys.NewService(st, cipher, cache)
	}); err != nil {
		log.Fatalf("Failed to provide key service: %v", err)
	}
	if err := container.Provide(func(
		st *store.Store,
		reg domain.ProviderRegistry,
		cipher domain.Cipher,
		recorder *usage.Recorder,
		cache *redis.KeyCache,
	) *router.Service {
		return router.NewService(st, reg, cipher, recorder, cache)
	}); err != nil {
		log.Fatalf("Failed to provide router: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(func(cfg *config.CORSConfig) middleware.Middleware {
		return middleware.BuildMiddlewareChain(cfg)
	}); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(http.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}
