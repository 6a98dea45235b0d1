package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/promptroute/promptroute/internal/config"
	"github.com/promptroute/promptroute/internal/http/middleware"
	"github.com/promptroute/promptroute/internal/observability"
)

// Server represents the HTTP server.
type Server struct {
	config      config.ServerConfig
	handler     *Handler
	middlewares middleware.Middleware
	srv         *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg *config.Config,
	handler *Handler,
	middlewares middleware.Middleware,
) *Server {
	return &Server{
		config:      cfg.Server,
		handler:     handler,
		middlewares: middlewares,
		srv:         nil,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Universal prompt endpoint (service-key authenticated).
	mux.HandleFunc("POST /v1/prompt", s.handler.HandleUniversalPrompt)

	// Direct routing and model suggestion.
	mux.HandleFunc("POST /route-prompt", s.handler.HandleRoutePrompt)
	mux.HandleFunc("POST /suggest-model", s.handler.HandleSuggestModel)

	// Provider credential management.
	mux.HandleFunc("POST /store-key", s.handler.HandleStoreKey)
	mux.HandleFunc("GET /get-keys/{user_id}", s.handler.HandleGetKeys)
	mux.HandleFunc("DELETE /delete-key", s.handler.HandleDeleteKey)

	// Service key lifecycle.
	mux.HandleFunc("POST /generate-service-api-key/{user_id}", s.handler.HandleGenerateServiceKey)
	mux.HandleFunc("GET /list-service-api-keys/{user_id}", s.handler.HandleListServiceKeys)
	mux.HandleFunc("DELETE /delete-service-api-key/{key_id}", s.handler.HandleDeleteServiceKey)

	// Organization management.
	mux.HandleFunc("POST /api/organizations/create", s.handler.HandleCreateOrganization)
	mux.HandleFunc("POST /api/organizations/invite", s.handler.HandleInviteMember)
	mux.HandleFunc("POST /api/organizations/join", s.handler.HandleJoinOrganization)
	mux.HandleFunc("POST /api/organizations/remove-member", s.handler.HandleRemoveMember)
	mux.HandleFunc("GET /api/organizations/{org_id}/check-access", s.handler.HandleCheckAccess)

	mux.HandleFunc("GET /health", s.handler.HandleHealth)

	// Apply middleware chain.
	handlerWithMiddleware := s.middlewares(mux)

	// Create server with timeouts.
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      handlerWithMiddleware,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
	}

	ctx := context.Background()
	observability.FromContext(ctx).Info("starting HTTP server", zap.Int("port", s.config.Port))

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	observability.FromContext(ctx).Info("shutting down HTTP server")

	if s.srv == nil {
		return nil
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
