package mistral_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/promptroute/promptroute/internal/domain"
	"github.com/promptroute/promptroute/internal/provider/mistral"
)

func TestProvider_Name(t *testing.T) {
	provider := mistral.NewProvider(mistral.Config{})

	require.Equal(t, "mistral", provider.Name())
}

func TestProvider_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("should call the chat completions endpoint", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/chat/completions", r.URL.Path)
			require.Equal(t, "Bearer sk-mistral", r.Header.Get("Authorization"))

			_, _ = w.Write([]byte(`{
				"choices": [{"message": {"content": "bonjour"}}],
				"usage": {"prompt_tokens": 6, "completion_tokens": 2}
			}`))
		}))
		defer server.Close()

		provider := mistral.NewProvider(mistral.Config{BaseURL: server.URL, Timeout: 5})

		result, err := provider.Complete(ctx, "sk-mistral", &domain.CompletionRequest{
			Model:  "mistral-small",
			Prompt: "hello",
		})

		require.NoError(t, err)
		require.Equal(t, "bonjour", result.Reply)
		require.Equal(t, 6, result.InputTokens)
		require.Equal(t, 2, result.OutputTokens)
	})

	t.Run("non-200 status is an upstream error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad request", http.StatusBadRequest)
		}))
		defer server.Close()

		provider := mistral.NewProvider(mistral.Config{BaseURL: server.URL, Timeout: 5})

		_, err := provider.Complete(ctx, "sk-mistral", &domain.CompletionRequest{
			Model:  "mistral-small",
			Prompt: "hello",
		})

		require.Error(t, err)
		require.Equal(t, domain.KindUpstream, domain.KindOf(err))
	})

	t.Run("empty API key is rejected without a network call", func(t *testing.T) {
		provider := mistral.NewProvider(mistral.Config{BaseURL: "http://unused", Timeout: 5})

		_, err := provider.Complete(ctx, "", &domain.CompletionRequest{Model: "mistral-small", Prompt: "hi"})

		require.Error(t, err)
		require.Equal(t, domain.KindUpstream, domain.KindOf(err))
	})
}
