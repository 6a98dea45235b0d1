package openai_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/promptroute/promptroute/internal/domain"
	"github.com/promptroute/promptroute/internal/provider/openai"
)

func TestProvider_Name(t *testing.T) {
	provider := openai.NewProvider(openai.Config{})

	require.Equal(t, "openai", provider.Name())
}

func TestProvider_Complete_Validation(t *testing.T) {
	provider := openai.NewProvider(openai.Config{Timeout: 5})
	ctx := context.Background()

	t.Run("nil request is rejected", func(t *testing.T) {
		result, err := provider.Complete(ctx, "sk-test", nil)

		require.Error(t, err)
		require.Nil(t, result)
	})

	t.Run("empty API key is rejected", func(t *testing.T) {
		result, err := provider.Complete(ctx, "", &domain.CompletionRequest{Model: "gpt-4", Prompt: "hi"})

		require.Error(t, err)
		require.Nil(t, result)
		require.Equal(t, domain.KindUpstream, domain.KindOf(err))
	})
}

func TestProvider_Complete(t *testing.T) {
	t.Run("should parse a chat completion response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "Bearer sk-tenant", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"choices": [{"message": {"role": "assistant", "content": "hello there"}}],
				"usage": {"prompt_tokens": 12, "completion_tokens": 7}
			}`))
		}))
		defer server.Close()

		provider := openai.NewProvider(openai.Config{BaseURL: server.URL, Timeout: 5})

		result, err := provider.Complete(context.Background(), "sk-tenant", &domain.CompletionRequest{
			Model:  "gpt-4",
			Prompt: "hi",
		})

		require.NoError(t, err)
		require.Equal(t, "hello there", result.Reply)
		require.Equal(t, 12, result.InputTokens)
		require.Equal(t, 7, result.OutputTokens)
		require.Equal(t, 19, result.TotalTokens())
	})

	t.Run("upstream error status surfaces as an upstream error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error": {"message": "invalid key"}}`, http.StatusUnauthorized)
		}))
		defer server.Close()

		provider := openai.NewProvider(openai.Config{BaseURL: server.URL, Timeout: 5})

		result, err := provider.Complete(context.Background(), "sk-bad", &domain.CompletionRequest{
			Model:  "gpt-4",
			Prompt: "hi",
		})

		require.Error(t, err)
		require.Nil(t, result)
		require.Equal(t, domain.KindUpstream, domain.KindOf(err))
	})
}
