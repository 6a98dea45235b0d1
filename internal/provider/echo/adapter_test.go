package echo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/promptroute/promptroute/internal/domain"
	"github.com/promptroute/promptroute/internal/provider/echo"
)

func TestProvider_Name(t *testing.T) {
	provider := echo.NewProvider()

	require.Equal(t, "echo", provider.Name())
}

func TestProvider_Complete(t *testing.T) {
	ctx := context.Background()
	provider := echo.NewProvider()

	t.Run("should echo the prompt with word-based token counts", func(t *testing.T) {
		result, err := provider.Complete(ctx, "", &domain.CompletionRequest{
			Model:  "any-model",
			Prompt: "one two three",
		})

		require.NoError(t, err)
		require.Equal(t, "one two three", result.Reply)
		require.Equal(t, 3, result.InputTokens)
		require.Equal(t, 3, result.OutputTokens)
	})

	t.Run("nil request is rejected", func(t *testing.T) {
		result, err := provider.Complete(ctx, "", nil)

		require.Error(t, err)
		require.Nil(t, result)
	})

	t.Run("empty prompt has zero tokens", func(t *testing.T) {
		result, err := provider.Complete(ctx, "", &domain.CompletionRequest{Model: "m", Prompt: ""})

		require.NoError(t, err)
		require.Zero(t, result.TotalTokens())
	})
}
