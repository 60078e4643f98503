package activities

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
	"github.com/sadiq-codes/genpaper-sub003/internal/generr"
)

func TestAsActivityError(t *testing.T) {
	t.Parallel()

	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, asActivityError(context.Background(), nil))
	})

	t.Run("empty corpus is non-retryable user_action", func(t *testing.T) {
		err := asActivityError(context.Background(), fmt.Errorf("collect corpus: %w", domain.ErrEmptyCorpus))

		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, string(generr.CategoryUserAction), appErr.Type())
		assert.True(t, appErr.NonRetryable())
		assert.ErrorIs(t, appErr.Unwrap(), domain.ErrEmptyCorpus)
	})

	t.Run("rate limit is retryable transient", func(t *testing.T) {
		cause := &domain.RateLimitError{Source: "openai"}
		err := asActivityError(context.Background(), fmt.Errorf("generate section: %w", cause))

		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, string(generr.CategoryTransient), appErr.Type())
		assert.False(t, appErr.NonRetryable())
	})

	t.Run("low retrieval quality is retryable quality", func(t *testing.T) {
		err := asActivityError(context.Background(), domain.ErrLowRetrievalQuality)

		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, string(generr.CategoryQuality), appErr.Type())
		assert.False(t, appErr.NonRetryable())
	})

	t.Run("unknown errors default to non-retryable fatal", func(t *testing.T) {
		err := asActivityError(context.Background(), errors.New("something inexplicable"))

		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, string(generr.CategoryFatal), appErr.Type())
		assert.True(t, appErr.NonRetryable())
	})

	t.Run("existing application error is not rewrapped", func(t *testing.T) {
		orig := temporal.NewNonRetryableApplicationError("boom", "fatal", nil)
		assert.Same(t, orig, asActivityError(context.Background(), orig))
	})
}

// Each retryable category must drive the retry schedule from its own
// classification: its flat or exponential backoff as the next retry delay,
// and a hard stop once its attempt budget is spent, regardless of the
// wider workflow retry policy.
func TestClassifiedErrorFollowsCategoryBudget(t *testing.T) {
	t.Parallel()

	t.Run("quality retries twice with flat backoff", func(t *testing.T) {
		quality := generr.Get(generr.CategoryQuality)
		require.Equal(t, 2, quality.MaxRetries)

		var appErr *temporal.ApplicationError
		err := classifiedError(1, domain.ErrNoRelevantContent)
		require.ErrorAs(t, err, &appErr)
		assert.False(t, appErr.NonRetryable())
		assert.Equal(t, quality.InitialBackoff, appErr.NextRetryDelay())

		err = classifiedError(2, domain.ErrNoRelevantContent)
		require.ErrorAs(t, err, &appErr)
		assert.True(t, appErr.NonRetryable(), "second quality attempt is the last")
		assert.ErrorIs(t, appErr.Unwrap(), domain.ErrNoRelevantContent)
	})

	t.Run("transient backoff doubles per attempt", func(t *testing.T) {
		cause := &domain.RateLimitError{Source: "openai"}

		var appErr *temporal.ApplicationError
		err := classifiedError(1, cause)
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, 2*time.Second, appErr.NextRetryDelay())

		err = classifiedError(3, cause)
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, 8*time.Second, appErr.NextRetryDelay())

		err = classifiedError(5, cause)
		require.ErrorAs(t, err, &appErr)
		assert.True(t, appErr.NonRetryable(), "transient budget is five attempts")
	})

	t.Run("non-retryable categories ignore the attempt", func(t *testing.T) {
		var appErr *temporal.ApplicationError
		err := classifiedError(1, domain.ErrEmptyCorpus)
		require.ErrorAs(t, err, &appErr)
		assert.True(t, appErr.NonRetryable())
	})
}
