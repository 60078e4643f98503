package activities

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/sadiq-codes/genpaper-sub003/internal/generr"
)

// asActivityError converts a failure into a Temporal application error
// carrying its classifier category as the error type. The category's retry
// budget governs the schedule, not the workflow-level retry policy: the
// error turns non-retryable once the category's attempts are spent, and
// retryable errors carry the category's backoff as the next retry delay.
func asActivityError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return err
	}

	attempt := int32(1)
	if activity.IsActivity(ctx) {
		attempt = activity.GetInfo(ctx).Attempt
	}
	return classifiedError(attempt, err)
}

// classifiedError builds the application error for a failure observed on
// the given attempt. Attempts are 1-based, matching activity.Info.
func classifiedError(attempt int32, err error) error {
	c := generr.Classify(err)
	if !c.Retryable || int(attempt) >= c.MaxRetries {
		return temporal.NewNonRetryableApplicationError(c.UserMessage, string(c.Category), err)
	}

	delay := c.InitialBackoff
	for i := int32(1); i < attempt; i++ {
		delay = time.Duration(float64(delay) * c.BackoffCoefficient)
	}
	return temporal.NewApplicationErrorWithOptions(c.UserMessage, string(c.Category), temporal.ApplicationErrorOptions{
		Cause:          err,
		NextRetryDelay: delay,
	})
}
