package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
)

// ErrUnauthorized marks a credential rejected by the API. Such calls fail
// immediately and are never retried.
var ErrUnauthorized = errors.New("github: credential rejected")

// resetSlack is added on top of the reported quota reset time before a call
// is retried.
const resetSlack = 1 * time.Second

// withRetry wraps a single outbound call. Quota exhaustion suspends the
// calling goroutine until the reported reset and retries the identical call;
// retries are unbounded in count but each is logged. The sleep blocks only
// the issuing worker, never other jobs.
func (c *Client) withRetry(ctx context.Context, call string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		if err := c.pacer.Wait(ctx); err != nil {
			return err
		}
		if c.verbose {
			c.logger.Debug("github call", zap.String("call", call), zap.Int("attempt", attempt))
		}

		err := fn()
		if err == nil {
			return nil
		}

		var rateErr *github.RateLimitError
		if errors.As(err, &rateErr) {
			sleep := time.Until(rateErr.Rate.Reset.Time) + resetSlack
			if sleep < resetSlack {
				sleep = resetSlack
			}
			c.logger.Warn("rate limit exhausted, sleeping until reset",
				zap.String("call", call),
				zap.Duration("sleep", sleep),
				zap.Int("attempt", attempt),
			)
			time.Sleep(sleep)
			continue
		}

		var abuseErr *github.AbuseRateLimitError
		if errors.As(err, &abuseErr) {
			sleep := resetSlack
			if abuseErr.RetryAfter != nil {
				sleep = *abuseErr.RetryAfter
			}
			c.logger.Warn("secondary rate limit, backing off",
				zap.String("call", call),
				zap.Duration("sleep", sleep),
				zap.Int("attempt", attempt),
			)
			time.Sleep(sleep)
			continue
		}

		var respErr *github.ErrorResponse
		if errors.As(err, &respErr) && respErr.Response != nil {
			switch respErr.Response.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				return fmt.Errorf("%w: %s", ErrUnauthorized, respErr.Message)
			}
		}

		return fmt.Errorf("failed to call %s: %w", call, err)
	}
}
