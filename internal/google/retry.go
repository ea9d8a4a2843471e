package google

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
)

const (
	defaultMaxRetries = 4
)

// initialRetryDelay is a variable so tests can shorten it.
var initialRetryDelay = 1 * time.Second

// retry executes fn with exponential backoff while it fails with a transient
// Google API error (rate limit, server error, timeout).
func retry(ctx context.Context, logger *slog.Logger, op string, fn func() error) error {
	var lastErr error
	delay := initialRetryDelay

	for attempt := 0; attempt <= defaultMaxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("Retrying Google API call.", "op", op, "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		logger.Warn("Transient Google API error.", "op", op, "attempt", attempt+1, "error", lastErr)
	}
	return lastErr
}

func isRetryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
