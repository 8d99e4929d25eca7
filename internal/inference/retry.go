package inference

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
)

// shouldRetry determines if an HTTP status is retryable.
func shouldRetry(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// backoffFor calculates exponential backoff for the given attempt.
func (c *HTTPClient) backoffFor(attempt int) time.Duration {
	backoff := float64(c.cfg.InitialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(c.cfg.MaxBackoff) {
		backoff = float64(c.cfg.MaxBackoff)
	}
	return time.Duration(backoff)
}

// doWithRetry wraps an HTTP request with retry on transient failures.
func (c *HTTPClient) doWithRetry(ctx context.Context, reqFunc func() (*http.Response, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, domain.TimeoutError("inference call cancelled", ctx.Err())
		default:
		}

		resp, err := reqFunc()
		if err == nil && resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			if !shouldRetry(resp.StatusCode) {
				return resp, nil // non-retryable statuses surface to the caller
			}
			if resp.Body != nil {
				resp.Body.Close()
			}
		}

		if attempt == c.cfg.MaxRetries {
			break
		}

		backoff := c.backoffFor(attempt)
		c.logger.Warn().
			Int("attempt", attempt+1).
			Int("max_retries", c.cfg.MaxRetries).
			Dur("backoff", backoff).
			Err(lastErr).
			Msg("Model server request failed, retrying")

		select {
		case <-ctx.Done():
			return nil, domain.TimeoutError("inference call cancelled", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return nil, domain.ModelError(
		fmt.Sprintf("model server unreachable after %d retries", c.cfg.MaxRetries), lastErr)
}
