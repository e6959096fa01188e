package retry

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/googleapi"

	"github.com/huavcjj/followup/internal/metrics"
)

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do runs op until it succeeds, returns a non-transient error, or the policy
// runs out of attempts. The last error is returned unwrapped.
func Do[T any](ctx context.Context, p Policy, operation string, op func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	return backoff.RetryNotifyWithData(
		func() (T, error) {
			attempt++
			v, err := op(ctx)
			if err != nil && !IsTransient(err) {
				return v, backoff.Permanent(err)
			}
			return v, err
		},
		p.backOff(ctx),
		func(err error, wait time.Duration) {
			metrics.RecordRetry(operation)
			slog.Warn("retrying provider call",
				"operation", operation,
				"attempt", attempt,
				"wait", wait,
				"error", err,
			)
		},
	)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	transient, _ := Classify(err)
	return transient
}

// Classify returns whether err is transient together with a short kind label.
func Classify(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	if errors.Is(err, context.Canceled) {
		return false, "context_canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false, "deadline_exceeded"
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return true, "rate_limited"
		case apiErr.Code >= 500:
			return true, "server_error"
		case apiErr.Code == http.StatusForbidden && isRateLimitReason(apiErr):
			return true, "rate_limited"
		default:
			return false, "api_error"
		}
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true, "connection_closed"
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true, "connection_reset"
	}

	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true, "tls_error"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true, "network_error"
	}

	return false, "unknown_error"
}

func isRateLimitReason(err *googleapi.Error) bool {
	for _, item := range err.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded":
			return true
		}
	}
	return false
}
