package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

var fast = Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "too many requests", err: &googleapi.Error{Code: 429}, want: true},
		{name: "server error", err: &googleapi.Error{Code: 503}, want: true},
		{name: "rate limit 403", err: &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}, want: true},
		{name: "forbidden", err: &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "insufficientPermissions"}}}, want: false},
		{name: "not found", err: &googleapi.Error{Code: 404}, want: false},
		{name: "wrapped api error", err: fmt.Errorf("list: %w", &googleapi.Error{Code: 500}), want: true},
		{name: "connection reset", err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: true},
		{name: "unexpected eof", err: io.ErrUnexpectedEOF, want: true},
		{name: "url error", err: &url.Error{Op: "Get", URL: "https://gmail.googleapis.com", Err: errors.New("dial failed")}, want: true},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "plain", err: errors.New("bad request"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fast, "test", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &googleapi.Error{Code: 503}
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fast, "test", func(context.Context) (int, error) {
		calls++
		return 0, &googleapi.Error{Code: 429}
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var apiErr *googleapi.Error
	assert.ErrorAs(t, err, &apiErr)
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	permanent := &googleapi.Error{Code: 404}
	_, err := Do(context.Background(), fast, "test", func(context.Context) (int, error) {
		calls++
		return 0, permanent
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, permanent)
}
