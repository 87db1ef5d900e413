package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	val, err := Retry(context.Background(), fastPolicy(), "op", func(_ context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	val, err := Retry(context.Background(), fastPolicy(), "op", func(_ context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, &anthropic.Error{StatusCode: 529}
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 3, calls)
}

func TestRetry_PermanentErrorFailsImmediately(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(), "op", func(_ context.Context) (int, error) {
		calls++
		return 0, &anthropic.Error{StatusCode: 400}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(), "op", func(_ context.Context) (int, error) {
		calls++
		return 0, &anthropic.Error{StatusCode: 429}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Retry(ctx, fastPolicy(), "op", func(_ context.Context) (int, error) {
		calls++
		cancel()
		return 0, &anthropic.Error{StatusCode: 503}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("invalid request")))
	assert.True(t, IsTransient(&anthropic.Error{StatusCode: 429}))
	assert.True(t, IsTransient(&anthropic.Error{StatusCode: 529}))
	assert.False(t, IsTransient(&anthropic.Error{StatusCode: 404}))
	assert.True(t, IsTransient(errors.New("read tcp: i/o timeout")))
	assert.True(t, IsTransient(errors.New("dial tcp: lookup api: no such host")))
}

func TestPolicyBackoffCaps(t *testing.T) {
	p := Policy{Attempts: 5, BaseDelay: 10 * time.Millisecond, MaxDelay: 25 * time.Millisecond}.withDefaults()
	assert.LessOrEqual(t, p.backoff(10), 25*time.Millisecond)
}
