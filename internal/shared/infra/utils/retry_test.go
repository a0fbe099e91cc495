package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("temporal")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	notFound := errors.New("not found")
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return Permanent(notFound)
	})

	assert.ErrorIs(t, err, notFound)
	assert.Equal(t, 1, calls)
}

func TestRetry_ReturnsLastError(t *testing.T) {
	boom := errors.New("boom")
	err := Retry(context.Background(), 2, time.Millisecond, func() error { return boom })

	assert.ErrorIs(t, err, boom)
}

func TestRetry_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Second, func() error { return errors.New("x") })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestTernary(t *testing.T) {
	assert.Equal(t, "DESC", Ternary(true, "DESC", "ASC"))
	assert.Equal(t, "ASC", Ternary(false, "DESC", "ASC"))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "actor@acme.test", FirstNonEmpty("", "actor@acme.test", "ops@acme.test"))
	assert.Equal(t, "", FirstNonEmpty("", ""))
	assert.Equal(t, "", FirstNonEmpty())
}
