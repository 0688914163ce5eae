package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
)

func TestRetryUpstream_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := retryUpstream(context.Background(), fastRetry(), discardLogger(), "op", func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestRetryUpstream_ExhaustedIsUpstream(t *testing.T) {
	calls := 0
	_, err := retryUpstream(context.Background(), fastRetry(), discardLogger(), "op", func() (int, error) {
		calls++
		return 0, errors.New("down")
	})

	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, 3, calls)
}

func TestRetryUpstream_ValidationNotRetried(t *testing.T) {
	calls := 0
	_, err := retryUpstream(context.Background(), fastRetry(), discardLogger(), "op", func() (int, error) {
		calls++
		return 0, domain.ErrInvalidInput
	})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NotErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, 1, calls)
}
