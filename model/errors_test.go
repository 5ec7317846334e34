package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{429, RateLimited},
		{401, Unauthorized},
		{403, Unauthorized},
		{400, InvalidRequest},
		{404, InvalidRequest},
		{408, ProviderUnavailable},
		{500, ProviderUnavailable},
		{503, ProviderUnavailable},
		{0, ProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, KindForStatus(tt.status))
		})
	}
}

func TestCompletionError_IsAndRetryable(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", NewStatusError("openai", 429, cause))

	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.False(t, errors.Is(err, ErrInvalidRequest))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsRetryable(err))

	fatal := NewStatusError("openai", 400, cause)
	assert.False(t, fatal.Retryable())
	assert.False(t, IsRetryable(fatal))
	assert.Contains(t, fatal.Error(), "status 400")

	assert.False(t, IsRetryable(cause))
}
