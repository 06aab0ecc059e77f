package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageIncludesProviderAndKind(t *testing.T) {
	err := NewRateLimited("alphavantage", "daily quota reached")
	assert.Contains(t, err.Error(), "alphavantage")
	assert.Contains(t, err.Error(), "rate_limited")
	assert.Contains(t, err.Error(), "daily quota reached")
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewUnknown("polygon", "network request failed", cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"rate limited", NewRateLimited("yahoo", "throttled"), KindRateLimited},
		{"not found", NewNotFound("yahoo", "no data"), KindNotFound},
		{"unauthorized", NewUnauthorized("polygon", "bad key"), KindUnauthorized},
		{"unknown", NewUnknown("yahoo", "boom", nil), KindUnknown},
		{"wrapped classified error", fmt.Errorf("context: %w", NewNotFound("yahoo", "no data")), KindNotFound},
		{"untyped error folds into unknown", errors.New("plain"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestAsErrorWrapsUntyped(t *testing.T) {
	plain := errors.New("plain failure")
	pe := AsError(plain, "yahoo")

	assert.Equal(t, KindUnknown, pe.Kind)
	assert.Equal(t, "yahoo", pe.Provider)
	require.ErrorIs(t, pe, plain)
}

func TestAsErrorPassesThroughClassified(t *testing.T) {
	orig := NewNotFound("polygon", "no data")
	pe := AsError(fmt.Errorf("wrapped: %w", orig), "other")

	assert.Same(t, orig, pe)
}
