package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsAppError_Wrapped(t *testing.T) {
	cause := errors.New("timeout")
	err := fmt.Errorf("allocate: %w", NewProbe("a.myshopify.com", "LA1000", cause))

	appErr, ok := AsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, CodeProbe, appErr.Code)
	assert.Equal(t, http.StatusBadGateway, GetHTTPStatus(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "LA1000", appErr.Details["sku"])
}

func TestGetHTTPStatus_PlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("boom")))
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want bool
	}{
		{"configuration", NewConfiguration("s", "counter not provisioned"), true},
		{"probe", NewProbe("s", "LA1", nil), true},
		{"conflict", NewConcurrentModification("shop_counter", "s"), true},
		{"no variants", NewNoVariants("s", "p"), false},
		{"invalid input", NewInvalidInput("Invalid number"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Retryable())
		})
	}
}

func TestHasCode(t *testing.T) {
	err := NewNotFound("shop_counter", "s")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConcurrentModification(err))
	assert.False(t, HasCode(errors.New("x"), CodeNotFound))
}

func TestWithDetail(t *testing.T) {
	err := NewInvalidInput("bad count").WithDetail("count", -1)
	assert.Equal(t, -1, err.Details["count"])
	assert.Equal(t, "INVALID_INPUT: bad count", err.Error())
}
