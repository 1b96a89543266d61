package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("dial tcp: refused")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"validation", Validation("book", "bad date"), KindValidation},
		{"wrapped provider", fmt.Errorf("outer: %w", ProviderUnavailable("list", "calendar down", cause)), KindProviderUnavailable},
		{"plain error", cause, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorUnwrapAndMessage(t *testing.T) {
	cause := errors.New("timeout")
	err := ProviderUnavailable("cancel", "could not delete event", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "cancel: provider_unavailable: could not delete event: timeout", err.Error())
	assert.True(t, Is(err, KindProviderUnavailable))
	assert.False(t, Is(err, KindNotFound))
}

func TestNotFoundKeepsDetails(t *testing.T) {
	err := NotFound("cancel", "no matching appointment", map[string]string{"patient_name": "John Smith"})
	assert.Equal(t, "John Smith", err.Details["patient_name"])
	assert.Nil(t, err.Unwrap())
}
