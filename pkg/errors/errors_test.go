package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_WrappedError(t *testing.T) {
	base := NotFound("patient", nil)
	wrapped := fmt.Errorf("get patient: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsFetch(wrapped))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(stderrors.New("boom")))
	assert.False(t, IsNotFound(nil))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{Authentication("", nil), http.StatusUnauthorized},
		{NotFound("patient", nil), http.StatusNotFound},
		{Validation("bad input", nil, nil), http.StatusUnprocessableEntity},
		{Fetch("upstream down", nil), http.StatusBadGateway},
		{Forbidden("nope"), http.StatusForbidden},
		{Internal(nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode())
		})
	}
}

func TestAppError_MessageIncludesCause(t *testing.T) {
	err := Fetch("list patients", stderrors.New("connection refused"))
	assert.Equal(t, "list patients: connection refused", err.Error())
	assert.ErrorContains(t, err.Unwrap(), "connection refused")
}
