package errs

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	testCases := []struct {
		kind Kind
		want int
	}{
		{ClientInput, http.StatusBadRequest},
		{Validation, http.StatusUnprocessableEntity},
		{Authorization, http.StatusForbidden},
		{Unauthenticated, http.StatusUnauthorized},
		{Connection, http.StatusInternalServerError},
		{UninitializedBridge, http.StatusInternalServerError},
		{Internal, http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.kind.Status())
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	assert := assert.New(t)

	err := Wrap(Connection, sql.ErrConnDone, "could not reach tenant database")
	wrapped := fmt.Errorf("resolving acme: %w", err)

	assert.True(Is(wrapped, Connection))
	assert.False(Is(wrapped, Validation))
	assert.Equal(http.StatusInternalServerError, StatusOf(wrapped))
	assert.ErrorIs(wrapped, sql.ErrConnDone)
	assert.Contains(err.Error(), "could not reach tenant database")
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Internal, KindOf(fmt.Errorf("boom")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(fmt.Errorf("boom")))
}

func TestNewValidationError(t *testing.T) {
	assert := assert.New(t)

	err := NewValidationError("invalid fields", map[string]string{"name": "name is a required field"})

	assert.Equal(Validation, err.Kind)
	assert.Equal(http.StatusUnprocessableEntity, err.Status())
	assert.Equal(map[string]string{"name": "name is a required field"}, err.Details)
}
