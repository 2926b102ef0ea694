package model

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		status int
	}{
		{NewValidationError("email", "is required"), "VALIDATION_ERROR", http.StatusUnprocessableEntity},
		{&DuplicateIdentityError{Field: "email"}, "DUPLICATE_IDENTITY", http.StatusConflict},
		{fmt.Errorf("%w: find one identities: %w", ErrStorageUnavailable, fmt.Errorf("dial tcp")), "STORAGE_UNAVAILABLE", http.StatusServiceUnavailable},
		{ErrTokenRevoked, "TOKEN_REVOKED", http.StatusUnauthorized},
		{ErrSelfActionDenied, "SELF_ACTION_DENIED", http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", ErrNotFound), "NOT_FOUND", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			class, ok := Classify(tt.err)
			assert.True(t, ok)
			assert.Equal(t, tt.code, class.Code)
			assert.Equal(t, tt.status, class.Status)
		})
	}

	_, ok := Classify(fmt.Errorf("boom"))
	assert.False(t, ok)
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"b": "bad", "a": "also bad"}}
	assert.Equal(t, "validation error (a: also bad; b: bad)", err.Error())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDuplicateIdentityError(t *testing.T) {
	assert.Equal(t, "identity already exists: username already taken", (&DuplicateIdentityError{Field: "username"}).Error())
	assert.Equal(t, "identity already exists", (&DuplicateIdentityError{}).Error())
	assert.ErrorIs(t, &DuplicateIdentityError{}, ErrDuplicateIdentity)
}

func TestTagList_UnmarshalJSON(t *testing.T) {
	var tags TagList
	assert.NoError(t, tags.UnmarshalJSON([]byte(`"a, b ,,c"`)))
	assert.Equal(t, TagList{"a", "b", "c"}, tags)

	assert.NoError(t, tags.UnmarshalJSON([]byte(`["x","y"]`)))
	assert.Equal(t, TagList{"x", "y"}, tags)

	assert.Error(t, tags.UnmarshalJSON([]byte(`12`)))
}
