package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-auth-service/internal/model"
)

func TestAPIError_Error(t *testing.T) {
	assert.Equal(t, "BAD_REQUEST: bad (x)", BadRequest("bad", "x").Error())
	assert.Equal(t, "NOT_FOUND: gone", New("NOT_FOUND", "gone", "", http.StatusNotFound).Error())

	var nilErr *APIError
	assert.Equal(t, "", nilErr.Error())
}

func TestFrom(t *testing.T) {
	t.Run("passes through api errors", func(t *testing.T) {
		src := BadRequest("invalid 'from' datetime format", "yesterday")
		out, ok := From(fmt.Errorf("query: %w", src))
		require.True(t, ok)
		assert.Same(t, src, out)
	})

	t.Run("validation fields", func(t *testing.T) {
		out, ok := From(&model.ValidationError{Fields: map[string]string{"email": "must be a valid email address"}})
		require.True(t, ok)
		assert.Equal(t, "VALIDATION_ERROR", out.Code)
		assert.Equal(t, http.StatusUnprocessableEntity, out.HTTPStatus)
		assert.Equal(t, "must be a valid email address", out.Fields["email"])
	})

	t.Run("duplicate field", func(t *testing.T) {
		out, ok := From(&model.DuplicateIdentityError{Field: "username"})
		require.True(t, ok)
		assert.Equal(t, http.StatusConflict, out.HTTPStatus)
		assert.Equal(t, map[string]string{"username": "already taken"}, out.Fields)
	})

	t.Run("storage cause is hidden", func(t *testing.T) {
		out, ok := From(fmt.Errorf("%w: dial tcp 10.0.0.1:5432", model.ErrStorageUnavailable))
		require.True(t, ok)
		assert.Equal(t, "STORAGE_UNAVAILABLE", out.Code)
		assert.NotContains(t, out.Message, "10.0.0.1")
	})

	t.Run("unknown error", func(t *testing.T) {
		out, ok := From(errors.New("boom"))
		assert.False(t, ok)
		assert.Equal(t, http.StatusInternalServerError, out.HTTPStatus)
		assert.Equal(t, "INTERNAL_ERROR", out.Code)
	})
}
