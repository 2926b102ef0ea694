package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"go-auth-service/internal/model"
)

type APIError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    string            `json:"details,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	HTTPStatus int               `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

func BadRequest(message string, details string) *APIError {
	return New("BAD_REQUEST", message, details, http.StatusBadRequest)
}

func Internal() *APIError {
	return New("INTERNAL_ERROR", "an unexpected error occurred", "", http.StatusInternalServerError)
}

// From converts err into its public API shape. The second result is false
// when err is outside the known taxonomy and was reported as an internal error.
func From(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}

	class, ok := model.Classify(err)
	if !ok {
		return Internal(), false
	}

	out := New(class.Code, class.Message, "", class.Status)

	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		out.Fields = validationErr.Fields
	}

	var duplicateErr *model.DuplicateIdentityError
	if errors.As(err, &duplicateErr) && duplicateErr.Field != "" {
		out.Fields = map[string]string{duplicateErr.Field: "already taken"}
	}

	return out, true
}
