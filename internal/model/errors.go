package model

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// Input
	ErrValidation = errors.New("validation error")

	// Identity
	ErrDuplicateIdentity  = errors.New("identity already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")

	// Tokens
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenRevoked = errors.New("token revoked")

	// Authorization
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrAdminRequired          = errors.New("admin privileges required")
	ErrSelfActionDenied       = errors.New("action not allowed on own account")

	// Storage
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError carries per-field messages keyed by the JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field string, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s (%s)", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DuplicateIdentityError names the conflicting field when it is known.
// Field is empty when the conflict came from the storage constraint.
type DuplicateIdentityError struct {
	Field string
}

func (e *DuplicateIdentityError) Error() string {
	if e.Field == "" {
		return ErrDuplicateIdentity.Error()
	}
	return fmt.Sprintf("%s: %s already taken", ErrDuplicateIdentity.Error(), e.Field)
}

func (e *DuplicateIdentityError) Is(target error) bool {
	return target == ErrDuplicateIdentity
}

// ErrorClass is the outward shape of a taxonomy error.
type ErrorClass struct {
	Code    string
	Status  int
	Message string
}

var errorClasses = []struct {
	target error
	class  ErrorClass
}{
	{ErrValidation, ErrorClass{"VALIDATION_ERROR", http.StatusUnprocessableEntity, "validation failed"}},
	{ErrDuplicateIdentity, ErrorClass{"DUPLICATE_IDENTITY", http.StatusConflict, "an account with these details already exists"}},
	{ErrInvalidCredentials, ErrorClass{"INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid credentials"}},
	{ErrAccountDisabled, ErrorClass{"ACCOUNT_DISABLED", http.StatusForbidden, "account is disabled"}},
	{ErrTokenExpired, ErrorClass{"TOKEN_EXPIRED", http.StatusUnauthorized, "token has expired"}},
	{ErrTokenInvalid, ErrorClass{"TOKEN_INVALID", http.StatusUnauthorized, "token is invalid"}},
	{ErrTokenRevoked, ErrorClass{"TOKEN_REVOKED", http.StatusUnauthorized, "token has been revoked"}},
	{ErrAuthenticationRequired, ErrorClass{"AUTHENTICATION_REQUIRED", http.StatusUnauthorized, "authentication required"}},
	{ErrAdminRequired, ErrorClass{"ADMIN_REQUIRED", http.StatusForbidden, "administrator privileges required"}},
	{ErrPermissionDenied, ErrorClass{"PERMISSION_DENIED", http.StatusForbidden, "permission denied"}},
	{ErrSelfActionDenied, ErrorClass{"SELF_ACTION_DENIED", http.StatusBadRequest, "this action is not allowed on your own account"}},
	{ErrNotFound, ErrorClass{"NOT_FOUND", http.StatusNotFound, "resource not found"}},
	{ErrStorageUnavailable, ErrorClass{"STORAGE_UNAVAILABLE", http.StatusServiceUnavailable, "service temporarily unavailable"}},
}

// Classify maps err onto its stable API code, HTTP status and public
// message. ok is false for errors outside the taxonomy.
func Classify(err error) (ErrorClass, bool) {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c.class, true
		}
	}
	return ErrorClass{}, false
}
