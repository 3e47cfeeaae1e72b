package consoleclient

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionExpired means the server rejected the credential; the caller must log in again.
	ErrSessionExpired = errors.New("consoleclient: session expired")
	// ErrInvalidCredentials is returned by Login for a wrong username or password.
	ErrInvalidCredentials = errors.New("consoleclient: invalid credentials")
	// ErrNoCredential means the context carries no credential.
	ErrNoCredential = errors.New("consoleclient: no credential in context")

	ErrValidation        = errors.New("consoleclient: validation error")
	ErrInvalidTransition = errors.New("consoleclient: invalid state transition")
	ErrInvalidToken      = errors.New("consoleclient: invalid token")
	ErrNotAuthorized     = errors.New("consoleclient: not authorized")
	ErrConflict          = errors.New("consoleclient: conflict")
	ErrNotFound          = errors.New("consoleclient: not found")
)

var codeSentinels = map[string]error{
	"validation_error":         ErrValidation,
	"invalid_state_transition": ErrInvalidTransition,
	"invalid_token":            ErrInvalidToken,
	"not_authorized":           ErrNotAuthorized,
	"conflict":                 ErrConflict,
	"not_found":                ErrNotFound,
}

// APIError is a non-2xx answer from the console API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("consoleclient: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("consoleclient: %d: %s", e.Status, e.Message)
}

// Is matches the sentinel for the error code, so errors.Is(err, ErrInvalidToken) works.
func (e *APIError) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]
	return ok && sentinel == target
}
