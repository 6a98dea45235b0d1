package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures so the HTTP layer can map them to a stable
// status without inspecting message text.
type ErrorKind int

const (
	// KindInternal is the default for unclassified failures.
	KindInternal ErrorKind = iota

	// KindAuthentication means the bearer credential is missing or invalid.
	KindAuthentication

	// KindAuthorization means the tenant lacks access to the resource.
	KindAuthorization

	// KindNotFound means a credential, template, or organization is absent.
	KindNotFound

	// KindValidation means the request body is malformed.
	KindValidation

	// KindUpstream wraps any provider SDK/API failure.
	KindUpstream

	// KindDecryption means a stored credential is corrupt or the key mismatches.
	KindDecryption

	// KindPlanLimit means a plan-tier ceiling was hit; the message carries an
	// upgrade hint.
	KindPlanLimit
)

// HTTPStatus maps an error kind to its HTTP-equivalent status code.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization, KindPlanLimit:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is the application error type carrying a kind and a caller-facing
// message. Wrapped causes stay available through errors.Unwrap.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the kind from an error chain, KindInternal if none.
func KindOf(err error) ErrorKind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// AuthenticationError reports a missing or invalid bearer credential.
func AuthenticationError(message string) error {
	return &Error{Kind: KindAuthentication, Message: message}
}

// AuthorizationError reports denied access.
func AuthorizationError(message string) error {
	return &Error{Kind: KindAuthorization, Message: message}
}

// NotFoundError reports an absent resource.
func NotFoundError(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// ValidationError reports a malformed request.
func ValidationError(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// UpstreamError wraps a provider failure with the provider name.
func UpstreamError(provider string, err error) error {
	return &Error{
		Kind:    KindUpstream,
		Message: fmt.Sprintf("%s call failed", provider),
		Err:     err,
	}
}

// DecryptionError wraps a credential decryption failure.
func DecryptionError(err error) error {
	return &Error{Kind: KindDecryption, Message: "failed to decrypt API key", Err: err}
}

// PlanLimitError reports a plan ceiling with an upgrade hint.
func PlanLimitError(message string) error {
	return &Error{Kind: KindPlanLimit, Message: message}
}
