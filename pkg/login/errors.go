package login

import (
	"errors"

	"github.com/samber/lo"
)

const FallbackMessage = "An unexpected error occurred"

var (
	ErrConfigFetch   = errors.New("config fetch failed")
	ErrAuthorization = errors.New("authorization failed")
	ErrTokenDecode   = errors.New("token decode failed")
	ErrVerification  = errors.New("verification failed")

	ErrLoginInProgress = errors.New("login already in progress")
	ErrInvalidRole     = errors.New("invalid role")
	ErrClosed          = errors.New("login screen closed")
)

type (
	serverMessager interface {
		ServerMessage() string
	}

	flowError struct {
		kind   error
		msg    string
		server string // error reported by a remote party, if any
		err    error
	}

	// ConfigFetchError: configuration endpoint unreachable or malformed response
	ConfigFetchError struct{ flowError }
	// AuthorizationError: provider rejected, user cancelled or no idToken
	AuthorizationError struct{ flowError }
	// TokenDecodeError: idToken could not be decoded or lacks the email claim
	TokenDecodeError struct{ flowError }
	// VerificationError: backend reported non-success or was unreachable
	VerificationError struct{ flowError }
)

func (e *flowError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *flowError) Unwrap() []error {
	return []error{e.kind, e.err}
}

func (e *flowError) ServerMessage() string {
	if e.server != "" {
		return e.server
	}
	var sm serverMessager
	if errors.As(e.err, &sm) {
		return sm.ServerMessage()
	}
	return ""
}

func newConfigFetchError(err error) *ConfigFetchError {
	return &ConfigFetchError{flowError{
		kind: ErrConfigFetch, msg: "Failed to fetch OAuth details", err: err,
	}}
}

func newAuthorizationError(msg string, err error) *AuthorizationError {
	return &AuthorizationError{flowError{kind: ErrAuthorization, msg: msg, err: err}}
}

func newTokenDecodeError(err error) *TokenDecodeError {
	return &TokenDecodeError{flowError{
		kind: ErrTokenDecode, msg: "Could not read the idToken", err: err,
	}}
}

func newVerificationError(server string, err error) *VerificationError {
	return &VerificationError{flowError{
		kind: ErrVerification, msg: "Verification failed", server: server, err: err,
	}}
}

// UserMessage derives the text shown to the user: the error reported by the
// server, then the error message, then a generic fallback.
func UserMessage(err error) string {
	if err == nil {
		return FallbackMessage
	}
	var server string
	var sm serverMessager
	if errors.As(err, &sm) {
		server = sm.ServerMessage()
	}
	return lo.CoalesceOrEmpty(server, err.Error(), FallbackMessage)
}
