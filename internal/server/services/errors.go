package services

import (
	"errors"
	"fmt"
)

// FailureKind is the closed set of reasons an auth operation can fail.
type FailureKind int

const (
	Internal FailureKind = iota
	InvalidCredentials
	AccountAlreadyExists
	TokenExpired
	TokenInvalid
	SessionNotFound
	MissingOAuthEmail
	StorageUnavailable
	NotFound
)

var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrAccountAlreadyExists = errors.New("user with this email already exists")
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenInvalid         = errors.New("invalid token")
	ErrSessionNotFound      = errors.New("session not found")
	ErrMissingOAuthEmail    = errors.New("no email provided by identity provider")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrNotFound             = errors.New("not found")
	ErrInternal             = errors.New("internal error")
)

var kindSentinels = map[FailureKind]error{
	Internal:             ErrInternal,
	InvalidCredentials:   ErrInvalidCredentials,
	AccountAlreadyExists: ErrAccountAlreadyExists,
	TokenExpired:         ErrTokenExpired,
	TokenInvalid:         ErrTokenInvalid,
	SessionNotFound:      ErrSessionNotFound,
	MissingOAuthEmail:    ErrMissingOAuthEmail,
	StorageUnavailable:   ErrStorageUnavailable,
	NotFound:             ErrNotFound,
}

func (k FailureKind) String() string {
	switch k {
	case InvalidCredentials:
		return "invalid_credentials"
	case AccountAlreadyExists:
		return "account_already_exists"
	case TokenExpired:
		return "token_expired"
	case TokenInvalid:
		return "token_invalid"
	case SessionNotFound:
		return "session_not_found"
	case MissingOAuthEmail:
		return "missing_oauth_email"
	case StorageUnavailable:
		return "storage_unavailable"
	case NotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Message is the text shown to clients. An expired refresh token and a
// revoked or unknown session read the same, so callers cannot probe which
// sessions exist.
func (k FailureKind) Message() string {
	switch k {
	case TokenExpired, SessionNotFound:
		return "invalid or expired token"
	case StorageUnavailable:
		return "service temporarily unavailable"
	}
	if err, ok := kindSentinels[k]; ok {
		return err.Error()
	}
	return ErrInternal.Error()
}

// AuthError carries the failure kind and, for logs only, the underlying cause.
type AuthError struct {
	Kind FailureKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, so errors.Is(err,
// ErrInvalidCredentials) works on any wrapped AuthError.
func (e *AuthError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func fail(kind FailureKind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

func storageFailure(op string, err error) *AuthError {
	return fail(StorageUnavailable, fmt.Errorf("%s: %w", op, err))
}

// KindOf classifies any error returned by this package. Errors that are not
// an *AuthError are reported as Internal.
func KindOf(err error) FailureKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}
