// Package common defines shared constants, helpers and sentinel errors used
// across the credential engine. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrNotSupported means the authority or algorithm cannot serve the
	// request; the dispatcher may try the next authority.
	ErrNotSupported = errors.New("not supported")

	// ErrVerificationFailed is a wrong credential. It feeds the throttle and
	// the lockout counters.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrAccountDisabled stays until an administrator re-enables the account.
	ErrAccountDisabled = errors.New("account disabled")

	// Soft failures: the credential was right but the caller must go through
	// a change-password flow.
	ErrPasswordExpired     = errors.New("password expired")
	ErrNewPasswordRequired = errors.New("new password required")

	// ErrStorage wraps I/O failures on secret, state and history files.
	// It is never retried automatically.
	ErrStorage = errors.New("storage error")

	// ErrPermission is returned when the caller may not perform a privileged
	// operation.
	ErrPermission = errors.New("permission denied")

	// Validation errors.
	ErrInvalidInput    = errors.New("invalid input")
	ErrPolicyViolation = errors.New("password policy violation")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
