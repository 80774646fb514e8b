package policy

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/cryptox"
)

// ValidationError represents a rejected new password.
type ValidationError struct {
	Code    ValidationErrorCode
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is makes every ValidationError match common.ErrPolicyViolation.
func (e *ValidationError) Is(target error) bool {
	return target == common.ErrPolicyViolation
}

// ValidationErrorCode represents specific validation failure types.
type ValidationErrorCode int

const (
	ErrTooShort ValidationErrorCode = iota + 1
	ErrTooLong
	ErrNoAlpha
	ErrNoNumeric
	ErrNoMixedCase
	ErrNoSymbol
	ErrIsName
	ErrInHistory
)

// Change describes a password change for validation.
type Change struct {
	AccountName string
	// Self is set when the account changes its own password.
	Self     bool
	Password []byte
	// History holds salted SHA1 entries of earlier passwords, newest first,
	// including the current one.
	History [][]byte
}

// ValidateChange checks a new password against pol. Complexity rules apply
// only here, never on verification.
func ValidateChange(pol Policy, c Change) error {
	if c.Self && !pol.CanModifyPasswordForSelf {
		return fmt.Errorf("%w: account may not change its own password", common.ErrPermission)
	}

	n := utf8.RuneCount(c.Password)
	if pol.MinChars > 0 && n < pol.MinChars {
		return &ValidationError{Code: ErrTooShort, Message: fmt.Sprintf("password must have at least %d characters", pol.MinChars)}
	}
	if pol.MaxChars > 0 && n > pol.MaxChars {
		return &ValidationError{Code: ErrTooLong, Message: fmt.Sprintf("password must have at most %d characters", pol.MaxChars)}
	}

	var hasAlpha, hasUpper, hasLower, hasDigit, hasSymbol bool
	for rest := c.Password; len(rest) > 0; {
		r, size := utf8.DecodeRune(rest)
		rest = rest[size:]
		switch {
		case unicode.IsLetter(r):
			hasAlpha = true
			hasUpper = hasUpper || unicode.IsUpper(r)
			hasLower = hasLower || unicode.IsLower(r)
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	if pol.RequiresAlpha && !hasAlpha {
		return &ValidationError{Code: ErrNoAlpha, Message: "password must contain a letter"}
	}
	if pol.RequiresNumeric && !hasDigit {
		return &ValidationError{Code: ErrNoNumeric, Message: "password must contain a digit"}
	}
	if pol.RequiresMixedCase && !(hasUpper && hasLower) {
		return &ValidationError{Code: ErrNoMixedCase, Message: "password must mix upper and lower case"}
	}
	if pol.RequiresSymbol && !hasSymbol {
		return &ValidationError{Code: ErrNoSymbol, Message: "password must contain a symbol"}
	}
	if pol.PasswordCannotBeName && c.AccountName != "" &&
		bytes.EqualFold(c.Password, []byte(strings.TrimSpace(c.AccountName))) {
		return &ValidationError{Code: ErrIsName, Message: "password cannot be the account name"}
	}

	if depth := pol.UsingHistory; depth > 0 {
		if depth > len(c.History) {
			depth = len(c.History)
		}
		for _, h := range c.History[:depth] {
			if cryptox.MatchSaltedSHA1(h, c.Password) {
				return &ValidationError{Code: ErrInHistory, Message: "password was used recently"}
			}
		}
	}
	return nil
}
