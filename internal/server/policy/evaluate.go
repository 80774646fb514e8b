package policy

import (
	"time"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/server/models"
)

// Outcome is the result of the credential check being evaluated.
type Outcome int

const (
	// OutcomeNone evaluates an account before its credential is checked.
	OutcomeNone Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

// Decision is what an evaluation concluded.
type Decision struct {
	Allow              bool
	MustChangePassword bool
	// Expired distinguishes an aged-out password from an administrator's
	// newPasswordRequired flag.
	Expired bool
	// Disabled means the account already was disabled.
	Disabled bool
	// DisableAccount means this evaluation disabled the account.
	DisableAccount bool
	// AdminBypass is set when lockout and expiration rules were skipped.
	AdminBypass bool
	Reason      string
}

// Err maps the decision onto the engine's error taxonomy.
func (d Decision) Err() error {
	switch {
	case d.Disabled || d.DisableAccount:
		return common.ErrAccountDisabled
	case !d.Allow:
		return common.ErrVerificationFailed
	case d.MustChangePassword && d.Expired:
		return common.ErrPasswordExpired
	case d.MustChangePassword:
		return common.ErrNewPasswordRequired
	}
	return nil
}

// Evaluate applies pol to st for one attempt and updates st in place:
// counters follow the outcome and Disabled is set when the account must be
// disabled. Checks run in a fixed order: the disabled flag, the
// administrator bypass, hard expiry and inactivity, the failed-attempt
// reset window, the lockout threshold, then password age.
func Evaluate(st *models.AccountState, pol Policy, isAdmin bool, outcome Outcome, now time.Time) Decision {
	if st.Disabled || pol.IsDisabled {
		return Decision{Disabled: true, Reason: "account is disabled"}
	}

	d := Decision{Allow: true}
	admin := isAdmin || pol.IsAdminUser
	d.AdminBypass = admin

	if !admin {
		if reason := expiryReason(st, pol, now); reason != "" {
			d.DisableAccount, d.Reason = true, reason
		}
		if pol.MinutesUntilFailedLoginReset > 0 && st.FailedLoginAttempts > 0 &&
			!st.LastFailedLoginDate.IsZero() &&
			now.Sub(st.LastFailedLoginDate) >= minutes(pol.MinutesUntilFailedLoginReset) {
			st.FailedLoginAttempts = 0
		}
	}

	switch outcome {
	case OutcomeSuccess:
		st.FailedLoginAttempts = 0
		st.LastLoginDate = now
	case OutcomeFailure:
		st.FailedLoginAttempts++
		st.LastFailedLoginDate = now
		d.Allow = false
	}

	if !admin && !d.DisableAccount && pol.MaxFailedLoginAttempts > 0 &&
		st.FailedLoginAttempts >= pol.MaxFailedLoginAttempts {
		d.DisableAccount, d.Reason = true, "too many failed login attempts"
	}

	if d.DisableAccount {
		st.Disabled = true
		d.Allow = false
		return d
	}
	if outcome == OutcomeFailure {
		d.Reason = "wrong credential"
		return d
	}

	switch {
	case st.NewPasswordRequired || pol.NewPasswordRequired:
		d.MustChangePassword, d.Reason = true, "new password required"
	case admin:
	case pol.UsingExpirationDate && !pol.ExpirationDateGMT.IsZero() && !now.Before(pol.ExpirationDateGMT):
		d.MustChangePassword, d.Expired, d.Reason = true, true, "password expiration date reached"
	case pol.MaxMinutesUntilChangePassword > 0 && !st.ModDateOfPassword.IsZero() &&
		now.Sub(st.ModDateOfPassword) >= minutes(pol.MaxMinutesUntilChangePassword):
		d.MustChangePassword, d.Expired, d.Reason = true, true, "password too old"
	}
	return d
}

func expiryReason(st *models.AccountState, pol Policy, now time.Time) string {
	switch {
	case pol.UsingHardExpirationDate && !pol.HardExpireDateGMT.IsZero() && !now.Before(pol.HardExpireDateGMT):
		return "hard expiration date reached"
	case pol.MaxMinutesUntilDisabled > 0 && !st.ModDateOfPassword.IsZero() &&
		now.Sub(st.ModDateOfPassword) >= minutes(pol.MaxMinutesUntilDisabled):
		return "password lifetime exceeded"
	case pol.MaxMinutesOfNonUse > 0 && !st.LastLoginDate.IsZero() &&
		now.Sub(st.LastLoginDate) >= minutes(pol.MaxMinutesOfNonUse):
		return "account inactive"
	}
	return ""
}
