package policy

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/server/models"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func TestEvaluate_SuccessResetsCounters(t *testing.T) {
	st := models.AccountState{FailedLoginAttempts: 2}
	d := Evaluate(&st, Policy{MaxFailedLoginAttempts: 5}, false, OutcomeSuccess, now)

	assert.True(t, d.Allow)
	assert.NoError(t, d.Err())
	assert.Equal(t, 0, st.FailedLoginAttempts)
	assert.Equal(t, now, st.LastLoginDate)
}

func TestEvaluate_FailureIncrements(t *testing.T) {
	st := models.AccountState{}
	d := Evaluate(&st, Policy{}, false, OutcomeFailure, now)

	assert.False(t, d.Allow)
	assert.ErrorIs(t, d.Err(), common.ErrVerificationFailed)
	assert.Equal(t, 1, st.FailedLoginAttempts)
	assert.Equal(t, now, st.LastFailedLoginDate)
	assert.False(t, st.Disabled)
}

func TestEvaluate_LockoutAtThreshold(t *testing.T) {
	pol := Policy{MaxFailedLoginAttempts: 3}
	st := models.AccountState{FailedLoginAttempts: 2}

	d := Evaluate(&st, pol, false, OutcomeFailure, now)
	assert.True(t, d.DisableAccount)
	assert.True(t, st.Disabled)
	assert.ErrorIs(t, d.Err(), common.ErrAccountDisabled)

	d = Evaluate(&st, pol, false, OutcomeNone, now)
	assert.True(t, d.Disabled)
	assert.False(t, d.Allow)
	assert.ErrorIs(t, d.Err(), common.ErrAccountDisabled)
}

func TestEvaluate_AdminExempt(t *testing.T) {
	pol := Policy{
		MaxFailedLoginAttempts:        1,
		MaxMinutesUntilChangePassword: 1,
		UsingHardExpirationDate:       true,
		HardExpireDateGMT:             now.Add(-time.Hour),
	}
	st := models.AccountState{ModDateOfPassword: now.Add(-time.Hour)}

	d := Evaluate(&st, pol, true, OutcomeFailure, now)
	assert.True(t, d.AdminBypass)
	assert.False(t, d.DisableAccount)
	assert.False(t, st.Disabled)
	assert.Equal(t, 1, st.FailedLoginAttempts)

	d = Evaluate(&st, pol, true, OutcomeSuccess, now)
	assert.NoError(t, d.Err())

	pol.IsAdminUser = true
	d = Evaluate(&st, pol, false, OutcomeSuccess, now)
	assert.NoError(t, d.Err())
}

func TestEvaluate_DisabledBeatsAdmin(t *testing.T) {
	st := models.AccountState{Disabled: true}
	d := Evaluate(&st, Policy{}, true, OutcomeSuccess, now)
	assert.ErrorIs(t, d.Err(), common.ErrAccountDisabled)

	st = models.AccountState{}
	d = Evaluate(&st, Policy{IsDisabled: true}, false, OutcomeNone, now)
	assert.ErrorIs(t, d.Err(), common.ErrAccountDisabled)
}

func TestEvaluate_HardExpiryAndInactivity(t *testing.T) {
	tests := []struct {
		name string
		pol  Policy
		st   models.AccountState
	}{
		{"hard date", Policy{UsingHardExpirationDate: true, HardExpireDateGMT: now}, models.AccountState{}},
		{"lifetime", Policy{MaxMinutesUntilDisabled: 60}, models.AccountState{ModDateOfPassword: now.Add(-2 * time.Hour)}},
		{"non-use", Policy{MaxMinutesOfNonUse: 60}, models.AccountState{LastLoginDate: now.Add(-61 * time.Minute)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := tt.st
			d := Evaluate(&st, tt.pol, false, OutcomeNone, now)
			assert.True(t, d.DisableAccount)
			assert.True(t, st.Disabled)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestEvaluate_HardDateInFuture(t *testing.T) {
	st := models.AccountState{}
	d := Evaluate(&st, Policy{UsingHardExpirationDate: true, HardExpireDateGMT: now.Add(time.Minute)}, false, OutcomeNone, now)
	assert.NoError(t, d.Err())

	d = Evaluate(&st, Policy{HardExpireDateGMT: now.Add(-time.Minute)}, false, OutcomeNone, now)
	assert.NoError(t, d.Err(), "date without usingHardExpirationDate is ignored")
}

func TestEvaluate_FailedLoginResetWindow(t *testing.T) {
	pol := Policy{MaxFailedLoginAttempts: 3, MinutesUntilFailedLoginReset: 10}
	st := models.AccountState{FailedLoginAttempts: 2, LastFailedLoginDate: now.Add(-11 * time.Minute)}

	d := Evaluate(&st, pol, false, OutcomeFailure, now)
	assert.False(t, d.DisableAccount)
	assert.Equal(t, 1, st.FailedLoginAttempts)

	st = models.AccountState{FailedLoginAttempts: 2, LastFailedLoginDate: now.Add(-5 * time.Minute)}
	d = Evaluate(&st, pol, false, OutcomeFailure, now)
	assert.True(t, d.DisableAccount)
}

func TestEvaluate_MustChange(t *testing.T) {
	st := models.AccountState{NewPasswordRequired: true}
	d := Evaluate(&st, Policy{}, false, OutcomeSuccess, now)
	assert.True(t, d.Allow)
	assert.ErrorIs(t, d.Err(), common.ErrNewPasswordRequired)

	st = models.AccountState{ModDateOfPassword: now.Add(-2 * time.Hour)}
	d = Evaluate(&st, Policy{MaxMinutesUntilChangePassword: 60}, false, OutcomeSuccess, now)
	assert.ErrorIs(t, d.Err(), common.ErrPasswordExpired)

	st = models.AccountState{}
	d = Evaluate(&st, Policy{UsingExpirationDate: true, ExpirationDateGMT: now.Add(-time.Second)}, false, OutcomeSuccess, now)
	assert.ErrorIs(t, d.Err(), common.ErrPasswordExpired)

	st = models.AccountState{ModDateOfPassword: now.Add(-2 * time.Hour)}
	d = Evaluate(&st, Policy{MaxMinutesUntilChangePassword: 60}, false, OutcomeFailure, now)
	assert.ErrorIs(t, d.Err(), common.ErrVerificationFailed, "a wrong password never reveals expiry")
}
