package policy

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/credengine/internal/common"
)

// Policy keys.
const (
	KeyIsDisabled                    = "isDisabled"
	KeyIsAdminUser                   = "isAdminUser"
	KeyNewPasswordRequired           = "newPasswordRequired"
	KeyUsingHistory                  = "usingHistory"
	KeyCanModifyPasswordForSelf      = "canModifyPasswordforSelf"
	KeyUsingExpirationDate           = "usingExpirationDate"
	KeyExpirationDateGMT             = "expirationDateGMT"
	KeyUsingHardExpirationDate       = "usingHardExpirationDate"
	KeyHardExpireDateGMT             = "hardExpireDateGMT"
	KeyMaxMinutesUntilChangePassword = "maxMinutesUntilChangePassword"
	KeyMaxMinutesUntilDisabled       = "maxMinutesUntilDisabled"
	KeyMaxMinutesOfNonUse            = "maxMinutesOfNonUse"
	KeyMaxFailedLoginAttempts        = "maxFailedLoginAttempts"
	KeyMinutesUntilFailedLoginReset  = "minutesUntilFailedLoginReset"
	KeyMinChars                      = "minChars"
	KeyMaxChars                      = "maxChars"
	KeyPasswordCannotBeName          = "passwordCannotBeName"
	KeyRequiresAlpha                 = "requiresAlpha"
	KeyRequiresNumeric               = "requiresNumeric"
	KeyRequiresMixedCase             = "requiresMixedCase"
	KeyRequiresSymbol                = "requiresSymbol"
)

// MaxHistoryDepth bounds usingHistory.
const MaxHistoryDepth = 15

// Policy is the typed form of a merged Descriptor.
type Policy struct {
	IsDisabled               bool
	IsAdminUser              bool
	NewPasswordRequired      bool
	UsingHistory             int
	CanModifyPasswordForSelf bool

	UsingExpirationDate     bool
	ExpirationDateGMT       time.Time
	UsingHardExpirationDate bool
	HardExpireDateGMT       time.Time

	MaxMinutesUntilChangePassword int
	MaxMinutesUntilDisabled       int
	MaxMinutesOfNonUse            int
	MaxFailedLoginAttempts        int
	MinutesUntilFailedLoginReset  int

	MinChars             int
	MaxChars             int
	PasswordCannotBeName bool
	RequiresAlpha        bool
	RequiresNumeric      bool
	RequiresMixedCase    bool
	RequiresSymbol       bool
}

// Parse converts a descriptor into a Policy. Unknown keys are ignored.
func Parse(d Descriptor) (Policy, error) {
	p := Policy{CanModifyPasswordForSelf: true}

	bools := map[string]*bool{
		KeyIsDisabled:               &p.IsDisabled,
		KeyIsAdminUser:              &p.IsAdminUser,
		KeyNewPasswordRequired:      &p.NewPasswordRequired,
		KeyCanModifyPasswordForSelf: &p.CanModifyPasswordForSelf,
		KeyUsingExpirationDate:      &p.UsingExpirationDate,
		KeyUsingHardExpirationDate:  &p.UsingHardExpirationDate,
		KeyPasswordCannotBeName:     &p.PasswordCannotBeName,
		KeyRequiresAlpha:            &p.RequiresAlpha,
		KeyRequiresNumeric:          &p.RequiresNumeric,
		KeyRequiresMixedCase:        &p.RequiresMixedCase,
		KeyRequiresSymbol:           &p.RequiresSymbol,
	}
	ints := map[string]*int{
		KeyUsingHistory:                  &p.UsingHistory,
		KeyMaxMinutesUntilChangePassword: &p.MaxMinutesUntilChangePassword,
		KeyMaxMinutesUntilDisabled:       &p.MaxMinutesUntilDisabled,
		KeyMaxMinutesOfNonUse:            &p.MaxMinutesOfNonUse,
		KeyMaxFailedLoginAttempts:        &p.MaxFailedLoginAttempts,
		KeyMinutesUntilFailedLoginReset:  &p.MinutesUntilFailedLoginReset,
		KeyMinChars:                      &p.MinChars,
		KeyMaxChars:                      &p.MaxChars,
	}
	dates := map[string]*time.Time{
		KeyExpirationDateGMT: &p.ExpirationDateGMT,
		KeyHardExpireDateGMT: &p.HardExpireDateGMT,
	}

	for _, o := range d {
		switch {
		case bools[o.Key] != nil:
			v, err := strconv.ParseBool(o.Value)
			if err != nil {
				return Policy{}, badValue(o)
			}
			*bools[o.Key] = v
		case ints[o.Key] != nil:
			v, err := strconv.Atoi(o.Value)
			if err != nil || v < 0 {
				return Policy{}, badValue(o)
			}
			*ints[o.Key] = v
		case dates[o.Key] != nil:
			v, err := time.Parse(time.RFC3339, o.Value)
			if err != nil {
				return Policy{}, badValue(o)
			}
			*dates[o.Key] = v.UTC()
		}
	}
	if p.UsingHistory > MaxHistoryDepth {
		p.UsingHistory = MaxHistoryDepth
	}
	return p, nil
}

func badValue(o Option) error {
	return fmt.Errorf("%w: policy %s=%q", common.ErrInvalidInput, o.Key, o.Value)
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
