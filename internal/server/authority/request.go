package authority

import (
	"context"

	"github.com/dmitrijs2005/credengine/internal/cryptox"
	"github.com/dmitrijs2005/credengine/internal/secretx"
	"github.com/dmitrijs2005/credengine/internal/server/models"
	"github.com/dmitrijs2005/credengine/internal/server/policy"
)

// Operation is a request category.
type Operation int

const (
	OpVerify Operation = iota
	OpGetPolicy
	OpReadSecret
	OpChangePassword
	OpSetPassword
	OpSetPolicy
	OpWriteSecret
)

var opNames = [...]string{"verify", "get-policy", "read-secret", "change-password", "set-password", "set-policy", "write-secret"}

func (o Operation) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// Broadcast reports whether the operation is replayed on every supporting
// authority.
func (o Operation) Broadcast() bool {
	switch o {
	case OpChangePassword, OpSetPassword, OpSetPolicy, OpWriteSecret:
		return true
	}
	return false
}

// allowedWhileDisabled lists the administrative operations a DisabledUser
// entry passes through to the entry it wraps.
func (o Operation) allowedWhileDisabled() bool {
	switch o {
	case OpGetPolicy, OpSetPolicy, OpReadSecret, OpWriteSecret:
		return true
	}
	return false
}

// Request carries one operation and its payload. Secret fields are owned
// by the caller, which wipes them after Dispatch returns.
type Request struct {
	Op      Operation
	Account *models.Account
	Caller  models.Caller

	// Credential is checked by OpVerify.
	Credential cryptox.Credential

	// OldPassword and NewPassword feed the password operations.
	OldPassword *secretx.Buffer
	NewPassword *secretx.Buffer

	// Policy is the new per-account descriptor for OpSetPolicy.
	Policy policy.Descriptor

	// Secret is the hex blob text for OpWriteSecret.
	Secret *secretx.Buffer
}

// Result is an operation's output.
type Result struct {
	// Payload is the mutual-authentication response or, for OpReadSecret,
	// the raw secret text. The caller wipes it.
	Payload []byte
	Policy  policy.Descriptor
}

// Handler serves one authority kind. It returns common.ErrNotSupported for
// operations it cannot perform.
type Handler interface {
	Handle(ctx context.Context, req *Request, e Entry) (*Result, error)
}

// AccountGate is consulted after a failed verification.
type AccountGate interface {
	// ShouldDisable reports whether the account has reached a disabled
	// state.
	ShouldDisable(ctx context.Context, acct *models.Account) (bool, error)
	// SetDisabled updates the account's disabled state.
	SetDisabled(ctx context.Context, acct *models.Account, disabled bool) error
}

// Forgetter drops the local material an authority keeps for an account.
type Forgetter interface {
	Forget(ctx context.Context, acct *models.Account) error
}
