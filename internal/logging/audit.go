package logging

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Audit action names.
const (
	ActionVerifySucceeded      = "auth.verify.succeeded"
	ActionVerifyFailed         = "auth.verify.failed"
	ActionAccountDisabled      = "auth.account.disabled"
	ActionAccountEnabled       = "auth.account.enabled"
	ActionPasswordChanged      = "auth.password.changed"
	ActionPasswordSet          = "auth.password.set"
	ActionPolicyUpdated        = "auth.policy.updated"
	ActionGlobalPolicyUpdated  = "auth.global_policy.updated"
	ActionSecretRead           = "auth.secret.read"
	ActionSecretWritten        = "auth.secret.written"
	ActionAuthorityChanged     = "auth.authority.changed"
	ActionBroadcastFailed      = "auth.broadcast.failed"
	ActionAdminBypass          = "auth.policy.admin_bypass"
	ActionPermissionDenied     = "auth.permission.denied"
	ActionLegacySecretUpgraded = "auth.secret.upgraded"
)

// Auditor writes audit records: one line per security-relevant event,
// each with a ULID event_id and a dotted action name. Diagnostics that
// must not reach an unauthenticated caller go here.
type Auditor struct {
	l   Logger
	now func() time.Time
}

func NewAuditor(l Logger) *Auditor {
	if l == nil {
		l = Nop{}
	}
	return &Auditor{l: l, now: time.Now}
}

// Record writes one audit event.
func (a *Auditor) Record(ctx context.Context, action string, args ...any) {
	if a == nil {
		return
	}
	fields := make([]any, 0, len(args)+4)
	fields = append(fields, "event_id", newEventID(a.now()), "action", action)
	fields = append(fields, Redact(args)...)
	a.l.Info(ctx, action, fields...)
}

func newEventID(now time.Time) string {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}
