package authority

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/logging"
	"github.com/dmitrijs2005/credengine/internal/server/metrics"
	"github.com/dmitrijs2005/credengine/internal/server/models"
	"github.com/dmitrijs2005/credengine/internal/server/repositories/directory"
)

// Handlers binds one Handler per known tag. A nil handler makes entries of
// that kind behave as unknown.
type Handlers struct {
	Local          Handler
	PasswordServer Handler
	Kerberos       Handler
}

func (h Handlers) forTag(t Tag) Handler {
	switch t {
	case TagShadowHash:
		return h.Local
	case TagPasswordServer:
		return h.PasswordServer
	case TagKerberos:
		return h.Kerberos
	}
	return nil
}

// Dispatcher routes requests over an account's authority list.
type Dispatcher struct {
	dir      directory.Repository
	handlers Handlers
	gate     AccountGate
	audit    *logging.Auditor
	metrics  *metrics.Metrics
	log      logging.Logger
}

// NewDispatcher builds a dispatcher. gate may be nil, which turns off
// automatic disabling.
func NewDispatcher(dir directory.Repository, handlers Handlers, gate AccountGate,
	audit *logging.Auditor, m *metrics.Metrics, log logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.Nop{}
	}
	return &Dispatcher{dir: dir, handlers: handlers, gate: gate, audit: audit, metrics: m, log: log}
}

// Entries reads and parses the account's authority list.
func (d *Dispatcher) Entries(ctx context.Context, acct *models.Account) ([]Entry, error) {
	values, err := d.dir.ReadAttribute(ctx, acct.Handle, common.AttrAuthority)
	if err != nil {
		return nil, err
	}
	return ParseList(values), nil
}

// Dispatch runs req against the account's authorities. Read-class
// operations return the first answer that is not ErrNotSupported.
// Broadcast operations reach every supporting authority; the first answer
// is returned and later failures are only audited, without rolling back
// authorities that already applied the change.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (*Result, error) {
	entries, err := d.Entries(ctx, req.Account)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: account has no authority", common.ErrNotSupported)
	}

	var (
		res      *Result
		resErr   error
		answered bool
		acting   Entry
	)
	for _, e := range entries {
		h := d.handlerFor(e)
		if h == nil {
			d.log.Debug(ctx, "skipping authority", "account", req.Account.Name, "authority", e.Name)
			continue
		}
		r, err := h.Handle(ctx, req, e)
		if errors.Is(err, common.ErrNotSupported) {
			continue
		}
		if !answered {
			res, resErr, answered, acting = r, err, true, e
			if !req.Op.Broadcast() {
				break
			}
			continue
		}
		if err != nil {
			d.metrics.BroadcastFailed()
			d.audit.Record(ctx, logging.ActionBroadcastFailed,
				"account", req.Account.Name, "op", req.Op.String(), "authority", e.Name, "error", err.Error())
		}
		wipeResult(r)
	}

	if !answered {
		return nil, fmt.Errorf("%w: no authority handles %s", common.ErrNotSupported, req.Op)
	}
	if resErr != nil && (req.Op == OpVerify || req.Op == OpChangePassword) &&
		(errors.Is(resErr, common.ErrVerificationFailed) || errors.Is(resErr, common.ErrAccountDisabled)) {
		if err := d.maybeDisable(ctx, req.Account, acting); err != nil {
			return nil, err
		}
	}
	return res, resErr
}

func wipeResult(r *Result) {
	if r != nil {
		common.WipeByteArray(r.Payload)
	}
}

func (d *Dispatcher) handlerFor(e Entry) Handler {
	if e.Tag == TagDisabled {
		if e.Wrapped == nil {
			return nil
		}
		return disabledHandler{inner: d.handlers.forTag(e.Wrapped.Tag)}
	}
	return d.handlers.forTag(e.Tag)
}

// disabledHandler answers for a DisabledUser entry: credential operations
// fail, administrative ones reach the wrapped authority.
type disabledHandler struct {
	inner Handler
}

func (h disabledHandler) Handle(ctx context.Context, req *Request, e Entry) (*Result, error) {
	if !req.Op.allowedWhileDisabled() {
		return nil, common.ErrAccountDisabled
	}
	if h.inner == nil {
		return nil, common.ErrNotSupported
	}
	return h.inner.Handle(ctx, req, *e.Wrapped)
}

// maybeDisable wraps the acting authority in DisabledUser once the gate
// reports the account disabled.
func (d *Dispatcher) maybeDisable(ctx context.Context, acct *models.Account, acting Entry) error {
	if d.gate == nil || acting.Tag == TagDisabled {
		return nil
	}
	disable, err := d.gate.ShouldDisable(ctx, acct)
	if err != nil || !disable {
		return err
	}

	changed := false
	err = directory.Update(ctx, d.dir, func(ctx context.Context, repo directory.Repository) error {
		values, err := repo.ReadAttribute(ctx, acct.Handle, common.AttrAuthority)
		if err != nil {
			return err
		}
		entries := ParseList(values)
		for i, e := range entries {
			if e.Tag != TagDisabled && e.String() == acting.String() {
				entries[i] = Disable(e)
				changed = true
			}
		}
		if !changed {
			return nil
		}
		return repo.WriteAttribute(ctx, acct.Handle, common.AttrAuthority, FormatList(entries))
	})
	if err != nil {
		return err
	}
	if changed {
		d.metrics.AccountDisabled(acting.Name)
		d.audit.Record(ctx, logging.ActionAccountDisabled, "account", acct.Name, "authority", acting.Name)
	}
	return nil
}

// Enable removes every DisabledUser wrapping from the account and clears
// the disabled state. It reports whether the authority list changed.
func (d *Dispatcher) Enable(ctx context.Context, acct *models.Account) (bool, error) {
	changed := false
	err := directory.Update(ctx, d.dir, func(ctx context.Context, repo directory.Repository) error {
		values, err := repo.ReadAttribute(ctx, acct.Handle, common.AttrAuthority)
		if err != nil {
			return err
		}
		entries := ParseList(values)
		for i, e := range entries {
			if e.Tag == TagDisabled {
				entries[i] = Enable(e)
				changed = true
			}
		}
		if !changed {
			return nil
		}
		return repo.WriteAttribute(ctx, acct.Handle, common.AttrAuthority, FormatList(entries))
	})
	if err != nil {
		return false, err
	}
	if d.gate != nil {
		if err := d.gate.SetDisabled(ctx, acct, false); err != nil {
			return changed, err
		}
	}
	return changed, nil
}

// SetAuthority replaces the authority list. Moving away from local hashing
// destroys the local secret material.
func (d *Dispatcher) SetAuthority(ctx context.Context, acct *models.Account, entries []Entry) error {
	var hadLocal bool
	err := directory.Update(ctx, d.dir, func(ctx context.Context, repo directory.Repository) error {
		values, err := repo.ReadAttribute(ctx, acct.Handle, common.AttrAuthority)
		if err != nil {
			return err
		}
		hadLocal = hasLocal(ParseList(values))
		return repo.WriteAttribute(ctx, acct.Handle, common.AttrAuthority, FormatList(entries))
	})
	if err != nil {
		return err
	}

	if hadLocal && !hasLocal(entries) {
		if f, ok := d.handlers.Local.(Forgetter); ok {
			if err := f.Forget(ctx, acct); err != nil {
				return err
			}
		}
	}
	return nil
}

func hasLocal(entries []Entry) bool {
	for _, e := range entries {
		if Enable(e).Tag == TagShadowHash {
			return true
		}
	}
	return false
}
