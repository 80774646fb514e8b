package authority

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/cryptox"
	"github.com/dmitrijs2005/credengine/internal/logging"
	"github.com/dmitrijs2005/credengine/internal/server/models"
	"github.com/dmitrijs2005/credengine/internal/server/policy"
	"github.com/dmitrijs2005/credengine/internal/server/repositories/directory"
	"github.com/dmitrijs2005/credengine/internal/server/repositories/secrets"
)

const lockStripes = 64

// LocalConfig wires a Local handler.
type LocalConfig struct {
	Suite   *cryptox.Suite
	Store   *secrets.Store
	Globals *policy.Globals
	Dir     directory.Repository

	// AdminGroup members are exempt from lockout and expiration.
	AdminGroup string
	// DefaultAlgorithms apply to ShadowHash entries without a hash list.
	DefaultAlgorithms cryptox.AlgorithmSet

	Audit *logging.Auditor
	Log   logging.Logger
}

// Local serves ShadowHash entries from the secret store.
type Local struct {
	cfg LocalConfig
	now func() time.Time

	// stripes serialize state updates per account.
	stripes [lockStripes]sync.Mutex
}

func NewLocal(cfg LocalConfig) *Local {
	if cfg.Log == nil {
		cfg.Log = logging.Nop{}
	}
	if cfg.AdminGroup == "" {
		cfg.AdminGroup = common.DefaultAdminGroup
	}
	return &Local{cfg: cfg, now: time.Now}
}

func (l *Local) lock(acct *models.Account) func() {
	h := fnv.New32a()
	h.Write([]byte(acct.Name))
	mu := &l.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

func (l *Local) Handle(ctx context.Context, req *Request, e Entry) (*Result, error) {
	switch req.Op {
	case OpVerify:
		return l.verify(ctx, req, e)
	case OpChangePassword:
		return l.changePassword(ctx, req, e)
	case OpSetPassword:
		return l.setPassword(ctx, req, e)
	case OpGetPolicy:
		return l.getPolicy(ctx, req)
	case OpSetPolicy:
		return l.setPolicy(ctx, req)
	case OpReadSecret:
		return l.readSecret(req)
	case OpWriteSecret:
		return l.writeSecret(req)
	}
	return nil, common.ErrNotSupported
}

// account bundles what every credential operation loads first.
type account struct {
	blob   *cryptox.Blob
	legacy bool
	desc   policy.Descriptor
	pol    policy.Policy
	admin  bool
	state  models.AccountState
}

func (l *Local) load(ctx context.Context, acct *models.Account) (*account, error) {
	blob, legacy, err := l.cfg.Store.Read(acct)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: no local secret", common.ErrNotSupported)
	}
	if err != nil {
		return nil, err
	}
	a := &account{blob: blob, legacy: legacy}

	if a.desc, a.pol, err = l.policyFor(ctx, acct); err != nil {
		blob.Wipe()
		return nil, err
	}
	if a.admin, err = l.cfg.Dir.IsMember(ctx, l.cfg.AdminGroup, acct.Name); err != nil {
		blob.Wipe()
		return nil, err
	}
	if a.state, err = l.cfg.Store.ReadState(acct); err != nil {
		blob.Wipe()
		return nil, err
	}
	return a, nil
}

func (l *Local) policyFor(ctx context.Context, acct *models.Account) (policy.Descriptor, policy.Policy, error) {
	desc, err := l.accountPolicy(ctx, acct)
	if err != nil {
		return nil, policy.Policy{}, err
	}
	pol, err := l.cfg.Globals.Effective(desc)
	if err != nil {
		return nil, policy.Policy{}, err
	}
	return desc, pol, nil
}

func (l *Local) accountPolicy(ctx context.Context, acct *models.Account) (policy.Descriptor, error) {
	values, err := l.cfg.Dir.ReadAttribute(ctx, acct.Handle, common.AttrPolicyOptions)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return policy.Descriptor{}, nil
	}
	return policy.Decode(values[0])
}

// precheck refuses disabled accounts before any credential is looked at,
// and disables accounts whose hard limits have passed.
func (l *Local) precheck(ctx context.Context, acct *models.Account, a *account) error {
	snapshot := a.state
	d := policy.Evaluate(&snapshot, a.pol, a.admin, policy.OutcomeNone, l.now())
	if d.Disabled {
		return withReason(common.ErrAccountDisabled, d.Reason)
	}
	if d.DisableAccount {
		a.state.Disabled = true
		if err := l.cfg.Store.WriteState(acct, a.state); err != nil {
			return err
		}
		return withReason(common.ErrAccountDisabled, d.Reason)
	}
	return nil
}

func (l *Local) verify(ctx context.Context, req *Request, e Entry) (*Result, error) {
	acct := req.Account
	unlock := l.lock(acct)
	defer unlock()

	a, err := l.load(ctx, acct)
	if err != nil {
		return nil, err
	}
	defer a.blob.Wipe()

	if err := l.precheck(ctx, acct, a); err != nil {
		return nil, err
	}

	payload, verr := l.cfg.Suite.Verify(a.blob, req.Credential)
	if errors.Is(verr, common.ErrNotSupported) {
		return nil, verr
	}
	outcome := policy.OutcomeSuccess
	if verr != nil {
		if !errors.Is(verr, common.ErrVerificationFailed) {
			return nil, verr
		}
		outcome = policy.OutcomeFailure
	}

	d := policy.Evaluate(&a.state, a.pol, a.admin, outcome, l.now())
	if err := l.cfg.Store.WriteState(acct, a.state); err != nil {
		common.WipeByteArray(payload)
		return nil, err
	}
	if d.AdminBypass && outcome == policy.OutcomeSuccess {
		l.cfg.Audit.Record(ctx, logging.ActionAdminBypass, "account", acct.Name)
	}

	if d.Allow && req.Credential.Method == cryptox.MethodCleartext {
		if err := l.upgrade(ctx, acct, e, a, req.Credential.Password.Bytes()); err != nil {
			common.WipeByteArray(payload)
			return nil, err
		}
	}

	if err := d.Err(); err != nil {
		common.WipeByteArray(payload)
		return nil, withReason(err, d.Reason)
	}
	return &Result{Payload: payload}, nil
}

// upgrade fills slots the blob lacks and moves legacy files to the current
// layout. It only runs once the cleartext has been verified.
func (l *Local) upgrade(ctx context.Context, acct *models.Account, e Entry, a *account, password []byte) error {
	algs, err := e.HashList(l.cfg.DefaultAlgorithms)
	if err != nil {
		l.cfg.Log.Warn(ctx, "ignoring hash list", "account", acct.Name, "error", err)
		algs = l.cfg.DefaultAlgorithms
	}
	changed, err := l.cfg.Suite.Upgrade(a.blob, password, algs)
	if err != nil {
		return err
	}
	wrote, err := l.cfg.Store.MigrateIfNeeded(acct, a.blob, changed || a.legacy)
	if err != nil {
		return err
	}
	if wrote {
		l.cfg.Audit.Record(ctx, logging.ActionLegacySecretUpgraded, "account", acct.Name)
	}
	return nil
}

func (l *Local) changePassword(ctx context.Context, req *Request, e Entry) (*Result, error) {
	acct := req.Account
	unlock := l.lock(acct)
	defer unlock()

	a, err := l.load(ctx, acct)
	if err != nil {
		return nil, err
	}
	defer a.blob.Wipe()

	if err := l.precheck(ctx, acct, a); err != nil {
		return nil, err
	}

	old := req.OldPassword.Bytes()
	if verr := l.cfg.Suite.VerifyCleartext(a.blob, old); verr != nil {
		if !errors.Is(verr, common.ErrVerificationFailed) {
			return nil, verr
		}
		d := policy.Evaluate(&a.state, a.pol, a.admin, policy.OutcomeFailure, l.now())
		if err := l.cfg.Store.WriteState(acct, a.state); err != nil {
			return nil, err
		}
		return nil, d.Err()
	}

	history, err := l.cfg.Store.ReadHistory(acct)
	if err != nil {
		return nil, err
	}
	current := cryptox.SaltedSHA1(old, common.GenerateRandByteArray(cryptox.SaltSize))
	history = append([][]byte{current}, history...)
	defer func() {
		for _, h := range history {
			common.WipeByteArray(h)
		}
	}()

	newPassword := req.NewPassword.Bytes()
	if err := policy.ValidateChange(a.pol, policy.Change{
		AccountName: acct.Name,
		Self:        true,
		Password:    newPassword,
		History:     history,
	}); err != nil {
		return nil, err
	}

	if err := l.replace(acct, e, newPassword); err != nil {
		return nil, err
	}
	if a.pol.UsingHistory > 0 {
		if err := l.cfg.Store.PushHistory(acct, current, a.pol.UsingHistory); err != nil {
			return nil, err
		}
	}

	now := l.now()
	a.state.FailedLoginAttempts = 0
	a.state.LastLoginDate = now
	a.state.ModDateOfPassword = now
	a.state.NewPasswordRequired = false
	if err := l.cfg.Store.WriteState(acct, a.state); err != nil {
		return nil, err
	}
	if err := l.clearChangeTrigger(ctx, acct, a.desc); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

// clearChangeTrigger drops newPasswordRequired from the account policy once
// the user has picked a new password, so the flag forces a single change.
func (l *Local) clearChangeTrigger(ctx context.Context, acct *models.Account, desc policy.Descriptor) error {
	if _, ok := desc.Get(policy.KeyNewPasswordRequired); !ok {
		return nil
	}
	rest := desc.Delete(policy.KeyNewPasswordRequired)
	return l.cfg.Dir.WriteAttribute(ctx, acct.Handle, common.AttrPolicyOptions, []string{rest.Encode()})
}

// withReason appends the decision reason unless it only repeats err.
func withReason(err error, reason string) error {
	if reason == "" || reason == err.Error() {
		return err
	}
	return fmt.Errorf("%w: %s", err, reason)
}

// setPassword is the administrative reset: no old password and no history
// check, but the complexity rules still apply.
func (l *Local) setPassword(ctx context.Context, req *Request, e Entry) (*Result, error) {
	acct := req.Account
	unlock := l.lock(acct)
	defer unlock()

	_, pol, err := l.policyFor(ctx, acct)
	if err != nil {
		return nil, err
	}
	newPassword := req.NewPassword.Bytes()
	if err := policy.ValidateChange(pol, policy.Change{AccountName: acct.Name, Password: newPassword}); err != nil {
		return nil, err
	}
	if err := l.replace(acct, e, newPassword); err != nil {
		return nil, err
	}

	st, err := l.cfg.Store.ReadState(acct)
	if err != nil {
		return nil, err
	}
	st.FailedLoginAttempts = 0
	st.ModDateOfPassword = l.now()
	if err := l.cfg.Store.WriteState(acct, st); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

func (l *Local) replace(acct *models.Account, e Entry, password []byte) error {
	algs, err := e.HashList(l.cfg.DefaultAlgorithms)
	if err != nil {
		return err
	}
	blob, err := l.cfg.Suite.Hash(password, algs)
	if err != nil {
		return err
	}
	defer blob.Wipe()
	return l.cfg.Store.Write(acct, blob)
}

func (l *Local) getPolicy(ctx context.Context, req *Request) (*Result, error) {
	desc, err := l.accountPolicy(ctx, req.Account)
	if err != nil {
		return nil, err
	}
	return &Result{Policy: desc}, nil
}

func (l *Local) setPolicy(ctx context.Context, req *Request) (*Result, error) {
	if _, err := policy.Parse(req.Policy); err != nil {
		return nil, err
	}
	err := l.cfg.Dir.WriteAttribute(ctx, req.Account.Handle, common.AttrPolicyOptions,
		[]string{req.Policy.Encode()})
	if err != nil {
		return nil, err
	}
	return &Result{Policy: req.Policy.Clone()}, nil
}

func (l *Local) readSecret(req *Request) (*Result, error) {
	blob, _, err := l.cfg.Store.Read(req.Account)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: no local secret", common.ErrNotSupported)
	}
	if err != nil {
		return nil, err
	}
	defer blob.Wipe()
	return &Result{Payload: blob.Encode()}, nil
}

func (l *Local) writeSecret(req *Request) (*Result, error) {
	unlock := l.lock(req.Account)
	defer unlock()

	blob, err := cryptox.DecodeBlob(req.Secret.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
	}
	defer blob.Wipe()
	if err := l.cfg.Store.Write(req.Account, blob); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

// ShouldDisable reports the account's stored disabled flag.
func (l *Local) ShouldDisable(_ context.Context, acct *models.Account) (bool, error) {
	st, err := l.cfg.Store.ReadState(acct)
	if err != nil {
		return false, err
	}
	return st.Disabled, nil
}

// SetDisabled updates the disabled flag. Re-enabling also clears the
// failure counter.
func (l *Local) SetDisabled(_ context.Context, acct *models.Account, disabled bool) error {
	unlock := l.lock(acct)
	defer unlock()

	st, err := l.cfg.Store.ReadState(acct)
	if err != nil {
		return err
	}
	st.Disabled = disabled
	if !disabled {
		st.FailedLoginAttempts = 0
		st.LastFailedLoginDate = time.Time{}
	}
	return l.cfg.Store.WriteState(acct, st)
}

// Forget shreds the account's secret, state and history.
func (l *Local) Forget(_ context.Context, acct *models.Account) error {
	return l.cfg.Store.Delete(acct)
}
