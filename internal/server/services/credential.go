// Package services contains server-side business logic. This file
// implements CredentialService, the entry point for every credential
// operation: it resolves accounts, checks caller privileges, dispatches to
// the authorities and applies throttling, metrics and auditing.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/cryptox"
	"github.com/dmitrijs2005/credengine/internal/logging"
	"github.com/dmitrijs2005/credengine/internal/secretx"
	"github.com/dmitrijs2005/credengine/internal/server/authority"
	"github.com/dmitrijs2005/credengine/internal/server/metrics"
	"github.com/dmitrijs2005/credengine/internal/server/models"
	"github.com/dmitrijs2005/credengine/internal/server/policy"
	"github.com/dmitrijs2005/credengine/internal/server/repositories/directory"
	"github.com/dmitrijs2005/credengine/internal/server/throttle"
)

// Deps are the collaborators of a CredentialService.
type Deps struct {
	Directory  directory.Repository
	Dispatcher *authority.Dispatcher
	Globals    *policy.Globals
	Throttle   *throttle.Throttle
	AdminGroup string

	Audit   *logging.Auditor
	Metrics *metrics.Metrics
	Log     logging.Logger
}

// CredentialService exposes one method per operation category.
// Secret arguments stay owned by the caller, which wipes them.
type CredentialService struct {
	dir        directory.Repository
	dispatcher *authority.Dispatcher
	globals    *policy.Globals
	throttle   *throttle.Throttle
	adminGroup string

	audit   *logging.Auditor
	metrics *metrics.Metrics
	log     logging.Logger

	// sleep imposes throttle delays; replaced in tests.
	sleep func(ctx context.Context, d time.Duration)
}

func NewCredentialService(d Deps) *CredentialService {
	if d.Log == nil {
		d.Log = logging.Nop{}
	}
	if d.AdminGroup == "" {
		d.AdminGroup = common.DefaultAdminGroup
	}
	return &CredentialService{
		dir:        d.Directory,
		dispatcher: d.Dispatcher,
		globals:    d.Globals,
		throttle:   d.Throttle,
		adminGroup: d.AdminGroup,
		audit:      d.Audit,
		metrics:    d.Metrics,
		log:        d.Log,
		sleep:      throttle.Sleep,
	}
}

// Verify checks a credential for the named account and returns the
// mutual-authentication payload, if the method has one.
func (s *CredentialService) Verify(ctx context.Context, name string, cred cryptox.Credential) ([]byte, error) {
	method := cred.Method.String()

	acct, err := s.dir.LookupAccount(ctx, name)
	if errors.Is(err, common.ErrNotFound) {
		// Unknown accounts look like wrong passwords and are throttled alike.
		s.failed(ctx, name, method, "unknown account")
		return nil, common.ErrVerificationFailed
	}
	if err != nil {
		s.metrics.ObserveVerify(method, metrics.ResultError)
		return nil, err
	}

	res, err := s.dispatcher.Dispatch(ctx, &authority.Request{
		Op:         authority.OpVerify,
		Account:    acct,
		Credential: cred,
	})
	switch {
	case err == nil:
		s.succeeded(ctx, name, method)
		return res.Payload, nil
	case errors.Is(err, common.ErrVerificationFailed):
		s.failed(ctx, name, method, err.Error())
		return nil, common.ErrVerificationFailed
	case errors.Is(err, common.ErrAccountDisabled):
		s.metrics.ObserveVerify(method, metrics.ResultDisabled)
		s.audit.Record(ctx, logging.ActionVerifyFailed, "account", name, "method", method, "reason", err.Error())
		return nil, common.ErrAccountDisabled
	case errors.Is(err, common.ErrPasswordExpired), errors.Is(err, common.ErrNewPasswordRequired):
		s.throttle.Reset(name)
		s.metrics.ObserveVerify(method, metrics.ResultMustChange)
		s.audit.Record(ctx, logging.ActionVerifySucceeded, "account", name, "method", method, "reason", err.Error())
		return nil, err
	case errors.Is(err, common.ErrNotSupported):
		s.metrics.ObserveVerify(method, metrics.ResultNotSupported)
	default:
		s.metrics.ObserveVerify(method, metrics.ResultError)
	}
	return nil, err
}

func (s *CredentialService) succeeded(ctx context.Context, name, method string) {
	s.throttle.Reset(name)
	s.metrics.ObserveVerify(method, metrics.ResultSuccess)
	s.audit.Record(ctx, logging.ActionVerifySucceeded, "account", name, "method", method)
}

// failed records the failure and sleeps the throttle delay. No lock is
// held at this point.
func (s *CredentialService) failed(ctx context.Context, name, method, reason string) {
	delay := s.throttle.RecordFailure(name)
	s.metrics.ObserveVerify(method, metrics.ResultFailure)
	s.metrics.ObserveThrottle(delay)
	s.audit.Record(ctx, logging.ActionVerifyFailed,
		"account", name, "method", method, "reason", reason,
		"failures", s.throttle.Failures(name), "delay", delay.String())
	if delay > 0 {
		s.sleep(ctx, delay)
	}
}

// ChangePassword replaces the account's password after checking the old
// one. Wrong old passwords count as failed verifications.
func (s *CredentialService) ChangePassword(ctx context.Context, name string, oldPassword, newPassword *secretx.Buffer) error {
	acct, err := s.dir.LookupAccount(ctx, name)
	if errors.Is(err, common.ErrNotFound) {
		s.failed(ctx, name, cryptox.MethodCleartext.String(), "unknown account")
		return common.ErrVerificationFailed
	}
	if err != nil {
		return err
	}

	_, err = s.dispatcher.Dispatch(ctx, &authority.Request{
		Op:          authority.OpChangePassword,
		Account:     acct,
		Caller:      models.Caller{Subject: name},
		OldPassword: oldPassword,
		NewPassword: newPassword,
	})
	switch {
	case err == nil:
		s.throttle.Reset(name)
		s.audit.Record(ctx, logging.ActionPasswordChanged, "account", name)
		return nil
	case errors.Is(err, common.ErrVerificationFailed):
		s.failed(ctx, name, cryptox.MethodCleartext.String(), err.Error())
		return common.ErrVerificationFailed
	case errors.Is(err, common.ErrAccountDisabled):
		s.audit.Record(ctx, logging.ActionVerifyFailed, "account", name, "reason", err.Error())
		return common.ErrAccountDisabled
	}
	return err
}

// SetPassword is the administrative password reset.
func (s *CredentialService) SetPassword(ctx context.Context, caller models.Caller, name string, password *secretx.Buffer) error {
	acct, err := s.privileged(ctx, caller, name, "set-password")
	if err != nil {
		return err
	}
	if _, err := s.dispatcher.Dispatch(ctx, &authority.Request{
		Op: authority.OpSetPassword, Account: acct, Caller: caller, NewPassword: password,
	}); err != nil {
		return err
	}
	s.audit.Record(ctx, logging.ActionPasswordSet, "account", name, "caller", caller.Subject)
	return nil
}

// GetPolicy returns the account's own policy options and the effective
// policy after merging the global defaults. Accounts may read their own
// policy; anyone else must be privileged.
func (s *CredentialService) GetPolicy(ctx context.Context, caller models.Caller, name string) (account, effective policy.Descriptor, err error) {
	var acct *models.Account
	if caller.Subject != "" && caller.Subject == name {
		acct, err = s.dir.LookupAccount(ctx, name)
	} else {
		acct, err = s.privileged(ctx, caller, name, "get-policy")
	}
	if err != nil {
		return nil, nil, err
	}

	res, err := s.dispatcher.Dispatch(ctx, &authority.Request{Op: authority.OpGetPolicy, Account: acct, Caller: caller})
	if err != nil {
		return nil, nil, err
	}
	return res.Policy, s.globals.Get().Merge(res.Policy), nil
}

// SetPolicy replaces the account's policy options.
func (s *CredentialService) SetPolicy(ctx context.Context, caller models.Caller, name string, d policy.Descriptor) error {
	acct, err := s.privileged(ctx, caller, name, "set-policy")
	if err != nil {
		return err
	}
	if _, err := s.dispatcher.Dispatch(ctx, &authority.Request{
		Op: authority.OpSetPolicy, Account: acct, Caller: caller, Policy: d,
	}); err != nil {
		return err
	}
	s.audit.Record(ctx, logging.ActionPolicyUpdated, "account", name, "caller", caller.Subject, "policy", d.Tokens())
	return nil
}

// GetGlobalPolicy returns the process-wide defaults.
func (s *CredentialService) GetGlobalPolicy(ctx context.Context) policy.Descriptor {
	return s.globals.Get()
}

// SetGlobalPolicy replaces the process-wide defaults and persists them.
func (s *CredentialService) SetGlobalPolicy(ctx context.Context, caller models.Caller, d policy.Descriptor) error {
	if err := s.requirePrivilege(ctx, caller, "set-global-policy"); err != nil {
		return err
	}
	if err := s.globals.Update(d); err != nil {
		return err
	}
	s.audit.Record(ctx, logging.ActionGlobalPolicyUpdated, "caller", caller.Subject, "policy", d.Tokens())
	return nil
}

// EnableAccount clears an automatic or administrative disable.
func (s *CredentialService) EnableAccount(ctx context.Context, caller models.Caller, name string) error {
	acct, err := s.privileged(ctx, caller, name, "enable")
	if err != nil {
		return err
	}
	if _, err := s.dispatcher.Enable(ctx, acct); err != nil {
		return err
	}
	s.throttle.Reset(name)
	s.audit.Record(ctx, logging.ActionAccountEnabled, "account", name, "caller", caller.Subject)
	return nil
}

// SetAuthority replaces the account's authority list, given as raw
// "tag;version;data" values.
func (s *CredentialService) SetAuthority(ctx context.Context, caller models.Caller, name string, values []string) error {
	acct, err := s.privileged(ctx, caller, name, "set-authority")
	if err != nil {
		return err
	}
	entries := authority.ParseList(values)
	for _, e := range entries {
		if e.Tag == authority.TagShadowHash {
			if _, err := e.HashList(0); err != nil {
				return fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
			}
		}
	}
	if err := s.dispatcher.SetAuthority(ctx, acct, entries); err != nil {
		return err
	}
	s.audit.Record(ctx, logging.ActionAuthorityChanged, "account", name, "caller", caller.Subject,
		"authority", authority.FormatList(entries))
	return nil
}

// ReadSecret returns the account's raw secret blob text. The caller wipes
// the result.
func (s *CredentialService) ReadSecret(ctx context.Context, caller models.Caller, name string) ([]byte, error) {
	acct, err := s.privileged(ctx, caller, name, "read-secret")
	if err != nil {
		return nil, err
	}
	res, err := s.dispatcher.Dispatch(ctx, &authority.Request{Op: authority.OpReadSecret, Account: acct, Caller: caller})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, logging.ActionSecretRead, "account", name, "caller", caller.Subject)
	return res.Payload, nil
}

// WriteSecret replaces the account's raw secret blob.
func (s *CredentialService) WriteSecret(ctx context.Context, caller models.Caller, name string, secret *secretx.Buffer) error {
	acct, err := s.privileged(ctx, caller, name, "write-secret")
	if err != nil {
		return err
	}
	if _, err := s.dispatcher.Dispatch(ctx, &authority.Request{
		Op: authority.OpWriteSecret, Account: acct, Caller: caller, Secret: secret,
	}); err != nil {
		return err
	}
	s.audit.Record(ctx, logging.ActionSecretWritten, "account", name, "caller", caller.Subject)
	return nil
}

// --- helpers below ---

func (s *CredentialService) privileged(ctx context.Context, caller models.Caller, name, op string) (*models.Account, error) {
	if err := s.requirePrivilege(ctx, caller, op); err != nil {
		return nil, err
	}
	return s.dir.LookupAccount(ctx, name)
}

func (s *CredentialService) requirePrivilege(ctx context.Context, caller models.Caller, op string) error {
	ok, err := s.isPrivileged(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		s.audit.Record(ctx, logging.ActionPermissionDenied, "caller", caller.Subject, "op", op)
		return common.ErrPermission
	}
	return nil
}

func (s *CredentialService) isPrivileged(ctx context.Context, caller models.Caller) (bool, error) {
	if caller.Privileged {
		return true, nil
	}
	if caller.Subject == "" {
		return false, nil
	}
	return s.dir.IsMember(ctx, s.adminGroup, caller.Subject)
}
