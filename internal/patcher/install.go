package patcher

import (
	"errors"
	"fmt"
)

// RebootPolicy decides whether a successful install reboots the machine.
type RebootPolicy int

const (
	// RebootAsk consults the Manager's Prompter.
	RebootAsk RebootPolicy = iota
	RebootAlways
	RebootNever
)

// ParseRebootPolicy parses "ask", "always" or "never".
func ParseRebootPolicy(s string) (RebootPolicy, error) {
	switch s {
	case "", "ask":
		return RebootAsk, nil
	case "always":
		return RebootAlways, nil
	case "never":
		return RebootNever, nil
	}
	return RebootAsk, fmt.Errorf("invalid reboot policy %q (want ask, always or never)", s)
}

func (p RebootPolicy) String() string {
	switch p {
	case RebootAlways:
		return "always"
	case RebootNever:
		return "never"
	default:
		return "ask"
	}
}

// InstallOptions selects the optional targets and the reboot behavior.
type InstallOptions struct {
	Targets TargetSet
	Reboot  RebootPolicy
}

// Install registers the shim for winlogon.exe and the requested optional
// targets.
//
// The sequence always starts with a full uninstall so a previous partial
// install is repaired and installing twice is harmless. If the uninstall
// fails nothing is written. If registering winlogon.exe fails the full
// uninstall runs again before the error is returned. Failures on optional
// targets are reported as warnings on the Report and do not fail the install.
func (m *Manager) Install(opts InstallOptions) (*Report, error) {
	r := &Report{Op: "install"}

	release, err := m.sys.Guard.Enter()
	if err != nil {
		m.record(r, StepGuard, "", err)
		return r, &OpError{Op: r.Op, Step: StepGuard, Err: err}
	}
	defer release()

	_, imageErr, err := m.removeAll(r)
	if err == nil {
		err = imageErr
	}
	m.record(r, StepCleanup, "", err)
	if err != nil {
		return r, &OpError{Op: r.Op, Step: StepCleanup, Err: fmt.Errorf("%w: %w", ErrCleanupFailed, err)}
	}
	r.ImageRemoved = false

	if err := m.sys.Files.WriteFile(m.image.Path(), m.image.Payload); err != nil {
		m.record(r, StepWriteImage, "", err)
		return r, &OpError{Op: r.Op, Step: StepWriteImage, Err: err}
	}
	m.record(r, StepWriteImage, "", nil)
	r.ImageWritten = true

	if err := m.registerHook(Required); err != nil {
		m.record(r, StepRegisterRequired, Required, err)
		opErr := &OpError{Op: r.Op, Step: StepRegisterRequired, Target: Required, Err: err}

		_, rbImageErr, rbErr := m.removeAll(r)
		m.record(r, StepRollback, "", rbErr)
		if rbErr != nil {
			opErr.Err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			return r, opErr
		}
		r.RolledBack = true
		if rbImageErr != nil {
			r.warn(StepRemoveImage, "", rbImageErr)
		}
		return r, opErr
	}
	m.record(r, StepRegisterRequired, Required, nil)
	r.Hooked = append(r.Hooked, Required)

	for _, t := range opts.Targets.Ordered() {
		err := m.registerHook(t)
		m.record(r, StepRegisterOptional, t, err)
		if err != nil {
			r.warn(StepRegisterOptional, t, err)
			continue
		}
		r.Hooked = append(r.Hooked, t)
	}

	if m.wantsReboot(opts.Reboot) {
		m.reboot(r)
	}
	return r, nil
}

func (m *Manager) wantsReboot(p RebootPolicy) bool {
	switch p {
	case RebootAlways:
		return true
	case RebootNever:
		return false
	}
	return m.prompter != nil && m.prompter.ConfirmReboot()
}

// reboot requests a restart. Failures are warnings: the install has already
// succeeded and takes effect on the next boot either way.
func (m *Manager) reboot(r *Report) {
	if m.sys.Power == nil {
		m.record(r, StepReboot, "", ErrNoPower)
		r.warn(StepReboot, "", ErrNoPower)
		return
	}
	if err := m.sys.Power.EnableShutdownPrivilege(); err != nil {
		m.record(r, StepShutdownPrivilege, "", err)
		r.warn(StepShutdownPrivilege, "", err)
		return
	}
	m.record(r, StepShutdownPrivilege, "", nil)

	err := m.sys.Power.Reboot()
	m.record(r, StepReboot, "", err)
	if err != nil {
		r.warn(StepReboot, "", err)
		return
	}
	r.Rebooting = true
}
