package patcher

import (
	"fmt"
	"strings"
)

// globalFlag reads the flag of t, treating any read failure as zero.
func (m *Manager) globalFlag(t Target) uint32 {
	v, err := m.sys.Registry.GlobalFlag(t)
	if err != nil {
		return 0
	}
	return v
}

// isHooked reports whether t has the verifier bit set and points at the shim.
func (m *Manager) isHooked(t Target) bool {
	dlls, err := m.sys.Registry.VerifierDlls(t)
	if err != nil {
		return false
	}
	return m.globalFlag(t)&FlagApplicationVerifier != 0 && strings.EqualFold(dlls, m.image.Name)
}

// registerHook sets the verifier bit of t, keeping every other bit, and
// points VerifierDlls at the shim.
func (m *Manager) registerHook(t Target) error {
	flag := m.globalFlag(t) | FlagApplicationVerifier
	if err := m.sys.Registry.SetGlobalFlag(t, flag); err != nil {
		return fmt.Errorf("set GlobalFlag: %w", err)
	}
	if err := m.sys.Registry.SetVerifierDlls(t, m.image.Name); err != nil {
		return fmt.Errorf("set VerifierDlls: %w", err)
	}
	return nil
}

// ClearHook removes the verifier bit of t and, once the bit is verified gone,
// the shim's VerifierDlls value. It is idempotent.
//
// The flag is read back after it is written and that value decides the
// outcome: if the bit is off the hook is cleared no matter what the write
// reported, and if the bit is still on VerifierDlls is left alone so a live
// hook never points at a missing module.
func (m *Manager) ClearHook(t Target) error {
	flag := m.globalFlag(t) &^ FlagApplicationVerifier

	var writeErr error
	if flag == 0 {
		writeErr = m.sys.Registry.DeleteGlobalFlag(t)
	} else {
		writeErr = m.sys.Registry.SetGlobalFlag(t, flag)
	}

	if m.globalFlag(t)&FlagApplicationVerifier != 0 {
		if writeErr != nil {
			return writeErr
		}
		return ErrFlagStillSet
	}

	// A VerifierDlls value naming another module belongs to another tool.
	if dlls, err := m.sys.Registry.VerifierDlls(t); err == nil && (dlls == "" || strings.EqualFold(dlls, m.image.Name)) {
		_ = m.sys.Registry.DeleteVerifierDlls(t)
	}
	return nil
}
