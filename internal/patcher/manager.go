// Package patcher manages the lifecycle of the SecureUxTheme shim: a verifier
// DLL registered through the Image File Execution Options registry key of a
// few privileged executables.
//
// The Manager reconciles three independent signals into a Status:
//   - the shim file in the system directory and whether it matches the payload
//   - the GlobalFlag/VerifierDlls values of each target
//   - the reference count of the activity atom the shim bumps when it loads
//
// Install and Uninstall are sequences of individually fallible steps. A failed
// install never leaves the required target (winlogon.exe) half hooked, and an
// uninstall never removes VerifierDlls while the verifier flag is still set,
// since that combination can prevent logon.
//
// All operations are synchronous. Callers must not run Install or Uninstall
// concurrently; Evaluate is read-only and may be called at any time.
package patcher

import (
	"errors"
	"fmt"
	"time"
)

// Manager drives the install, uninstall and status operations.
type Manager struct {
	sys      System
	image    Image
	prompter Prompter
	onEvent  func(Event)
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithPrompter sets the prompter consulted after a successful install.
// Without one, no reboot is requested.
func WithPrompter(p Prompter) Option {
	return func(m *Manager) { m.prompter = p }
}

// WithEventHandler registers fn to be called for every completed step.
func WithEventHandler(fn func(Event)) Option {
	return func(m *Manager) { m.onEvent = fn }
}

// New creates a Manager for the given system and shim image.
func New(sys System, image Image, opts ...Option) (*Manager, error) {
	if sys.Registry == nil || sys.Files == nil || sys.Signal == nil {
		return nil, fmt.Errorf("registry, files and signal are required")
	}
	if image.Name == "" || image.Dir == "" {
		return nil, fmt.Errorf("image name and directory are required")
	}
	if sys.Guard == nil {
		sys.Guard = nopGuard{}
	}
	m := &Manager{
		sys:   sys,
		image: image,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Image returns the shim image the manager installs.
func (m *Manager) Image() Image { return m.image }

// ActivityCount returns the current activity signal count.
func (m *Manager) ActivityCount() int {
	return m.sys.Signal.Count(ActivitySignalName)
}

// Inspect returns the raw IFEO entries of every target the uninstall
// sequence touches, in removal order. It does not modify anything.
func (m *Manager) Inspect() ([]Entry, error) {
	release, err := m.sys.Guard.Enter()
	if err != nil {
		return nil, fmt.Errorf("disable redirection: %w", err)
	}
	defer release()

	entries := make([]Entry, 0, len(RemovalOrder))
	for _, t := range RemovalOrder {
		e := Entry{Target: t}
		if v, err := m.sys.Registry.GlobalFlag(t); err == nil {
			e.GlobalFlag, e.HasFlag = v, true
		}
		if v, err := m.sys.Registry.VerifierDlls(t); err == nil {
			e.VerifierDlls, e.HasVerifier = v, true
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (m *Manager) record(r *Report, step Step, target Target, err error) {
	ev := Event{Time: m.now(), Op: r.Op, Step: step, Target: target, Err: err}
	r.Events = append(r.Events, ev)
	if m.onEvent != nil {
		m.onEvent(ev)
	}
}

type nopGuard struct{}

func (nopGuard) Enter() (func(), error) { return func() {}, nil }

// ErrNoPower is reported when a reboot is confirmed but no power primitive
// is configured.
var ErrNoPower = errors.New("reboot is not available")
