package patcher

import "strings"

// FlagApplicationVerifier is the GlobalFlag bit that makes the loader inject
// the modules listed in VerifierDlls.
const FlagApplicationVerifier uint32 = 0x100

// ActivitySignalName is the global atom the shim references each time it
// activates inside winlogon.
const ActivitySignalName = "SecureUxTheme_CalledInWinlogon"

// State is a four-valued status field.
type State int

const (
	No State = iota
	Yes
	Probably
	Outdated
)

// String returns the display text for the state.
func (s State) String() string {
	switch s {
	case No:
		return "No"
	case Yes:
		return "Yes"
	case Probably:
		return "Probably"
	case Outdated:
		return "Outdated"
	default:
		return "Unknown"
	}
}

// Target is an executable base name used as an IFEO subkey.
type Target string

const (
	Winlogon       Target = "winlogon.exe"
	Explorer       Target = "explorer.exe"
	LogonUI        Target = "LogonUI.exe"
	SystemSettings Target = "SystemSettings.exe"
	DWM            Target = "dwm.exe"
)

// Equal compares two targets case-insensitively.
func (t Target) Equal(other Target) bool {
	return strings.EqualFold(string(t), string(other))
}

// Required is the target that gates whether the shim is installed at all.
const Required = Winlogon

// OptionalTargets are the targets a user may additionally hook, in install order.
var OptionalTargets = []Target{Explorer, LogonUI, SystemSettings}

// RemovalOrder is the fixed order of the uninstall sequence. It is a superset
// of what install writes so hooks left by older versions are cleaned up too.
var RemovalOrder = []Target{Winlogon, Explorer, SystemSettings, DWM, LogonUI}

// ParseTarget resolves a short or full target name ("explorer",
// "Explorer.exe") to one of the optional targets.
func ParseTarget(name string) (Target, bool) {
	n := strings.TrimSpace(name)
	if !strings.HasSuffix(strings.ToLower(n), ".exe") {
		n += ".exe"
	}
	for _, t := range OptionalTargets {
		if t.Equal(Target(n)) {
			return t, true
		}
	}
	return "", false
}

// TargetSet is a set of optional targets.
type TargetSet map[Target]bool

// NewTargetSet builds a set from the given targets.
func NewTargetSet(targets ...Target) TargetSet {
	s := make(TargetSet, len(targets))
	for _, t := range targets {
		s.Add(t)
	}
	return s
}

// Add inserts t, normalizing to the canonical spelling when t is known.
func (s TargetSet) Add(t Target) {
	for _, known := range OptionalTargets {
		if known.Equal(t) {
			s[known] = true
			return
		}
	}
	s[t] = true
}

// Has reports whether t is in the set, ignoring case.
func (s TargetSet) Has(t Target) bool {
	for member := range s {
		if member.Equal(t) {
			return true
		}
	}
	return false
}

// Ordered returns the members that are optional targets, in install order.
func (s TargetSet) Ordered() []Target {
	var out []Target
	for _, t := range OptionalTargets {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// Status is the derived view of the patcher. It is stale as soon as it is
// returned.
type Status struct {
	Installed State
	Loaded    State
	Hooks     map[Target]State

	// Evidence the states were derived from.
	FileHasContent bool
	FileIsSame     bool
	FileErr        error
	BypassCount    int
}

// Hook returns the hook state for an optional target.
func (s Status) Hook(t Target) State {
	for k, v := range s.Hooks {
		if k.Equal(t) {
			return v
		}
	}
	return No
}

// Entry is the raw IFEO state of one target.
type Entry struct {
	Target       Target
	GlobalFlag   uint32
	HasFlag      bool
	VerifierDlls string
	HasVerifier  bool
}

// Owned reports whether the entry points at the shim with the verifier bit set.
func (e Entry) Owned(imageName string) bool {
	return e.GlobalFlag&FlagApplicationVerifier != 0 && strings.EqualFold(e.VerifierDlls, imageName)
}
