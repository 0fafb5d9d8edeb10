package patcher

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
)

// Evaluate derives the current Status from the shim file, the IFEO entries
// and the activity signal. It never modifies any store and never fails: an
// unreadable file counts as absent and is reported in Status.FileErr. A
// missing file is not an error.
//
// Without the redirection guard neither the file nor the registry is read;
// everything reports No and the guard error lands in FileErr.
func (m *Manager) Evaluate() Status {
	st := Status{Hooks: make(map[Target]State, len(OptionalTargets))}
	for _, t := range OptionalTargets {
		st.Hooks[t] = No
	}

	required, err := m.readStores(&st)
	if err != nil {
		st.FileErr = fmt.Errorf("disable redirection: %w", err)
	}
	st.BypassCount = m.sys.Signal.Count(ActivitySignalName)

	switch {
	case st.FileHasContent && required && st.FileIsSame:
		st.Installed = Yes
	case st.FileHasContent && required:
		st.Installed = Outdated
	default:
		st.Installed = No
	}

	switch {
	case st.BypassCount > 0:
		st.Loaded = Yes
	case st.Installed == Outdated:
		st.Loaded = Probably
	default:
		st.Loaded = No
	}

	return st
}

// readStores fills the file and hook fields of st under the guard and
// reports whether the required target is hooked. It only fails when the
// guard cannot be entered, in which case st is left untouched.
func (m *Manager) readStores(st *Status) (bool, error) {
	release, err := m.sys.Guard.Enter()
	if err != nil {
		return false, err
	}
	defer release()

	content, err := m.sys.Files.ReadFile(m.image.Path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		st.FileErr = err
	}
	st.FileHasContent = err == nil && len(content) > 0
	st.FileIsSame = st.FileHasContent && bytes.Equal(content, m.image.Payload)

	for _, t := range OptionalTargets {
		st.Hooks[t] = boolState(m.isHooked(t))
	}
	return m.isHooked(Required), nil
}

func boolState(b bool) State {
	if b {
		return Yes
	}
	return No
}
