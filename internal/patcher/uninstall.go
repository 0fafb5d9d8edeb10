package patcher

import (
	"errors"
	"io/fs"
)

// Uninstall clears the hook of every target in RemovalOrder, stopping at the
// first target that fails, and then removes the shim file. A file that cannot
// be removed is reported as a warning; the uninstall still succeeds because
// an unreferenced file cannot affect boot.
func (m *Manager) Uninstall() (*Report, error) {
	r := &Report{Op: "uninstall"}

	release, err := m.sys.Guard.Enter()
	if err != nil {
		m.record(r, StepGuard, "", err)
		return r, &OpError{Op: r.Op, Step: StepGuard, Err: err}
	}
	defer release()

	cleared, imageErr, err := m.removeAll(r)
	r.Cleared = cleared
	if err != nil {
		return r, err
	}
	if imageErr != nil {
		r.warn(StepRemoveImage, "", imageErr)
	}
	return r, nil
}

// removeAll is the full removal shared by Uninstall and by Install's cleanup
// and rollback. err is a hard failure (*OpError for the failing target);
// imageErr is the result of removing the shim file, attempted only when every
// hook was cleared.
func (m *Manager) removeAll(r *Report) (cleared []Target, imageErr, err error) {
	for _, t := range RemovalOrder {
		clearErr := m.ClearHook(t)
		m.record(r, StepClearHook, t, clearErr)
		if clearErr != nil {
			return cleared, nil, &OpError{Op: r.Op, Step: StepClearHook, Target: t, Err: clearErr}
		}
		cleared = append(cleared, t)
	}

	imageErr = m.sys.Files.ForceRemove(m.image.Path())
	if errors.Is(imageErr, fs.ErrNotExist) {
		imageErr = nil
	}
	m.record(r, StepRemoveImage, "", imageErr)
	if imageErr == nil {
		r.ImageRemoved = true
	}
	return cleared, imageErr, nil
}
