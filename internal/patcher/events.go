package patcher

import "time"

// Event is one completed step of a lifecycle operation.
type Event struct {
	Time   time.Time
	Op     string
	Step   Step
	Target Target
	Err    error
}

// OK reports whether the step succeeded.
func (e Event) OK() bool { return e.Err == nil }

// Report is the structured outcome of Install or Uninstall. It is returned
// alongside the error so callers can render partial progress.
type Report struct {
	Op     string
	Events []Event

	// Warnings are non-fatal failures: optional targets, image removal,
	// reboot requests.
	Warnings []*OpError

	// Hooked lists the targets registered by an install, in order.
	Hooked []Target
	// Cleared lists the targets whose hook was verified removed, in order.
	Cleared []Target

	ImageWritten bool
	ImageRemoved bool
	RolledBack   bool
	Rebooting    bool
}

func (r *Report) warn(step Step, target Target, err error) {
	r.Warnings = append(r.Warnings, &OpError{Op: r.Op, Step: step, Target: target, Err: err})
}
