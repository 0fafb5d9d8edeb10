package patcher

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrFlagStillSet is returned when the verifier bit survives a removal
	// attempt without the registry reporting an error.
	ErrFlagStillSet = errors.New("verifier flag is still set after removal")

	// ErrCleanupFailed marks an install that aborted because the initial
	// uninstall did not complete.
	ErrCleanupFailed = errors.New("installation cannot continue because uninstalling failed")
)

// Step identifies one operation of a lifecycle sequence.
type Step string

const (
	StepGuard             Step = "redirection-guard"
	StepCleanup           Step = "cleanup"
	StepWriteImage        Step = "write-image"
	StepRegisterRequired  Step = "register-required"
	StepRegisterOptional  Step = "register-optional"
	StepRollback          Step = "rollback"
	StepClearHook         Step = "clear-hook"
	StepRemoveImage       Step = "remove-image"
	StepShutdownPrivilege Step = "shutdown-privilege"
	StepReboot            Step = "reboot"
)

// OpError describes a failed step of an install or uninstall.
type OpError struct {
	Op     string // "install" or "uninstall"
	Step   Step
	Target Target // empty for steps not bound to a target
	Err    error
}

func (e *OpError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s: %s %s: %v", e.Op, e.Step, e.Target, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Step, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Code returns the OS error number carried by the error, or 0.
func (e *OpError) Code() uint32 {
	return ErrorCode(e.Err)
}

// ErrorCode extracts the OS error number from err, or 0 when err carries none.
func ErrorCode(err error) uint32 {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return uint32(errno)
	}
	return 0
}
