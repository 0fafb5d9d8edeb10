// Package winsys implements the patcher collaborators on top of the Windows
// registry, file system, global atom table and power management.
//
// Every type is usable on other platforms so the rest of the tree compiles
// there, but its methods return ErrUnsupported.
package winsys

import (
	"errors"
	"fmt"

	"github.com/blackwell-systems/themetool/internal/patcher"
)

// ErrUnsupported is returned by every primitive on non-Windows platforms.
var ErrUnsupported = errors.New("operation requires Windows")

// IFEOPath is the registry path, relative to HKLM, holding one subkey per
// executable name.
const IFEOPath = `SOFTWARE\Microsoft\Windows NT\CurrentVersion\Image File Execution Options`

// IFEORegistry reads and writes the GlobalFlag and VerifierDlls values of
// IFEO subkeys in the 64-bit registry view.
type IFEORegistry struct{}

// FileStore accesses the shim file. ForceRemove tolerates files held open by
// running processes.
type FileStore struct{}

// AtomSignal reads reference counts of global atoms.
type AtomSignal struct{}

// RedirectionGuard disables WOW64 file system redirection for the calling
// goroutine's OS thread.
type RedirectionGuard struct{}

// Power enables the shutdown privilege and reboots the machine.
type Power struct{}

// NewSystem returns the collaborators for the local machine.
func NewSystem() patcher.System {
	return patcher.System{
		Registry: IFEORegistry{},
		Files:    FileStore{},
		Signal:   AtomSignal{},
		Guard:    RedirectionGuard{},
		Power:    Power{},
	}
}

// Version is the NT version of the running system.
type Version struct {
	Major, Minor, Build uint32
	Caption             string
}

// String formats the version as "major.minor.build".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Build)
}
