package patcher

import "path/filepath"

// Registry reads and writes the two IFEO values of a target.
// Read methods return an error when the key or value is absent.
type Registry interface {
	GlobalFlag(t Target) (uint32, error)
	SetGlobalFlag(t Target, v uint32) error
	DeleteGlobalFlag(t Target) error
	VerifierDlls(t Target) (string, error)
	SetVerifierDlls(t Target, v string) error
	DeleteVerifierDlls(t Target) error
}

// Files is the file store holding the shim image.
type Files interface {
	ReadFile(path string) ([]byte, error)
	// WriteFile creates or truncates path.
	WriteFile(path string, data []byte) error
	// ForceRemove deletes path even if it is in use, deferring the deletion
	// to the next boot when necessary.
	ForceRemove(path string) error
}

// Signal reports the reference count of a named process-wide counter.
// A missing counter reports zero.
type Signal interface {
	Count(name string) int
}

// Guard disables OS file/registry redirection until release is called.
type Guard interface {
	Enter() (release func(), err error)
}

// Power requests a reboot.
type Power interface {
	EnableShutdownPrivilege() error
	Reboot() error
}

// Prompter asks the user whether to reboot after a successful install.
type Prompter interface {
	ConfirmReboot() bool
}

// System bundles the collaborators the Manager drives.
type System struct {
	Registry Registry
	Files    Files
	Signal   Signal
	Guard    Guard
	Power    Power
}

// Image is the shim payload and where it is installed.
type Image struct {
	Name    string
	Dir     string
	Payload []byte
}

// Path returns the installed location of the image.
func (i Image) Path() string {
	return filepath.Join(i.Dir, i.Name)
}
