//go:build !windows

package winsys

import "github.com/blackwell-systems/themetool/internal/patcher"

func (IFEORegistry) GlobalFlag(patcher.Target) (uint32, error) { return 0, ErrUnsupported }
func (IFEORegistry) SetGlobalFlag(patcher.Target, uint32) error { return ErrUnsupported }
func (IFEORegistry) DeleteGlobalFlag(patcher.Target) error { return ErrUnsupported }
func (IFEORegistry) VerifierDlls(patcher.Target) (string, error) { return "", ErrUnsupported }
func (IFEORegistry) SetVerifierDlls(patcher.Target, string) error { return ErrUnsupported }
func (IFEORegistry) DeleteVerifierDlls(patcher.Target) error { return ErrUnsupported }
func (FileStore) ReadFile(string) ([]byte, error) { return nil, ErrUnsupported }
func (FileStore) WriteFile(string, []byte) error { return ErrUnsupported }
func (FileStore) ForceRemove(string) error { return ErrUnsupported }
func (AtomSignal) Count(string) int { return 0 }
func (RedirectionGuard) Enter() (func(), error) { return nil, ErrUnsupported }
func (Power) EnableShutdownPrivilege() error { return ErrUnsupported }
func (Power) Reboot() error { return ErrUnsupported }

// SystemDir is unavailable off Windows.
func SystemDir() (string, error) { return "", ErrUnsupported }

// NtVersion is unavailable off Windows.
func NtVersion() (Version, error) { return Version{}, ErrUnsupported }

// IsElevated always reports false off Windows.
func IsElevated() bool { return false }

// ProcessUser is unavailable off Windows.
func ProcessUser() (string, error) { return "", ErrUnsupported }

// MessageBoxPrompter declines every prompt off Windows.
type MessageBoxPrompter struct {
	Caption string
	Text    string
}

func (MessageBoxPrompter) ConfirmReboot() bool { return false }
