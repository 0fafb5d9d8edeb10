//go:build windows

package winsys

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const ewxReboot = 0x00000002

var (
	modadvapi32               = windows.NewLazySystemDLL("advapi32.dll")
	procAdjustTokenPrivileges = modadvapi32.NewProc("AdjustTokenPrivileges")
)

// Shutdown reason: application installation, planned.
const shutdownReason = windows.SHTDN_REASON_MAJOR_APPLICATION | windows.SHTDN_REASON_MINOR_INSTALLATION | windows.SHTDN_REASON_FLAG_PLANNED

// EnableShutdownPrivilege enables SeShutdownPrivilege on the process token.
func (Power) EnableShutdownPrivilege() error {
	var token windows.Token
	err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_ADJUST_PRIVILEGES|windows.TOKEN_QUERY, &token)
	if err != nil {
		return fmt.Errorf("OpenProcessToken: %w", err)
	}
	defer token.Close()

	var luid windows.LUID
	if err := windows.LookupPrivilegeValue(nil, windows.StringToUTF16Ptr("SeShutdownPrivilege"), &luid); err != nil {
		return fmt.Errorf("LookupPrivilegeValue: %w", err)
	}

	tp := windows.Tokenprivileges{
		PrivilegeCount: 1,
		Privileges: [1]windows.LUIDAndAttributes{
			{Luid: luid, Attributes: windows.SE_PRIVILEGE_ENABLED},
		},
	}
	// The call succeeds even when the privilege was not assigned; only
	// the last error tells.
	ret, _, lastErr := procAdjustTokenPrivileges.Call(uintptr(token), 0, uintptr(unsafe.Pointer(&tp)), 0, 0, 0)
	return privilegeResult(ret, lastErr)
}

func privilegeResult(ret uintptr, lastErr error) error {
	if ret == 0 {
		return fmt.Errorf("AdjustTokenPrivileges: %w", lastErr)
	}
	if errors.Is(lastErr, windows.ERROR_NOT_ALL_ASSIGNED) {
		return fmt.Errorf("SeShutdownPrivilege is not held by this token: %w", lastErr)
	}
	return nil
}

// Reboot asks the session to restart.
func (Power) Reboot() error {
	if err := windows.ExitWindowsEx(ewxReboot, shutdownReason); err != nil {
		return fmt.Errorf("ExitWindowsEx: %w", err)
	}
	return nil
}
