//go:build windows

package winsys

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modkernel32 = windows.NewLazySystemDLL("kernel32.dll")
	modntdll    = windows.NewLazySystemDLL("ntdll.dll")

	procGlobalFindAtomW        = modkernel32.NewProc("GlobalFindAtomW")
	procNtQueryInformationAtom = modntdll.NewProc("NtQueryInformationAtom")
)

const atomBasicInformation = 0

// atomBasicInfo mirrors ATOM_BASIC_INFORMATION with room for a full name.
type atomBasicInfo struct {
	UsageCount uint16
	Flags      uint16
	NameLength uint16
	Name       [256]uint16
}

// Count returns the usage count of the global atom name, or 0 when the atom
// does not exist or cannot be queried.
func (AtomSignal) Count(name string) int {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0
	}
	atom, _, _ := procGlobalFindAtomW.Call(uintptr(unsafe.Pointer(p)))
	if atom == 0 {
		return 0
	}
	if err := procNtQueryInformationAtom.Find(); err != nil {
		// Present but unquerable; the atom still proves one activation.
		return 1
	}

	var info atomBasicInfo
	var retLen uint32
	status, _, _ := procNtQueryInformationAtom.Call(
		atom,
		atomBasicInformation,
		uintptr(unsafe.Pointer(&info)),
		unsafe.Sizeof(info),
		uintptr(unsafe.Pointer(&retLen)),
	)
	if windows.NTStatus(status) != windows.STATUS_SUCCESS {
		return 1
	}
	return int(info.UsageCount)
}
