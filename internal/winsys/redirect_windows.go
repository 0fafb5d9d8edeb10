//go:build windows

package winsys

import (
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	procWow64DisableWow64FsRedirection = modkernel32.NewProc("Wow64DisableWow64FsRedirection")
	procWow64RevertWow64FsRedirection  = modkernel32.NewProc("Wow64RevertWow64FsRedirection")
)

// Enter locks the goroutine to its OS thread and, when the process runs
// under WOW64, disables file system redirection on that thread. The release
// function restores redirection and unlocks the thread; it is safe to call
// more than once.
func (RedirectionGuard) Enter() (func(), error) {
	runtime.LockOSThread()

	var wow64 bool
	if err := windows.IsWow64Process(windows.CurrentProcess(), &wow64); err != nil || !wow64 {
		// Native processes are never redirected.
		return sync.OnceFunc(runtime.UnlockOSThread), nil
	}

	var old uintptr
	r, _, err := procWow64DisableWow64FsRedirection.Call(uintptr(unsafe.Pointer(&old)))
	if r == 0 {
		runtime.UnlockOSThread()
		return nil, err
	}
	return sync.OnceFunc(func() {
		procWow64RevertWow64FsRedirection.Call(old)
		runtime.UnlockOSThread()
	}), nil
}
