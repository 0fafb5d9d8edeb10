//go:build windows

package winsys

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"golang.org/x/sys/windows"
)

func (FileStore) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (FileStore) WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

// ForceRemove deletes path. A file that is mapped by a running process
// cannot be deleted, but it can be renamed: it is moved aside so the name is
// free for a fresh copy, and the renamed file is scheduled for deletion at
// the next boot.
func (FileStore) ForceRemove(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return err
	}

	aside := fmt.Sprintf("%s.%x.old", path, time.Now().UnixNano())
	src, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	dst, err := windows.UTF16PtrFromString(aside)
	if err != nil {
		return err
	}

	if err := windows.MoveFileEx(src, dst, windows.MOVEFILE_REPLACE_EXISTING); err != nil {
		// Same volume rename failed; leave the file in place for the next boot.
		if derr := windows.MoveFileEx(src, nil, windows.MOVEFILE_DELAY_UNTIL_REBOOT); derr != nil {
			return fmt.Errorf("rename %s: %w", path, err)
		}
		return fmt.Errorf("%s is in use and will be deleted on reboot: %w", path, err)
	}

	// The name is free now. If scheduling fails the renamed copy lingers but
	// is never loaded.
	_ = windows.MoveFileEx(dst, nil, windows.MOVEFILE_DELAY_UNTIL_REBOOT)
	return nil
}

func systemDirectory() (string, error) {
	return windows.GetSystemDirectory()
}
