//go:build windows

package winsys

import (
	"fmt"

	"golang.org/x/sys/windows/registry"

	"github.com/blackwell-systems/themetool/internal/patcher"
)

const (
	valueGlobalFlag   = "GlobalFlag"
	valueVerifierDlls = "VerifierDlls"
)

func ifeoKey(t patcher.Target) string {
	return IFEOPath + `\` + string(t)
}

func openIFEO(t patcher.Target, access uint32) (registry.Key, error) {
	return registry.OpenKey(registry.LOCAL_MACHINE, ifeoKey(t), access|registry.WOW64_64KEY)
}

func (IFEORegistry) GlobalFlag(t patcher.Target) (uint32, error) {
	k, err := openIFEO(t, registry.QUERY_VALUE)
	if err != nil {
		return 0, err
	}
	defer k.Close()

	v, typ, err := k.GetIntegerValue(valueGlobalFlag)
	if err != nil {
		return 0, err
	}
	if typ != registry.DWORD {
		return 0, fmt.Errorf("%s: %w", valueGlobalFlag, registry.ErrUnexpectedType)
	}
	return uint32(v), nil
}

func (IFEORegistry) SetGlobalFlag(t patcher.Target, v uint32) error {
	k, _, err := registry.CreateKey(registry.LOCAL_MACHINE, ifeoKey(t), registry.SET_VALUE|registry.WOW64_64KEY)
	if err != nil {
		return err
	}
	defer k.Close()
	return k.SetDWordValue(valueGlobalFlag, v)
}

func (IFEORegistry) DeleteGlobalFlag(t patcher.Target) error {
	k, err := openIFEO(t, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()
	return k.DeleteValue(valueGlobalFlag)
}

func (IFEORegistry) VerifierDlls(t patcher.Target) (string, error) {
	k, err := openIFEO(t, registry.QUERY_VALUE)
	if err != nil {
		return "", err
	}
	defer k.Close()

	s, _, err := k.GetStringValue(valueVerifierDlls)
	return s, err
}

func (IFEORegistry) SetVerifierDlls(t patcher.Target, v string) error {
	k, _, err := registry.CreateKey(registry.LOCAL_MACHINE, ifeoKey(t), registry.SET_VALUE|registry.WOW64_64KEY)
	if err != nil {
		return err
	}
	defer k.Close()
	return k.SetStringValue(valueVerifierDlls, v)
}

func (IFEORegistry) DeleteVerifierDlls(t patcher.Target) error {
	k, err := openIFEO(t, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()
	return k.DeleteValue(valueVerifierDlls)
}

const knownDllsKey = `SYSTEM\CurrentControlSet\Control\Session Manager\KnownDLLs`

// SystemDir returns the directory the loader resolves known DLLs from. The
// KnownDLLs DllDirectory value is preferred; the system directory is the
// fallback.
func SystemDir() (string, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, knownDllsKey, registry.QUERY_VALUE|registry.WOW64_64KEY)
	if err == nil {
		defer k.Close()
		if dir, _, err := k.GetStringValue("DllDirectory"); err == nil && dir != "" {
			if expanded, err := registry.ExpandString(dir); err == nil {
				return expanded, nil
			}
		}
	}
	return systemDirectory()
}
