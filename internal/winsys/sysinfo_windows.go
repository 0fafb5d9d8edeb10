//go:build windows

package winsys

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yusufpapurcu/wmi"
	"golang.org/x/sys/windows"
)

type win32OperatingSystem struct {
	Caption     string
	Version     string
	BuildNumber string
}

// NtVersion reports the running Windows version. WMI is queried first for
// the product caption; RtlGetNtVersionNumbers is the fallback and cannot be
// shimmed by compatibility modes.
func NtVersion() (Version, error) {
	var systems []win32OperatingSystem
	err := wmi.Query("SELECT Caption, Version, BuildNumber FROM Win32_OperatingSystem", &systems)
	if err == nil && len(systems) > 0 {
		if v, perr := parseVersion(systems[0].Version); perr == nil {
			v.Caption = strings.TrimSpace(systems[0].Caption)
			return v, nil
		}
	}

	major, minor, build := windows.RtlGetNtVersionNumbers()
	return Version{Major: major, Minor: minor, Build: build & 0xffff}, nil
}

func parseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) < 3 {
		return Version{}, fmt.Errorf("unexpected version %q", s)
	}
	var nums [3]uint32
	for i := range nums {
		n, err := strconv.ParseUint(parts[i], 10, 32)
		if err != nil {
			return Version{}, fmt.Errorf("unexpected version %q: %w", s, err)
		}
		nums[i] = uint32(n)
	}
	return Version{Major: nums[0], Minor: nums[1], Build: nums[2]}, nil
}

// IsElevated reports whether the process token is elevated.
func IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

// ProcessUser returns DOMAIN\user for the process token.
func ProcessUser() (string, error) {
	tu, err := windows.GetCurrentProcessToken().GetTokenUser()
	if err != nil {
		return "", err
	}
	account, domain, _, err := tu.User.Sid.LookupAccount("")
	if err != nil {
		return "", err
	}
	return domain + `\` + account, nil
}
