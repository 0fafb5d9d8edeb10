package patcher_test

import (
	"testing"

	"github.com/blackwell-systems/themetool/internal/patcher"
	"github.com/blackwell-systems/themetool/internal/patcher/patchertest"
)

const (
	testImageName = "SecureUxTheme.dll"
	testDir       = `C:\Windows\System32`
)

var testPayload = []byte("MZ\x90\x00\x03\x00\x00\x00shim payload v2")

func testImage() patcher.Image {
	return patcher.Image{Name: testImageName, Dir: testDir, Payload: testPayload}
}

// newTestManager wires a Manager to the fake machine.
func newTestManager(t *testing.T, fake *patchertest.System, opts ...patcher.Option) *patcher.Manager {
	t.Helper()
	m, err := patcher.New(fake.System(), testImage(), opts...)
	if err != nil {
		t.Fatalf("patcher.New() error = %v", err)
	}
	return m
}

// seedInstalled puts the machine in the state a successful install leaves.
func seedInstalled(fake *patchertest.System) {
	fake.Files.Put(testImage().Path(), testPayload)
	fake.Registry.Seed(patcher.Winlogon, patcher.FlagApplicationVerifier, testImageName)
}

func assertHooked(t *testing.T, fake *patchertest.System, target patcher.Target, want bool) {
	t.Helper()
	e := fake.Registry.Entry(target)
	if got := e.Owned(testImageName); got != want {
		t.Errorf("%s hooked = %v, want %v (entry %+v)", target, got, want, e)
	}
}
