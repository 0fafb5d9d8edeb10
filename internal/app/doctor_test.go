package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blackwell-systems/themetool/internal/patcher"
	"github.com/blackwell-systems/themetool/internal/patcher/patchertest"
	"github.com/blackwell-systems/themetool/internal/shim"
	"github.com/blackwell-systems/themetool/internal/winsys"
)

// TestRunDoctor_AllPassing verifies a loaded install with no issues returns
// nil without calling exit.
func TestRunDoctor_AllPassing(t *testing.T) {
	env := setupTest(t)
	installFixture(t, env)
	env.fake.Signal.Set(patcher.ActivitySignalName, 2)
	runningTargets = func(targets []patcher.Target) ([]winsys.RunningProcess, error) {
		return []winsys.RunningProcess{{Target: patcher.Explorer, PID: 4242}}, nil
	}

	var err error
	out := captureOutput(t, func() { err = runDoctor(doctorCmd, nil) })
	if err != nil {
		t.Fatalf("runDoctor() error: %v\n%s", err, out)
	}
	if env.exitCode != -1 {
		t.Errorf("exit(%d) called, want no exit", env.exitCode)
	}

	for _, want := range []string{
		`✓ Running elevated as DESKTOP\tester`,
		"✓ Windows version: Microsoft Windows 10 Pro (10.0.19045)",
		"✓ Payload found:",
		"✓ Shim installed:",
		"✓ Shim loaded (2 activation(s) since boot)",
		"✓ explorer.exe running (PID 4242)",
		"✓ History: 1 operation(s) recorded",
		"✓ All checks passed!",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

// TestRunDoctor_NotInstalledPasses verifies a clean system with no shim file
// and no IFEO entries passes without reboot or read warnings.
func TestRunDoctor_NotInstalledPasses(t *testing.T) {
	env := setupTest(t)

	var err error
	out := captureOutput(t, func() { err = runDoctor(doctorCmd, nil) })
	if err != nil {
		t.Fatalf("runDoctor() error: %v\n%s", err, out)
	}
	if env.exitCode != -1 {
		t.Errorf("exit(%d) called, want no exit:\n%s", env.exitCode, out)
	}
	if !strings.Contains(out, "✓ Shim not installed") {
		t.Errorf("output missing not-installed check:\n%s", out)
	}
	for _, unwanted := range []string{"Cannot read the installed shim", "installed but not loaded"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("output should not contain %q:\n%s", unwanted, out)
		}
	}
}

// TestRunDoctor_UnreadableShimStillChecksState verifies a read error is a
// warning and the not-installed branch still runs.
func TestRunDoctor_UnreadableShimStillChecksState(t *testing.T) {
	env := setupTest(t)
	env.fake.Files.Fail(patchertest.ReadOp, env.imagePath(), patchertest.ErrAccessDenied)

	out := captureOutput(t, func() { runDoctor(doctorCmd, nil) })
	if !strings.Contains(out, "⚠ Cannot read the installed shim") {
		t.Errorf("output should warn about the read error:\n%s", out)
	}
	if !strings.Contains(out, "✓ Shim not installed") || strings.Contains(out, "installed but not loaded") {
		t.Errorf("unreadable file on a clean system should report not installed:\n%s", out)
	}
	if env.exitCode != 2 {
		t.Errorf("exit code = %d, want 2", env.exitCode)
	}
}

// TestRunDoctor_WarningOnlyExitsCode2 verifies that warnings without
// critical issues exit with code 2 instead of returning an error.
func TestRunDoctor_WarningOnlyExitsCode2(t *testing.T) {
	env := setupTest(t)
	installFixture(t, env)
	isElevated = func() bool { return false }

	var err error
	out := captureOutput(t, func() { err = runDoctor(doctorCmd, nil) })
	if err != nil {
		t.Errorf("runDoctor() error = %v, want nil for warnings only", err)
	}
	if env.exitCode != 2 {
		t.Errorf("exit code = %d, want 2", env.exitCode)
	}
	if !strings.Contains(out, "⚠ Not elevated") || !strings.Contains(out, "⚠ Shim installed but not loaded") {
		t.Errorf("output should contain both warnings:\n%s", out)
	}
	if !strings.Contains(out, "Found 2 warning(s)") {
		t.Errorf("output should count 2 warnings:\n%s", out)
	}
}

// TestRunDoctor_CriticalIssueReturnsError verifies a missing payload is
// critical so main prints "Error: diagnostics failed" and exits 1.
func TestRunDoctor_CriticalIssueReturnsError(t *testing.T) {
	env := setupTest(t)
	payloadPath = filepath.Join(env.dir, "absent.dll")

	var err error
	out := captureOutput(t, func() { err = runDoctor(doctorCmd, nil) })
	if err == nil || err.Error() != "diagnostics failed" {
		t.Errorf("runDoctor() error = %v, want diagnostics failed", err)
	}
	if !strings.Contains(out, "✗ Shim payload unavailable") {
		t.Errorf("output should report the missing payload:\n%s", out)
	}
	if !strings.Contains(out, "✓ Shim not installed") {
		t.Errorf("remaining checks should still run:\n%s", out)
	}
}

func TestRunDoctor_OldWindows(t *testing.T) {
	setupTest(t)
	ntVersion = func() (winsys.Version, error) { return winsys.Version{Major: 10, Build: 10586}, nil }

	out := captureOutput(t, func() { runDoctor(doctorCmd, nil) })
	if !strings.Contains(out, "SystemSettings.exe cannot be hooked") {
		t.Errorf("output should warn about SystemSettings:\n%s", out)
	}
}

func TestRunDoctor_VersionUnavailable(t *testing.T) {
	setupTest(t)
	ntVersion = func() (winsys.Version, error) { return winsys.Version{}, errors.New("wmi: access denied") }

	out := captureOutput(t, func() { runDoctor(doctorCmd, nil) })
	if !strings.Contains(out, "⚠ Cannot determine Windows version: wmi: access denied") {
		t.Errorf("output:\n%s", out)
	}
}

func TestRunDoctor_Outdated(t *testing.T) {
	env := setupTest(t)
	env.fake.Files.Put(env.imagePath(), []byte("MZ old"))
	env.fake.Registry.Seed(patcher.Winlogon, patcher.FlagApplicationVerifier, shim.ImageName)

	out := captureOutput(t, func() { runDoctor(doctorCmd, nil) })
	if !strings.Contains(out, "⚠ Installed shim differs from the payload") {
		t.Errorf("output:\n%s", out)
	}
}

func TestRunDoctor_CorruptHistory(t *testing.T) {
	env := setupTest(t)
	if err := os.WriteFile(filepath.Join(env.dir, "history.db"), []byte("not a database"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out := captureOutput(t, func() { runDoctor(doctorCmd, nil) })
	if !strings.Contains(out, "⚠ Cannot open history") {
		t.Errorf("output:\n%s", out)
	}
}
