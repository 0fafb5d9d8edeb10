package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/blackwell-systems/themetool/internal/patcher"
	"github.com/blackwell-systems/themetool/internal/patcher/patchertest"
	"github.com/blackwell-systems/themetool/internal/shim"
)

// installFixture runs a quiet install for winlogon and explorer.
func installFixture(t *testing.T, env *testEnv) {
	t.Helper()
	installYes = true
	installExplorer = true
	captureOutput(t, func() {
		if err := runInstall(installCmd, nil); err != nil {
			t.Fatalf("install fixture failed: %v", err)
		}
	})
	resetCommandFlags()
	if !env.hooked(patcher.Winlogon) || !env.hooked(patcher.Explorer) {
		t.Fatal("install fixture did not hook winlogon and explorer")
	}
}

func TestUninstall_RoundTrip(t *testing.T) {
	env := setupTest(t)
	installFixture(t, env)
	uninstallYes = true

	var err error
	out := captureOutput(t, func() { err = runUninstall(uninstallCmd, nil) })
	if err != nil {
		t.Fatalf("runUninstall() error: %v\n%s", err, out)
	}

	for _, target := range patcher.RemovalOrder {
		e := env.fake.Registry.Entry(target)
		if e.HasVerifier || e.GlobalFlag&patcher.FlagApplicationVerifier != 0 {
			t.Errorf("%s still hooked after uninstall: %+v", target, e)
		}
	}
	if _, ok := env.fake.Files.Get(env.imagePath()); ok {
		t.Error("shim file should be removed")
	}
	if !strings.Contains(out, "Removed from 5 target(s)") || !strings.Contains(out, "Installed:       No") {
		t.Errorf("unexpected output:\n%s", out)
	}

	ops, err := env.history(t).List(0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(ops) != 2 || ops[0].Kind != "uninstall" || ops[1].Kind != "install" {
		t.Errorf("history = %+v, want uninstall then install", ops)
	}
}

func TestUninstall_WithoutPayload(t *testing.T) {
	env := setupTest(t)
	env.fake.Registry.Seed(patcher.Winlogon, patcher.FlagApplicationVerifier, shim.ImageName)
	payloadPath = ""
	cfg.PayloadPath = ""
	uninstallYes = true

	captureOutput(t, func() {
		if err := runUninstall(uninstallCmd, nil); err != nil {
			t.Errorf("runUninstall() error: %v", err)
		}
	})

	if env.hooked(patcher.Winlogon) {
		t.Error("uninstall must work without the payload")
	}
}

func TestUninstall_StillLoaded(t *testing.T) {
	env := setupTest(t)
	installFixture(t, env)
	env.fake.Signal.Set(patcher.ActivitySignalName, 1)
	uninstallYes = true

	out := captureOutput(t, func() {
		if err := runUninstall(uninstallCmd, nil); err != nil {
			t.Errorf("runUninstall() error: %v", err)
		}
	})
	if !strings.Contains(out, "stays loaded until the next reboot") {
		t.Errorf("output should note the shim is still loaded:\n%s", out)
	}
}

func TestUninstall_Cancelled(t *testing.T) {
	env := setupTest(t)
	installFixture(t, env)
	setStdin("no\n")

	out := captureOutput(t, func() {
		if err := runUninstall(uninstallCmd, nil); err != nil {
			t.Errorf("runUninstall() error: %v", err)
		}
	})

	if !strings.Contains(out, "Uninstall cancelled.") {
		t.Errorf("output = %q", out)
	}
	if !env.hooked(patcher.Winlogon) {
		t.Error("cancelled uninstall should leave the install in place")
	}
}

func TestUninstall_Failure(t *testing.T) {
	env := setupTest(t)
	installFixture(t, env)
	uninstallYes = true
	env.fake.Registry.Fail(patchertest.DeleteFlag, patcher.Winlogon, patchertest.Fault{Err: patchertest.ErrAccessDenied})

	var err error
	out := captureOutput(t, func() { err = runUninstall(uninstallCmd, nil) })
	if err == nil {
		t.Fatal("runUninstall() should fail when winlogon.exe cannot be cleared")
	}
	if !strings.Contains(out, "uninstall failed") {
		t.Errorf("output should report the failure:\n%s", out)
	}
	// Later targets are left untouched.
	if !env.hooked(patcher.Explorer) {
		t.Error("explorer.exe should stay hooked after the uninstall stopped")
	}

	rec, herr := env.history(t).Latest()
	if herr != nil || rec == nil || !rec.Failed() {
		t.Errorf("latest history record = %+v, %v; want a failed uninstall", rec, herr)
	}
}

func TestUninstall_SnapshotFailureIsLogged(t *testing.T) {
	env := setupTest(t)
	installFixture(t, env)
	uninstallYes = true

	var buf bytes.Buffer
	origLogger := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = origLogger })

	env.fake.Guard.Err = patchertest.ErrInjected
	captureOutput(t, func() {
		if err := runUninstall(uninstallCmd, nil); err == nil {
			t.Error("runUninstall() should fail without the redirection guard")
		}
	})

	if !strings.Contains(buf.String(), "cannot snapshot IFEO entries after the operation") {
		t.Errorf("log missing after-snapshot warning:\n%s", buf.String())
	}

	rec, err := env.history(t).Latest()
	if err != nil {
		t.Fatalf("Latest() error: %v", err)
	}
	if rec == nil || rec.Operation.Kind != "uninstall" || !rec.Failed() {
		t.Fatalf("latest record = %+v, want a failed uninstall", rec)
	}
	if len(rec.After) != 0 {
		t.Errorf("After = %d snapshots, want none", len(rec.After))
	}
}
