package app

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blackwell-systems/themetool/internal/config"
	"github.com/blackwell-systems/themetool/internal/journal"
	"github.com/blackwell-systems/themetool/internal/patcher"
	"github.com/blackwell-systems/themetool/internal/patcher/patchertest"
	"github.com/blackwell-systems/themetool/internal/shim"
	"github.com/blackwell-systems/themetool/internal/winsys"
)

const testSystemDir = `C:\Windows\System32`

var testPayload = []byte("MZ\x90\x00test shim payload")

// testEnv is a fake machine wired into the package seams.
type testEnv struct {
	fake     *patchertest.System
	dir      string
	exitCode int
}

// setupTest points every seam at a fresh fake machine and a temp config
// directory holding the payload. Globals are restored on cleanup.
func setupTest(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{fake: patchertest.New(), dir: t.TempDir(), exitCode: -1}
	payload := filepath.Join(env.dir, shim.ImageName)
	if err := os.WriteFile(payload, testPayload, 0644); err != nil {
		t.Fatalf("WriteFile payload: %v", err)
	}

	origSystem, origDir, origElevated, origVersion := newSystem, systemDir, isElevated, ntVersion
	origExit, origStdin, origTerminal := exit, stdin, stdinIsTerminal
	origRunning, origUser := runningTargets, processUser
	origCfg, origConfigDir, origDB, origPayload, origNoHistory := cfg, configDir, dbPath, payloadPath, noHistory
	t.Cleanup(func() {
		newSystem, systemDir, isElevated, ntVersion = origSystem, origDir, origElevated, origVersion
		exit, stdin, stdinIsTerminal = origExit, origStdin, origTerminal
		runningTargets, processUser = origRunning, origUser
		cfg, configDir, dbPath, payloadPath, noHistory = origCfg, origConfigDir, origDB, origPayload, origNoHistory
		resetCommandFlags()
	})

	newSystem = func() patcher.System { return env.fake.System() }
	systemDir = func() (string, error) { return testSystemDir, nil }
	isElevated = func() bool { return true }
	ntVersion = func() (winsys.Version, error) {
		return winsys.Version{Major: 10, Minor: 0, Build: 19045, Caption: "Microsoft Windows 10 Pro"}, nil
	}
	exit = func(code int) { env.exitCode = code }
	stdinIsTerminal = func() bool { return true }
	runningTargets = func([]patcher.Target) ([]winsys.RunningProcess, error) { return nil, nil }
	processUser = func() (string, error) { return `DESKTOP\tester`, nil }
	setStdin("")

	cfg = config.Default()
	configDir = env.dir
	dbPath = ""
	payloadPath = payload
	noHistory = false
	resetCommandFlags()

	return env
}

func setStdin(input string) {
	stdin = bufio.NewReader(strings.NewReader(input))
}

func resetCommandFlags() {
	installTargets.set = patcher.NewTargetSet()
	if f := installCmd.Flags().Lookup("targets"); f != nil {
		f.Changed = false
	}
	installExplorer, installLogonUI, installSystemSettings = false, false, false
	installReboot, installNoReboot, installYes = false, false, false
	uninstallYes = false
	statusWatch, statusEntries = false, false
	historyLimit = 20
}

func (env *testEnv) imagePath() string {
	return filepath.Join(testSystemDir, shim.ImageName)
}

func (env *testEnv) hooked(target patcher.Target) bool {
	return env.fake.Registry.Entry(target).Owned(shim.ImageName)
}

// history opens the journal the commands wrote to.
func (env *testEnv) history(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(filepath.Join(env.dir, "history.db"))
	if err != nil {
		t.Fatalf("journal.Open() error: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// captureOutput captures stdout during fn execution.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	done := make(chan string)
	go func() {
		data, _ := io.ReadAll(r)
		done <- string(data)
	}()

	fn()
	w.Close()
	return <-done
}
