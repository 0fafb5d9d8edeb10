package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"

	"github.com/blackwell-systems/themetool/internal/config"
	"github.com/blackwell-systems/themetool/internal/patcher"
	"github.com/blackwell-systems/themetool/internal/shim"
)

func TestRootCommand(t *testing.T) {
	if RootCmd.Use != "themetool" {
		t.Errorf("expected Use to be 'themetool', got '%s'", RootCmd.Use)
	}
	if RootCmd.Short == "" || RootCmd.Long == "" {
		t.Error("expected Short and Long descriptions to be set")
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, cmd := range RootCmd.Commands() {
		found[cmd.Name()] = true
	}
	for _, expected := range []string{"status", "install", "uninstall", "history", "doctor"} {
		if !found[expected] {
			t.Errorf("expected command '%s' to be registered", expected)
		}
	}
}

func TestRootCommandHasPersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "db", "log-level", "log-file", "no-history", "payload"} {
		flag := RootCmd.PersistentFlags().Lookup(name)
		if flag == nil {
			t.Errorf("expected --%s flag to be registered", name)
			continue
		}
		if flag.Usage == "" {
			t.Errorf("expected --%s flag to have usage text", name)
		}
	}
}

func TestRootRun_Orientation(t *testing.T) {
	env := setupTest(t)

	out := captureOutput(t, func() { RootCmd.RunE(RootCmd, nil) })
	if !strings.Contains(out, "Run 'themetool install'") {
		t.Errorf("fresh system output:\n%s", out)
	}

	env.fake.Registry.Seed(patcher.Winlogon, patcher.FlagApplicationVerifier, shim.ImageName)
	env.fake.Files.Put(env.imagePath(), testPayload)
	out = captureOutput(t, func() { RootCmd.RunE(RootCmd, nil) })
	if !strings.Contains(out, "themetool status") {
		t.Errorf("installed system output:\n%s", out)
	}
}

func TestSetup_LoadsConfig(t *testing.T) {
	env := setupTest(t)
	content := "reboot: never\nhistory: false\nlog_level: warn\n"
	if err := os.WriteFile(filepath.Join(env.dir, config.FileName), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	logFile = filepath.Join(env.dir, "themetool.log")
	origLogger := log.Logger
	defer func() {
		logFile = ""
		log.Logger = origLogger
	}()

	if err := setup(statusCmd, nil); err != nil {
		t.Fatalf("setup() error: %v", err)
	}
	defer logCloser.Close()

	if cfg.Reboot != "never" || cfg.History {
		t.Errorf("cfg = %+v, want reboot never and history off", cfg)
	}
	if historyEnabled() {
		t.Error("historyEnabled() should follow the config")
	}
	if _, err := os.Stat(logFile); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestSetup_InvalidConfig(t *testing.T) {
	env := setupTest(t)
	if err := os.WriteFile(filepath.Join(env.dir, config.FileName), []byte("reboot: sometimes\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := setup(statusCmd, nil); err == nil {
		t.Error("setup() should reject an invalid config file")
	}
}

func TestGetDBPath(t *testing.T) {
	env := setupTest(t)

	got, err := getDBPath()
	if err != nil {
		t.Fatalf("getDBPath() error: %v", err)
	}
	if got != filepath.Join(env.dir, "history.db") {
		t.Errorf("getDBPath() = %q, want history.db in the config dir", got)
	}

	dbPath = "custom.db"
	if got, _ := getDBPath(); got != "custom.db" {
		t.Errorf("getDBPath() with --db = %q", got)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"y", true},
	}
	for _, tt := range tests {
		setupTest(t)
		setStdin(tt.input)
		var got bool
		captureOutput(t, func() { got = confirm("Proceed?") })
		if got != tt.want {
			t.Errorf("confirm() with input %q = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewPrompter(t *testing.T) {
	setupTest(t)
	if _, ok := newPrompter().(consolePrompter); !ok {
		t.Error("terminal stdin should use the console prompter")
	}
	stdinIsTerminal = func() bool { return false }
	if _, ok := newPrompter().(consolePrompter); ok {
		t.Error("redirected stdin should use the message box prompter")
	}
}
