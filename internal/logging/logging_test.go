package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/blackwell-systems/themetool/internal/patcher"
	"github.com/blackwell-systems/themetool/internal/patcher/patchertest"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level   string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"WARN", zerolog.WarnLevel, false},
		{"loud", zerolog.NoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger, closer, err := New(Options{Level: tt.level, Console: &buf})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer closer.Close()
			if logger.GetLevel() != tt.want {
				t.Errorf("level = %v, want %v", logger.GetLevel(), tt.want)
			}
		})
	}
}

func TestNew_InstallsGlobal(t *testing.T) {
	orig := log.Logger
	defer func() { log.Logger = orig }()

	var buf bytes.Buffer
	_, closer, err := New(Options{Console: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer closer.Close()

	log.Info().Msg("hello from global")
	if !strings.Contains(buf.String(), "hello from global") {
		t.Errorf("console output = %q, want the message", buf.String())
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Error("console output should not be colored for a non-terminal writer")
	}
}

func TestNew_FileSink(t *testing.T) {
	orig := log.Logger
	defer func() { log.Logger = orig }()

	path := filepath.Join(t.TempDir(), "logs", "themetool.log")
	var buf bytes.Buffer
	logger, closer, err := New(Options{File: path, Console: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	logger.Info().Str("op", "install").Msg("recorded")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("log file is not JSON: %v (%q)", err, data)
	}
	if rec["op"] != "install" || rec["message"] != "recorded" {
		t.Errorf("record = %v, want op=install message=recorded", rec)
	}
}

func TestEventHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	handle := EventHandler(logger)

	handle(patcher.Event{Op: "install", Step: patcher.StepWriteImage})
	handle(patcher.Event{Op: "install", Step: patcher.StepRegisterRequired, Target: patcher.Winlogon, Err: patchertest.ErrAccessDenied})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2: %q", len(lines), buf.String())
	}

	var ok, failed map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &ok); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &failed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if ok["level"] != "debug" || ok["step"] != "write-image" {
		t.Errorf("success record = %v", ok)
	}
	if _, has := ok["target"]; has {
		t.Errorf("success record should have no target: %v", ok)
	}
	if failed["level"] != "warn" || failed["target"] != "winlogon.exe" || failed["code"] != float64(5) {
		t.Errorf("failure record = %v, want warn winlogon.exe code 5", failed)
	}
}
