package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/blackwell-systems/themetool/internal/patcher"
	"github.com/blackwell-systems/themetool/internal/patcher/patchertest"
	"github.com/blackwell-systems/themetool/internal/store"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := s.CreateSchema(); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	j := New(s)
	t.Cleanup(func() { j.Close() })
	return j
}

func newTestManager(t *testing.T, fake *patchertest.System, opts ...patcher.Option) *patcher.Manager {
	t.Helper()
	img := patcher.Image{Name: "SecureUxTheme.dll", Dir: `C:\Windows\System32`, Payload: []byte("MZ payload")}
	m, err := patcher.New(fake.System(), img, opts...)
	if err != nil {
		t.Fatalf("patcher.New() error: %v", err)
	}
	return m
}

func TestRecordInstall(t *testing.T) {
	j := newTestJournal(t)
	fake := patchertest.New()
	fake.Registry.Seed(patcher.Winlogon, 0x2, "")

	probe := newTestManager(t, fake)
	before, err := probe.Inspect()
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}

	targets := []patcher.Target{patcher.Explorer}
	rec, err := j.Begin("install", targets, "digest", 0, before)
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}

	m := newTestManager(t, fake, patcher.WithEventHandler(rec.Record))
	r, opErr := m.Install(patcher.InstallOptions{Targets: patcher.NewTargetSet(targets...), Reboot: patcher.RebootNever})
	if opErr != nil {
		t.Fatalf("Install() error: %v", opErr)
	}
	after, _ := m.Inspect()
	if err := rec.Finish(opErr, m.ActivityCount(), after); err != nil {
		t.Fatalf("Finish() error: %v", err)
	}

	got, err := j.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Operation.Outcome != store.OutcomeSuccess {
		t.Errorf("Outcome = %s, want success", got.Operation.Outcome)
	}
	if got.Operation.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}
	if len(got.Operation.Targets) != 1 || got.Operation.Targets[0] != "explorer.exe" {
		t.Errorf("Targets = %v, want [explorer.exe]", got.Operation.Targets)
	}
	if len(got.Events) != len(r.Events) {
		t.Errorf("recorded %d events, report has %d", len(got.Events), len(r.Events))
	}
	if len(got.Before) != len(patcher.RemovalOrder) || len(got.After) != len(patcher.RemovalOrder) {
		t.Fatalf("snapshots = %d before, %d after; want %d each", len(got.Before), len(got.After), len(patcher.RemovalOrder))
	}
	if got.Before[0].GlobalFlag != 0x2 || got.After[0].GlobalFlag != 0x102 {
		t.Errorf("winlogon flag before/after = %#x/%#x, want 0x2/0x102", got.Before[0].GlobalFlag, got.After[0].GlobalFlag)
	}
	if got.Failed() {
		t.Error("Failed() = true for a successful install")
	}
}

func TestRecordFailure(t *testing.T) {
	j := newTestJournal(t)
	fake := patchertest.New()
	fake.Registry.Fail(patchertest.SetFlag, patcher.Winlogon, patchertest.Fault{Err: patchertest.ErrAccessDenied})

	rec, err := j.Begin("install", nil, "", 0, nil)
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	m := newTestManager(t, fake, patcher.WithEventHandler(rec.Record))
	_, opErr := m.Install(patcher.InstallOptions{})
	if opErr == nil {
		t.Fatal("Install() should fail")
	}
	if err := rec.Finish(opErr, 0, nil); err != nil {
		t.Fatalf("Finish() error: %v", err)
	}

	got, err := j.Latest()
	if err != nil {
		t.Fatalf("Latest() error: %v", err)
	}
	if !got.Failed() {
		t.Errorf("Outcome = %s, want failed", got.Operation.Outcome)
	}
	if got.Operation.Error == "" {
		t.Error("Error should carry the failure message")
	}

	var failed *store.OperationEvent
	for _, ev := range got.Events {
		if ev.Step == string(patcher.StepRegisterRequired) {
			failed = ev
		}
	}
	if failed == nil || failed.ErrorCode != 5 {
		t.Errorf("register-required event = %+v, want error code 5", failed)
	}
}

func TestLatest_Empty(t *testing.T) {
	j := newTestJournal(t)

	got, err := j.Latest()
	if err != nil {
		t.Fatalf("Latest() error: %v", err)
	}
	if got != nil {
		t.Errorf("Latest() = %+v, want nil", got)
	}
}

func TestListAndPrune(t *testing.T) {
	j := newTestJournal(t)
	now := time.Now().UTC().Truncate(time.Second)

	j.now = func() time.Time { return now.AddDate(0, 0, -100) }
	old, err := j.Begin("install", nil, "", 0, nil)
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	if err := old.Finish(nil, 0, nil); err != nil {
		t.Fatalf("Finish() error: %v", err)
	}

	j.now = func() time.Time { return now }
	if _, err := j.Begin("uninstall", nil, "", 0, nil); err != nil {
		t.Fatalf("Begin() error: %v", err)
	}

	ops, err := j.List(0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("List() returned %d, want 2", len(ops))
	}

	n, err := j.Prune(Retention)
	if err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() removed %d, want 1", n)
	}

	ops, _ = j.List(0)
	if len(ops) != 1 || ops[0].Kind != "uninstall" {
		t.Errorf("after Prune() List() = %+v, want only the uninstall", ops)
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if _, err := j.Begin("uninstall", nil, "", 0, nil); err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	j.Close()

	// Reopening keeps history.
	j, err = Open(path)
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	defer j.Close()
	ops, err := j.List(0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(ops) != 1 {
		t.Errorf("List() after reopen returned %d, want 1", len(ops))
	}
}
