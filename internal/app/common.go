package app

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"

	"github.com/blackwell-systems/themetool/internal/journal"
	"github.com/blackwell-systems/themetool/internal/logging"
	"github.com/blackwell-systems/themetool/internal/patcher"
	"github.com/blackwell-systems/themetool/internal/shim"
	"github.com/blackwell-systems/themetool/internal/winsys"
)

// Seams replaced in tests.
var (
	newSystem  = winsys.NewSystem
	systemDir  = winsys.SystemDir
	isElevated = winsys.IsElevated
	ntVersion  = winsys.NtVersion
	exit       = os.Exit

	stdin           = bufio.NewReader(os.Stdin)
	stdinIsTerminal = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}
)

// payloadOverride returns the --payload flag or the configured path.
func payloadOverride() string {
	if payloadPath != "" {
		return payloadPath
	}
	return cfg.PayloadPath
}

// loadPayload locates and reads the shim payload.
func loadPayload() (string, []byte, error) {
	path, err := shim.Locate(payloadOverride())
	if err != nil {
		return "", nil, err
	}
	data, err := shim.Load(path)
	if err != nil {
		return path, nil, err
	}
	return path, data, nil
}

// openManager builds a Manager for the local machine. Uninstall does not
// need the payload; everything that compares or writes the shim does.
func openManager(needPayload bool, opts ...patcher.Option) (*patcher.Manager, error) {
	var payload []byte
	if needPayload {
		_, data, err := loadPayload()
		if err != nil {
			return nil, err
		}
		payload = data
	}

	dir, err := systemDir()
	if err != nil {
		return nil, fmt.Errorf("failed to locate system directory: %w", err)
	}
	return patcher.New(newSystem(), shim.NewImage(dir, payload), opts...)
}

// operation is an install or uninstall wired to the logger and, when
// history is enabled, to a journal recorder.
type operation struct {
	kind    string
	m       *patcher.Manager
	journal *journal.Journal
	rec     *journal.Recorder
}

func startOperation(kind string, needPayload bool, targets []patcher.Target, opts ...patcher.Option) (*operation, error) {
	op := &operation{kind: kind}

	logEvent := logging.EventHandler(log.Logger)
	opts = append(opts, patcher.WithEventHandler(func(ev patcher.Event) {
		logEvent(ev)
		if op.rec != nil {
			op.rec.Record(ev)
		}
	}))

	m, err := openManager(needPayload, opts...)
	if err != nil {
		return nil, err
	}
	op.m = m

	if historyEnabled() {
		op.begin(targets)
	}
	return op, nil
}

// begin opens the journal and records the pre-operation state. History is
// best effort: failures are logged and the operation runs unrecorded.
func (op *operation) begin(targets []patcher.Target) {
	path, err := getDBPath()
	if err == nil {
		err = os.MkdirAll(filepath.Dir(path), 0755)
	}
	if err == nil {
		op.journal, err = journal.Open(path)
	}
	if err != nil {
		log.Warn().Err(err).Msg("history unavailable, operation will not be recorded")
		return
	}

	before, err := op.m.Inspect()
	if err != nil {
		log.Warn().Err(err).Msg("cannot snapshot IFEO entries")
	}

	var digest string
	if payload := op.m.Image().Payload; len(payload) > 0 {
		digest = shim.Digest(payload)
	}

	op.rec, err = op.journal.Begin(op.kind, targets, digest, op.m.ActivityCount(), before)
	if err != nil {
		log.Warn().Err(err).Msg("history unavailable, operation will not be recorded")
		op.journal.Close()
		op.journal = nil
	}
}

// finish records the outcome and closes the journal.
func (op *operation) finish(opErr error) {
	if op.journal == nil {
		return
	}
	defer op.journal.Close()

	after, err := op.m.Inspect()
	if err != nil {
		log.Warn().Err(err).Int64("operation", op.rec.ID).Msg("cannot snapshot IFEO entries after the operation")
	}
	if err := op.rec.Finish(opErr, op.m.ActivityCount(), after); err != nil {
		log.Warn().Err(err).Int64("operation", op.rec.ID).Msg("failed to record operation")
		return
	}
	log.Debug().Int64("operation", op.rec.ID).Msg("operation recorded")
}

// confirm asks a yes/no question on stdin. Anything but y/yes is a no.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)

	response, err := stdin.ReadString('\n')
	if err != nil && response == "" {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// consolePrompter asks for the post-install reboot on stdin.
type consolePrompter struct{}

func (consolePrompter) ConfirmReboot() bool {
	fmt.Println()
	return confirm("A reboot is required to load the shim. Reboot now?")
}

// newPrompter picks a console prompt when attached to a terminal and a
// message box otherwise (e.g. when started from Explorer with redirected
// input).
func newPrompter() patcher.Prompter {
	if stdinIsTerminal() {
		return consolePrompter{}
	}
	return winsys.MessageBoxPrompter{
		Caption: "themetool",
		Text:    "SecureUxTheme was installed. A reboot is required to load it.\n\nReboot now?",
	}
}

func joinTargets(targets []patcher.Target) string {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// statusAdvice returns the next step suggested by st, or "".
func statusAdvice(st patcher.Status) string {
	switch {
	case st.Installed == patcher.Outdated:
		return "The installed shim differs from the bundled payload. Run 'themetool install' to update it."
	case st.Installed == patcher.Yes && st.Loaded == patcher.No:
		return "Installed but not loaded yet. Reboot to activate the shim."
	case st.Installed == patcher.No && hasHooks(st):
		return "Hooks are registered without a working shim. Run 'themetool uninstall' to clean them up."
	}
	return ""
}

func hasHooks(st patcher.Status) bool {
	for _, s := range st.Hooks {
		if s == patcher.Yes {
			return true
		}
	}
	return false
}
