// Package output renders themetool results for the terminal.
//
// Render functions return strings so commands decide where output goes.
// Color is applied only when stdout is a terminal and NO_COLOR is unset.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/themetool/internal/journal"
	"github.com/blackwell-systems/themetool/internal/patcher"
	"github.com/blackwell-systems/themetool/internal/shim"
	"github.com/blackwell-systems/themetool/internal/store"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

const labelFormat = "%-16s %s\n"

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

func stateColor(s patcher.State) string {
	switch s {
	case patcher.Yes:
		return colorGreen
	case patcher.Probably:
		return colorYellow
	case patcher.Outdated:
		return colorRed
	default:
		return colorGray
	}
}

func formatState(s patcher.State) string {
	return colorize(stateColor(s), s.String())
}

// RenderStatus renders the five status fields followed by the evidence
// they were derived from.
func RenderStatus(st patcher.Status, imagePath string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(labelFormat, "Installed:", formatState(st.Installed)))
	sb.WriteString(fmt.Sprintf(labelFormat, "Loaded:", formatState(st.Loaded)))
	for _, t := range patcher.OptionalTargets {
		label := strings.TrimSuffix(string(t), ".exe") + ":"
		sb.WriteString(fmt.Sprintf(labelFormat, label, formatState(st.Hook(t))))
	}

	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf(labelFormat, "Shim file:", imagePath))
	sb.WriteString(fmt.Sprintf(labelFormat, "", formatFileState(st)))
	sb.WriteString(fmt.Sprintf(labelFormat, "Activations:", fmt.Sprintf("%d since boot", st.BypassCount)))

	return sb.String()
}

func formatFileState(st patcher.Status) string {
	switch {
	case st.FileErr != nil:
		return colorize(colorRed, "unreadable: "+st.FileErr.Error())
	case !st.FileHasContent:
		return "not present"
	case st.FileIsSame:
		return colorize(colorGreen, "matches the bundled payload")
	default:
		return colorize(colorYellow, "differs from the bundled payload")
	}
}

// RenderEntries renders raw IFEO entries as a table.
func RenderEntries(entries []patcher.Entry) string {
	if len(entries) == 0 {
		return "No IFEO entries.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-20s %-12s %-24s %s\n", "Target", "GlobalFlag", "VerifierDlls", "Shim"))
	sb.WriteString(strings.Repeat("─", 64))
	sb.WriteString("\n")

	for _, e := range entries {
		flag := "—"
		if e.HasFlag {
			flag = fmt.Sprintf("%#x", e.GlobalFlag)
		}
		dlls := "—"
		if e.HasVerifier {
			dlls = truncate(e.VerifierDlls, 24)
		}
		owned := "no"
		if e.Owned(shim.ImageName) {
			owned = colorize(colorGreen, "yes")
		} else if e.HasFlag && e.GlobalFlag&patcher.FlagApplicationVerifier != 0 {
			owned = colorize(colorYellow, "foreign")
		}
		sb.WriteString(fmt.Sprintf("%-20s %-12s %-24s %s\n", e.Target, flag, dlls, owned))
	}
	return sb.String()
}

// RenderReport renders the steps of an install or uninstall, its warnings
// and a one-line summary. err is the operation's returned error.
func RenderReport(r *patcher.Report, err error) string {
	if r == nil {
		if err != nil {
			return colorize(colorRed, "✗ "+err.Error()) + "\n"
		}
		return ""
	}

	var sb strings.Builder
	for _, ev := range r.Events {
		sb.WriteString(formatStep(ev.Step, string(ev.Target), ev.Err == nil, errText(ev.Err)))
	}

	if len(r.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  " + colorize(colorYellow, "⚠") + " " + w.Error() + "\n")
		}
	}

	sb.WriteString("\n")
	switch {
	case err != nil && r.RolledBack:
		sb.WriteString(colorize(colorRed, fmt.Sprintf("%s failed and was rolled back", r.Op)))
	case err != nil:
		sb.WriteString(colorize(colorRed, fmt.Sprintf("%s failed", r.Op)))
	case r.Op == "install":
		sb.WriteString(colorize(colorGreen, fmt.Sprintf("Installed for %s", joinTargets(r.Hooked))))
		if r.Rebooting {
			sb.WriteString(", rebooting")
		}
	default:
		sb.WriteString(colorize(colorGreen, fmt.Sprintf("Removed from %d target(s)", len(r.Cleared))))
	}
	sb.WriteString("\n")
	return sb.String()
}

func formatStep(step patcher.Step, target string, ok bool, errMsg string) string {
	name := string(step)
	if target != "" {
		name += " " + target
	}
	if ok {
		return fmt.Sprintf("  %s %s\n", colorize(colorGreen, "✓"), name)
	}
	return fmt.Sprintf("  %s %s: %s\n", colorize(colorRed, "✗"), name, errMsg)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	if code := patcher.ErrorCode(err); code != 0 {
		return fmt.Sprintf("%v (code %d)", err, code)
	}
	return err.Error()
}

func joinTargets(targets []patcher.Target) string {
	if len(targets) == 0 {
		return "nothing"
	}
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// RenderHistory renders a table of recorded operations, newest first as
// returned by the journal.
func RenderHistory(ops []*store.Operation) string {
	if len(ops) == 0 {
		return "No operations recorded.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-5s %-17s %-10s %-9s %s\n", "ID", "Started", "Kind", "Outcome", "Targets"))
	sb.WriteString(strings.Repeat("─", 72))
	sb.WriteString("\n")

	for _, op := range ops {
		targets := strings.Join(op.Targets, ",")
		if targets == "" {
			targets = "—"
		}
		sb.WriteString(fmt.Sprintf("%-5d %-17s %-10s %-9s %s\n",
			op.ID,
			formatRelativeTime(op.StartedAt),
			op.Kind,
			formatOutcome(op.Outcome),
			truncate(targets, 32)))
	}
	return sb.String()
}

// formatOutcome pads before coloring so the escape codes don't break
// column alignment.
func formatOutcome(outcome string) string {
	pad := ""
	if len(outcome) < 9 {
		pad = strings.Repeat(" ", 9-len(outcome))
	}
	switch outcome {
	case store.OutcomeSuccess:
		return colorize(colorGreen, outcome) + pad
	case store.OutcomeFailed:
		return colorize(colorRed, outcome) + pad
	default:
		return outcome + pad
	}
}

// RenderOperation renders one recorded operation with its steps and the
// IFEO entries that changed.
func RenderOperation(rec *journal.Record) string {
	op := rec.Operation
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Operation #%d: %s\n\n", op.ID, op.Kind))
	sb.WriteString(fmt.Sprintf(labelFormat, "Started:", op.StartedAt.Local().Format(time.DateTime)))
	if op.FinishedAt != nil {
		sb.WriteString(fmt.Sprintf(labelFormat, "Duration:", op.FinishedAt.Sub(op.StartedAt).String()))
	}
	sb.WriteString(fmt.Sprintf(labelFormat, "Outcome:", op.Outcome))
	if op.Error != "" {
		sb.WriteString(fmt.Sprintf(labelFormat, "Error:", op.Error))
	}
	if len(op.Targets) > 0 {
		sb.WriteString(fmt.Sprintf(labelFormat, "Targets:", strings.Join(op.Targets, ", ")))
	}
	if op.PayloadDigest != "" {
		sb.WriteString(fmt.Sprintf(labelFormat, "Payload:", truncate(op.PayloadDigest, 16)))
	}
	sb.WriteString(fmt.Sprintf(labelFormat, "Activations:", fmt.Sprintf("%d → %d", op.ActivityBefore, op.ActivityAfter)))

	if len(rec.Events) > 0 {
		sb.WriteString("\nSteps:\n")
		for _, ev := range rec.Events {
			msg := ev.Error
			if ev.ErrorCode != 0 {
				msg = fmt.Sprintf("%s (code %d)", msg, ev.ErrorCode)
			}
			sb.WriteString(formatStep(patcher.Step(ev.Step), ev.Target, ev.Error == "", msg))
		}
	}

	if changes := diffSnapshots(rec.Before, rec.After); len(changes) > 0 {
		sb.WriteString("\nChanged entries:\n")
		for _, c := range changes {
			sb.WriteString("  " + c + "\n")
		}
	}
	return sb.String()
}

func diffSnapshots(before, after []*store.EntrySnapshot) []string {
	prev := make(map[string]*store.EntrySnapshot, len(before))
	for _, s := range before {
		prev[strings.ToLower(s.Target)] = s
	}

	var out []string
	for _, a := range after {
		b := prev[strings.ToLower(a.Target)]
		if b == nil {
			b = &store.EntrySnapshot{Target: a.Target}
		}
		if b.HasFlag != a.HasFlag || b.GlobalFlag != a.GlobalFlag {
			out = append(out, fmt.Sprintf("%-20s GlobalFlag   %s → %s", a.Target, snapFlag(b), snapFlag(a)))
		}
		if b.HasVerifier != a.HasVerifier || b.VerifierDlls != a.VerifierDlls {
			out = append(out, fmt.Sprintf("%-20s VerifierDlls %s → %s", a.Target, snapDlls(b), snapDlls(a)))
		}
	}
	return out
}

func snapFlag(s *store.EntrySnapshot) string {
	if !s.HasFlag {
		return "absent"
	}
	return fmt.Sprintf("%#x", s.GlobalFlag)
}

func snapDlls(s *store.EntrySnapshot) string {
	if !s.HasVerifier {
		return "absent"
	}
	return fmt.Sprintf("%q", s.VerifierDlls)
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 30*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	default:
		return t.Local().Format(time.DateOnly)
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
