package app

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-version"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/themetool/internal/journal"
	"github.com/blackwell-systems/themetool/internal/output"
	"github.com/blackwell-systems/themetool/internal/patcher"
	"github.com/blackwell-systems/themetool/internal/shim"
	"github.com/blackwell-systems/themetool/internal/winsys"
)

var (
	runningTargets = winsys.RunningTargets
	processUser    = winsys.ProcessUser
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose common issues and check system health",
	Long: `Runs diagnostic checks before or after installing SecureUxTheme.

Checks:
  • The prompt is elevated
  • The Windows version supports every optional target
  • The shim payload is present and valid
  • The installed shim matches the payload and has been loaded
  • Which hooked processes are running
  • The history database is readable

Exits with 1 on critical issues and 2 when only warnings were found.`,
	RunE: runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("Running themetool diagnostics...")
	fmt.Println()

	criticalIssues := 0
	warningIssues := 0

	// Check 1: elevation
	user, userErr := processUser()
	if userErr != nil {
		user = "current user"
	}
	if isElevated() {
		fmt.Printf("✓ Running elevated as %s\n", user)
	} else {
		fmt.Printf("⚠ Not elevated (%s)\n", user)
		fmt.Println("  Action: Run install and uninstall from an administrator prompt")
		warningIssues++
	}

	// Check 2: Windows version
	spinner := output.NewSpinner("Querying Windows version")
	spinner.Start()
	v, verErr := ntVersion()
	spinner.Stop()
	if verErr != nil {
		fmt.Println("⚠ Cannot determine Windows version:", verErr)
		warningIssues++
	} else {
		name := v.String()
		if v.Caption != "" {
			name = fmt.Sprintf("%s (%s)", v.Caption, v.String())
		}
		fmt.Println("✓ Windows version:", name)
		if current, err := version.NewVersion(v.String()); err == nil && current.LessThan(minSystemSettingsVersion) {
			fmt.Println("⚠ SystemSettings.exe cannot be hooked before Windows 10 1703 (10.0.15063)")
			warningIssues++
		}
	}

	// Check 3: payload, critical since install cannot run without it
	payloadFile, payload, payloadErr := loadPayload()
	if payloadErr != nil {
		fmt.Println("✗ Shim payload unavailable:", payloadErr)
		criticalIssues++
	} else {
		fmt.Printf("✓ Payload found: %s (sha256 %s)\n", payloadFile, shim.Digest(payload)[:16])
	}

	// Check 4: installed state
	dir, dirErr := systemDir()
	if dirErr != nil {
		fmt.Println("✗ Cannot locate the system directory:", dirErr)
		criticalIssues++
	} else {
		m, err := patcher.New(newSystem(), shim.NewImage(dir, payload))
		if err != nil {
			fmt.Println("✗ Cannot inspect the system:", err)
			criticalIssues++
		} else {
			criticalIssues, warningIssues = checkInstall(m, payloadErr == nil, criticalIssues, warningIssues)
		}
	}

	// Check 5: history, warning only
	if historyEnabled() {
		warningIssues += checkHistory()
	}

	fmt.Println()
	if criticalIssues == 0 && warningIssues == 0 {
		fmt.Println("✓ All checks passed!")
		return nil
	}

	if criticalIssues > 0 {
		fmt.Printf("Found %d critical issue(s) and %d warning(s).\n", criticalIssues, warningIssues)
		return fmt.Errorf("diagnostics failed")
	}

	// Warnings only: exit 2 directly so main does not print an error.
	fmt.Printf("Found %d warning(s). The system is usable but needs attention.\n", warningIssues)
	exit(2)
	return nil
}

// checkInstall reports the evaluated state and the hooked processes that
// are running. comparable is false when the payload is missing, in which
// case an installed shim always looks outdated.
func checkInstall(m *patcher.Manager, comparable bool, critical, warnings int) (int, int) {
	st := m.Evaluate()

	if st.FileErr != nil {
		fmt.Println("⚠ Cannot read the installed shim:", st.FileErr)
		warnings++
	}

	switch {
	case st.Installed == patcher.No:
		fmt.Println("✓ Shim not installed")
		if hasHooks(st) {
			fmt.Println("⚠ Optional targets are hooked without winlogon.exe")
			fmt.Println("  Action: Run 'themetool uninstall' to clean up")
			warnings++
		}
		return critical, warnings
	case st.Installed == patcher.Outdated && comparable:
		fmt.Println("⚠ Installed shim differs from the payload")
		fmt.Println("  Action: Run 'themetool install' to update it")
		warnings++
	default:
		fmt.Println("✓ Shim installed:", m.Image().Path())
	}

	if st.Loaded == patcher.Yes {
		fmt.Printf("✓ Shim loaded (%d activation(s) since boot)\n", st.BypassCount)
	} else {
		fmt.Println("⚠ Shim installed but not loaded")
		fmt.Println("  Action: Reboot to activate it")
		warnings++
	}

	hooked := []patcher.Target{patcher.Required}
	for _, t := range patcher.OptionalTargets {
		if st.Hook(t) == patcher.Yes {
			hooked = append(hooked, t)
		}
	}
	procs, err := runningTargets(hooked)
	if err != nil {
		fmt.Println("⚠ Cannot list running processes:", err)
		return critical, warnings + 1
	}
	for _, p := range procs {
		fmt.Printf("✓ %s running (PID %d)\n", p.Target, p.PID)
	}
	if len(procs) > 0 {
		fmt.Println("  Note: processes started before the install run without the shim until restarted")
	}
	return critical, warnings
}

// checkHistory returns the number of warnings found.
func checkHistory() int {
	path, err := getDBPath()
	if err != nil {
		fmt.Println("⚠ History path error:", err)
		return 1
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("✓ No history recorded yet")
		return 0
	}

	j, err := journal.Open(path)
	if err != nil {
		fmt.Println("⚠ Cannot open history:", err)
		fmt.Println("  Action: Delete", path, "or run with --no-history")
		return 1
	}
	defer j.Close()

	ops, err := j.List(0)
	if err != nil {
		fmt.Println("⚠ Cannot read history:", err)
		return 1
	}
	fmt.Printf("✓ History: %d operation(s) recorded\n", len(ops))
	return 0
}
