package app

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/blackwell-systems/themetool/internal/output"
	"github.com/blackwell-systems/themetool/internal/patcher"
	"github.com/blackwell-systems/themetool/internal/shim"
)

// minSystemSettingsVersion is the first build (1703) whose Settings app can
// be hooked.
var minSystemSettingsVersion = version.Must(version.NewVersion("10.0.15063"))

// targetsValue is a --targets flag accepting a comma separated list of
// optional targets. It may be repeated.
type targetsValue struct {
	set patcher.TargetSet
}

var _ pflag.Value = (*targetsValue)(nil)

func newTargetsValue() *targetsValue {
	return &targetsValue{set: patcher.NewTargetSet()}
}

func (v *targetsValue) String() string {
	var names []string
	for _, t := range v.set.Ordered() {
		names = append(names, strings.ToLower(strings.TrimSuffix(string(t), ".exe")))
	}
	return strings.Join(names, ",")
}

func (v *targetsValue) Set(s string) error {
	for _, name := range strings.Split(s, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		t, ok := patcher.ParseTarget(name)
		if !ok {
			return fmt.Errorf("unknown target %q (want explorer, logonui or systemsettings)", name)
		}
		v.set.Add(t)
	}
	return nil
}

func (v *targetsValue) Type() string { return "targets" }

var (
	installTargets        = newTargetsValue()
	installExplorer       bool
	installLogonUI        bool
	installSystemSettings bool
	installReboot         bool
	installNoReboot       bool
	installYes            bool
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the shim for winlogon.exe and optional targets",
	Long: `Install SecureUxTheme.

The shim file is copied to the system directory and registered as a
verifier DLL for winlogon.exe. Optional targets add hooks for:
  explorer        theme changes without a restart of Explorer
  logonui         the logon screen
  systemsettings  the Settings app (Windows 10 1703 or later)

Any previous installation is removed first, so running install again
repairs a partial or outdated install. If winlogon.exe cannot be hooked
everything is rolled back. Failures on optional targets are reported as
warnings.

Without --targets or the per-target flags, optional_targets from the
config file is used. Requires an elevated prompt.`,
	Example: `  # Install for winlogon only
  themetool install

  # Install for explorer and LogonUI, then reboot
  themetool install --targets explorer,logonui --reboot

  # Unattended install without reboot
  themetool install --explorer --yes --no-reboot`,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().Var(installTargets, "targets", "optional targets: explorer, logonui, systemsettings")
	installCmd.Flags().BoolVar(&installExplorer, "explorer", false, "also hook explorer.exe")
	installCmd.Flags().BoolVar(&installLogonUI, "logonui", false, "also hook LogonUI.exe")
	installCmd.Flags().BoolVar(&installSystemSettings, "systemsettings", false, "also hook SystemSettings.exe")
	installCmd.Flags().BoolVar(&installReboot, "reboot", false, "reboot after a successful install")
	installCmd.Flags().BoolVar(&installNoReboot, "no-reboot", false, "never reboot or ask to")
	installCmd.Flags().BoolVarP(&installYes, "yes", "y", false, "skip confirmation prompts")
	installCmd.MarkFlagsMutuallyExclusive("reboot", "no-reboot")

	RootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	targets, err := resolveInstallTargets(cmd)
	if err != nil {
		return err
	}
	policy, err := resolveRebootPolicy()
	if err != nil {
		return err
	}

	if !isElevated() {
		fmt.Println("⚠ Not running elevated: writing to the registry and system directory will fail.")
	}
	if targets.Has(patcher.SystemSettings) {
		if ok, current := systemSettingsSupported(); !ok {
			fmt.Printf("⚠ Hooking SystemSettings.exe needs Windows 10 1703 (10.0.15063) or later; this system is %s.\n", current)
		}
	}

	hooked := append([]patcher.Target{patcher.Required}, targets.Ordered()...)
	if !installYes && !confirm(fmt.Sprintf("Install %s for %s?", shim.ImageName, joinTargets(hooked))) {
		fmt.Println("Install cancelled.")
		return nil
	}

	op, err := startOperation("install", true, targets.Ordered(), patcher.WithPrompter(newPrompter()))
	if err != nil {
		return err
	}

	log.Info().Str("targets", joinTargets(hooked)).Str("reboot", policy.String()).Msg("installing")
	r, opErr := op.m.Install(patcher.InstallOptions{Targets: targets, Reboot: policy})
	op.finish(opErr)

	fmt.Println()
	fmt.Print(output.RenderReport(r, opErr))
	if opErr != nil {
		return opErr
	}
	if r.Rebooting {
		return nil
	}

	st := op.m.Evaluate()
	fmt.Println()
	fmt.Print(output.RenderStatus(st, op.m.Image().Path()))
	if advice := statusAdvice(st); advice != "" {
		fmt.Println()
		fmt.Println(advice)
	}
	return nil
}

// resolveInstallTargets returns the optional targets from the flags, or
// from the config file when no target flag was given.
func resolveInstallTargets(cmd *cobra.Command) (patcher.TargetSet, error) {
	explicit := cmd.Flags().Changed("targets") || installExplorer || installLogonUI || installSystemSettings
	if !explicit {
		return cfg.Targets()
	}

	set := patcher.NewTargetSet(installTargets.set.Ordered()...)
	if installExplorer {
		set.Add(patcher.Explorer)
	}
	if installLogonUI {
		set.Add(patcher.LogonUI)
	}
	if installSystemSettings {
		set.Add(patcher.SystemSettings)
	}
	return set, nil
}

// resolveRebootPolicy applies --reboot/--no-reboot over the config file.
// With --yes an "ask" policy becomes "never" so unattended runs don't block.
func resolveRebootPolicy() (patcher.RebootPolicy, error) {
	switch {
	case installReboot && installNoReboot:
		return patcher.RebootAsk, fmt.Errorf("--reboot and --no-reboot cannot be combined")
	case installReboot:
		return patcher.RebootAlways, nil
	case installNoReboot:
		return patcher.RebootNever, nil
	}

	policy, err := patcher.ParseRebootPolicy(cfg.Reboot)
	if err != nil {
		return policy, err
	}
	if policy == patcher.RebootAsk && installYes {
		return patcher.RebootNever, nil
	}
	return policy, nil
}

// systemSettingsSupported reports whether this build can hook
// SystemSettings.exe. An unknown version is assumed to be supported.
func systemSettingsSupported() (bool, string) {
	v, err := ntVersion()
	if err != nil {
		log.Debug().Err(err).Msg("cannot determine Windows version")
		return true, "unknown"
	}
	current, err := version.NewVersion(v.String())
	if err != nil {
		return true, v.String()
	}
	return !current.LessThan(minSystemSettingsVersion), v.String()
}
