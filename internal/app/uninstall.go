package app

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/themetool/internal/output"
	"github.com/blackwell-systems/themetool/internal/patcher"
	"github.com/blackwell-systems/themetool/internal/shim"
)

var uninstallYes bool

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove every hook and the shim file",
	Long: `Remove SecureUxTheme.

The verifier hook is cleared from winlogon.exe, explorer.exe,
SystemSettings.exe, dwm.exe and LogonUI.exe, in that order, and the shim
file is deleted. If the file is in use it is renamed and deleted at the
next boot.

The verifier flag is verified off before VerifierDlls is removed. If a
target cannot be cleared the uninstall stops so later targets are left as
they were. VerifierDlls values that belong to other tools are kept.

Requires an elevated prompt.`,
	Example: `  # Uninstall with confirmation
  themetool uninstall

  # Uninstall without prompting
  themetool uninstall --yes`,
	RunE: runUninstall,
}

func init() {
	uninstallCmd.Flags().BoolVarP(&uninstallYes, "yes", "y", false, "skip confirmation prompt")

	RootCmd.AddCommand(uninstallCmd)
}

func runUninstall(cmd *cobra.Command, args []string) error {
	if !isElevated() {
		fmt.Println("⚠ Not running elevated: writing to the registry and system directory will fail.")
	}

	if !uninstallYes && !confirm(fmt.Sprintf("Remove %s and all of its hooks?", shim.ImageName)) {
		fmt.Println("Uninstall cancelled.")
		return nil
	}

	op, err := startOperation("uninstall", false, nil)
	if err != nil {
		return err
	}

	log.Info().Msg("uninstalling")
	r, opErr := op.m.Uninstall()
	op.finish(opErr)

	fmt.Println()
	fmt.Print(output.RenderReport(r, opErr))
	if opErr != nil {
		return opErr
	}

	st := op.m.Evaluate()
	fmt.Println()
	fmt.Print(output.RenderStatus(st, op.m.Image().Path()))
	if st.Loaded == patcher.Yes {
		fmt.Println()
		fmt.Println("The shim stays loaded until the next reboot.")
	}
	return nil
}
