package app

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/themetool/internal/journal"
	"github.com/blackwell-systems/themetool/internal/output"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [id|latest]",
	Short: "Show recorded install and uninstall operations",
	Long: `Show the operation history.

Without arguments, lists recent operations. With an operation ID or
"latest", shows the steps that operation ran and the IFEO values it
changed.

History is kept for 90 days. Disable it with --no-history or
"history: false" in the config file.`,
	Example: `  # List recent operations
  themetool history

  # Show what the last operation changed
  themetool history latest

  # Show operation 3
  themetool history 3`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of operations to list (0 for all)")

	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	path, err := getDBPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Print(output.RenderHistory(nil))
		return nil
	}

	j, err := journal.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer j.Close()

	if len(args) == 0 {
		ops, err := j.List(historyLimit)
		if err != nil {
			return err
		}
		fmt.Print(output.RenderHistory(ops))
		return nil
	}

	var rec *journal.Record
	if args[0] == "latest" {
		rec, err = j.Latest()
		if err == nil && rec == nil {
			return fmt.Errorf("no operations recorded")
		}
	} else {
		id, perr := strconv.ParseInt(args[0], 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid operation ID %q: must be a number or 'latest'", args[0])
		}
		rec, err = j.Get(id)
	}
	if err != nil {
		return err
	}

	fmt.Print(output.RenderOperation(rec))
	return nil
}
