package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/themetool/internal/output"
	"github.com/blackwell-systems/themetool/internal/patcher"
	"github.com/blackwell-systems/themetool/internal/watcher"
)

var (
	statusWatch   bool
	statusEntries bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the shim is installed and loaded",
	Long: `Display the current state of SecureUxTheme.

Shows:
  • Installed: the shim file is present and winlogon.exe is hooked
    (Outdated when the file differs from the bundled payload)
  • Loaded: the shim has run since boot (Probably when an outdated
    copy is installed)
  • Whether explorer.exe, LogonUI.exe and SystemSettings.exe are hooked
  • The shim file and the number of activations since boot

Status is read-only and does not require elevation, although some
registry keys may be unreadable without it.`,
	Example: `  # Check status
  themetool status

  # Include the raw registry values
  themetool status --entries

  # Keep watching until Ctrl+C
  themetool status --watch`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "keep watching and print the status when it changes")
	statusCmd.Flags().BoolVar(&statusEntries, "entries", false, "also print the raw IFEO entries")

	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	m, err := openManager(true)
	if err != nil {
		return err
	}

	st := m.Evaluate()
	fmt.Print(output.RenderStatus(st, m.Image().Path()))

	if statusEntries {
		entries, err := m.Inspect()
		if err != nil {
			return fmt.Errorf("failed to read IFEO entries: %w", err)
		}
		fmt.Println()
		fmt.Print(output.RenderEntries(entries))
	}

	if advice := statusAdvice(st); advice != "" {
		fmt.Println()
		fmt.Println(advice)
	}

	if !statusWatch {
		return nil
	}
	return watchStatus(cmd.Context(), m)
}

// watchStatus prints the status each time it changes until ctx is done or
// the user interrupts.
func watchStatus(ctx context.Context, m *patcher.Manager) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	path := m.Image().Path()
	w, err := watcher.New(m, path, watcher.Options{
		Interval: cfg.WatchInterval,
		OnChange: func(c watcher.Change) {
			if c.Reason == watcher.ReasonInitial {
				return
			}
			fmt.Printf("\n[%s] status changed (%s)\n", c.Time.Format(time.TimeOnly), c.Reason)
			if d := c.ActivityDelta(); d > 0 {
				fmt.Printf("Shim activated %d more time(s)\n", d)
			}
			fmt.Print(output.RenderStatus(c.Status, path))
		},
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start watching: %w", err)
	}

	fmt.Println()
	fmt.Println("Watching for changes (Ctrl+C to stop)...")
	<-ctx.Done()
	return w.Stop()
}
