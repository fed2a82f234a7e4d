package cmd

import (
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/uascope/uascope/pkg/config"
	"github.com/uascope/uascope/pkg/logging"
	"github.com/uascope/uascope/pkg/tui"
)

// monitorCmd launches the interactive diagnostic console.
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Launch the interactive diagnostic console",
	Long: `Launch an interactive terminal console for browsing a server's
address space, watching live values, crawling the node tree, and
running connectivity diagnostics.

Key bindings:
  Tab / Shift+Tab  Navigate between tabs
  1 … 5            Jump directly to a tab
  enter            Open node / submit input
  w                Watch the selected node
  u                Remove the selected watch item
  x                Start a crawl
  esc              Cancel the running crawl or diagnosis
  d                Disconnect
  q / Ctrl+C       Quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The console owns the terminal, so logs always go to a file.
		log := logger
		if cfg.LogFile == "" {
			var err error
			log, err = logging.New(filepath.Join(config.Dir(), "uascope.log"), verboseFlag)
			if err != nil {
				return err
			}
			defer log.Sync()
		}

		p := tea.NewProgram(tui.New(cfg, bookmarks, log), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
