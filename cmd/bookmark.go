package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uascope/uascope/pkg/config"
)

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark",
	Short: "Manage saved server bookmarks",
	Long:  "Save, list, and remove server connection bookmarks usable via --bookmark.",
}

var bookmarkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved bookmarks",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(bookmarks.Entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no bookmarks saved")
			return nil
		}
		type bookmarkRow struct {
			Name     string `json:"name" yaml:"name"`
			Endpoint string `json:"endpoint" yaml:"endpoint"`
			Policy   string `json:"security_policy" yaml:"security_policy"`
		}
		rows := make([]bookmarkRow, 0, len(bookmarks.Entries))
		for _, bm := range bookmarks.Entries {
			rows = append(rows, bookmarkRow{
				Name:     bm.Name,
				Endpoint: bm.Connection.EndpointURL,
				Policy:   bm.Connection.SecurityPolicy,
			})
		}
		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(rows))
		return nil
	},
}

var bookmarkAddCmd = &cobra.Command{
	Use:   "add <name> <endpoint-url>",
	Short: "Save a bookmark with the current connection settings",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn := cfg.Connection
		conn.EndpointURL = args[1]
		bookmarks.Add(config.Bookmark{Name: args[0], Connection: conn})
		if err := bookmarks.Save(config.BookmarksPath()); err != nil {
			return fmt.Errorf("failed to save bookmarks: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved bookmark %q\n", args[0])
		return nil
	},
}

var bookmarkRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a saved bookmark",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !bookmarks.Remove(args[0]) {
			return fmt.Errorf("unknown bookmark %q", args[0])
		}
		if err := bookmarks.Save(config.BookmarksPath()); err != nil {
			return fmt.Errorf("failed to save bookmarks: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed bookmark %q\n", args[0])
		return nil
	},
}

func init() {
	bookmarkCmd.AddCommand(bookmarkListCmd)
	bookmarkCmd.AddCommand(bookmarkAddCmd)
	bookmarkCmd.AddCommand(bookmarkRemoveCmd)
	rootCmd.AddCommand(bookmarkCmd)
}
