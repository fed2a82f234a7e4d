package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uascope/uascope/pkg/client"
)

// browseCmd lists the direct children of one node.
var browseCmd = &cobra.Command{
	Use:   "browse [node-id]",
	Short: "List the children of a node (default: the Objects folder)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID := client.ObjectsFolder
		if len(args) == 1 {
			nodeID = args[0]
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		c, err := connectSession(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer c.Close(ctx)

		nodes, err := c.Children(ctx, nodeID)
		if err != nil {
			return fmt.Errorf("failed to browse %s: %w", nodeID, err)
		}
		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(nodeRows(nodes)))
		return nil
	},
}

// nodeRow is the printable shape of one browsed node.
type nodeRow struct {
	DisplayName string `json:"display_name" yaml:"display_name"`
	Class       string `json:"class" yaml:"class"`
	NodeID      string `json:"node_id" yaml:"node_id"`
	Children    bool   `json:"has_children" yaml:"has_children"`
}

func nodeRows(nodes []client.Node) []nodeRow {
	rows := make([]nodeRow, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, nodeRow{
			DisplayName: n.DisplayName,
			Class:       n.ClassName(),
			NodeID:      n.ID,
			Children:    n.HasChildren,
		})
	}
	return rows
}

func init() {
	rootCmd.AddCommand(browseCmd)
}
