package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uascope/uascope/pkg/crawl"
	"github.com/uascope/uascope/pkg/export"
)

var (
	crawlStartFlag    string
	crawlDepthFlag    int
	crawlMaxNodesFlag int
	crawlCSVFlag      string
	crawlJSONFlag     string
)

// crawlCmd walks the address space breadth-bounded and prints or
// exports the discovered nodes.
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the address space and list the discovered nodes",
	Long: `Crawl descends the server's address space from a start node,
visiting each node at most once and respecting the configured depth
and node-count bounds. Ctrl+C stops the crawl and prints the partial
result.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cc := cfg.Crawl
		if crawlStartFlag != "" {
			cc.StartNode = crawlStartFlag
		}
		if cmd.Flags().Changed("depth") {
			cc.MaxDepth = crawlDepthFlag
		}
		if cmd.Flags().Changed("max-nodes") {
			cc.MaxNodes = crawlMaxNodesFlag
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		c, err := connectSession(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer c.Close(context.Background())

		nodes, err := crawl.Crawl(ctx, c, cc, logger)
		if err != nil && err != context.Canceled {
			return fmt.Errorf("crawl failed: %w", err)
		}
		if err == context.Canceled {
			fmt.Fprintf(cmd.OutOrStdout(), "crawl interrupted after %d nodes\n", len(nodes))
		}

		if crawlCSVFlag != "" {
			if err := export.CrawlCSV(nodes, crawlCSVFlag); err != nil {
				return fmt.Errorf("failed to export CSV: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", crawlCSVFlag)
		}
		if crawlJSONFlag != "" {
			if err := export.CrawlJSON(nodes, crawlJSONFlag); err != nil {
				return fmt.Errorf("failed to export JSON: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", crawlJSONFlag)
		}
		if crawlCSVFlag == "" && crawlJSONFlag == "" {
			fmt.Fprint(cmd.OutOrStdout(), formatter.Format(nodeRows(nodes)))
		}
		return nil
	},
}

func init() {
	crawlCmd.Flags().StringVar(&crawlStartFlag, "start", "", "start node ID (default: the Objects folder)")
	crawlCmd.Flags().IntVar(&crawlDepthFlag, "depth", 0, "maximum depth below the start node")
	crawlCmd.Flags().IntVar(&crawlMaxNodesFlag, "max-nodes", 0, "stop after roughly this many nodes")
	crawlCmd.Flags().StringVar(&crawlCSVFlag, "export-csv", "", "write the result to a CSV file")
	crawlCmd.Flags().StringVar(&crawlJSONFlag, "export-json", "", "write the result to a JSON file")
	rootCmd.AddCommand(crawlCmd)
}
