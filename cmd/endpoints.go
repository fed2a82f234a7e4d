package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uascope/uascope/pkg/client"
)

// endpointsCmd asks a server for its endpoint descriptions without
// establishing a session.
var endpointsCmd = &cobra.Command{
	Use:   "endpoints [url]",
	Short: "List the endpoints a server advertises",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := cfg.Connection.EndpointURL
		if len(args) == 1 {
			url = args[0]
		}
		if url == "" {
			return fmt.Errorf("no endpoint URL given; pass one or set --endpoint")
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		eps, err := client.DiscoverEndpoints(ctx, url)
		if err != nil {
			return fmt.Errorf("failed to discover endpoints: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(endpointRows(eps)))
		return nil
	},
}

// endpointRow is the printable shape of one endpoint description.
type endpointRow struct {
	URL        string `json:"url" yaml:"url"`
	Policy     string `json:"security_policy" yaml:"security_policy"`
	Mode       string `json:"security_mode" yaml:"security_mode"`
	UserTokens string `json:"user_tokens" yaml:"user_tokens"`
}

func endpointRows(eps []client.EndpointInfo) []endpointRow {
	rows := make([]endpointRow, 0, len(eps))
	for _, e := range eps {
		rows = append(rows, endpointRow{
			URL:        e.URL,
			Policy:     e.SecurityPolicy,
			Mode:       e.SecurityMode,
			UserTokens: strings.Join(e.UserTokens, ","),
		})
	}
	return rows
}

func init() {
	rootCmd.AddCommand(endpointsCmd)
}
