package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X github.com/uascope/uascope/cmd.uascopeVersion=x.y.z"
var uascopeVersion = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the uascope version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "uascope version %s\n", uascopeVersion)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
