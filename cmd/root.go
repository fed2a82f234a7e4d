package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uascope/uascope/pkg/config"
	"github.com/uascope/uascope/pkg/logging"
	"github.com/uascope/uascope/pkg/output"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
	endpointFlag string
	bookmarkFlag string
	logFileFlag  string
	verboseFlag  bool

	// Shared state set during PersistentPreRun
	cfg       *config.Config
	bookmarks *config.Bookmarks
	formatter output.Formatter
	logger    *zap.Logger
)

// rootCmd is the base command for uascope.
var rootCmd = &cobra.Command{
	Use:   "uascope",
	Short: "OPC UA diagnostic client — browse, watch, crawl, and diagnose servers",
	Long: `uascope is a diagnostic client for OPC UA servers. It connects to a
server, browses and crawls the address space, subscribes to live data
changes, and runs a staged connectivity diagnosis against hosts that
are not responding.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load configuration
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		bookmarks, err = config.LoadBookmarks(config.BookmarksPath())
		if err != nil {
			return fmt.Errorf("failed to load bookmarks: %w", err)
		}

		// Override config with flags
		if bookmarkFlag != "" {
			bm, ok := bookmarks.Find(bookmarkFlag)
			if !ok {
				return fmt.Errorf("unknown bookmark %q", bookmarkFlag)
			}
			cfg.Connection = bm.Connection
		}
		if endpointFlag != "" {
			cfg.Connection.EndpointURL = endpointFlag
		}
		if outputFormat != "" {
			cfg.OutputFormat = outputFormat
		}
		if logFileFlag != "" {
			cfg.LogFile = logFileFlag
		}

		formatter = output.NewFormatter(cfg.OutputFormat)

		logger, err = logging.New(cfg.LogFile, verboseFlag)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// SetFormatter allows tests to inject a formatter.
func SetFormatter(f output.Formatter) {
	formatter = f
}

// RootCmd returns the root cobra.Command for testing purposes.
func RootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.uascope/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: table, json, yaml (default \"table\")")
	rootCmd.PersistentFlags().StringVarP(&endpointFlag, "endpoint", "e", "", "OPC UA endpoint URL (opc.tcp://host:port)")
	rootCmd.PersistentFlags().StringVarP(&bookmarkFlag, "bookmark", "b", "", "load connection settings from a saved bookmark")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "write structured logs to this file")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
}
