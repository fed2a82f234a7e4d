package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uascope/uascope/pkg/client"
)

// cleanCertPath cleans path and rejects characters that could be used
// for path injection. The directory itself is not restricted.
func cleanCertPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("certificate path must not be empty")
	}
	if strings.ContainsAny(path, "\x00") {
		return "", fmt.Errorf("certificate path contains null byte")
	}
	return filepath.Clean(path), nil
}

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Manage the certificate trust store",
	Long:  "List, trust, and remove server certificates, and generate the client's own certificate.",
}

var certListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trusted and rejected certificates",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := client.NewTrustStore(cfg.PKIDir)
		type certRow struct {
			Status string `json:"status" yaml:"status"`
			Name   string `json:"name" yaml:"name"`
			Path   string `json:"path" yaml:"path"`
		}
		var rows []certRow
		for _, c := range store.ListTrusted() {
			rows = append(rows, certRow{Status: "trusted", Name: c.Name, Path: c.Path})
		}
		for _, c := range store.ListRejected() {
			rows = append(rows, certRow{Status: "rejected", Name: c.Name, Path: c.Path})
		}
		if own, ok := store.ClientCertificate(); ok {
			rows = append(rows, certRow{Status: "own", Name: own.Name, Path: own.Path})
		}
		if len(rows) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "trust store is empty")
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(rows))
		return nil
	},
}

var certTrustCmd = &cobra.Command{
	Use:   "trust <cert-file>",
	Short: "Move a rejected certificate into the trusted set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cleanCertPath(args[0])
		if err != nil {
			return err
		}
		store := client.NewTrustStore(cfg.PKIDir)
		if err := store.Trust(path); err != nil {
			return fmt.Errorf("failed to trust certificate: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "trusted %s\n", path)
		return nil
	},
}

var certDeleteCmd = &cobra.Command{
	Use:   "delete <cert-file>",
	Short: "Remove a certificate from the trust store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cleanCertPath(args[0])
		if err != nil {
			return err
		}
		store := client.NewTrustStore(cfg.PKIDir)
		if err := store.Delete(path); err != nil {
			return fmt.Errorf("failed to delete certificate: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", path)
		return nil
	},
}

var certGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the client's own self-signed certificate",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := client.NewTrustStore(cfg.PKIDir)
		if err := store.EnsureLayout(); err != nil {
			return fmt.Errorf("failed to create trust store layout: %w", err)
		}
		certFile, keyFile, err := store.EnsureClientCertificate()
		if err != nil {
			return fmt.Errorf("failed to generate certificate: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "certificate: %s\nprivate key: %s\n", certFile, keyFile)
		return nil
	},
}

func init() {
	certCmd.AddCommand(certListCmd)
	certCmd.AddCommand(certTrustCmd)
	certCmd.AddCommand(certDeleteCmd)
	certCmd.AddCommand(certGenerateCmd)
	rootCmd.AddCommand(certCmd)
}
