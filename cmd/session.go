package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/uascope/uascope/pkg/client"
)

// connectSession establishes a session using the effective connection
// settings. Secure policies get a client certificate from the trust
// store, generating one on first use.
func connectSession(ctx context.Context) (*client.Client, error) {
	conn := cfg.Connection
	if conn.SecurityPolicy != "" && conn.SecurityPolicy != "None" && conn.CertFile == "" {
		store := client.NewTrustStore(cfg.PKIDir)
		if err := store.EnsureLayout(); err != nil {
			return nil, err
		}
		certFile, keyFile, err := store.EnsureClientCertificate()
		if err != nil {
			return nil, fmt.Errorf("failed to prepare client certificate: %w", err)
		}
		conn.CertFile, conn.KeyFile = certFile, keyFile
	}
	return client.Connect(ctx, conn, logger)
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
