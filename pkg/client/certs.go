package client

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// TrustStore manages the on-disk PKI layout used by the session:
//
//	pki/own            client certificate
//	pki/private        client private key
//	pki/trusted/certs  server certificates the user accepted
//	pki/rejected/certs server certificates awaiting a decision
//
// The core only ensures this layout exists before connecting; trust
// decisions themselves are made through the cert subcommands.
type TrustStore struct {
	root string
}

// CertInfo identifies one certificate file in the store.
type CertInfo struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

// NewTrustStore returns a store rooted at dir.
func NewTrustStore(dir string) *TrustStore {
	return &TrustStore{root: dir}
}

// Root returns the pki directory path.
func (t *TrustStore) Root() string { return t.root }

func (t *TrustStore) ownDir() string      { return filepath.Join(t.root, "own") }
func (t *TrustStore) privateDir() string  { return filepath.Join(t.root, "private") }
func (t *TrustStore) trustedDir() string  { return filepath.Join(t.root, "trusted", "certs") }
func (t *TrustStore) rejectedDir() string { return filepath.Join(t.root, "rejected", "certs") }

// EnsureLayout creates the directory structure if missing.
func (t *TrustStore) EnsureLayout() error {
	for _, dir := range []string{t.ownDir(), t.privateDir(), t.trustedDir(), t.rejectedDir()} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create pki directory %s: %w", dir, err)
		}
	}
	return nil
}

func listCerts(dir string) []CertInfo {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var certs []CertInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".der", ".crt", ".pem":
			certs = append(certs, CertInfo{Name: e.Name(), Path: filepath.Join(dir, e.Name())})
		}
	}
	return certs
}

// ListTrusted returns the accepted server certificates.
func (t *TrustStore) ListTrusted() []CertInfo { return listCerts(t.trustedDir()) }

// ListRejected returns the server certificates awaiting a decision.
func (t *TrustStore) ListRejected() []CertInfo { return listCerts(t.rejectedDir()) }

// ClientCertificate returns the client's own certificate, if present.
func (t *TrustStore) ClientCertificate() (CertInfo, bool) {
	for _, name := range []string{"cert.pem", "cert.der", "client.pem", "client.der"} {
		p := filepath.Join(t.ownDir(), name)
		if _, err := os.Stat(p); err == nil {
			return CertInfo{Name: name, Path: p}, true
		}
	}
	return CertInfo{}, false
}

// Trust moves a rejected certificate into the trusted directory.
func (t *TrustStore) Trust(certPath string) error {
	if _, err := os.Stat(certPath); err != nil {
		return fmt.Errorf("certificate not found: %w", err)
	}
	dest := filepath.Join(t.trustedDir(), filepath.Base(certPath))
	if err := os.Rename(certPath, dest); err != nil {
		return fmt.Errorf("move certificate to trusted: %w", err)
	}
	return nil
}

// Delete removes a certificate file from the store.
func (t *TrustStore) Delete(certPath string) error {
	if err := os.Remove(certPath); err != nil {
		return fmt.Errorf("delete certificate: %w", err)
	}
	return nil
}

// EnsureClientCertificate loads or generates the self-signed client
// certificate required when the security policy is not None. Returns
// the cert and key PEM paths.
func (t *TrustStore) EnsureClientCertificate() (certFile, keyFile string, err error) {
	certFile = filepath.Join(t.ownDir(), "cert.pem")
	keyFile = filepath.Join(t.privateDir(), "key.pem")

	if _, err := os.Stat(certFile); err == nil {
		if _, err := os.Stat(keyFile); err == nil {
			return certFile, keyFile, nil
		}
	}
	if err := t.EnsureLayout(); err != nil {
		return "", "", err
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", "", fmt.Errorf("generate RSA key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return "", "", fmt.Errorf("generate serial number: %w", err)
	}

	appURI, _ := url.Parse(applicationURI)
	hostname, _ := os.Hostname()
	dnsNames := []string{"localhost"}
	if hostname != "" && hostname != "localhost" {
		dnsNames = append(dnsNames, hostname)
	}

	// SubjectKeyIdentifier per RFC 5280 method 1.
	pubKeyBytes := x509.MarshalPKCS1PublicKey(&key.PublicKey)
	ski := sha1.Sum(pubKeyBytes)

	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   applicationName,
			Organization: []string{applicationName},
		},
		NotBefore: time.Now().Add(-24 * time.Hour),
		NotAfter:  time.Now().Add(10 * 365 * 24 * time.Hour),

		KeyUsage: x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment |
			x509.KeyUsageKeyEncipherment | x509.KeyUsageDataEncipherment |
			x509.KeyUsageCertSign,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},

		BasicConstraintsValid: true,

		// SAN must carry the ApplicationURI (OPC UA Part 6).
		URIs:        []*url.URL{appURI},
		DNSNames:    dnsNames,
		IPAddresses: []net.IP{net.IPv4(127, 0, 0, 1)},

		SubjectKeyId:   ski[:],
		AuthorityKeyId: ski[:],
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return "", "", fmt.Errorf("create certificate: %w", err)
	}

	certOut, err := os.Create(certFile)
	if err != nil {
		return "", "", fmt.Errorf("create cert file: %w", err)
	}
	defer certOut.Close()
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		return "", "", fmt.Errorf("encode cert PEM: %w", err)
	}

	keyOut, err := os.OpenFile(keyFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", "", fmt.Errorf("create key file: %w", err)
	}
	defer keyOut.Close()
	if err := pem.Encode(keyOut, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}); err != nil {
		return "", "", fmt.Errorf("encode key PEM: %w", err)
	}

	return certFile, keyFile, nil
}
