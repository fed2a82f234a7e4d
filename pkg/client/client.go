// Package client wraps the gopcua session library behind the small
// surface the rest of uascope needs: connect, browse, subscribe,
// monitor, and endpoint discovery. One Client owns at most one live
// session and at most one subscription.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
	"go.uber.org/zap"
)

const (
	applicationName = "uascope"
	applicationURI  = "urn:uascope:diagnostic"

	connectTimeout = 30 * time.Second
)

// ErrNotConnected is returned by Slot operations when no session is live.
var ErrNotConnected = errors.New("not connected")

// AuthMethod selects how the session authenticates against the server.
type AuthMethod struct {
	// Type is "anonymous" or "username".
	Type     string `yaml:"type"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// Config describes one connection attempt.
type Config struct {
	// EndpointURL is the opc.tcp:// address of the server.
	EndpointURL string `yaml:"endpoint_url"`
	// SecurityPolicy is one of None, Basic128Rsa15, Basic256,
	// Basic256Sha256, Aes128_Sha256_RsaOaep, Aes256_Sha256_RsaPss.
	// Empty selects the most secure endpoint the server offers.
	SecurityPolicy string `yaml:"security_policy"`
	// SecurityMode is one of None, Sign, SignAndEncrypt.
	SecurityMode string `yaml:"security_mode"`
	// Auth selects the identity token.
	Auth AuthMethod `yaml:"auth"`
	// CertFile and KeyFile hold the client certificate used when the
	// selected policy is not None.
	CertFile string `yaml:"cert_file,omitempty"`
	KeyFile  string `yaml:"key_file,omitempty"`
}

// Client is a live session against one OPC-UA server.
type Client struct {
	c        *opcua.Client
	endpoint string
	log      *zap.Logger

	mu  sync.Mutex
	sub *opcua.Subscription
}

// Connect discovers the server's endpoints, selects one matching the
// configured policy and mode, and establishes a session. It blocks
// until the handshake completes or ctx is done.
func Connect(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("connecting", zap.String("endpoint", cfg.EndpointURL))

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	endpoints, err := opcua.GetEndpoints(ctx, cfg.EndpointURL)
	if err != nil {
		return nil, fmt.Errorf("get endpoints: %w", err)
	}

	ep := selectEndpoint(endpoints, cfg.SecurityPolicy, cfg.SecurityMode)
	if ep == nil {
		return nil, fmt.Errorf("no matching endpoint for policy=%s mode=%s", cfg.SecurityPolicy, cfg.SecurityMode)
	}
	log.Info("selected endpoint",
		zap.String("policy", ep.SecurityPolicyURI),
		zap.String("mode", securityModeName(ep.SecurityMode)))

	opts := []opcua.Option{
		opcua.SecurityFromEndpoint(ep, tokenType(cfg.Auth)),
		opcua.ApplicationURI(applicationURI),
		opcua.AutoReconnect(true),
		opcua.ReconnectInterval(10 * time.Second),
	}
	if cfg.Auth.Type == "username" {
		opts = append(opts, opcua.AuthUsername(cfg.Auth.Username, cfg.Auth.Password))
	}
	if ep.SecurityPolicyURI != ua.SecurityPolicyURINone && cfg.CertFile != "" {
		opts = append(opts,
			opcua.CertificateFile(cfg.CertFile),
			opcua.PrivateKeyFile(cfg.KeyFile),
		)
	}

	// Servers sometimes advertise an internal hostname; prefer the
	// address the user actually typed.
	connectURL := ep.EndpointURL
	if connectURL != cfg.EndpointURL {
		log.Debug("overriding advertised endpoint",
			zap.String("advertised", ep.EndpointURL),
			zap.String("using", cfg.EndpointURL))
		connectURL = cfg.EndpointURL
	}

	c, err := opcua.NewClient(connectURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	log.Info("session established", zap.String("endpoint", cfg.EndpointURL))
	return &Client{c: c, endpoint: cfg.EndpointURL, log: log}, nil
}

// Endpoint returns the URL this session was established against.
func (c *Client) Endpoint() string { return c.endpoint }

// Connected reports true liveness of the secure channel, not merely
// the existence of the session object.
func (c *Client) Connected() bool {
	return c.c.State() == opcua.Connected
}

// Close tears the session down. Safe to call on an already-broken
// session; errors are logged, not returned.
func (c *Client) Close(ctx context.Context) {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	if sub != nil {
		if err := sub.Cancel(ctx); err != nil {
			c.log.Debug("cancel subscription", zap.Error(err))
		}
	}
	if err := c.c.Close(ctx); err != nil {
		c.log.Debug("close session", zap.Error(err))
	}
	c.log.Info("disconnected", zap.String("endpoint", c.endpoint))
}

func tokenType(a AuthMethod) ua.UserTokenType {
	switch a.Type {
	case "username":
		return ua.UserTokenTypeUserName
	case "certificate":
		return ua.UserTokenTypeCertificate
	default:
		return ua.UserTokenTypeAnonymous
	}
}

// selectEndpoint picks the server endpoint matching the requested
// policy and mode. An empty policy selects the most secure endpoint.
func selectEndpoint(endpoints []*ua.EndpointDescription, policy, mode string) *ua.EndpointDescription {
	policyURIs := map[string]string{
		"none":                  ua.SecurityPolicyURINone,
		"basic128rsa15":         ua.SecurityPolicyURIBasic128Rsa15,
		"basic256":              ua.SecurityPolicyURIBasic256,
		"basic256sha256":        ua.SecurityPolicyURIBasic256Sha256,
		"aes128_sha256_rsaoaep": ua.SecurityPolicyURIAes128Sha256RsaOaep,
		"aes256_sha256_rsapss":  ua.SecurityPolicyURIAes256Sha256RsaPss,
		"":                      "",
	}
	targetURI := policyURIs[strings.ToLower(policy)]

	var targetMode ua.MessageSecurityMode
	switch strings.ToLower(mode) {
	case "sign":
		targetMode = ua.MessageSecurityModeSign
	case "signandencrypt":
		targetMode = ua.MessageSecurityModeSignAndEncrypt
	}

	if targetURI == "" {
		var best *ua.EndpointDescription
		for _, ep := range endpoints {
			if best == nil || ep.SecurityMode > best.SecurityMode {
				best = ep
			}
		}
		return best
	}

	for _, ep := range endpoints {
		if ep.SecurityPolicyURI == targetURI {
			if targetMode == 0 || ep.SecurityMode == targetMode {
				return ep
			}
		}
	}
	for _, ep := range endpoints {
		if ep.SecurityPolicyURI == targetURI {
			return ep
		}
	}
	return nil
}

func securityModeName(mode ua.MessageSecurityMode) string {
	switch mode {
	case ua.MessageSecurityModeNone:
		return "None"
	case ua.MessageSecurityModeSign:
		return "Sign"
	case ua.MessageSecurityModeSignAndEncrypt:
		return "SignAndEncrypt"
	default:
		return fmt.Sprintf("Unknown(%d)", mode)
	}
}

// Slot is the reader/writer-shared holder for the single live session.
// Browse and probe operations borrow it read-locked; connect and
// disconnect replace or clear it write-locked. The raw *Client never
// escapes a borrow.
type Slot struct {
	mu sync.RWMutex
	c  *Client
}

// With borrows the session read-locked for the duration of fn.
// Returns ErrNotConnected when the slot is empty.
func (s *Slot) With(fn func(*Client) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.c == nil {
		return ErrNotConnected
	}
	return fn(s.c)
}

// Replace stores a freshly connected session and returns the previous
// one, if any, so the caller can tear it down outside the lock.
func (s *Slot) Replace(c *Client) *Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.c
	s.c = c
	return old
}

// Take clears the slot and returns the session that was held.
func (s *Slot) Take() *Client {
	return s.Replace(nil)
}

// Alive reports whether a session is present and its channel is up.
// This is the periodic liveness probe: ordinary service calls do not
// proactively surface a silent disconnect.
func (s *Slot) Alive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c != nil && s.c.Connected()
}
