package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
)

// EndpointInfo summarizes one server-advertised endpoint.
type EndpointInfo struct {
	URL            string   `json:"endpoint_url" yaml:"endpoint_url"`
	SecurityPolicy string   `json:"security_policy" yaml:"security_policy"`
	SecurityMode   string   `json:"security_mode" yaml:"security_mode"`
	HasCertificate bool     `json:"has_certificate" yaml:"has_certificate"`
	UserTokens     []string `json:"user_tokens" yaml:"user_tokens"`
}

// AllowsAnonymous reports whether the endpoint accepts anonymous tokens.
func (e EndpointInfo) AllowsAnonymous() bool {
	for _, t := range e.UserTokens {
		if strings.Contains(strings.ToLower(t), "anonymous") {
			return true
		}
	}
	return false
}

// DiscoverEndpoints asks the server at discoveryURL for its endpoint
// list. This is a sessionless service call; no Client is needed.
func DiscoverEndpoints(ctx context.Context, discoveryURL string) ([]EndpointInfo, error) {
	endpoints, err := opcua.GetEndpoints(ctx, discoveryURL)
	if err != nil {
		return nil, fmt.Errorf("get endpoints: %w", err)
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints returned from server")
	}

	infos := make([]EndpointInfo, 0, len(endpoints))
	for _, ep := range endpoints {
		info := EndpointInfo{
			URL:            ep.EndpointURL,
			SecurityPolicy: securityPolicyName(ep.SecurityPolicyURI),
			SecurityMode:   securityModeName(ep.SecurityMode),
			HasCertificate: len(ep.ServerCertificate) > 0,
		}
		for _, tok := range ep.UserIdentityTokens {
			info.UserTokens = append(info.UserTokens, fmt.Sprintf("%s (%s)", tokenTypeName(tok.TokenType), tok.PolicyID))
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// securityPolicyName shortens a policy URI to its trailing segment,
// e.g. ".../SecurityPolicy#Basic256Sha256" to "Basic256Sha256".
func securityPolicyName(uri string) string {
	if i := strings.LastIndexByte(uri, '#'); i >= 0 {
		return uri[i+1:]
	}
	if i := strings.LastIndexByte(uri, '/'); i >= 0 {
		return uri[i+1:]
	}
	if uri == "" {
		return "None"
	}
	return uri
}

func tokenTypeName(t ua.UserTokenType) string {
	switch t {
	case ua.UserTokenTypeAnonymous:
		return "Anonymous"
	case ua.UserTokenTypeUserName:
		return "UserName"
	case ua.UserTokenTypeCertificate:
		return "Certificate"
	case ua.UserTokenTypeIssuedToken:
		return "IssuedToken"
	default:
		return "Unknown"
	}
}
