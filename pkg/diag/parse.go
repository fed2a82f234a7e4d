package diag

import (
	"fmt"
	"strconv"
	"strings"
)

// Scheme is the only URL scheme accepted for diagnostic targets.
const Scheme = "opc.tcp://"

// Parsed is the structured form of a free-form diagnostic target string.
type Parsed struct {
	// Host is the extracted IP address or hostname. IPv6 hosts keep
	// their brackets ("[::1]").
	Host string
	// Port is the extracted port, or 0 when the input did not carry one.
	Port int
	// HadScheme reports whether the input started with opc.tcp://.
	HadScheme bool
	// Errors collects validation failures; empty for valid input.
	Errors []string
}

// Valid reports whether the target parsed cleanly into a usable host.
func (p Parsed) Valid() bool {
	return len(p.Errors) == 0 && p.Host != ""
}

// HasPort reports whether the input carried an explicit port.
func (p Parsed) HasPort() bool {
	return p.Port != 0
}

// URL builds an opc.tcp endpoint URL for the parsed host and the given port.
func (p Parsed) URL(port int) string {
	return fmt.Sprintf("%s%s:%d", Scheme, p.Host, port)
}

// ParseTarget parses a free-form server address into host and port.
//
// Accepted forms:
//
//	192.168.1.100
//	myserver.local:4840
//	opc.tcp://myserver.local:4840/UA/Server
//	[::1]:4840
//
// Any scheme other than opc.tcp:// is a validation error, as is an
// empty host. A non-numeric segment after the last colon is treated as
// part of the host rather than a port.
func ParseTarget(input string) Parsed {
	var p Parsed

	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		p.Errors = append(p.Errors, "input cannot be empty")
		return p
	}

	rest := trimmed
	if strings.HasPrefix(trimmed, Scheme) {
		p.HadScheme = true
		rest = strings.TrimPrefix(trimmed, Scheme)
	} else if strings.Contains(trimmed, "://") {
		p.Errors = append(p.Errors, "only opc.tcp:// scheme is supported")
		return p
	}

	// Drop any path component.
	hostPort := rest
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		hostPort = rest[:i]
	}

	if strings.HasPrefix(hostPort, "[") {
		// Bracketed IPv6: [addr] or [addr]:port.
		end := strings.IndexByte(hostPort, ']')
		if end < 0 {
			p.Errors = append(p.Errors, "invalid IPv6 address format")
			return p
		}
		p.Host = hostPort[:end+1]
		after := hostPort[end+1:]
		if portStr, ok := strings.CutPrefix(after, ":"); ok {
			port, err := parsePort(portStr)
			if err != nil {
				p.Errors = append(p.Errors, err.Error())
			} else {
				p.Port = port
			}
		}
	} else if i := strings.LastIndexByte(hostPort, ':'); i >= 0 {
		if port, err := parsePort(hostPort[i+1:]); err == nil {
			p.Port = port
			p.Host = hostPort[:i]
		} else {
			// Not a port; keep the whole string as the host.
			p.Host = hostPort
		}
	} else {
		p.Host = hostPort
	}

	if p.Host == "" {
		p.Errors = append(p.Errors, "host cannot be empty")
	}
	return p
}

func parsePort(s string) (int, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid port: %s", s)
	}
	return int(n), nil
}
