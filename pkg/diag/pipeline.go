// Package diag implements the staged reachability check for a server
// address: parse, resolve, port scan, endpoint discovery. Each stage
// streams its progress before the next one runs, and the pipeline
// fails fast on everything except endpoint discovery, which only
// downgrades to a warning.
package diag

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uascope/uascope/pkg/client"
)

// CommonPorts are the well-known OPC-UA ports scanned when the target
// does not name one.
var CommonPorts = []int{4840, 4841, 4842, 4843, 48010, 48020, 62541}

// DialTimeout bounds each TCP connect attempt during the port scan.
const DialTimeout = 2 * time.Second

// resolvePort is the placeholder port used for address resolution only.
const resolvePort = "4840"

// StepID identifies one pipeline stage.
type StepID int

const (
	StepValidateInput StepID = iota
	StepResolveDNS
	StepScanPorts
	StepDiscoverEndpoints
)

// String returns the stage name used in step output.
func (s StepID) String() string {
	switch s {
	case StepValidateInput:
		return "validate input"
	case StepResolveDNS:
		return "resolve DNS"
	case StepScanPorts:
		return "scan ports"
	case StepDiscoverEndpoints:
		return "discover endpoints"
	default:
		return "unknown"
	}
}

// Status is the lifecycle of one step.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusSuccess
	StatusWarning
	StatusFailed
)

// String renders the status for step output.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusWarning:
		return "warning"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Step is one stage's current state. A later Step for the same ID
// replaces the earlier one in any visible log; the terminal Result is
// authoritative.
type Step struct {
	ID       StepID        `json:"id" yaml:"id"`
	Name     string        `json:"name" yaml:"name"`
	Status   Status        `json:"status" yaml:"status"`
	Details  string        `json:"details" yaml:"details"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

func step(id StepID) Step {
	return Step{ID: id, Name: id.String(), Status: StatusPending}
}

func (s Step) running(details string) Step {
	s.Status = StatusRunning
	s.Details = details
	return s
}

func (s Step) success(details string, d time.Duration) Step {
	s.Status = StatusSuccess
	s.Details = details
	s.Duration = d
	return s
}

func (s Step) warning(details string, d time.Duration) Step {
	s.Status = StatusWarning
	s.Details = details
	s.Duration = d
	return s
}

func (s Step) failed(details string, d time.Duration) Step {
	s.Status = StatusFailed
	s.Details = details
	s.Duration = d
	return s
}

// PortScan records the outcome for one candidate port.
type PortScan struct {
	Port int  `json:"port" yaml:"port"`
	Open bool `json:"open" yaml:"open"`
}

// Result is the terminal value of one diagnostic run.
type Result struct {
	// RunID correlates streamed steps with this result.
	RunID string `json:"run_id" yaml:"run_id"`
	// Steps holds the stages that actually executed, in order.
	Steps []Step `json:"steps" yaml:"steps"`
	// OverallSuccess is true only when endpoint discovery succeeded.
	OverallSuccess bool `json:"overall_success" yaml:"overall_success"`
	// OpenPorts lists every scanned port with its open/closed flag.
	OpenPorts []PortScan `json:"open_ports" yaml:"open_ports"`
	// RecommendedURL is the first discovered endpoint's URL, if any.
	RecommendedURL string `json:"recommended_url,omitempty" yaml:"recommended_url,omitempty"`
	// Endpoints holds every endpoint from the first responsive port.
	Endpoints []client.EndpointInfo `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	// TotalDuration is measured end-to-end regardless of where the
	// pipeline stopped.
	TotalDuration time.Duration `json:"total_duration" yaml:"total_duration"`
}

// DiscoverFunc performs application-level endpoint discovery against a
// URL. Pipeline defaults to client.DiscoverEndpoints; tests substitute.
type DiscoverFunc func(ctx context.Context, url string) ([]client.EndpointInfo, error)

// DialFunc opens a TCP connection with a fixed timeout. The default is
// net.DialTimeout; an in-flight attempt deliberately runs to completion
// before cancellation is observed.
type DialFunc func(network, addr string, timeout time.Duration) (net.Conn, error)

// Pipeline runs diagnostics against free-form server addresses.
// The zero value is not usable; call NewPipeline.
type Pipeline struct {
	discover DiscoverFunc
	dial     DialFunc
	log      *zap.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithDiscover substitutes the endpoint discovery call.
func WithDiscover(fn DiscoverFunc) Option {
	return func(p *Pipeline) { p.discover = fn }
}

// WithDial substitutes the TCP dialer used by the port scan.
func WithDial(fn DialFunc) Option {
	return func(p *Pipeline) { p.dial = fn }
}

// NewPipeline returns a Pipeline logging to log (nil for none).
func NewPipeline(log *zap.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{
		discover: client.DiscoverEndpoints,
		dial:     net.DialTimeout,
		log:      log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the four stages against input, calling emit for every
// step update before the terminal Result is returned. Cancellation is
// observed between steps and between port attempts only.
func (p *Pipeline) Run(ctx context.Context, input string, emit func(Step)) Result {
	if emit == nil {
		emit = func(Step) {}
	}
	began := time.Now()
	result := Result{RunID: uuid.NewString()}
	finish := func() Result {
		result.TotalDuration = time.Since(began)
		return result
	}

	// Stage 1: validate.
	s1 := step(StepValidateInput)
	emit(s1.running("parsing target address"))

	parsed := ParseTarget(input)
	if !parsed.Valid() {
		s1 = s1.failed(strings.Join(parsed.Errors, ", "), 0)
		emit(s1)
		result.Steps = append(result.Steps, s1)
		return finish()
	}
	portNote := "any"
	if parsed.HasPort() {
		portNote = strconv.Itoa(parsed.Port)
	}
	s1 = s1.success(fmt.Sprintf("host %s, port %s", parsed.Host, portNote), 0)
	emit(s1)
	result.Steps = append(result.Steps, s1)

	if ctx.Err() != nil {
		return finish()
	}

	// Stage 2: resolve.
	s2 := step(StepResolveDNS)
	emit(s2.running(fmt.Sprintf("resolving %s", parsed.Host)))

	dnsBegan := time.Now()
	addr, err := net.ResolveTCPAddr("tcp", parsed.Host+":"+resolvePort)
	dnsTook := time.Since(dnsBegan)
	if err != nil {
		s2 = s2.failed(fmt.Sprintf("resolution failed: %v", err), dnsTook)
		emit(s2)
		result.Steps = append(result.Steps, s2)
		return finish()
	}
	resolved := addr.IP.String()
	s2 = s2.success(fmt.Sprintf("%s -> %s", parsed.Host, resolved), dnsTook)
	emit(s2)
	result.Steps = append(result.Steps, s2)

	if ctx.Err() != nil {
		return finish()
	}

	// Stage 3: scan.
	ports := CommonPorts
	if parsed.HasPort() {
		ports = []int{parsed.Port}
	}
	s3 := step(StepScanPorts)
	emit(s3.running(fmt.Sprintf("scanning ports %s", joinPorts(ports))))

	scanHost := resolved
	if scanHost == "" || scanHost == "<nil>" {
		scanHost = strings.Trim(parsed.Host, "[]")
	}
	scanBegan := time.Now()
	for _, port := range ports {
		if ctx.Err() != nil {
			break
		}
		conn, err := p.dial("tcp", net.JoinHostPort(scanHost, strconv.Itoa(port)), DialTimeout)
		open := err == nil
		if conn != nil {
			conn.Close()
		}
		result.OpenPorts = append(result.OpenPorts, PortScan{Port: port, Open: open})
		p.log.Debug("port probed", zap.Int("port", port), zap.Bool("open", open))
	}
	scanTook := time.Since(scanBegan)

	var open []int
	for _, ps := range result.OpenPorts {
		if ps.Open {
			open = append(open, ps.Port)
		}
	}
	if len(open) == 0 {
		s3 = s3.failed(fmt.Sprintf("no open ports (tested %s)", joinPorts(ports)), scanTook)
		emit(s3)
		result.Steps = append(result.Steps, s3)
		return finish()
	}
	sort.Ints(open)
	s3 = s3.success(fmt.Sprintf("open: %s", joinPorts(open)), scanTook)
	emit(s3)
	result.Steps = append(result.Steps, s3)

	if ctx.Err() != nil {
		return finish()
	}

	// Stage 4: discover.
	s4 := step(StepDiscoverEndpoints)
	emit(s4.running("querying endpoints on open ports"))

	discBegan := time.Now()
	for _, ps := range result.OpenPorts {
		if !ps.Open {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		url := parsed.URL(ps.Port)
		endpoints, err := p.discover(ctx, url)
		if err != nil || len(endpoints) == 0 {
			p.log.Debug("discovery empty", zap.String("url", url), zap.Error(err))
			continue
		}
		result.Endpoints = endpoints
		result.RecommendedURL = endpoints[0].URL
		result.OverallSuccess = true
		break
	}
	discTook := time.Since(discBegan)

	if result.OverallSuccess {
		s4 = s4.success(fmt.Sprintf("%d endpoints at %s", len(result.Endpoints), result.RecommendedURL), discTook)
	} else {
		s4 = s4.warning("no endpoints found on any open port", discTook)
	}
	emit(s4)
	result.Steps = append(result.Steps, s4)

	return finish()
}

func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}
