package diag

import "testing"

func TestParseTargetBareHost(t *testing.T) {
	p := ParseTarget("192.168.1.100")
	if !p.Valid() {
		t.Fatalf("expected valid parse, got errors: %v", p.Errors)
	}
	if p.Host != "192.168.1.100" {
		t.Errorf("expected host 192.168.1.100, got %q", p.Host)
	}
	if p.HasPort() {
		t.Errorf("expected no port, got %d", p.Port)
	}
	if p.HadScheme {
		t.Error("expected HadScheme to be false")
	}
}

func TestParseTargetHostPort(t *testing.T) {
	p := ParseTarget("myserver.local:4840")
	if !p.Valid() {
		t.Fatalf("expected valid parse, got errors: %v", p.Errors)
	}
	if p.Host != "myserver.local" {
		t.Errorf("expected host myserver.local, got %q", p.Host)
	}
	if p.Port != 4840 {
		t.Errorf("expected port 4840, got %d", p.Port)
	}
}

func TestParseTargetFullURL(t *testing.T) {
	p := ParseTarget("opc.tcp://myserver.local:4840/UA/Server")
	if !p.Valid() {
		t.Fatalf("expected valid parse, got errors: %v", p.Errors)
	}
	if !p.HadScheme {
		t.Error("expected HadScheme to be true")
	}
	if p.Host != "myserver.local" {
		t.Errorf("expected host myserver.local, got %q", p.Host)
	}
	if p.Port != 4840 {
		t.Errorf("expected port 4840, got %d", p.Port)
	}
}

func TestParseTargetRejectsOtherSchemes(t *testing.T) {
	p := ParseTarget("http://myserver.local")
	if p.Valid() {
		t.Fatal("expected http:// input to be rejected")
	}
}

func TestParseTargetRejectsEmpty(t *testing.T) {
	for _, input := range []string{"", "   "} {
		if p := ParseTarget(input); p.Valid() {
			t.Errorf("expected %q to be rejected", input)
		}
	}
}

func TestParseTargetNonNumericPortIsHost(t *testing.T) {
	// A colon followed by a non-numeric segment is part of the host,
	// not a malformed port.
	p := ParseTarget("myserver:abc")
	if !p.Valid() {
		t.Fatalf("expected valid parse, got errors: %v", p.Errors)
	}
	if p.Host != "myserver:abc" {
		t.Errorf("expected whole input as host, got %q", p.Host)
	}
	if p.HasPort() {
		t.Errorf("expected no port, got %d", p.Port)
	}
}

func TestParseTargetBracketedIPv6(t *testing.T) {
	p := ParseTarget("[::1]:4840")
	if !p.Valid() {
		t.Fatalf("expected valid parse, got errors: %v", p.Errors)
	}
	if p.Host != "[::1]" {
		t.Errorf("expected host [::1], got %q", p.Host)
	}
	if p.Port != 4840 {
		t.Errorf("expected port 4840, got %d", p.Port)
	}
	if got := p.URL(4840); got != "opc.tcp://[::1]:4840" {
		t.Errorf("unexpected URL: %q", got)
	}
}

func TestParseTargetSchemeOnly(t *testing.T) {
	p := ParseTarget("opc.tcp://")
	if p.Valid() {
		t.Fatal("expected empty host to be rejected")
	}
}

func TestParsedURL(t *testing.T) {
	p := ParseTarget("factory-7.example.com")
	if got := p.URL(48010); got != "opc.tcp://factory-7.example.com:48010" {
		t.Errorf("unexpected URL: %q", got)
	}
}

func TestParseTargetRejectsPortZero(t *testing.T) {
	p := ParseTarget("myserver:0")
	// Port 0 is not a usable port; the segment folds into the host.
	if p.HasPort() {
		t.Errorf("expected port 0 to be rejected, got %d", p.Port)
	}
}
