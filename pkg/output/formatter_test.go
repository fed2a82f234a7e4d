package output

import (
	"strings"
	"testing"
	"time"
)

type row struct {
	Name     string
	Port     int
	Duration time.Duration
}

func TestTableFormatterSlice(t *testing.T) {
	f := NewFormatter("table")
	out := f.Format([]row{
		{Name: "alpha", Port: 4840, Duration: 1500 * time.Microsecond},
		{Name: "beta", Port: 48010, Duration: 2 * time.Second},
	})

	if !strings.Contains(out, "NAME") || !strings.Contains(out, "PORT") {
		t.Errorf("expected uppercased headers, got: %s", out)
	}
	if !strings.Contains(out, "alpha") || !strings.Contains(out, "48010") {
		t.Errorf("expected row values, got: %s", out)
	}
	if !strings.Contains(out, "2ms") {
		t.Errorf("expected rounded duration, got: %s", out)
	}
}

func TestTableFormatterEmptySlice(t *testing.T) {
	f := NewFormatter("table")
	if out := f.Format([]row{}); out != "No results.\n" {
		t.Errorf("unexpected empty output: %q", out)
	}
}

func TestTableFormatterStruct(t *testing.T) {
	f := NewFormatter("table")
	out := f.Format(row{Name: "single", Port: 4840})
	if !strings.Contains(out, "Name:") || !strings.Contains(out, "single") {
		t.Errorf("unexpected struct output: %s", out)
	}
}

func TestJSONFormatter(t *testing.T) {
	f := NewFormatter("json")
	out := f.Format([]row{{Name: "alpha", Port: 4840}})
	if !strings.Contains(out, `"Name": "alpha"`) {
		t.Errorf("unexpected json output: %s", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("json output must end with a newline")
	}
}

func TestYAMLFormatter(t *testing.T) {
	f := NewFormatter("yaml")
	out := f.Format([]row{{Name: "alpha", Port: 4840}})
	if !strings.Contains(out, "name: alpha") {
		t.Errorf("unexpected yaml output: %s", out)
	}
}

func TestNewFormatterDefaultsToTable(t *testing.T) {
	if _, ok := NewFormatter("bogus").(*TableFormatter); !ok {
		t.Error("unknown format must fall back to table")
	}
}
