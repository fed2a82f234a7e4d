package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/uascope/uascope/pkg/client"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Connection.EndpointURL != "opc.tcp://localhost:4840" {
		t.Errorf("unexpected default endpoint: %q", cfg.Connection.EndpointURL)
	}
	if cfg.PublishInterval != 500*time.Millisecond {
		t.Errorf("unexpected default publish interval: %v", cfg.PublishInterval)
	}
	if cfg.Crawl.MaxDepth != 5 || cfg.Crawl.MaxNodes != 1000 {
		t.Errorf("unexpected default crawl limits: %+v", cfg.Crawl)
	}
	if cfg.OutputFormat != "table" {
		t.Errorf("unexpected default output format: %q", cfg.OutputFormat)
	}
}

func TestLoadFillsZeroFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "connection:\n  endpoint_url: opc.tcp://plc7:4840\ncrawl:\n  max_depth: 0\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Connection.EndpointURL != "opc.tcp://plc7:4840" {
		t.Errorf("file value lost: %q", cfg.Connection.EndpointURL)
	}
	if cfg.Crawl.MaxDepth != 5 {
		t.Errorf("zero depth must fall back to the default, got %d", cfg.Crawl.MaxDepth)
	}
	if cfg.PublishInterval != 500*time.Millisecond {
		t.Errorf("missing interval must fall back, got %v", cfg.PublishInterval)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("connection: ["), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	cfg.Connection.EndpointURL = "opc.tcp://server9:48010"
	cfg.Connection.SecurityPolicy = "Basic256Sha256"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Connection.EndpointURL != cfg.Connection.EndpointURL {
		t.Errorf("endpoint lost: %q", loaded.Connection.EndpointURL)
	}
	if loaded.Connection.SecurityPolicy != "Basic256Sha256" {
		t.Errorf("security policy lost: %q", loaded.Connection.SecurityPolicy)
	}
}

func TestBookmarks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks.yaml")

	b, err := LoadBookmarks(path)
	if err != nil {
		t.Fatalf("LoadBookmarks: %v", err)
	}
	if len(b.Entries) != 0 {
		t.Fatalf("expected empty list, got %d", len(b.Entries))
	}

	b.Add(Bookmark{Name: "plant", Connection: client.Config{EndpointURL: "opc.tcp://plant:4840"}})
	b.Add(Bookmark{Name: "lab", Connection: client.Config{EndpointURL: "opc.tcp://lab:4840"}})
	if err := b.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadBookmarks(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(loaded.Entries) != 2 {
		t.Fatalf("expected 2 bookmarks, got %d", len(loaded.Entries))
	}
	// Entries are kept sorted by name.
	if loaded.Entries[0].Name != "lab" || loaded.Entries[1].Name != "plant" {
		t.Errorf("unexpected order: %s, %s", loaded.Entries[0].Name, loaded.Entries[1].Name)
	}

	bm, ok := loaded.Find("plant")
	if !ok || bm.Connection.EndpointURL != "opc.tcp://plant:4840" {
		t.Errorf("Find(plant) = %+v, %v", bm, ok)
	}

	// Adding an existing name replaces the entry.
	loaded.Add(Bookmark{Name: "plant", Connection: client.Config{EndpointURL: "opc.tcp://plant:48010"}})
	if len(loaded.Entries) != 2 {
		t.Errorf("upsert must not duplicate, got %d entries", len(loaded.Entries))
	}
	bm, _ = loaded.Find("plant")
	if bm.Connection.EndpointURL != "opc.tcp://plant:48010" {
		t.Errorf("upsert did not replace: %q", bm.Connection.EndpointURL)
	}

	if !loaded.Remove("lab") {
		t.Error("Remove(lab) failed")
	}
	if loaded.Remove("ghost") {
		t.Error("Remove(ghost) should report false")
	}
}
