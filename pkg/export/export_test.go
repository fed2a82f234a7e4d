package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopcua/opcua/ua"

	"github.com/uascope/uascope/pkg/client"
	"github.com/uascope/uascope/pkg/watch"
)

func sampleItems() []*watch.Item {
	return []*watch.Item{
		{
			NodeID:      "ns=2;s=Temp",
			DisplayName: "Temperature",
			Value:       ua.MustVariant(21.5),
			Status:      ua.StatusOK,
		},
		{
			NodeID:      "ns=2;s=Mode",
			DisplayName: "Mode",
			Value:       ua.MustVariant("auto"),
			Status:      ua.StatusOK,
		},
	}
}

func TestWatchlistCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.csv")
	if err := WatchlistCSV(sampleItems(), path); err != nil {
		t.Fatalf("WatchlistCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(records))
	}
	if records[0][0] != "name" || records[0][1] != "node_id" {
		t.Errorf("unexpected header: %v", records[0])
	}
	if records[1][0] != "Temperature" || records[1][1] != "ns=2;s=Temp" {
		t.Errorf("unexpected first row: %v", records[1])
	}
	if records[2][2] != "auto" {
		t.Errorf("unexpected value cell: %v", records[2])
	}
}

func TestWatchlistJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.json")
	if err := WatchlistJSON(sampleItems(), path); err != nil {
		t.Fatalf("WatchlistJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var rows []map[string]string
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["node_id"] != "ns=2;s=Temp" {
		t.Errorf("unexpected first row: %v", rows[0])
	}
}

func TestCrawlCSV(t *testing.T) {
	nodes := []client.Node{
		{ID: "ns=2;s=Plant", BrowseName: "Plant", DisplayName: "Plant", Class: ua.NodeClassObject},
		{ID: "ns=2;s=Temp", BrowseName: "Temp", DisplayName: "Temperature", Class: ua.NodeClassVariable},
	}
	path := filepath.Join(t.TempDir(), "crawl.csv")
	if err := CrawlCSV(nodes, path); err != nil {
		t.Fatalf("CrawlCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(records))
	}
	if records[2][3] != "Variable" {
		t.Errorf("expected node class Variable, got %q", records[2][3])
	}
}

func TestCrawlJSONEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawl.json")
	if err := CrawlJSON(nil, path); err != nil {
		t.Fatalf("CrawlJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var rows []crawlRow
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected empty list, got %d", len(rows))
	}
}
