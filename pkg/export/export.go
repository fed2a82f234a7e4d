// Package export writes watchlist snapshots and crawl results to CSV
// and JSON files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/uascope/uascope/pkg/client"
	"github.com/uascope/uascope/pkg/watch"
)

type watchRow struct {
	Name      string `json:"name"`
	NodeID    string `json:"node_id"`
	Value     string `json:"value"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func watchRows(items []*watch.Item) []watchRow {
	rows := make([]watchRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, watchRow{
			Name:      it.DisplayName,
			NodeID:    it.NodeID,
			Value:     it.ValueString(),
			Status:    it.Status.Error(),
			Timestamp: it.TimestampString(),
		})
	}
	return rows
}

// WatchlistCSV writes the watchlist to a CSV file with a header row.
func WatchlistCSV(items []*watch.Item, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"name", "node_id", "value", "status", "timestamp"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range watchRows(items) {
		if err := w.Write([]string{r.Name, r.NodeID, r.Value, r.Status, r.Timestamp}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// WatchlistJSON writes the watchlist to an indented JSON file.
func WatchlistJSON(items []*watch.Item, path string) error {
	return writeJSON(watchRows(items), path)
}

type crawlRow struct {
	NodeID      string `json:"node_id"`
	BrowseName  string `json:"browse_name"`
	DisplayName string `json:"display_name"`
	NodeClass   string `json:"node_class"`
}

func crawlRows(nodes []client.Node) []crawlRow {
	rows := make([]crawlRow, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, crawlRow{
			NodeID:      n.ID,
			BrowseName:  n.BrowseName,
			DisplayName: n.DisplayName,
			NodeClass:   n.ClassName(),
		})
	}
	return rows
}

// CrawlCSV writes crawl results to a CSV file with a header row.
func CrawlCSV(nodes []client.Node, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"node_id", "browse_name", "display_name", "node_class"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range crawlRows(nodes) {
		if err := w.Write([]string{r.NodeID, r.BrowseName, r.DisplayName, r.NodeClass}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// CrawlJSON writes crawl results to an indented JSON file.
func CrawlJSON(nodes []client.Node, path string) error {
	return writeJSON(crawlRows(nodes), path)
}

func writeJSON(v any, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
