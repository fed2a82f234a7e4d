package crawl

import (
	"context"
	"fmt"
	"testing"

	"github.com/gopcua/opcua/ua"

	"github.com/uascope/uascope/pkg/client"
)

// graphBrowser serves a fixed parent-to-children map.
type graphBrowser struct {
	edges map[string][]client.Node
	calls int
}

func (g *graphBrowser) Children(ctx context.Context, nodeID string) ([]client.Node, error) {
	g.calls++
	return g.edges[nodeID], nil
}

func folder(id, name string) client.Node {
	return client.Node{ID: id, DisplayName: name, Class: ua.NodeClassObject, HasChildren: true}
}

func variable(id, name string) client.Node {
	return client.Node{ID: id, DisplayName: name, Class: ua.NodeClassVariable}
}

func TestCrawlVisitsWholeTree(t *testing.T) {
	g := &graphBrowser{edges: map[string][]client.Node{
		"i=85": {folder("ns=2;s=Plant", "Plant")},
		"ns=2;s=Plant": {
			folder("ns=2;s=Line1", "Line1"),
			variable("ns=2;s=Status", "Status"),
		},
		"ns=2;s=Line1": {variable("ns=2;s=Temp", "Temp")},
	}}

	nodes, err := Crawl(context.Background(), g, Config{StartNode: "i=85", MaxDepth: 5, MaxNodes: 100}, nil)
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	if len(nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d: %+v", len(nodes), nodes)
	}
}

func TestCrawlSurvivesCycles(t *testing.T) {
	// A references B, B references A back. Each node must be browsed
	// at most once.
	g := &graphBrowser{edges: map[string][]client.Node{
		"i=85":     {folder("ns=2;s=A", "A")},
		"ns=2;s=A": {folder("ns=2;s=B", "B")},
		"ns=2;s=B": {folder("ns=2;s=A", "A")},
	}}

	nodes, err := Crawl(context.Background(), g, Config{StartNode: "i=85", MaxDepth: 10, MaxNodes: 100}, nil)
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	// A appears twice in the results (once as a child of the root, once
	// as a child of B) but is expanded only once.
	if g.calls != 3 {
		t.Errorf("expected 3 browse calls, got %d", g.calls)
	}
	if len(nodes) != 3 {
		t.Errorf("expected 3 result rows, got %d", len(nodes))
	}
}

func TestCrawlRespectsDepth(t *testing.T) {
	// A deep chain: root -> d1 -> d2 -> d3 -> ...
	edges := map[string][]client.Node{"i=85": {folder("d1", "d1")}}
	for i := 1; i < 10; i++ {
		edges[fmt.Sprintf("d%d", i)] = []client.Node{folder(fmt.Sprintf("d%d", i+1), "x")}
	}
	g := &graphBrowser{edges: edges}

	nodes, err := Crawl(context.Background(), g, Config{StartNode: "i=85", MaxDepth: 3, MaxNodes: 100}, nil)
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	// Depth 0 yields d1, depth 1 yields d2, depth 2 yields d3; d3 sits
	// at depth 3 and is not expanded.
	if len(nodes) != 3 {
		t.Errorf("expected 3 nodes, got %d", len(nodes))
	}
}

func TestCrawlNodeBound(t *testing.T) {
	// One flat folder with 50 children and a cap of 10: the level stops
	// at the cap instead of keeping the whole sibling batch.
	var kids []client.Node
	for i := 0; i < 50; i++ {
		kids = append(kids, variable(fmt.Sprintf("v%d", i), "v"))
	}
	g := &graphBrowser{edges: map[string][]client.Node{"i=85": kids}}

	nodes, err := Crawl(context.Background(), g, Config{StartNode: "i=85", MaxDepth: 5, MaxNodes: 10}, nil)
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	if len(nodes) != 10 {
		t.Errorf("expected exactly 10 nodes, got %d", len(nodes))
	}
	if g.calls != 1 {
		t.Errorf("expected 1 browse call, got %d", g.calls)
	}
}

func TestCrawlNodeBoundStopsExpansion(t *testing.T) {
	// Container children past the cap must not be expanded either.
	var kids []client.Node
	for i := 0; i < 20; i++ {
		kids = append(kids, folder(fmt.Sprintf("k%d", i), "k"))
	}
	g := &graphBrowser{edges: map[string][]client.Node{"i=85": kids}}
	for i := 0; i < 20; i++ {
		g.edges[fmt.Sprintf("k%d", i)] = []client.Node{variable(fmt.Sprintf("v%d", i), "v")}
	}

	nodes, err := Crawl(context.Background(), g, Config{StartNode: "i=85", MaxDepth: 5, MaxNodes: 10}, nil)
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	if len(nodes) != 10 {
		t.Errorf("expected exactly 10 nodes, got %d", len(nodes))
	}
	if g.calls != 1 {
		t.Errorf("expected 1 browse call, got %d", g.calls)
	}
}

func TestCrawlCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := &graphBrowser{edges: map[string][]client.Node{"i=85": {folder("a", "a")}}}
	nodes, err := Crawl(ctx, g, Config{StartNode: "i=85", MaxDepth: 5, MaxNodes: 100}, nil)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("expected no nodes on immediate cancel, got %d", len(nodes))
	}
	if g.calls != 0 {
		t.Errorf("expected no browse calls, got %d", g.calls)
	}
}

type failingBrowser struct {
	graphBrowser
	failOn string
}

func (f *failingBrowser) Children(ctx context.Context, nodeID string) ([]client.Node, error) {
	if nodeID == f.failOn {
		return nil, fmt.Errorf("BadNodeIdUnknown")
	}
	return f.graphBrowser.Children(ctx, nodeID)
}

func TestCrawlSkipsFailingNodes(t *testing.T) {
	f := &failingBrowser{
		graphBrowser: graphBrowser{edges: map[string][]client.Node{
			"i=85": {folder("bad", "bad"), folder("good", "good")},
			"good": {variable("v1", "v1")},
		}},
		failOn: "bad",
	}

	nodes, err := Crawl(context.Background(), f, Config{StartNode: "i=85", MaxDepth: 5, MaxNodes: 100}, nil)
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	// bad and good both appear as children of the root; only good's
	// subtree contributes more.
	if len(nodes) != 3 {
		t.Errorf("expected 3 nodes, got %d", len(nodes))
	}
}

func TestCrawlRejectsNonPositiveLimits(t *testing.T) {
	g := &graphBrowser{}
	if _, err := Crawl(context.Background(), g, Config{StartNode: "i=85", MaxDepth: 0, MaxNodes: 10}, nil); err == nil {
		t.Error("expected error for zero depth")
	}
	if _, err := Crawl(context.Background(), g, Config{StartNode: "i=85", MaxDepth: 3, MaxNodes: 0}, nil); err == nil {
		t.Error("expected error for zero node bound")
	}
}
