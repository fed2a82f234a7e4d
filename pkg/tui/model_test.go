package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/uascope/uascope/pkg/config"
	"github.com/uascope/uascope/pkg/diag"
	"github.com/uascope/uascope/pkg/watch"
)

func testModel(t *testing.T) Model {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	return New(config.Default(), &config.Bookmarks{}, nil)
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestSessionEstablishedStartsRootBrowse(t *testing.T) {
	m := testModel(t)
	m, cmd := update(m, sessionEstablishedMsg{endpoint: "opc.tcp://plc:4840"})

	if m.conn != connActive {
		t.Errorf("expected active connection, got %v", m.conn)
	}
	if cmd == nil {
		t.Error("expected a browse command for the Objects folder")
	}
	if len(m.trail) != 1 || m.trail[0].name != "Objects" {
		t.Errorf("unexpected breadcrumb: %+v", m.trail)
	}
}

func TestSessionClosedTearsDownState(t *testing.T) {
	m := testModel(t)
	m, _ = update(m, sessionEstablishedMsg{endpoint: "opc.tcp://plc:4840"})
	m.manager.RequestWatch("ns=2;s=A", "A")
	m.nodeCache.Set("i=85", nil, 0)

	m, _ = update(m, sessionClosedMsg{})

	if m.conn != connIdle {
		t.Errorf("expected idle connection, got %v", m.conn)
	}
	if m.manager.Len() != 0 {
		t.Errorf("watchlist must be cleared, got %d items", m.manager.Len())
	}
	if m.nodeCache.ItemCount() != 0 {
		t.Errorf("node cache must be flushed, got %d entries", m.nodeCache.ItemCount())
	}
	if len(m.trail) != 0 || len(m.children) != 0 {
		t.Error("explorer selection must be reset")
	}
}

func TestProbeDetectedLossDropsSession(t *testing.T) {
	m := testModel(t)
	m, _ = update(m, sessionEstablishedMsg{endpoint: "opc.tcp://plc:4840"})
	m.manager.RequestWatch("ns=2;s=A", "A")

	// The slot holds no live client, so the probe sees a dead session.
	m, cmd := update(m, probeTickMsg{})

	if m.conn != connIdle {
		t.Errorf("expected idle connection after probe-detected loss, got %v", m.conn)
	}
	if m.status != "connection lost" {
		t.Errorf("unexpected status %q", m.status)
	}
	if m.manager.Len() != 0 {
		t.Errorf("watchlist must be cleared, got %d items", m.manager.Len())
	}
	if cmd == nil {
		t.Fatal("expected the probe re-arm batched with the slot drop")
	}
}

func TestSubscriptionCreatedFlushesQueue(t *testing.T) {
	m := testModel(t)
	action := m.manager.RequestWatch("ns=2;s=A", "A")
	if action.Kind != watch.ActionCreateSubscription {
		t.Fatalf("expected create-subscription action, got %v", action.Kind)
	}

	m, cmd := update(m, subscriptionCreatedMsg{id: 12})
	if m.manager.State() != watch.StateActive {
		t.Errorf("expected active subscription state, got %v", m.manager.State())
	}
	if cmd == nil {
		t.Error("expected an add-items command for the queued node")
	}
}

func TestSubscriptionFailedRollsBack(t *testing.T) {
	m := testModel(t)
	m.manager.RequestWatch("ns=2;s=A", "A")

	m, _ = update(m, subscriptionFailedMsg{err: context.DeadlineExceeded})
	if m.manager.State() != watch.StateNone {
		t.Errorf("expected rollback to StateNone, got %v", m.manager.State())
	}
	if m.err == nil {
		t.Error("expected the error to surface")
	}
}

func TestDiagStepUpsert(t *testing.T) {
	m := testModel(t)
	m.stepCh = make(chan diag.Step, 1)

	running := diag.Step{ID: diag.StepResolveDNS, Name: "resolve DNS", Status: diag.StatusRunning}
	m, _ = update(m, diagStepMsg{step: running})
	done := diag.Step{ID: diag.StepResolveDNS, Name: "resolve DNS", Status: diag.StatusSuccess}
	m, _ = update(m, diagStepMsg{step: done})

	if len(m.diagSteps) != 1 {
		t.Fatalf("expected one step entry, got %d", len(m.diagSteps))
	}
	if m.diagSteps[0].Status != diag.StatusSuccess {
		t.Errorf("expected the later update to replace the earlier, got %v", m.diagSteps[0].Status)
	}
}

func TestCrawlResultClearsTask(t *testing.T) {
	m := testModel(t)
	m.task = taskCrawl
	m.crawlRunning = true
	m.cancel = func() {}

	m, _ = update(m, crawlResultMsg{nodes: nil, err: context.Canceled})
	if m.task != taskNone || m.cancel != nil || m.crawlRunning {
		t.Error("crawl bookkeeping not cleared on completion")
	}
}

func TestEscCancelsRunningTask(t *testing.T) {
	m := testModel(t)
	cancelled := false
	m.task = taskDiagnose
	m.cancel = func() { cancelled = true }

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyEsc})
	if !cancelled {
		t.Error("esc must fire the cancel function")
	}
	// The cancel handle stays until the task's terminal message lands.
	if m.cancel == nil {
		t.Error("cancel handle must survive until the task reports back")
	}
}

func TestDataChangeReissuesReader(t *testing.T) {
	m := testModel(t)
	_, cmd := update(m, dataChangeMsg{})
	if cmd == nil {
		t.Error("the notification reader must be re-armed after every message")
	}
}
