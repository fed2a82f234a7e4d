package watch

import (
	"testing"

	"github.com/gopcua/opcua/ua"

	"github.com/uascope/uascope/pkg/client"
)

func TestFirstWatchCreatesSubscription(t *testing.T) {
	m := NewManager()
	action := m.RequestWatch("ns=2;s=Temp", "Temperature")
	if action.Kind != ActionCreateSubscription {
		t.Fatalf("expected create-subscription action, got %v", action.Kind)
	}
	if m.State() != StateCreating {
		t.Errorf("expected StateCreating, got %v", m.State())
	}
}

func TestRapidRequestsCreateOneSubscription(t *testing.T) {
	m := NewManager()
	first := m.RequestWatch("ns=2;s=A", "A")
	second := m.RequestWatch("ns=2;s=B", "B")
	third := m.RequestWatch("ns=2;s=C", "C")

	if first.Kind != ActionCreateSubscription {
		t.Fatalf("first request: expected create-subscription, got %v", first.Kind)
	}
	if second.Kind != ActionNone || third.Kind != ActionNone {
		t.Errorf("later requests while creating must queue: %v, %v", second.Kind, third.Kind)
	}

	flush := m.SubscriptionCreated(42)
	if flush.Kind != ActionAddItems {
		t.Fatalf("expected queued items flush, got %v", flush.Kind)
	}
	if len(flush.Items) != 3 {
		t.Fatalf("expected 3 queued items, got %d", len(flush.Items))
	}
	if m.SubscriptionID() != 42 {
		t.Errorf("expected subscription id 42, got %d", m.SubscriptionID())
	}
	if m.State() != StateActive {
		t.Errorf("expected StateActive, got %v", m.State())
	}
}

func TestHandlesAreDistinct(t *testing.T) {
	m := NewManager()
	m.RequestWatch("ns=2;s=A", "A")
	m.RequestWatch("ns=2;s=B", "B")
	a, _ := m.Item("ns=2;s=A")
	b, _ := m.Item("ns=2;s=B")
	if a.Handle == b.Handle {
		t.Errorf("handles must be distinct, both are %d", a.Handle)
	}
	if a.Handle == 0 || b.Handle == 0 {
		t.Error("handles must be non-zero")
	}
}

func TestDuplicateWatchIsNoOp(t *testing.T) {
	m := NewManager()
	m.RequestWatch("ns=2;s=A", "A")
	action := m.RequestWatch("ns=2;s=A", "A")
	if action.Kind != ActionNone {
		t.Errorf("duplicate request must be a no-op, got %v", action.Kind)
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 item, got %d", m.Len())
	}
}

func TestWatchWhileActiveAddsImmediately(t *testing.T) {
	m := NewManager()
	m.RequestWatch("ns=2;s=A", "A")
	m.SubscriptionCreated(7)

	action := m.RequestWatch("ns=2;s=B", "B")
	if action.Kind != ActionAddItems {
		t.Fatalf("expected add-items action, got %v", action.Kind)
	}
	if len(action.Items) != 1 || action.Items[0].NodeID != "ns=2;s=B" {
		t.Errorf("unexpected items: %+v", action.Items)
	}
}

func TestSubscriptionFailedAllowsRetry(t *testing.T) {
	m := NewManager()
	m.RequestWatch("ns=2;s=A", "A")
	m.SubscriptionFailed()

	if m.State() != StateNone {
		t.Fatalf("expected StateNone after failure, got %v", m.State())
	}
	// The node is still tracked, so a repeat request is a no-op; a new
	// node retries subscription creation.
	action := m.RequestWatch("ns=2;s=B", "B")
	if action.Kind != ActionCreateSubscription {
		t.Errorf("expected retry via create-subscription, got %v", action.Kind)
	}
	// Both the stale and the new node flush when creation succeeds.
	flush := m.SubscriptionCreated(9)
	if len(flush.Items) != 2 {
		t.Errorf("expected 2 queued items, got %d", len(flush.Items))
	}
}

func TestUnwatchWhileCreatingSkipsFlush(t *testing.T) {
	m := NewManager()
	m.RequestWatch("ns=2;s=A", "A")
	m.RequestWatch("ns=2;s=B", "B")

	if _, remote := m.Unwatch("ns=2;s=B"); remote {
		t.Error("unwatch before registration must not ask for a remote delete")
	}

	flush := m.SubscriptionCreated(3)
	if len(flush.Items) != 1 || flush.Items[0].NodeID != "ns=2;s=A" {
		t.Errorf("unwatched node must not flush: %+v", flush.Items)
	}
}

func TestUnwatchRegisteredItem(t *testing.T) {
	m := NewManager()
	m.RequestWatch("ns=2;s=A", "A")
	m.SubscriptionCreated(5)
	it, _ := m.Item("ns=2;s=A")
	m.ItemsRegistered([]client.ItemRegistration{{NodeID: "ns=2;s=A", ItemID: 301, Handle: it.Handle}})

	itemID, remote := m.Unwatch("ns=2;s=A")
	if !remote {
		t.Fatal("expected a remote delete for a registered item")
	}
	if itemID != 301 {
		t.Errorf("expected item id 301, got %d", itemID)
	}
	if m.Len() != 0 {
		t.Errorf("expected empty watchlist, got %d items", m.Len())
	}
}

func TestItemsRegisteredMarksGood(t *testing.T) {
	m := NewManager()
	m.RequestWatch("ns=2;s=A", "A")
	m.SubscriptionCreated(5)
	it, _ := m.Item("ns=2;s=A")

	if it.Registered {
		t.Fatal("item must not be registered before the server confirms")
	}
	if it.Status != ua.StatusBadWaitingForInitialData {
		t.Fatalf("expected waiting-for-data status, got %v", it.Status)
	}

	m.ItemsRegistered([]client.ItemRegistration{{NodeID: "ns=2;s=A", ItemID: 11, Handle: it.Handle}})
	if !it.Registered || it.ItemID != 11 || it.Status != ua.StatusOK {
		t.Errorf("registration not recorded: %+v", it)
	}
}

func TestDataChangeRouting(t *testing.T) {
	m := NewManager()
	m.RequestWatch("ns=2;s=A", "A")
	m.SubscriptionCreated(5)
	it, _ := m.Item("ns=2;s=A")
	m.ItemsRegistered([]client.ItemRegistration{{NodeID: "ns=2;s=A", ItemID: 1, Handle: it.Handle}})

	v := ua.MustVariant(int32(17))
	m.HandleDataChange(it.Handle, &ua.DataValue{Value: v})

	if it.Value != v {
		t.Error("value not routed to the item")
	}
	if len(it.History) != 1 || it.History[0].Value != 17 {
		t.Errorf("unexpected history: %+v", it.History)
	}
}

func TestStaleHandleDropped(t *testing.T) {
	m := NewManager()
	m.RequestWatch("ns=2;s=A", "A")
	m.SubscriptionCreated(5)
	it, _ := m.Item("ns=2;s=A")
	m.ItemsRegistered([]client.ItemRegistration{{NodeID: "ns=2;s=A", ItemID: 1, Handle: it.Handle}})
	m.Unwatch("ns=2;s=A")

	// In-flight notification for a removed item: must not panic or
	// resurrect anything.
	m.HandleDataChange(it.Handle, &ua.DataValue{Value: ua.MustVariant(int32(1))})
	if m.Len() != 0 {
		t.Errorf("expected empty watchlist, got %d items", m.Len())
	}
}

func TestClearResetsEverything(t *testing.T) {
	m := NewManager()
	m.RequestWatch("ns=2;s=A", "A")
	m.SubscriptionCreated(5)
	m.Clear()

	if m.State() != StateNone || m.SubscriptionID() != 0 || m.Len() != 0 {
		t.Errorf("clear left state behind: state=%v id=%d len=%d", m.State(), m.SubscriptionID(), m.Len())
	}
	// The manager must be reusable after a clear.
	action := m.RequestWatch("ns=2;s=A", "A")
	if action.Kind != ActionCreateSubscription {
		t.Errorf("expected fresh create-subscription, got %v", action.Kind)
	}
}

func TestItemsSortedByDisplayName(t *testing.T) {
	m := NewManager()
	m.RequestWatch("ns=2;s=Zeta", "Zeta")
	m.RequestWatch("ns=2;s=Alpha", "Alpha")
	m.RequestWatch("ns=2;s=Mid", "Mid")

	items := m.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].DisplayName != "Alpha" || items[1].DisplayName != "Mid" || items[2].DisplayName != "Zeta" {
		t.Errorf("unexpected order: %s, %s, %s", items[0].DisplayName, items[1].DisplayName, items[2].DisplayName)
	}
}
