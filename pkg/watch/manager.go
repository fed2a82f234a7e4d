package watch

import (
	"sort"
	"time"

	"github.com/gopcua/opcua/ua"

	"github.com/uascope/uascope/pkg/client"
)

// State is the subscription lifecycle. The explicit variant makes the
// illegal "creating while already active" combination unrepresentable.
type State int

const (
	// StateNone: no subscription exists and none is being created.
	StateNone State = iota
	// StateCreating: a create-subscription call is in flight.
	StateCreating
	// StateActive: the subscription identified by SubscriptionID is live.
	StateActive
)

// ActionKind tags the remote work a state transition asks for.
type ActionKind int

const (
	// ActionNone: nothing to do.
	ActionNone ActionKind = iota
	// ActionCreateSubscription: spawn a create-subscription task.
	ActionCreateSubscription
	// ActionAddItems: spawn an add-monitored-items task for Items.
	ActionAddItems
)

// Action is the manager's answer to a watch request or event: the
// remote call the orchestrator should spawn. The manager itself never
// performs network I/O.
type Action struct {
	Kind  ActionKind
	Items []client.ItemRequest
}

// Manager is the stateful core of the watchlist. All methods must be
// called from a single logical owner (the orchestrator's message loop);
// remote calls triggered by returned Actions report back via further
// messages.
type Manager struct {
	state          State
	subscriptionID uint32

	items   map[string]*Item
	reg     *subState
	pending []string

	nextHandle uint32
}

// NewManager returns an empty manager in StateNone.
func NewManager() *Manager {
	return &Manager{
		items: make(map[string]*Item),
		reg:   newSubState(),
	}
}

// State returns the current subscription lifecycle state.
func (m *Manager) State() State { return m.state }

// SubscriptionID returns the active subscription id, or 0.
func (m *Manager) SubscriptionID() uint32 { return m.subscriptionID }

// Item returns the record for nodeID, if watched.
func (m *Manager) Item(nodeID string) (*Item, bool) {
	it, ok := m.items[nodeID]
	return it, ok
}

// Items returns all watched items sorted by display name.
func (m *Manager) Items() []*Item {
	out := make([]*Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out
}

// Len returns the number of watched items.
func (m *Manager) Len() int { return len(m.items) }

func (m *Manager) assignHandle() uint32 {
	m.nextHandle++
	return m.nextHandle
}

// RequestWatch asks for nodeID to join the watchlist. The item record
// is created immediately so the UI can render a pending row; the
// returned Action tells the orchestrator what remote work, if any, to
// spawn. Only the first request while unsubscribed triggers
// subscription creation; later ones queue.
func (m *Manager) RequestWatch(nodeID, displayName string) Action {
	if _, ok := m.items[nodeID]; ok {
		return Action{Kind: ActionNone}
	}

	it := newItem(nodeID, displayName, m.assignHandle())
	m.items[nodeID] = it

	switch m.state {
	case StateActive:
		return Action{
			Kind:  ActionAddItems,
			Items: []client.ItemRequest{{NodeID: nodeID, Handle: it.Handle}},
		}
	case StateCreating:
		m.pending = append(m.pending, nodeID)
		return Action{Kind: ActionNone}
	default:
		m.pending = append(m.pending, nodeID)
		m.state = StateCreating
		return Action{Kind: ActionCreateSubscription}
	}
}

// SubscriptionCreated records the new subscription id and flushes the
// pending queue as a single add-items action.
func (m *Manager) SubscriptionCreated(id uint32) Action {
	m.state = StateActive
	m.subscriptionID = id

	if len(m.pending) == 0 {
		return Action{Kind: ActionNone}
	}
	reqs := make([]client.ItemRequest, 0, len(m.pending))
	for _, nodeID := range m.pending {
		it, ok := m.items[nodeID]
		if !ok {
			// Unwatched while the subscription was being created.
			continue
		}
		reqs = append(reqs, client.ItemRequest{NodeID: nodeID, Handle: it.Handle})
	}
	m.pending = nil
	if len(reqs) == 0 {
		return Action{Kind: ActionNone}
	}
	return Action{Kind: ActionAddItems, Items: reqs}
}

// SubscriptionFailed rolls the state machine back so a later watch
// request can retry creation. Queued nodes stay queued.
func (m *Manager) SubscriptionFailed() {
	if m.state == StateCreating {
		m.state = StateNone
	}
}

// ItemsRegistered records the server's accepted registrations and marks
// the corresponding items good.
func (m *Manager) ItemsRegistered(regs []client.ItemRegistration) {
	for _, r := range regs {
		m.reg.register(r.NodeID, r.ItemID, r.Handle)
		if it, ok := m.items[r.NodeID]; ok {
			it.ItemID = r.ItemID
			it.Registered = true
			it.Status = ua.StatusOK
		}
	}
}

// Unwatch drops nodeID from the watchlist. The returned item id, when
// ok, should be removed remotely best-effort; the local record is gone
// regardless of that call's outcome.
func (m *Manager) Unwatch(nodeID string) (itemID uint32, ok bool) {
	itemID, ok = m.reg.unregister(nodeID)
	delete(m.items, nodeID)
	for i, pending := range m.pending {
		if pending == nodeID {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			break
		}
	}
	return itemID, ok && m.state == StateActive
}

// HandleDataChange routes one notification to its item. Unknown handles
// are dropped: the item was removed while the notification was already
// in flight, which is not an error.
func (m *Manager) HandleDataChange(handle uint32, dv *ua.DataValue) {
	nodeID, ok := m.reg.node(handle)
	if !ok {
		return
	}
	it, ok := m.items[nodeID]
	if !ok {
		return
	}
	it.update(dv, time.Now())
}

// Clear wipes all items, registrations, and the pending queue, and
// resets to StateNone. Called on disconnect and reconnect.
func (m *Manager) Clear() {
	m.items = make(map[string]*Item)
	m.reg.clear()
	m.pending = nil
	m.state = StateNone
	m.subscriptionID = 0
}
