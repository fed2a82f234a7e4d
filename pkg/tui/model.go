// Package tui provides the interactive diagnostic console for uascope.
// It is built on the bubbletea/lipgloss stack and renders five tabs:
// Explorer, Watch, Crawl, Diagnose, and Certificates. All state lives
// in the Model and changes only inside Update; background work runs as
// tea commands that report back through messages.
package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gopcua/opcua"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/uascope/uascope/pkg/client"
	"github.com/uascope/uascope/pkg/config"
	"github.com/uascope/uascope/pkg/diag"
	"github.com/uascope/uascope/pkg/export"
	"github.com/uascope/uascope/pkg/watch"
)

// ---------------------------------------------------------------------------
// Tab type
// ---------------------------------------------------------------------------

// tab identifies the currently active console tab.
type tab int

const (
	tabExplorer tab = iota
	tabWatch
	tabCrawl
	tabDiagnose
	tabCerts
	tabCount // sentinel — must stay last
)

// longTask identifies the at-most-one long-running task.
type longTask int

const (
	taskNone longTask = iota
	taskCrawl
	taskDiagnose
)

// connState tracks the session lifecycle as the model sees it.
type connState int

const (
	connIdle connState = iota
	connConnecting
	connActive
)

// browseCacheTTL bounds how long browsed children are reused before a
// node is re-read from the server.
const browseCacheTTL = 5 * time.Minute

// ---------------------------------------------------------------------------
// Model
// ---------------------------------------------------------------------------

// crumb is one level of the explorer breadcrumb.
type crumb struct {
	id   string
	name string
}

// Model is the top-level bubbletea model for the console.
type Model struct {
	cfg   *config.Config
	log   *zap.Logger
	store *client.TrustStore

	tabs      []string
	activeTab tab

	// Session. The slot is shared with every background command; only
	// commands touch the client inside it.
	slot      *client.Slot
	conn      connState
	connected string

	// Connect form.
	endpoint  string
	editing   bool
	bookmarks *config.Bookmarks
	bmIndex   int

	// Watch plumbing. The notify channel is handed to the server
	// subscription at creation time and drained by exactly one
	// waitNotify command at any moment.
	manager *watch.Manager
	notify  chan *opcua.PublishNotificationData

	// Explorer.
	nodeCache  *gocache.Cache
	parent     string
	trail      []crumb
	children   []client.Node
	cursor     int
	browsing   bool
	watchIndex int

	// Crawl.
	crawlNodes   []client.Node
	crawlRunning bool

	// Diagnose.
	diagInput   string
	diagEditing bool
	diagSteps   []diag.Step
	diagResult  *diag.Result
	stepCh      chan diag.Step

	// Certificates.
	trusted  []client.CertInfo
	rejected []client.CertInfo

	// Long-task bookkeeping. cancel is non-nil while a crawl or
	// diagnose is in flight; esc fires it.
	task   longTask
	cancel context.CancelFunc

	status string
	err    error
	width  int
	height int
}

// New returns a Model configured from cfg.
func New(cfg *config.Config, bookmarks *config.Bookmarks, log *zap.Logger) Model {
	if log == nil {
		log = zap.NewNop()
	}
	store := client.NewTrustStore(cfg.PKIDir)
	return Model{
		cfg:       cfg,
		log:       log,
		store:     store,
		tabs:      []string{"Explorer", "Watch", "Crawl", "Diagnose", "Certs"},
		slot:      &client.Slot{},
		manager:   watch.NewManager(),
		notify:    make(chan *opcua.PublishNotificationData, 16),
		nodeCache: gocache.New(browseCacheTTL, 2*browseCacheTTL),
		endpoint:  cfg.Connection.EndpointURL,
		bookmarks: bookmarks,
		bmIndex:   -1,
		diagInput: cfg.Connection.EndpointURL,
		trusted:   store.ListTrusted(),
		rejected:  store.ListRejected(),
	}
}

// Init starts the liveness probe and the single notification reader.
func (m Model) Init() tea.Cmd {
	return tea.Batch(probeTick(), waitNotify(m.notify, m.log))
}

// Update processes messages and returns an updated model plus any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case probeTickMsg:
		if m.conn == connActive && !m.slot.Alive() {
			m = m.teardown()
			m.status = "connection lost"
			// The dead client must leave the slot, or its reconnect
			// loop keeps redialing behind the idle UI.
			return m, tea.Batch(probeTick(), dropSessionCmd(m.slot))
		}
		return m, probeTick()

	case sessionEstablishedMsg:
		m.conn = connActive
		m.connected = msg.endpoint
		m.err = nil
		m.status = "connected to " + msg.endpoint
		m.parent = client.ObjectsFolder
		m.trail = []crumb{{id: client.ObjectsFolder, name: "Objects"}}
		m.browsing = true
		return m, browseCmd(m.slot, m.parent)

	case sessionClosedMsg:
		m = m.teardown()
		m.status = "disconnected"
		return m, nil

	case browseResultMsg:
		m.browsing = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.nodeCache.Set(msg.parent, msg.nodes, gocache.DefaultExpiration)
		if msg.parent == m.parent {
			m.children = msg.nodes
			if m.cursor >= len(m.children) {
				m.cursor = 0
			}
		}
		return m, nil

	case subscriptionCreatedMsg:
		action := m.manager.SubscriptionCreated(msg.id)
		if action.Kind == watch.ActionAddItems {
			return m, addItemsCmd(m.slot, m.manager.SubscriptionID(), action.Items)
		}
		return m, nil

	case subscriptionFailedMsg:
		m.manager.SubscriptionFailed()
		m.err = msg.err
		return m, nil

	case monitoredItemsAddedMsg:
		m.manager.ItemsRegistered(msg.regs)
		m.status = fmt.Sprintf("%d item(s) registered", len(msg.regs))
		return m, nil

	case dataChangeMsg:
		for _, ch := range msg.changes {
			m.manager.HandleDataChange(ch.handle, ch.value)
		}
		return m, waitNotify(m.notify, m.log)

	case notifyClosedMsg:
		return m, nil

	case crawlResultMsg:
		m.task = taskNone
		m.cancel = nil
		m.crawlRunning = false
		m.crawlNodes = msg.nodes
		switch {
		case msg.err == context.Canceled:
			m.status = fmt.Sprintf("crawl cancelled after %d nodes", len(msg.nodes))
		case msg.err != nil:
			m.err = msg.err
		default:
			m.status = fmt.Sprintf("crawl finished: %d nodes", len(msg.nodes))
		}
		return m, nil

	case diagStepMsg:
		m.diagSteps = upsertStep(m.diagSteps, msg.step)
		return m, waitStep(m.stepCh)

	case diagCompleteMsg:
		m.task = taskNone
		m.cancel = nil
		result := msg.result
		m.diagResult = &result
		m.diagSteps = result.Steps
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case errMsg:
		if m.conn == connConnecting {
			m.conn = connIdle
		}
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

// teardown drops every piece of per-session state: the watch list, the
// browse cache, and the explorer selection. The slot itself is cleared
// by the disconnect or drop command that accompanies the teardown.
func (m Model) teardown() Model {
	m.conn = connIdle
	m.connected = ""
	m.manager.Clear()
	m.nodeCache.Flush()
	m.parent = ""
	m.trail = nil
	m.children = nil
	m.cursor = 0
	m.watchIndex = 0
	m.browsing = false
	return m
}

// handleKey dispatches keyboard input. Text-entry modes capture input
// before global bindings apply.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		return m.handleEndpointEdit(msg)
	}
	if m.diagEditing {
		return m.handleDiagEdit(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	case "esc":
		if m.cancel != nil {
			m.cancel()
			m.status = "cancelling…"
		}
		return m, nil
	case "tab", "right":
		m.activeTab = (m.activeTab + 1) % tabCount
		return m, nil
	case "shift+tab", "left":
		m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		return m, nil
	case "1":
		m.activeTab = tabExplorer
		return m, nil
	case "2":
		m.activeTab = tabWatch
		return m, nil
	case "3":
		m.activeTab = tabCrawl
		return m, nil
	case "4":
		m.activeTab = tabDiagnose
		return m, nil
	case "5":
		m.activeTab = tabCerts
		return m, nil
	case "d":
		if m.conn == connActive {
			return m, disconnectCmd(m.slot)
		}
		return m, nil
	}

	switch m.activeTab {
	case tabExplorer:
		return m.handleExplorerKey(msg)
	case tabWatch:
		return m.handleWatchKey(msg)
	case tabCrawl:
		return m.handleCrawlKey(msg)
	case tabDiagnose:
		return m.handleDiagnoseKey(msg)
	case tabCerts:
		return m.handleCertsKey(msg)
	}
	return m, nil
}

func (m Model) handleEndpointEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		return m, nil
	case "enter":
		m.editing = false
		return m.startConnect()
	case "backspace":
		if len(m.endpoint) > 0 {
			m.endpoint = m.endpoint[:len(m.endpoint)-1]
		}
		return m, nil
	default:
		if msg.Type == tea.KeyRunes {
			m.endpoint += string(msg.Runes)
		}
		return m, nil
	}
}

func (m Model) handleDiagEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.diagEditing = false
		return m, nil
	case "enter":
		m.diagEditing = false
		return m.startDiagnose()
	case "backspace":
		if len(m.diagInput) > 0 {
			m.diagInput = m.diagInput[:len(m.diagInput)-1]
		}
		return m, nil
	default:
		if msg.Type == tea.KeyRunes {
			m.diagInput += string(msg.Runes)
		}
		return m, nil
	}
}

func (m Model) handleExplorerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.conn != connActive {
		switch msg.String() {
		case "e", "enter":
			m.editing = true
		case "c":
			return m.startConnect()
		case "b":
			m = m.cycleBookmark()
		}
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.children)-1 {
			m.cursor++
		}
	case "enter":
		return m.descend()
	case "backspace", "h":
		return m.ascend()
	case "r":
		m.nodeCache.Delete(m.parent)
		m.browsing = true
		return m, browseCmd(m.slot, m.parent)
	case "w":
		return m.watchSelected()
	}
	return m, nil
}

func (m Model) handleWatchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.manager.Items()
	switch msg.String() {
	case "up", "k":
		if m.watchIndex > 0 {
			m.watchIndex--
		}
	case "down", "j":
		if m.watchIndex < len(items)-1 {
			m.watchIndex++
		}
	case "t":
		if m.watchIndex < len(items) {
			it := items[m.watchIndex]
			if it.Trendable() {
				it.ShowInTrend = !it.ShowInTrend
			}
		}
	case "u":
		if m.watchIndex < len(items) {
			nodeID := items[m.watchIndex].NodeID
			itemID, remote := m.manager.Unwatch(nodeID)
			if m.watchIndex >= m.manager.Len() && m.watchIndex > 0 {
				m.watchIndex--
			}
			if remote {
				return m, removeItemCmd(m.slot, m.manager.SubscriptionID(), itemID)
			}
		}
	case "e":
		if len(items) == 0 {
			return m, nil
		}
		path := filepath.Join(config.Dir(), fmt.Sprintf("watchlist-%s.csv", time.Now().Format("20060102-150405")))
		if err := export.WatchlistCSV(items, path); err != nil {
			m.err = err
			return m, nil
		}
		m.status = "exported " + path
	}
	return m, nil
}

func (m Model) handleCrawlKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "x", "enter":
		if m.conn != connActive || m.task != taskNone {
			return m, nil
		}
		ctx, cancel := context.WithCancel(context.Background())
		m.cancel = cancel
		m.task = taskCrawl
		m.crawlRunning = true
		m.status = "crawling from " + m.cfg.Crawl.StartNode
		return m, crawlCmd(ctx, m.slot, m.cfg.Crawl, m.log)
	case "e":
		if len(m.crawlNodes) == 0 {
			return m, nil
		}
		path := filepath.Join(config.Dir(), fmt.Sprintf("crawl-%s.csv", time.Now().Format("20060102-150405")))
		if err := export.CrawlCSV(m.crawlNodes, path); err != nil {
			m.err = err
			return m, nil
		}
		m.status = "exported " + path
	}
	return m, nil
}

func (m Model) handleDiagnoseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "e", "enter":
		if m.task == taskNone {
			m.diagEditing = true
		}
	}
	return m, nil
}

func (m Model) handleCertsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		m.trusted = m.store.ListTrusted()
		m.rejected = m.store.ListRejected()
		m.status = "trust store reloaded"
	}
	return m, nil
}

// startConnect kicks off a connection attempt with the form's endpoint.
func (m Model) startConnect() (tea.Model, tea.Cmd) {
	if m.conn == connConnecting || m.endpoint == "" {
		return m, nil
	}
	cfg := m.cfg.Connection
	cfg.EndpointURL = m.endpoint
	m.conn = connConnecting
	m.err = nil
	m.status = "connecting to " + m.endpoint
	return m, connectCmd(m.slot, cfg, m.store, m.log)
}

// startDiagnose launches the pipeline against the current input.
func (m Model) startDiagnose() (tea.Model, tea.Cmd) {
	if m.task != taskNone || m.diagInput == "" {
		return m, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.task = taskDiagnose
	m.diagSteps = nil
	m.diagResult = nil
	m.stepCh = make(chan diag.Step, 16)
	m.activeTab = tabDiagnose
	pipeline := diag.NewPipeline(m.log)
	return m, tea.Batch(
		diagnoseCmd(ctx, pipeline, m.diagInput, m.stepCh),
		waitStep(m.stepCh),
	)
}

// cycleBookmark walks the saved server list, loading each entry's
// connection settings into the form.
func (m Model) cycleBookmark() Model {
	if m.bookmarks == nil || len(m.bookmarks.Entries) == 0 {
		m.status = "no bookmarks saved"
		return m
	}
	m.bmIndex = (m.bmIndex + 1) % len(m.bookmarks.Entries)
	bm := m.bookmarks.Entries[m.bmIndex]
	m.cfg.Connection = bm.Connection
	m.endpoint = bm.Connection.EndpointURL
	m.status = "bookmark: " + bm.Name
	return m
}

// descend browses into the selected node, reusing cached children
// when they are still fresh.
func (m Model) descend() (tea.Model, tea.Cmd) {
	if m.cursor >= len(m.children) {
		return m, nil
	}
	node := m.children[m.cursor]
	if !node.HasChildren && !client.Container(node.Class) {
		return m, nil
	}
	m.parent = node.ID
	m.trail = append(m.trail, crumb{id: node.ID, name: node.DisplayName})
	m.cursor = 0
	if cached, ok := m.nodeCache.Get(node.ID); ok {
		m.children = cached.([]client.Node)
		return m, nil
	}
	m.children = nil
	m.browsing = true
	return m, browseCmd(m.slot, node.ID)
}

// ascend pops one breadcrumb level.
func (m Model) ascend() (tea.Model, tea.Cmd) {
	if len(m.trail) <= 1 {
		return m, nil
	}
	m.trail = m.trail[:len(m.trail)-1]
	top := m.trail[len(m.trail)-1]
	m.parent = top.id
	m.cursor = 0
	if cached, ok := m.nodeCache.Get(top.id); ok {
		m.children = cached.([]client.Node)
		return m, nil
	}
	m.children = nil
	m.browsing = true
	return m, browseCmd(m.slot, top.id)
}

// watchSelected asks the manager to track the selected node and runs
// whatever server action the manager decided on.
func (m Model) watchSelected() (tea.Model, tea.Cmd) {
	if m.cursor >= len(m.children) {
		return m, nil
	}
	node := m.children[m.cursor]
	action := m.manager.RequestWatch(node.ID, node.DisplayName)
	switch action.Kind {
	case watch.ActionCreateSubscription:
		m.status = "creating subscription…"
		return m, createSubscriptionCmd(m.slot, m.cfg.PublishInterval, m.notify)
	case watch.ActionAddItems:
		return m, addItemsCmd(m.slot, m.manager.SubscriptionID(), action.Items)
	}
	return m, nil
}

// upsertStep replaces the step with the same ID or appends it, keeping
// arrival order for display.
func upsertStep(steps []diag.Step, s diag.Step) []diag.Step {
	for i := range steps {
		if steps[i].ID == s.ID {
			steps[i] = s
			return steps
		}
	}
	return append(steps, s)
}
