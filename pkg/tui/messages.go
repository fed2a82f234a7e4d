package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
	"go.uber.org/zap"

	"github.com/uascope/uascope/pkg/client"
	"github.com/uascope/uascope/pkg/crawl"
	"github.com/uascope/uascope/pkg/diag"
)

// ---------------------------------------------------------------------------
// Tea messages
//
// Every background unit of work reports back through exactly one of
// these. Update is the only place model state changes.
// ---------------------------------------------------------------------------

// sessionEstablishedMsg: a connect task stored a fresh session in the slot.
type sessionEstablishedMsg struct {
	endpoint string
}

// sessionClosedMsg: the session is gone, by request, by remote drop, or
// by the liveness probe noticing a silent disconnect.
type sessionClosedMsg struct{}

// browseResultMsg carries the children of one browsed node.
type browseResultMsg struct {
	parent string
	nodes  []client.Node
	err    error
}

// errMsg carries a failure for the status bar and error log.
type errMsg struct {
	err error
}

// statusMsg updates the status bar text.
type statusMsg string

// change is one value-change notification, identified by client handle.
type change struct {
	handle uint32
	value  *ua.DataValue
}

// dataChangeMsg carries one publish cycle's worth of notifications.
type dataChangeMsg struct {
	changes []change
}

// notifyClosedMsg: the notification channel drained and closed.
type notifyClosedMsg struct{}

// subscriptionCreatedMsg: the create-subscription task finished.
type subscriptionCreatedMsg struct {
	id uint32
}

// subscriptionFailedMsg: subscription creation failed; the manager
// rolls back so a later watch request can retry.
type subscriptionFailedMsg struct {
	err error
}

// monitoredItemsAddedMsg carries the server's accepted registrations.
type monitoredItemsAddedMsg struct {
	regs []client.ItemRegistration
}

// crawlResultMsg is the crawl task's terminal message.
type crawlResultMsg struct {
	nodes []client.Node
	err   error
}

// diagStepMsg is one streamed pipeline step update.
type diagStepMsg struct {
	step diag.Step
}

// diagCompleteMsg is the pipeline's authoritative terminal result.
type diagCompleteMsg struct {
	result diag.Result
}

// probeTickMsg drives the periodic liveness probe.
type probeTickMsg time.Time

// ---------------------------------------------------------------------------
// Commands: the detached units of work
// ---------------------------------------------------------------------------

const probeInterval = 2 * time.Second

func probeTick() tea.Cmd {
	return tea.Tick(probeInterval, func(t time.Time) tea.Msg {
		return probeTickMsg(t)
	})
}

// connectCmd establishes a session and stores it in the slot, tearing
// down any session it replaced.
func connectCmd(slot *client.Slot, cfg client.Config, store *client.TrustStore, log *zap.Logger) tea.Cmd {
	return func() tea.Msg {
		if err := store.EnsureLayout(); err != nil {
			return errMsg{err}
		}
		if cfg.SecurityPolicy != "" && cfg.SecurityPolicy != "None" && cfg.CertFile == "" {
			certFile, keyFile, err := store.EnsureClientCertificate()
			if err != nil {
				return errMsg{err}
			}
			cfg.CertFile, cfg.KeyFile = certFile, keyFile
		}

		c, err := client.Connect(context.Background(), cfg, log)
		if err != nil {
			return errMsg{err}
		}
		if old := slot.Replace(c); old != nil {
			old.Close(context.Background())
		}
		return sessionEstablishedMsg{endpoint: cfg.EndpointURL}
	}
}

// disconnectCmd clears the slot and closes whatever session it held.
func disconnectCmd(slot *client.Slot) tea.Cmd {
	return func() tea.Msg {
		if c := slot.Take(); c != nil {
			c.Close(context.Background())
		}
		return sessionClosedMsg{}
	}
}

// dropSessionCmd takes a dead client out of the slot and closes it so
// its reconnect loop stops redialing. Unlike disconnectCmd it emits no
// message; the caller already tore the UI state down.
func dropSessionCmd(slot *client.Slot) tea.Cmd {
	return func() tea.Msg {
		if c := slot.Take(); c != nil {
			c.Close(context.Background())
		}
		return nil
	}
}

// browseCmd fetches the children of one node.
func browseCmd(slot *client.Slot, nodeID string) tea.Cmd {
	return func() tea.Msg {
		var nodes []client.Node
		err := slot.With(func(c *client.Client) error {
			var err error
			nodes, err = c.Children(context.Background(), nodeID)
			return err
		})
		return browseResultMsg{parent: nodeID, nodes: nodes, err: err}
	}
}

// createSubscriptionCmd creates the session's subscription, handing the
// notification channel over at creation time.
func createSubscriptionCmd(slot *client.Slot, interval time.Duration, notify chan *opcua.PublishNotificationData) tea.Cmd {
	return func() tea.Msg {
		var id uint32
		err := slot.With(func(c *client.Client) error {
			var err error
			id, err = c.CreateSubscription(context.Background(), interval, notify)
			return err
		})
		if err != nil {
			return subscriptionFailedMsg{err}
		}
		return subscriptionCreatedMsg{id: id}
	}
}

// addItemsCmd registers monitored items on the active subscription.
func addItemsCmd(slot *client.Slot, subID uint32, reqs []client.ItemRequest) tea.Cmd {
	return func() tea.Msg {
		var regs []client.ItemRegistration
		err := slot.With(func(c *client.Client) error {
			var err error
			regs, err = c.AddMonitoredItems(context.Background(), subID, reqs)
			return err
		})
		if err != nil {
			return errMsg{err}
		}
		return monitoredItemsAddedMsg{regs: regs}
	}
}

// removeItemCmd deletes one monitored item remotely. Best-effort: the
// local record is already gone, so there is nothing to report.
func removeItemCmd(slot *client.Slot, subID, itemID uint32) tea.Cmd {
	return func() tea.Msg {
		_ = slot.With(func(c *client.Client) error {
			c.RemoveMonitoredItems(context.Background(), subID, []uint32{itemID})
			return nil
		})
		return nil
	}
}

// waitNotify blocks on the notification channel and converts one
// publish cycle into a dataChangeMsg. The model re-issues it after
// every message, so the channel is drained exactly once.
func waitNotify(notify chan *opcua.PublishNotificationData, log *zap.Logger) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-notify
		if !ok {
			return notifyClosedMsg{}
		}
		if n.Error != nil {
			log.Debug("publish notification error", zap.Error(n.Error))
			return dataChangeMsg{}
		}
		var changes []change
		if dcn, ok := n.Value.(*ua.DataChangeNotification); ok {
			for _, mi := range dcn.MonitoredItems {
				changes = append(changes, change{handle: mi.ClientHandle, value: mi.Value})
			}
		}
		return dataChangeMsg{changes: changes}
	}
}

// crawlCmd runs a bounded crawl under the session's read borrow.
func crawlCmd(ctx context.Context, slot *client.Slot, cfg crawl.Config, log *zap.Logger) tea.Cmd {
	return func() tea.Msg {
		var nodes []client.Node
		err := slot.With(func(c *client.Client) error {
			var err error
			nodes, err = crawl.Crawl(ctx, c, cfg, log)
			return err
		})
		return crawlResultMsg{nodes: nodes, err: err}
	}
}

// diagnoseCmd runs the diagnostic pipeline, streaming steps into stepCh
// and closing it when the terminal result is ready.
func diagnoseCmd(ctx context.Context, pipeline *diag.Pipeline, input string, stepCh chan diag.Step) tea.Cmd {
	return func() tea.Msg {
		result := pipeline.Run(ctx, input, func(s diag.Step) {
			stepCh <- s
		})
		close(stepCh)
		return diagCompleteMsg{result: result}
	}
}

// waitStep relays one streamed pipeline step to the model.
func waitStep(stepCh chan diag.Step) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-stepCh
		if !ok {
			return nil
		}
		return diagStepMsg{step: s}
	}
}
