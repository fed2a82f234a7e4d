package client

import (
	"context"
	"fmt"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
	"go.uber.org/zap"
)

// ItemRequest asks for one node to be monitored under a caller-chosen
// client handle. Handles correlate notifications back to nodes and must
// be unique for the session's lifetime; the watch manager assigns them.
type ItemRequest struct {
	NodeID string
	Handle uint32
}

// ItemRegistration is the server's answer for one successfully created
// monitored item.
type ItemRegistration struct {
	NodeID string
	ItemID uint32
	Handle uint32
}

// CreateSubscription creates the session's single subscription with the
// given publishing interval. Notifications are delivered to notify; the
// channel is handed over here so no callback closure captures shared
// state. The caller must not call this twice concurrently.
func (c *Client) CreateSubscription(ctx context.Context, interval time.Duration, notify chan *opcua.PublishNotificationData) (uint32, error) {
	sub, err := c.c.Subscribe(ctx, &opcua.SubscriptionParameters{
		Interval: interval,
	}, notify)
	if err != nil {
		return 0, fmt.Errorf("create subscription: %w", err)
	}

	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	c.log.Info("subscription created",
		zap.Uint32("id", sub.SubscriptionID),
		zap.Duration("interval", interval))
	return sub.SubscriptionID, nil
}

func (c *Client) subscription(subID uint32) (*opcua.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub == nil || c.sub.SubscriptionID != subID {
		return nil, fmt.Errorf("no active subscription %d", subID)
	}
	return c.sub, nil
}

// AddMonitoredItems registers the requested nodes on the subscription.
// Partial success is expected: entries whose remote status is not good
// are omitted from the returned list, not rolled back or retried.
func (c *Client) AddMonitoredItems(ctx context.Context, subID uint32, reqs []ItemRequest) ([]ItemRegistration, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	sub, err := c.subscription(subID)
	if err != nil {
		return nil, err
	}

	items := make([]*ua.MonitoredItemCreateRequest, 0, len(reqs))
	accepted := make([]ItemRequest, 0, len(reqs))
	for _, r := range reqs {
		nodeID, err := ua.ParseNodeID(r.NodeID)
		if err != nil {
			c.log.Warn("skipping unparsable node id", zap.String("node", r.NodeID), zap.Error(err))
			continue
		}
		items = append(items, opcua.NewMonitoredItemCreateRequestWithDefaults(nodeID, ua.AttributeIDValue, r.Handle))
		accepted = append(accepted, r)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no valid node ids in request")
	}

	resp, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, items...)
	if err != nil {
		return nil, fmt.Errorf("create monitored items: %w", err)
	}

	regs := make([]ItemRegistration, 0, len(resp.Results))
	for i, res := range resp.Results {
		if i >= len(accepted) {
			break
		}
		if res.StatusCode != ua.StatusOK {
			c.log.Warn("monitored item rejected",
				zap.String("node", accepted[i].NodeID),
				zap.String("status", res.StatusCode.Error()))
			continue
		}
		regs = append(regs, ItemRegistration{
			NodeID: accepted[i].NodeID,
			ItemID: res.MonitoredItemID,
			Handle: accepted[i].Handle,
		})
	}

	c.log.Info("monitored items added",
		zap.Uint32("subscription", subID),
		zap.Int("requested", len(reqs)),
		zap.Int("created", len(regs)))
	return regs, nil
}

// RemoveMonitoredItems deletes the given server item ids. Best-effort:
// failures are logged, never escalated.
func (c *Client) RemoveMonitoredItems(ctx context.Context, subID uint32, itemIDs []uint32) {
	if len(itemIDs) == 0 {
		return
	}
	sub, err := c.subscription(subID)
	if err != nil {
		c.log.Debug("remove monitored items", zap.Error(err))
		return
	}
	resp, err := sub.Unmonitor(ctx, itemIDs...)
	if err != nil {
		c.log.Warn("delete monitored items", zap.Error(err))
		return
	}
	for i, status := range resp.Results {
		if status != ua.StatusOK {
			c.log.Warn("delete monitored item",
				zap.Uint32("item", itemIDs[i]),
				zap.String("status", status.Error()))
		}
	}
}

// DeleteSubscription cancels the active subscription. Best-effort.
func (c *Client) DeleteSubscription(ctx context.Context, subID uint32) {
	sub, err := c.subscription(subID)
	if err != nil {
		c.log.Debug("delete subscription", zap.Error(err))
		return
	}
	if err := sub.Cancel(ctx); err != nil {
		c.log.Warn("cancel subscription", zap.Uint32("id", subID), zap.Error(err))
	}
	c.mu.Lock()
	c.sub = nil
	c.mu.Unlock()
}
