// Package watch owns the client-side watchlist: the subscription state
// machine, the handle/node/item-id bookkeeping, the monitored item
// records, and the dispatch of incoming data-change notifications.
// All mutation happens on the orchestrator's message loop; nothing in
// this package touches the network.
package watch

import (
	"fmt"
	"time"

	"github.com/gopcua/opcua/ua"
)

// MaxHistoryPoints bounds the per-item sample ring used for trending.
const MaxHistoryPoints = 600

// Sample is one trend point: seconds since the Unix epoch and the
// numeric value observed at that time.
type Sample struct {
	At    float64
	Value float64
}

// Item is one watched node. Created when the node is first requested,
// updated by the dispatcher on every notification, dropped when the
// node is unwatched or the session closes.
type Item struct {
	// NodeID is the stable node identifier.
	NodeID string
	// DisplayName is the name shown in the watch table.
	DisplayName string
	// ItemID is the server-assigned monitored item id; zero until
	// registration completes.
	ItemID uint32
	// Handle is the client-chosen handle, assigned at request time.
	Handle uint32
	// Registered reports whether the server accepted the item.
	Registered bool

	Value           *ua.Variant
	Status          ua.StatusCode
	SourceTimestamp time.Time
	ServerTimestamp time.Time

	// History holds the bounded trend ring, oldest first.
	History []Sample
	// ShowInTrend marks the item for the trend view.
	ShowInTrend bool
	// TrendColor is an optional display color index.
	TrendColor int
}

func newItem(nodeID, displayName string, handle uint32) *Item {
	if displayName == "" {
		displayName = nodeID
	}
	return &Item{
		NodeID:      nodeID,
		DisplayName: displayName,
		Handle:      handle,
		Status:      ua.StatusBadWaitingForInitialData,
	}
}

// Trendable reports whether the latest value can be charted.
func (it *Item) Trendable() bool {
	_, ok := NumericValue(it.Value)
	return ok
}

// update overwrites the item's value and, for numeric values, appends
// to the history ring. The source timestamp wins over wall clock when
// the server provided one.
func (it *Item) update(dv *ua.DataValue, now time.Time) {
	if dv == nil {
		return
	}
	it.Value = dv.Value
	if dv.Status == 0 {
		it.Status = ua.StatusOK
	} else {
		it.Status = dv.Status
	}
	it.SourceTimestamp = dv.SourceTimestamp
	it.ServerTimestamp = dv.ServerTimestamp

	num, ok := NumericValue(dv.Value)
	if !ok {
		return
	}
	ts := now
	if !dv.SourceTimestamp.IsZero() {
		ts = dv.SourceTimestamp
	}
	it.History = append(it.History, Sample{
		At:    float64(ts.UnixMilli()) / 1000.0,
		Value: num,
	})
	if n := len(it.History) - MaxHistoryPoints; n > 0 {
		it.History = it.History[n:]
	}
}

// ValueString renders the latest value for the watch table.
func (it *Item) ValueString() string {
	if it.Value == nil {
		return "---"
	}
	return FormatValue(it.Value)
}

// QualityMark renders a compact status indicator.
func (it *Item) QualityMark() string {
	switch {
	case it.Status == ua.StatusOK || it.Status&0xC0000000 == 0:
		return "OK"
	case it.Status&0x40000000 != 0: // uncertain
		return "?"
	default:
		return "!"
	}
}

// TimestampString renders the source timestamp, or a placeholder when
// no notification has arrived yet.
func (it *Item) TimestampString() string {
	if it.SourceTimestamp.IsZero() {
		return "---"
	}
	return it.SourceTimestamp.Format("02-01-2006 15:04:05")
}

// NumericValue converts a variant to float64 for trending. Booleans
// count as 0/1. Strings, dates, byte strings and the rest are not
// trendable and return false.
func NumericValue(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.Value().(type) {
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	default:
		return 0, false
	}
}

// FormatValue renders a variant for display and export.
func FormatValue(v *ua.Variant) string {
	if v == nil {
		return ""
	}
	switch val := v.Value().(type) {
	case nil:
		return "Empty"
	case float32:
		return fmt.Sprintf("%.4f", val)
	case float64:
		return fmt.Sprintf("%.6f", val)
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	case []byte:
		return fmt.Sprintf("[%d bytes]", len(val))
	case *ua.LocalizedText:
		return val.Text
	case *ua.QualifiedName:
		return val.Name
	case *ua.NodeID:
		return val.String()
	case ua.StatusCode:
		return val.Error()
	default:
		return fmt.Sprintf("%v", val)
	}
}
