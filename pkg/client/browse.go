package client

import (
	"context"
	"fmt"

	"github.com/gopcua/opcua/id"
	"github.com/gopcua/opcua/ua"
	"go.uber.org/zap"
)

// RootFolder is the well-known NodeId of the address-space root.
const RootFolder = "i=84"

// ObjectsFolder is the well-known NodeId of the Objects folder, the
// usual starting point for crawls.
const ObjectsFolder = "i=85"

// Node is one reference returned by a Browse call.
type Node struct {
	// ID is the string form of the target NodeId ("ns=2;s=Tag").
	ID string `json:"node_id" yaml:"node_id"`
	// BrowseName is the namespace-qualified machine name.
	BrowseName string `json:"browse_name" yaml:"browse_name"`
	// DisplayName is the human-readable name.
	DisplayName string `json:"display_name" yaml:"display_name"`
	// Class is the OPC-UA node class.
	Class ua.NodeClass `json:"node_class" yaml:"node_class"`
	// HasChildren reports whether the node is worth descending into.
	HasChildren bool `json:"has_children" yaml:"has_children"`
}

// ClassName renders the node class for display and export.
func (n Node) ClassName() string {
	switch n.Class {
	case ua.NodeClassObject:
		return "Object"
	case ua.NodeClassVariable:
		return "Variable"
	case ua.NodeClassMethod:
		return "Method"
	case ua.NodeClassObjectType:
		return "ObjectType"
	case ua.NodeClassVariableType:
		return "VariableType"
	case ua.NodeClassReferenceType:
		return "ReferenceType"
	case ua.NodeClassDataType:
		return "DataType"
	case ua.NodeClassView:
		return "View"
	default:
		return "Unknown"
	}
}

// Container reports whether the class is one the crawler descends into.
func Container(c ua.NodeClass) bool {
	return c == ua.NodeClassObject || c == ua.NodeClassObjectType || c == ua.NodeClassView
}

// Children performs one Browse service call for the hierarchical
// references of nodeID, following continuation points. It is not
// retried; the caller decides what a failure means.
func (c *Client) Children(ctx context.Context, nodeID string) ([]Node, error) {
	parsed, err := ua.ParseNodeID(nodeID)
	if err != nil {
		return nil, fmt.Errorf("parse node id %q: %w", nodeID, err)
	}

	req := &ua.BrowseRequest{
		NodesToBrowse: []*ua.BrowseDescription{{
			NodeID:          parsed,
			BrowseDirection: ua.BrowseDirectionForward,
			ReferenceTypeID: ua.NewNumericNodeID(0, id.HierarchicalReferences),
			IncludeSubtypes: true,
			NodeClassMask:   uint32(ua.NodeClassAll),
			ResultMask:      uint32(ua.BrowseResultMaskAll),
		}},
	}

	resp, err := c.c.Browse(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("browse %s: %w", nodeID, err)
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}

	result := resp.Results[0]
	if result.StatusCode != ua.StatusOK {
		return nil, fmt.Errorf("browse %s: status %v", nodeID, result.StatusCode)
	}
	refs := result.References

	for len(result.ContinuationPoint) > 0 {
		next, err := c.c.BrowseNext(ctx, &ua.BrowseNextRequest{
			ContinuationPoints: [][]byte{result.ContinuationPoint},
		})
		if err != nil {
			c.log.Debug("browse next", zap.String("node", nodeID), zap.Error(err))
			break
		}
		if len(next.Results) == 0 {
			break
		}
		result = next.Results[0]
		refs = append(refs, result.References...)
	}

	nodes := make([]Node, 0, len(refs))
	for _, ref := range refs {
		n := Node{
			ID:          ref.NodeID.NodeID.String(),
			Class:       ref.NodeClass,
			HasChildren: Container(ref.NodeClass),
		}
		if ref.BrowseName != nil {
			n.BrowseName = ref.BrowseName.Name
		}
		if ref.DisplayName != nil && ref.DisplayName.Text != "" {
			n.DisplayName = ref.DisplayName.Text
		} else {
			n.DisplayName = n.ID
		}
		nodes = append(nodes, n)
	}

	c.log.Debug("browsed", zap.String("node", nodeID), zap.Int("children", len(nodes)))
	return nodes, nil
}
