package watch

// subState holds the three co-maintained registration maps. Every entry
// present in one map has its mirror in the other two; registration and
// removal keep them consistent as a unit.
type subState struct {
	handleToNode map[uint32]string
	nodeToHandle map[string]uint32
	handleToItem map[uint32]uint32
}

func newSubState() *subState {
	return &subState{
		handleToNode: make(map[uint32]string),
		nodeToHandle: make(map[string]uint32),
		handleToItem: make(map[uint32]uint32),
	}
}

func (s *subState) register(nodeID string, itemID, handle uint32) {
	s.handleToNode[handle] = nodeID
	s.nodeToHandle[nodeID] = handle
	s.handleToItem[handle] = itemID
}

// unregister removes a node from all three maps and returns the server
// item id that was registered for it, if any.
func (s *subState) unregister(nodeID string) (uint32, bool) {
	handle, ok := s.nodeToHandle[nodeID]
	if !ok {
		return 0, false
	}
	delete(s.nodeToHandle, nodeID)
	delete(s.handleToNode, handle)
	itemID, ok := s.handleToItem[handle]
	delete(s.handleToItem, handle)
	return itemID, ok
}

func (s *subState) node(handle uint32) (string, bool) {
	nodeID, ok := s.handleToNode[handle]
	return nodeID, ok
}

func (s *subState) clear() {
	s.handleToNode = make(map[uint32]string)
	s.nodeToHandle = make(map[string]uint32)
	s.handleToItem = make(map[uint32]uint32)
}
