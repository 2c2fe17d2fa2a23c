package mtp

// acceptedPort holds the VIDs we've advertised downward through one port,
// plus the unreachable sub-table the flood engine maintains on it.
type acceptedPort struct {
	vids       []VID
	vidSet     map[VID]bool
	unreach    []VID
	unreachSet map[VID]bool
}

func newAcceptedPort() *acceptedPort {
	return &acceptedPort{
		vidSet:     make(map[VID]bool),
		unreachSet: make(map[VID]bool),
	}
}

// AcceptedTable is C3: for each downstream (accepted) port, the VIDs
// we've advertised to it, plus its unreachable sub-table.
type AcceptedTable struct {
	order []string
	ports map[string]*acceptedPort
}

// NewAcceptedTable constructs an empty table.
func NewAcceptedTable() *AcceptedTable {
	return &AcceptedTable{ports: make(map[string]*acceptedPort)}
}

func (t *AcceptedTable) get(port string) *acceptedPort {
	p, ok := t.ports[port]
	if !ok {
		p = newAcceptedPort()
		t.ports[port] = p
		t.order = append(t.order, port)
	}
	return p
}

// Add records that vid has been accepted through port. Idempotent.
func (t *AcceptedTable) Add(port string, vid VID) {
	p := t.get(port)
	if p.vidSet[vid] {
		return
	}
	p.vidSet[vid] = true
	p.vids = append(p.vids, vid)
}

// Remove drops vid from port's accepted set.
func (t *AcceptedTable) Remove(port string, vid VID) {
	p, ok := t.ports[port]
	if !ok || !p.vidSet[vid] {
		return
	}
	delete(p.vidSet, vid)
	p.vids = removeVID(p.vids, vid)
}

// Ports returns every accepted port name, in insertion order.
func (t *AcceptedTable) Ports() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// HasPort reports whether port is currently tracked as an accepted port.
func (t *AcceptedTable) HasPort(port string) bool {
	_, ok := t.ports[port]
	return ok
}

// VIDsOf returns the VIDs accepted through port, in insertion order.
func (t *AcceptedTable) VIDsOf(port string) []VID {
	p, ok := t.ports[port]
	if !ok {
		return nil
	}
	out := make([]VID, len(p.vids))
	copy(out, p.vids)
	return out
}

// PortWithVID returns the accepted port advertising vid, and whether one
// was found. Forwarding only ever needs the first match: I1 guarantees a
// VID lives behind at most one accepted port.
func (t *AcceptedTable) PortWithVID(vid VID) (string, bool) {
	for _, name := range t.order {
		if t.ports[name].vidSet[vid] {
			return name, true
		}
	}
	return "", false
}

// PortWithRootVID returns the accepted port whose advertised VID's Root
// matches dest, along with that VID's full (possibly tier-extended) form.
// This is the lookup the data plane uses, since a DATA header's dest VID is
// always the bare leaf identifier (I1 guarantees at most one match).
func (t *AcceptedTable) PortWithRootVID(dest VID) (port string, full VID, ok bool) {
	for _, name := range t.order {
		for _, v := range t.ports[name].vids {
			if v.Root() == dest {
				return name, v, true
			}
		}
	}
	return "", "", false
}

// AllVIDs returns the union of every accepted VID, across all ports, in
// first-seen order.
func (t *AcceptedTable) AllVIDs() []VID {
	seen := make(map[VID]bool)
	var out []VID
	for _, name := range t.order {
		for _, v := range t.ports[name].vids {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// UnreachableAdd adds vid to port's unreachable sub-table.
func (t *AcceptedTable) UnreachableAdd(port string, vid VID) {
	p := t.get(port)
	if !p.unreachSet[vid] {
		p.unreachSet[vid] = true
		p.unreach = append(p.unreach, vid)
	}
}

// UnreachableRemove removes vid from port's unreachable sub-table.
func (t *AcceptedTable) UnreachableRemove(port string, vid VID) {
	p, ok := t.ports[port]
	if !ok || !p.unreachSet[vid] {
		return
	}
	delete(p.unreachSet, vid)
	p.unreach = removeVID(p.unreach, vid)
}

// IsUnreachable reports whether vid is marked unreachable through port.
func (t *AcceptedTable) IsUnreachable(port string, vid VID) bool {
	p, ok := t.ports[port]
	if !ok {
		return false
	}
	return p.unreachSet[vid]
}
