package mtp

// offeredPort holds the VIDs we've offered upward through one port, plus
// the reachable/unreachable sub-tables the flood engine maintains on it.
type offeredPort struct {
	vids     []VID
	vidSet   map[VID]bool
	reach    []VID
	reachSet map[VID]bool
	unreach  []VID
	unreachSet map[VID]bool
}

func newOfferedPort() *offeredPort {
	return &offeredPort{
		vidSet:     make(map[VID]bool),
		reachSet:   make(map[VID]bool),
		unreachSet: make(map[VID]bool),
	}
}

// OfferedTable is C2: for each upstream (offered) port, the VIDs we have
// advertised through it, plus its reachable/unreachable sub-tables.
type OfferedTable struct {
	order []string
	ports map[string]*offeredPort
}

// NewOfferedTable constructs an empty table.
func NewOfferedTable() *OfferedTable {
	return &OfferedTable{ports: make(map[string]*offeredPort)}
}

func (t *OfferedTable) get(port string) *offeredPort {
	p, ok := t.ports[port]
	if !ok {
		p = newOfferedPort()
		t.ports[port] = p
		t.order = append(t.order, port)
	}
	return p
}

// Add records that vid has been offered through port. Idempotent.
func (t *OfferedTable) Add(port string, vid VID) {
	p := t.get(port)
	if p.vidSet[vid] {
		return
	}
	p.vidSet[vid] = true
	p.vids = append(p.vids, vid)
}

// Remove drops vid from port's offered set.
func (t *OfferedTable) Remove(port string, vid VID) {
	p, ok := t.ports[port]
	if !ok || !p.vidSet[vid] {
		return
	}
	delete(p.vidSet, vid)
	p.vids = removeVID(p.vids, vid)
}

// Ports returns every offered port name this table knows about, in
// insertion order.
func (t *OfferedTable) Ports() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// HasPort reports whether port has ever been registered as an offered
// port (i.e. is currently tracked by this table).
func (t *OfferedTable) HasPort(port string) bool {
	_, ok := t.ports[port]
	return ok
}

// VIDsOf returns the VIDs offered through port, in insertion order.
func (t *OfferedTable) VIDsOf(port string) []VID {
	p, ok := t.ports[port]
	if !ok {
		return nil
	}
	out := make([]VID, len(p.vids))
	copy(out, p.vids)
	return out
}

// PortsWith returns the offered ports advertising vid, in insertion
// order.
func (t *OfferedTable) PortsWith(vid VID) []string {
	var out []string
	for _, name := range t.order {
		if t.ports[name].vidSet[vid] {
			out = append(out, name)
		}
	}
	return out
}

// AllVIDs returns the union of every VID offered through any port, in
// first-seen order.
func (t *OfferedTable) AllVIDs() []VID {
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
func (t *OfferedTable) UnreachableAdd(port string, vid VID) {
	p := t.get(port)
	if !p.unreachSet[vid] {
		p.unreachSet[vid] = true
		p.unreach = append(p.unreach, vid)
	}
}

// UnreachableRemove removes vid from port's unreachable sub-table.
func (t *OfferedTable) UnreachableRemove(port string, vid VID) {
	p, ok := t.ports[port]
	if !ok || !p.unreachSet[vid] {
		return
	}
	delete(p.unreachSet, vid)
	p.unreach = removeVID(p.unreach, vid)
}

// ReachableAdd adds vid to port's reachable (narrowing) sub-table.
func (t *OfferedTable) ReachableAdd(port string, vid VID) {
	p := t.get(port)
	if !p.reachSet[vid] {
		p.reachSet[vid] = true
		p.reach = append(p.reach, vid)
	}
}

// ReachableClear empties port's reachable sub-table.
func (t *OfferedTable) ReachableClear(port string) {
	p := t.get(port)
	p.reach = nil
	p.reachSet = make(map[VID]bool)
}

// IsDirty reports whether port's reachable or unreachable sub-tables hold
// anything.
func (t *OfferedTable) IsDirty(port string) bool {
	p, ok := t.ports[port]
	if !ok {
		return false
	}
	return len(p.reach) > 0 || len(p.unreach) > 0
}

// IsAnyDirty reports whether any offered port is dirty.
func (t *OfferedTable) IsAnyDirty() bool {
	for _, name := range t.order {
		if t.IsDirty(name) {
			return true
		}
	}
	return false
}

// CollectUnreachableUnion returns the union of every offered port's
// unreachable sub-table, in first-seen order.
func (t *OfferedTable) CollectUnreachableUnion() []VID {
	seen := make(map[VID]bool)
	var out []VID
	for _, name := range t.order {
		for _, v := range t.ports[name].unreach {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// findByRoot returns the first VID offered through this port whose Root
// equals dest, along with its full (possibly tier-extended) form.
func (p *offeredPort) findByRoot(dest VID) (VID, bool) {
	for _, v := range p.vids {
		if v.Root() == dest {
			return v, true
		}
	}
	return "", false
}

// eligible reports whether port is usable as an ECMP candidate for dest,
// per §4.2: up, and not excluded by the port's reachable/unreachable
// sub-tables. Those sub-tables hold full, tier-extended VIDs (what a
// FAILURE_UPDATE/RECOVER_UPDATE exchange actually names), so an entry
// matches dest by its Root. A non-empty reachable set narrows eligibility
// to the roots it holds; an empty one falls back to "anything not
// unreachable".
func (t *OfferedTable) eligible(pt *PortTable, port string, dest VID) bool {
	cp := pt.Lookup(port)
	if cp == nil || !cp.IsUp {
		return false
	}
	p := t.ports[port]
	if p == nil {
		return false
	}
	if len(p.reach) > 0 {
		for _, v := range p.reach {
			if v.Root() == dest {
				return true
			}
		}
		return false
	}
	for _, v := range p.unreach {
		if v.Root() == dest {
			return false
		}
	}
	return true
}

// EligibleOfferedPortsFor returns, in stable insertion order, every
// offered port eligible to carry traffic toward dest.
func (t *OfferedTable) EligibleOfferedPortsFor(pt *PortTable, dest VID) []string {
	var out []string
	for _, name := range t.order {
		if t.eligible(pt, name, dest) {
			out = append(out, name)
		}
	}
	return out
}

// CountEligibleOfferedPortsFor is a convenience wrapper around
// EligibleOfferedPortsFor for callers that only need the count.
func (t *OfferedTable) CountEligibleOfferedPortsFor(pt *PortTable, dest VID) int {
	return len(t.EligibleOfferedPortsFor(pt, dest))
}

// AllDown reports whether every offered port is currently down (used by the
// flood engine's "all offered ports down" branch).
func (t *OfferedTable) AllDown(pt *PortTable) bool {
	for _, name := range t.order {
		if cp := pt.Lookup(name); cp != nil && cp.IsUp {
			return false
		}
	}
	return true
}

func removeVID(vids []VID, target VID) []VID {
	out := vids[:0]
	for _, v := range vids {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
