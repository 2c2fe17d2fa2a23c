package mtp

import "github.com/pjw7904/closnet/pkg/mlog"

// onLocalFailure is invoked by the dead-timer and link-state probe (C5)
// when this switch itself observes a port going down; it marks the port
// and runs the C6 failure-flood rules.
func (e *Engine) onLocalFailure(port string, cause FailCause) {
	e.Ports.MarkFail(port, cause)
	mlog.Info("mtp: %s: local failure (%s)", port, cause)
	e.floodLocalFailure(port)
}

// floodLocalFailure implements §4.6's "Local failure of port P".
func (e *Engine) floodLocalFailure(port string) {
	if e.Accepted.HasPort(port) {
		vids := e.Accepted.VIDsOf(port)
		e.sendToOtherUpPorts(port, OpFailureUpdate, OptUnreachable, vids)
		return
	}

	// P is an offered (upstream) port.
	if !e.IsTopSpine && e.Offered.AllDown(e.Ports) {
		vids := e.Accepted.AllVIDs()
		e.sendToUpPorts(e.Accepted.Ports(), OpFailureUpdate, OptReachable, vids)
		return
	}

	if e.Offered.IsAnyDirty() {
		vids := e.Offered.CollectUnreachableUnion()
		e.sendToUpPorts(e.Offered.Ports(), OpFailureUpdate, OptUnreachable, vids)
	}
	// Else every remaining upstream port is clean: nothing new to tell
	// downstream, no message sent.
}

// floodLocalRecovery is invoked once a port's recovery counter reaches 3,
// after the caller has already set IsUp; it mirrors the failure-flood case
// analysis with RECOVER_UPDATE. The source's own
// recovery branch for a downstream port re-sends a FAILURE_UPDATE message
// instead, which looks like a transcription slip against its own stated
// design; this always emits RECOVER_UPDATE, matching spec.md's explicit
// "mirrors failure... emitting RECOVER_UPDATE" rule.
func (e *Engine) floodLocalRecovery(port string) {
	if e.Accepted.HasPort(port) {
		vids := e.Accepted.VIDsOf(port)
		e.sendToOtherUpPorts(port, OpRecoverUpdate, OptUnreachable, vids)
		return
	}

	if !e.IsTopSpine && e.Offered.AllDown(e.Ports) {
		vids := e.Accepted.AllVIDs()
		e.sendToUpPorts(e.Accepted.Ports(), OpRecoverUpdate, OptReachable, vids)
		return
	}

	if e.Offered.IsAnyDirty() {
		vids := e.Offered.CollectUnreachableUnion()
		e.sendToUpPorts(e.Offered.Ports(), OpRecoverUpdate, OptUnreachable, vids)
	}
}

// handleFailureUpdate is the receive side of C6.
func (e *Engine) handleFailureUpdate(port string, payload []byte) {
	opt, vids, err := DecodeFloodUpdate(payload)
	if err != nil {
		e.dropOnce("failure-update-malformed", "%v", err)
		return
	}

	if e.Accepted.HasPort(port) {
		for _, v := range vids {
			e.Accepted.UnreachableAdd(port, v)
		}
		e.sendToOtherUpPorts(port, OpFailureUpdate, OptUnreachable, vids)
		return
	}

	if !e.Offered.HasPort(port) {
		return
	}

	e.Offered.ReachableClear(port)
	if opt == OptUnreachable {
		for _, v := range vids {
			e.Offered.UnreachableAdd(port, v)
		}
	} else {
		for _, v := range vids {
			e.Offered.ReachableAdd(port, v)
		}
	}

	if e.IsLeaf {
		return
	}

	if e.Offered.IsAnyDirty() {
		union := e.Offered.CollectUnreachableUnion()
		e.sendToUpPorts(e.Accepted.Ports(), OpFailureUpdate, OptUnreachable, union)
	}
}

// handleRecoverUpdate is the receive side of C6's recovery flood.
func (e *Engine) handleRecoverUpdate(port string, payload []byte) {
	opt, vids, err := DecodeFloodUpdate(payload)
	if err != nil {
		e.dropOnce("recover-update-malformed", "%v", err)
		return
	}

	if e.Accepted.HasPort(port) {
		for _, v := range vids {
			e.Accepted.UnreachableRemove(port, v)
		}
		e.sendToOtherUpPorts(port, OpRecoverUpdate, OptUnreachable, vids)
		return
	}

	if !e.Offered.HasPort(port) {
		return
	}

	if opt == OptUnreachable {
		before := e.Offered.IsAnyDirty()
		for _, v := range vids {
			e.Offered.UnreachableRemove(port, v)
		}
		after := e.Offered.IsAnyDirty()

		if e.IsLeaf {
			return
		}

		switch {
		case before && after:
			e.sendToUpPorts(e.Accepted.Ports(), OpRecoverUpdate, OptUnreachable, vids)
		case before && !after:
			extra := e.Offered.CollectUnreachableUnion()
			e.sendToUpPorts(e.Accepted.Ports(), OpRecoverUpdate, OptUnreachable, append(append([]VID{}, vids...), extra...))
		}
		// !before && !after: the local table was already clean; no-op.
		return
	}

	// OptReachable
	before := e.Offered.IsAnyDirty()
	e.Offered.ReachableClear(port)

	if e.IsLeaf {
		return
	}

	after := e.Offered.IsAnyDirty()
	if before && !after {
		union := e.Offered.CollectUnreachableUnion()
		if len(union) > 0 {
			e.sendToUpPorts(e.Accepted.Ports(), OpRecoverUpdate, OptUnreachable, union)
		}
	}
}

func (e *Engine) sendToOtherUpPorts(exclude string, op Opcode, opt Option, vids []VID) {
	if len(vids) == 0 {
		return
	}
	payload, err := EncodeFloodUpdate(op, opt, vids)
	if err != nil {
		mlog.Error("mtp: encoding flood update: %v", err)
		return
	}
	for _, cp := range e.Ports.Iter() {
		if cp.Name != exclude && cp.IsUp {
			e.sendControl(cp.Name, payload)
		}
	}
}

func (e *Engine) sendToUpPorts(ports []string, op Opcode, opt Option, vids []VID) {
	if len(vids) == 0 {
		return
	}
	payload, err := EncodeFloodUpdate(op, opt, vids)
	if err != nil {
		mlog.Error("mtp: encoding flood update: %v", err)
		return
	}
	for _, name := range ports {
		e.sendControlIfUp(name, payload)
	}
}
