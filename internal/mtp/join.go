package mtp

import "github.com/pjw7904/closnet/pkg/mlog"

// handleHelloNR is C4's entry point: a HelloNR from a strictly lower tier
// neighbor gets a JoinReq echoed straight back on the ingress port. A
// HelloNR from a peer or upper tier is a protection against upward loops
// and is dropped.
func (e *Engine) handleHelloNR(port string, payload []byte) {
	tier, vids, err := DecodeHelloJoin(payload)
	if err != nil {
		e.dropOnce("hellonr-malformed", "%v", err)
		return
	}
	if tier >= e.Tier {
		return
	}

	mlog.Debug("mtp: %s: HelloNR from tier %d, vids=%v", port, tier, vids)

	resp, err := EncodeHelloJoin(OpJoinReq, e.Tier, vids)
	if err != nil {
		mlog.Error("mtp: encoding JoinReq: %v", err)
		return
	}
	e.sendControl(port, resp)
}

// handleJoinReq extends every offered VID by this switch's own ingress
// port number (I6) and echoes a JoinRes back on the same port.
func (e *Engine) handleJoinReq(port string, payload []byte) {
	_, vids, err := DecodeHelloJoin(payload)
	if err != nil {
		e.dropOnce("joinreq-malformed", "%v", err)
		return
	}

	cp := e.Ports.Lookup(port)
	if cp == nil {
		return
	}

	extended := make([]VID, len(vids))
	for i, v := range vids {
		extended[i] = v.Extend(cp.Port)
	}

	resp, err := EncodeHelloJoin(OpJoinRes, e.Tier, extended)
	if err != nil {
		mlog.Error("mtp: encoding JoinRes: %v", err)
		return
	}
	e.sendControl(port, resp)
}

// handleJoinRes accepts the extended VID set on the ingress (now
// accepted/downstream) port, relays a fresh HelloNR on every control port
// to keep propagating the VID further up the tree (unless this switch is
// the top spine), then acknowledges with JoinAck.
func (e *Engine) handleJoinRes(port string, payload []byte) {
	_, vids, err := DecodeHelloJoin(payload)
	if err != nil {
		e.dropOnce("joinres-malformed", "%v", err)
		return
	}

	for _, v := range vids {
		e.Accepted.Add(port, v)
	}
	e.DumpAccepted()

	if !e.IsTopSpine {
		relay, err := EncodeHelloJoin(OpHelloNR, e.Tier, vids)
		if err != nil {
			mlog.Error("mtp: encoding relay HelloNR: %v", err)
		} else {
			for _, cp := range e.Ports.Iter() {
				e.sendControl(cp.Name, relay)
			}
		}
	}

	ack, err := EncodeHelloJoin(OpJoinAck, e.Tier, vids)
	if err != nil {
		mlog.Error("mtp: encoding JoinAck: %v", err)
		return
	}
	e.sendControl(port, ack)
}

// handleJoinAck records the offered VID set on the ingress (now
// offered/upstream) port, brings it up, and replies with StartHello to
// close the handshake.
func (e *Engine) handleJoinAck(port string, payload []byte) {
	_, vids, err := DecodeHelloJoin(payload)
	if err != nil {
		e.dropOnce("joinack-malformed", "%v", err)
		return
	}

	for _, v := range vids {
		e.Offered.Add(port, v)
	}
	e.DumpOffered()

	e.Ports.SetUp(port, true)
	if cp := e.Ports.Lookup(port); cp != nil {
		cp.Started = true
	}

	e.sendControl(port, []byte{byte(OpStartHello)})
}

// handleStartHello closes the handshake on the acknowledging side.
func (e *Engine) handleStartHello(port string) {
	e.Ports.SetUp(port, true)
	if cp := e.Ports.Lookup(port); cp != nil {
		cp.Started = true
	}
}
