package mtp

import "testing"

// setupPort registers a control port with a capturing Sender and marks it
// up+started, mimicking a port that has already completed its handshake.
func setupPort(e *Engine, name string, num int) *capture {
	cap := &capture{}
	e.AddControlPort(name, num, testMAC(byte(num)), cap)
	e.Ports.SetUp(name, true)
	cp := e.Ports.Lookup(name)
	cp.Started = true
	return cap
}

func decodeFloodPayload(t *testing.T, frame []byte) (Option, []VID) {
	t.Helper()
	if len(frame) <= EthHeaderLen {
		t.Fatalf("frame too short: %d bytes", len(frame))
	}
	opt, vids, err := DecodeFloodUpdate(frame[EthHeaderLen:])
	if err != nil {
		t.Fatalf("decoding flood update: %v", err)
	}
	return opt, vids
}

// TestFloodLocalFailureOnAcceptedPort exercises the "P is an accepted port"
// branch of §4.6: UNREACHABLE floods on every other up port.
func TestFloodLocalFailureOnAcceptedPort(t *testing.T) {
	X := newTestEngine("X", 2, false)
	p1 := setupPort(X, "X-eth1", 1)
	p2 := setupPort(X, "X-eth2", 2)

	X.Accepted.Add("X-eth1", VID("7.1"))

	X.onLocalFailure("X-eth1", FailDetect)

	if X.Ports.Lookup("X-eth1").IsUp {
		t.Error("expected failed port marked down")
	}
	if len(p1.frames) != 0 {
		t.Error("expected no message sent back out the failed port itself")
	}
	if len(p2.frames) != 1 {
		t.Fatalf("expected exactly one relayed message to the surviving port, got %d", len(p2.frames))
	}
	opt, vids := decodeFloodPayload(t, p2.frames[0])
	if opt != OptUnreachable {
		t.Errorf("expected OptUnreachable, got %v", opt)
	}
	if len(vids) != 1 || vids[0] != VID("7.1") {
		t.Errorf("expected [7.1], got %v", vids)
	}
}

// TestFloodLocalFailureAllOfferedDownReachable exercises scenario 5: the
// last offered port failing, with no other offered ports, triggers a
// REACHABLE flood downward announcing every accepted VID.
func TestFloodLocalFailureAllOfferedDownReachable(t *testing.T) {
	X := newTestEngine("X", 2, false) // not top spine
	o1 := setupPort(X, "X-eth1", 1)   // the (sole) offered port, about to fail
	a1 := setupPort(X, "X-eth2", 2)   // a downstream accepted port

	X.Offered.Add("X-eth1", VID("9.1"))
	X.Accepted.Add("X-eth2", VID("7.2"))

	X.onLocalFailure("X-eth1", FailMiss)

	if len(o1.frames) != 0 {
		t.Error("expected no message sent back out the failed offered port")
	}
	if len(a1.frames) != 1 {
		t.Fatalf("expected one REACHABLE flood to the accepted port, got %d", len(a1.frames))
	}
	opt, vids := decodeFloodPayload(t, a1.frames[0])
	if opt != OptReachable {
		t.Errorf("expected OptReachable, got %v", opt)
	}
	if len(vids) != 1 || vids[0] != VID("7.2") {
		t.Errorf("expected [7.2], got %v", vids)
	}
}

// TestFloodLocalFailureDirtyOfferedUnreachable exercises the third branch:
// a local failure that leaves at least one surviving, dirty offered port,
// which gets an UNREACHABLE flood carrying the unreachable union.
func TestFloodLocalFailureDirtyOfferedUnreachable(t *testing.T) {
	X := newTestEngine("X", 2, false)
	o1 := setupPort(X, "X-eth1", 1) // stays up, already dirty
	setupPort(X, "X-eth2", 2)       // about to fail

	X.Offered.Add("X-eth1", VID("9.1"))
	X.Offered.Add("X-eth2", VID("9.2"))
	X.Offered.UnreachableAdd("X-eth1", VID("9.1"))

	X.onLocalFailure("X-eth2", FailMiss)

	if len(o1.frames) != 1 {
		t.Fatalf("expected one UNREACHABLE flood to the surviving offered port, got %d", len(o1.frames))
	}
	opt, vids := decodeFloodPayload(t, o1.frames[0])
	if opt != OptUnreachable {
		t.Errorf("expected OptUnreachable, got %v", opt)
	}
	if len(vids) != 1 || vids[0] != VID("9.1") {
		t.Errorf("expected [9.1], got %v", vids)
	}
}

// TestFloodLocalRecoveryAlwaysRecoverUpdate documents and verifies the
// deliberate deviation from the source: local recovery always emits
// RECOVER_UPDATE, never FAILURE_UPDATE, regardless of which branch fires.
func TestFloodLocalRecoveryAlwaysRecoverUpdate(t *testing.T) {
	X := newTestEngine("X", 2, false)
	p1 := setupPort(X, "X-eth1", 1)
	p2 := setupPort(X, "X-eth2", 2)
	X.Accepted.Add("X-eth1", VID("7.1"))

	X.floodLocalRecovery("X-eth1")

	if len(p1.frames) != 0 {
		t.Error("expected no message back out the recovering port")
	}
	if len(p2.frames) != 1 {
		t.Fatalf("expected one relayed recovery message, got %d", len(p2.frames))
	}
	opt, vids := decodeFloodPayload(t, p2.frames[0])
	_ = opt
	if len(vids) != 1 || vids[0] != VID("7.1") {
		t.Errorf("expected [7.1], got %v", vids)
	}
	op := Opcode(p2.frames[0][EthHeaderLen])
	if op != OpRecoverUpdate {
		t.Errorf("expected OpRecoverUpdate, got %v", op)
	}
}

// TestHandleFailureUpdateOnAcceptedRelays verifies receiving a
// FAILURE_UPDATE on an accepted port marks the VID unreachable there and
// relays it to every other up port.
func TestHandleFailureUpdateOnAcceptedRelays(t *testing.T) {
	Y := newTestEngine("Y", 2, false)
	setupPort(Y, "Y-eth1", 1)
	p2 := setupPort(Y, "Y-eth2", 2)
	Y.Accepted.Add("Y-eth1", VID("5"))

	payload, err := EncodeFloodUpdate(OpFailureUpdate, OptUnreachable, []VID{"5"})
	if err != nil {
		t.Fatal(err)
	}
	Y.handleFailureUpdate("Y-eth1", payload)

	if !Y.Accepted.IsUnreachable("Y-eth1", VID("5")) {
		t.Error("expected VID 5 marked unreachable on Y-eth1")
	}
	if len(p2.frames) != 1 {
		t.Fatalf("expected relay to the other up port, got %d frames", len(p2.frames))
	}
	opt, vids := decodeFloodPayload(t, p2.frames[0])
	if opt != OptUnreachable || len(vids) != 1 || vids[0] != VID("5") {
		t.Errorf("unexpected relay payload: opt=%v vids=%v", opt, vids)
	}
}

// TestHandleFailureUpdateOnOfferedRelaysDownward exercises scenario 6: a
// FAILURE_UPDATE arriving on a dirty offered port gets pushed down to every
// accepted port as the unreachable union.
func TestHandleFailureUpdateOnOfferedRelaysDownward(t *testing.T) {
	Y := newTestEngine("Y", 2, false)
	setupPort(Y, "Y-eth1", 1) // offered port the update arrives on
	a1 := setupPort(Y, "Y-eth2", 2)

	Y.Offered.Add("Y-eth1", VID("9.1"))
	Y.Accepted.Add("Y-eth2", VID("7.2"))

	payload, err := EncodeFloodUpdate(OpFailureUpdate, OptUnreachable, []VID{"9.1"})
	if err != nil {
		t.Fatal(err)
	}
	Y.handleFailureUpdate("Y-eth1", payload)

	if !Y.Offered.IsDirty("Y-eth1") {
		t.Error("expected Y-eth1 marked dirty")
	}
	if len(a1.frames) != 1 {
		t.Fatalf("expected downward relay to the accepted port, got %d", len(a1.frames))
	}
	opt, vids := decodeFloodPayload(t, a1.frames[0])
	if opt != OptUnreachable || len(vids) != 1 || vids[0] != VID("9.1") {
		t.Errorf("unexpected relay payload: opt=%v vids=%v", opt, vids)
	}
}

// TestHandleFailureUpdateLeafDoesNotRelay verifies a leaf updates its
// offered-port tables but never relays downward (it has no accepted ports
// to relay to in the first place, but the early return must still hold).
func TestHandleFailureUpdateLeafDoesNotRelay(t *testing.T) {
	L := newTestEngine("L", 1, false)
	setupPort(L, "L-eth1", 1)
	L.Offered.Add("L-eth1", VID("9.1"))

	payload, err := EncodeFloodUpdate(OpFailureUpdate, OptUnreachable, []VID{"9.1"})
	if err != nil {
		t.Fatal(err)
	}
	L.handleFailureUpdate("L-eth1", payload)

	if !L.Offered.IsDirty("L-eth1") {
		t.Error("expected the leaf's own offered table still updated")
	}
}

// TestHandleRecoverUpdateOnOfferedClearsAndRelays exercises the
// before-dirty/after-clean branch: the last unreachable VID on an offered
// port clearing triggers a downward RECOVER_UPDATE relay.
func TestHandleRecoverUpdateOnOfferedClearsAndRelays(t *testing.T) {
	Y := newTestEngine("Y", 2, false)
	setupPort(Y, "Y-eth1", 1)
	a1 := setupPort(Y, "Y-eth2", 2)

	Y.Offered.Add("Y-eth1", VID("9.1"))
	Y.Offered.UnreachableAdd("Y-eth1", VID("9.1"))
	Y.Accepted.Add("Y-eth2", VID("7.2"))

	payload, err := EncodeFloodUpdate(OpRecoverUpdate, OptUnreachable, []VID{"9.1"})
	if err != nil {
		t.Fatal(err)
	}
	Y.handleRecoverUpdate("Y-eth1", payload)

	if Y.Offered.IsDirty("Y-eth1") {
		t.Error("expected Y-eth1 clean after recovery")
	}
	if len(a1.frames) != 1 {
		t.Fatalf("expected downward recovery relay, got %d frames", len(a1.frames))
	}
	opt, vids := decodeFloodPayload(t, a1.frames[0])
	if opt != OptUnreachable || len(vids) != 1 || vids[0] != VID("9.1") {
		t.Errorf("unexpected relay payload: opt=%v vids=%v", opt, vids)
	}
}

// TestHandleRecoverUpdateOnAcceptedRelays verifies receiving a
// RECOVER_UPDATE on an accepted port clears its unreachable entry and
// relays to other up ports.
func TestHandleRecoverUpdateOnAcceptedRelays(t *testing.T) {
	Y := newTestEngine("Y", 2, false)
	setupPort(Y, "Y-eth1", 1)
	p2 := setupPort(Y, "Y-eth2", 2)
	Y.Accepted.Add("Y-eth1", VID("5"))
	Y.Accepted.UnreachableAdd("Y-eth1", VID("5"))

	payload, err := EncodeFloodUpdate(OpRecoverUpdate, OptUnreachable, []VID{"5"})
	if err != nil {
		t.Fatal(err)
	}
	Y.handleRecoverUpdate("Y-eth1", payload)

	if Y.Accepted.IsUnreachable("Y-eth1", VID("5")) {
		t.Error("expected VID 5 no longer unreachable on Y-eth1")
	}
	if len(p2.frames) != 1 {
		t.Fatalf("expected relay to the other up port, got %d", len(p2.frames))
	}
}
