// Package mtp implements the Meshed Tree Protocol switch agent: virtual-ID
// assignment over a join handshake, keep-alive/dead-timer liveness,
// failure/recovery flooding, and ECMP tenant forwarding. The engine is a
// single-threaded event loop (no internal locking) consuming from one
// fanned-in receive channel plus a periodic tick, mirroring the dispatch
// shape of internal/meshage's messageHandler in the teacher repo, but
// deliberately not its goroutine-per-connection concurrency: every
// handler below runs to completion before the next message is read.
package mtp

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/pjw7904/closnet/internal/iface"
	"github.com/pjw7904/closnet/internal/netio"
	"github.com/pjw7904/closnet/pkg/mlog"
)

// tickInterval is the event loop's minimum poll resolution for timers.
const tickInterval = 50 * time.Millisecond

// startupSettle is how long a leaf waits for peer interfaces to come up
// before emitting its first HelloNR burst, grounded on the source's
// hardcoded sleep(3) before that same burst.
const startupSettle = 3 * time.Second

// nodeDownLogName is the file the engine writes once, at shutdown.
const nodeDownLogName = "node_down.log"

// Sender abstracts the raw transmit side of a control or compute port so
// the engine can be unit tested without opening real pcap handles.
type Sender interface {
	Send(frame []byte) error
}

// portBinding holds a ControlPort's live transmit handle; the port's
// protocol state lives in the PortTable under the same name.
type portBinding struct {
	tx Sender
}

// Engine is the owned, single fabric-state value threaded through every
// handler: the C1-C3 tables, this switch's identity, and the transmit
// handles for every port. There is exactly one Engine per process.
type Engine struct {
	NodeName   string
	Tier       uint8
	IsLeaf     bool
	IsTopSpine bool
	HelloTimer time.Duration
	DeadTimer  time.Duration

	MyVID VID // set once on a leaf before the first HelloNR (I5); empty on a spine

	Ports    *PortTable
	Offered  *OfferedTable
	Accepted *AcceptedTable

	bindings map[string]*portBinding

	computeName string
	computeTx   Sender
	computeHdr  [EthHeaderLen]byte

	recv <-chan netio.Frame

	// LinkUp reports the current set of link-layer-up control interface
	// names, consulted once per tick by probeLinkState. Defaults to
	// iface.LinkUpSet; overridable so the event loop can be driven in
	// tests without a real network stack.
	LinkUp func(nodeName string) (map[string]bool, error)

	nodeDownPath string

	loggedDrops map[string]bool // decision -> logged-once guard (§7)
}

// NewEngine constructs an Engine with no ports registered yet; callers
// add control ports with AddControlPort (and a compute port, on a leaf,
// with SetComputePort) before calling Run.
func NewEngine(nodeName string, tier uint8, isTopSpine bool, helloTimer, deadTimer time.Duration, recv <-chan netio.Frame) *Engine {
	return &Engine{
		NodeName:   nodeName,
		Tier:       tier,
		IsLeaf:     tier == 1,
		IsTopSpine: isTopSpine,
		HelloTimer: helloTimer,
		DeadTimer:  deadTimer,
		Ports:      NewPortTable(),
		Offered:    NewOfferedTable(),
		Accepted:   NewAcceptedTable(),
		bindings:    make(map[string]*portBinding),
		recv:        recv,
		LinkUp:      iface.LinkUpSet,
		loggedDrops: make(map[string]bool),
	}
}

// AddControlPort registers a control port in the port table and binds its
// transmit handle.
func (e *Engine) AddControlPort(name string, portNum int, mac net.HardwareAddr, tx Sender) {
	hdr := BuildEthHeader(mac, EtherTypeMTP)
	e.Ports.Add(name, portNum, hdr)
	e.bindings[name] = &portBinding{tx: tx}
}

// SetComputePort registers the leaf's single compute-facing port and
// derives this switch's root VID from its IPv4 address, per I5. Must be
// called before the startup HelloNR burst.
func (e *Engine) SetComputePort(name string, mac net.HardwareAddr, ipv4 net.IP, tx Sender) {
	e.computeName = name
	e.computeTx = tx
	e.computeHdr = BuildEthHeader(mac, EtherTypeIPv4)

	v4 := ipv4.To4()
	var octs [4]byte
	copy(octs[:], v4)
	e.MyVID = RootVID(octs)
}

// SetNodeDownPath configures where the shutdown marker file is written.
// If unset, Run writes to "./node_down.log".
func (e *Engine) SetNodeDownPath(path string) {
	e.nodeDownPath = path
}

// BuildEthHeader renders a 14-byte Ethernet II header: broadcast
// destination, the given source MAC, and the given EtherType.
func BuildEthHeader(mac net.HardwareAddr, etherType uint16) [EthHeaderLen]byte {
	var hdr [EthHeaderLen]byte
	for i := 0; i < 6; i++ {
		hdr[i] = 0xFF
	}
	copy(hdr[6:12], mac)
	hdr[12] = byte(etherType >> 8)
	hdr[13] = byte(etherType)
	return hdr
}

// sendControl transmits payload (beginning at the opcode byte) on the
// named control port, prefixed with that port's header template. It does
// not check is_up (the join handshake runs on ports that are not up yet);
// sendControlIfUp is the guarded variant.
func (e *Engine) sendControl(port string, payload []byte) {
	cp := e.Ports.Lookup(port)
	b := e.bindings[port]
	if cp == nil || b == nil {
		return
	}
	frame := make([]byte, EthHeaderLen+len(payload))
	copy(frame, cp.HeaderTemplate[:])
	copy(frame[EthHeaderLen:], payload)
	if err := b.tx.Send(frame); err != nil {
		mlog.Error("mtp: send on %s: %v", port, err)
		return
	}
	e.Ports.TouchSent(port, NowMillis())
}

// sendControlIfUp is sendControl guarded by is_up, the mechanism P3 (down
// port inertness) relies on for keep-alives and data.
func (e *Engine) sendControlIfUp(port string, payload []byte) {
	cp := e.Ports.Lookup(port)
	if cp == nil || !cp.IsUp {
		return
	}
	e.sendControl(port, payload)
}

func (e *Engine) sendToCompute(ipv4Frame []byte) {
	if e.computeTx == nil {
		return
	}
	frame := make([]byte, EthHeaderLen+len(ipv4Frame))
	copy(frame, e.computeHdr[:])
	copy(frame[EthHeaderLen:], ipv4Frame)
	if err := e.computeTx.Send(frame); err != nil {
		mlog.Error("mtp: send to compute port %s: %v", e.computeName, err)
	}
}

func (e *Engine) dropOnce(key, reason string, args ...interface{}) {
	if e.loggedDrops[key] {
		return
	}
	e.loggedDrops[key] = true
	mlog.Info("mtp: drop (%s): "+reason, append([]interface{}{key}, args...)...)
}

// StartupBurst sends the initial HelloNR on every control port, as a leaf
// does once at startup. No-op on a spine, which only reacts to HelloNR
// from below.
func (e *Engine) StartupBurst() {
	if !e.IsLeaf {
		mlog.Info("mtp: spine %s waiting for hello messages", e.NodeName)
		return
	}

	time.Sleep(startupSettle)
	e.sendInitialHelloNR()
}

// sendInitialHelloNR is StartupBurst's payload, split out so tests can
// drive the handshake without paying for the settle sleep.
func (e *Engine) sendInitialHelloNR() {
	payload, err := EncodeHelloJoin(OpHelloNR, e.Tier, []VID{e.MyVID})
	if err != nil {
		mlog.Error("mtp: encoding startup HelloNR: %v", err)
		return
	}
	for _, cp := range e.Ports.Iter() {
		e.sendControl(cp.Name, payload)
	}
}

// Run drives the event loop until stop is closed, then writes
// node_down.log and returns.
func (e *Engine) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			e.shutdown()
			return
		case frame, ok := <-e.recv:
			if !ok {
				e.shutdown()
				return
			}
			e.dispatch(frame)
		case <-ticker.C:
			e.tick()
		}
	}
}

// dispatch normalizes a raw frame to (ingress port, opcode, payload) and
// routes it to the matching handler. Per §7, an unrecognized opcode, a
// frame shorter than declared, or an ingress port not belonging to this
// node is dropped silently.
func (e *Engine) dispatch(frame netio.Frame) {
	if len(frame.Data) < EthHeaderLen+1 {
		return
	}

	if frame.Port == e.computeName {
		e.handleTenantIngress(frame.Data[EthHeaderLen:])
		return
	}

	if e.Ports.Lookup(frame.Port) == nil {
		return // not one of our control ports; guards bridge loopback artifacts
	}

	payload := frame.Data[EthHeaderLen:]
	op := Opcode(payload[0])

	switch op {
	case OpHelloNR:
		e.handleHelloNR(frame.Port, payload)
	case OpJoinReq:
		e.handleJoinReq(frame.Port, payload)
	case OpJoinRes:
		e.handleJoinRes(frame.Port, payload)
	case OpJoinAck:
		e.handleJoinAck(frame.Port, payload)
	case OpStartHello:
		e.handleStartHello(frame.Port)
	case OpData:
		e.handleDataIngress(frame.Port, payload)
	case OpKeepAlive:
		e.handleKeepAlive(frame.Port)
	case OpFailureUpdate:
		e.handleFailureUpdate(frame.Port, payload)
	case OpRecoverUpdate:
		e.handleRecoverUpdate(frame.Port, payload)
	default:
		mlog.Debug("mtp: %s: unknown opcode %d, dropped", frame.Port, op)
	}
}

// tick fires on every poll boundary: emit due keep-alives, expire dead
// ports, and probe link state. All three are C5.
func (e *Engine) tick() {
	now := NowMillis()
	helloMS := e.HelloTimer.Milliseconds()
	deadMS := e.DeadTimer.Milliseconds()

	for _, cp := range e.Ports.Iter() {
		if cp.Started && now-cp.LastSentMS >= helloMS {
			e.sendKeepAlive(cp.Name)
		}
	}

	for _, cp := range e.Ports.Iter() {
		if cp.Started && cp.IsUp && cp.LastReceivedMS != 0 && now-cp.LastReceivedMS >= deadMS {
			e.onLocalFailure(cp.Name, FailMiss)
		}
	}

	e.probeLinkState()
}

func (e *Engine) sendKeepAlive(port string) {
	e.sendControlIfUp(port, []byte{byte(OpKeepAlive)})
}

func (e *Engine) shutdown() {
	path := e.nodeDownPath
	if path == "" {
		path = nodeDownLogName
	}
	ts := NowMillis()
	// Written unconditionally, even if file logging itself never opened:
	// this is the one piece of state the fabric persists across restart.
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", ts)), 0644); err != nil {
		mlog.Error("mtp: writing %s: %v", path, err)
	}
	mlog.Info("mtp: %s shutting down at %d", e.NodeName, ts)
}

// DumpOffered logs the current Offered table, for operators attaching to
// a running agent's log stream.
func (e *Engine) DumpOffered() {
	for _, port := range e.Offered.Ports() {
		mlog.Debug("mtp: offered[%s] = %v", port, e.Offered.VIDsOf(port))
	}
}

// DumpAccepted logs the current Accepted table.
func (e *Engine) DumpAccepted() {
	for _, port := range e.Accepted.Ports() {
		mlog.Debug("mtp: accepted[%s] = %v", port, e.Accepted.VIDsOf(port))
	}
}
