package mtp

import (
	"net"
	"time"

	"github.com/pjw7904/closnet/internal/netio"
)

// wire is a Sender that hands frames straight to a peer Engine's dispatch
// loop, letting tests exercise the full synchronous handler chain (hello
// -> join -> keep-alive -> data) without a real network.
type wire struct {
	peer *Engine
	port string
}

func (w *wire) Send(frame []byte) error {
	w.peer.dispatch(netio.Frame{Port: w.port, Data: frame})
	return nil
}

func testMAC(b byte) net.HardwareAddr {
	return net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, b}
}

// link wires two engines together on a pair of named ports, in both
// directions.
func link(a *Engine, aPort string, aPortNum int, b *Engine, bPort string, bPortNum int) {
	a.AddControlPort(aPort, aPortNum, testMAC(1), &wire{peer: b, port: bPort})
	b.AddControlPort(bPort, bPortNum, testMAC(2), &wire{peer: a, port: aPort})
}

// newTestEngine builds an Engine with its own link-state probe stubbed out
// to always report every currently registered control port as up, so
// tick()-driven tests aren't disturbed by whatever interfaces happen to
// exist on the machine running the test.
func newTestEngine(name string, tier uint8, topSpine bool) *Engine {
	e := NewEngine(name, tier, topSpine, 500*time.Millisecond, 1500*time.Millisecond, nil)
	e.LinkUp = func(string) (map[string]bool, error) {
		up := make(map[string]bool)
		for _, cp := range e.Ports.Iter() {
			up[cp.Name] = true
		}
		return up, nil
	}
	return e
}
