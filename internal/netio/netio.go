// Package netio is the raw Ethernet I/O collaborator. Each MTP control
// port and the leaf's compute port gets its own libpcap handle, grounded on
// internal/bridge/bridge.go's per-bridge pcap.Handle and
// internal/bridge/capture.go's read loop. Every handle runs its own
// receive goroutine that decodes just the Ethernet header (as
// internal/bridge/ipmac.go does with gopacket.NewDecodingLayerParser) and
// fans the frame into a single shared channel, which is how the single-
// threaded MTP event loop (spec.md §5) gets its non-blocking receive
// endpoints without the core ever touching pcap directly.
package netio

import (
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/pjw7904/closnet/pkg/mlog"
)

const (
	snapLen = 1600
	timeout = time.Second
)

// EtherType values used to filter pcap handles to the traffic this agent
// cares about, per spec.md §6.
const (
	EtherTypeMTP  = 0x8850
	EtherTypeIPv4 = 0x0800
)

// Frame is a decoded inbound frame tagged with the port it arrived on.
type Frame struct {
	Port string
	Data []byte // full Ethernet frame, byte 0 is the destination MAC
}

// Port wraps a single libpcap handle bound to one interface and ethertype.
type Port struct {
	Name   string
	handle *pcap.Handle
}

// Open starts capturing on the named interface, filtered to etherType, and
// returns a handle that can Send frames. Received frames are pushed onto
// out as they arrive; Open starts the receive goroutine itself.
func Open(name string, etherType int, out chan<- Frame) (*Port, error) {
	handle, err := pcap.OpenLive(name, snapLen, true, timeout)
	if err != nil {
		return nil, fmt.Errorf("opening pcap handle on %s: %w", name, err)
	}

	filter := fmt.Sprintf("ether proto 0x%04x", etherType)
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("setting BPF filter on %s: %w", name, err)
	}

	p := &Port{Name: name, handle: handle}
	go p.recvLoop(out)
	return p, nil
}

// Send transmits a fully-formed Ethernet frame on this port.
func (p *Port) Send(frame []byte) error {
	return p.handle.WritePacketData(frame)
}

// Close stops capturing on this port.
func (p *Port) Close() {
	p.handle.Close()
}

func (p *Port) recvLoop(out chan<- Frame) {
	var eth layers.Ethernet
	parser := gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &eth)
	decoded := []gopacket.LayerType{}

	for {
		data, _, err := p.handle.ReadPacketData()
		if err != nil {
			if err == pcap.NextErrorTimeoutExpired {
				continue
			}
			if err != io.EOF {
				mlog.Error("netio: read on %s: %v", p.Name, err)
			}
			return
		}

		// Decode just far enough to confirm this is a well-formed
		// Ethernet II frame; the MTP/IPv4 payload is handled by the
		// core, which works on raw byte offsets per spec.md.
		if err := parser.DecodeLayers(data, &decoded); err != nil {
			mlog.Debug("netio: %s: skipping undecodable frame: %v", p.Name, err)
			continue
		}

		out <- Frame{Port: p.Name, Data: data}
	}
}
