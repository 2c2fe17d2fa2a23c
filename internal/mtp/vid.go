package mtp

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxVIDLen bounds a single encoded VID string, matching VID_LEN in the
// original agent's wire format.
const MaxVIDLen = 64

// VIDOctet is the IPv4 octet (1-indexed) a leaf's root VID is derived
// from. Fixed at 3, same as the source's VID_octet constant. A fabric with
// overlapping third octets across leaves will collide; this is a known,
// documented limitation rather than something this package guards against.
const VIDOctet = 3

// VID is a dot-separated, hierarchical path identifier, e.g. "7" or
// "7.2.4". Equality is lexical (plain string comparison).
type VID string

// Extend appends the egress port number used when a switch relays a VID
// further up the tree, producing e.g. "7" -> "7.2".
func (v VID) Extend(port int) VID {
	return VID(fmt.Sprintf("%s.%d", v, port))
}

// RootVID derives a leaf's own VID from the third octet of its compute
// interface's IPv4 address, per I5.
func RootVID(ipv4 [4]byte) VID {
	return VID(strconv.Itoa(int(ipv4[VIDOctet-1])))
}

// Root returns the leading, unextended segment of a (possibly
// tier-extended) VID, e.g. "7.1.2".Root() == "7". A DATA header only ever
// carries this bare leaf identifier (a single uint16), never the dotted
// path a join handshake builds up through intermediate tiers, so the
// forwarding path matches on this segment rather than full VID equality.
func (v VID) Root() VID {
	if i := strings.IndexByte(string(v), '.'); i >= 0 {
		return v[:i]
	}
	return v
}
