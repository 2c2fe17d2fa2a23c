package mtp

import (
	"encoding/binary"
	"fmt"
)

// Opcode identifies the MTP message carried at payload byte 0 (frame byte
// 14, immediately after the Ethernet II header).
type Opcode byte

const (
	OpHelloNR       Opcode = 1
	OpJoinReq       Opcode = 2
	OpJoinRes       Opcode = 3
	OpJoinAck       Opcode = 4
	OpStartHello    Opcode = 5
	OpData          Opcode = 6
	OpKeepAlive     Opcode = 7
	OpFailureUpdate Opcode = 8
	OpRecoverUpdate Opcode = 9
)

// Option distinguishes the two flood-engine message flavors.
type Option byte

const (
	OptUnreachable Option = 1
	OptReachable   Option = 2
)

// EthHeaderLen is the size of an Ethernet II header: dst MAC, src MAC,
// EtherType.
const EthHeaderLen = 14

// EtherTypeMTP and EtherTypeIPv4 are the two EtherTypes this agent ever
// sends or filters its capture on.
const (
	EtherTypeMTP  = 0x8850
	EtherTypeIPv4 = 0x0800
)

// MaxVIDsPerMsg bounds the VID set carried in a single control message.
// The source's scratch array hints at 32 without ever stating it plainly;
// this implementation makes the limit explicit and drops any message that
// declares more.
const MaxVIDsPerMsg = 32

// dataHeaderLen is the 5-byte MTP header prepended to a tenant IPv4 frame:
// opcode, src_vid (u16 be), dst_vid (u16 be).
const dataHeaderLen = 5

// ErrMalformed is returned (and the caller drops the frame) for any
// control message that doesn't parse cleanly.
var ErrMalformed = fmt.Errorf("malformed MTP message")

// EncodeVIDSet renders vids as an explicit count byte followed by, for
// each VID, a one-byte length and the VID's raw bytes. The source instead
// relies on in-band sentinels; spec.md's open question on this point calls
// for a length-prefixed encoding instead, which is what this does.
func EncodeVIDSet(vids []VID) ([]byte, error) {
	if len(vids) > MaxVIDsPerMsg {
		return nil, fmt.Errorf("%w: %d VIDs exceeds max %d", ErrMalformed, len(vids), MaxVIDsPerMsg)
	}
	out := make([]byte, 0, 1+len(vids)*8)
	out = append(out, byte(len(vids)))
	for _, v := range vids {
		if len(v) > MaxVIDLen {
			return nil, fmt.Errorf("%w: VID %q exceeds max length", ErrMalformed, v)
		}
		out = append(out, byte(len(v)))
		out = append(out, []byte(v)...)
	}
	return out, nil
}

// DecodeVIDSet parses a VID set produced by EncodeVIDSet, returning the
// VIDs and the number of bytes consumed.
func DecodeVIDSet(buf []byte) ([]VID, int, error) {
	if len(buf) < 1 {
		return nil, 0, fmt.Errorf("%w: empty VID set header", ErrMalformed)
	}
	count := int(buf[0])
	if count == 0 || count > MaxVIDsPerMsg {
		return nil, 0, fmt.Errorf("%w: VID set count %d out of range", ErrMalformed, count)
	}

	pos := 1
	vids := make([]VID, 0, count)
	for i := 0; i < count; i++ {
		if pos >= len(buf) {
			return nil, 0, fmt.Errorf("%w: truncated VID set", ErrMalformed)
		}
		n := int(buf[pos])
		pos++
		if pos+n > len(buf) {
			return nil, 0, fmt.Errorf("%w: truncated VID", ErrMalformed)
		}
		vids = append(vids, VID(buf[pos:pos+n]))
		pos += n
	}
	return vids, pos, nil
}

// EncodeHelloJoin builds the payload (starting at the opcode byte) for
// HELLONR, JOIN_REQ, JOIN_RES, and JOIN_ACK messages.
func EncodeHelloJoin(op Opcode, tier uint8, vids []VID) ([]byte, error) {
	vidBytes, err := EncodeVIDSet(vids)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, 2+len(vidBytes))
	payload = append(payload, byte(op), tier)
	payload = append(payload, vidBytes...)
	return payload, nil
}

// DecodeHelloJoin parses a HELLONR/JOIN_* payload, which must begin with
// the opcode byte.
func DecodeHelloJoin(payload []byte) (tier uint8, vids []VID, err error) {
	if len(payload) < 2 {
		return 0, nil, fmt.Errorf("%w: short hello/join payload", ErrMalformed)
	}
	tier = payload[1]
	vids, _, err = DecodeVIDSet(payload[2:])
	return tier, vids, err
}

// EncodeFloodUpdate builds the payload for FAILURE_UPDATE/RECOVER_UPDATE
// messages.
func EncodeFloodUpdate(op Opcode, opt Option, vids []VID) ([]byte, error) {
	vidBytes, err := EncodeVIDSet(vids)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, 2+len(vidBytes))
	payload = append(payload, byte(op), byte(opt))
	payload = append(payload, vidBytes...)
	return payload, nil
}

// DecodeFloodUpdate parses a FAILURE_UPDATE/RECOVER_UPDATE payload.
func DecodeFloodUpdate(payload []byte) (opt Option, vids []VID, err error) {
	if len(payload) < 2 {
		return 0, nil, fmt.Errorf("%w: short flood payload", ErrMalformed)
	}
	opt = Option(payload[1])
	if opt != OptUnreachable && opt != OptReachable {
		return 0, nil, fmt.Errorf("%w: unknown option %d", ErrMalformed, opt)
	}
	vids, _, err = DecodeVIDSet(payload[2:])
	return opt, vids, err
}

// EncodeData builds the 5-byte MTP data header plus the original tenant
// IPv4 frame that follows it.
func EncodeData(srcVID, dstVID uint16, ipv4Frame []byte) []byte {
	out := make([]byte, dataHeaderLen+len(ipv4Frame))
	out[0] = byte(OpData)
	binary.BigEndian.PutUint16(out[1:3], srcVID)
	binary.BigEndian.PutUint16(out[3:5], dstVID)
	copy(out[dataHeaderLen:], ipv4Frame)
	return out
}

// DecodeData parses a DATA payload, returning the carried VIDs and the
// enclosed IPv4 frame (a view into payload, not a copy).
func DecodeData(payload []byte) (srcVID, dstVID uint16, ipv4Frame []byte, err error) {
	if len(payload) < dataHeaderLen {
		return 0, 0, nil, fmt.Errorf("%w: short data header", ErrMalformed)
	}
	srcVID = binary.BigEndian.Uint16(payload[1:3])
	dstVID = binary.BigEndian.Uint16(payload[3:5])
	return srcVID, dstVID, payload[dataHeaderLen:], nil
}

// HashOctets extracts the third and fourth octets of the source and
// destination IPv4 addresses, the fixed 4-byte key the ECMP hash is
// computed over (absolute frame offsets 33/34/37/38 in spec.md, here
// relative to the start of the IPv4 header itself).
func HashOctets(ipv4Frame []byte) ([4]byte, error) {
	var out [4]byte
	if len(ipv4Frame) < 20 {
		return out, fmt.Errorf("%w: short IPv4 header", ErrMalformed)
	}
	out[0] = ipv4Frame[14] // src addr third octet
	out[1] = ipv4Frame[15] // src addr fourth octet
	out[2] = ipv4Frame[18] // dst addr third octet
	out[3] = ipv4Frame[19] // dst addr fourth octet
	return out, nil
}

// vidOctet extracts the single-byte VID (the VIDOctet-th octet) from
// an IPv4 address embedded in ipv4Frame at the given header offset (12 for
// source, 16 for destination).
func vidOctet(ipv4Frame []byte, addrOffset int) byte {
	return ipv4Frame[addrOffset+VIDOctet-1]
}

// SrcDstVIDOctets extracts the leaf-local, single-byte source and
// destination VIDs from a raw IPv4 frame, per spec.md §4.5.
func SrcDstVIDOctets(ipv4Frame []byte) (src, dst byte, err error) {
	if len(ipv4Frame) < 20 {
		return 0, 0, fmt.Errorf("%w: short IPv4 header", ErrMalformed)
	}
	return vidOctet(ipv4Frame, 12), vidOctet(ipv4Frame, 16), nil
}
