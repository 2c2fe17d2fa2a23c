package mtp

import "strconv"

// handleDataIngress is C7's MTP-side entry point. A leaf strips the MTP
// header and hands the enclosed IPv4 frame to its compute port; a spine
// forwards on the matching accepted port, or pushes the frame further up
// via hashed ECMP over the eligible offered ports.
func (e *Engine) handleDataIngress(port string, payload []byte) {
	e.Ports.TouchReceived(port, NowMillis())

	_, dstVID, ipv4Frame, err := DecodeData(payload)
	if err != nil {
		e.dropOnce("data-malformed", "%v", err)
		return
	}

	if e.IsLeaf {
		e.sendToCompute(ipv4Frame)
		return
	}

	dest := VID(strconv.Itoa(int(dstVID)))

	if accPort, full, ok := e.Accepted.PortWithRootVID(dest); ok {
		cp := e.Ports.Lookup(accPort)
		if cp == nil || !cp.IsUp || e.Accepted.IsUnreachable(accPort, full) {
			e.dropOnce("data-accepted-down-"+accPort, "accepted port %s down or unreachable for %s", accPort, dest)
			return
		}
		e.sendControl(accPort, payload)
		return
	}

	e.pushUp(dest, ipv4Frame, payload)
}

// handleTenantIngress is C7's tenant-IPv4 entry point (leaf only): derive
// the source/destination VIDs from the host's address, hash-select an
// eligible offered port, and emit the frame with a freshly built MTP data
// header.
func (e *Engine) handleTenantIngress(ipv4Frame []byte) {
	src, dst, err := SrcDstVIDOctets(ipv4Frame)
	if err != nil {
		e.dropOnce("tenant-malformed", "%v", err)
		return
	}

	dest := VID(strconv.Itoa(int(dst)))
	payload := EncodeData(uint16(src), uint16(dst), ipv4Frame)
	e.pushUp(dest, ipv4Frame, payload)
}

// pushUp hashes the frame's IPv4 octets over the ports currently eligible
// for dest and emits payload on the selected one, dropping if none are
// eligible.
func (e *Engine) pushUp(dest VID, ipv4Frame, payload []byte) {
	eligible := e.Offered.EligibleOfferedPortsFor(e.Ports, dest)
	if len(eligible) == 0 {
		e.dropOnce("no-eligible-offered-"+string(dest), "0 eligible offered ports for VID %s", dest)
		return
	}

	octets, err := HashOctets(ipv4Frame)
	if err != nil {
		e.dropOnce("hash-malformed", "%v", err)
		return
	}

	idx := JenkinsOneAtATime(octets[:]) % uint32(len(eligible))
	e.sendControl(eligible[idx], payload)
}
