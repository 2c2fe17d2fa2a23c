package mtp

import "github.com/pjw7904/closnet/pkg/mlog"

// handleKeepAlive implements the receive side of C5: refresh the port's
// last-received timestamp, and if the port is down for any reason other
// than DetectFail, count this keep-alive toward the 3-in-a-row recovery
// criterion.
func (e *Engine) handleKeepAlive(port string) {
	cp := e.Ports.Lookup(port)
	if cp == nil {
		return
	}
	now := NowMillis()

	if cp.FailCause == FailDetect {
		// I3: DetectFail only clears via the link-state probe.
		e.Ports.TouchReceived(port, now)
		return
	}

	if !cp.IsUp && now-cp.LastReceivedMS < e.DeadTimer.Milliseconds() {
		counter := e.Ports.BumpRecovery(port)
		mlog.Debug("mtp: %s: on-time keep-alive, recovery count=%d", port, counter)
		if counter == 3 {
			cp.IsUp = true
			mlog.Info("mtp: %s: recovered after 3 consecutive keep-alives", port)
			e.floodLocalRecovery(port)
		}
	}

	e.Ports.TouchReceived(port, now)
}

// probeLinkState implements C5's OS link-state probe: a started port
// whose interface name no longer reports link-up transitions to
// DetectFail; one that reappears has its fail cause cleared (but must
// still re-earn is_up through the normal handshake/recovery path).
func (e *Engine) probeLinkState() {
	up, err := e.LinkUp(e.NodeName)
	if err != nil {
		mlog.Error("mtp: link-state probe: %v", err)
		return
	}

	for _, cp := range e.Ports.Iter() {
		if !cp.Started {
			continue
		}
		linkUp := up[cp.Name]

		if !linkUp && cp.IsUp {
			e.onLocalFailure(cp.Name, FailDetect)
			continue
		}
		if linkUp && cp.FailCause == FailDetect {
			e.Ports.ClearFail(cp.Name)
		}
	}
}
