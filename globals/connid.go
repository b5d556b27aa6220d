package globals

import "sync/atomic"

// counterState is a monotonic uint64 counter that never yields zero, used
// both for process-wide signal-connection ids (§3: "process-wide unique
// non-zero positive integers, assigned by a monotonic counter that wraps
// past zero") and for minting Handles.
type counterState struct {
	n atomic.Uint64
}

func (c *counterState) next() uint64 {
	for {
		v := c.n.Add(1)
		if v != 0 {
			return v
		}
		// wrapped exactly onto zero; skip it and keep going
	}
}

var connectionIDCounter counterState

// NextConnectionID mints the next process-wide unique, non-zero signal
// connection id. Connection ids are global, not per-channel or per-proxy,
// so that two connections anywhere in the process are never confused even
// if the ids happened to wrap.
func NextConnectionID() uint64 {
	return connectionIDCounter.next()
}
