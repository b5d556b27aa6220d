package bridge

import (
	"encoding/json"
	"sync"

	"github.com/objectbridge/bridge/globals"
)

// pendingTable is the correlation table described in spec.md §4.4: a simple
// associative structure from outbound request id to a one-shot completion
// callback. No entry is ever replaced; a duplicate insert is a programming
// error, and a callback runs at most once before its entry is erased.
type pendingTable struct {
	mu    sync.Mutex
	calls map[uint64]func(json.RawMessage)
}

func newPendingTable() *pendingTable {
	return &pendingTable{calls: make(map[uint64]func(json.RawMessage))}
}

func (p *pendingTable) insert(id uint64, cb func(json.RawMessage)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.calls[id]; exists {
		globals.Logger.Error(nil, "pending-call id already in use", "id", id)
		return
	}
	p.calls[id] = cb
}

// resolve erases and returns the callback registered for id, if any.
func (p *pendingTable) resolve(id uint64) (func(json.RawMessage), bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cb, ok := p.calls[id]
	if ok {
		delete(p.calls, id)
	}
	return cb, ok
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
