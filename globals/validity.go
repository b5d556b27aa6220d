package globals

import "sync"

// Handle is an opaque, process-wide unique identifier minted for every proxy
// the instant it is constructed. It stands in for the raw pointer addresses
// the original implementation used to validate inbound "__ptr__" markers;
// see SPEC_FULL.md §9 design notes for why an opaque handle is the safe
// re-architecture of that idea.
type Handle uint64

var handleCounter counterState

// NextHandle mints a new process-wide unique, non-zero Handle.
func NextHandle() Handle {
	return Handle(handleCounter.next())
}

// ValiditySet is the process-wide set of all currently-live proxies, keyed by
// their Handle. A "__ptr__" marker received from the peer is only ever
// resolved through this set, so a stale handle can never be coerced back
// into a live proxy. The bridge package registers the concrete *Proxy type
// here; ValiditySet itself stays untyped so that globals does not have to
// import the bridge package.
type ValiditySet struct {
	mu   sync.Mutex
	live map[Handle]any
}

func NewValiditySet() *ValiditySet {
	return &ValiditySet{live: make(map[Handle]any)}
}

// Validity is the single process-wide validity set. Multiple channels in the
// same process share it, matching §5 "Shared resources" in the spec.
var Validity = NewValiditySet()

func (v *ValiditySet) Register(h Handle, proxy any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.live[h]; exists {
		panic("globals: duplicate handle registration")
	}
	v.live[h] = proxy
}

func (v *ValiditySet) Unregister(h Handle) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.live, h)
}

// Lookup returns the proxy registered under h, if it is still live.
func (v *ValiditySet) Lookup(h Handle) (any, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.live[h]
	return p, ok
}
