package transport

import "sync"

// Memory is an in-process Transport, typically used in tests and in
// NewMemoryPair to simulate a peer without a real socket. Messages sent on
// one end are delivered, in order, to the other end's handler on a
// dedicated goroutine — this preserves the "signals, responses and
// property updates are processed in the order they arrive" ordering
// guarantee from spec.md §5 without requiring the test to drive the loop
// itself.
type Memory struct {
	mu      sync.Mutex
	handler func(string)
	peer    *Memory
	closed  bool
	inbox   chan string
	done    chan struct{}
}

// NewMemoryPair returns two Transports, each end's Send delivering to the
// other end's registered handler.
func NewMemoryPair() (a, b *Memory) {
	a = &Memory{inbox: make(chan string, 64), done: make(chan struct{})}
	b = &Memory{inbox: make(chan string, 64), done: make(chan struct{})}
	a.peer = b
	b.peer = a
	return a, b
}

func (m *Memory) Send(text string) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return errClosed
	}
	return m.peer.deliver(text)
}

// deliver enqueues text on m's own inbox, checking and acting on m's closed
// flag under m's own lock — the same lock Close takes before closing the
// channel — so a Send racing a Close on the receiving end either lands
// before the close or is rejected with errClosed, and never writes to an
// already-closed channel.
func (m *Memory) deliver(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	m.inbox <- text
	return nil
}

func (m *Memory) RegisterMessageHandler(handler func(text string)) {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
	go m.pump()
}

func (m *Memory) pump() {
	defer close(m.done)
	for text := range m.inbox {
		m.mu.Lock()
		h := m.handler
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return
		}
		if h != nil {
			h(text)
		}
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	close(m.inbox)
	return nil
}

type memoryError string

func (e memoryError) Error() string { return string(e) }

const errClosed = memoryError("transport: memory transport closed")
