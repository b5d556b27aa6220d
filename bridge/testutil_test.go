package bridge

import (
	"errors"
	"sync"
)

// fakeTransport is a minimal transport.Transport used to drive Channel
// directly from tests: outbound frames land in sent, and inbound frames are
// injected by calling Channel.onMessage directly rather than routing
// through the registered handler, keeping delivery synchronous and
// deterministic.
type fakeTransport struct {
	mu     sync.Mutex
	sent   []string
	closed bool
}

func (f *fakeTransport) Send(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("fakeTransport: closed")
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTransport) RegisterMessageHandler(func(string)) {}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTransport) lastSent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}
