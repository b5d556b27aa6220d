package transport

import (
	"io"
	"sync"

	"github.com/creachadair/jrpc2/channel"

	"github.com/objectbridge/bridge/globals"
)

// Stream is a Transport over any newline-delimited io.ReadWriteCloser —
// a TCP socket, a pipe to a child process, stdin/stdout — framed with
// channel.Line exactly as the teacher's daemon clients frame local-process
// JSON-RPC traffic when they are not talking over a WebSocket.
type Stream struct {
	ch channel.Channel

	mu      sync.Mutex
	handler func(string)
	done    chan struct{}
}

// NewStream wraps rwc, a stream where every message is one line of JSON
// terminated by '\n'.
func NewStream(rwc io.ReadWriteCloser) *Stream {
	return &Stream{ch: channel.Line(rwc, rwc), done: make(chan struct{})}
}

func (s *Stream) Send(text string) error {
	return s.ch.Send([]byte(text))
}

func (s *Stream) RegisterMessageHandler(handler func(text string)) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
	go s.readLoop()
}

func (s *Stream) readLoop() {
	defer close(s.done)
	for {
		msg, err := s.ch.Recv()
		if err != nil {
			if !channel.IsErrClosing(err) {
				globals.Logger.V(1).Info("transport: stream read loop ended", "error", err.Error())
			}
			return
		}
		s.mu.Lock()
		h := s.handler
		s.mu.Unlock()
		if h != nil {
			h(string(msg))
		}
	}
}

func (s *Stream) Close() error {
	return s.ch.Close()
}
