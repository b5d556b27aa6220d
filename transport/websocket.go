package transport

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/creachadair/jrpc2/channel"
	"github.com/gorilla/websocket"

	"github.com/objectbridge/bridge/globals"
)

// wsReadWriteCloser adapts a *websocket.Conn to io.ReadWriteCloser so it can
// be handed to a channel.Framing. Each Read pulls from the connection's
// current text-message reader, re-fetching a new one once the prior message
// is exhausted; each Write opens one text message, buffers into it, and
// closes it once the full slice has been written. This is the same shape as
// the teacher's glue/rwc adapter for gorilla/websocket.
type wsReadWriteCloser struct {
	ws *websocket.Conn
	r  io.Reader
	w  io.WriteCloser
}

func newWSReadWriteCloser(ws *websocket.Conn) *wsReadWriteCloser {
	return &wsReadWriteCloser{ws: ws}
}

func (rwc *wsReadWriteCloser) Read(p []byte) (n int, err error) {
	if rwc.r == nil {
		_, rwc.r, err = rwc.ws.NextReader()
		if err != nil {
			return 0, err
		}
	}
	for n < len(p) {
		var m int
		m, err = rwc.r.Read(p[n:])
		n += m
		if err == io.EOF {
			rwc.r = nil
			err = nil
			break
		}
		if err != nil {
			break
		}
	}
	return
}

func (rwc *wsReadWriteCloser) Write(p []byte) (n int, err error) {
	if rwc.w == nil {
		rwc.w, err = rwc.ws.NextWriter(websocket.TextMessage)
		if err != nil {
			return 0, err
		}
	}
	for n < len(p) {
		var m int
		m, err = rwc.w.Write(p[n:])
		n += m
		if err != nil {
			break
		}
	}
	if err != nil || n == len(p) {
		err = rwc.Close()
	}
	return
}

func (rwc *wsReadWriteCloser) Close() (err error) {
	if rwc.w != nil {
		err = rwc.w.Close()
		rwc.w = nil
	}
	return err
}

// WebSocket is a Transport backed by a gorilla/websocket connection. Each
// record is one complete JSON document, framed with channel.RawJSON exactly
// as the teacher's daemon client frames its JSON-RPC traffic.
type WebSocket struct {
	ws *websocket.Conn
	ch channel.Channel

	mu      sync.Mutex
	handler func(string)
	closed  bool
	done    chan struct{}
}

// DialWebSocket connects to addr (a ws:// or wss:// URL) and returns a ready
// Transport. It does not start delivering messages until
// RegisterMessageHandler has been called.
func DialWebSocket(addr string, dialTimeout time.Duration) (*WebSocket, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: dialTimeout}
	ws, _, err := dialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return NewWebSocket(ws), nil
}

// NewWebSocket wraps an already-established connection.
func NewWebSocket(ws *websocket.Conn) *WebSocket {
	rwc := newWSReadWriteCloser(ws)
	return &WebSocket{
		ws:   ws,
		ch:   channel.RawJSON(rwc, rwc),
		done: make(chan struct{}),
	}
}

func (w *WebSocket) Send(text string) error {
	return w.ch.Send([]byte(text))
}

func (w *WebSocket) RegisterMessageHandler(handler func(text string)) {
	w.mu.Lock()
	w.handler = handler
	w.mu.Unlock()
	go w.readLoop()
}

func (w *WebSocket) readLoop() {
	defer close(w.done)
	for {
		msg, err := w.ch.Recv()
		if err != nil {
			if !channel.IsErrClosing(err) {
				globals.Logger.V(1).Info("transport: read loop ended", "error", err.Error())
			}
			return
		}
		w.mu.Lock()
		h := w.handler
		closed := w.closed
		w.mu.Unlock()
		if closed || h == nil {
			continue
		}
		h(string(msg))
	}
}

func (w *WebSocket) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	return w.ch.Close()
}
