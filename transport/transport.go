// Package transport provides concrete implementations of the duplex-text
// transport contract described in spec.md §6. The bridge core imports this
// package only for the Transport interface defined here and uses none of the
// concrete implementations, so any of these (or a caller's own adapter) can
// be plugged in.
package transport

// Transport is the abstract duplex-text channel the core bridge engine
// consumes. Framing — how a byte stream is split into whole messages — is
// entirely the transport's responsibility; the core only ever sees and
// sends complete JSON documents as text.
type Transport interface {
	// Send transmits one whole message.
	Send(text string) error

	// RegisterMessageHandler installs the callback the transport invokes
	// exactly once per received message. Called at most once, before the
	// transport starts delivering messages.
	RegisterMessageHandler(handler func(text string))

	// Close shuts the transport down. Pending Sends may fail after Close;
	// the registered handler will not be invoked again once Close returns.
	Close() error
}
