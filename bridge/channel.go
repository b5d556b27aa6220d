// Package bridge implements the client-side protocol engine described in
// spec.md: the handshake, the message router, the remote-object proxy with
// its method/property/signal machinery, the property cache, the pending-
// request correlation table, and the lifecycle of peer-created objects.
package bridge

import (
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/objectbridge/bridge/bridgemetrics"
	"github.com/objectbridge/bridge/globals"
	"github.com/objectbridge/bridge/transport"
	"github.com/objectbridge/bridge/wire"
)

// Channel owns a Transport, the pending-call table and the object registry.
// It is the entry point of the package: construct one with New, wait for
// the init callback, then use Object/Objects to reach the proxies it built.
type Channel struct {
	transport transport.Transport
	registry  *registry
	pending   *pendingTable

	execID atomic.Uint64

	propertyCaching atomic.Bool
	autoIdle        atomic.Bool

	initCallback func(*Channel)
}

// New builds a Channel over an already-constructed Transport, sends the
// initial Init request, and arranges for initCallback (if non-nil) to run
// once the peer's object descriptors have been received and every advertised
// proxy constructed (spec.md §4.1 "new").
func New(tr transport.Transport, initCallback func(*Channel)) *Channel {
	c := &Channel{
		transport:    tr,
		registry:     newRegistry(),
		pending:      newPendingTable(),
		initCallback: initCallback,
	}
	c.propertyCaching.Store(true)
	c.autoIdle.Store(true)
	tr.RegisterMessageHandler(c.onMessage)
	c.exec(map[string]any{"type": int(wire.Init)}, c.connectionMade)
	return c
}

// Object looks up a proxy by id.
func (c *Channel) Object(id string) (*Proxy, bool) {
	return c.registry.lookup(id)
}

// Objects returns a snapshot of every currently-registered proxy.
func (c *Channel) Objects() map[string]*Proxy {
	return c.registry.snapshot()
}

// SetPropertyCaching toggles whether SetProperty updates the local cache
// before the peer's notify signal arrives.
func (c *Channel) SetPropertyCaching(enabled bool) { c.propertyCaching.Store(enabled) }
func (c *Channel) PropertyCaching() bool           { return c.propertyCaching.Load() }

// SetAutoIdle toggles whether handling a PropertyUpdate batch auto-emits
// Idle once every item in the batch has been applied.
func (c *Channel) SetAutoIdle(enabled bool) { c.autoIdle.Store(enabled) }
func (c *Channel) AutoIdle() bool           { return c.autoIdle.Load() }

// Idle unconditionally sends {type: Idle}.
func (c *Channel) Idle() {
	c.exec(map[string]any{"type": int(wire.Idle)}, nil)
}

// Debug sends a fire-and-forget diagnostic payload to the peer. It has no
// completion and never touches the pending-call table (spec.md §6's Debug
// message, named in the wire table but otherwise left unspecified).
func (c *Channel) Debug(data any) {
	c.exec(map[string]any{"type": int(wire.Debug), "data": data}, nil)
}

// Close releases the underlying transport. Proxies are not individually
// notified; channel teardown simply drops them (spec.md §3 "Lifecycle").
func (c *Channel) Close() error {
	return c.transport.Close()
}

// exec is the outbound correlation primitive (spec.md §4.1 "Outbound
// correlation"). With no callback the message is sent as-is. With a
// callback, msg must not already carry an id; exec assigns the next
// monotonically increasing execution id, registers the callback in the
// pending-call table under that id, and only then sends.
func (c *Channel) exec(msg map[string]any, callback func(json.RawMessage)) error {
	if callback != nil {
		if _, exists := msg["id"]; exists {
			err := errors.New("bridge: exec called with a pre-existing id")
			globals.Logger.Error(err, "dropping outbound message", "message", msg)
			return err
		}
		id := c.execID.Add(1) - 1
		msg["id"] = id
		c.pending.insert(id, callback)
		bridgemetrics.SetPendingCalls(c.pending.len())
	}
	buf, err := json.Marshal(msg)
	if err != nil {
		globals.Logger.Error(err, "failed to encode outbound message", "message", msg)
		return err
	}
	if err := c.transport.Send(string(buf)); err != nil {
		return err
	}
	bridgemetrics.ObserveMessageSent()
	return nil
}

func (c *Channel) onMessage(text string) {
	bridgemetrics.ObserveMessageReceived()
	in, err := wire.ParseInbound(text)
	if err != nil {
		globals.Logger.Error(err, "dropping malformed inbound message", "text", text)
		return
	}
	switch in.Type {
	case wire.Signal:
		c.handleSignal(in)
	case wire.Response:
		c.handleResponse(in)
	case wire.PropertyUpdate:
		c.handlePropertyUpdate(in)
	default:
		globals.Logger.Error(nil, "dropping inbound message of unknown type", "type", in.Type.String())
	}
}

func (c *Channel) handleSignal(in wire.Inbound) {
	if in.Signal == nil {
		globals.Logger.Error(nil, "signal frame missing signal index", "object", in.Object)
		return
	}
	p, ok := c.registry.lookup(in.Object)
	if !ok {
		globals.Logger.Error(nil, "signal for unknown object", "object", in.Object)
		return
	}
	rawArgs, err := wire.ParseArgs(in.Args)
	if err != nil {
		globals.Logger.Error(err, "malformed signal args", "object", in.Object)
		return
	}
	args := make([]any, len(rawArgs))
	for i, a := range rawArgs {
		if err := json.Unmarshal(a, &args[i]); err != nil {
			globals.Logger.Error(err, "malformed signal arg", "object", in.Object, "index", i)
		}
	}
	p.signalEmitted(*in.Signal, args)
}

func (c *Channel) handleResponse(in wire.Inbound) {
	if in.ID == nil {
		globals.Logger.Error(nil, "response frame missing id")
		return
	}
	callback, ok := c.pending.resolve(*in.ID)
	if !ok {
		bridgemetrics.ObserveResponseDropped()
		globals.Logger.Error(nil, "response with no pending callback", "id", *in.ID)
		return
	}
	bridgemetrics.SetPendingCalls(c.pending.len())
	defer globals.Recover(1)
	callback(in.Data)
}

func (c *Channel) handlePropertyUpdate(in wire.Inbound) {
	items, err := wire.ParsePropertyUpdate(in.Data)
	if err != nil {
		globals.Logger.Error(err, "malformed property update")
		return
	}
	for _, item := range items {
		p, ok := c.registry.lookup(item.Object)
		if !ok {
			globals.Logger.Error(nil, "property update for unknown object", "object", item.Object)
			continue
		}
		p.propertyUpdate(item)
	}
	if c.AutoIdle() {
		c.Idle()
	}
}

// connectionMade is the Init response handler (spec.md §4.1 "Handshake"):
// it builds every advertised proxy, resolves cross-references across the
// whole batch, runs the caller's init callback, then sends Idle.
func (c *Channel) connectionMade(data json.RawMessage) {
	descriptors, err := wire.ParseInitDescriptors(data)
	if err != nil {
		globals.Logger.Error(err, "malformed init response")
		return
	}
	created := make([]*Proxy, 0, len(descriptors))
	for name, d := range descriptors {
		created = append(created, newProxy(name, d, c))
	}
	for _, p := range created {
		p.unwrapProperties()
	}
	if c.initCallback != nil {
		c.initCallback(c)
	}
	c.Idle()
}

// unwrapQObject resolves embedded object markers into live proxies
// (spec.md §4.2 "Object unwrapping"). Arrays are mapped element-wise; plain
// maps are walked in place looking for nested markers; an object marker
// either resolves to the already-registered proxy for its id or, carrying a
// descriptor, lazily constructs one.
func (c *Channel) unwrapQObject(v any) any {
	switch vv := v.(type) {
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = c.unwrapQObject(e)
		}
		return out
	case map[string]any:
		if id, descriptor, ok := wire.DecodeObjectMarker(vv); ok {
			if existing, found := c.registry.lookup(id); found {
				return existing
			}
			if descriptor == nil {
				globals.Logger.Error(nil, "lazily-referenced object has no descriptor", "object", id)
				return nil
			}
			p := newProxy(id, *descriptor, c)
			p.unwrapProperties()
			return p
		}
		for k, val := range vv {
			vv[k] = c.unwrapQObject(val)
		}
		return vv
	default:
		return v
	}
}
