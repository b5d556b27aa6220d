package bridge

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/objectbridge/bridge/bridgemetrics"
	"github.com/objectbridge/bridge/globals"
	"github.com/objectbridge/bridge/wire"
)

type signalInfo struct {
	index    int
	isNotify bool
}

type connection struct {
	id         uint64
	signalName string
	callback   any
}

// isDestroyedSignal reports whether name is the object-lifetime signal, in
// any of the forms a peer may advertise it under: the bare convenience name
// this package otherwise uses, or either of the two forms a real
// QMetaObject::method().name() produces (spec.md §4.2; mirrors
// detail::isDestroyedSignal in the original implementation). The client
// always implicitly subscribes to it and never sends a
// ConnectToSignal/DisconnectFromSignal frame for it, regardless of which
// form the peer used.
func isDestroyedSignal(name string) bool {
	return name == "destroyed" || name == "destroyed()" || name == "destroyed(QObject*)"
}

// Proxy is the local stand-in for one object the peer has exported. All
// access to its mutable state (cache, connections, destroy bookkeeping) is
// guarded by mu; user callbacks are always invoked with mu released, so a
// callback may freely call back into the proxy it was delivered from
// (spec.md §5, "Reentrancy").
type Proxy struct {
	mu sync.Mutex

	id      string
	handle  globals.Handle
	channel *Channel

	methods    map[string]int
	properties map[string]int
	signals    map[string]signalInfo
	notifySig  map[int]string // property index -> notify signal name
	enums      map[string]map[string]int64

	propertyCache map[int]any
	connections   map[int][]connection

	destroyedIndex     int // -1 if this object declares no "destroyed" signal
	destroyAfterSignal bool
	destroyed          bool
	fanoutDepth        int
}

// newProxy builds a proxy from a descriptor and registers it with the
// channel and the process-wide validity set (spec.md §4.2 "Construction").
// Property values are stashed in the cache exactly as decoded, without
// resolving embedded object markers: sibling objects referenced from this
// descriptor may not exist yet. Callers unwrap the cache once every proxy in
// the batch exists, via unwrapProperties.
func newProxy(id string, d wire.Descriptor, ch *Channel) *Proxy {
	p := &Proxy{
		id:            id,
		channel:       ch,
		methods:       make(map[string]int, len(d.Methods)),
		properties:    make(map[string]int, len(d.Properties)),
		signals:       make(map[string]signalInfo, len(d.Signals)),
		notifySig:     make(map[int]string),
		enums:         d.Enums,
		propertyCache: make(map[int]any, len(d.Properties)),
		connections:   make(map[int][]connection),
		destroyedIndex: -1,
	}

	for _, m := range d.Methods {
		p.methods[m.Name] = m.Index
	}
	for _, s := range d.Signals {
		p.signals[s.Name] = signalInfo{index: s.Index}
	}
	for _, prop := range d.Properties {
		p.properties[prop.Name] = prop.Index
		var v any
		if len(prop.InitialValue) > 0 {
			if err := json.Unmarshal(prop.InitialValue, &v); err != nil {
				globals.Logger.Error(err, "malformed initial property value", "object", id, "property", prop.Name)
			}
		}
		p.propertyCache[prop.Index] = v

		if name := prop.NotifySignalName(); name != "" {
			if existing, ok := p.signals[name]; ok && !existing.isNotify {
				globals.Logger.Error(nil, "notify signal name collides with a pure signal", "object", id, "signal", name)
			} else {
				p.notifySig[prop.Index] = name
				p.signals[name] = signalInfo{index: prop.Notify.Index, isNotify: true}
			}
		}
	}
	for sigName, sig := range p.signals {
		if isDestroyedSignal(sigName) {
			p.destroyedIndex = sig.index
			break
		}
	}

	p.handle = globals.NextHandle()
	globals.Validity.Register(p.handle, p)
	ch.registry.insert(id, p)
	bridgemetrics.SetLiveProxies(ch.registry.len())
	return p
}

// Handle returns the opaque, process-wide unique reference minted for this
// proxy. It is the safe stand-in for the raw pointer the original __ptr__
// marker carried (SPEC_FULL.md / spec.md §9).
func (p *Proxy) Handle() globals.Handle { return p.handle }

// ID returns the proxy's object id, stable for its whole lifetime.
func (p *Proxy) ID() string { return p.id }

// destroy is the physical free: it drops the proxy from the validity set.
// It must only be called once, after the signal fan-out that observed
// "destroyed" has fully returned (spec.md §4.2 "Destruction").
func (p *Proxy) destroy() {
	globals.Validity.Unregister(p.handle)
	bridgemetrics.SetLiveProxies(p.channel.registry.len())
	globals.Logger.V(1).Info("proxy destroyed", "object", p.id)
}

func (p *Proxy) toWireValue(v any) any {
	if proxy, ok := v.(*Proxy); ok {
		return map[string]any{"id": proxy.id}
	}
	return v
}

// Invoke calls a remote method asynchronously (spec.md §4.2 "Method
// invocation"). args may include, at most once, a callback function; it is
// adopted as the completion handler and is not sent as a method argument.
// Invoke returns false without sending anything if name is unknown.
func (p *Proxy) Invoke(name string, args ...any) bool {
	p.mu.Lock()
	idx, ok := p.methods[name]
	p.mu.Unlock()
	if !ok {
		globals.Logger.Error(nil, "invoke: unknown method", "object", p.id, "method", name)
		return false
	}

	var callback any
	wireArgs := make([]any, 0, len(args))
	for _, a := range args {
		if isFunc(a) {
			if callback != nil {
				globals.Logger.Error(nil, "invoke: more than one callback argument", "object", p.id, "method", name)
				continue
			}
			callback = a
			continue
		}
		wireArgs = append(wireArgs, p.toWireValue(a))
	}

	msg := map[string]any{
		"type":   int(wire.InvokeMethod),
		"method": idx,
		"args":   wireArgs,
		"object": p.id,
	}

	var wrapper func(json.RawMessage)
	if callback != nil {
		wrapper = func(raw json.RawMessage) {
			var v any
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &v); err != nil {
					globals.Logger.Error(err, "invoke: malformed response", "object", p.id, "method", name)
					return
				}
			}
			v = p.channel.unwrapQObject(v)
			defer globals.Recover(1)
			callFlexible(callback, []any{v})
		}
	}
	p.channel.exec(msg, wrapper)
	return true
}

// Property returns the cached value for name, or nil if the property or its
// cache entry does not exist (spec.md §4.2 "Property read").
func (p *Proxy) Property(name string) any {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.properties[name]
	if !ok {
		globals.Logger.Error(nil, "property: unknown property", "object", p.id, "property", name)
		return nil
	}
	return p.propertyCache[idx]
}

// SetProperty writes a property value (spec.md §4.2 "Property write").
func (p *Proxy) SetProperty(name string, value any) bool {
	p.mu.Lock()
	idx, ok := p.properties[name]
	if ok && p.channel.PropertyCaching() {
		p.propertyCache[idx] = value
	}
	p.mu.Unlock()
	if !ok {
		globals.Logger.Error(nil, "set_property: unknown property", "object", p.id, "property", name)
		return false
	}

	msg := map[string]any{
		"type":     int(wire.SetProperty),
		"property": idx,
		"value":    p.toWireValue(value),
		"object":   p.id,
	}
	p.channel.exec(msg, nil)
	return true
}

// EnumValue looks up a named member of one of this object's declared enums.
func (p *Proxy) EnumValue(enumName, memberName string) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	members, ok := p.enums[enumName]
	if !ok {
		return 0, false
	}
	v, ok := members[memberName]
	return v, ok
}

// Connect subscribes callback to a signal (spec.md §4.2 "Signal connect").
// callback may be declared func([]any) to receive the raw argument list, or
// with any other signature: each declared parameter is bound individually
// via Unwrap-style coercion (see unwrap.go).
func (p *Proxy) Connect(name string, callback any) (uint64, error) {
	p.mu.Lock()
	sig, ok := p.signals[name]
	p.mu.Unlock()
	if !ok {
		globals.Logger.Error(nil, "connect: unknown signal", "object", p.id, "signal", name)
		return 0, ErrUnknownSignal
	}

	id := globals.NextConnectionID()
	p.mu.Lock()
	p.connections[sig.index] = append(p.connections[sig.index], connection{id: id, signalName: name, callback: callback})
	p.mu.Unlock()

	if sig.isNotify || isDestroyedSignal(name) {
		return id, nil
	}
	msg := map[string]any{"type": int(wire.ConnectToSignal), "object": p.id, "signal": sig.index}
	p.channel.exec(msg, nil)
	return id, nil
}

// Disconnect removes one connection by id (spec.md §4.2 "Signal
// disconnect"). It returns false if no connection with that id exists.
func (p *Proxy) Disconnect(id uint64) bool {
	p.mu.Lock()
	foundIndex := -1
	var foundName string
	for sigIdx, conns := range p.connections {
		for i, c := range conns {
			if c.id != id {
				continue
			}
			p.connections[sigIdx] = append(conns[:i:i], conns[i+1:]...)
			foundIndex = sigIdx
			foundName = c.signalName
			break
		}
		if foundIndex != -1 {
			break
		}
	}
	if foundIndex == -1 {
		p.mu.Unlock()
		globals.Logger.Error(nil, "disconnect: unknown connection id", "object", p.id, "id", id)
		return false
	}
	remaining := len(p.connections[foundIndex])
	sig := p.signals[foundName]
	p.mu.Unlock()

	if remaining == 0 && !sig.isNotify && !isDestroyedSignal(foundName) {
		msg := map[string]any{"type": int(wire.DisconnectFromSignal), "object": p.id, "signal": foundIndex}
		p.channel.exec(msg, nil)
	}
	return true
}

// signalEmitted handles an inbound Signal frame (spec.md §4.2 "Signal
// delivery"): arguments are unwrapped (lazily materialising any embedded
// object reference) before callbacks run.
func (p *Proxy) signalEmitted(signalIndex int, args []any) {
	unwrapped, _ := p.channel.unwrapQObject(any(args)).([]any)
	p.invokeSignalCallbacks(signalIndex, unwrapped)
}

// invokeSignalCallbacks fans args out to every connection registered on
// signalIndex, snapshotting the connection list first so that a handler
// connecting or disconnecting mid-delivery cannot perturb the current
// emission (spec.md §4.2 "Callback fan-out", invariant 6).
func (p *Proxy) invokeSignalCallbacks(signalIndex int, args []any) {
	p.mu.Lock()
	snapshot := append([]connection(nil), p.connections[signalIndex]...)
	p.fanoutDepth++
	if signalIndex == p.destroyedIndex && p.destroyedIndex >= 0 && !p.destroyed {
		p.channel.registry.remove(p.id)
		p.destroyAfterSignal = true
	}
	p.mu.Unlock()

	bridgemetrics.ObserveSignalDelivered()
	for _, c := range snapshot {
		func(cb any) {
			defer globals.Recover(1)
			callFlexible(cb, args)
		}(c.callback)
	}

	p.mu.Lock()
	p.fanoutDepth--
	free := p.fanoutDepth == 0 && p.destroyAfterSignal && !p.destroyed
	if free {
		p.destroyed = true
	}
	p.mu.Unlock()
	if free {
		p.destroy()
	}
}

// propertyUpdate applies an inbound PropertyUpdate item (spec.md §4.2
// "Property-update handling"). The cache is updated in full before any
// notify-signal callback runs, and the signal arguments are delivered
// exactly as the peer sent them rather than through signalEmitted, because
// the peer's property-update serialization already carries resolved values.
func (p *Proxy) propertyUpdate(item wire.PropertyUpdateItem) {
	for idxStr, raw := range item.Properties {
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			globals.Logger.Error(err, "property update: malformed property index", "object", p.id, "index", idxStr)
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			globals.Logger.Error(err, "property update: malformed value", "object", p.id, "index", idx)
			continue
		}
		v = p.channel.unwrapQObject(v)
		p.mu.Lock()
		p.propertyCache[idx] = v
		p.mu.Unlock()
	}

	for idxStr, raw := range item.Signals {
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			globals.Logger.Error(err, "property update: malformed signal index", "object", p.id, "index", idxStr)
			continue
		}
		var rawArgs []json.RawMessage
		if err := json.Unmarshal(raw, &rawArgs); err != nil {
			globals.Logger.Error(err, "property update: malformed signal args", "object", p.id, "index", idx)
			continue
		}
		args := make([]any, len(rawArgs))
		for i, a := range rawArgs {
			if err := json.Unmarshal(a, &args[i]); err != nil {
				globals.Logger.Error(err, "property update: malformed signal arg", "object", p.id, "index", idx)
			}
		}
		p.invokeSignalCallbacks(idx, args)
	}
}

// unwrapProperties resolves every embedded object marker currently sitting
// in the property cache, in place. Called once after a batch of proxies is
// constructed so forward references between them resolve correctly.
func (p *Proxy) unwrapProperties() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for idx, v := range p.propertyCache {
		p.propertyCache[idx] = p.channel.unwrapQObject(v)
	}
}
