package bridge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLazyObjectCreationAndDestroyed covers S4: an unknown object embedded
// in a method response is constructed lazily, its destroyed signal is
// implicitly subscribed, and once destroyed it disappears from the
// registry so later frames referencing it are dropped rather than crashing.
func TestLazyObjectCreationAndDestroyed(t *testing.T) {
	ch, _ := newTestChannel(t)
	ch.onMessage(`{"type":10,"id":0,"data":{"obj1":{"methods":[["get",1]],"properties":[],"signals":[],"enums":{}}}}`)
	p, _ := ch.Object("obj1")

	var child *Proxy
	p.Invoke("get", func(v any) {
		pr, ok := v.(*Proxy)
		require.True(t, ok)
		child = pr
	})
	ch.onMessage(`{"type":10,"id":1,"data":{"__QObject*__":true,"id":"obj2","data":{"methods":[],"properties":[],"signals":[["destroyed",9]],"enums":{}}}}`)

	require.NotNil(t, child)
	require.Equal(t, "obj2", child.ID())
	_, ok := ch.Object("obj2")
	require.True(t, ok)

	ch.onMessage(`{"type":1,"object":"obj2","signal":9,"args":[]}`)
	_, ok = ch.Object("obj2")
	require.False(t, ok)

	require.NotPanics(t, func() {
		ch.onMessage(`{"type":2,"data":[{"object":"obj2","properties":{},"signals":{}}]}`)
	})
}

// TestLazyObjectDestroyedViaQtNativeSignalForm is the same S4/invariant-7
// lifecycle as TestLazyObjectCreationAndDestroyed, but the peer advertises
// its lifecycle signal as "destroyed(QObject*)" — the form a real
// QMetaObject::method().name() actually produces — rather than the bare
// convenience name. The proxy must still be recognised as destroyable and
// removed from the registry once that signal fires.
func TestLazyObjectDestroyedViaQtNativeSignalForm(t *testing.T) {
	ch, _ := newTestChannel(t)
	ch.onMessage(`{"type":10,"id":0,"data":{"obj1":{"methods":[["get",1]],"properties":[],"signals":[],"enums":{}}}}`)
	p, _ := ch.Object("obj1")

	var child *Proxy
	p.Invoke("get", func(v any) {
		pr, ok := v.(*Proxy)
		require.True(t, ok)
		child = pr
	})
	ch.onMessage(`{"type":10,"id":1,"data":{"__QObject*__":true,"id":"obj2","data":{"methods":[],"properties":[],"signals":[["destroyed(QObject*)",9]],"enums":{}}}}`)

	require.NotNil(t, child)
	require.Equal(t, "obj2", child.ID())
	_, ok := ch.Object("obj2")
	require.True(t, ok)

	ch.onMessage(`{"type":1,"object":"obj2","signal":9,"args":[]}`)
	_, ok = ch.Object("obj2")
	require.False(t, ok, "removed from registry once the Qt-native-form destroyed signal fires")
}

// TestReentrantDisconnectDuringFanout covers S5 and invariant 6: A
// disconnects B while both are firing for the current emission; B still
// runs this time, and is gone for the next one.
func TestReentrantDisconnectDuringFanout(t *testing.T) {
	ch, _ := newTestChannel(t)
	ch.onMessage(`{"type":10,"id":0,"data":{"obj1":{"methods":[],"properties":[],"signals":[["s",1]],"enums":{}}}}`)
	p, _ := ch.Object("obj1")

	var fired []string
	var idB uint64
	_, _ = p.Connect("s", func(args []any) {
		fired = append(fired, "A")
		p.Disconnect(idB)
	})
	idB, _ = p.Connect("s", func(args []any) {
		fired = append(fired, "B")
	})

	ch.onMessage(`{"type":1,"object":"obj1","signal":1,"args":[]}`)
	require.Equal(t, []string{"A", "B"}, fired)

	fired = nil
	ch.onMessage(`{"type":1,"object":"obj1","signal":1,"args":[]}`)
	require.Equal(t, []string{"A"}, fired)
}

// TestDeferredDestroyDuringDestroyedFanout covers invariant 7: a destroyed
// handler observes a live, fully functional proxy; the proxy leaves the
// registry immediately but is only actually freed once the fan-out returns.
func TestDeferredDestroyDuringDestroyedFanout(t *testing.T) {
	ch, _ := newTestChannel(t)
	ch.onMessage(`{"type":10,"id":0,"data":{"obj1":{"methods":[["id",1]],"properties":[],"signals":[["destroyed",9]],"enums":{}}}}`)
	p, _ := ch.Object("obj1")

	var sawID string
	var invokedOK bool
	_, _ = p.Connect("destroyed", func(args []any) {
		sawID = p.ID()
		invokedOK = p.Invoke("id", func(v any) {})
	})

	ch.onMessage(`{"type":1,"object":"obj1","signal":9,"args":[]}`)

	require.Equal(t, "obj1", sawID)
	require.True(t, invokedOK)
	_, ok := ch.Object("obj1")
	require.False(t, ok, "removed from registry immediately")
}

func TestEnumValue(t *testing.T) {
	ch, _ := newTestChannel(t)
	ch.onMessage(`{"type":10,"id":0,"data":{"obj1":{"methods":[],"properties":[],"signals":[],"enums":{"Mode":{"Fast":1,"Slow":2}}}}}`)
	p, _ := ch.Object("obj1")

	v, ok := p.EnumValue("Mode", "Fast")
	require.True(t, ok)
	require.EqualValues(t, 1, v)

	_, ok = p.EnumValue("Mode", "Nope")
	require.False(t, ok)

	_, ok = p.EnumValue("Missing", "Fast")
	require.False(t, ok)
}

// TestConnectArityCoercion exercises the convenience arity form: each
// declared parameter is bound individually from the signal's argument list.
func TestConnectArityCoercion(t *testing.T) {
	ch, _ := newTestChannel(t)
	ch.onMessage(`{"type":10,"id":0,"data":{"obj1":{"methods":[],"properties":[],"signals":[["moved",2]],"enums":{}}}}`)
	p, _ := ch.Object("obj1")

	var gotX, gotY int
	_, _ = p.Connect("moved", func(x, y int) { gotX = x; gotY = y })
	ch.onMessage(`{"type":1,"object":"obj1","signal":2,"args":[3,4]}`)

	require.Equal(t, 3, gotX)
	require.Equal(t, 4, gotY)
}

// TestConnectArityCoercionResolvesProxyArgument confirms a callback
// parameter typed *Proxy binds to an embedded object reference.
func TestConnectArityCoercionResolvesProxyArgument(t *testing.T) {
	ch, _ := newTestChannel(t)
	ch.onMessage(`{"type":10,"id":0,"data":{"obj1":{"methods":[],"properties":[],"signals":[["gotChild",4]],"enums":{}}}}`)
	p, _ := ch.Object("obj1")

	var child *Proxy
	_, _ = p.Connect("gotChild", func(c *Proxy) { child = c })
	ch.onMessage(`{"type":1,"object":"obj1","signal":4,"args":[{"__QObject*__":true,"id":"obj9","data":{"methods":[],"properties":[],"signals":[],"enums":{}}}]}`)

	require.NotNil(t, child)
	require.Equal(t, "obj9", child.ID())
}

func TestConnectUnknownSignal(t *testing.T) {
	ch, _ := newTestChannel(t)
	ch.onMessage(`{"type":10,"id":0,"data":{"obj1":{"methods":[],"properties":[],"signals":[],"enums":{}}}}`)
	p, _ := ch.Object("obj1")

	id, err := p.Connect("nope", func(args []any) {})
	require.Error(t, err)
	require.Zero(t, id)
}

func TestSetPropertyUpdatesCacheWhenEnabled(t *testing.T) {
	ch, tr := newTestChannel(t)
	ch.onMessage(`{"type":10,"id":0,"data":{"obj1":{"methods":[],"properties":[[2,"name",[],"anon"]],"signals":[],"enums":{}}}}`)
	p, _ := ch.Object("obj1")

	require.True(t, ch.PropertyCaching())
	require.True(t, p.SetProperty("name", "bob"))
	require.Equal(t, "bob", p.Property("name"))
	require.Contains(t, tr.lastSent(), `"type":9`)

	ch.SetPropertyCaching(false)
	require.True(t, p.SetProperty("name", "carol"))
	require.Equal(t, "bob", p.Property("name"), "cache untouched once caching is disabled")
}
