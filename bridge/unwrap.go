package bridge

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/objectbridge/bridge/globals"
	"github.com/objectbridge/bridge/wire"
)

// proxyPtrType is compared against reflect.Type values to recognise a
// callback parameter that wants a live object reference rather than a plain
// JSON value — the "proxy target type" branch of spec.md §4.3's Unwrap.
var proxyPtrType = reflect.TypeOf((*Proxy)(nil))

// bindArg coerces one decoded JSON value (or an already-live *Proxy, as
// produced by unwrapQObject) to the Go type a callback parameter declares.
// Failures are logged and answered with the zero value, matching the
// "malformed marker: logged, result is null" rule in spec.md §7 — Unwrap
// never returns an error to the caller.
func bindArg(t reflect.Type, raw any) reflect.Value {
	if t == proxyPtrType {
		switch v := raw.(type) {
		case nil:
			return reflect.Zero(t)
		case *Proxy:
			return reflect.ValueOf(v)
		default:
			if handle, ok := wire.DecodePointerMarker(raw); ok {
				if found, live := globals.Validity.Lookup(globals.Handle(handle)); live {
					if p, ok := found.(*Proxy); ok {
						return reflect.ValueOf(p)
					}
				}
			}
			globals.Logger.Error(nil, "unwrap: value is not a proxy reference", "value", fmt.Sprintf("%v", raw))
			return reflect.Zero(t)
		}
	}

	if raw == nil {
		return reflect.Zero(t)
	}

	rv := reflect.ValueOf(raw)
	if rv.Type().AssignableTo(t) {
		return rv
	}
	if rv.Type().ConvertibleTo(t) && (rv.Kind() == t.Kind() || isNumericKind(rv.Kind()) && isNumericKind(t.Kind())) {
		return rv.Convert(t)
	}

	buf, err := json.Marshal(raw)
	if err != nil {
		globals.Logger.Error(err, "unwrap: re-marshal before coercion failed")
		return reflect.Zero(t)
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal(buf, ptr.Interface()); err != nil {
		globals.Logger.Error(err, "unwrap: coercion failed", "target", t.String())
		return reflect.Zero(t)
	}
	return ptr.Elem()
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// callFlexible invokes a user-supplied callback with args, the unwrapped
// positional values from a signal emission or a method response.
//
// Two forms are supported, per the convenience-arity design note in
// spec.md §9: a callback declared as func([]any) receives args verbatim
// (the "raw" form); any other func signature has each parameter bound
// individually via bindArg, extra trailing parameters bound against a
// missing (nil) argument, and extra trailing args silently dropped.
func callFlexible(cb any, args []any) {
	rv := reflect.ValueOf(cb)
	if rv.Kind() != reflect.Func {
		globals.Logger.Error(nil, "callback is not a function", "type", fmt.Sprintf("%T", cb))
		return
	}
	t := rv.Type()
	if t.NumIn() == 1 && t.In(0) == reflect.TypeOf([]any(nil)) {
		rv.Call([]reflect.Value{reflect.ValueOf(args)})
		return
	}
	in := make([]reflect.Value, t.NumIn())
	for i := 0; i < t.NumIn(); i++ {
		var raw any
		if i < len(args) {
			raw = args[i]
		}
		in[i] = bindArg(t.In(i), raw)
	}
	rv.Call(in)
}

func isFunc(v any) bool {
	if v == nil {
		return false
	}
	return reflect.ValueOf(v).Kind() == reflect.Func
}
