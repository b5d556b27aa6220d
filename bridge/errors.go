package bridge

import "errors"

// ErrUnknownSignal is returned by Connect when the named signal is not part
// of the object's descriptor. Every other lookup failure (unknown method,
// unknown property, unknown connection id) is non-fatal in a way that has
// no caller-visible error type: the operation logs a diagnostic and returns
// a falsy result instead (spec.md §7).
var ErrUnknownSignal = errors.New("bridge: unknown signal")
