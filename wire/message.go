// Package wire defines the JSON wire protocol described in spec.md §3 and
// §6: the message envelope, the integer message types, object descriptors,
// and the two marker shapes ("__QObject*__" and "__ptr__") used to embed
// object references inside an otherwise plain JSON payload.
package wire

import (
	"encoding/json"
	"fmt"
)

// Type is the integer `type` field of every envelope on the wire.
type Type int

const (
	Signal                Type = 1
	PropertyUpdate         Type = 2
	Init                   Type = 3
	Idle                   Type = 4
	Debug                  Type = 5
	InvokeMethod           Type = 6
	ConnectToSignal        Type = 7
	DisconnectFromSignal   Type = 8
	SetProperty            Type = 9
	Response               Type = 10
)

func (t Type) String() string {
	switch t {
	case Signal:
		return "Signal"
	case PropertyUpdate:
		return "PropertyUpdate"
	case Init:
		return "Init"
	case Idle:
		return "Idle"
	case Debug:
		return "Debug"
	case InvokeMethod:
		return "InvokeMethod"
	case ConnectToSignal:
		return "ConnectToSignal"
	case DisconnectFromSignal:
		return "DisconnectFromSignal"
	case SetProperty:
		return "SetProperty"
	case Response:
		return "Response"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Inbound is the envelope shape for every message type the client receives
// (Signal, PropertyUpdate, Response). Fields not relevant to a given Type
// are left at their zero value; Data and Args carry type-dependent payloads
// as raw JSON so the caller can decode them once the Type is known.
type Inbound struct {
	Type   Type            `json:"type"`
	ID     *uint64         `json:"id,omitempty"`
	Object string          `json:"object,omitempty"`
	Signal *int            `json:"signal,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ParseInbound decodes one received frame's envelope. It does not decode
// Args/Data further; that is the dispatcher's job once Type is known.
func ParseInbound(text string) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal([]byte(text), &in); err != nil {
		return Inbound{}, fmt.Errorf("wire: malformed envelope: %w", err)
	}
	return in, nil
}

// PropertyUpdateItem is one element of a PropertyUpdate frame's Data array
// (spec.md §6: `data`: list of `{object, signals: map, properties: map}`).
type PropertyUpdateItem struct {
	Object     string                     `json:"object"`
	Signals    map[string]json.RawMessage `json:"signals"`
	Properties map[string]json.RawMessage `json:"properties"`
}

// ParsePropertyUpdate decodes the Data field of a PropertyUpdate envelope.
func ParsePropertyUpdate(data json.RawMessage) ([]PropertyUpdateItem, error) {
	var items []PropertyUpdateItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("wire: malformed PropertyUpdate data: %w", err)
	}
	return items, nil
}

// ParseInitDescriptors decodes the response payload to an Init request: a
// map of object name to its Descriptor.
func ParseInitDescriptors(data json.RawMessage) (map[string]Descriptor, error) {
	var out map[string]Descriptor
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("wire: malformed Init descriptors: %w", err)
	}
	return out, nil
}

// ParseArgs decodes a Signal frame's Args field, defaulting to an empty
// slice when absent (spec.md §6: "args (array, optional)").
func ParseArgs(args json.RawMessage) ([]json.RawMessage, error) {
	if len(args) == 0 {
		return nil, nil
	}
	var out []json.RawMessage
	if err := json.Unmarshal(args, &out); err != nil {
		return nil, fmt.Errorf("wire: malformed args: %w", err)
	}
	return out, nil
}
