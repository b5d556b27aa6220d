package wire

import (
	"encoding/json"
	"fmt"
)

// NamedIndex decodes a `[name: string, index: int]` pair, the shape used for
// both `methods` and `signals` entries in an object descriptor.
type NamedIndex struct {
	Name  string
	Index int
}

func (n *NamedIndex) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("wire: named-index entry: %w", err)
	}
	if err := json.Unmarshal(raw[0], &n.Name); err != nil {
		return fmt.Errorf("wire: named-index name: %w", err)
	}
	if err := json.Unmarshal(raw[1], &n.Index); err != nil {
		return fmt.Errorf("wire: named-index index: %w", err)
	}
	return nil
}

func (n NamedIndex) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{n.Name, n.Index})
}

// NotifySignal decodes a property entry's notify-signal field: either `[]`
// (no notify signal) or `[name|1, index]`. When the first element is the
// literal integer 1, the client reconstructs the signal name as
// `<propertyName>Changed` (spec.md §3); DefaultName records that case so the
// property decoder (which knows the property's own name) can do so.
type NotifySignal struct {
	Present     bool
	DefaultName bool
	Name        string
	Index       int
}

func (n *NotifySignal) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("wire: notify-signal entry: %w", err)
	}
	if len(raw) == 0 {
		*n = NotifySignal{}
		return nil
	}
	if len(raw) != 2 {
		return fmt.Errorf("wire: notify-signal entry: want 0 or 2 elements, got %d", len(raw))
	}
	n.Present = true
	var asInt int
	if err := json.Unmarshal(raw[0], &asInt); err == nil {
		if asInt != 1 {
			return fmt.Errorf("wire: notify-signal entry: unexpected integer marker %d", asInt)
		}
		n.DefaultName = true
	} else if err := json.Unmarshal(raw[0], &n.Name); err != nil {
		return fmt.Errorf("wire: notify-signal name: %w", err)
	}
	if err := json.Unmarshal(raw[1], &n.Index); err != nil {
		return fmt.Errorf("wire: notify-signal index: %w", err)
	}
	return nil
}

// PropertyEntry decodes a `[index, name, notifySignal, initialValue]` tuple.
type PropertyEntry struct {
	Index        int
	Name         string
	Notify       NotifySignal
	InitialValue json.RawMessage
}

func (p *PropertyEntry) UnmarshalJSON(data []byte) error {
	var raw [4]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("wire: property entry: %w", err)
	}
	if err := json.Unmarshal(raw[0], &p.Index); err != nil {
		return fmt.Errorf("wire: property index: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Name); err != nil {
		return fmt.Errorf("wire: property name: %w", err)
	}
	if err := json.Unmarshal(raw[2], &p.Notify); err != nil {
		return fmt.Errorf("wire: property %q notify signal: %w", p.Name, err)
	}
	p.InitialValue = raw[3]
	return nil
}

// NotifySignalName resolves the signal name a property's notify entry
// refers to, applying the `<name>Changed` default-name rule.
func (p PropertyEntry) NotifySignalName() string {
	if !p.Notify.Present {
		return ""
	}
	if p.Notify.DefaultName {
		return p.Name + "Changed"
	}
	return p.Notify.Name
}

// Descriptor is the object descriptor received during init or embedded as
// the `data` field of an object marker (spec.md §3).
type Descriptor struct {
	Methods    []NamedIndex             `json:"methods"`
	Properties []PropertyEntry          `json:"properties"`
	Signals    []NamedIndex             `json:"signals"`
	Enums      map[string]map[string]int64 `json:"enums"`
}
