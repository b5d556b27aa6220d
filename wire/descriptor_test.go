package wire

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestNamedIndexRoundTrip(t *testing.T) {
	var n NamedIndex
	require.NoError(t, json.Unmarshal([]byte(`["ping",7]`), &n))
	require.Equal(t, NamedIndex{Name: "ping", Index: 7}, n)

	buf, err := json.Marshal(n)
	require.NoError(t, err)
	require.JSONEq(t, `["ping",7]`, string(buf))
}

func TestNotifySignalAbsent(t *testing.T) {
	var n NotifySignal
	require.NoError(t, json.Unmarshal([]byte(`[]`), &n))
	require.False(t, n.Present)
}

func TestNotifySignalDefaultName(t *testing.T) {
	var n NotifySignal
	require.NoError(t, json.Unmarshal([]byte(`[1,3]`), &n))
	require.True(t, n.Present)
	require.True(t, n.DefaultName)
	require.Equal(t, 3, n.Index)
}

func TestNotifySignalExplicitName(t *testing.T) {
	var n NotifySignal
	require.NoError(t, json.Unmarshal([]byte(`["xUpdated",5]`), &n))
	require.True(t, n.Present)
	require.False(t, n.DefaultName)
	require.Equal(t, "xUpdated", n.Name)
	require.Equal(t, 5, n.Index)
}

func TestNotifySignalRejectsOtherInteger(t *testing.T) {
	var n NotifySignal
	require.Error(t, json.Unmarshal([]byte(`[2,5]`), &n))
}

func TestPropertyEntryDefaultName(t *testing.T) {
	var p PropertyEntry
	require.NoError(t, json.Unmarshal([]byte(`[1,"x",[1,3],42]`), &p))
	require.Equal(t, 1, p.Index)
	require.Equal(t, "x", p.Name)
	require.Equal(t, "xChanged", p.NotifySignalName())
	var v int
	require.NoError(t, json.Unmarshal(p.InitialValue, &v))
	require.Equal(t, 42, v)
}

func TestPropertyEntryNoNotify(t *testing.T) {
	var p PropertyEntry
	require.NoError(t, json.Unmarshal([]byte(`[2,"name",[],"anon"]`), &p))
	require.Equal(t, "", p.NotifySignalName())
}

func TestDescriptorDecode(t *testing.T) {
	var d Descriptor
	raw := `{"methods":[["ping",7]],"properties":[[1,"x",[1,3],42]],"signals":[["clicked",5]],"enums":{"Mode":{"Fast":1}}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &d))
	require.Len(t, d.Methods, 1)
	require.Len(t, d.Properties, 1)
	require.Len(t, d.Signals, 1)
	require.Equal(t, int64(1), d.Enums["Mode"]["Fast"])

	want := Descriptor{
		Methods: []NamedIndex{{Name: "ping", Index: 7}},
		Properties: []PropertyEntry{{
			Index:        1,
			Name:         "x",
			Notify:       NotifySignal{Present: true, DefaultName: true, Index: 3},
			InitialValue: json.RawMessage("42"),
		}},
		Signals: []NamedIndex{{Name: "clicked", Index: 5}},
		Enums:   map[string]map[string]int64{"Mode": {"Fast": 1}},
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Fatalf("decoded descriptor mismatch:\n%s", diff)
	}
}
