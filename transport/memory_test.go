package transport

import (
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/require"
)

func TestMemoryPairDeliversInOrder(t *testing.T) {
	defer leaktest.Check(t)()
	a, b := NewMemoryPair()
	received := make(chan string, 8)
	b.RegisterMessageHandler(func(text string) { received <- text })

	require.NoError(t, a.Send("one"))
	require.NoError(t, a.Send("two"))
	require.NoError(t, a.Send("three"))

	for _, want := range []string{"one", "two", "three"} {
		select {
		case got := <-received:
			require.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
}

func TestMemoryPairBothDirections(t *testing.T) {
	defer leaktest.Check(t)()
	a, b := NewMemoryPair()
	toA := make(chan string, 1)
	toB := make(chan string, 1)
	a.RegisterMessageHandler(func(text string) { toA <- text })
	b.RegisterMessageHandler(func(text string) { toB <- text })

	require.NoError(t, a.Send("from a"))
	require.NoError(t, b.Send("from b"))

	require.Equal(t, "from b", <-toA)
	require.Equal(t, "from a", <-toB)
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
}

func TestMemoryCloseRejectsFurtherSends(t *testing.T) {
	defer leaktest.Check(t)()
	a, b := NewMemoryPair()
	b.RegisterMessageHandler(func(string) {})
	require.NoError(t, a.Close())
	require.Error(t, a.Send("too late"))
	require.NoError(t, b.Close())
}
