// Package bridgemetrics exposes the engine's Prometheus-style counters: how
// many frames crossed the wire in each direction, how many calls are still
// waiting on a response, how many signal deliveries have fanned out, and how
// many proxies are currently alive. The bridge package calls the Observe* and
// Set* hooks itself; an embedder only has to serve Write (or Handler) over
// HTTP wherever convenient.
package bridgemetrics

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

var startTime = time.Now()

// Set holds every counter this package registers, kept separate from the
// global metrics.defaultSet so these names never collide with metrics an
// embedding process registers there. It is a single process-wide set: every
// Channel reports into the same counters, and each gauge holds whatever
// value was reported last.
var Set = metrics.NewSet()

var (
	messagesSent     = Set.NewCounter(`bridge_messages_sent_total`)
	messagesReceived = Set.NewCounter(`bridge_messages_received_total`)
	signalsDelivered = Set.NewCounter(`bridge_signals_delivered_total`)
	responsesDropped = Set.NewCounter(`bridge_responses_dropped_total`)

	pendingCallsValue int64
	liveProxiesValue  int64

	_ = Set.NewGauge(`bridge_pending_calls`, func() float64 {
		return float64(atomic.LoadInt64(&pendingCallsValue))
	})
	_ = Set.NewGauge(`bridge_live_proxies`, func() float64 {
		return float64(atomic.LoadInt64(&liveProxiesValue))
	})
)

// ObserveMessageSent records one outbound frame.
func ObserveMessageSent() { messagesSent.Inc() }

// ObserveMessageReceived records one inbound frame, regardless of type.
func ObserveMessageReceived() { messagesReceived.Inc() }

// ObserveSignalDelivered records one signal fan-out (one delivery per
// signal emission, not per connected handler).
func ObserveSignalDelivered() { signalsDelivered.Inc() }

// ObserveResponseDropped records a Response frame that arrived with no
// matching pending-call entry (spec.md §7).
func ObserveResponseDropped() { responsesDropped.Inc() }

// SetPendingCalls reports the current size of a channel's pending-call
// table.
func SetPendingCalls(n int) { atomic.StoreInt64(&pendingCallsValue, int64(n)) }

// SetLiveProxies reports the current number of live proxies across the
// process (or however many the caller wants attributed to this Set).
func SetLiveProxies(n int) { atomic.StoreInt64(&liveProxiesValue, int64(n)) }

// Write renders every counter registered here plus process-wide defaults
// in the Prometheus text exposition format.
func Write(w io.Writer) {
	metrics.WritePrometheus(w, true)
	Set.WritePrometheus(w)
	fmt.Fprintf(w, "bridge_start_timestamp %d\n", startTime.Unix())
	fmt.Fprintf(w, "bridge_uptime_seconds %d\n", int(time.Since(startTime).Seconds()))
}

// Handler serves the metrics above for scraping.
func Handler(w http.ResponseWriter, _ *http.Request) {
	Write(w)
}
