package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Identity resolution outcomes.
const (
	OutcomeApplied = "applied"
	OutcomeStale   = "stale"
	OutcomeError   = "error"
	OutcomeNoop    = "noop"
)

// RealtimeMetrics records notification provider activity. A nil receiver is a no-op.
type RealtimeMetrics struct {
	events        *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
	subscriptions prometheus.Gauge
	dismissed     prometheus.Counter
}

// NewRealtimeMetrics registers the realtime metrics on the provided registerer.
func NewRealtimeMetrics(reg prometheus.Registerer) *RealtimeMetrics {
	if reg == nil {
		return &RealtimeMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_received_total",
		Help: "Live events received on the tenant channel, by event name.",
	}, []string{"event"})
	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_identity_resolutions_total",
		Help: "Identity resolutions by outcome (applied, stale, error, noop).",
	}, []string{"outcome"})
	subscriptions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_active_subscriptions",
		Help: "Tenant channel subscriptions currently held (0 or 1).",
	})
	dismissed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realtime_toasts_dismissed_total",
		Help: "Toasts dismissed before their display timeout.",
	})
	reg.MustRegister(events, resolutions, subscriptions, dismissed)
	return &RealtimeMetrics{
		events:        events,
		resolutions:   resolutions,
		subscriptions: subscriptions,
		dismissed:     dismissed,
	}
}

// IncEvent counts an inbound event; unknown names are recorded as "unknown".
func (m *RealtimeMetrics) IncEvent(event string, known bool) {
	if m == nil || m.events == nil {
		return
	}
	if !known {
		event = "unknown"
	}
	m.events.WithLabelValues(normalizeLabel(event)).Inc()
}

func (m *RealtimeMetrics) IncResolution(outcome string) {
	if m == nil || m.resolutions == nil {
		return
	}
	m.resolutions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *RealtimeMetrics) SetSubscribed(active bool) {
	if m == nil || m.subscriptions == nil {
		return
	}
	if active {
		m.subscriptions.Set(1)
		return
	}
	m.subscriptions.Set(0)
}

func (m *RealtimeMetrics) IncDismissed() {
	if m == nil || m.dismissed == nil {
		return
	}
	m.dismissed.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
