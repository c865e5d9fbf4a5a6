// Package metrics exposes Prometheus collectors for the ingest and broadcast
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "adsb_xgps"

// Metrics groups every collector the pipeline updates. A nil *Metrics is
// valid and records nothing, so components can be used without a registry.
type Metrics struct {
	registry *prometheus.Registry

	LinesRead      prometheus.Counter
	ParseErrors    *prometheus.CounterVec
	FieldErrors    *prometheus.CounterVec
	UpdatesApplied prometheus.Counter
	Reconnects     prometheus.Counter
	FeedConnected  prometheus.Gauge

	DatagramsSent  prometheus.Counter
	SendErrors     prometheus.Counter
	SkippedTicks   *prometheus.CounterVec
	AircraftTotal  prometheus.Gauge
	TrackedVisible prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "feed", Name: "lines_total",
			Help: "Lines read from the SBS feed.",
		}),
		ParseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "feed", Name: "parse_errors_total",
			Help: "Feed lines discarded, by reason.",
		}, []string{"reason"}),
		FieldErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "feed", Name: "field_errors_total",
			Help: "Optional fields dropped because they were malformed, by field.",
		}, []string{"field"}),
		UpdatesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "feed", Name: "updates_applied_total",
			Help: "Parsed updates merged into the aircraft table.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "feed", Name: "reconnects_total",
			Help: "Feed connection attempts after a failure or disconnect.",
		}),
		FeedConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "feed", Name: "connected",
			Help: "1 while the feed connection is streaming.",
		}),
		DatagramsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "xgps", Name: "datagrams_sent_total",
			Help: "XGPS datagrams sent.",
		}),
		SendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "xgps", Name: "send_errors_total",
			Help: "XGPS datagram send failures.",
		}),
		SkippedTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "xgps", Name: "skipped_ticks_total",
			Help: "Broadcast ticks that sent nothing, by reason.",
		}, []string{"reason"}),
		AircraftTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "table", Name: "aircraft",
			Help: "Aircraft records held in the table.",
		}),
		TrackedVisible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "xgps", Name: "tracked_visible",
			Help: "1 when the tracked callsign resolved to a fresh position on the last tick.",
		}),
	}

	m.registry.MustRegister(
		m.LinesRead,
		m.ParseErrors,
		m.FieldErrors,
		m.UpdatesApplied,
		m.Reconnects,
		m.FeedConnected,
		m.DatagramsSent,
		m.SendErrors,
		m.SkippedTicks,
		m.AircraftTotal,
		m.TrackedVisible,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncLines() {
	if m != nil {
		m.LinesRead.Inc()
	}
}

func (m *Metrics) IncParseError(reason string) {
	if m != nil {
		m.ParseErrors.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncFieldError(field string) {
	if m != nil {
		m.FieldErrors.WithLabelValues(field).Inc()
	}
}

func (m *Metrics) IncApplied() {
	if m != nil {
		m.UpdatesApplied.Inc()
	}
}

func (m *Metrics) IncReconnect() {
	if m != nil {
		m.Reconnects.Inc()
	}
}

func (m *Metrics) SetConnected(up bool) {
	if m != nil {
		m.FeedConnected.Set(boolGauge(up))
	}
}

func (m *Metrics) IncSent() {
	if m != nil {
		m.DatagramsSent.Inc()
	}
}

func (m *Metrics) IncSendError() {
	if m != nil {
		m.SendErrors.Inc()
	}
}

func (m *Metrics) IncSkipped(reason string) {
	if m != nil {
		m.SkippedTicks.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) SetAircraft(n int) {
	if m != nil {
		m.AircraftTotal.Set(float64(n))
	}
}

func (m *Metrics) SetTrackedVisible(v bool) {
	if m != nil {
		m.TrackedVisible.Set(boolGauge(v))
	}
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
