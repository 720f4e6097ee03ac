// Package chatmetrics bundles the Prometheus collectors the client
// exposes for decode, dispatch, rate-limit, and connection activity.
package chatmetrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for the IRC client and, when a
// query/stream API server is wired up, for that server's requests too.
// One registry backs both so a single /metrics endpoint reports the
// whole process.
type Metrics struct {
	registry *prometheus.Registry

	framesDecoded   prometheus.Counter
	framesDropped   *prometheus.CounterVec
	messagesParsed  *prometheus.CounterVec
	parseErrors     *prometheus.CounterVec
	subscriberQueue *prometheus.GaugeVec
	rateLimitWaits  *prometheus.HistogramVec
	connectionState *prometheus.GaugeVec
	reconnects      prometheus.Counter
	writesQueued    *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	wsClients           prometheus.Gauge
	sseClients          prometheus.Gauge
	broadcastDrops      *prometheus.CounterVec
	httpRateLimited     prometheus.Counter
	messagesSent        *prometheus.CounterVec
	dbWriteErrors       prometheus.Counter
}

// New builds a Metrics bundle registered against a fresh registry. Call
// Handler to expose it.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		framesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "twitchchat",
			Name:      "frames_decoded_total",
			Help:      "Total IRC frames successfully decoded from the wire.",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twitchchat",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped during decode or parse, by reason.",
		}, []string{"reason"}),
		messagesParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twitchchat",
			Name:      "messages_parsed_total",
			Help:      "Typed messages parsed, by kind.",
		}, []string{"kind"}),
		parseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twitchchat",
			Name:      "parse_errors_total",
			Help:      "Parse errors, by IRC command and error kind.",
		}, []string{"command", "kind"}),
		subscriberQueue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "twitchchat",
			Name:      "subscriber_queue_depth",
			Help:      "Pending events buffered per subscription.",
		}, []string{"kind"}),
		rateLimitWaits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "twitchchat",
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting for a rate-limit token before a write.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"class"}),
		connectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "twitchchat",
			Name:      "connection_state",
			Help:      "1 if the runner is currently in the named state, else 0.",
		}, []string{"state"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "twitchchat",
			Name:      "reconnects_total",
			Help:      "Number of times the runner terminated due to a RECONNECT request.",
		}),
		writesQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twitchchat",
			Name:      "writes_queued_total",
			Help:      "Outbound lines submitted to the writer queue, by class.",
		}, []string{"class"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twitchchat",
			Name:      "http_requests_total",
			Help:      "Total requests received by the query/stream API.",
		}, []string{"route", "method", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "twitchchat",
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of query/stream API request durations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "twitchchat",
			Name:      "ws_clients",
			Help:      "Current connected WebSocket stream clients.",
		}),
		sseClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "twitchchat",
			Name:      "sse_clients",
			Help:      "Current connected SSE stream clients.",
		}),
		broadcastDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twitchchat",
			Name:      "stream_broadcast_drops_total",
			Help:      "Live events dropped because a stream client's queue was full.",
		}, []string{"transport"}),
		httpRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "twitchchat",
			Name:      "http_rate_limited_total",
			Help:      "Query/stream API requests rejected by the per-IP rate limiter.",
		}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twitchchat",
			Name:      "stream_messages_sent_total",
			Help:      "Chat events delivered to stream clients, by transport.",
		}, []string{"transport"}),
		dbWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "twitchchat",
			Name:      "store_write_errors_total",
			Help:      "Errors writing an event to the SQLite store.",
		}),
	}

	registry.MustRegister(
		m.framesDecoded,
		m.framesDropped,
		m.messagesParsed,
		m.parseErrors,
		m.subscriberQueue,
		m.rateLimitWaits,
		m.connectionState,
		m.reconnects,
		m.writesQueued,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.wsClients,
		m.sseClients,
		m.broadcastDrops,
		m.httpRateLimited,
		m.messagesSent,
		m.dbWriteErrors,
	)

	return m
}

// Handler exposes the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFrameDecoded records one successfully decoded frame.
func (m *Metrics) ObserveFrameDecoded() {
	if m == nil {
		return
	}
	m.framesDecoded.Inc()
}

// ObserveFrameDropped records one dropped/malformed frame.
func (m *Metrics) ObserveFrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

// ObserveMessageParsed records one typed message of the given kind.
func (m *Metrics) ObserveMessageParsed(kind string) {
	if m == nil {
		return
	}
	m.messagesParsed.WithLabelValues(kind).Inc()
}

// ObserveParseError records a recognized-but-malformed command.
func (m *Metrics) ObserveParseError(command, kind string) {
	if m == nil {
		return
	}
	m.parseErrors.WithLabelValues(command, kind).Inc()
}

// SetSubscriberQueueDepth reports the current backlog for one subscription kind.
func (m *Metrics) SetSubscriberQueueDepth(kind string, depth int) {
	if m == nil {
		return
	}
	m.subscriberQueue.WithLabelValues(kind).Set(float64(depth))
}

// ObserveRateLimitWait records how long a write waited for its bucket.
func (m *Metrics) ObserveRateLimitWait(class string, seconds float64) {
	if m == nil {
		return
	}
	m.rateLimitWaits.WithLabelValues(class).Observe(seconds)
}

// SetConnectionState flips the gauge for the given state to 1 and every
// other known state to 0, so a single gauge query shows the current state.
func (m *Metrics) SetConnectionState(states []string, current string) {
	if m == nil {
		return
	}
	for _, s := range states {
		if s == current {
			m.connectionState.WithLabelValues(s).Set(1)
		} else {
			m.connectionState.WithLabelValues(s).Set(0)
		}
	}
}

// ObserveReconnect records one RECONNECT-triggered termination.
func (m *Metrics) ObserveReconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// ObserveWriteQueued records one line submitted to the writer queue.
func (m *Metrics) ObserveWriteQueued(class string) {
	if m == nil {
		return
	}
	m.writesQueued.WithLabelValues(class).Inc()
}

// ObserveHTTPRequest records timing and status for one query/stream API request.
func (m *Metrics) ObserveHTTPRequest(route, method string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(dur.Seconds())
}

// AddWSClients adjusts the WebSocket stream client gauge by delta.
func (m *Metrics) AddWSClients(delta float64) {
	if m == nil {
		return
	}
	m.wsClients.Add(delta)
}

// AddSSEClients adjusts the SSE stream client gauge by delta.
func (m *Metrics) AddSSEClients(delta float64) {
	if m == nil {
		return
	}
	m.sseClients.Add(delta)
}

// ObserveBroadcastDrop records one stream event dropped for a slow client.
func (m *Metrics) ObserveBroadcastDrop(transport string) {
	if m == nil {
		return
	}
	m.broadcastDrops.WithLabelValues(transport).Inc()
}

// ObserveHTTPRateLimited records one request rejected by the rate limiter.
func (m *Metrics) ObserveHTTPRateLimited() {
	if m == nil {
		return
	}
	m.httpRateLimited.Inc()
}

// ObserveMessageSent records one event delivered to a stream client.
func (m *Metrics) ObserveMessageSent(transport string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(transport).Inc()
}

// ObserveStoreWriteError records one failed write to the event store.
func (m *Metrics) ObserveStoreWriteError() {
	if m == nil {
		return
	}
	m.dbWriteErrors.Inc()
}
