package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters/histograms for API calls, bookings and
// notification polling. All methods are safe on a nil receiver.
type Metrics struct {
	apiRequests    *prometheus.CounterVec
	apiLatency     *prometheus.HistogramVec
	bookings       *prometheus.CounterVec
	polls          *prometheus.CounterVec
	pollsSkipped   prometheus.Counter
	activeWatchers prometheus.Gauge
	pushedNotifs   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beauty",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total booking API requests",
		}, []string{"endpoint", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "beauty",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Latency of booking API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beauty",
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Booking submissions by outcome",
		}, []string{"result"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beauty",
			Subsystem: "notifications",
			Name:      "fetch_total",
			Help:      "Notification fetches by outcome",
		}, []string{"result"}),
		pollsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beauty",
			Subsystem: "notifications",
			Name:      "poll_skipped_total",
			Help:      "Poll ticks skipped because a fetch was still running",
		}),
		activeWatchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "beauty",
			Subsystem: "notifications",
			Name:      "active_watchers",
			Help:      "Chats with a running notification poller",
		}),
		pushedNotifs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beauty",
			Subsystem: "notifications",
			Name:      "pushed_total",
			Help:      "Notifications pushed into chats",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.apiRequests, m.apiLatency, m.bookings, m.polls, m.pollsSkipped, m.activeWatchers, m.pushedNotifs)
	return m
}

// ObserveRequest records one API call. status 0 means no response was received.
func (m *Metrics) ObserveRequest(endpoint string, status int, seconds float64) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.apiRequests.WithLabelValues(endpoint, label).Inc()
	m.apiLatency.WithLabelValues(endpoint).Observe(seconds)
}

func (m *Metrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveFetch(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.polls.WithLabelValues(result).Inc()
}

func (m *Metrics) ObservePollSkipped() {
	if m == nil {
		return
	}
	m.pollsSkipped.Inc()
}

func (m *Metrics) SetActiveWatchers(n int) {
	if m == nil {
		return
	}
	m.activeWatchers.Set(float64(n))
}

func (m *Metrics) ObservePushed(n int) {
	if m == nil {
		return
	}
	m.pushedNotifs.Add(float64(n))
}
