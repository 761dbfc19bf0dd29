package metrics

import "github.com/prometheus/client_golang/prometheus"

// LeadMetrics exposes counters/histograms for the chat and submission flows.
type LeadMetrics struct {
	submissionsTotal *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	chatTurnsTotal   *prometheus.CounterVec
	sessionsStarted  *prometheus.CounterVec
}

func NewLeadMetrics(reg prometheus.Registerer) *LeadMetrics {
	m := &LeadMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadchat",
			Subsystem: "leads",
			Name:      "submissions_total",
			Help:      "Contact submissions by outcome",
		}, []string{"outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadchat",
			Subsystem: "airtable",
			Name:      "request_duration_seconds",
			Help:      "Latency of Airtable API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		chatTurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadchat",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Chat turns handled, by phase the turn started in and result",
		}, []string{"phase", "result"}),
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadchat",
			Subsystem: "chat",
			Name:      "sessions_started_total",
			Help:      "Chat sessions started, by script",
		}, []string{"script"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissionsTotal, m.upstreamLatency, m.chatTurnsTotal, m.sessionsStarted)
	return m
}

func (m *LeadMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *LeadMetrics) ObserveUpstream(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamLatency.WithLabelValues(operation, status).Observe(seconds)
}

func (m *LeadMetrics) ObserveTurn(phase, result string) {
	if m == nil {
		return
	}
	m.chatTurnsTotal.WithLabelValues(phase, result).Inc()
}

func (m *LeadMetrics) ObserveSessionStarted(script string) {
	if m == nil {
		return
	}
	m.sessionsStarted.WithLabelValues(script).Inc()
}
