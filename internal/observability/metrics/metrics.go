package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics exposes counters/histograms for orchestration runs.
type BookingMetrics struct {
	runsTotal       *prometheus.CounterVec
	candidatesTotal *prometheus.CounterVec
	bookingsTotal   prometheus.Counter
	stepLatency     *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callbooker",
			Subsystem: "orchestrator",
			Name:      "runs_total",
			Help:      "Total orchestration runs by terminal status",
		}, []string{"status"}),
		candidatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callbooker",
			Subsystem: "orchestrator",
			Name:      "candidates_total",
			Help:      "Candidates processed by outcome (booked or skip reason)",
		}, []string{"outcome"}),
		bookingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callbooker",
			Subsystem: "orchestrator",
			Name:      "bookings_total",
			Help:      "Total calls booked",
		}),
		stepLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "callbooker",
			Subsystem: "orchestrator",
			Name:      "step_latency_seconds",
			Help:      "Latency of external calls made by the orchestrator",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45, 90},
		}, []string{"step", "result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.candidatesTotal, m.bookingsTotal, m.stepLatency)
	return m
}

func (m *BookingMetrics) ObserveRun(status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveCandidate(outcome string) {
	if m == nil {
		return
	}
	m.candidatesTotal.WithLabelValues(outcome).Inc()
	if outcome == "booked" {
		m.bookingsTotal.Inc()
	}
}

// ObserveStep records how long an external step took and whether it failed.
func (m *BookingMetrics) ObserveStep(step string, started time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.stepLatency.WithLabelValues(step, result).Observe(time.Since(started).Seconds())
}
