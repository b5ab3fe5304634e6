package metrics

import "github.com/prometheus/client_golang/prometheus"

// QueueMetrics exposes counters/histograms for queue orchestration flows.
type QueueMetrics struct {
	operationsTotal *prometheus.CounterVec
	waitSeconds     *prometheus.HistogramVec
}

func NewQueueMetrics(reg prometheus.Registerer) *QueueMetrics {
	m := &QueueMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicops",
			Subsystem: "queue",
			Name:      "operations_total",
			Help:      "Total queue orchestrator operations",
		}, []string{"operation", "status"}),
		waitSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicops",
			Subsystem: "queue",
			Name:      "wait_seconds",
			Help:      "Time patients spent waiting before being called",
			Buckets:   []float64{60, 300, 600, 1200, 1800, 3600, 7200},
		}, []string{"priority"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.waitSeconds)
	return m
}

func (m *QueueMetrics) ObserveOperation(operation, status string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

func (m *QueueMetrics) ObserveWait(priority string, seconds float64) {
	if m == nil {
		return
	}
	m.waitSeconds.WithLabelValues(priority).Observe(seconds)
}

// SlotMetrics exposes instrumentation for slot generation.
type SlotMetrics struct {
	generateSeconds prometheus.Histogram
	slotsEmitted    *prometheus.CounterVec
}

func NewSlotMetrics(reg prometheus.Registerer) *SlotMetrics {
	m := &SlotMetrics{
		generateSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinicops",
			Subsystem: "scheduling",
			Name:      "generate_seconds",
			Help:      "Latency of slot generation requests",
			Buckets:   prometheus.DefBuckets,
		}),
		slotsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicops",
			Subsystem: "scheduling",
			Name:      "slots_emitted_total",
			Help:      "Total generated slots by availability",
		}, []string{"available"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.generateSeconds, m.slotsEmitted)
	return m
}

func (m *SlotMetrics) ObserveGenerate(seconds float64) {
	if m == nil {
		return
	}
	m.generateSeconds.Observe(seconds)
}

func (m *SlotMetrics) ObserveSlots(available bool, count int) {
	if m == nil {
		return
	}
	label := "false"
	if available {
		label = "true"
	}
	m.slotsEmitted.WithLabelValues(label).Add(float64(count))
}
