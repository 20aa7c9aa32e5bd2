package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics instruments the KPI derivation and aggregation engine.
type EngineMetrics struct {
	readingsSubmitted *prometheus.CounterVec
	kpiUpdated        *prometheus.CounterVec
	kpiSkipped        prometheus.Counter
	configGaps        *prometheus.CounterVec
	recomputeDuration prometheus.Histogram
	outagesOpen       prometheus.Gauge
	eventsPending     prometheus.Gauge
}

var (
	engineMetricsOnce sync.Once
	engineMetrics     *EngineMetrics
)

// Engine returns the process-wide engine metrics.
func Engine() *EngineMetrics {
	return EngineWithConfig(Config{})
}

// EngineWithConfig returns the process-wide engine metrics, registering them
// with the given constant labels on first use.
func EngineWithConfig(cfg Config) *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineMetrics = newEngineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return engineMetrics
}

// ResetEngineMetricsForTest clears the singleton between test registries.
func ResetEngineMetricsForTest() {
	engineMetricsOnce = sync.Once{}
	engineMetrics = nil
}

func newEngineMetrics(registerer prometheus.Registerer, cfg Config) *EngineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	cfg = cfg.withDefaults()

	constLabels := prometheus.Labels{
		"service": cfg.ServiceName,
		"env":     cfg.Environment,
	}

	m := &EngineMetrics{
		readingsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "pims_readings_submitted_total",
			Help:        "Totalizer readings accepted, by scope.",
			ConstLabels: constLabels,
		}, []string{"scope"}),
		kpiUpdated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "pims_kpi_records_updated_total",
			Help:        "KPI records written by the selective persister, by scope.",
			ConstLabels: constLabels,
		}, []string{"scope"}),
		kpiSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "pims_kpi_records_skipped_total",
			Help:        "KPI writes skipped because the value was unaffected or unchanged.",
			ConstLabels: constLabels,
		}),
		configGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "pims_kpi_config_gaps_total",
			Help:        "Aggregations that could not honor their configuration, by reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		recomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "pims_kpi_recompute_duration_seconds",
			Help:        "Duration of full-day KPI recomputes.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}),
		outagesOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "pims_outages_open",
			Help:        "Outage records without an end time.",
			ConstLabels: constLabels,
		}),
		eventsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "pims_plant_events_pending",
			Help:        "Unpublished rows in the plant event outbox.",
			ConstLabels: constLabels,
		}),
	}

	registerer.MustRegister(
		m.readingsSubmitted,
		m.kpiUpdated,
		m.kpiSkipped,
		m.configGaps,
		m.recomputeDuration,
		m.outagesOpen,
		m.eventsPending,
	)
	return m
}

// IncReadingsSubmitted counts accepted readings for one scope.
func (m *EngineMetrics) IncReadingsSubmitted(scope string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.readingsSubmitted.WithLabelValues(normalizeLabel(scope)).Add(float64(count))
}

// IncKPIUpdated counts one persisted KPI write.
func (m *EngineMetrics) IncKPIUpdated(scope string) {
	if m == nil {
		return
	}
	m.kpiUpdated.WithLabelValues(normalizeLabel(scope)).Inc()
}

// IncKPISkipped counts one skipped KPI write.
func (m *EngineMetrics) IncKPISkipped() {
	if m == nil {
		return
	}
	m.kpiSkipped.Inc()
}

// IncConfigGap counts one aggregation configuration gap.
func (m *EngineMetrics) IncConfigGap(reason string) {
	if m == nil {
		return
	}
	m.configGaps.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveRecompute records the duration of one full-day recompute.
func (m *EngineMetrics) ObserveRecompute(d time.Duration) {
	if m == nil {
		return
	}
	m.recomputeDuration.Observe(d.Seconds())
}

// SetOutagesOpen records the current open outage count.
func (m *EngineMetrics) SetOutagesOpen(n int) {
	if m == nil {
		return
	}
	m.outagesOpen.Set(float64(n))
}

// SetEventsPending records the current outbox backlog.
func (m *EngineMetrics) SetEventsPending(n int64) {
	if m == nil {
		return
	}
	m.eventsPending.Set(float64(n))
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
