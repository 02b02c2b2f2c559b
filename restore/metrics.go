package restore

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// readerMetrics mirrors the vector style the rest of the stack uses for
// per-partition gauges and counters (see modules/blockbuilder's
// metricPartitionLag family).
type readerMetrics struct {
	restoredOffset      *prometheus.GaugeVec
	recordsRestored     *prometheus.CounterVec
	partitionsRemaining prometheus.Gauge
	reinitializations   *prometheus.CounterVec
}

func newReaderMetrics(reg prometheus.Registerer) *readerMetrics {
	f := promauto.With(reg)
	return &readerMetrics{
		restoredOffset: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "changelog",
			Subsystem: "restore",
			Name:      "restored_offset",
			Help:      "Highest offset successfully applied for a changelog partition.",
		}, []string{"topic", "partition"}),
		recordsRestored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "changelog",
			Subsystem: "restore",
			Name:      "records_restored_total",
			Help:      "Total number of changelog records applied to the store.",
		}, []string{"topic", "partition"}),
		partitionsRemaining: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "changelog",
			Subsystem: "restore",
			Name:      "partitions_remaining",
			Help:      "Number of partitions still being restored.",
		}),
		reinitializations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "changelog",
			Subsystem: "restore",
			Name:      "reinitializations_total",
			Help:      "Total number of transactional store reinitializations triggered by a missing checkpoint.",
		}, []string{"topic", "partition"}),
	}
}

func (m *readerMetrics) observeRestored(p Partition, offset, delta int64) {
	idx := strconv.Itoa(int(p.Index))
	m.restoredOffset.WithLabelValues(p.Topic, idx).Set(float64(offset))
	if delta > 0 {
		m.recordsRestored.WithLabelValues(p.Topic, idx).Add(float64(delta))
	}
}

func (m *readerMetrics) observeReinit(p Partition) {
	m.reinitializations.WithLabelValues(p.Topic, strconv.Itoa(int(p.Index))).Inc()
}

func (m *readerMetrics) setRemaining(n int) {
	m.partitionsRemaining.Set(float64(n))
}
