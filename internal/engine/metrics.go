package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds engine counters. Updates are atomic and safe on the
// processing goroutine.
type Metrics struct {
	Blocks   prometheus.Counter
	Overruns prometheus.Counter
	Dropped  prometheus.Counter
	Running  prometheus.Gauge
}

// NewMetrics registers engine metrics on reg. A nil reg yields unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Blocks: f.NewCounter(prometheus.CounterOpts{
			Name: "rack_engine_blocks_total",
			Help: "Processed blocks",
		}),
		Overruns: f.NewCounter(prometheus.CounterOpts{
			Name: "rack_engine_overruns_total",
			Help: "Blocks that took longer than one block period",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "rack_engine_dropped_drives_total",
			Help: "External control values dropped because the inbox was full",
		}),
		Running: f.NewGauge(prometheus.GaugeOpts{
			Name: "rack_engine_running",
			Help: "1 while the processing goroutine is alive",
		}),
	}
}
