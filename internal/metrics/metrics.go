// Package metrics provides Prometheus metrics for sync passes.
package metrics

import (
	"fmt"
	"time"

	"github.com/openmined/foldersync/internal/sync"
	"github.com/openmined/foldersync/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "foldersync"

// SyncMetrics collects pass and transfer counters on its own registry. It implements
// sync.Observer.
type SyncMetrics struct {
	registry *prometheus.Registry

	passesTotal    *prometheus.CounterVec
	passDuration   *prometheus.HistogramVec
	filesScanned   prometheus.Counter
	filesTotal     *prometheus.CounterVec
	bytesTotal     *prometheus.CounterVec
	passErrors     prometheus.Counter
	lastPassUnix   prometheus.Gauge
	lastPassFailed prometheus.Gauge
}

var _ sync.Observer = (*SyncMetrics)(nil)

func New() *SyncMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &SyncMetrics{
		registry: reg,

		passesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "passes_total",
				Help:      "Total number of sync passes",
			},
			[]string{"mode", "status"},
		),

		passDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_duration_seconds",
				Help:      "Sync pass duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"mode"},
		),

		filesScanned: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_scanned_total",
				Help:      "Total number of files examined by sync passes",
			},
		),

		filesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_transferred_total",
				Help:      "Total number of files copied or updated",
			},
			[]string{"action"},
		),

		bytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_transferred_total",
				Help:      "Total bytes written by copies and updates",
			},
			[]string{"action"},
		),

		passErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pass_errors_total",
				Help:      "Total number of errors reported by sync passes",
			},
		),

		lastPassUnix: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_pass_timestamp_seconds",
				Help:      "Unix time of the last finished sync pass",
			},
		),

		lastPassFailed: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_pass_failed",
				Help:      "1 if the last sync pass reported errors",
			},
		),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *SyncMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *SyncMetrics) ObserveTransfer(action sync.ActionType, bytes int64) {
	m.filesTotal.WithLabelValues(string(action)).Inc()
	if bytes > 0 {
		m.bytesTotal.WithLabelValues(string(action)).Add(float64(bytes))
	}
}

func (m *SyncMetrics) ObservePass(mode sync.SyncMode, result sync.SyncResult, elapsed time.Duration) {
	status := "success"
	failed := 0.0
	if !result.Success {
		status = "failure"
		failed = 1
	}

	m.passesTotal.WithLabelValues(string(mode), status).Inc()
	m.passDuration.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
	m.filesScanned.Add(float64(result.FilesScanned))
	m.passErrors.Add(float64(len(result.Errors)))
	m.lastPassUnix.SetToCurrentTime()
	m.lastPassFailed.Set(failed)
}

// WriteTextfile writes the current values in the text exposition format, for the node exporter
// textfile collector. The file is replaced atomically.
func (m *SyncMetrics) WriteTextfile(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return fmt.Errorf("failed to create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
