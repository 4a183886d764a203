package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/foldersync/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, m *SyncMetrics) map[string]float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			key := mf.GetName()
			for _, label := range metric.GetLabel() {
				key += "|" + label.GetName() + "=" + label.GetValue()
			}
			switch {
			case metric.GetCounter() != nil:
				values[key] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[key] = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				values[key] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return values
}

func TestSyncMetrics_ObserveTransfer(t *testing.T) {
	m := New()

	m.ObserveTransfer(sync.ActionCopyToDestination, 10)
	m.ObserveTransfer(sync.ActionCopyToDestination, 5)
	m.ObserveTransfer(sync.ActionUpdateSource, 0)

	values := gather(t, m)
	assert.Equal(t, 2.0, values["foldersync_files_transferred_total|action=CopyToDestination"])
	assert.Equal(t, 1.0, values["foldersync_files_transferred_total|action=UpdateSource"])
	assert.Equal(t, 15.0, values["foldersync_bytes_transferred_total|action=CopyToDestination"])
	_, ok := values["foldersync_bytes_transferred_total|action=UpdateSource"]
	assert.False(t, ok, "empty files add no bytes")
}

func TestSyncMetrics_ObservePass(t *testing.T) {
	m := New()

	m.ObservePass(sync.TwoWay, sync.SyncResult{Success: true, FilesScanned: 7}, 20*time.Millisecond)
	m.ObservePass(sync.OneWaySourceToDestination, sync.SyncResult{
		FilesScanned: 3,
		Errors:       []string{"Error syncing a: boom", "Error syncing b: boom"},
	}, time.Second)

	values := gather(t, m)
	assert.Equal(t, 1.0, values["foldersync_passes_total|mode=two-way|status=success"])
	assert.Equal(t, 1.0, values["foldersync_passes_total|mode=one-way|status=failure"])
	assert.Equal(t, 10.0, values["foldersync_files_scanned_total"])
	assert.Equal(t, 2.0, values["foldersync_pass_errors_total"])
	assert.Equal(t, 1.0, values["foldersync_pass_duration_seconds|mode=two-way"])
	assert.Equal(t, 1.0, values["foldersync_last_pass_failed"])
	assert.Positive(t, values["foldersync_last_pass_timestamp_seconds"])
}

func TestSyncMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.ObserveTransfer(sync.ActionUpdateDestination, 42)
	m.ObservePass(sync.TwoWay, sync.SyncResult{Success: true, FilesScanned: 1}, time.Millisecond)

	path := filepath.Join(t.TempDir(), "textfile", "foldersync.prom")
	require.NoError(t, m.WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, `foldersync_bytes_transferred_total{action="UpdateDestination"} 42`)
	assert.Contains(t, text, `foldersync_passes_total{mode="two-way",status="success"} 1`)
	assert.Contains(t, text, "# TYPE foldersync_pass_duration_seconds histogram")
}

func TestSyncMetrics_AsEngineObserver(t *testing.T) {
	m := New()
	engine := sync.NewSyncEngine(sync.WithObserver(m))

	result := engine.Synchronize(context.Background(), nil, nil, sync.TwoWay)
	require.False(t, result.Success)

	values := gather(t, m)
	assert.Equal(t, 1.0, values["foldersync_passes_total|mode=two-way|status=failure"])
}
