package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveDelivery(t *testing.T) {
	t.Parallel()

	r := New()
	r.ObserveDelivery("smtp", ResultSuccess, 2048, 150*time.Millisecond)
	r.ObserveDelivery("smtp", ResultNotConfirmed, 2048, time.Second)

	assert.InDelta(t, 1, testutil.ToFloat64(r.deliveries.WithLabelValues("smtp", ResultSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.deliveries.WithLabelValues("smtp", ResultNotConfirmed)), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(r.lastSuccess))
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))
	assert.Greater(t, testutil.ToFloat64(r.lastSuccess.WithLabelValues("smtp")), float64(0))
}

func TestObserveDelivery_FailureLeavesLastSuccessUnset(t *testing.T) {
	t.Parallel()

	r := New()
	r.ObserveDelivery("ses", ResultError, 100, time.Millisecond)

	assert.Equal(t, 0, testutil.CollectAndCount(r.lastSuccess))
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	r := New()
	r.ObserveDelivery("smtp", ResultTransportError, 512, 30*time.Second)

	path := filepath.Join(t.TempDir(), "mail_notifier.prom")
	require.NoError(t, r.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `mail_notifier_deliveries_total{result="transport_error",transport="smtp"} 1`)
	assert.Contains(t, out, "mail_notifier_message_size_bytes_count 1")
}

func TestWriteFile_BadPath(t *testing.T) {
	t.Parallel()

	err := New().WriteFile(filepath.Join(t.TempDir(), "missing", "m.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write metrics")
}
