package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New("test")
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	assert.Error(t, m.Register(reg), "registering twice fails")

	m.Commit(OutcomeSuccess, time.Now())
	m.Commit(OutcomeConflict, time.Now())
	m.Commit(OutcomeSuccess, time.Now())
	m.Retry()
	m.CacheLookup("node", true)
	m.CacheLookup("node", false)
	m.CacheLookup("node", false)
	m.Copied(3)
	m.StorageOp("put", nil)
	m.StorageOp("get", errors.New("missing"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Commits.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CommitRetries))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheLookups.WithLabelValues("node", "miss")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.NodesCopied))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StorageOps.WithLabelValues("get", "error")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Commit(OutcomeFailed, time.Now())
		m.Retry()
		m.CacheLookup("commit", true)
		m.Copied(1)
		m.StorageOp("has", nil)
		assert.NoError(t, m.Register(prometheus.NewRegistry()))
	})
}
