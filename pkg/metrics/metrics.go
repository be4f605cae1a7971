// Copyright © 2018 One Concern

// Package metrics exposes prometheus collectors for the revision stores.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// Commit outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
)

// Metrics collected by the stores
type Metrics struct {
	Commits        *prometheus.CounterVec
	CommitRetries  prometheus.Counter
	CommitDuration prometheus.Histogram
	CacheLookups   *prometheus.CounterVec
	NodesCopied    prometheus.Counter
	StorageOps     *prometheus.CounterVec
}

// New builds collectors in some namespace
func New(namespace string) *Metrics {
	return &Metrics{
		Commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Number of commits, by outcome.",
		}, []string{"outcome"}),
		CommitRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_retries_total",
			Help:      "Number of commit attempts which lost the race for the head.",
		}),
		CommitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Duration of commits, retries included.",
			Buckets:   prometheus.DefBuckets,
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Number of cache lookups, by kind of record and result.",
		}, []string{"kind", "result"}),
		NodesCopied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gc_nodes_copied_total",
			Help:      "Number of nodes copied by the garbage collector.",
		}),
		StorageOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Number of object storage operations, by operation and result.",
		}, []string{"op", "result"}),
	}
}

// Register all collectors
func (m *Metrics) Register(r prometheus.Registerer) error {
	if m == nil {
		return nil
	}
	var err error
	for _, c := range []prometheus.Collector{m.Commits, m.CommitRetries, m.CommitDuration, m.CacheLookups, m.NodesCopied, m.StorageOps} {
		err = multierr.Append(err, r.Register(c))
	}
	return err
}

// Commit records the outcome of a commit
func (m *Metrics) Commit(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Commits.WithLabelValues(outcome).Inc()
	m.CommitDuration.Observe(time.Since(start).Seconds())
}

// Retry records a commit attempt which lost the race for the head
func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.CommitRetries.Inc()
}

// CacheLookup records a cache hit or miss
func (m *Metrics) CacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(kind, result).Inc()
}

// Copied records nodes copied by the garbage collector
func (m *Metrics) Copied(n int) {
	if m == nil {
		return
	}
	m.NodesCopied.Add(float64(n))
}

// StorageOp records an object storage operation
func (m *Metrics) StorageOp(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StorageOps.WithLabelValues(op, result).Inc()
}
