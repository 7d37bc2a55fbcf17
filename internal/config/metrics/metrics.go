// Package metrics exposes Prometheus collectors for configuration trees.
//
// A nil *Collector is valid and records nothing, so callers never need to
// check whether metrics are enabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cfgtree"

// Collector holds the tree metrics.
type Collector struct {
	Commits            *prometheus.CounterVec
	CommitFailures     *prometheus.CounterVec
	CommittedEntries   *prometheus.CounterVec
	CommitDuration     *prometheus.HistogramVec
	Bakes              *prometheus.CounterVec
	BakeFailures       *prometheus.CounterVec
	Loads              *prometheus.CounterVec
	InvalidValues      *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	ExternalChanges    *prometheus.CounterVec
	Resolutions        *prometheus.CounterVec
	Conflicts          *prometheus.CounterVec
	Pending            *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. A nil reg uses
// the default Prometheus registerer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	c := &Collector{}

	c.Commits = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commits_total",
		Help:      "Successful commits per tree",
	}, []string{"tree"})

	c.CommitFailures = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commit_failures_total",
		Help:      "Commits that failed to persist or were refused",
	}, []string{"tree"})

	c.CommittedEntries = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "committed_entries_total",
		Help:      "Entries written by commits",
	}, []string{"tree"})

	c.CommitDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "commit_duration_seconds",
		Help:      "Time spent persisting and baking a commit",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"tree"})

	c.Bakes = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bakes_total",
		Help:      "Baker invocations after commits",
	}, []string{"tree"})

	c.BakeFailures = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bake_failures_total",
		Help:      "Baker invocations that returned an error",
	}, []string{"tree"})

	c.Loads = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loads_total",
		Help:      "Loads from the backing store",
	}, []string{"tree"})

	c.InvalidValues = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invalid_values_total",
		Help:      "Persisted values that could not be decoded and fell back to defaults",
	}, []string{"tree"})

	c.ValidationFailures = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "validation_failures_total",
		Help:      "Rejected candidate values by error code",
	}, []string{"tree", "code"})

	c.ExternalChanges = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "external_changes_total",
		Help:      "Entries whose persisted value changed outside the tree",
	}, []string{"tree"})

	c.Resolutions = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resolutions_total",
		Help:      "Resolved external changes by policy",
	}, []string{"tree", "policy"})

	c.Conflicts = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conflicts_total",
		Help:      "Conflicting entries seen during resolution",
	}, []string{"tree"})

	c.Pending = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "unreconciled_entries",
		Help:      "Externally changed entries awaiting resolution",
	}, []string{"tree"})

	return c
}

// ObserveCommit records a commit attempt. entries is the number of
// committed entries; err is the commit error, if any.
func (c *Collector) ObserveCommit(tree string, entries int, took time.Duration, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.CommitFailures.WithLabelValues(tree).Inc()
		return
	}
	c.Commits.WithLabelValues(tree).Inc()
	c.CommittedEntries.WithLabelValues(tree).Add(float64(entries))
	c.CommitDuration.WithLabelValues(tree).Observe(took.Seconds())
}

// ObserveBake records one baker invocation.
func (c *Collector) ObserveBake(tree string, err error) {
	if c == nil {
		return
	}
	c.Bakes.WithLabelValues(tree).Inc()
	if err != nil {
		c.BakeFailures.WithLabelValues(tree).Inc()
	}
}

// ObserveLoad records a load and the number of values that fell back to
// their defaults.
func (c *Collector) ObserveLoad(tree string, invalid int) {
	if c == nil {
		return
	}
	c.Loads.WithLabelValues(tree).Inc()
	c.InvalidValues.WithLabelValues(tree).Add(float64(invalid))
}

// ObserveValidation records a rejected candidate value.
func (c *Collector) ObserveValidation(tree, code string) {
	if c == nil {
		return
	}
	c.ValidationFailures.WithLabelValues(tree, code).Inc()
}

// ObserveExternal records detected external changes and the resulting
// number of pending entries.
func (c *Collector) ObserveExternal(tree string, changed, invalid int) {
	if c == nil {
		return
	}
	c.ExternalChanges.WithLabelValues(tree).Add(float64(changed))
	c.InvalidValues.WithLabelValues(tree).Add(float64(invalid))
	c.Pending.WithLabelValues(tree).Set(float64(changed))
}

// ObserveResolution records a resolution and clears the pending gauge.
func (c *Collector) ObserveResolution(tree, policy string, conflicts int) {
	if c == nil {
		return
	}
	c.Resolutions.WithLabelValues(tree, policy).Inc()
	c.Conflicts.WithLabelValues(tree).Add(float64(conflicts))
	c.Pending.WithLabelValues(tree).Set(0)
}

// ClearPending resets the pending gauge, as after an abandoned or
// overwritten external change.
func (c *Collector) ClearPending(tree string) {
	if c == nil {
		return
	}
	c.Pending.WithLabelValues(tree).Set(0)
}
