// Package metrics assembles the process-wide view of every running unit
// and target into the two endpoints spec §6 names: a Prometheus exposition
// at /metrics and a plain-text summary at /status. It is grounded in the
// teacher's telemetry package, which keeps a provider map indirection
// between the running graph and what gets reported, generalized here from
// per-vertex trace providers to per-unit/target metric Sources.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Source is anything that contributes Prometheus metrics and a one-line
// status summary: every unit and target built by package config registers
// one of these with the process Collection.
type Source interface {
	prometheus.Collector
	// Status returns a single human-readable line for the /status
	// endpoint, e.g. "unit rtr-primary: healthy".
	Status() string
}

// Collection gathers metrics and status lines from every currently
// registered Source. Sources come and go as units and targets start and
// stop; rather than a genuine weak reference (Go's standard library had
// none until long after this module's go.mod floor), an owner explicitly
// calls Unregister (typically deferred in its Run method) when it
// terminates, which has the same externally observable effect the
// teacher's weakly-referenced metric producers have: a dead unit's metrics
// stop being reported at the next collection pass instead of lingering.
type Collection struct {
	mu  sync.RWMutex
	src map[string]Source
}

// NewCollection returns an empty Collection.
func NewCollection() *Collection {
	return &Collection{src: map[string]Source{}}
}

// Register adds (or replaces) the Source under key.
func (c *Collection) Register(key string, s Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.src[key] = s
}

// Unregister drops key, if present. Safe to call more than once.
func (c *Collection) Unregister(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.src, key)
}

func (c *Collection) snapshot() []Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Source, 0, len(c.src))
	for _, s := range c.src {
		out = append(out, s)
	}
	return out
}

// Describe implements prometheus.Collector over every live Source.
func (c *Collection) Describe(ch chan<- *prometheus.Desc) {
	for _, s := range c.snapshot() {
		s.Describe(ch)
	}
}

// Collect implements prometheus.Collector over every live Source.
func (c *Collection) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.snapshot() {
		s.Collect(ch)
	}
}

// StatusText renders one line per live Source, sorted by key, for the
// /status endpoint.
func (c *Collection) StatusText() string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.src))
	lines := make(map[string]string, len(c.src))
	for k, s := range c.src {
		keys = append(keys, k)
		lines[k] = s.Status()
	}
	c.mu.RUnlock()

	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, lines[k])
	}
	return b.String()
}

// FuncSource adapts a status closure and a set of prometheus.Collectors
// (typically prometheus.NewGaugeFunc values reading live unit/target
// state) into a Source, so callers don't need a bespoke type per unit
// kind.
type FuncSource struct {
	status     func() string
	collectors []prometheus.Collector
}

// NewFuncSource builds a Source from a status closure and any number of
// collectors.
func NewFuncSource(status func() string, collectors ...prometheus.Collector) *FuncSource {
	return &FuncSource{status: status, collectors: collectors}
}

// Status implements Source.
func (f *FuncSource) Status() string { return f.status() }

// Describe implements prometheus.Collector.
func (f *FuncSource) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range f.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (f *FuncSource) Collect(ch chan<- prometheus.Metric) {
	for _, c := range f.collectors {
		c.Collect(ch)
	}
}
