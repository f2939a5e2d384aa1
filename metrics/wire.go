package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-rtrtr/rtrtr/comms"
	"github.com/go-rtrtr/rtrtr/target"
	"github.com/go-rtrtr/rtrtr/unit"
)

// WireUnit registers a Source reporting a unit's gate/status state, keyed
// "unit:<name>". Callers should defer the returned func (typically from
// the unit's own Run goroutine) so the unit's metrics disappear once it
// terminates.
func WireUnit(c *Collection, name string, u unit.Unit) (unregister func()) {
	gateActive := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "rtrtr_unit_gate_active",
		Help:        "1 if the unit's gate has at least one non-suspended subscriber, 0 otherwise.",
		ConstLabels: prometheus.Labels{"unit": name},
	}, func() float64 {
		if u.Gate().Status() == comms.GateActive {
			return 1
		}
		return 0
	})
	health := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "rtrtr_unit_healthy",
		Help:        "1 if the unit last reported Healthy, 0 if Stalled or Gone.",
		ConstLabels: prometheus.Labels{"unit": name},
	}, func() float64 {
		if u.Gate().UnitStatus() == comms.Healthy {
			return 1
		}
		return 0
	})

	key := "unit:" + name
	c.Register(key, NewFuncSource(func() string {
		return "unit " + name + ": " + u.Gate().UnitStatus().String()
	}, gateActive, health))
	return func() { c.Unregister(key) }
}

// WireRTRTarget registers a Source reporting an RTR server target's open
// connection count, keyed "target:<name>".
func WireRTRTarget(c *Collection, name string, t *target.RTR) (unregister func()) {
	conns := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "rtrtr_rtr_target_connections",
		Help:        "Number of currently open client connections to this RTR server target.",
		ConstLabels: prometheus.Labels{"target": name},
	}, func() float64 {
		return float64(t.ConnectionCount())
	})

	key := "target:" + name
	c.Register(key, NewFuncSource(func() string {
		return "target " + name + ": " + strconv.FormatInt(t.ConnectionCount(), 10) + " connections"
	}, conns))
	return func() { c.Unregister(key) }
}

// WireHTTPTarget registers a minimal Source for an HTTP JSON target, keyed
// "target:<name>". It has no distinct metrics beyond being present; the
// shared fiber.App already counts requests at the transport layer.
func WireHTTPTarget(c *Collection, name string, _ *target.HTTP) (unregister func()) {
	key := "target:" + name
	c.Register(key, NewFuncSource(func() string {
		return "target " + name + ": serving"
	}))
	return func() { c.Unregister(key) }
}
