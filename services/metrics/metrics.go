// Package metrics exposes node counters on a private Prometheus registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "sensornode"

// Metrics holds the node collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	Samples   *prometheus.CounterVec
	Published prometheus.Counter
	Saves     *prometheus.CounterVec
	Requests  *prometheus.CounterVec
	Sensors   prometheus.Gauge
	Bridge    prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go
// runtime collector, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Samples: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "samples_total",
				Help:      "Sensor reads by result (ok, error)",
			},
			[]string{"result"},
		),

		Published: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "published_total",
				Help:      "Readings handed to the broker bridge",
			},
		),

		Saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_saves_total",
				Help:      "Configuration store saves by result (ok, error)",
			},
			[]string{"result"},
		),

		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Configuration requests by command",
			},
			[]string{"command"},
		),

		Sensors: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sensors",
				Help:      "Sensors in the registry",
			},
		),

		Bridge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "mqtt",
				Name:      "connected",
				Help:      "Broker connection status (0=disconnected, 1=connected)",
			},
		),
	}
	m.registry.MustRegister(
		m.Samples, m.Published, m.Saves, m.Requests, m.Sensors, m.Bridge,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry is the gatherer to serve.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// RecordSample counts one sensor read.
func (m *Metrics) RecordSample(ok bool) {
	if m == nil {
		return
	}
	m.Samples.WithLabelValues(result(ok)).Inc()
}

// RecordPublished counts one reading handed to the bridge.
func (m *Metrics) RecordPublished() {
	if m == nil {
		return
	}
	m.Published.Inc()
}

// RecordSave counts one configuration save.
func (m *Metrics) RecordSave(err error) {
	if m == nil {
		return
	}
	m.Saves.WithLabelValues(result(err == nil)).Inc()
}

// RecordRequest counts one configuration request.
func (m *Metrics) RecordRequest(command string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(command).Inc()
}

func (m *Metrics) SetSensors(n int) {
	if m == nil {
		return
	}
	m.Sensors.Set(float64(n))
}

// RecordBridgeStatus updates the broker connection gauge.
func (m *Metrics) RecordBridgeStatus(connected bool) {
	if m == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1.0
	}
	m.Bridge.Set(v)
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
