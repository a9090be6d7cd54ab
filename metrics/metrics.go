// Package metrics holds the Prometheus collectors of the enclave node and
// the server that exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "enclave"

var (
	DoorbellOccupancy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "doorbell",
		Name:      "occupied_slots",
		Help:      "Number of admission slots currently held.",
	})

	DoorbellBusy = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "doorbell",
		Name:      "busy_total",
		Help:      "Admissions that gave up after the wait timeout.",
	})

	DoorbellWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "doorbell",
		Name:      "wait_seconds",
		Help:      "Time spent waiting for an admission slot.",
		Buckets:   []float64{.0001, .001, .01, .05, .1, .5, 1, 5, 15},
	})

	AttestationVerdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "attestation",
		Name:      "verdicts_total",
		Help:      "Peer attestation verdicts by result.",
	}, []string{"result"})

	SeedExchanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "seed_exchange",
		Name:      "requests_total",
		Help:      "Seed exchange requests served or made, by outcome.",
	}, []string{"outcome"})

	EntrypointCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "entrypoint",
		Name:      "calls_total",
		Help:      "Entrypoint invocations by name and status.",
	}, []string{"entrypoint", "status"})
)

func allCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		DoorbellOccupancy,
		DoorbellBusy,
		DoorbellWait,
		AttestationVerdicts,
		SeedExchanges,
		EntrypointCalls,
	}
}
