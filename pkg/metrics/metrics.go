// Package metrics exposes the coordinator's Prometheus instrumentation
// (grounded on beemesh-beemesh's promhttp.Handler usage).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WorkersConnected tracks the number of workers with a live connection.
	WorkersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "distributed_lxc",
		Subsystem: "coordinator",
		Name:      "workers_connected",
		Help:      "Number of workers currently connected to the coordinator.",
	})

	// PlacementDecisions counts automatic placement outcomes.
	PlacementDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "distributed_lxc",
		Subsystem: "coordinator",
		Name:      "placement_decisions_total",
		Help:      "Automatic placement decisions, labeled by outcome.",
	}, []string{"outcome"})

	// ContainerStateTransitions counts container status reports received
	// from workers, labeled by the reported state.
	ContainerStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "distributed_lxc",
		Subsystem: "coordinator",
		Name:      "container_state_transitions_total",
		Help:      "Container status reports received from workers, by state.",
	}, []string{"state"})

	// ContainersDeployed tracks the number of containers currently tracked
	// by the container index.
	ContainersDeployed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "distributed_lxc",
		Subsystem: "coordinator",
		Name:      "containers_deployed",
		Help:      "Number of containers currently tracked by the coordinator.",
	})
)
