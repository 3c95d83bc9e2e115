package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_mutations_total",
		Help: "Remote mutation operations issued, by operation.",
	}, []string{"operation"})

	MutationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_mutation_errors_total",
		Help: "Remote mutation operations that failed, by operation.",
	}, []string{"operation"})

	SnapshotDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_snapshot_deliveries_total",
		Help: "Course collection snapshots applied to local state.",
	})

	Resubscribes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_resubscribes_total",
		Help: "Course subscription channels re-established after a failure.",
	})
)
