package spaces

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricStoreWrites = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spaces",
		Subsystem: "store",
		Name:      "writes_total",
		Help:      "Durable space writes that completed successfully.",
	})

	metricStoreWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spaces",
		Subsystem: "store",
		Name:      "write_failures_total",
		Help:      "Durable space writes that exhausted all retries.",
	})

	metricArchiveEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spaces",
		Subsystem: "archive",
		Name:      "evictions_total",
		Help:      "Archived spaces evicted by the retention bound.",
	})

	metricRestoreMatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spaces",
		Subsystem: "restore",
		Name:      "matches_total",
		Help:      "Restored windows rebound to their original space id.",
	})

	metricRestoreTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spaces",
		Subsystem: "restore",
		Name:      "timeouts_total",
		Help:      "Restores that were not matched to a window in time.",
	})

	metricDroppedTabEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spaces",
		Subsystem: "reconciler",
		Name:      "dropped_tab_events_total",
		Help:      "Buffered tab events dropped because the window was never announced.",
	})
)
