package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for ConnectionRequests.
const (
	ResultOK          = "ok"
	ResultAlreadySent = "already_sent"
	ResultError       = "error"
)

// Outcome labels for DirectoryCache.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

var (
	ConnectionRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studymate",
			Name:      "connection_requests_total",
			Help:      "Connection request operations by operation and outcome.",
		},
		[]string{"op", "result"},
	)

	DirectoryCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studymate",
			Name:      "partner_cache_lookups_total",
			Help:      "Partner directory cache lookups by outcome.",
		},
		[]string{"result"},
	)

	ReconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studymate",
			Name:      "reconcile_runs_total",
			Help:      "Denormalized state reconciliation runs by outcome.",
		},
		[]string{"result"},
	)
)

// Register adds the service collectors to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{ConnectionRequests, DirectoryCache, ReconcileRuns} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}
