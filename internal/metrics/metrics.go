// Package metrics exposes a node's Status() as Prometheus gauges,
// polled by the driver loop and scraped over HTTP.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qkvraft/raftcore/internal/raft"
)

// Collector holds the gauges for one node's metrics.
type Collector struct {
	term    prometheus.Gauge
	commit  prometheus.Gauge
	applied prometheus.Gauge
	role    *prometheus.GaugeVec
}

// NewCollector builds and registers the gauges for nodeID against registry.
func NewCollector(registry *prometheus.Registry, nodeID uint64) *Collector {
	labels := prometheus.Labels{"node_id": strconv.FormatUint(nodeID, 10)}

	c := &Collector{
		term: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "raftcore",
			Name:        "term",
			Help:        "Current raft term observed by this node.",
			ConstLabels: labels,
		}),
		commit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "raftcore",
			Name:        "commit_index",
			Help:        "Highest log index known to be committed.",
			ConstLabels: labels,
		}),
		applied: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "raftcore",
			Name:        "applied_index",
			Help:        "Highest log index applied to the state machine.",
			ConstLabels: labels,
		}),
		role: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "raftcore",
			Name:        "role",
			Help:        "1 for the role this node currently holds, 0 otherwise.",
			ConstLabels: labels,
		}, []string{"role"}),
	}

	registry.MustRegister(c.term, c.commit, c.applied, c.role)
	return c
}

// Observe updates every gauge from a point-in-time node status.
func (c *Collector) Observe(status raft.Status) {
	c.term.Set(float64(status.Term))
	c.commit.Set(float64(status.Commit))
	c.applied.Set(float64(status.Applied))

	for _, r := range []raft.Role{raft.RoleFollower, raft.RoleCandidate, raft.RoleLeader} {
		v := 0.0
		if r == status.Role {
			v = 1.0
		}
		c.role.WithLabelValues(r.String()).Set(v)
	}
}

// Handler returns the HTTP handler a driver mounts for scraping.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
