package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/qkvraft/raftcore/internal/raft"
)

func TestObserveUpdatesGauges(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(registry, 1)

	c.Observe(raft.Status{Term: 3, Commit: 7, Applied: 5, Role: raft.RoleLeader})

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	values := map[string]float64{}
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			if strings.Contains(fam.GetName(), "role") {
				continue
			}
			values[fam.GetName()] = metricValue(m)
		}
	}

	if values["raftcore_term"] != 3 {
		t.Errorf("raftcore_term = %v, want 3", values["raftcore_term"])
	}
	if values["raftcore_commit_index"] != 7 {
		t.Errorf("raftcore_commit_index = %v, want 7", values["raftcore_commit_index"])
	}
	if values["raftcore_applied_index"] != 5 {
		t.Errorf("raftcore_applied_index = %v, want 5", values["raftcore_applied_index"])
	}
}

func metricValue(m *dto.Metric) float64 {
	if g := m.GetGauge(); g != nil {
		return g.GetValue()
	}
	return 0
}
