// Package config loads the process-level configuration for a raftd
// node: a YAML file for the static cluster topology, overridable by
// command-line flags for the handful of settings an operator tunes
// per launch.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PeerConfig is one entry of the static peer list.
type PeerConfig struct {
	ID   uint64 `yaml:"id"`
	Addr string `yaml:"addr"`
}

// Config is the full node configuration, loaded from YAML and then
// optionally overridden by flags bound in cmd/raftd.
type Config struct {
	NodeID uint64 `yaml:"nodeId"`
	Peers  []PeerConfig `yaml:"peers"`

	ListenAddr  string `yaml:"listenAddr"`
	MetricsAddr string `yaml:"metricsAddr"`
	DataDir     string `yaml:"dataDir"`

	ElectionTick    int    `yaml:"electionTick"`
	HeartbeatTick   int    `yaml:"heartbeatTick"`
	MaxSizePerMsg   uint64 `yaml:"maxSizePerMsg"`
	MaxInflightMsgs int    `yaml:"maxInflightMsgs"`
	CheckQuorum     bool   `yaml:"checkQuorum"`

	TickInterval string `yaml:"tickInterval"`
}

// Default returns a Config with the same defaults etcd/raft-derived
// systems typically ship: 10 ticks to elect, 1 tick to heartbeat.
func Default() Config {
	return Config{
		ElectionTick:    10,
		HeartbeatTick:   1,
		MaxSizePerMsg:   1 << 20,
		MaxInflightMsgs: 256,
		CheckQuorum:     true,
		DataDir:         "data",
		ListenAddr:      ":7000",
		MetricsAddr:     ":9090",
		TickInterval:    "100ms",
	}
}

// Load reads and parses a YAML config file on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()

	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// PeerIDs returns the configured peer id list, including NodeID
// itself, in the convention internal/raft.Config.Peers expects.
func (c Config) PeerIDs() []uint64 {
	ids := make([]uint64, 0, len(c.Peers))
	for _, p := range c.Peers {
		ids = append(ids, p.ID)
	}
	return ids
}

// Addr returns the listen address configured for peer id, or "" if unknown.
func (c Config) Addr(id uint64) string {
	for _, p := range c.Peers {
		if p.ID == id {
			return p.Addr
		}
	}
	return ""
}

// Validate checks the minimal invariants raftd needs before wiring a node.
func (c Config) Validate() error {
	if c.NodeID == 0 {
		return fmt.Errorf("config: nodeId must be set")
	}
	found := false
	for _, p := range c.Peers {
		if p.ID == c.NodeID {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("config: nodeId %d must appear in its own peers list", c.NodeID)
	}
	return nil
}
