package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raftd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeTestConfig(t, `
nodeId: 2
listenAddr: ":7001"
peers:
  - id: 1
    addr: "127.0.0.1:7000"
  - id: 2
    addr: "127.0.0.1:7001"
  - id: 3
    addr: "127.0.0.1:7002"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.NodeID != 2 {
		t.Errorf("NodeID = %d, want 2", cfg.NodeID)
	}
	if cfg.ListenAddr != ":7001" {
		t.Errorf("ListenAddr = %q, want :7001", cfg.ListenAddr)
	}
	if cfg.ElectionTick != 10 {
		t.Errorf("ElectionTick = %d, want default 10", cfg.ElectionTick)
	}
	if len(cfg.PeerIDs()) != 3 {
		t.Errorf("PeerIDs = %v, want 3 entries", cfg.PeerIDs())
	}
	if cfg.Addr(3) != "127.0.0.1:7002" {
		t.Errorf("Addr(3) = %q, want 127.0.0.1:7002", cfg.Addr(3))
	}
}

func TestValidateRequiresSelfInPeers(t *testing.T) {
	cfg := Default()
	cfg.NodeID = 1
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should fail when NodeID is absent from Peers")
	}

	cfg.Peers = []PeerConfig{{ID: 1, Addr: "x"}}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate should pass once NodeID is in Peers, got %v", err)
	}
}

func TestValidateRequiresNodeID(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should fail when NodeID is unset")
	}
}
