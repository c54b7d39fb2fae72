// Package driver wires the I/O-free raft core to durable storage, the
// gRPC transport, the example kv state machine, and Prometheus
// metrics, and runs the single-threaded loop that owns Step/Tick.
// This is the host the raft core's package doc describes: everything
// here is the imperative shell around the core's pure decision logic.
package driver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/qkvraft/raftcore/internal/config"
	"github.com/qkvraft/raftcore/internal/kvstore"
	"github.com/qkvraft/raftcore/internal/metrics"
	"github.com/qkvraft/raftcore/internal/raft"
	"github.com/qkvraft/raftcore/internal/storage"
	"github.com/qkvraft/raftcore/internal/transport"
)

// Driver owns the node's single logical thread: every Step/Tick call,
// every durable write, and every outbound send happens on it.
type Driver struct {
	log *zap.Logger
	cfg config.Config

	node    *raft.Node
	store   *storage.DiskStorage
	kv      *kvstore.Store
	server  *transport.Server
	metrics *metrics.Collector

	mu      sync.Mutex
	clients map[uint64]*transport.PeerClient

	inbox chan raft.Message

	stop chan struct{}
}

const peerDialTimeout = 200 * time.Millisecond

// New wires every component described by cfg but does not start the
// tick loop or the gRPC server; call Run for that.
func New(cfg config.Config, log *zap.Logger) (*Driver, error) {
	store, err := storage.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	node := raft.NewNode(raft.Config{
		ID:              cfg.NodeID,
		Peers:           cfg.PeerIDs(),
		ElectionTick:    cfg.ElectionTick,
		HeartbeatTick:   cfg.HeartbeatTick,
		MaxSizePerMsg:   cfg.MaxSizePerMsg,
		MaxInflightMsgs: cfg.MaxInflightMsgs,
		CheckQuorum:     cfg.CheckQuorum,
		Storage:         store,
	})

	d := &Driver{
		log:     log,
		cfg:     cfg,
		node:    node,
		store:   store,
		kv:      kvstore.New(),
		clients: make(map[uint64]*transport.PeerClient),
		inbox:   make(chan raft.Message, 256),
		stop:    make(chan struct{}),
	}

	registry := prometheus.NewRegistry()
	d.metrics = metrics.NewCollector(registry, cfg.NodeID)
	d.server = transport.NewServer(d.deliver)

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler(registry))
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	return d, nil
}

// deliver enqueues an inbound message for the run loop; it is safe to
// call from the transport server's goroutines.
func (d *Driver) deliver(msg raft.Message) {
	select {
	case d.inbox <- msg:
	case <-d.stop:
	}
}

// Run starts the gRPC listener and blocks, driving Tick/Step until ctx
// is canceled.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.server.Start(d.cfg.ListenAddr); err != nil {
		return err
	}
	defer d.server.Stop()
	defer close(d.stop)
	defer d.closeClients()

	tick, err := time.ParseDuration(d.cfg.TickInterval)
	if err != nil {
		tick = 100 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.node.Tick()
			d.drain(ctx)
		case msg := <-d.inbox:
			d.node.Step(msg)
			d.drain(ctx)
		}
	}
}

// drain persists whatever the last Step/Tick call produced, applies
// newly committed entries, and sends the outbox, in the order the
// core's durability fence requires: persist before transmit.
func (d *Driver) drain(ctx context.Context) {
	if err := d.persist(); err != nil {
		d.log.Error("persist failed", zap.Error(err))
		return
	}

	d.applyCommitted()

	for _, msg := range d.node.Outbox() {
		d.send(ctx, msg)
	}

	d.metrics.Observe(d.node.Status())
}

func (d *Driver) persist() error {
	hs := raft.HardState{Term: d.node.Term(), Commit: d.node.Commit()}
	return d.store.SetHardState(hs)
}

func (d *Driver) applyCommitted() {
	commit := d.node.Commit()
	applied := d.node.Applied()
	if commit <= applied {
		return
	}

	entries, err := d.store.Entries(applied+1, commit+1, 0)
	if err != nil {
		d.log.Error("read committed entries failed", zap.Error(err))
		return
	}

	for _, e := range entries {
		if e.Kind == raft.EntryNormal {
			if err := d.kv.Apply(e.Data); err != nil {
				d.log.Error("apply committed entry failed", zap.Uint64("index", e.Index), zap.Error(err))
			}
		}
	}
}

func (d *Driver) send(ctx context.Context, msg raft.Message) {
	client, err := d.clientFor(msg.To)
	if err != nil {
		d.log.Warn("no client for peer", zap.Uint64("to", msg.To), zap.Error(err))
		return
	}
	if err := client.Send(ctx, msg); err != nil {
		d.log.Warn("send failed", zap.Uint64("to", msg.To), zap.String("type", msg.Type.String()), zap.Error(err))
	}
}

func (d *Driver) clientFor(id uint64) (*transport.PeerClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.clients[id]; ok {
		return c, nil
	}

	addr := d.cfg.Addr(id)
	c, err := transport.Dial(addr, peerDialTimeout)
	if err != nil {
		return nil, err
	}
	d.clients[id] = c
	return c, nil
}

func (d *Driver) closeClients() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.clients {
		c.Close()
	}
}
