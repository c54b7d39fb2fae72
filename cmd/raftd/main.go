// Command raftd runs one raft node as a standalone process.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qkvraft/raftcore/internal/config"
	"github.com/qkvraft/raftcore/internal/driver"
)

func main() {
	var configPath string
	var nodeIDOverride uint64
	var listenOverride string

	root := &cobra.Command{
		Use:   "raftd",
		Short: "raftd runs one node of a raft cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, nodeIDOverride, listenOverride)
		},
	}

	flags := root.Flags()
	flags.StringVarP(&configPath, "config", "c", "raftd.yaml", "path to the cluster config file")
	flags.Uint64Var(&nodeIDOverride, "node-id", 0, "override the node id from the config file")
	flags.StringVar(&listenOverride, "listen", "", "override the listen address from the config file")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string, nodeIDOverride uint64, listenOverride string) error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if nodeIDOverride != 0 {
		cfg.NodeID = nodeIDOverride
	}
	if listenOverride != "" {
		cfg.ListenAddr = listenOverride
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	d, err := driver.New(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("raftd starting", zap.Uint64("node_id", cfg.NodeID), zap.String("listen", cfg.ListenAddr))
	return d.Run(ctx)
}
