// File: facade/module.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package facade

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/control"
)

// Module wires a Node and its observability around a supplied
// control.Config. An api.Handler may be provided; without one sessions are
// served by a no-op handler.
func Module() fx.Option {
	return fx.Module("hioload",
		fx.Provide(
			NewLogger,
			NewConfigStore,
			newNodeFromParams,
			NewProbes,
			NewRegistry,
		),
		fx.Invoke(registerLifecycle),
	)
}

// NodeParams are the fx inputs of a Node.
type NodeParams struct {
	fx.In

	Config  control.Config
	Log     *logrus.Logger
	Handler api.Handler `optional:"true"`
}

func newNodeFromParams(p NodeParams) *Node {
	return NewNode(p.Config, p.Handler, p.Log)
}

// NewLogger builds the process logger at the configured level.
func NewLogger(cfg control.Config) (*logrus.Logger, error) {
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log, nil
}

// NewConfigStore seeds a store and applies log level changes on reload.
func NewConfigStore(cfg control.Config, log *logrus.Logger) *control.ConfigStore {
	cs := control.NewConfigStore(cfg, log)
	cs.OnReload(func(c control.Config) {
		lvl, err := c.Level()
		if err != nil {
			return
		}
		log.SetLevel(lvl)
	})
	return cs
}

// NewProbes registers runtime and session probes.
func NewProbes(n *Node) *control.DebugProbes {
	dp := control.NewDebugProbes()
	control.RegisterRuntimeProbes(dp)
	control.RegisterStatsProbes(dp, n)
	return dp
}

// NewRegistry builds a Prometheus registry exporting session statistics and
// the Go runtime.
func NewRegistry(n *Node) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		control.NewStatsCollector(n),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func registerLifecycle(lc fx.Lifecycle, n *Node) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return n.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return n.Stop(ctx)
		},
	})
}
