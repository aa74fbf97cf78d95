// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/control"
	"github.com/momentics/hioload-net/facade"
)

const (
	startTimeout = 10 * time.Second
	stopTimeout  = 30 * time.Second
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var (
		node   *facade.Node
		reg    *prometheus.Registry
		probes *control.DebugProbes
		store  *control.ConfigStore
		log    *logrus.Logger
	)
	handler := &echoHandler{}
	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg),
		fx.Provide(func() api.Handler { return handler }),
		facade.Module(),
		fx.Populate(&node, &reg, &probes, &store, &log),
	)
	if err := app.Err(); err != nil {
		return oops.In("cmd").Wrapf(err, "build application")
	}
	handler.m = node.Manager()
	handler.log = log.WithField("component", "echo")

	if watchConfig && cfgFile != "" {
		if err := store.Watch(cfgFile); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return oops.In("cmd").Wrapf(err, "start")
	}
	log.WithField("metrics_addr", cfg.MetricsAddr).Info("hioload-net serving")

	g, gctx := errgroup.WithContext(ctx)

	var admin *http.Server
	if cfg.MetricsAddr != "" && cfg.MetricsAddr != "off" {
		admin = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           newAdminRouter(reg, probes, store),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return oops.In("cmd").Wrapf(err, "admin endpoint")
			}
			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-node.Done():
			log.Warn("session loop exited")
		}
		log.Info("shutting down")
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		var err error
		if admin != nil {
			err = admin.Shutdown(stopCtx)
		}
		return multierr.Combine(err, app.Stop(stopCtx))
	})

	return g.Wait()
}
