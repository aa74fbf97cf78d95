// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// hioload-net runs listeners and connectors described by a YAML config and
// echoes every frame back to its sender.

package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-net/control"
)

var (
	cfgFile     string
	logLevel    string
	metricsAddr string
	watchConfig bool

	rootCmd = &cobra.Command{
		Use:           "hioload-net",
		Short:         "Event-driven TCP session server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Open the configured endpoints and echo frames until interrupted",
		RunE:  runServe,
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE:  runConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "override metrics_addr; \"off\" disables the admin endpoint")
	serveCmd.Flags().BoolVar(&watchConfig, "watch", false, "reload the log level when the config file changes")
	rootCmd.AddCommand(serveCmd, configCmd)
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (control.Config, error) {
	cfg, err := control.LoadConfig(cfgFile)
	if err != nil {
		return control.Config{}, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return control.Config{}, err
	}
	return cfg, nil
}

func runConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("hioload-net failed")
		os.Exit(1)
	}
}
