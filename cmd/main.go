package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/solidDoWant/infra-mk3/tooling/nlroute/pkg/cli"
	"github.com/solidDoWant/infra-mk3/tooling/nlroute/pkg/config"
	"github.com/solidDoWant/infra-mk3/tooling/nlroute/pkg/metrics"
	"github.com/solidDoWant/infra-mk3/tooling/nlroute/pkg/nlsock"
	"github.com/solidDoWant/infra-mk3/tooling/nlroute/pkg/rtnl"
)

func main() {
	code, err := run()
	if err != nil {
		slog.Error(err.Error())
		if code == 0 {
			code = 1
		}
	}

	os.Exit(code)
}

func run() (code int, err error) {
	cfg, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		cli.PrintHelp(os.Stdout)
		return 1, err
	}

	if cfg.Help || len(cfg.Args) == 0 {
		cli.PrintHelp(os.Stdout)
		return 0, nil
	}

	if err := cfg.Validate(); err != nil {
		return 1, fmt.Errorf("invalid configuration: %w", err)
	}

	slog.SetLogLoggerLevel(cfg.GetSlogLevel())

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return 1, fmt.Errorf("failed to create metrics: %w", err)
	}

	opts := []nlsock.Option{nlsock.WithReceiveTimeout(cfg.ReceiveTimeout)}
	if cfg.Namespace != "" {
		opts = append(opts, nlsock.WithNamespace(cfg.Namespace))
	}

	session, err := nlsock.Open(opts...)
	if err != nil {
		fmt.Println("nlroute init failed")
		return 1, fmt.Errorf("failed to open netlink session: %w", err)
	}

	client := rtnl.NewClient(session, m)
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close netlink session: %w", closeErr))
		}

		if cfg.MetricsFile != "" {
			err = errors.Join(err, metrics.WriteTextfile(cfg.MetricsFile, registry))
		}
	}()

	slog.Debug("Running command", "args", cfg.Args, "namespace", cfg.Namespace)
	return cli.New(client, os.Stdout).Execute(cfg.Args), nil
}
