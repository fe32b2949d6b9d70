package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"metricsd/internal/cache"
	"metricsd/internal/collector/local"
	"metricsd/internal/collector/remote"
	"metricsd/internal/command"
	"metricsd/internal/config"
	"metricsd/internal/logger"
	"metricsd/internal/system"
	transporthttp "metricsd/internal/transport/http"
	"metricsd/internal/workers"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		stop()
		log.Fatalf("FATAL: %v", err)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	appLog := logger.New(cfg)
	appLog.Info("metricsd: starting...", "address", cfg.Address())
	appLog.Info("local collection enabled", "cpu_sensor", cfg.CPUSensor, "gpu_pool_mib", cfg.GPUPoolMiB)

	runner := command.NewExecRunner(cfg.CommandTimeout)
	localCollector := local.NewCollector(
		system.NewReader(appLog),
		system.NewNvidiaSMI(runner),
		local.Options{
			CPUSampleWindow: cfg.CPUSampleWindow,
			CPUSensor:       cfg.CPUSensor,
			GPUPoolMiB:      cfg.GPUPoolMiB,
		},
		appLog,
	)

	var remoteCollector workers.RemoteCollector
	if cfg.RemoteEnabled() {
		remoteCollector = remote.NewCollector(newTransport(cfg), cfg.RemoteTimeout)
		appLog.Info("remote collection enabled", "host", cfg.RemoteHost, "transport", cfg.RemoteTransport)
	} else {
		appLog.Info("remote collection not configured, linux panel will show placeholders")
	}

	store := cache.NewStore()
	poller := workers.NewPoller(localCollector, remoteCollector, cfg.RemoteHost, store, appLog)
	scheduler := workers.NewScheduler(appLog)

	// The listener opens only after the cache holds a snapshot.
	if err := scheduler.Prime(ctx, cfg.PollInterval, poller); err != nil {
		appLog.Info("metricsd: stopped before first refresh")
		return nil
	}

	server := transporthttp.NewServer(cfg.Address(), store, appLog)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Every(gCtx, cfg.PollInterval, poller)
	})

	g.Go(func() error {
		return server.Start(gCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLog.Error("metricsd failed unexpectedly", "error", err)
		return err
	}

	appLog.Info("metricsd stopped gracefully.")
	return nil
}

func newTransport(cfg *config.Config) remote.Transport {
	if cfg.RemoteTransport == config.TransportNative {
		return &remote.NativeTransport{
			KeyFile:        cfg.SSHKeyFile,
			KnownHostsFile: cfg.SSHKnownHosts,
			ConnectTimeout: cfg.RemoteConnectTimeout,
		}
	}

	return remote.NewExecTransport(command.NewExecRunner(0), cfg.RemoteConnectTimeout)
}
