package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"signescrow/config"
	"signescrow/core"
	"signescrow/core/events"
	"signescrow/core/genesis"
	"signescrow/core/ledger"
	"signescrow/observability/logging"
	telemetry "signescrow/observability/otel"
	"signescrow/rpc"
	"signescrow/services/eventlog"
	"signescrow/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, closer := logging.Setup(logging.Options{
		Service:    "signescrowd",
		Env:        cfg.Environment,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("signescrowd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "signescrowd",
		Environment: cfg.Environment,
		Network:     cfg.NetworkName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.Sampling,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	db, err := storage.Open(cfg.Storage.Backend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	var (
		archive  *eventlog.Store
		emitters []events.Emitter
	)
	if cfg.EventLog.Driver != "" {
		archive, err = eventlog.Open(cfg.EventLog.Driver, cfg.EventLog.DSN, logger)
		if err != nil {
			db.Close()
			return fmt.Errorf("open event log: %w", err)
		}
		defer archive.Close()
		emitters = append(emitters, archive)
	}

	// An unusable genesis section only matters when the ledger is empty.
	spec, specErr := genesis.FromConfig(cfg.Genesis)
	node, err := core.New(ctx, db, core.Options{
		Network: cfg.NetworkName,
		Ledger: ledger.Config{
			MinPersistentTTL: cfg.Ledger.MinPersistentTTL,
			MinTemporaryTTL:  cfg.Ledger.MinTemporaryTTL,
			MaxEntryTTL:      cfg.Ledger.MaxEntryTTL,
		},
		Contracts:     genesis.DefaultContractConfig(),
		Genesis:       spec,
		CloseInterval: time.Duration(cfg.Ledger.CloseIntervalMs) * time.Millisecond,
		Logger:        logger,
		Emitters:      emitters,
	})
	if err != nil {
		db.Close()
		if specErr != nil {
			return fmt.Errorf("start node: %w (genesis: %v)", err, specErr)
		}
		return fmt.Errorf("start node: %w", err)
	}
	defer node.Close()

	info := node.Info()
	logger.Info("node ready",
		slog.String("network", info.Network),
		slog.Uint64("sequence", uint64(info.Sequence)),
		slog.String("escrow", info.Contracts.Escrow.String()),
		slog.String("oracle", info.Contracts.Oracle.String()),
	)

	rpcCfg := rpc.Config{
		Address:           cfg.RPC.Address,
		JWTIssuer:         cfg.RPC.JWTIssuer,
		RequireAuth:       cfg.RPC.RequireAuth,
		RateLimitPerSec:   cfg.RPC.RateLimitPerSec,
		RateLimitBurst:    cfg.RPC.RateLimitBurst,
		ReadHeaderTimeout: time.Duration(cfg.RPC.ReadHeaderTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.RPC.WriteTimeout) * time.Second,
		MaxBodyBytes:      cfg.RPC.MaxBodyBytes,
	}
	if env := strings.TrimSpace(cfg.RPC.JWTSecretEnv); env != "" {
		rpcCfg.JWTSecret = os.Getenv(env)
	}
	var store rpc.EventArchive
	if archive != nil {
		store = archive
	}
	server, err := rpc.NewServer(node, rpcCfg, store, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return node.Run(gctx) })
	g.Go(func() error { return server.Serve(gctx) })
	if archive != nil {
		g.Go(func() error { return archive.Run(gctx) })
	}
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
