package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signescrow/crypto"
	"signescrow/observability/logging"
	"signescrow/sdk/client"
	"signescrow/services/signrelay"
)

func main() {
	configPath := flag.String("config", "services/signrelay/config.example.yaml", "path to relay configuration")
	flag.Parse()

	logger, closer := logging.Setup(logging.Options{
		Service: "signrelayd",
		Env:     os.Getenv("SIGNESCROW_ENV"),
		Level:   os.Getenv("SIGNRELAY_LOG_LEVEL"),
	})
	defer closer.Close()

	cfg, err := signrelay.LoadConfig(*configPath)
	if err != nil {
		logger.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("signrelayd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg signrelay.Config, logger *slog.Logger) error {
	key, err := crypto.PrivateKeyFromHex(cfg.SignerKey)
	if err != nil {
		return fmt.Errorf("parse signer key: %w", err)
	}
	var opts []client.Option
	if cfg.NodeToken != "" {
		opts = append(opts, client.WithBearerToken(cfg.NodeToken))
	}
	opts = append(opts, client.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}))
	c, err := client.New(cfg.NodeEndpoint, opts...)
	if err != nil {
		return err
	}
	store, err := signrelay.OpenStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	oracle := signrelay.NewNodeOracle(c, key)
	server, err := signrelay.NewServer(cfg, store, oracle, logger)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("signrelayd listening",
			slog.String("address", cfg.ListenAddress),
			slog.String("node", cfg.NodeEndpoint),
			slog.String("admin", oracle.Admin().String()),
		)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
