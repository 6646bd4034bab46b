package faucetd

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"burnfaucet/config"
	"burnfaucet/observability/logging"
	telemetry "burnfaucet/observability/otel"
	"burnfaucet/storage"
)

// Main initialises and runs the faucet daemon.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.toml", "path to faucetd configuration")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(cfg.Environment)
	if fromEnv := strings.TrimSpace(os.Getenv("FAUCET_ENV")); fromEnv != "" {
		env = fromEnv
	}
	logger, logCloser, err := logging.SetupWithOptions("faucetd", env, logging.Options{
		Level:      logging.ParseLevel(cfg.Log.Level),
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetryConfig(cfg, env))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	faucetCfg, err := cfg.FaucetConfig()
	if err != nil {
		return err
	}
	var genesis *config.Genesis
	if path := strings.TrimSpace(cfg.GenesisFile); path != "" {
		if genesis, err = config.LoadGenesis(path); err != nil {
			return fmt.Errorf("load genesis: %w", err)
		}
	}

	store, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open data dir: %w", err)
	}
	defer store.Close()

	node, err := NewNode(store, faucetCfg, genesis, logger)
	if err != nil {
		return fmt.Errorf("start node: %w", err)
	}
	logger.Info("faucet ready",
		"program", faucetCfg.Programs.Faucet.String(),
		"treasury", node.Engine().Treasury().Address.String(),
		"height", node.View().Height())

	server := NewServer(node, logger, WithSubmitLimit(SubmitLimit{
		RequestsPerMinute: cfg.Limits.SubmitPerMinute,
		Burst:             cfg.Limits.SubmitBurst,
	}))
	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      otelhttp.NewHandler(server.Handler(), "faucetd"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("faucetd listening", "address", cfg.ListenAddress)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// telemetryConfig merges the [telemetry] section with the standard
// OTEL_EXPORTER_OTLP_* variables, which take precedence.
func telemetryConfig(cfg *config.Config, env string) telemetry.Config {
	out := telemetry.Config{
		ServiceName: "faucetd",
		Environment: env,
		Endpoint:    strings.TrimSpace(cfg.Telemetry.Endpoint),
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     map[string]string{},
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	}
	for k, v := range cfg.Telemetry.Headers {
		out.Headers[k] = v
	}
	out.ApplyEnv(os.LookupEnv)
	return out
}
