package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"paylinkchain/config"
	"paylinkchain/core"
	"paylinkchain/core/events"
	"paylinkchain/crypto"
	"paylinkchain/observability/logging"
	telemetry "paylinkchain/observability/otel"
	"paylinkchain/rpc"
	"paylinkchain/rpc/middleware"
	"paylinkchain/storage"
	"paylinkchain/storage/eventlog"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file (.toml, .yaml or .yml)")
	allowMigrateFlag := flag.Bool("allow-migrate", false, "Allow starting with a mismatched state schema (manual migrations only)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *allowMigrateFlag {
		cfg.AllowStateMigrate = true
	}

	env := strings.TrimSpace(os.Getenv("PAYLINK_ENV"))
	if env == "" {
		env = cfg.Environment
	}
	logger := logging.SetupWithOptions("paylinkd", env, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, env, logger); err != nil {
		logger.Error("paylinkd exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("paylinkd stopped")
}

func run(ctx context.Context, cfg *config.Config, env string, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetryConfig(cfg, env))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.NewLevelDB(cfg.StatePath())
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	stream := events.NewBroadcaster(cfg.RPC.EventBuffer)
	emitters := events.Fanout{stream}
	var history rpc.EventHistory
	if cfg.EventLog.Enabled {
		store, err := eventlog.Open(cfg.EventLog.Path)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer store.Close()
		store.SetLogger(logger.With(slog.String("component", "eventlog")))
		emitters = append(emitters, store)
		history = store
	}

	node, err := core.NewNode(db, core.Options{
		ChainID:       cfg.ChainID,
		MaxSaltLength: cfg.MaxSaltLength,
		Logger:        logger,
		Emitter:       emitters,
		AllowMigrate:  cfg.AllowStateMigrate,
	})
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}

	genesis, err := buildGenesis(cfg.Genesis)
	if err != nil {
		return err
	}
	if _, err := node.ApplyGenesis(genesis); err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}

	server := rpc.NewServer(node, history, stream, rpcConfig(cfg, logger, os.LookupEnv))
	listener, err := net.Listen("tcp", cfg.RPC.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.RPC.Address, err)
	}
	logger.Info("paylinkd started",
		slog.Uint64("chain_id", cfg.ChainID),
		slog.String("network", cfg.NetworkName),
		slog.String("custody", node.Custody().String()),
		slog.Bool("eventlog", cfg.EventLog.Enabled))
	return server.Serve(ctx, listener)
}

func telemetryConfig(cfg *config.Config, env string) telemetry.Config {
	return telemetry.Config{
		ServiceName: "paylinkd",
		Environment: env,
		ChainID:     cfg.ChainID,
		Network:     cfg.NetworkName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	}
}

func rpcConfig(cfg *config.Config, logger *slog.Logger, lookup func(string) (string, bool)) rpc.Config {
	var secret string
	if envName := strings.TrimSpace(cfg.RPC.OperatorJWTSecretEnv); envName != "" {
		secret, _ = lookup(envName)
	}
	if strings.TrimSpace(secret) == "" {
		logger.Info("operator endpoints disabled", slog.String("env", cfg.RPC.OperatorJWTSecretEnv))
	}
	return rpc.Config{
		RateLimit: middleware.RateLimit{
			RatePerSecond: cfg.RPC.RateLimitPerSecond,
			Burst:         cfg.RPC.RateLimitBurst,
		},
		Operator: middleware.AuthConfig{
			HMACSecret: secret,
			Issuer:     cfg.RPC.OperatorJWTIssuer,
		},
		ReadTimeout:  time.Duration(cfg.RPC.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.RPC.WriteTimeoutSecs) * time.Second,
		WSOrigins:    cfg.RPC.WSOrigins,
		MaxStreams:   cfg.RPC.MaxStreams,
		Logger:       logger,
	}
}

func buildGenesis(g config.Genesis) (core.Genesis, error) {
	var out core.Genesis
	if admin := strings.TrimSpace(g.Admin); admin != "" {
		addr, err := crypto.DecodeAddress(admin)
		if err != nil {
			return out, fmt.Errorf("genesis admin: %w", err)
		}
		out.Admin = addr
	}
	for i, alloc := range g.Allocations {
		token, to, amount, err := alloc.Parse()
		if err != nil {
			return out, fmt.Errorf("genesis allocation %d: %w", i, err)
		}
		out.Allocations = append(out.Allocations, core.Allocation{Token: token, To: to, Amount: amount})
	}
	return out, nil
}
