package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/nuka-commands/internal/api"
	"github.com/nidhogg/nuka-commands/internal/bus"
	"github.com/nidhogg/nuka-commands/internal/command"
	"github.com/nidhogg/nuka-commands/internal/config"
	"github.com/nidhogg/nuka-commands/internal/gateway"
	"github.com/nidhogg/nuka-commands/internal/logging"
	"github.com/nidhogg/nuka-commands/internal/manifest"
	msgrouter "github.com/nidhogg/nuka-commands/internal/router"
	pgstore "github.com/nidhogg/nuka-commands/internal/store"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/nuka.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Server)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Nuka command server...", zap.String("config", cfgPath))

	// Command engine
	registry := command.NewRegistry(logger.Named("registry"))
	hub := command.NewHub(logger)
	hub.AddListener(command.NewAuditListener(logger))
	dispatcher := command.NewDispatcher(registry, hub, command.Options{
		ProcessFlags:    cfg.Dispatcher.FlagsEnabled(),
		MaxConcurrent:   cfg.Dispatcher.MaxConcurrent,
		ShutdownTimeout: cfg.Dispatcher.ShutdownTimeout.Duration,
	}, logger.Named("dispatcher"))

	// PostgreSQL run history
	var pgStore *pgstore.Store
	var recorder *pgstore.Recorder
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without run history", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(context.Background(), "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			pgStore = ps
			recorder = pgstore.NewRecorder(ps, 0, logger)
			hub.AddListener(recorder)
		}
	}

	// Redis outcome stream
	var outcomes *bus.OutcomeBus
	if cfg.Database.Redis.URL != "" {
		b, busErr := bus.New(cfg.Database.Redis.URL, cfg.Database.Redis.Stream, logger)
		if busErr != nil {
			logger.Warn("Redis unavailable, running without outcome stream", zap.Error(busErr))
		} else {
			outcomes = b
			hub.AddListener(b.Listener())
			logger.Info("Publishing outcomes", zap.String("stream", b.Stream()))
		}
	}

	// Initialize gateway
	gw := gateway.NewGateway(logger)
	msgRouter := msgrouter.New(dispatcher, gw, cfg.Commands.Prefix, logger)
	gw.SetHandler(msgRouter.Handle)

	restAdapter := gateway.NewRESTAdapter(logger)
	gw.Register(restAdapter)

	if cfg.Gateway.Slack.Enabled {
		gw.Register(gateway.NewSlackAdapter(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken, logger))
	}
	if cfg.Gateway.Discord.Enabled {
		gw.Register(gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, logger))
	}

	broadcaster := gateway.NewBroadcaster(gw, logger)

	// Commands
	builtins := command.Builtins{
		Prefix:      cfg.Commands.Prefix,
		Status:      gatewayStatus{gw},
		Broadcaster: broadcaster,
	}
	if pgStore != nil {
		builtins.Runs = pgStore.RunLister()
	}
	if _, err := command.RegisterBuiltins(registry, builtins); err != nil {
		logger.Fatal("failed to register builtin commands", zap.Error(err))
	}
	if cfg.Commands.ManifestDir != "" {
		if _, err := manifest.Install(registry, cfg.Commands.ManifestDir, logger); err != nil {
			logger.Warn("some command manifests failed to load", zap.Error(err))
		}
	}
	logger.Info("Commands registered", zap.Int("count", registry.Len()))

	if err := gw.ConnectAll(context.Background()); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}

	// Build HTTP handler
	deps := api.Deps{
		Dispatcher:  dispatcher,
		Broadcaster: broadcaster,
		RESTGateway: restAdapter,
		Gateway:     gw,
		Prefix:      cfg.Commands.Prefix,
	}
	if pgStore != nil {
		deps.Runs = pgStore
	}
	handler := api.NewHandler(deps, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Nuka commands listening", zap.String("port", port))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Nuka command server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Dispatcher.ShutdownTimeout.Duration+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := gw.Close(); err != nil {
		logger.Warn("gateway close", zap.Error(err))
	}
	if err := dispatcher.Shutdown(ctx); err != nil {
		logger.Warn("dispatcher shutdown", zap.Error(err))
	}
	if recorder != nil {
		if err := recorder.Close(ctx); err != nil {
			logger.Warn("run recorder close", zap.Error(err))
		}
	}
	if outcomes != nil {
		if err := outcomes.Close(ctx); err != nil {
			logger.Warn("outcome stream close", zap.Error(err))
		}
	}
	if pgStore != nil {
		pgStore.Close()
	}
}

// gatewayStatus feeds adapter health to the status command.
type gatewayStatus struct {
	gw *gateway.Gateway
}

func (s gatewayStatus) StatusAll() []command.AdapterStatus {
	statuses := s.gw.StatusAll()
	out := make([]command.AdapterStatus, len(statuses))
	for i, st := range statuses {
		out[i] = command.AdapterStatus{Name: st.Platform, Platform: st.Platform, Connected: st.Connected}
	}
	return out
}
