package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/yndnr/onvifmesh-go/internal/core/service"
	"github.com/yndnr/onvifmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/onvifmesh-go/internal/infra/confloader"
	"github.com/yndnr/onvifmesh-go/internal/infra/shutdown"
	"github.com/yndnr/onvifmesh-go/internal/infra/tlsroots"
	"github.com/yndnr/onvifmesh-go/internal/onvif/simulator"
	"github.com/yndnr/onvifmesh-go/internal/player"
	"github.com/yndnr/onvifmesh-go/internal/presenter"
	"github.com/yndnr/onvifmesh-go/internal/server/config"
	"github.com/yndnr/onvifmesh-go/internal/server/httpserver"
	"github.com/yndnr/onvifmesh-go/internal/server/localserver"
	"github.com/yndnr/onvifmesh-go/internal/storage"
	"github.com/yndnr/onvifmesh-go/internal/telemetry/logger"
	"github.com/yndnr/onvifmesh-go/internal/telemetry/metric"
	"github.com/yndnr/onvifmesh-go/pkg/token"
	"github.com/yndnr/onvifmesh-go/pkg/workqueue"
)

// presenterBuffer is the capacity of the presenter update queue.
const presenterBuffer = 1024

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		genToken    = flag.Bool("gen-token", false, "Generate an admin token and its hash")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("onvifmesh-server %s\n", buildinfo.String())
		return nil
	}
	if *genToken {
		tok, err := token.Generate()
		if err != nil {
			return err
		}
		fmt.Printf("token: %s\nhash:  %s\n", tok, token.Hash(tok))
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(config.ToLoggerConfig(cfg))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	slogLogger := log.Slog()

	info := buildinfo.Get()
	log.Info("starting onvifmesh-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownHandler := shutdown.NewHandler(cfg.Pool.ShutdownTimeout+config.DefaultShutdownTimeout,
		shutdown.WithLogger(slogLogger))

	metrics := metric.NewRegistry()

	inventory, err := initStorage(ctx, cfg, metrics, slogLogger, shutdownHandler)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	pres := presenter.New(presenterBuffer, slogLogger)
	go pres.Run(ctx)
	shutdownHandler.OnShutdown("presenter", func(context.Context) error {
		pres.Stop()
		return nil
	})

	fleet, err := initFleet(cfg, pres, inventory, metrics, slogLogger)
	if err != nil {
		return fmt.Errorf("init fleet: %w", err)
	}
	metrics.Registerer().MustRegister(metric.NewCollector(fleet))
	shutdownHandler.OnShutdown("fleet", fleet.Shutdown)

	if err := startHTTP(cfg, fleet, log, metrics, shutdownHandler); err != nil {
		return fmt.Errorf("init http: %w", err)
	}

	if *configFile != "" {
		if err := watchConfig(*configFile, slogLogger, shutdownHandler); err != nil {
			log.Warn("configuration watcher disabled", "error", err)
		}
	}

	if cfg.Discovery.ScanOnStart {
		if err := fleet.Scan(ctx); err != nil {
			log.Warn("initial scan not started", "error", err)
		}
	}

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from defaults, file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	loader := confloader.NewLoader(opts...)

	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initStorage opens the device inventory when storage is enabled. It
// returns nil when the fleet runs without one.
func initStorage(ctx context.Context, cfg *config.ServerConfig, metrics *metric.Registry,
	log *slog.Logger, sh *shutdown.Handler) (service.Inventory, error) {
	if !cfg.Storage.Enabled {
		log.Info("inventory disabled; manually added devices are not remembered")
		return nil, nil
	}

	kv, err := storage.NewBadgerEngine(config.ToKVConfig(cfg), log)
	if err != nil {
		return nil, err
	}
	kv.RegisterMetrics(metrics.Registerer())
	sh.OnShutdown("storage", func(context.Context) error {
		return kv.Close()
	})

	inv, err := storage.OpenInventory(ctx, kv, config.ToInventoryOptions(cfg))
	if err != nil {
		return nil, errors.Join(err, kv.Close())
	}
	log.Info("inventory opened",
		"data_dir", cfg.Storage.DataDir,
		"in_memory", cfg.Storage.InMemory,
		"credentials", inv.CanStoreCredentials())
	return inv, nil
}

// initFleet builds the worker pool, the protocol backend and the fleet
// service.
func initFleet(cfg *config.ServerConfig, pres *presenter.Presenter, inventory service.Inventory,
	metrics *metric.Registry, log *slog.Logger) (*service.FleetService, error) {
	pool := workqueue.NewPool(config.ToPoolConfig(cfg), workqueue.WithLogger(log))
	if err := pool.Start(); err != nil {
		return nil, err
	}

	// Verify only admits the simulator backend.
	network := simulator.NewNetwork(config.SimulatorDevices(cfg)...)
	log.Info("protocol backend ready",
		"backend", cfg.ONVIF.Backend,
		"devices", len(cfg.Simulator.Devices))

	fleet := service.NewFleetService(config.ToFleetConfig(cfg), service.Deps{
		Pool:       pool,
		Presenter:  pres,
		Factory:    network.Factory(),
		Discoverer: network,
		Player:     player.NewVirtual(metrics.ObservePlayer),
		Resolver:   config.Resolver(cfg),
		Inventory:  inventory,
		Metrics:    metrics,
		Logger:     log,
	})
	return fleet, nil
}

// startHTTP starts the admin API on TCP and, when configured, on the local
// socket. A listener error ends the process through the shutdown handler.
func startHTTP(cfg *config.ServerConfig, fleet *service.FleetService, log logger.Logger,
	metrics *metric.Registry, sh *shutdown.Handler) error {
	httpCfg := cfg.Server.HTTP

	routerCfg := httpserver.RouterConfig{
		Fleet:            fleet,
		Logger:           log,
		Metrics:          metrics.Handler(),
		Observer:         metrics,
		RateLimit:        httpCfg.RateLimit,
		RateBurst:        httpCfg.RateBurst,
		AdminTokenHashes: httpCfg.AdminTokenHashes,
	}
	router := httpserver.NewRouter(routerCfg)

	var tlsConfig *tls.Config
	if httpCfg.TLSCertFile != "" && httpCfg.TLSKeyFile != "" {
		reloader, err := tlsroots.NewReloader(httpCfg.TLSCertFile, httpCfg.TLSKeyFile,
			tlsroots.WithLogger(log.Slog()))
		if err != nil {
			return err
		}
		reloader.RunAsync()
		sh.OnShutdown("tls", func(context.Context) error {
			reloader.Stop()
			return nil
		})
		tlsConfig = reloader.ServerConfig()
	}

	srv := httpserver.New(httpCfg.Addr, router, tlsConfig, log.Slog())
	sh.OnShutdown("http", srv.Shutdown)

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Error("HTTP server error", "error", err)
			sh.Trigger()
		}
	}()

	if path := cfg.Server.Local.SocketPath; path != "" {
		// The socket is only reachable by its owner and needs no token.
		routerCfg.AdminTokenHashes = nil
		local := localserver.New(path, httpserver.NewRouter(routerCfg), log.Slog())
		if err := local.Listen(); err != nil {
			return fmt.Errorf("local socket: %w", err)
		}
		sh.OnShutdown("local", local.Shutdown)
		go func() {
			if err := local.Serve(); err != nil {
				log.Error("local socket error", "error", err)
				sh.Trigger()
			}
		}()
	}
	return nil
}

// watchConfig applies log level changes from the configuration file
// without a restart.
func watchConfig(path string, log *slog.Logger, sh *shutdown.Handler) error {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return err
	}
	w.OnReload(path, func(l *confloader.Loader) {
		level := l.GetString("log.level")
		if level == "" || level == logger.GetLevel() {
			return
		}
		logger.SetLevel(level)
		log.Info("log level changed", "level", level)
	})
	w.StartAsync()
	sh.OnShutdown("config-watcher", func(context.Context) error {
		return w.Stop()
	})
	return nil
}
