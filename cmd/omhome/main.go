package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/joshp123/omhome/internal/api"
	"github.com/joshp123/omhome/internal/blob"
	"github.com/joshp123/omhome/internal/config"
	"github.com/joshp123/omhome/internal/coordinator"
	"github.com/joshp123/omhome/internal/core"
	"github.com/joshp123/omhome/internal/diagnostics"
	"github.com/joshp123/omhome/internal/entity"
	"github.com/joshp123/omhome/internal/logging"
	"github.com/joshp123/omhome/internal/mqtt"
	"github.com/joshp123/omhome/internal/oauth"
	"github.com/joshp123/omhome/internal/rate"
	"github.com/joshp123/omhome/internal/resource"
	"github.com/joshp123/omhome/internal/server"
	"github.com/joshp123/omhome/plugins/openmotics"
)

var version = "dev"

const (
	healthSyncInterval = 10 * time.Second
	shutdownTimeout    = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "omhome: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(envOrDefault("OMHOME_CONFIG", config.DefaultPath))
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log := logging.Component(logger, "main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := openmotics.NewGateway(cfg, logging.Component(logger, "gateway"))
	if err != nil {
		return err
	}
	if cloud, ok := gw.(*openmotics.CloudClient); ok {
		cloud.Start(ctx)
	}

	coord := coordinator.New(gw, coordinator.Options{
		Name:     openmotics.Provider,
		Interval: cfg.Core.ScanInterval,
		Logger:   logging.Component(logger, "coordinator"),
	})
	inst, err := openmotics.Setup(ctx, gw, coord, openmotics.SetupBackOff(), log)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	installKey := openmotics.InstallKey(gw, inst)
	log.WithFields(logrus.Fields{
		"mode":        gw.Mode(),
		"install_key": installKey,
	}).Info("gateway ready")

	plugin := openmotics.NewPlugin(gw, coord, installKey)
	plugins := []core.Plugin{plugin}
	if err := core.Validate(plugins); err != nil {
		return fmt.Errorf("plugins: %w", err)
	}
	if dir := cfg.Core.DashboardsDir; dir != "" {
		n, err := core.ExportDashboards(dir, plugins)
		if err != nil {
			return fmt.Errorf("export dashboards: %w", err)
		}
		log.WithFields(logrus.Fields{"dir": dir, "count": n}).Info("dashboards exported")
	}
	registry := core.NewRegistry(plugins)
	go registry.Run(ctx, healthSyncInterval)

	entities := entity.NewService(gw, coord, installKey, logging.Component(logger, "entity"))

	writer, scheduler, err := setupDiagnostics(cfg, inst, coord, logger)
	if err != nil {
		return err
	}
	if scheduler != nil {
		go scheduler.Run(ctx)
	}

	metricsRegistry, err := core.MetricsRegistry(plugins,
		coordinator.MetricsCollectors(),
		oauth.MetricsCollectors(),
		rate.MetricsCollectors(),
	)
	if err != nil {
		return err
	}
	metricsRegistry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "omhome_build_info",
		Help:        "Build information",
		ConstLabels: prometheus.Labels{"version": version},
	}, func() float64 { return 1 }))

	deps := api.Deps{
		Entities:    entities,
		Coordinator: coord,
		Diagnostics: writer,
		Health:      registry,
		Metrics:     server.MetricsHandler(metricsRegistry, logging.Component(logger, "metrics")),
		Dashboards:  server.DashboardsHandler(core.Dashboards(plugins)),
		Log:         logging.Component(logger, "api"),
		Version:     version,
	}
	apiServer, err := api.New(deps)
	if err != nil {
		return err
	}
	go apiServer.Hub().Run(ctx)
	defer coord.Subscribe(func(*resource.Snapshot) { apiServer.PublishStates() })()

	if cfg.MQTT.Enabled {
		closeMQTT, err := startMQTT(cfg.MQTT, coord, entities, logger)
		if err != nil {
			return err
		}
		defer closeMQTT()
	}

	grpcServer, err := server.NewGRPCServer(cfg.Core.GRPCAddr, registry)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	httpServer := server.NewHTTPServer(cfg.Core.HTTPAddr, apiServer.Handler())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.Core.HTTPAddr).Info("http listening")
		return httpServer.ListenAndServe()
	})
	g.Go(func() error {
		log.WithField("addr", grpcServer.Addr()).Info("grpc listening")
		return grpcServer.Serve()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcServer.Stop()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("stopped")
	return err
}

// setupDiagnostics builds the report writer and, when a store and schedule
// are configured, the scheduler that persists reports.
func setupDiagnostics(cfg *config.Config, inst resource.Installation, coord *coordinator.Coordinator, logger *logrus.Logger) (*diagnostics.Writer, *diagnostics.Scheduler, error) {
	var stores []blob.Store
	if cfg.Diagnostics.Dir != "" {
		store, err := blob.NewDirStore(cfg.Diagnostics.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("diagnostics dir: %w", err)
		}
		stores = append(stores, store)
	}
	if cfg.Diagnostics.Blob.Enabled() {
		store, err := blob.NewS3Store(cfg.Diagnostics.Blob)
		if err != nil {
			return nil, nil, fmt.Errorf("diagnostics blob: %w", err)
		}
		stores = append(stores, store)
	}

	log := logging.Component(logger, "diagnostics")
	writer := diagnostics.NewWriter(cfg, inst, coord, log, stores...)
	if len(stores) == 0 || cfg.Diagnostics.Schedule == "" {
		return writer, nil, nil
	}
	scheduler, err := diagnostics.NewScheduler(cfg.Diagnostics.Schedule, writer, log)
	if err != nil {
		return nil, nil, err
	}
	return writer, scheduler, nil
}

func startMQTT(cfg config.MQTTConfig, coord *coordinator.Coordinator, entities *entity.Service, logger *logrus.Logger) (func(), error) {
	log := logging.Component(logger, "mqtt")
	client, err := mqtt.Connect(cfg, log)
	if err != nil {
		return nil, err
	}
	bridge := mqtt.NewBridge(client, entities, cfg.TopicPrefix, log)
	if err := bridge.Start(); err != nil {
		client.Close()
		return nil, err
	}
	unsubscribe := coord.Subscribe(func(*resource.Snapshot) {
		if err := bridge.PublishStates(); err != nil {
			log.WithError(err).Warn("state publish failed")
		}
	})
	return func() {
		unsubscribe()
		bridge.Close()
		client.Close()
	}, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
