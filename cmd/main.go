package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/tejusbharadwaj/pvforecast/internal/api"
	"github.com/tejusbharadwaj/pvforecast/internal/cache"
	"github.com/tejusbharadwaj/pvforecast/internal/config"
	"github.com/tejusbharadwaj/pvforecast/internal/database"
	"github.com/tejusbharadwaj/pvforecast/internal/events"
	server "github.com/tejusbharadwaj/pvforecast/internal/grpc"
	"github.com/tejusbharadwaj/pvforecast/internal/httpapi"
	"github.com/tejusbharadwaj/pvforecast/internal/metrics"
	"github.com/tejusbharadwaj/pvforecast/internal/model"
	"github.com/tejusbharadwaj/pvforecast/internal/scheduler"
)

// Command pvforecast predicts the energy production of a PV system from
// weather forecasts.
//
// The service:
//   - syncs hourly Meteomatics forecasts and Fronius inverter history into TimescaleDB
//   - runs the production model from the MLflow registry on a day's forecast
//   - serves predictions and energy aggregations over gRPC and HTTP
//   - publishes every prediction run to Kafka when brokers are configured
//   - exposes Prometheus metrics
//
// Usage:
//
//	pvforecast [flags]
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
//	-env string
//	      optional .env file loaded before the config (default ".env")
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional .env file loaded before the config")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Failed to load %s: %v", *envFile, err)
	}

	appConfig, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(appConfig.Logging)

	if err := run(appConfig, logger); err != nil {
		logger.Fatalf("Service error: %v", err)
	}
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func run(appConfig *config.Config, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Init(reg)

	loc, err := appConfig.Location()
	if err != nil {
		return err
	}

	repo, err := database.NewPostgresRepo(ctx, appConfig.Database.Driver, appConfig.Database.DSN(), appConfig.Database.PoolSize)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	defer repo.Close()
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	store, err := newStore(ctx, appConfig.Cache)
	if err != nil {
		return err
	}
	defer store.Close()

	weatherClient, err := api.NewWeatherClient(api.MeteomaticsConfig{
		BaseURL:  appConfig.Meteomatics.BaseURL,
		Username: appConfig.Meteomatics.Username,
		Password: appConfig.Meteomatics.Password,
		Timezone: appConfig.Meteomatics.Timezone,
		Timeout:  appConfig.Meteomatics.Timeout,
	}, store, logger, api.WithRateLimit(appConfig.Meteomatics.RateLimit, 1))
	if err != nil {
		return err
	}

	inverterClient, err := api.NewInverterClient(api.FroniusConfig{
		Address:      appConfig.Fronius.Address,
		MaxQueryDays: appConfig.Fronius.MaxQueryDays,
		Timeout:      appConfig.Fronius.Timeout,
	}, logger)
	if err != nil {
		return err
	}

	seriesFetcher := api.NewSeriesFetcher(api.FetcherConfig{
		Parameters:    appConfig.Meteomatics.Parameters,
		Locations:     appConfig.Meteomatics.Locations,
		Channels:      appConfig.Fronius.Channels,
		BootstrapDays: appConfig.Fronius.BootstrapDays,
	}, weatherClient, inverterClient, repo, logger)

	runner := model.NewRunner(
		model.NewRegistryLoader(appConfig.Model.RegistryURL, appConfig.Model.ServingURL, appConfig.Model.Timeout),
		model.RunnerConfig{
			ModelName:  appConfig.Model.Name,
			ModelAlias: appConfig.Model.Alias,
			PVID:       appConfig.PV.ID,
		},
		logger,
	)
	if err := runner.LoadModel(ctx); err != nil {
		// The runner retries on the first prediction.
		logger.WithError(err).Warn("Initial model load failed")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(appConfig.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(appConfig.Kafka.Brokers, appConfig.Kafka.Topic, logger)
		if err != nil {
			return err
		}
		publisher = kp
	}
	defer publisher.Close()

	svc := server.NewPVService(weatherClient, runner, repo, publisher, server.ServiceConfig{
		Parameters: appConfig.Meteomatics.Parameters,
		Locations:  appConfig.Meteomatics.Locations,
		Timezone:   loc,
	}, logger)

	srv, health, err := server.SetupServer(svc, server.ServerConfig{
		CacheSize:      appConfig.Server.CacheSize,
		RateLimit:      appConfig.Server.RateLimit,
		RateLimitBurst: appConfig.Server.RateLimitBurst,
	}, logger, reg)
	if err != nil {
		return fmt.Errorf("failed to setup server: %w", err)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", appConfig.Server.Host, appConfig.Server.HTTPPort),
		Handler:      httpapi.NewRouter(svc, health, reg, appConfig.Server.MetricsPath, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	jobs := scheduler.NewScheduler(seriesFetcher, runner, scheduler.Config{
		WeatherSpec:    appConfig.Scheduler.Weather,
		EnergySpec:     appConfig.Scheduler.Energy,
		ModelSpec:      appConfig.Scheduler.Model,
		EnergyLookback: appConfig.Scheduler.EnergyLookback,
		Timezone:       loc,
	}, logger)
	jobs.OnEnergySynced(svc.Invalidate)

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", appConfig.Server.Host, appConfig.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	errChan := make(chan error, 3)

	// Bootstrap historical data in a goroutine
	go func() {
		if err := seriesFetcher.BootstrapHistoricalData(ctx); err != nil {
			logger.WithError(err).Error("Bootstrap failed")
			return
		}
		svc.Invalidate()
	}()

	if err := jobs.Start(); err != nil {
		return fmt.Errorf("scheduler error: %w", err)
	}
	defer jobs.Stop()

	go func() {
		logger.WithField("port", appConfig.Server.GRPCPort).Info("Starting gRPC server")
		if err := srv.Serve(lis); err != nil {
			errChan <- fmt.Errorf("grpc server error: %w", err)
		}
	}()

	go func() {
		logger.WithField("port", appConfig.Server.HTTPPort).Info("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	return handleShutdown(ctx, errChan, srv, httpServer, health, logger)
}

func newStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, error) {
	if cfg.Backend == "redis" {
		store, err := cache.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return store, nil
	}
	store, err := cache.NewMemoryStore(cfg.Size, cfg.TTL)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// handleShutdown blocks until a signal or a server error, then stops both
// servers.
func handleShutdown(
	ctx context.Context,
	errChan <-chan error,
	srv *grpc.Server,
	httpServer *http.Server,
	health *server.HealthChecker,
	logger *logrus.Logger,
) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Context canceled, initiating shutdown")
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("Initiating shutdown")
	case runErr = <-errChan:
		logger.WithError(runErr).Error("Server failed, initiating shutdown")
	}

	health.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown failed")
	}

	logger.Info("Gracefully stopping server...")
	srv.GracefulStop()
	logger.Info("Server stopped")

	return runErr
}
