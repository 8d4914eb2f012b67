package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kendall-kelly/fabmarket-api/analysis"
	"github.com/kendall-kelly/fabmarket-api/config"
	"github.com/kendall-kelly/fabmarket-api/controllers"
	"github.com/kendall-kelly/fabmarket-api/geometry"
	"github.com/kendall-kelly/fabmarket-api/jobs"
	"github.com/kendall-kelly/fabmarket-api/logger"
	"github.com/kendall-kelly/fabmarket-api/middleware"
	"github.com/kendall-kelly/fabmarket-api/models"
	"github.com/kendall-kelly/fabmarket-api/observability"
	"github.com/kendall-kelly/fabmarket-api/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLog, err := logger.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLog.Sync()
	appLog.Info("Starting FabMarket API server...", "env", cfg.GoEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.InitOTel(ctx, appLog, observability.OtelConfig{
		Enabled:     cfg.OtelEnabled,
		ServiceName: cfg.OtelServiceName,
		Environment: cfg.GoEnv,
	})

	if err := config.ConnectDatabase(); err != nil {
		appLog.SugaredLogger.Fatalf("Failed to connect to database: %v", err)
	}
	db := config.GetDB()
	if err := db.AutoMigrate(models.All()...); err != nil {
		appLog.SugaredLogger.Fatalf("Failed to migrate database: %v", err)
	}
	appLog.Info("Database migration completed successfully")

	storage, err := services.InitS3Service(ctx, cfg)
	if err != nil {
		appLog.SugaredLogger.Fatalf("Failed to initialize S3 service: %v", err)
	}
	services.InitDesignFileService(storage)

	events := newEventBus(ctx, cfg, appLog)
	services.SetEventBus(events)
	defer events.Close()

	queueOpts := []jobs.QueueOption{
		jobs.WithMaxRetries(cfg.AnalysisMaxRetries),
		jobs.WithStaleRunning(cfg.AnalysisStaleRunning),
	}
	controllers.SetLogger(appLog)
	controllers.SetPaymentGateway(services.NewSimulatedGateway(cfg.PaymentSuccessToken))
	controllers.SetQueueOptions(queueOpts...)

	pool, err := newAnalysisPool(cfg, appLog, storage, events, queueOpts)
	if err != nil {
		appLog.SugaredLogger.Fatalf("Failed to set up analysis workers: %v", err)
	}
	pool.Start(ctx)

	router := controllers.NewRouter(cfg, middleware.EnsureValidToken(cfg, appLog))
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Info("Server is running", "addr", "http://localhost:"+cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("Server stopped unexpectedly", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	appLog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("HTTP server shutdown failed", "error", err)
	}
	if err := pool.Wait(); err != nil {
		appLog.Warn("Analysis workers stopped with error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		appLog.Warn("Tracer shutdown failed", "error", err)
	}
}

// newEventBus publishes to redis when REDIS_ADDR is set and drops events otherwise
func newEventBus(ctx context.Context, cfg *config.Config, appLog *logger.Logger) services.EventBus {
	if cfg.RedisAddr == "" {
		appLog.Info("REDIS_ADDR not set, domain events are not published")
		return services.NoopEventBus{}
	}
	bus, err := services.NewRedisEventBus(ctx, cfg.RedisAddr, cfg.RedisChannel)
	if err != nil {
		appLog.Warn("Redis unavailable, domain events are not published", "error", err)
		return services.NoopEventBus{}
	}
	appLog.Info("Publishing domain events to redis", "addr", cfg.RedisAddr, "channel", cfg.RedisChannel)
	return bus
}

// newAnalysisPool wires the geometry worker into a job pool over the analysis queue
func newAnalysisPool(cfg *config.Config, appLog *logger.Logger, storage services.ObjectStorage, events services.EventBus, queueOpts []jobs.QueueOption) (*jobs.Pool, error) {
	var extractorOpts []geometry.Option
	for _, ext := range cfg.AnalysisDisabledFormats {
		if f := geometry.FormatFromExtension(ext); f != geometry.FormatUnknown {
			extractorOpts = append(extractorOpts, geometry.WithoutFormat(f))
		}
	}

	worker := analysis.NewWorker(config.GetDB(), storage, geometry.NewExtractor(extractorOpts...), appLog,
		analysis.WithRetryDelay(cfg.AnalysisRetryDelay),
		analysis.WithEventBus(events),
	)
	registry := jobs.NewRegistry()
	if err := registry.Register(worker); err != nil {
		return nil, err
	}

	queue := jobs.NewQueue(config.GetDB(), queueOpts...)
	return jobs.NewPool(queue, registry, appLog, jobs.PoolConfig{
		Workers:      cfg.AnalysisWorkers,
		PollInterval: cfg.AnalysisPollInterval,
		RetryDelay:   cfg.AnalysisRetryDelay,
	}), nil
}
