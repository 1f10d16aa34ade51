package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marketplace/backend/internal/application/fulfillment"
	syncapp "github.com/marketplace/backend/internal/application/integration"
	"github.com/marketplace/backend/internal/application/webhook"
	"github.com/marketplace/backend/internal/domain/integration"
	"github.com/marketplace/backend/internal/infrastructure/cache"
	"github.com/marketplace/backend/internal/infrastructure/config"
	"github.com/marketplace/backend/internal/infrastructure/logger"
	"github.com/marketplace/backend/internal/infrastructure/persistence"
	"github.com/marketplace/backend/internal/infrastructure/remote"
	"github.com/marketplace/backend/internal/infrastructure/scheduler"
	"github.com/marketplace/backend/internal/infrastructure/secret"
	"github.com/marketplace/backend/internal/infrastructure/telemetry"
	"github.com/marketplace/backend/internal/interfaces/http/handler"
	"github.com/marketplace/backend/internal/interfaces/http/middleware"
	"github.com/marketplace/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.FromSettings(cfg.App.Env, cfg.Log))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting marketplace backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.ExportLogs,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	log = telemetry.BridgeLogger(log, logProvider, cfg.Telemetry.ServiceName, log.Level())

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.Profiling,
		ServerAddress:   cfg.Telemetry.ProfilingServer,
		ApplicationName: cfg.Telemetry.ServiceName,
		ProfileTypes:    cfg.Telemetry.ProfileTypes,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	if sqlDB, err := db.DB.DB(); err != nil {
		log.Warn("Database metrics disabled", zap.Error(err))
	} else if dbMetrics, err := telemetry.NewDBMetrics(meter, sqlDB, log); err != nil {
		log.Warn("Database metrics disabled", zap.Error(err))
	} else if err := db.DB.Use(dbMetrics); err != nil {
		log.Warn("Failed to register database metrics plugin", zap.Error(err))
	}

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         tracerProvider.IsEnabled() && cfg.Telemetry.DBTracing,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThreshold,
	}, log)
	if err := dbTracing.Register(db.DB); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}

	syncMetrics, err := telemetry.NewSyncMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	cipher, err := secret.NewCipher(cfg.Secret.EncryptionKey)
	if err != nil {
		log.Fatal("Failed to initialize credential cipher", zap.Error(err))
	}

	// Repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	credentialRepo := persistence.NewGormTenantCredentialRepository(db.DB)
	notificationRepo := persistence.NewGormNotificationRepository(db.DB)
	preferenceRepo := persistence.NewGormPreferenceRepository(db.DB)

	resolver := syncapp.NewCredentialResolver(syncapp.CredentialResolverConfig{
		Repository: credentialRepo,
		Decrypter:  cipher,
		Default: integration.Credentials{
			TenantDomain: cfg.Remote.DefaultShopDomain,
			AccessToken:  cfg.Remote.DefaultAccessToken,
			APISecret:    cfg.Remote.DefaultAPISecret,
		},
		Logger: log.Named("credentials"),
	})

	credentialAdmin := syncapp.NewCredentialAdminService(credentialRepo, cipher, log.Named("credentials"))

	var credentials syncapp.CredentialLookup = resolver
	if cfg.Secret.CredentialCacheTTL > 0 {
		credentialCache := cache.NewCredentialCache(
			cache.WithCredentialTTL(cfg.Secret.CredentialCacheTTL),
			cache.WithCacheLogger(log),
		)
		defer credentialCache.Close()

		invalidator, err := cache.NewRedisCredentialInvalidator(ctx, cfg.Redis, credentialCache,
			cache.WithInvalidatorLogger(log))
		if err != nil {
			log.Warn("Redis unavailable, credential changes only flush this instance's cache", zap.Error(err))
			invalidator = cache.NewLocalCredentialInvalidator(credentialCache)
		}
		defer func() {
			_ = invalidator.Close()
		}()
		go func() {
			if err := invalidator.Subscribe(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Credential change subscription failed", zap.Error(err))
			}
		}()

		credentialAdmin.SetChangeNotifier(invalidator)
		credentials = syncapp.NewCachedCredentialSource(resolver, credentialCache)
	}

	gateways := remote.NewGatewayFactory(remote.ConfigFromSettings(cfg.Remote), credentials,
		remote.WithFactoryObserver(syncMetrics),
		remote.WithFactoryLogger(log.Named("storefront")),
	)

	inventory := syncapp.NewInventorySynchronizer(log.Named("inventory"))
	catalogSync := syncapp.NewCatalogSyncService(syncapp.CatalogSyncConfig{
		Products:           productRepo,
		Gateways:           gateways,
		Reconciler:         syncapp.NewVariantReconciler(),
		Inventory:          inventory,
		Logger:             log.Named("catalog_sync"),
		OptionPollAttempts: cfg.Remote.OptionPollAttempts,
		OptionPollInterval: cfg.Remote.OptionPollInterval,
		InitialQuantity:    cfg.Remote.InitialQuantity,
	})
	bulkSync := syncapp.NewBulkSyncService(syncapp.BulkSyncConfig{
		Sync:       catalogSync,
		Logger:     log.Named("bulk_sync"),
		BatchLimit: cfg.Remote.BulkBatchLimit,
	})
	lifecycle := fulfillment.NewService(fulfillment.Config{
		Products:      productRepo,
		Notifications: notificationRepo,
		Preferences:   preferenceRepo,
		Gateways:      gateways,
		Inventory:     inventory,
		Observer:      syncMetrics,
		Logger:        log.Named("fulfillment"),
	})
	ingestCfg := webhook.IngestServiceConfig{
		Resolver:    credentials,
		Transitions: lifecycle,
		DedupeTTL:   cfg.Webhook.DedupeTTL,
		Logger:      log.Named("webhook"),
	}
	if cfg.Webhook.DedupeEnabled {
		deliveries, err := cache.NewDeliveryStoreFactory(cfg.Redis,
			cache.WithLogger(log),
			cache.WithInMemoryFallback(!cfg.IsProduction()),
		).CreateStore(ctx)
		if err != nil {
			log.Fatal("Failed to create webhook delivery store", zap.Error(err))
		}
		defer func() {
			if err := deliveries.Close(); err != nil {
				log.Error("Error closing webhook delivery store", zap.Error(err))
			}
		}()
		ingestCfg.Deliveries = deliveries
	}
	ingest := webhook.NewIngestService(ingestCfg)

	var backlogJobs *scheduler.Scheduler
	var backlogSweep *scheduler.BacklogSweep
	if cfg.Backlog.Enabled {
		backlogJobs = scheduler.NewScheduler(scheduler.Config{
			Workers:       cfg.Backlog.Workers,
			JobTimeout:    cfg.Backlog.JobTimeout,
			RetryAttempts: cfg.Backlog.RetryAttempts,
			RetryDelay:    cfg.Backlog.RetryDelay,
		}, scheduler.NewBacklogExecutor(bulkSync, log.Named("backlog")), log.Named("backlog"))
		if err := backlogJobs.Start(ctx); err != nil {
			log.Fatal("Failed to start backlog scheduler", zap.Error(err))
		}
		backlogSweep = scheduler.NewBacklogSweep(scheduler.SweepConfig{
			Interval:     cfg.Backlog.Interval,
			OwnerLimit:   cfg.Backlog.OwnerLimit,
			TenantDomain: cfg.Backlog.TenantDomain,
		}, backlogJobs, productRepo, log.Named("backlog"))
		if err := backlogSweep.Start(ctx); err != nil {
			log.Fatal("Failed to start backlog sweep", zap.Error(err))
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     tracerProvider.IsEnabled(),
	}))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.SpanAttributes())
	if profiler.IsEnabled() {
		engine.Use(middleware.ProfilingLabels())
	}
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, map[string]handler.HealthChecker{
		"database": db,
	})
	engine.GET("/health", systemHandler.Health)

	admin := middleware.AdminToken(cfg.HTTP.AdminToken)
	if cfg.HTTP.AdminToken == "" {
		log.Warn("No admin token configured, catalog and credential endpoints are unauthenticated")
	}

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(
		handler.WebhookRoutes(handler.NewWebhookHandler(ingest,
			handler.WithWebhookObserver(syncMetrics),
			handler.WithMaxBody(cfg.Webhook.MaxBodyBytes),
		)),
		handler.ProductRoutes(handler.NewProductHandler(catalogSync, lifecycle), admin),
		handler.OwnerRoutes(handler.NewOwnerHandler(bulkSync, preferenceRepo), admin),
		handler.TenantCredentialRoutes(handler.NewTenantCredentialHandler(credentialAdmin), admin),
		handler.SystemRoutes(systemHandler),
	)
	for _, route := range r.Setup() {
		log.Debug("Route registered",
			zap.String("group", route.Group),
			zap.String("method", route.Method),
			zap.String("path", route.Path),
		)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if backlogSweep != nil {
		if err := backlogSweep.Stop(shutdownCtx); err != nil {
			log.Error("Backlog sweep stop failed", zap.Error(err))
		}
		if err := backlogJobs.Stop(shutdownCtx); err != nil {
			log.Error("Backlog scheduler stop failed", zap.Error(err))
		}
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracer shutdown failed", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Meter shutdown failed", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Profiler stop failed", zap.Error(err))
	}
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Log provider shutdown failed", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
