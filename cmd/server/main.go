package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/fulfillment/internal/application/shipping"
	syncapp "github.com/erp/fulfillment/internal/application/sync"
	"github.com/erp/fulfillment/internal/domain/order"
	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/infrastructure/marketplace"
	"github.com/erp/fulfillment/internal/infrastructure/printing"
	"github.com/erp/fulfillment/internal/infrastructure/scheduler"
	"github.com/erp/fulfillment/internal/infrastructure/storage"
	"github.com/erp/fulfillment/internal/interfaces/http/handler"
	"github.com/erp/fulfillment/internal/interfaces/http/middleware"
	"github.com/erp/fulfillment/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with the in-memory ring backing the logs endpoint
	ring := logger.NewRing(cfg.Log.RingSize)
	log, err := logger.NewWithRing(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}, ring)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting fulfillment server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Marketplace client and persisted credentials
	mpConfig := &marketplace.Config{
		PartnerID:      cfg.Marketplace.PartnerID,
		PartnerKey:     cfg.Marketplace.PartnerKey,
		BaseURL:        cfg.Marketplace.BaseURL,
		CallbackURL:    cfg.Marketplace.CallbackURL,
		TimeoutSeconds: cfg.Marketplace.TimeoutSeconds,
	}
	credentials := marketplace.NewCredentialStore(mpConfig, cfg.Marketplace.TokenFile, log)
	if err := credentials.Load(); err != nil {
		log.Warn("Could not load persisted credentials, starting unauthorized",
			zap.String("path", cfg.Marketplace.TokenFile),
			zap.Error(err),
		)
	}
	client := marketplace.NewClient(mpConfig, credentials, log)

	// In-memory order book
	store := order.NewStore()

	// Label printer
	var printer printing.Printer
	if cfg.Printer.Enabled {
		spooler, err := printing.NewSpooler(&printing.SpoolerConfig{
			Command:     cfg.Printer.Command,
			PrinterName: cfg.Printer.Name,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize printer spooler", zap.Error(err))
		}
		printer = spooler
		log.Info("Printer spooler ready",
			zap.String("command", cfg.Printer.Command),
			zap.String("printer", cfg.Printer.Name),
		)
	} else {
		printer = printing.NewDiscard(log)
		log.Info("Printing disabled, labels are archived only")
	}

	// Label archive
	var archive storage.DocumentArchive
	switch cfg.Storage.Backend {
	case "s3":
		s3Archive, err := storage.NewS3Archive(&cfg.Storage.S3, log)
		if err != nil {
			log.Fatal("Failed to initialize S3 archive", zap.Error(err))
		}
		ensureCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := s3Archive.EnsureBucket(ensureCtx); err != nil {
			cancel()
			log.Fatal("Failed to ensure archive bucket", zap.Error(err))
		}
		cancel()
		archive = s3Archive
		log.Info("Label archive ready",
			zap.String("backend", "s3"),
			zap.String("bucket", cfg.Storage.S3.Bucket),
		)
	default:
		archive = storage.NewLocalArchive(cfg.Storage.Local.Dir, log)
		log.Info("Label archive ready",
			zap.String("backend", "local"),
			zap.String("dir", cfg.Storage.Local.Dir),
		)
	}

	// Sync engine driven by a periodic trigger that also accepts kicks
	engine := syncapp.NewEngine(syncapp.Config{
		LookbackDays: cfg.Sync.LookbackDays,
		PageSize:     cfg.Sync.PageSize,
	}, client, credentials, store, log)

	trigger := scheduler.NewTrigger("order-sync", cfg.Sync.Interval, func(ctx context.Context) {
		if err := engine.Run(ctx); err != nil {
			log.Warn("Sync cycle failed", zap.Error(err))
		}
	}, log)

	if cfg.Marketplace.Configured() {
		if err := trigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sync trigger", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := trigger.Stop(stopCtx); err != nil {
				log.Error("Error stopping sync trigger", zap.Error(err))
			}
		}()
		log.Info("Sync trigger started", zap.Duration("interval", cfg.Sync.Interval))
	} else {
		log.Warn("Marketplace credentials not configured, sync is disabled")
	}

	// Shipping pipeline; a successful ship kicks an immediate sync
	pipeline := shipping.NewPipeline(shipping.Config{
		PollAttempts: cfg.Shipping.PollAttempts,
		PollDelay:    cfg.Shipping.PollDelay,
	}, client, store, printer, archive, trigger, log)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engineHTTP := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engineHTTP.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}
	engineHTTP.Use(middleware.RequestID())
	engineHTTP.Use(logger.Recovery(log))
	engineHTTP.Use(logger.GinMiddleware(log))

	r := router.NewRouter(engineHTTP, router.WithAPIVersion("v1"))
	r.Register(handler.NewOrderHandler(store, pipeline, trigger, credentials, log)).
		Register(handler.NewAuthHandler(credentials, log)).
		Register(handler.NewSystemHandler(ring))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engineHTTP,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Verify the persisted session against the platform, once, off the
	// startup path. Failure is informational; the sync engine refreshes
	// expired sessions on its own.
	if credentials.HasToken() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if res := client.GetShopInfo(ctx); !res.OK() {
				log.Warn("Stored session failed the startup probe", zap.Error(res.Error()))
			} else {
				log.Info("Stored session verified")
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
