// cmd/server/main.go
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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/idsee/registry-backend/internal/config"
	"github.com/idsee/registry-backend/internal/database"
	"github.com/idsee/registry-backend/internal/i18n"
	"github.com/idsee/registry-backend/internal/metrics"
	"github.com/idsee/registry-backend/internal/repository/postgres"
	"github.com/idsee/registry-backend/internal/router"
	"github.com/idsee/registry-backend/internal/services"
	"github.com/idsee/registry-backend/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal("Failed to load configuration: ", err)
	}

	setupLogging(cfg)

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.Fatal("Failed to initialize database: ", err)
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		logrus.Fatal("Failed to run migrations: ", err)
	}
	if !cfg.IsProduction() {
		if err := database.SeedInitialData(db); err != nil {
			logrus.WithError(err).Warn("Failed to seed initial data")
		}
	}

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.LocalesPath, cfg.I18n.DefaultLocale); err != nil {
		logrus.Fatal("Failed to initialize i18n: ", err)
	}

	utils.SetJWTSecret(cfg.JWT.SecretKey)
	utils.MinChipIDLength = cfg.Registry.MinChipIDLength

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	store := postgres.NewStore(db)

	anchorClient, err := newAnchorClient(cfg.Anchor)
	if err != nil {
		logrus.Fatal(err)
	}
	anchor := services.NewAnchorService(anchorClient, cfg.Anchor)

	storage, err := services.NewStorageService(cfg.AWS)
	if err != nil {
		logrus.Fatal("Failed to initialize storage: ", err)
	}

	notifier := services.NewNotificationService(store)
	ledger := services.NewLedgerService(store, m)
	peers := services.NewPeerVerificationService(store, ledger, storage, notifier, cfg.Registry, m)

	svc := router.Services{
		Auth:          services.NewAuthService(store, ledger, cfg, m),
		Registry:      services.NewRegistryService(store, ledger, anchor, cfg.Registry, m),
		Confirmations: services.NewConfirmationService(store, anchor, notifier, m),
		Peers:         peers,
		Credits:       services.NewCreditService(ledger, cfg.Registry.PurchaseEnabled),
		Notifications: notifier,
		Admin:         services.NewAdminService(store, ledger, peers, anchor, notifier, m),
	}
	limiters := router.NewLimiters(cfg.RateLimit)

	r := router.Initialize(store, cfg, svc, limiters, registry)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	worker := services.NewAnchorWorker(store, anchor, notifier, cfg.Anchor, m)
	scheduler := services.NewAnchorScheduler(worker, cfg.Anchor.WorkerSchedule)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logrus.WithFields(logrus.Fields{
			"port":        cfg.Server.Port,
			"environment": cfg.Environment,
			"anchor_mode": anchor.Mode(),
			"s3":          storage.UsesS3(),
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	g.Go(func() error {
		limiters.Public.Cleanup(gctx)
		return nil
	})
	g.Go(func() error {
		limiters.Auth.Cleanup(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}

	logrus.Info("Server exited")
}

func setupLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Log.Format == "json" || (cfg.Log.Format == "" && cfg.IsProduction()) {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func newAnchorClient(cfg config.AnchorConfig) (services.AnchorClient, error) {
	switch cfg.Mode {
	case "", "demo":
		return services.NewDemoAnchorClient(cfg.DemoLatency), nil
	default:
		return nil, fmt.Errorf("unsupported anchor mode %q", cfg.Mode)
	}
}
