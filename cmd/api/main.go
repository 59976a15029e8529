package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sigmalabbd/labstore-backend/api/routes"
	"github.com/sigmalabbd/labstore-backend/internal/admins"
	"github.com/sigmalabbd/labstore-backend/internal/cart"
	"github.com/sigmalabbd/labstore-backend/internal/catalog"
	"github.com/sigmalabbd/labstore-backend/internal/compare"
	"github.com/sigmalabbd/labstore-backend/internal/drafts"
	"github.com/sigmalabbd/labstore-backend/internal/orders"
	"github.com/sigmalabbd/labstore-backend/internal/preferences"
	"github.com/sigmalabbd/labstore-backend/internal/quotes"
	"github.com/sigmalabbd/labstore-backend/internal/recent"
	"github.com/sigmalabbd/labstore-backend/internal/telemetry"
	"github.com/sigmalabbd/labstore-backend/pkg/auth/session"
	"github.com/sigmalabbd/labstore-backend/pkg/config"
	"github.com/sigmalabbd/labstore-backend/pkg/db"
	"github.com/sigmalabbd/labstore-backend/pkg/kv"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
	"github.com/sigmalabbd/labstore-backend/pkg/metrics"
	"github.com/sigmalabbd/labstore-backend/pkg/migrate"
	"github.com/sigmalabbd/labstore-backend/pkg/pubsub"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	kvStore, err := kv.NewRedis(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := kvStore.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(kvStore, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	mtr := metrics.NewSessionStoreMetrics(registry)

	var sink *telemetry.Sink
	if cfg.Telemetry.Enabled {
		var pub telemetry.Publisher
		if cfg.GCP.ProjectID != "" {
			psClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
			if err != nil {
				logg.Error(context.Background(), "failed to create pubsub client", err)
				os.Exit(1)
			}
			defer func() {
				if err := psClient.Close(); err != nil {
					logg.Error(context.Background(), "error closing pubsub client", err)
				}
			}()
			pub, err = telemetry.NewPubSubPublisher(psClient.TelemetryPublisher())
			if err != nil {
				logg.Error(context.Background(), "failed to create telemetry publisher", err)
				os.Exit(1)
			}
		} else {
			pub, err = telemetry.NewLogPublisher(logg)
			if err != nil {
				logg.Error(context.Background(), "failed to create telemetry publisher", err)
				os.Exit(1)
			}
		}
		sink, err = telemetry.NewSink(cfg.Telemetry, pub, logg, mtr)
		if err != nil {
			logg.Error(context.Background(), "failed to start telemetry sink", err)
			os.Exit(1)
		}
		defer sink.Close()
	}

	cartService, err := cart.NewService(cart.Params{
		Store:   kvStore,
		Logger:  logg,
		Metrics: mtr,
		Sink:    sink,
		Config:  cfg.Cart,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	compareService, err := compare.NewService(compare.Params{
		Logger:  logg,
		Metrics: mtr,
		Sink:    sink,
		Config:  cfg.Compare,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create compare service", err)
		os.Exit(1)
	}
	defer compareService.Close()

	recentService, err := recent.NewService(recent.Params{
		Store:   kvStore,
		Logger:  logg,
		Metrics: mtr,
		Sink:    sink,
		Config:  cfg.Recent,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create recently-viewed service", err)
		os.Exit(1)
	}

	draftsService, err := drafts.NewService(drafts.Params{
		Store:   kvStore,
		Logger:  logg,
		Metrics: mtr,
		Sink:    sink,
		Config:  cfg.Drafts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create drafts service", err)
		os.Exit(1)
	}
	defer draftsService.Close()

	preferencesService, err := preferences.NewService(preferences.Params{
		Store:   kvStore,
		Logger:  logg,
		Metrics: mtr,
		Sink:    sink,
		Config:  cfg.Density,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create preferences service", err)
		os.Exit(1)
	}
	defer preferencesService.Close()

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.Params{
		Repo:     orders.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Carts:    cartService,
		Products: catalogService,
		Logger:   logg,
		Sink:     sink,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	quotesService, err := quotes.NewService(dbClient.DB(), logg, sink)
	if err != nil {
		logg.Error(context.Background(), "failed to create quotes service", err)
		os.Exit(1)
	}

	adminsService, err := admins.NewService(admins.Params{
		DB:       dbClient.DB(),
		Sessions: sessionManager,
		JWT:      cfg.JWT,
		Password: cfg.Password,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create admins service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Deps{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		KV:          kvStore,
		Sessions:    sessionManager,
		Gatherer:    registry,
		Cart:        cartService,
		Compare:     compareService,
		Recent:      recentService,
		Drafts:      draftsService,
		Preferences: preferencesService,
		Catalog:     catalogService,
		Orders:      ordersService,
		Quotes:      quotesService,
		Admins:      adminsService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-rootCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "error during server shutdown", err)
		}
	}

	logg.Info(ctx, "api server stopped")
}
