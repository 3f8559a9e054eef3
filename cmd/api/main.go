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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/localstall/stallmarket-backend/api/routes"
	"github.com/localstall/stallmarket-backend/internal/auth"
	"github.com/localstall/stallmarket-backend/internal/cart"
	"github.com/localstall/stallmarket-backend/internal/cascade"
	"github.com/localstall/stallmarket-backend/internal/messages"
	"github.com/localstall/stallmarket-backend/internal/notifications"
	"github.com/localstall/stallmarket-backend/internal/orders"
	product "github.com/localstall/stallmarket-backend/internal/products"
	"github.com/localstall/stallmarket-backend/internal/ratings"
	"github.com/localstall/stallmarket-backend/internal/reviews"
	"github.com/localstall/stallmarket-backend/internal/stalls"
	"github.com/localstall/stallmarket-backend/internal/users"
	"github.com/localstall/stallmarket-backend/pkg/config"
	"github.com/localstall/stallmarket-backend/pkg/db"
	"github.com/localstall/stallmarket-backend/pkg/logger"
	"github.com/localstall/stallmarket-backend/pkg/metrics"
	"github.com/localstall/stallmarket-backend/pkg/migrate"
	"github.com/localstall/stallmarket-backend/pkg/redis"
	"github.com/localstall/stallmarket-backend/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

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

	logg = logger.ForApp("api", cfg.App)

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	marketMetrics := metrics.NewMarketplaceMetrics(registry)

	files, err := storage.NewLocal(cfg.Storage.Root, logg, marketMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to prepare storage root", err)
		os.Exit(1)
	}

	svc, dispatcher, err := buildServices(context.Background(), cfg, logg, dbClient, redisClient, files, marketMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(cfg, logg, routes.Infra{
		DB:       dbClient,
		Redis:    redisClient,
		Storage:  files,
		Registry: registry,
		HTTP:     metrics.NewHTTPMetrics(registry),
	}, svc)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithField(context.Background(), "addr", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}

	// In-flight notification writes finish before the database closes.
	dispatcher.Wait()
	logg.Info(ctx, "api server stopped")
}

func buildServices(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	files *storage.Local,
	marketMetrics *metrics.MarketplaceMetrics,
) (routes.Services, *notifications.Dispatcher, error) {
	conn := dbClient.DB()
	aggregator := ratings.NewAggregator(conn)

	notificationRepo := notifications.NewRepository(conn)
	dispatcher, err := notifications.NewDispatcher(notificationRepo, logg)
	if err != nil {
		return routes.Services{}, nil, err
	}
	notificationService, err := notifications.NewService(notificationRepo)
	if err != nil {
		return routes.Services{}, nil, err
	}

	cascadeService, err := cascade.NewService(cascade.ServiceParams{
		Tx:      dbClient,
		Files:   files,
		Metrics: marketMetrics,
		Logger:  logg,
	})
	if err != nil {
		return routes.Services{}, nil, err
	}

	userRepo := users.NewRepository(conn)
	userService, err := users.NewService(userRepo, cascadeService, cfg.Marketplace.OwnerEmail, logg)
	if err != nil {
		return routes.Services{}, nil, err
	}

	stallService, err := stalls.NewService(stalls.ServiceParams{
		Repo:     stalls.NewRepository(conn),
		Tx:       dbClient,
		Ratings:  aggregator,
		Cascade:  cascadeService,
		Notifier: dispatcher,
		Paths:    files,
	})
	if err != nil {
		return routes.Services{}, nil, err
	}

	productService, err := product.NewService(product.NewRepository(conn), aggregator, files)
	if err != nil {
		return routes.Services{}, nil, err
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(conn),
		Tx:       dbClient,
		Notifier: dispatcher,
		Metrics:  marketMetrics,
	})
	if err != nil {
		return routes.Services{}, nil, err
	}

	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:    cart.NewRepository(conn),
		Tx:      dbClient,
		Orders:  orderService,
		Redis:   redisClient,
		Metrics: marketMetrics,
		Locking: cfg.FeatureFlags.CartLocking,
	})
	if err != nil {
		return routes.Services{}, nil, err
	}

	reviewService, err := reviews.NewService(reviews.NewRepository(conn), dispatcher)
	if err != nil {
		return routes.Services{}, nil, err
	}

	messageService, err := messages.NewService(messages.ServiceParams{
		Repo:      messages.NewRepository(conn),
		Notifier:  dispatcher,
		Publisher: redisClient,
		Logger:    logg,
	})
	if err != nil {
		return routes.Services{}, nil, err
	}

	google, err := auth.NewGoogleVerifier(ctx, cfg.OAuth.GoogleClientID)
	if err != nil {
		return routes.Services{}, nil, err
	}
	authService, err := auth.NewService(auth.ServiceParams{
		Users:      userRepo,
		Verifiers:  map[string]auth.IdentityVerifier{auth.ProviderGoogle: google},
		JWT:        cfg.JWT,
		Password:   cfg.Password,
		OwnerEmail: cfg.Marketplace.OwnerEmail,
		Logger:     logg,
	})
	if err != nil {
		return routes.Services{}, nil, err
	}

	return routes.Services{
		Auth:          authService,
		Users:         userService,
		Stalls:        stallService,
		Products:      productService,
		Cart:          cartService,
		Orders:        orderService,
		Reviews:       reviewService,
		Messages:      messageService,
		Notifications: notificationService,
	}, dispatcher, nil
}
