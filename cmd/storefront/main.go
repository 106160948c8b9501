package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_storefront/internal/auth"
	"github.com/fjod/go_storefront/internal/config"
	"github.com/fjod/go_storefront/internal/consumer"
	"github.com/fjod/go_storefront/internal/document"
	"github.com/fjod/go_storefront/internal/handoff"
	h "github.com/fjod/go_storefront/internal/http"
	"github.com/fjod/go_storefront/internal/kvstore"
	"github.com/fjod/go_storefront/internal/publisher"
	"github.com/fjod/go_storefront/internal/repository"
	"github.com/fjod/go_storefront/internal/service"
	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"github.com/fjod/go_storefront/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "storefront"

func main() {
	if len(os.Args) == 3 && os.Args[1] == "hash-password" {
		hash, err := auth.HashPassword(os.Args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New(serviceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("storefront stopped with error", zap.Error(err))
	}
	log.Info("storefront stopped")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database setup
	creds := &repository.Credentials{
		Host:              cfg.DB.Host,
		Port:              cfg.DB.Port,
		User:              cfg.DB.User,
		Password:          cfg.DB.Password,
		DBName:            cfg.DB.Name,
		MigrationsDirPath: cfg.DB.MigrationsPath,
	}
	repo, err := repository.NewRepository(ctx, creds)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer repo.Close()

	version, err := repo.RunMigrations(creds)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database migrations completed", zap.Uint("schema_version", version))

	// Key-value store
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var wg sync.WaitGroup
	goRun := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
			log.Info("worker stopped", zap.String("worker", name))
		}()
	}
	goRun("kvstore", func(ctx context.Context) {
		if err := store.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("kvstore listener failed", zap.Error(err))
		}
	})

	// Services
	shop := service.NewShopService(repo, repo, log)
	if err := shop.Refresh(ctx); err != nil {
		// served as 503 until a later refresh succeeds
		log.Error("initial shop load failed", zap.Error(err))
	}

	var orderHandoff service.Handoff = handoff.NewLogPublisher(log)
	if len(cfg.KafkaBrokers) > 0 {
		handoffWriter := handoff.NewKafkaWriter(cfg.HandoffTopic, cfg.KafkaBrokers...)
		defer handoffWriter.Close()
		orderHandoff = handoff.NewKafkaPublisher(handoffWriter, newBreaker("handoff", log))

		eventsWriter := handoff.NewKafkaWriter(cfg.OrderEventsTopic, cfg.KafkaBrokers...)
		defer eventsWriter.Close()
		poller := publisher.NewOutboxPoller(repo, eventsWriter, newBreaker("order-events", log), log)
		goRun("outbox", poller.Run)

		// each instance refreshes its own cache, so each needs its own group
		reader := consumer.NewKafkaReader(cfg.OrderEventsTopic, serviceName+"-"+uuid.NewString(), cfg.KafkaBrokers...)
		orderEvents := consumer.NewConsumer(shop, reader, log)
		defer orderEvents.Close()
		goRun("order-events", orderEvents.Run)
	} else {
		log.Warn("KAFKA_BROKERS not set, handoff is logged only and order events are not published")
	}

	carts := service.NewCartService(store, log)
	sessions := auth.NewSessions(store, cfg.AdminUser, cfg.AdminPasswordHash, cfg.AdminSessionTTL, log)
	if cfg.AdminPasswordHash == "" {
		log.Warn("ADMIN_PASSWORD_HASH not set, admin sign-in is disabled")
	}

	handlers := h.Handlers{
		Cart:   h.NewCartHandler(carts, shop, cfg.RequestTimeout, log),
		Orders: h.NewOrdersHandler(
			carts,
			shop,
			service.NewSnapshotStore(store, cfg.SnapshotTTL),
			service.NewCheckoutService(repo, orderHandoff, cfg.MessagingHost, log),
			document.NewRenderer(log),
			document.NewPreviewStore(store, cfg.PreviewTTL),
			cfg.RequestTimeout,
			log,
		),
		Catalog:     h.NewCatalogHandler(shop),
		Admin:       h.NewAdminHandler(shop, service.NewConfirmationService(shop, repo, repo, log), cfg.RequestTimeout),
		Auth:        h.NewAuthHandler(sessions, cfg.RequestTimeout),
		Preferences: h.NewPreferencesHandler(service.NewPreferencesService(store, cfg.PreferencesTTL), cfg.RequestTimeout),
	}
	router := h.NewRouter(h.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		ServiceName:    serviceName,
	}, handlers, shop, sessions, log)

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
		// no WriteTimeout: cart events are a long-lived stream
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("storefront listening", zap.String("port", cfg.HTTPPort), zap.String("kv_backend", cfg.KVBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("server error: %w", err)
		}
	}
	stop()

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("workers stopped cleanly")
	case <-shutdownCtx.Done():
		log.Warn("workers didn't stop in time")
	}
	return nil
}

// openStore builds the key-value store for cfg.KVBackend. The returned func
// releases its connections.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*kvstore.Store, func(), error) {
	switch cfg.KVBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		store := kvstore.New(kvstore.NewRedisBackend(client),
			kvstore.WithNotifier(kvstore.NewRedisNotifier(client)),
			kvstore.WithLogger(log))
		return store, func() { client.Close() }, nil

	case "mongo":
		backend, err := kvstore.DialMongo(ctx, kvstore.MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDB})
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { backend.Close(context.Background()) }
		return kvstore.New(backend, kvstore.WithLogger(log)), closeFn, nil

	default:
		log.Warn("using in-memory kv store, carts are lost on restart")
		mem := kvstore.NewMemoryBackend()
		return kvstore.New(mem, kvstore.WithLogger(log)), mem.Close, nil
	}
}

func newBreaker(name string, log *zap.Logger) *circuitbreaker.Breaker {
	return circuitbreaker.New(circuitbreaker.Settings{
		Name: name,
		OnStateChange: func(name, from, to string) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name), zap.String("from", from), zap.String("to", to))
		},
	})
}
