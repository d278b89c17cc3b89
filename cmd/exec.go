package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"ticket-ledger/config"
	"ticket-ledger/internal/clock"
	"ticket-ledger/internal/handlers"
	"ticket-ledger/internal/notify"
	"ticket-ledger/internal/payload"
	"ticket-ledger/internal/services"
	"ticket-ledger/internal/store"
	"ticket-ledger/logger"
	_ "ticket-ledger/migrations"
	"ticket-ledger/monitoring"
	"ticket-ledger/security"
	"ticket-ledger/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/redis/go-redis/v9"
)

func Start() error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := logger.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	app := pocketbase.NewWithConfig(pocketbase.Config{
		DefaultDev: cfg.Environment == "development",
	})
	app.RootCmd.SetArgs(serveArgs(os.Args[1:], cfg.Port))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	codec := payload.NewCodec(cfg.CurrencySymbol, cfg.CurrencyDecimals, cfg.Location())
	app.RootCmd.AddCommand(NewScanCommand(codec))

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: false,
	})

	// Redis backs the redis store and the scan rate limiter
	var redisClient *redis.Client
	if cfg.StorageBackend == config.BackendRedis || cfg.ScanRateLimit > 0 {
		redisClient, err = utils.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	st, err := newStore(cfg, app, redisClient)
	if err != nil {
		return err
	}
	defer st.Close()

	monitor := monitoring.NewMonitor(st)
	opts := []services.Option{
		services.WithCheckInGrace(cfg.CheckInGrace),
		services.WithLocation(cfg.Location()),
		services.WithRecorder(monitor),
	}
	if cfg.PubNubPublishKey != "" {
		pub := notify.NewPubNubPublisher(notify.PubNubConfig{
			PublishKey:   cfg.PubNubPublishKey,
			SubscribeKey: cfg.PubNubSubscribeKey,
			SecretKey:    cfg.PubNubSecretKey,
			UserID:       cfg.PubNubUserID,
		})
		opts = append(opts, services.WithNotifier(notify.NewNotifier(pub)))
	}

	ledger := services.NewLedger(st, opts...)
	ledgerHandler := handlers.NewLedgerHandler(ledger, codec, clock.NewSystem())

	var scanLimit func(*core.RequestEvent) error
	if redisClient != nil && cfg.ScanRateLimit > 0 {
		scanLimit = security.NewRateLimiter(redisClient, cfg.ScanRateLimit, cfg.ScanRateWindow).ScanRateLimit
	}

	if cfg.EnableMetrics {
		go monitor.Run(ctx)
		go func() {
			if err := monitoring.Serve(ctx, ":"+cfg.MetricsPort); err != nil {
				logger.Errorf(ctx, "metrics listener: %v", err)
			}
		}()
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		ledgerHandler.Register(e.Router, scanLimit, security.AntiBot)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := st.Ping(e.Request.Context()); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		logger.Infof(ctx, "ledger routes registered, storage backend %s", cfg.StorageBackend)

		return e.Next()
	})

	return app.Start()
}

func newStore(cfg *config.Config, app core.App, redisClient *redis.Client) (store.Store, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	case config.BackendRedis:
		return store.NewRedisStore(redisClient,
			store.WithRetries(cfg.ApplyRetries),
			store.WithBreaker(utils.NewCircuitBreaker("redis-store")),
		), nil
	case config.BackendPocketBase:
		return store.NewPocketBaseStore(app), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// serveArgs points `serve` at the configured port unless --http is given.
func serveArgs(args []string, port string) []string {
	if len(args) == 0 || args[0] != "serve" || port == "" {
		return args
	}
	for _, a := range args[1:] {
		if a == "--http" || strings.HasPrefix(a, "--http=") {
			return args
		}
	}
	return append(slices.Clone(args), "--http=0.0.0.0:"+port)
}

// handleShutdown cancels background work on SIGINT/SIGTERM
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Infof(context.Background(), "shutdown signal received, cleaning up")
	cancel()
}
