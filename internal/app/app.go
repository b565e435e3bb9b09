package app

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/food-orders/internal/domain/cart"
	"github.com/xenking/food-orders/internal/domain/coupon"
	"github.com/xenking/food-orders/internal/domain/notification"
	"github.com/xenking/food-orders/internal/domain/order"
	"github.com/xenking/food-orders/internal/handler"
	"github.com/xenking/food-orders/internal/realtime"
	"github.com/xenking/food-orders/internal/storage/postgres"
	"github.com/xenking/food-orders/internal/storage/redis"
	"github.com/xenking/food-orders/pkg/health"
	"github.com/xenking/food-orders/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	rdb, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return errors.Wrap(err, "connect redis")
	}
	defer func() { _ = rdb.Close() }()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddReadinessCheck("redis", 2*time.Second, health.RedisCheck(rdb))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	// Repositories.
	userRepo := postgres.NewUserRepository(pool)
	menuRepo := postgres.NewMenuRepository(pool)
	restaurantRepo := postgres.NewRestaurantRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	notificationRepo := postgres.NewNotificationRepository(pool)
	cartRepo := redis.NewCartRepository(rdb, cfg.Cart.TTL)

	// Real-time delivery. Every event is broadcast to sessions first and
	// stored as a notification in the background.
	hub, err := realtime.NewHub(m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create hub")
	}
	dispatcher := notification.NewDispatcher(hub, notificationRepo, cfg.Notification.TTL)
	endpoint := realtime.NewEndpoint(hub, realtime.EndpointConfig{
		SendBuffer:     cfg.Notification.SendBuffer,
		AllowedOrigins: cfg.CORS.Origins,
	})

	// Domain services.
	cartSvc := cart.NewService(userRepo, menuRepo, cartRepo)
	couponValidator := coupon.NewValidator(couponRepo, userRepo, orderRepo)
	orderSvc, err := order.NewService(
		userRepo,
		menuRepo,
		cart.NewAggregator(cartRepo),
		orderRepo,
		dispatcher,
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	notificationSvc := notification.NewService(notificationRepo)
	sweeper := notification.NewSweeper(notificationRepo, cfg.Notification.SweepInterval)

	// HTTP handlers.
	h := handler.NewHandler(
		handler.HandlerConfig{
			ImageBaseURL: cfg.ImageBaseURL,
			CORS: handler.CORSConfig{
				Origins:          cfg.CORS.Origins,
				AllowCredentials: cfg.CORS.AllowCredentials,
			},
		},
		handler.Deps{
			Orders:        orderSvc,
			Carts:         cartSvc,
			Coupons:       couponValidator,
			Notifications: notificationSvc,
			Restaurants:   restaurantRepo,
			Sessions:      endpoint,
			Auth:          handler.NewAuthenticator([]byte(cfg.JWTSecret)),
		},
	)
	engine := h.Engine()

	var limiter httpmiddleware.Limiter
	switch cfg.RateLimit.Backend {
	case "memory":
		ml := httpmiddleware.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
		go ml.Run(ctx)
		limiter = ml
	default:
		limiter = httpmiddleware.NewRedisLimiter(rdb, cfg.RateLimit.Max, cfg.RateLimit.Window)
	}

	// Mux: health endpoints, gin API and realtime routes on one server.
	mux := http.NewServeMux()
	mux.Handle("/livez", httpmiddleware.Route("/livez", http.HandlerFunc(healthSvc.LiveEndpoint)))
	mux.Handle("/readyz", httpmiddleware.Route("/readyz", http.HandlerFunc(healthSvc.ReadyEndpoint)))
	mux.Handle("/api/", engine)
	mux.Handle("/ws/", engine)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.TrackRoute(),
			httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   exemptFromRateLimit,
			}, limiter),
			httpmiddleware.Instrument("food-orders-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	var background sync.WaitGroup
	background.Add(1)
	go func() {
		defer background.Done()
		sweeper.Run(ctx)
	}()

	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}

		// Hijacked websocket connections are not tracked by the server.
		hub.Close()
		endpoint.Wait()
		dispatcher.Wait()
		background.Wait()

		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func exemptFromRateLimit(r *http.Request) bool {
	switch {
	case r.URL.Path == "/livez", r.URL.Path == "/readyz":
		return true
	case strings.HasPrefix(r.URL.Path, "/ws/"):
		return true
	default:
		return false
	}
}
