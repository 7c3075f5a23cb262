package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/catalog"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// api is the assembled service graph behind the HTTP server.
type api struct {
	mux     *http.ServeMux
	catalog *catalog.Catalog
	carts   *cart.Registry
	auth    *auth.Authenticator
	health  *health.Health
}

// newAPI builds repositories, domain services, health probes and routes on
// top of a migrated pool.
func newAPI(ctx context.Context, pool *pgxpool.Pool, cfg *Config, meter metric.Meter) (*api, error) {
	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	cartStore := postgres.NewCartStore(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)

	// Catalog index.
	cat := catalog.New(productRepo)
	if err := cat.Refresh(ctx); err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}
	zctx.From(ctx).Info("Catalog loaded", zap.Int("products", cat.Size()))

	// Domain services.
	cartMetrics, err := cart.NewMetrics(meter)
	if err != nil {
		return nil, errors.Wrap(err, "cart metrics")
	}
	carts := cart.NewRegistry(func() *cart.Manager {
		return cart.NewManager(cartStore, cat, cart.Options{
			StoreTimeout: cfg.Cart.StoreTimeout,
			ResolveLimit: cfg.Cart.ResolveLimit,
			Metrics:      cartMetrics,
		})
	}, cfg.Cart.IdleTimeout)
	if err := carts.RegisterMetrics(meter); err != nil {
		return nil, errors.Wrap(err, "cart session metrics")
	}
	orderService := order.NewService(orderRepo)
	authenticator := auth.NewAuthenticator(sessionRepo, auth.NewHasher([]byte(cfg.SessionPepper)))

	// Health check service.
	healthSvc := health.New()
	healthSvc.Register(health.Readiness, health.Check{
		Name:    "postgres",
		Timeout: 5 * time.Second,
		Func:    health.PingCheck(pool),
	})
	healthSvc.Register(health.Readiness, health.Check{
		Name:             "catalog",
		Func:             health.MinCountCheck("catalog products", cat.Size, cfg.Catalog.MinProducts),
		FailureThreshold: 1,
	})
	healthSvc.Register(health.Liveness, health.Check{
		Name: "goroutines",
		Func: health.GoroutineCountCheck(10000),
	})

	// Routes: health endpoints + API on one mux.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	handler.New(
		handler.Config{ImageBaseURL: cfg.ImageBaseURL},
		productRepo,
		carts,
		orderService,
		authenticator,
	).Register(mux)

	return &api{
		mux:     mux,
		catalog: cat,
		carts:   carts,
		auth:    authenticator,
		health:  healthSvc,
	}, nil
}

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

	a, err := newAPI(zctx.Base(ctx, lg), pool, cfg, m.MeterProvider().Meter("storefront/cart"))
	if err != nil {
		return err
	}

	routeFinder := httpmiddleware.MakeRouteFinder(a.mux)
	limiter := httpmiddleware.NewRateLimiter(httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	})

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Cart store calls may take up to Cart.StoreTimeout.
		WriteTimeout:   cfg.Cart.StoreTimeout + 5*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(a.mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			limiter.Middleware(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Instrument("storefront-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	a.health.SetReady(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.health.Run(gctx, 10*time.Second)
	})
	g.Go(func() error {
		a.catalog.Start(zctx.Base(gctx, lg), cfg.Catalog.RefreshInterval)
		return nil
	})
	g.Go(func() error {
		return limiter.Run(gctx)
	})
	g.Go(func() error {
		return a.carts.Run(zctx.Base(gctx, lg))
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		a.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})

	return g.Wait()
}
