package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/auth"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/booking"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/config"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/identity"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/ledger"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/middleware"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/notification"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/pricing"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/settlement"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/transfer"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. The returned drain
// function blocks until in-flight settlement watches complete; call it during
// shutdown.
func Setup(app *fiber.App, d Deps) (func(), error) {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	var ledgerBackend ledger.Ledger
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
	}

	staticRates, err := pricing.ParseRates(d.Cfg.ExchangeRates)
	if err != nil {
		return nil, fmt.Errorf("parse exchange rates: %w", err)
	}
	var rateSource pricing.Source = pricing.NewStaticSource(staticRates)
	if d.Cache != nil {
		rateSource = pricing.NewCachedSource(rateSource, d.Cache, d.Cfg.RateTTL, d.Logger)
	}

	var walletRepo wallet.Repository
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
	} else {
		walletRepo = wallet.NewMemoryRepository()
	}
	walletSvc, err := wallet.NewService(d.Cfg, walletRepo, ledgerBackend, rateSource)
	if err != nil {
		return nil, err
	}

	var settler settlement.Submitter
	if d.Cfg.BundlerURL != "" {
		bundler, err := settlement.DialBundler(context.Background(), d.Cfg.BundlerURL, d.Cfg.EntryPointAddress, d.Cfg.TokenAddress)
		if err != nil {
			return nil, fmt.Errorf("dial bundler: %w", err)
		}
		settler = bundler
	} else {
		if !d.Cfg.IsDev() {
			return nil, fmt.Errorf("BUNDLER_URL is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		settler = settlement.NewSimulated()
	}

	notifier := notification.NewLoggerNotifier(d.Logger)

	var transferStore transfer.Store
	if d.DB != nil {
		transferStore = transfer.NewPostgresStore(d.DB)
	} else {
		transferStore = transfer.NewMemoryStore()
	}
	executor, err := transfer.NewExecutor(context.Background(), ledgerBackend, walletSvc,
		transferStore, settler, notifier, d.Logger, d.Cfg.SettleTimeout)
	if err != nil {
		return nil, err
	}

	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}
	identitySvc := identity.NewService(identityRepo)
	authSvc := auth.NewService(d.Cfg, identityRepo)

	var bookingRepo booking.Repository
	if d.DB != nil {
		bookingRepo = booking.NewPostgresRepository(d.DB)
	} else {
		bookingRepo = booking.NewMemoryRepository()
	}
	bookingSvc, err := booking.NewService(bookingRepo, identityRepo, walletSvc, executor, notifier)
	if err != nil {
		return nil, err
	}

	identityHandler := identity.NewHandler(identitySvc, walletSvc)
	authHandler := auth.NewHandler(identitySvc, authSvc, walletSvc)
	walletHandler := wallet.NewHandler(walletSvc)
	transferHandler := transfer.NewHandler(executor, walletSvc)
	bookingHandler := booking.NewHandler(bookingSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterIdentityRoutes(api, identityHandler)
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, authHandler, rateLimiter)

	// Protected routes
	jwtmw := middleware.JWTAuth(d.Cfg, identityRepo)
	protected := api.Group("", jwtmw)
	RegisterWalletRoutes(protected, walletHandler)
	RegisterTransferRoutes(protected, transferHandler)
	RegisterBookingRoutes(protected, bookingHandler)

	return executor.Wait, nil
}
