package app

import (
	"net/http"

	"stacktax-backend/internal/auth"
	"stacktax-backend/internal/config"
	"stacktax-backend/internal/database"
	"stacktax-backend/internal/health"
	"stacktax-backend/internal/ledger"
	"stacktax-backend/internal/lots"
	"stacktax-backend/internal/middleware"
	"stacktax-backend/internal/price"
	"stacktax-backend/internal/transactions"
	"stacktax-backend/internal/user"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app with all global middleware and route registration.
// Vercel will invoke the returned handler via adaptor.
func CreateApp(cfg *config.Config) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	// CORS (before session)
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	// Session (Redis); need Redis client for health marker too
	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	}
	sessionHandler, rdb, err := middleware.Session(sessionCfg)
	if err != nil {
		return nil, err
	}
	app.Use(sessionHandler)

	// Health request marker (after session)
	app.Use(middleware.HealthMarker(rdb))

	// Response formatter (inject helpers)
	app.Use(middleware.ResponseFormatter())

	// Tracing + route logger
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var errDB error
		db, errDB = database.Open(cfg.DatabaseURL)
		if errDB != nil {
			return nil, errDB
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, err
		}
	}

	// --- Routes (no auth) ---
	// Health module (GET /reset, GET /health/json, GET /health/errors)
	var dbPinger health.DBPinger
	if db != nil {
		if sqlDB, errPing := db.DB(); errPing == nil {
			dbPinger = sqlDB
		}
	}
	healthHandlers := &health.Handlers{
		Rdb:            rdb,
		DB:             dbPinger,
		HealthAdminKey: cfg.HealthAdminKey,
		PriceAPIURL:    cfg.PriceAPIURL,
	}
	app.Get("/reset", healthHandlers.Reset)
	app.Get("/health/json", healthHandlers.JSON)
	app.Get("/health/errors", healthHandlers.Errors)

	// Auth (no auth middleware): POST login, GET me, DELETE logout
	// db may be nil if DATABASE_URL not set (e.g. tests); Login will return 500
	var userFinder auth.UserFinder
	if db != nil {
		userFinder = &auth.GormUserFinder{DB: db}
	}
	authHandlers := &auth.Handlers{
		UserFinder: userFinder,
		DB:         db,
		Rdb:        rdb,
		Config:     sessionCfg,
	}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/login", authHandlers.Login)
	authGroup.Get("/me", authHandlers.Me)
	authGroup.Delete("/logout", authHandlers.Logout)

	// --- Protected modules (auth required) ---
	if db != nil && rdb != nil {
		authGroup.Post("/unlock", middleware.RequireAuth(), authHandlers.Unlock)

		// User module: public registration, authed settings
		userService := &user.Service{DB: db}
		userHandlers := &user.Handlers{Service: userService, Rdb: rdb, Config: sessionCfg}
		app.Post("/api/v1/users/register", userHandlers.Register)
		userGroup := app.Group("/api/v1/users", middleware.RequireAuth())
		userGroup.Get("/settings", userHandlers.GetSettings)
		userGroup.Put("/settings", userHandlers.UpdateSettings)

		// Ledger module: transaction processing + bulk import
		oracle := &price.CachedOracle{
			Next: &price.Client{BaseURL: cfg.PriceAPIURL, APIKey: cfg.PriceAPIKey},
			Rdb:  rdb,
		}
		ledgerService := &ledger.Service{DB: db, Prices: oracle}
		ledgerHandlers := &ledger.Handlers{Service: ledgerService}

		// Transactions module (processing + history)
		txService := &transactions.Service{DB: db}
		txHandlers := &transactions.Handlers{Service: txService}
		txGroup := app.Group("/api/v1/transactions", middleware.RequireAuth())
		txGroup.Post("/process-transaction", middleware.RequireUnlocked(), ledgerHandlers.ProcessTransaction)
		txGroup.Post("/bulk-process", ledgerHandlers.BulkProcess)
		txGroup.Get("/get-transactions", txHandlers.GetTransactions)

		// Lots module (open/closed lots, allocations, yearly gains)
		lotsService := &lots.Service{DB: db}
		lotsHandlers := &lots.Handlers{Service: lotsService}
		lotsGroup := app.Group("/api/v1/lots", middleware.RequireAuth())
		lotsGroup.Get("/view-lots", lotsHandlers.ViewLots)
		lotsGroup.Get("/view-allocations/:tx_id", lotsHandlers.ViewAllocations)
		lotsGroup.Get("/gains-summary", lotsHandlers.GainsSummary)
	}

	return app, nil
}

// Handler returns an http.Handler for Vercel (Fiber app as net/http handler).
func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
