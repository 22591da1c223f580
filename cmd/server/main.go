package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridmarket/backend/internal/application/billing"
	"github.com/gridmarket/backend/internal/application/registry"
	"github.com/gridmarket/backend/internal/domain/grid"
	"github.com/gridmarket/backend/internal/domain/pricing"
	"github.com/gridmarket/backend/internal/infrastructure/config"
	"github.com/gridmarket/backend/internal/infrastructure/event"
	"github.com/gridmarket/backend/internal/infrastructure/logger"
	"github.com/gridmarket/backend/internal/infrastructure/persistence"
	"github.com/gridmarket/backend/internal/infrastructure/pricefeed"
	"github.com/gridmarket/backend/internal/infrastructure/scheduler"
	"github.com/gridmarket/backend/internal/interfaces/http/handler"
	"github.com/gridmarket/backend/internal/interfaces/http/middleware"
	"github.com/gridmarket/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log := logger.New(cfg.Log)
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting grid market backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	accounts, err := platformAccounts(cfg.Accounts)
	if err != nil {
		log.Fatal("Invalid platform account configuration", zap.Error(err))
	}

	// Initialize database connection
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Initialize repositories and adapters
	contractRepo := persistence.NewGormContractRepository(db.DB)
	directory := persistence.NewGormDirectory(db.DB)
	ipRegistry := persistence.NewGormIPRegistry(db.DB)
	wallet := persistence.NewGormWallet(db.DB)
	uow := persistence.NewTxManager(db.DB)
	feed := pricefeed.NewStaticFeed(cfg.Feed)
	clock := grid.SystemClock{}

	// Initialize event bus
	eventBus := event.NewInMemoryEventBus(log)

	policy := pricing.Policy{
		ComputePrice:              cfg.Pricing.ComputePrice,
		StoragePrice:              cfg.Pricing.StoragePrice,
		IPPrice:                   cfg.Pricing.IPPrice,
		NetworkPrice:              cfg.Pricing.NetworkPrice,
		NamePrice:                 cfg.Pricing.NamePrice,
		DedicationDiscountPercent: cfg.Pricing.DedicationDiscountPercent,
	}
	billingCfg := billing.Config{
		CycleSeconds:       cfg.Billing.CycleSeconds,
		GraceCycles:        cfg.Billing.GraceCycles,
		DistributionCycles: cfg.Billing.DistributionCycles,
	}

	// The billing engine and registry serialize writes through one guard, so
	// billing ticks and API mutations never interleave mid-contract.
	guard := &sync.Mutex{}

	var engine *billing.Engine
	loop := scheduler.NewBillingLoop(billerFunc(func(ctx context.Context, id uint64) error {
		return engine.Bill(ctx, id)
	}), cfg.Billing.CycleSeconds, cfg.Billing.Buckets, log)

	engine = billing.NewEngine(guard, contractRepo, directory, ipRegistry, wallet, feed, clock,
		eventBus, loop, uow, policy, accounts, billingCfg, log)
	registryService := registry.NewService(guard, contractRepo, directory, ipRegistry,
		engine, loop, uow, eventBus, clock, log)

	// Recover the billing schedule from storage
	ids, err := contractRepo.ListIDs(context.Background())
	if err != nil {
		log.Fatal("Failed to load contract ids", zap.Error(err))
	}
	loop.Rebuild(ids)

	loopCtx, cancelLoop := context.WithCancel(context.Background())
	loop.Start(loopCtx)
	defer cancelLoop()
	log.Info("Billing loop started",
		zap.Int("contracts", len(ids)),
		zap.Uint64("cycle_seconds", cfg.Billing.CycleSeconds),
		zap.Int("buckets", cfg.Billing.Buckets),
	)

	// Initialize HTTP handlers
	contractHandler := handler.NewContractHandler(registryService)
	reportHandler := handler.NewReportHandler(registryService)
	nodeHandler := handler.NewNodeHandler(registryService)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ginEngine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := ginEngine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	ginEngine.Use(middleware.RequestID())
	ginEngine.Use(gin.Recovery())
	ginEngine.Use(middleware.RequestLogger(log))

	// Health check endpoint, registered before the account middleware so
	// probes need no credentials
	ginEngine.GET("/health", healthHandler(db))

	ginEngine.Use(middleware.RequireAccount())

	r := router.NewRouter(ginEngine)
	r.Register(contractHandler).
		Register(reportHandler).
		Register(nodeHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        ginEngine,
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

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	loop.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// billerFunc adapts a function to the scheduler.Biller interface, breaking
// the loop/engine construction cycle.
type billerFunc func(ctx context.Context, contractID uint64) error

func (f billerFunc) Bill(ctx context.Context, contractID uint64) error {
	return f(ctx, contractID)
}

// platformAccounts parses the configured well-known account ids.
func platformAccounts(cfg config.AccountsConfig) (billing.PlatformAccounts, error) {
	escrow, err := uuid.Parse(cfg.Escrow)
	if err != nil {
		return billing.PlatformAccounts{}, err
	}
	foundation, err := uuid.Parse(cfg.Foundation)
	if err != nil {
		return billing.PlatformAccounts{}, err
	}
	staking, err := uuid.Parse(cfg.Staking)
	if err != nil {
		return billing.PlatformAccounts{}, err
	}
	return billing.PlatformAccounts{Escrow: escrow, Foundation: foundation, Staking: staking}, nil
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
