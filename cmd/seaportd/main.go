package main

import (
	"context"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/immutable/seaport/internal/conduit"
	"github.com/immutable/seaport/internal/config"
	"github.com/immutable/seaport/internal/engine"
	"github.com/immutable/seaport/internal/handler"
	"github.com/immutable/seaport/internal/ledger"
	"github.com/immutable/seaport/internal/middleware"
	"github.com/immutable/seaport/internal/pkg/logger"
	"github.com/immutable/seaport/internal/repository"
	"github.com/immutable/seaport/internal/service"
	"github.com/immutable/seaport/internal/signer"
	"github.com/immutable/seaport/internal/zone"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	// 3. Connect Persistence Backends
	var redisClient *repository.RedisClient
	var gormDB *gorm.DB

	if cfg.Redis.Addr != "" {
		client, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			redisClient = client
		} else {
			logger.Error("⚠️ Failed to connect to Redis", "error", err)
		}
	}
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("✅ Connected to PostgreSQL")
			gormDB = db
		} else {
			logger.Error("⚠️ Failed to connect to PostgreSQL", "error", err)
		}
	}

	// Order status store (configured backend, memory fallback)
	var store engine.OrderStore
	switch cfg.Store.Backend {
	case "redis":
		if redisClient != nil {
			store = repository.NewRedisOrderStore(redisClient)
		} else {
			logger.Warn("⚠️ Redis unavailable, order store falling back to memory")
		}
	case "postgres":
		if gormDB != nil {
			store = repository.NewPostgresOrderStore(gormDB)
		} else {
			logger.Warn("⚠️ PostgreSQL unavailable, order store falling back to memory")
		}
	}
	if store == nil {
		store = repository.NewMemoryStore()
	}

	// Idempotency replay cache (Redis > Postgres > Memory)
	var idemStore middleware.IdempotencyStore
	var pgIdemStore *repository.PostgresIdempotencyStore
	switch {
	case redisClient != nil:
		idemStore = repository.NewRedisIdempotencyStore(redisClient, time.Duration(cfg.Redis.IdempotencyTTLSeconds)*time.Second)
	case gormDB != nil:
		pgIdemStore = repository.NewPostgresIdempotencyStore(gormDB)
		idemStore = pgIdemStore
	default:
		idemStore = middleware.NewInMemIdempotencyStore()
	}

	// Audit persistence (Postgres > Redis > file-only)
	var auditRepo service.AuditRepo
	var pgAuditRepo *repository.PostgresAuditRepo
	switch {
	case gormDB != nil:
		pgAuditRepo = repository.NewPostgresAuditRepo(gormDB)
		auditRepo = pgAuditRepo
	case redisClient != nil:
		auditRepo = repository.NewRedisAuditRepo(redisClient, cfg.Redis.AuditListKey, cfg.Redis.AuditListMax)
	}

	// 4. Build the Settlement Core
	led := ledger.New()
	for _, alloc := range cfg.Ledger.Allocations {
		if !common.IsHexAddress(alloc.Address) {
			log.Fatalf("Invalid genesis allocation address: %q", alloc.Address)
		}
		amount, ok := new(big.Int).SetString(alloc.Amount, 10)
		if !ok || amount.Sign() < 0 {
			log.Fatalf("Invalid genesis allocation amount: %q", alloc.Amount)
		}
		led.MintNative(common.HexToAddress(alloc.Address), amount)
	}

	zones := zone.NewRegistry()
	for _, zc := range cfg.Zones {
		if !common.IsHexAddress(zc.Address) {
			log.Fatalf("Invalid zone address: %q", zc.Address)
		}
		addr := common.HexToAddress(zc.Address)
		switch zc.Type {
		case "signed":
			signers := make([]common.Address, 0, len(zc.Signers))
			for _, s := range zc.Signers {
				if !common.IsHexAddress(s) {
					log.Fatalf("Invalid zone signer address: %q", s)
				}
				signers = append(signers, common.HexToAddress(s))
			}
			zones.Register(addr, zone.NewSignedZone(cfg.Chain.ChainID, addr, signers...))
		default:
			zones.Register(addr, zone.OpenZone{})
		}
	}

	if !common.IsHexAddress(cfg.Chain.VerifyingContract) {
		log.Fatalf("Invalid verifying contract address: %q", cfg.Chain.VerifyingContract)
	}
	hasher := signer.NewHasher(cfg.Chain.ChainID, common.HexToAddress(cfg.Chain.VerifyingContract))
	eng := engine.New(hasher, store, zones, conduit.NewRouter(led))

	// 5. Initialize Services and Handlers
	settlementSvc := service.NewSettlementService(eng, led)

	auditSvc, err := service.NewAuditService(cfg.Audit.Dir, cfg.Audit.BufferSize, auditRepo)
	if err != nil {
		log.Fatalf("Failed to initialize audit service: %v", err)
	}

	settlementHandler := handler.NewSettlementHandler(settlementSvc)
	adminHandler := handler.NewAdminHandler(settlementSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)

	// Postgres retention sweeps
	if pgIdemStore != nil || pgAuditRepo != nil {
		go runCleanup(cfg, pgIdemStore, pgAuditRepo)
	}

	// 6. Setup Router
	r := gin.Default()

	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	if cfg.Audit.Enabled {
		r.Use(middleware.AuditMiddleware(auditSvc))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "seaport", "halted": settlementSvc.Halted()})
	})

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg))
	v1.Use(middleware.ReadOnlyMiddleware(cfg.Auth.ReadOnly))
	v1.Use(middleware.RateLimitMiddleware(cfg))
	v1.Use(middleware.IdempotencyMiddleware(idemStore))
	{
		orders := v1.Group("/orders")
		orders.POST("/fulfill", settlementHandler.FulfillOrder)
		orders.POST("/fulfill-advanced", settlementHandler.FulfillAdvancedOrder)
		orders.POST("/fulfill-available", settlementHandler.FulfillAvailableOrders)
		orders.POST("/fulfill-available-advanced", settlementHandler.FulfillAvailableAdvancedOrders)
		orders.POST("/match", settlementHandler.MatchOrders)
		orders.POST("/match-advanced", settlementHandler.MatchAdvancedOrders)
		orders.POST("/cancel", settlementHandler.CancelOrders)
		orders.POST("/validate", settlementHandler.ValidateOrders)
		orders.POST("/hash", settlementHandler.HashOrder)
		orders.GET("/:hash/status", settlementHandler.GetOrderStatus)

		v1.GET("/counters/:offerer", settlementHandler.GetCounter)
		v1.POST("/counters/:offerer/increment", settlementHandler.IncrementCounter)

		admin := v1.Group("/admin")
		admin.Use(middleware.AdminMiddleware(cfg))
		{
			admin.POST("/mint", adminHandler.Mint)
			admin.GET("/balances/:account", adminHandler.GetBalances)
			admin.POST("/halt", adminHandler.Halt)
			admin.DELETE("/halt", adminHandler.Resume)
			admin.GET("/audit-logs", auditHandler.List)
		}
	}

	// 7. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 Seaport settlement gateway started",
			"port", cfg.Server.Port,
			"chain_id", cfg.Chain.ChainID,
			"store", cfg.Store.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	auditSvc.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}

// runCleanup ages out idempotency keys and audit rows on the configured
// interval so the tables do not grow without bound.
func runCleanup(cfg *config.Config, idem *repository.PostgresIdempotencyStore, audit *repository.PostgresAuditRepo) {
	interval := time.Duration(cfg.Database.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if idem != nil {
			if err := idem.Cleanup(ctx, time.Duration(cfg.Database.IdempotencyRetentionHours)*time.Hour); err != nil {
				logger.Error("idempotency cleanup failed", "error", err)
			}
		}
		if audit != nil {
			if err := audit.Cleanup(ctx, time.Duration(cfg.Database.AuditRetentionDays)*24*time.Hour); err != nil {
				logger.Error("audit cleanup failed", "error", err)
			}
		}
		cancel()
	}
}
