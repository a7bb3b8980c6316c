package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/pos-ledger/internal/application/audit"
	"github.com/jhoicas/pos-ledger/internal/application/inventory"
	"github.com/jhoicas/pos-ledger/internal/application/promotion"
	"github.com/jhoicas/pos-ledger/internal/application/sales"
	"github.com/jhoicas/pos-ledger/internal/application/usecase"
	"github.com/jhoicas/pos-ledger/internal/infrastructure/cache"
	"github.com/jhoicas/pos-ledger/internal/infrastructure/kafka"
	infrapdf "github.com/jhoicas/pos-ledger/internal/infrastructure/pdf"
	"github.com/jhoicas/pos-ledger/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/pos-ledger/internal/interfaces/http"
	"github.com/jhoicas/pos-ledger/pkg/config"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET requerido")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if cfg.DB.AutoMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("migración del esquema")
		}
	}

	productRepo := postgres.NewProductRepository(pool)
	movementRepo := postgres.NewStockMovementRepository(pool)
	promotionRepo := postgres.NewPromotionRepository(pool)
	saleRepo := postgres.NewSaleRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Caché de promociones: Redis si está configurado; si no responde se sigue sin caché.
	var promoCache promotion.CandidateCache = cache.NoopPromotionCache{}
	if cfg.Redis.Enabled() {
		redisCache := cache.NewRedisPromotionCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis no disponible, promociones sin caché")
		} else {
			promoCache = redisCache
			defer redisCache.Close()
		}
		cancelPing()
	}

	emitter := audit.NewEmitter()
	ledgerUC := inventory.NewLedgerUseCase(txRunner, productRepo, movementRepo, emitter, log, cfg.Sales.MaxRetries)
	productUC := usecase.NewProductUseCase(txRunner, productRepo, ledgerUC, emitter, log)
	resolver := promotion.NewResolver(promotionRepo, promoCache, cfg.Redis.PromoTTL, log)
	promotionUC := promotion.NewUseCase(txRunner, promotionRepo, productRepo, resolver, emitter, log)
	salesEngine := sales.NewEngine(txRunner, resolver, ledgerUC, saleRepo, emitter, log, cfg.Sales.MaxRetries)

	// PDF: recibo POS de la venta
	receiptUC := sales.NewReceiptUseCase(saleRepo, productRepo, infrapdf.NewReceiptGenerator(), cfg.App.StoreName)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	go promotionUC.RunActivator(bgCtx, cfg.Sales.PromoActivationInterval)

	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		defer producer.Close()
		relay := audit.NewRelay(auditRepo, producer, cfg.Kafka.RelayBatchSize, cfg.Kafka.RelayInterval, log)
		go relay.Run(bgCtx)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.AuditTopic).Msg("relay de auditoría activo")
	} else {
		log.Warn().Msg("KAFKA_BROKERS vacío: los registros de auditoría quedan pendientes en el outbox")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	app.Use(httpRouter.RequestLogger(log))

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "POS Ledger API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "service": cfg.App.Name})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		ProductUC:   productUC,
		Ledger:      ledgerUC,
		PromotionUC: promotionUC,
		Sales:       salesEngine,
		Receipts:    receiptUC,
		JWTSecret:   cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	stopBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
