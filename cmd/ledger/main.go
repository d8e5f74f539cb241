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

	"github.com/evertweb/programajava-sub002/internal/application/inventory"
	"github.com/evertweb/programajava-sub002/internal/domain/repository"
	"github.com/evertweb/programajava-sub002/internal/infrastructure/memory"
	"github.com/evertweb/programajava-sub002/internal/infrastructure/postgres"
	"github.com/evertweb/programajava-sub002/internal/infrastructure/redislock"
	"github.com/evertweb/programajava-sub002/internal/infrastructure/remote"
	httpRouter "github.com/evertweb/programajava-sub002/internal/interfaces/http"
	"github.com/evertweb/programajava-sub002/pkg/config"
	"github.com/evertweb/programajava-sub002/pkg/logger"
)

func main() {
	cfg, err := config.Load(config.ServiceLedger)
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: config.ServiceLedger,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.App.StorageDriver).
		Str("restore_strategy", cfg.Ledger.RestoreStrategy).
		Msg("iniciando libro de movimientos")

	ctx := context.Background()

	var (
		txRunner inventory.TxRunner
		movRepo  repository.MovementRepository
	)
	switch cfg.App.StorageDriver {
	case config.StorageMemory:
		store := memory.NewLedgerStore()
		txRunner, movRepo = store, store.Movements()
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
	default:
		if cfg.DB.AutoMigrate {
			if err := postgres.Migrate(cfg.DB.ConnectionString(), postgres.SchemaLedger, log); err != nil {
				log.Fatal().Err(err).Msg("migraciones del libro")
			}
		}
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		txRunner, movRepo = postgres.NewTxRunner(pool), postgres.NewMovementRepository(pool)
	}

	// Lock por producto: Redis si hay varias réplicas, en proceso si no.
	var locker inventory.ProductLocker
	if cfg.Redis.URL != "" {
		rdb, err := redislock.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		locker = redislock.New(rdb, cfg.Redis.LockTTL, log)
	}

	retry := remote.RetryPolicy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		Multiplier:      cfg.Retry.Multiplier,
	}
	token := remote.ServiceToken(cfg.Auth.Secret, cfg.Auth.ServiceName, cfg.Auth.Issuer, cfg.Auth.TTL)
	catalog := remote.NewCatalogClient(remote.Options{
		BaseURL: cfg.Remote.CatalogURL, Timeout: cfg.Remote.Timeout, Retry: retry, Token: token, Logger: log,
	})
	fleet := remote.NewFleetClient(remote.Options{
		BaseURL: cfg.Remote.FleetURL, Timeout: cfg.Remote.Timeout, Retry: retry, Token: token, Logger: log,
	})

	movementUC := inventory.NewMovementUseCase(txRunner, movRepo, catalog, fleet, inventory.Options{
		RestoreStrategy: cfg.Ledger.RestoreStrategy,
		Locker:          locker,
		Logger:          log.Named("ledger"),
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	if cfg.App.SwaggerEnabled {
		// Swagger UI en local: http://localhost:<port>/docs
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: "./docs/ledger.swagger.json",
			Path:     "docs",
			Title:    "Fleet Ledger API",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.LedgerRouter(app, httpRouter.LedgerDeps{
		Movements:          movementUC,
		ServiceTokenSecret: cfg.Auth.Secret,
		ServiceTokenIssuer: cfg.Auth.Issuer,
		InternalCallers:    []string{config.ServiceInvoicing},
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("libro detenido")
}
