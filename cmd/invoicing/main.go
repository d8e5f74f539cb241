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

	"github.com/evertweb/programajava-sub002/internal/application/billing"
	"github.com/evertweb/programajava-sub002/internal/domain/repository"
	"github.com/evertweb/programajava-sub002/internal/infrastructure/memory"
	"github.com/evertweb/programajava-sub002/internal/infrastructure/postgres"
	"github.com/evertweb/programajava-sub002/internal/infrastructure/remote"
	httpRouter "github.com/evertweb/programajava-sub002/internal/interfaces/http"
	"github.com/evertweb/programajava-sub002/pkg/config"
	"github.com/evertweb/programajava-sub002/pkg/logger"
)

func main() {
	cfg, err := config.Load(config.ServiceInvoicing)
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: config.ServiceInvoicing,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.App.StorageDriver).
		Str("ledger_url", cfg.Remote.LedgerURL).
		Msg("iniciando servicio de facturación")

	ctx := context.Background()

	var (
		txRunner    billing.BillingTxRunner
		invoiceRepo repository.InvoiceRepository
	)
	switch cfg.App.StorageDriver {
	case config.StorageMemory:
		store := memory.NewInvoiceStore()
		txRunner, invoiceRepo = store, store.Invoices()
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
	default:
		if cfg.DB.AutoMigrate {
			if err := postgres.Migrate(cfg.DB.ConnectionString(), postgres.SchemaInvoicing, log); err != nil {
				log.Fatal().Err(err).Msg("migraciones de facturación")
			}
		}
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		txRunner, invoiceRepo = postgres.NewTxRunner(pool), postgres.NewInvoiceRepository(pool)
	}

	retry := remote.RetryPolicy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		Multiplier:      cfg.Retry.Multiplier,
	}
	token := remote.ServiceToken(cfg.Auth.Secret, cfg.Auth.ServiceName, cfg.Auth.Issuer, cfg.Auth.TTL)
	opts := func(baseURL string) remote.Options {
		return remote.Options{BaseURL: baseURL, Timeout: cfg.Remote.Timeout, Retry: retry, Token: token, Logger: log}
	}

	invoiceUC := billing.NewCreateInvoiceUseCase(
		txRunner, invoiceRepo,
		remote.NewLedgerClient(opts(cfg.Remote.LedgerURL)),
		remote.NewCatalogClient(opts(cfg.Remote.CatalogURL)),
		remote.NewPartnersClient(opts(cfg.Remote.PartnersURL)),
		billing.BillingConfig{
			DefaultIVAPercent:   cfg.Billing.DefaultIVAPercent,
			DueDays:             cfg.Billing.DueDays,
			CompensationTimeout: cfg.Billing.CompensationTimeout,
		},
		log,
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 60,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	if cfg.App.SwaggerEnabled {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: "./docs/invoicing.swagger.json",
			Path:     "docs",
			Title:    "Fleet Invoicing API",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.InvoicingRouter(app, httpRouter.InvoicingDeps{Invoices: invoiceUC})

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

	log.Info().Msg("servicio de facturación detenido")
}
