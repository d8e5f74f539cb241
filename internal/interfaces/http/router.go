package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/evertweb/programajava-sub002/internal/application/billing"
	"github.com/evertweb/programajava-sub002/internal/application/inventory"
)

// LedgerDeps dependencias del router del libro.
type LedgerDeps struct {
	Movements          *inventory.MovementUseCase
	ServiceTokenSecret string
	ServiceTokenIssuer string
	// InternalCallers servicios autorizados en /api/internal (vacío = cualquiera con token válido).
	InternalCallers []string
}

// LedgerRouter registra las rutas del servicio de libro.
func LedgerRouter(app *fiber.App, deps LedgerDeps) {
	api := app.Group("/api")
	h := NewMovementHandler(deps.Movements)

	movements := api.Group("/movements")
	movements.Post("/", h.Create)
	movements.Post("/salida", h.CreateSalida)
	movements.Get("/", h.List)
	movements.Get("/:id", h.GetByID)
	movements.Delete("/:id", h.Delete)

	stock := api.Group("/stock")
	stock.Get("/:productId", h.Stock)
	stock.Get("/:productId/average-price", h.AveragePrice)
	stock.Get("/:productId/consistency", h.Consistency)

	// Rutas internas (token de servicio): las usa la saga de facturación.
	internal := api.Group("/internal", ServiceAuthMiddleware(deps.ServiceTokenSecret, deps.ServiceTokenIssuer, deps.InternalCallers...))
	internal.Post("/movements/entrada", h.CreateEntrada)
	internal.Get("/movements/:id", h.GetByID)
	internal.Delete("/movements/:id", h.Delete)
}

// InvoicingDeps dependencias del router de facturación.
type InvoicingDeps struct {
	Invoices *billing.CreateInvoiceUseCase
}

// InvoicingRouter registra las rutas del servicio de facturación.
func InvoicingRouter(app *fiber.App, deps InvoicingDeps) {
	invoices := app.Group("/api/invoices")
	h := NewInvoiceHandler(deps.Invoices)
	invoices.Post("/", h.Create)
	invoices.Get("/:id", h.GetByID)
	invoices.Post("/:id/cancel", h.Cancel)
}
