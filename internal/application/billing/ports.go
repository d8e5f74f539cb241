package billing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/evertweb/programajava-sub002/internal/domain/entity"
	"github.com/evertweb/programajava-sub002/internal/domain/repository"
)

// BillingTxRunner ejecuta una función dentro de una transacción local de la base de facturación.
// No existe transacción compartida con el libro de inventario: la consistencia entre ambos
// la garantiza la compensación de la saga.
type BillingTxRunner interface {
	RunBilling(ctx context.Context, fn func(invoiceRepo repository.InvoiceRepository) error) error
}

// LedgerClient operaciones del servicio de inventario que usa la saga.
// CreateEntrada es idempotente por movementID. GetMovement y DeleteMovement devuelven
// domain.ErrNotFound si el movimiento ya no existe.
type LedgerClient interface {
	CreateEntrada(ctx context.Context, movementID, productID, invoiceID string, quantity, unitPrice decimal.Decimal) (*entity.Movement, error)
	GetMovement(ctx context.Context, id string) (*entity.Movement, error)
	DeleteMovement(ctx context.Context, id string) error
}

// CatalogClient lectura y alta de productos. GetProductByID devuelve (nil, nil) si no existe.
type CatalogClient interface {
	GetProductByID(ctx context.Context, id string) (*entity.Product, error)
	CreateProduct(ctx context.Context, name string, unitPrice decimal.Decimal, unit string) (*entity.Product, error)
}

// PartnersClient lectura de proveedores. Devuelve (nil, nil) si no existe.
type PartnersClient interface {
	GetSupplierByID(ctx context.Context, id string) (*entity.Supplier, error)
}
