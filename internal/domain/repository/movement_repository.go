package repository

import (
	"context"

	"github.com/evertweb/programajava-sub002/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// MovementRepository define el puerto de persistencia del libro de movimientos.
// Las implementaciones se usan dentro de una transacción (TxRunner) para las mutaciones.
type MovementRepository interface {
	// LockProduct serializa las mutaciones del producto hasta el fin de la transacción.
	LockProduct(ctx context.Context, productID string) error
	Create(ctx context.Context, movement *entity.Movement) error
	// GetByID devuelve (nil, nil) si no existe.
	GetByID(ctx context.Context, id string) (*entity.Movement, error)
	Delete(ctx context.Context, id string) error
	UpdateRemaining(ctx context.Context, id string, remaining decimal.Decimal) error
	// ListAvailableEntries devuelve las ENTRADA con remaining > 0, de la más antigua a la más reciente.
	ListAvailableEntries(ctx context.Context, productID string) ([]*entity.Movement, error)
	// ListEntriesNewestFirst devuelve todas las ENTRADA del producto, de la más reciente a la más antigua.
	ListEntriesNewestFirst(ctx context.Context, productID string) ([]*entity.Movement, error)
	// SumQuantities devuelve Σ cantidad de ENTRADA y Σ cantidad de SALIDA del producto.
	SumQuantities(ctx context.Context, productID string) (entradas, salidas decimal.Decimal, err error)
	ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*entity.Movement, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.Movement, error)
}
