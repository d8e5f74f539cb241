package inventory

import (
	"context"

	"github.com/evertweb/programajava-sub002/internal/domain/entity"
	"github.com/evertweb/programajava-sub002/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Garantiza atomicidad para el motor FIFO: o se aplican todas las filas o ninguna.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		movRepo repository.MovementRepository,
		allocRepo repository.FifoAllocationRepository,
	) error) error
}

// ProductCatalog consulta el servicio de catálogo. Devuelve (nil, nil) si el producto no existe.
type ProductCatalog interface {
	GetProductByID(ctx context.Context, id string) (*entity.Product, error)
}

// FleetDirectory consulta el servicio de flota. Devuelve (nil, nil) si el vehículo no existe.
type FleetDirectory interface {
	GetVehicleByID(ctx context.Context, id string) (*entity.Vehicle, error)
}

// ProductLocker exclusión mutua por producto. unlock debe llamarse siempre tras un Lock exitoso.
type ProductLocker interface {
	Lock(ctx context.Context, productID string) (unlock func(), err error)
}
