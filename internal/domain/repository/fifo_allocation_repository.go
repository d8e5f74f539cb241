package repository

import (
	"context"

	"github.com/evertweb/programajava-sub002/internal/domain/entity"
)

// FifoAllocationRepository persiste las asignaciones (entrada, salida) del consumo FIFO.
type FifoAllocationRepository interface {
	Create(ctx context.Context, allocation *entity.FifoAllocation) error
	ListByExit(ctx context.Context, exitID string) ([]*entity.FifoAllocation, error)
	// ExistsForEntry indica si alguna asignación referencia la entrada.
	ExistsForEntry(ctx context.Context, entryID string) (bool, error)
	DeleteByExit(ctx context.Context, exitID string) error
}
