package postgres

import (
	"context"
	"fmt"

	"github.com/evertweb/programajava-sub002/internal/domain"
	"github.com/evertweb/programajava-sub002/internal/domain/entity"
	"github.com/evertweb/programajava-sub002/internal/domain/repository"
)

var _ repository.FifoAllocationRepository = (*FifoAllocationRepo)(nil)

// FifoAllocationRepo implementación de FifoAllocationRepository (usable con pool o tx).
type FifoAllocationRepo struct {
	q Querier
}

// NewFifoAllocationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewFifoAllocationRepository(q Querier) *FifoAllocationRepo {
	return &FifoAllocationRepo{q: q}
}

// Create persiste una asignación (entrada, salida).
func (r *FifoAllocationRepo) Create(ctx context.Context, a *entity.FifoAllocation) error {
	query := `
		INSERT INTO fifo_allocations (id, entry_id, exit_id, product_id, consumed_qty, price_at_entry, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query,
		a.ID, a.EntryID, a.ExitID, a.ProductID, a.ConsumedQty, a.PriceAtEntry, a.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: asignación con movimiento inexistente", domain.ErrIntegrity)
		}
		return fmt.Errorf("insert fifo allocation: %w", err)
	}
	return nil
}

// ListByExit asignaciones registradas para una salida.
func (r *FifoAllocationRepo) ListByExit(ctx context.Context, exitID string) ([]*entity.FifoAllocation, error) {
	query := `
		SELECT id, entry_id, exit_id, product_id, consumed_qty, price_at_entry, created_at
		FROM fifo_allocations WHERE exit_id = $1
		ORDER BY created_at ASC`
	rows, err := r.q.Query(ctx, query, exitID)
	if err != nil {
		return nil, fmt.Errorf("list fifo allocations: %w", err)
	}
	defer rows.Close()
	var list []*entity.FifoAllocation
	for rows.Next() {
		var a entity.FifoAllocation
		if err := rows.Scan(&a.ID, &a.EntryID, &a.ExitID, &a.ProductID, &a.ConsumedQty, &a.PriceAtEntry, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan fifo allocation: %w", err)
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}

// ExistsForEntry indica si alguna asignación referencia la entrada.
func (r *FifoAllocationRepo) ExistsForEntry(ctx context.Context, entryID string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM fifo_allocations WHERE entry_id = $1)`, entryID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists fifo allocation: %w", err)
	}
	return exists, nil
}

// DeleteByExit elimina las asignaciones de una salida.
func (r *FifoAllocationRepo) DeleteByExit(ctx context.Context, exitID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM fifo_allocations WHERE exit_id = $1`, exitID); err != nil {
		return fmt.Errorf("delete fifo allocations: %w", err)
	}
	return nil
}
