package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evertweb/programajava-sub002/internal/application/billing"
	"github.com/evertweb/programajava-sub002/internal/application/inventory"
	"github.com/evertweb/programajava-sub002/internal/domain/repository"
)

var _ inventory.TxRunner = (*TxRunner)(nil)
var _ billing.BillingTxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
// Cada servicio usa el método de su propia base: Run el libro, RunBilling la facturación.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción, ejecuta fn con repos del libro atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	allocRepo repository.FifoAllocationRepository,
) error) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		return fn(newTxMovementRepository(tx), NewFifoAllocationRepository(tx))
	})
}

// RunBilling inicia una transacción con el repositorio de facturas.
func (r *TxRunner) RunBilling(ctx context.Context, fn func(invoiceRepo repository.InvoiceRepository) error) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		return fn(NewInvoiceRepository(tx))
	})
}

func (r *TxRunner) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
