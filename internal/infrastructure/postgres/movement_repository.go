package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/evertweb/programajava-sub002/internal/domain"
	"github.com/evertweb/programajava-sub002/internal/domain/entity"
	"github.com/evertweb/programajava-sub002/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

const movementColumns = `id, seq, product_id, vehicle_id, invoice_id, type, quantity, unit_price,
	remaining_quantity, real_cost, real_unit_price, created_at`

// MovementRepo implementación sobre PostgreSQL (usable con pool o tx).
// Dentro de una tx (forUpdate) las lecturas de entradas toman FOR UPDATE.
type MovementRepo struct {
	q         Querier
	forUpdate bool
}

// NewMovementRepository construye el adaptador para lecturas fuera de transacción.
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

// newTxMovementRepository adaptador atado a una tx: bloquea las filas que lee.
func newTxMovementRepository(tx pgx.Tx) *MovementRepo {
	return &MovementRepo{q: tx, forUpdate: true}
}

// LockProduct toma un advisory lock de transacción por producto. Serializa también las
// ENTRADAs, que no tocan filas existentes y por eso no quedan cubiertas por FOR UPDATE.
func (r *MovementRepo) LockProduct(ctx context.Context, productID string) error {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, productID); err != nil {
		return fmt.Errorf("lock producto %s: %w", productID, err)
	}
	return nil
}

// Create persiste un movimiento y completa Seq.
func (r *MovementRepo) Create(ctx context.Context, m *entity.Movement) error {
	query := `
		INSERT INTO movements (id, product_id, vehicle_id, invoice_id, type, quantity, unit_price,
			remaining_quantity, real_cost, real_unit_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING seq`
	err := r.q.QueryRow(ctx, query,
		m.ID, m.ProductID, nullIfEmpty(m.VehicleID), nullIfEmpty(m.InvoiceID), m.Type,
		m.Quantity, m.UnitPrice, m.RemainingQuantity, m.RealCost, m.RealUnitPrice, m.CreatedAt,
	).Scan(&m.Seq)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: movimiento %s ya existe", domain.ErrConflict, m.ID)
		}
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// GetByID obtiene un movimiento por ID; (nil, nil) si no existe.
func (r *MovementRepo) GetByID(ctx context.Context, id string) (*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements WHERE id = $1`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}
	m, err := scanMovement(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	return m, nil
}

// Delete elimina el movimiento.
func (r *MovementRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM movements WHERE id = $1`, id); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: movimiento %s referenciado por asignaciones FIFO", domain.ErrIntegrity, id)
		}
		return fmt.Errorf("delete movement: %w", err)
	}
	return nil
}

// UpdateRemaining actualiza el saldo de una ENTRADA.
func (r *MovementRepo) UpdateRemaining(ctx context.Context, id string, remaining decimal.Decimal) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE movements SET remaining_quantity = $2 WHERE id = $1 AND type = 'ENTRADA'`, id, remaining)
	if err != nil {
		return fmt.Errorf("update remaining: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: entrada %s", domain.ErrNotFound, id)
	}
	return nil
}

// ListAvailableEntries entradas con saldo, más antigua primero.
func (r *MovementRepo) ListAvailableEntries(ctx context.Context, productID string) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements
		WHERE product_id = $1 AND type = 'ENTRADA' AND remaining_quantity > 0
		ORDER BY created_at ASC, seq ASC`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}
	return r.list(ctx, "list available entries", query, productID)
}

// ListEntriesNewestFirst todas las entradas del producto, más reciente primero.
func (r *MovementRepo) ListEntriesNewestFirst(ctx context.Context, productID string) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements
		WHERE product_id = $1 AND type = 'ENTRADA'
		ORDER BY created_at DESC, seq DESC`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}
	return r.list(ctx, "list entries", query, productID)
}

// SumQuantities devuelve Σ cantidad de ENTRADAs y de SALIDAs del producto.
func (r *MovementRepo) SumQuantities(ctx context.Context, productID string) (decimal.Decimal, decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(quantity) FILTER (WHERE type = 'ENTRADA'), 0),
		       COALESCE(SUM(quantity) FILTER (WHERE type = 'SALIDA'), 0)
		FROM movements WHERE product_id = $1`
	var entradas, salidas decimal.Decimal
	if err := r.q.QueryRow(ctx, query, productID).Scan(&entradas, &salidas); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("sum quantities: %w", err)
	}
	return entradas, salidas, nil
}

// ListByProduct movimientos del producto, más recientes primero.
func (r *MovementRepo) ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements
		WHERE product_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3`
	return r.list(ctx, "list by product", query, productID, limit, offset)
}

// ListByInvoice movimientos generados por una factura.
func (r *MovementRepo) ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements
		WHERE invoice_id = $1
		ORDER BY created_at ASC, seq ASC`
	return r.list(ctx, "list by invoice", query, invoiceID)
}

func (r *MovementRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.Movement, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	list := make([]*entity.Movement, 0)
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func scanMovement(row pgx.Row) (*entity.Movement, error) {
	var m entity.Movement
	var vehicleID, invoiceID *string
	if err := row.Scan(
		&m.ID, &m.Seq, &m.ProductID, &vehicleID, &invoiceID, &m.Type, &m.Quantity, &m.UnitPrice,
		&m.RemainingQuantity, &m.RealCost, &m.RealUnitPrice, &m.CreatedAt,
	); err != nil {
		return nil, err
	}
	m.VehicleID = derefString(vehicleID)
	m.InvoiceID = derefString(invoiceID)
	return &m, nil
}
