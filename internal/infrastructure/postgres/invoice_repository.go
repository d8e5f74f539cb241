package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/evertweb/programajava-sub002/internal/domain"
	"github.com/evertweb/programajava-sub002/internal/domain/entity"
	"github.com/evertweb/programajava-sub002/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

// Create persiste la cabecera de la factura.
func (r *InvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		INSERT INTO invoices (id, number, supplier_id, issue_date, due_date, subtotal, iva, total, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		invoice.ID, invoice.Number, invoice.SupplierID, invoice.IssueDate, invoice.DueDate,
		invoice.Subtotal, invoice.IVA, invoice.Total, invoice.Status,
		invoice.CreatedAt, invoice.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: la factura %s ya existe para el proveedor", domain.ErrConflict, invoice.Number)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// CreateDetail persiste una línea de detalle.
func (r *InvoiceRepo) CreateDetail(ctx context.Context, detail *entity.InvoiceDetail) error {
	query := `
		INSERT INTO invoice_details (id, invoice_id, line_number, product_id, product_name, quantity, unit_price,
			iva_percent, subtotal, iva, movement_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		detail.ID, detail.InvoiceID, detail.LineNumber, detail.ProductID, detail.ProductName,
		detail.Quantity, detail.UnitPrice, detail.IVAPercent, detail.Subtotal, detail.IVA,
		nullIfEmpty(detail.MovementID),
	)
	if err != nil {
		return fmt.Errorf("insert invoice detail: %w", err)
	}
	return nil
}

// LinkMovement asigna el movimiento del libro a una línea.
func (r *InvoiceRepo) LinkMovement(ctx context.Context, detailID, movementID string) error {
	tag, err := r.q.Exec(ctx, `UPDATE invoice_details SET movement_id = $2 WHERE id = $1`, detailID, nullIfEmpty(movementID))
	if err != nil {
		return fmt.Errorf("link movement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: detalle %s", domain.ErrNotFound, detailID)
	}
	return nil
}

// UpdateStatus cambia el estado de la factura.
func (r *InvoiceRepo) UpdateStatus(ctx context.Context, id, status string, updatedAt time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE invoices SET status = $2, updated_at = $3 WHERE id = $1`, id, status, updatedAt)
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: factura %s", domain.ErrNotFound, id)
	}
	return nil
}

// GetByID obtiene la cabecera; (nil, nil) si no existe.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	query := `
		SELECT id, number, supplier_id, issue_date, due_date, subtotal, iva, total, status, created_at, updated_at
		FROM invoices WHERE id = $1`
	var inv entity.Invoice
	err := r.q.QueryRow(ctx, query, id).Scan(
		&inv.ID, &inv.Number, &inv.SupplierID, &inv.IssueDate, &inv.DueDate,
		&inv.Subtotal, &inv.IVA, &inv.Total, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return &inv, nil
}

// GetDetailsByInvoiceID líneas de la factura en orden.
func (r *InvoiceRepo) GetDetailsByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.InvoiceDetail, error) {
	query := `
		SELECT id, invoice_id, line_number, product_id, product_name, quantity, unit_price,
		       iva_percent, subtotal, iva, movement_id
		FROM invoice_details WHERE invoice_id = $1
		ORDER BY line_number`
	rows, err := r.q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get invoice details: %w", err)
	}
	defer rows.Close()
	var list []*entity.InvoiceDetail
	for rows.Next() {
		var d entity.InvoiceDetail
		var movementID *string
		if err := rows.Scan(&d.ID, &d.InvoiceID, &d.LineNumber, &d.ProductID, &d.ProductName,
			&d.Quantity, &d.UnitPrice, &d.IVAPercent, &d.Subtotal, &d.IVA, &movementID); err != nil {
			return nil, fmt.Errorf("scan invoice detail: %w", err)
		}
		d.MovementID = derefString(movementID)
		list = append(list, &d)
	}
	return list, rows.Err()
}

// Delete elimina la factura; los detalles caen por ON DELETE CASCADE.
func (r *InvoiceRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	return nil
}
