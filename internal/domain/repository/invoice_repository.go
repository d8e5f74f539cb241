package repository

import (
	"context"
	"time"

	"github.com/evertweb/programajava-sub002/internal/domain/entity"
)

// InvoiceRepository define el puerto de persistencia para Invoice y detalles.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	CreateDetail(ctx context.Context, detail *entity.InvoiceDetail) error
	// LinkMovement asigna el movimiento del libro a una línea de detalle; un id vacío la desvincula.
	LinkMovement(ctx context.Context, detailID, movementID string) error
	UpdateStatus(ctx context.Context, id, status string, updatedAt time.Time) error
	// GetByID devuelve (nil, nil) si no existe.
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	GetDetailsByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.InvoiceDetail, error)
	// Delete elimina la factura y sus detalles; no falla si ya no existe.
	Delete(ctx context.Context, id string) error
}
