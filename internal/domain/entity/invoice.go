package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de la factura de proveedor.
const (
	InvoiceStatusPendiente = "PENDIENTE"
	InvoiceStatusAnulada   = "ANULADA"
)

// Invoice representa la cabecera de una factura de compra a proveedor.
type Invoice struct {
	ID         string
	Number     string
	SupplierID string
	IssueDate  time.Time
	DueDate    time.Time
	Subtotal   decimal.Decimal
	IVA        decimal.Decimal
	Total      decimal.Decimal
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
