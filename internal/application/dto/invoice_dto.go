package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateInvoiceRequest body para POST /api/invoices.
type CreateInvoiceRequest struct {
	SupplierID string               `json:"supplier_id"`
	Number     string               `json:"number,omitempty"`
	IssueDate  *time.Time           `json:"issue_date,omitempty"`
	DueDate    *time.Time           `json:"due_date,omitempty"`
	Items      []InvoiceItemRequest `json:"items"`
}

// InvoiceItemRequest línea de la factura. Si ProductID no existe en catálogo y se envía
// ProductName, el producto se crea durante la saga.
type InvoiceItemRequest struct {
	ProductID   string           `json:"product_id,omitempty"`
	ProductName string           `json:"product_name,omitempty"`
	Unit        string           `json:"unit,omitempty"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	IVAPercent  *decimal.Decimal `json:"iva_percent,omitempty"`
}

// InvoiceResponse factura con su detalle.
type InvoiceResponse struct {
	ID         string                  `json:"id"`
	Number     string                  `json:"number"`
	SupplierID string                  `json:"supplier_id"`
	IssueDate  string                  `json:"issue_date"`
	DueDate    string                  `json:"due_date"`
	Subtotal   decimal.Decimal         `json:"subtotal"`
	IVA        decimal.Decimal         `json:"iva"`
	Total      decimal.Decimal         `json:"total"`
	Status     string                  `json:"status"`
	Details    []InvoiceDetailResponse `json:"details"`
}

// InvoiceDetailResponse línea de detalle.
type InvoiceDetailResponse struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	IVAPercent  decimal.Decimal `json:"iva_percent"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	IVA         decimal.Decimal `json:"iva"`
	MovementID  string          `json:"movement_id,omitempty"`
}

// SagaErrorResponse cuerpo de error cuando la saga de facturación falla.
type SagaErrorResponse struct {
	Code                 string   `json:"code"`
	Message              string   `json:"message"`
	State                string   `json:"state"`
	FailedAt             string   `json:"failed_at"`
	CompletedSteps       []string `json:"completed_steps"`
	CompensationFailures []string `json:"compensation_failures,omitempty"`
}
