package entity

import "github.com/shopspring/decimal"

// InvoiceDetail representa una línea de detalle de una factura.
// MovementID se completa solo después de crear la ENTRADA remota en el libro.
type InvoiceDetail struct {
	ID          string
	InvoiceID   string
	LineNumber  int
	ProductID   string
	ProductName string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	IVAPercent  decimal.Decimal // porcentaje, p. ej. 13 = 13%
	Subtotal    decimal.Decimal
	IVA         decimal.Decimal
	MovementID  string
}
