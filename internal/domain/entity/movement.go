package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimiento del libro de inventario.
const (
	MovementTypeEntrada = "ENTRADA" // compra recibida en inventario
	MovementTypeSalida  = "SALIDA"  // despacho/consumo (p. ej. a un vehículo)
)

// Movement es una entrada del libro de movimientos (append-mostly).
// Quantity y UnitPrice no se editan tras la creación; solo RemainingQuantity cambia
// (consumo FIFO y restauración).
type Movement struct {
	ID        string
	Seq       int64 // desempate de orden cuando dos movimientos comparten CreatedAt
	ProductID string
	VehicleID string // opcional
	InvoiceID string // opcional
	Type      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal // snapshot al momento de creación
	// RemainingQuantity solo aplica a ENTRADA: 0 <= RemainingQuantity <= Quantity.
	RemainingQuantity decimal.Decimal
	// RealCost y RealUnitPrice solo aplican a SALIDA: costo FIFO efectivamente consumido.
	RealCost      decimal.Decimal
	RealUnitPrice decimal.Decimal
	CreatedAt     time.Time
}

// IsEntrada indica si el movimiento es una entrada.
func (m *Movement) IsEntrada() bool { return m.Type == MovementTypeEntrada }

// IsSalida indica si el movimiento es una salida.
func (m *Movement) IsSalida() bool { return m.Type == MovementTypeSalida }

// Consumed devuelve la cantidad ya consumida de una entrada.
func (m *Movement) Consumed() decimal.Decimal {
	return m.Quantity.Sub(m.RemainingQuantity)
}

// Untouched indica que ninguna salida ha consumido la entrada.
func (m *Movement) Untouched() bool {
	return m.RemainingQuantity.Equal(m.Quantity)
}
