package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// FifoAllocation registra cuánto consumió una salida de una entrada concreta.
// Una fila por par (entrada, salida); permite revertir el consumo con exactitud.
type FifoAllocation struct {
	ID           string
	EntryID      string
	ExitID       string
	ProductID    string
	ConsumedQty  decimal.Decimal
	PriceAtEntry decimal.Decimal
	CreatedAt    time.Time
}
