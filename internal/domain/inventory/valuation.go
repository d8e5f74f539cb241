package inventory

import (
	"github.com/evertweb/programajava-sub002/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// PricePrecision decimales del precio promedio ponderado.
const PricePrecision = 4

// AvailableQuantity suma RemainingQuantity de las entradas con saldo.
func AvailableQuantity(entries []*entity.Movement) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.IsEntrada() && e.RemainingQuantity.GreaterThan(decimal.Zero) {
			total = total.Add(e.RemainingQuantity)
		}
	}
	return total
}

// Stock = Σ cantidad(ENTRADA) - Σ cantidad(SALIDA).
func Stock(entradas, salidas decimal.Decimal) decimal.Decimal {
	return entradas.Sub(salidas)
}

// WeightedAveragePrice = Σ(remaining × precio) / Σ remaining sobre entradas con saldo.
// Con stock cero devuelve 0.
func WeightedAveragePrice(entries []*entity.Movement) decimal.Decimal {
	qty := decimal.Zero
	value := decimal.Zero
	for _, e := range entries {
		if !e.IsEntrada() || !e.RemainingQuantity.GreaterThan(decimal.Zero) {
			continue
		}
		qty = qty.Add(e.RemainingQuantity)
		value = value.Add(e.RemainingQuantity.Mul(e.UnitPrice))
	}
	if qty.IsZero() {
		return decimal.Zero
	}
	return value.DivRound(qty, PricePrecision)
}
