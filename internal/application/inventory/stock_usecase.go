package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/evertweb/programajava-sub002/internal/domain"
	fifo "github.com/evertweb/programajava-sub002/internal/domain/inventory"
)

// LedgerConsistency resultado de evaluar el invariante del libro para un producto:
// Σ cantidad(ENTRADA) - Σ cantidad(SALIDA) == Σ remaining(ENTRADA).
type LedgerConsistency struct {
	ProductID  string
	Entradas   decimal.Decimal
	Salidas    decimal.Decimal
	Stock      decimal.Decimal
	Remaining  decimal.Decimal
	Consistent bool
}

// GetStock devuelve Σ cantidad(ENTRADA) - Σ cantidad(SALIDA).
func (uc *MovementUseCase) GetStock(ctx context.Context, productID string) (decimal.Decimal, error) {
	if productID == "" {
		return decimal.Zero, fmt.Errorf("%w: product_id requerido", domain.ErrInvalidInput)
	}
	entradas, salidas, err := uc.movRepo.SumQuantities(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return fifo.Stock(entradas, salidas), nil
}

// GetWeightedAveragePrice valoriza el stock restante; 0 si no hay stock.
func (uc *MovementUseCase) GetWeightedAveragePrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	if productID == "" {
		return decimal.Zero, fmt.Errorf("%w: product_id requerido", domain.ErrInvalidInput)
	}
	entries, err := uc.movRepo.ListAvailableEntries(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return fifo.WeightedAveragePrice(entries), nil
}

// CheckConsistency evalúa el invariante del libro bajo el lock del producto.
func (uc *MovementUseCase) CheckConsistency(ctx context.Context, productID string) (*LedgerConsistency, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: product_id requerido", domain.ErrInvalidInput)
	}
	unlock, err := uc.locker.Lock(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("bloquear producto %s: %w", productID, err)
	}
	defer unlock()

	entradas, salidas, err := uc.movRepo.SumQuantities(ctx, productID)
	if err != nil {
		return nil, err
	}
	entries, err := uc.movRepo.ListAvailableEntries(ctx, productID)
	if err != nil {
		return nil, err
	}
	stock := fifo.Stock(entradas, salidas)
	remaining := fifo.AvailableQuantity(entries)
	res := &LedgerConsistency{
		ProductID:  productID,
		Entradas:   entradas,
		Salidas:    salidas,
		Stock:      stock,
		Remaining:  remaining,
		Consistent: stock.Equal(remaining),
	}
	if !res.Consistent {
		uc.log.Error().
			Str("product_id", productID).
			Str("stock", stock.String()).
			Str("remaining", remaining.String()).
			Msg("libro inconsistente")
	}
	return res, nil
}
