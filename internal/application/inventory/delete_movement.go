package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/evertweb/programajava-sub002/internal/domain"
	"github.com/evertweb/programajava-sub002/internal/domain/entity"
	fifo "github.com/evertweb/programajava-sub002/internal/domain/inventory"
	"github.com/evertweb/programajava-sub002/internal/domain/repository"
)

// DeleteMovement revierte el efecto de un movimiento sobre el libro y lo elimina.
//   - ENTRADA: solo si nunca fue consumida (remaining == quantity) y ninguna asignación FIFO
//     la referencia; si no, ErrIntegrity.
//   - SALIDA: siempre; devuelve su cantidad a las entradas según la estrategia configurada.
func (uc *MovementUseCase) DeleteMovement(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id requerido", domain.ErrInvalidInput)
	}
	// Lectura previa solo para conocer el producto a bloquear; se relee dentro de la tx.
	probe, err := uc.movRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if probe == nil {
		return fmt.Errorf("%w: movimiento %s", domain.ErrNotFound, id)
	}

	unlock, err := uc.locker.Lock(ctx, probe.ProductID)
	if err != nil {
		return fmt.Errorf("bloquear producto %s: %w", probe.ProductID, err)
	}
	defer unlock()

	return uc.txRunner.Run(ctx, func(movRepo repository.MovementRepository, allocRepo repository.FifoAllocationRepository) error {
		if err := movRepo.LockProduct(ctx, probe.ProductID); err != nil {
			return err
		}
		mov, err := movRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if mov == nil {
			return fmt.Errorf("%w: movimiento %s", domain.ErrNotFound, id)
		}

		switch mov.Type {
		case entity.MovementTypeEntrada:
			if !mov.Untouched() {
				return fmt.Errorf("%w: la entrada %s tiene %s unidades consumidas",
					domain.ErrIntegrity, mov.ID, mov.Consumed())
			}
			referenced, err := allocRepo.ExistsForEntry(ctx, mov.ID)
			if err != nil {
				return err
			}
			if referenced {
				return fmt.Errorf("%w: la entrada %s está referenciada por asignaciones FIFO",
					domain.ErrIntegrity, mov.ID)
			}
		case entity.MovementTypeSalida:
			if err := uc.restoreFifoStock(ctx, movRepo, allocRepo, mov); err != nil {
				return err
			}
		}
		return movRepo.Delete(ctx, mov.ID)
	})
}

// restoreFifoStock devuelve la cantidad de la salida a las entradas del producto.
func (uc *MovementUseCase) restoreFifoStock(
	ctx context.Context,
	movRepo repository.MovementRepository,
	allocRepo repository.FifoAllocationRepository,
	exit *entity.Movement,
) error {
	entries, err := movRepo.ListEntriesNewestFirst(ctx, exit.ProductID)
	if err != nil {
		return err
	}
	fifo.SortNewestFirst(entries)

	var touched []fifo.Allocation
	strategy := uc.restoreStrategy
	if strategy == RestoreAllocations {
		allocs, err := allocRepo.ListByExit(ctx, exit.ID)
		if err != nil {
			return err
		}
		if len(allocs) > 0 && sumConsumed(allocs).Equal(exit.Quantity) {
			byID := make(map[string]*entity.Movement, len(entries))
			for _, e := range entries {
				byID[e.ID] = e
			}
			touched, err = fifo.RestoreFromAllocations(byID, allocs)
			if err != nil && !errors.Is(err, domain.ErrIntegrity) {
				return err
			}
			if err != nil {
				uc.log.Warn().Err(err).
					Str("movement_id", exit.ID).
					Msg("asignaciones FIFO no reproducibles; se usa restauración cronológica inversa")
				strategy = RestoreReverseChronological
			}
		} else {
			strategy = RestoreReverseChronological
		}
	}

	if strategy == RestoreReverseChronological {
		var left decimal.Decimal
		touched, left = fifo.RestoreReverseChronological(entries, exit.Quantity)
		if left.GreaterThan(decimal.Zero) {
			return fmt.Errorf("%w: no hay capacidad para devolver %s unidades de la salida %s",
				domain.ErrIntegrity, left, exit.ID)
		}
	}

	for _, a := range touched {
		if err := movRepo.UpdateRemaining(ctx, a.Entry.ID, a.Entry.RemainingQuantity); err != nil {
			return err
		}
	}
	if err := allocRepo.DeleteByExit(ctx, exit.ID); err != nil {
		return err
	}

	uc.log.Info().
		Str("product_id", exit.ProductID).
		Str("movement_id", exit.ID).
		Str("quantity", exit.Quantity.String()).
		Str("strategy", strategy).
		Int("entries_restored", len(touched)).
		Msg("stock FIFO restaurado por eliminación de salida")
	return nil
}

func sumConsumed(allocs []*entity.FifoAllocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocs {
		total = total.Add(a.ConsumedQty)
	}
	return total
}
