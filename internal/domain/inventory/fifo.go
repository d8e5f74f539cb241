package inventory

import (
	"fmt"
	"sort"

	"github.com/evertweb/programajava-sub002/internal/domain"
	"github.com/evertweb/programajava-sub002/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// UnitPricePrecision decimales del precio unitario real de una salida (620/60 -> 10.3333).
const UnitPricePrecision = 4

// Allocation cantidad tomada de (o devuelta a) una entrada concreta.
type Allocation struct {
	Entry    *entity.Movement
	Quantity decimal.Decimal
}

// ConsumeResult resultado del consumo FIFO de una salida.
type ConsumeResult struct {
	Allocations   []Allocation
	RealCost      decimal.Decimal
	RealUnitPrice decimal.Decimal
}

// SortOldestFirst ordena entradas por CreatedAt ascendente (Seq como desempate).
func SortOldestFirst(entries []*entity.Movement) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Seq < b.Seq
	})
}

// SortNewestFirst ordena entradas por CreatedAt descendente (Seq como desempate).
func SortNewestFirst(entries []*entity.Movement) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Seq > b.Seq
	})
}

// Consume descuenta quantity de las entradas (ya ordenadas de la más antigua a la más reciente).
// Verifica el total disponible antes de tocar cualquier fila: si no alcanza, devuelve
// ErrInsufficientStock y ninguna entrada queda modificada.
func Consume(entries []*entity.Movement, quantity decimal.Decimal) (*ConsumeResult, error) {
	if !quantity.GreaterThan(decimal.Zero) {
		return nil, fmt.Errorf("%w: la cantidad debe ser mayor que cero", domain.ErrInvalidInput)
	}
	available := AvailableQuantity(entries)
	if available.LessThan(quantity) {
		return nil, fmt.Errorf("%w: disponible %s, solicitado %s", domain.ErrInsufficientStock, available, quantity)
	}

	res := &ConsumeResult{RealCost: decimal.Zero}
	stillNeeded := quantity
	for _, e := range entries {
		if stillNeeded.IsZero() {
			break
		}
		if !e.RemainingQuantity.GreaterThan(decimal.Zero) {
			continue
		}
		take := decimal.Min(e.RemainingQuantity, stillNeeded)
		e.RemainingQuantity = e.RemainingQuantity.Sub(take)
		res.Allocations = append(res.Allocations, Allocation{Entry: e, Quantity: take})
		res.RealCost = res.RealCost.Add(take.Mul(e.UnitPrice))
		stillNeeded = stillNeeded.Sub(take)
	}
	res.RealUnitPrice = res.RealCost.DivRound(quantity, UnitPricePrecision)
	return res, nil
}

// RestoreReverseChronological devuelve quantity a las entradas (ordenadas de la más reciente
// a la más antigua), hasta la capacidad libre de cada una (Quantity - RemainingQuantity).
// Devuelve las entradas tocadas y la cantidad que no se pudo ubicar (cero en un libro consistente).
func RestoreReverseChronological(entries []*entity.Movement, quantity decimal.Decimal) ([]Allocation, decimal.Decimal) {
	toRestore := quantity
	var touched []Allocation
	for _, e := range entries {
		if !toRestore.GreaterThan(decimal.Zero) {
			break
		}
		spare := e.Consumed()
		if !spare.GreaterThan(decimal.Zero) {
			continue
		}
		give := decimal.Min(spare, toRestore)
		e.RemainingQuantity = e.RemainingQuantity.Add(give)
		touched = append(touched, Allocation{Entry: e, Quantity: give})
		toRestore = toRestore.Sub(give)
	}
	return touched, toRestore
}

// RestoreFromAllocations revierte exactamente las asignaciones registradas al consumir una salida.
// entriesByID debe contener cada entrada referenciada; si falta alguna o la devolución excede
// su capacidad, el libro está inconsistente y se devuelve ErrIntegrity sin modificar nada.
func RestoreFromAllocations(entriesByID map[string]*entity.Movement, allocations []*entity.FifoAllocation) ([]Allocation, error) {
	pending := make(map[string]decimal.Decimal, len(allocations))
	for _, a := range allocations {
		e, ok := entriesByID[a.EntryID]
		if !ok {
			return nil, fmt.Errorf("%w: la entrada %s de la asignación %s no existe", domain.ErrIntegrity, a.EntryID, a.ID)
		}
		next := pending[a.EntryID].Add(a.ConsumedQty)
		if next.GreaterThan(e.Consumed()) {
			return nil, fmt.Errorf("%w: la entrada %s no admite devolver %s", domain.ErrIntegrity, a.EntryID, next)
		}
		pending[a.EntryID] = next
	}

	touched := make([]Allocation, 0, len(allocations))
	for _, a := range allocations {
		e := entriesByID[a.EntryID]
		e.RemainingQuantity = e.RemainingQuantity.Add(a.ConsumedQty)
		touched = append(touched, Allocation{Entry: e, Quantity: a.ConsumedQty})
	}
	return touched, nil
}
