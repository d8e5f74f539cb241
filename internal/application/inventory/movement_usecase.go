package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/evertweb/programajava-sub002/internal/domain"
	"github.com/evertweb/programajava-sub002/internal/domain/entity"
	fifo "github.com/evertweb/programajava-sub002/internal/domain/inventory"
	"github.com/evertweb/programajava-sub002/internal/domain/repository"
	"github.com/evertweb/programajava-sub002/pkg/logger"
)

// Estrategias de restauración al eliminar una SALIDA.
const (
	// RestoreAllocations reproduce las filas FifoAllocation registradas al consumir.
	RestoreAllocations = "allocations"
	// RestoreReverseChronological devuelve stock a las entradas más recientes primero.
	RestoreReverseChronological = "reverse_chronological"
)

// MovementUseCase registra y elimina movimientos del libro aplicando FIFO.
// Todas las mutaciones de un producto se serializan con ProductLocker y, dentro de la
// transacción, con MovementRepository.LockProduct.
type MovementUseCase struct {
	txRunner        TxRunner
	movRepo         repository.MovementRepository
	catalog         ProductCatalog
	fleet           FleetDirectory
	locker          ProductLocker
	restoreStrategy string
	log             *logger.Logger
	now             func() time.Time
}

// Options parámetros opcionales del caso de uso.
type Options struct {
	RestoreStrategy string
	Locker          ProductLocker
	Logger          *logger.Logger
	Clock           func() time.Time
}

// NewMovementUseCase construye el caso de uso. movRepo se usa solo para lecturas fuera de tx.
func NewMovementUseCase(
	txRunner TxRunner,
	movRepo repository.MovementRepository,
	catalog ProductCatalog,
	fleet FleetDirectory,
	opts Options,
) *MovementUseCase {
	uc := &MovementUseCase{
		txRunner:        txRunner,
		movRepo:         movRepo,
		catalog:         catalog,
		fleet:           fleet,
		locker:          opts.Locker,
		restoreStrategy: opts.RestoreStrategy,
		log:             opts.Logger,
		now:             opts.Clock,
	}
	if uc.locker == nil {
		uc.locker = NewKeyedLocker()
	}
	if uc.restoreStrategy == "" {
		uc.restoreStrategy = RestoreAllocations
	}
	if uc.log == nil {
		uc.log = logger.Nop()
	}
	if uc.now == nil {
		uc.now = time.Now
	}
	return uc
}

// MovementInputDTO entrada para registrar un movimiento.
// UnitPrice es obligatorio en ENTRADA; en SALIDA es informativo (el costo real sale del consumo FIFO).
// ID opcional (UUID, solo ENTRADA): clave de idempotencia elegida por el llamador.
type MovementInputDTO struct {
	ID        string
	ProductID string
	VehicleID string
	InvoiceID string
	Type      string
	Quantity  decimal.Decimal
	UnitPrice *decimal.Decimal
}

// CreateEntrada registra una compra recibida (usado por la saga de facturación).
// Si movementID no está vacío se usa como id del movimiento; repetir la llamada con el mismo id
// y los mismos datos devuelve la ENTRADA ya registrada sin duplicarla.
func (uc *MovementUseCase) CreateEntrada(ctx context.Context, movementID, productID, invoiceID string, quantity, unitPrice decimal.Decimal) (*entity.Movement, error) {
	return uc.CreateMovement(ctx, MovementInputDTO{
		ID:        movementID,
		ProductID: productID,
		InvoiceID: invoiceID,
		Type:      entity.MovementTypeEntrada,
		Quantity:  quantity,
		UnitPrice: &unitPrice,
	})
}

// CreateSalida registra un despacho a un vehículo consumiendo stock FIFO.
func (uc *MovementUseCase) CreateSalida(ctx context.Context, productID, vehicleID string, quantity decimal.Decimal) (*entity.Movement, error) {
	return uc.CreateMovement(ctx, MovementInputDTO{
		ProductID: productID,
		VehicleID: vehicleID,
		Type:      entity.MovementTypeSalida,
		Quantity:  quantity,
	})
}

// CreateMovement valida referencias y registra el movimiento dentro de una transacción.
func (uc *MovementUseCase) CreateMovement(ctx context.Context, input MovementInputDTO) (*entity.Movement, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	product, err := uc.catalog.GetProductByID(ctx, input.ProductID)
	if err != nil {
		return nil, fmt.Errorf("consultar producto %s: %w", input.ProductID, err)
	}
	if product == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, input.ProductID)
	}
	if input.VehicleID != "" {
		vehicle, err := uc.fleet.GetVehicleByID(ctx, input.VehicleID)
		if err != nil {
			return nil, fmt.Errorf("consultar vehículo %s: %w", input.VehicleID, err)
		}
		if vehicle == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrVehicleNotFound, input.VehicleID)
		}
	}

	unlock, err := uc.locker.Lock(ctx, input.ProductID)
	if err != nil {
		return nil, fmt.Errorf("bloquear producto %s: %w", input.ProductID, err)
	}
	defer unlock()

	now := uc.now()
	var created *entity.Movement
	err = uc.txRunner.Run(ctx, func(movRepo repository.MovementRepository, allocRepo repository.FifoAllocationRepository) error {
		if err := movRepo.LockProduct(ctx, input.ProductID); err != nil {
			return err
		}
		var err error
		switch input.Type {
		case entity.MovementTypeEntrada:
			created, err = uc.doEntrada(ctx, movRepo, input, now)
		case entity.MovementTypeSalida:
			created, err = uc.doSalida(ctx, movRepo, allocRepo, input, now)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func validateInput(input MovementInputDTO) error {
	if input.ProductID == "" {
		return fmt.Errorf("%w: product_id requerido", domain.ErrInvalidInput)
	}
	if !input.Quantity.GreaterThan(decimal.Zero) {
		return fmt.Errorf("%w: la cantidad debe ser mayor que cero", domain.ErrInvalidInput)
	}
	if input.ID != "" {
		if input.Type != entity.MovementTypeEntrada {
			return fmt.Errorf("%w: id explícito solo se admite en ENTRADA", domain.ErrInvalidInput)
		}
		if _, err := uuid.Parse(input.ID); err != nil {
			return fmt.Errorf("%w: id %q no es un UUID", domain.ErrInvalidInput, input.ID)
		}
	}
	switch input.Type {
	case entity.MovementTypeEntrada:
		if input.UnitPrice == nil || !input.UnitPrice.GreaterThan(decimal.Zero) {
			return fmt.Errorf("%w: una ENTRADA requiere precio unitario mayor que cero", domain.ErrInvalidInput)
		}
	case entity.MovementTypeSalida:
		if input.UnitPrice != nil && input.UnitPrice.LessThan(decimal.Zero) {
			return fmt.Errorf("%w: precio unitario negativo", domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: tipo de movimiento %q", domain.ErrInvalidInput, input.Type)
	}
	return nil
}

// replayEntrada resuelve un id repetido: mismos datos = misma ENTRADA; si difieren, conflicto.
func replayEntrada(existing *entity.Movement, input MovementInputDTO) (*entity.Movement, error) {
	if !existing.IsEntrada() ||
		existing.ProductID != input.ProductID ||
		existing.InvoiceID != input.InvoiceID ||
		!existing.Quantity.Equal(input.Quantity) ||
		!existing.UnitPrice.Equal(*input.UnitPrice) {
		return nil, fmt.Errorf("%w: el movimiento %s ya existe con otros datos", domain.ErrConflict, existing.ID)
	}
	return existing, nil
}

// doEntrada: remaining = quantity, sin efectos sobre otras filas.
func (uc *MovementUseCase) doEntrada(ctx context.Context, movRepo repository.MovementRepository, input MovementInputDTO, now time.Time) (*entity.Movement, error) {
	id := input.ID
	if id == "" {
		id = uuid.New().String()
	} else {
		existing, err := movRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			uc.log.Info().Str("movement_id", id).Msg("entrada repetida; se devuelve la registrada")
			return replayEntrada(existing, input)
		}
	}
	mov := &entity.Movement{
		ID:                id,
		ProductID:         input.ProductID,
		VehicleID:         input.VehicleID,
		InvoiceID:         input.InvoiceID,
		Type:              entity.MovementTypeEntrada,
		Quantity:          input.Quantity,
		UnitPrice:         *input.UnitPrice,
		RemainingQuantity: input.Quantity,
		RealCost:          decimal.Zero,
		RealUnitPrice:     decimal.Zero,
		CreatedAt:         now,
	}
	if err := movRepo.Create(ctx, mov); err != nil {
		return nil, err
	}
	return mov, nil
}

// doSalida: consume FIFO las entradas con saldo, persiste la salida, actualiza las entradas
// tocadas y registra una FifoAllocation por par (entrada, salida).
func (uc *MovementUseCase) doSalida(
	ctx context.Context,
	movRepo repository.MovementRepository,
	allocRepo repository.FifoAllocationRepository,
	input MovementInputDTO,
	now time.Time,
) (*entity.Movement, error) {
	entries, err := movRepo.ListAvailableEntries(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	fifo.SortOldestFirst(entries)

	res, err := fifo.Consume(entries, input.Quantity)
	if err != nil {
		return nil, err
	}

	unitPrice := res.RealUnitPrice
	if input.UnitPrice != nil {
		unitPrice = *input.UnitPrice
	}
	mov := &entity.Movement{
		ID:                uuid.New().String(),
		ProductID:         input.ProductID,
		VehicleID:         input.VehicleID,
		InvoiceID:         input.InvoiceID,
		Type:              entity.MovementTypeSalida,
		Quantity:          input.Quantity,
		UnitPrice:         unitPrice,
		RemainingQuantity: decimal.Zero,
		RealCost:          res.RealCost,
		RealUnitPrice:     res.RealUnitPrice,
		CreatedAt:         now,
	}
	if err := movRepo.Create(ctx, mov); err != nil {
		return nil, err
	}
	for _, a := range res.Allocations {
		if err := movRepo.UpdateRemaining(ctx, a.Entry.ID, a.Entry.RemainingQuantity); err != nil {
			return nil, err
		}
		if err := allocRepo.Create(ctx, &entity.FifoAllocation{
			ID:           uuid.New().String(),
			EntryID:      a.Entry.ID,
			ExitID:       mov.ID,
			ProductID:    input.ProductID,
			ConsumedQty:  a.Quantity,
			PriceAtEntry: a.Entry.UnitPrice,
			CreatedAt:    now,
		}); err != nil {
			return nil, err
		}
	}

	uc.log.Debug().
		Str("product_id", input.ProductID).
		Str("movement_id", mov.ID).
		Str("quantity", input.Quantity.String()).
		Int("entries_consumed", len(res.Allocations)).
		Str("real_cost", res.RealCost.String()).
		Msg("salida FIFO registrada")
	return mov, nil
}

// GetMovement obtiene un movimiento por ID.
func (uc *MovementUseCase) GetMovement(ctx context.Context, id string) (*entity.Movement, error) {
	mov, err := uc.movRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if mov == nil {
		return nil, fmt.Errorf("%w: movimiento %s", domain.ErrNotFound, id)
	}
	return mov, nil
}

// ListByProduct lista los movimientos de un producto (más recientes primero).
func (uc *MovementUseCase) ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*entity.Movement, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: product_id requerido", domain.ErrInvalidInput)
	}
	return uc.movRepo.ListByProduct(ctx, productID, limit, offset)
}

// ListByInvoice lista los movimientos generados por una factura.
func (uc *MovementUseCase) ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.Movement, error) {
	return uc.movRepo.ListByInvoice(ctx, invoiceID)
}
