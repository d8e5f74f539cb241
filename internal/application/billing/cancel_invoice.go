package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/evertweb/programajava-sub002/internal/application/dto"
	"github.com/evertweb/programajava-sub002/internal/domain"
	"github.com/evertweb/programajava-sub002/internal/domain/entity"
	"github.com/evertweb/programajava-sub002/internal/domain/repository"
	"github.com/evertweb/programajava-sub002/pkg/logger"
)

// CancelInvoice anula una factura PENDIENTE: elimina en el libro cada movimiento vinculado
// (lo que restaura el stock) y marca la factura ANULADA. Antes de eliminar nada verifica que
// ninguna ENTRADA vinculada tenga unidades consumidas; si alguna las tiene la factura queda
// PENDIENTE sin cambios en el libro. Si una eliminación falla después de la verificación, las
// líneas ya revertidas se desvinculan y la anulación puede reintentarse.
func (uc *CreateInvoiceUseCase) CancelInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := uc.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: factura %s", domain.ErrNotFound, id)
	}
	if inv.Status != entity.InvoiceStatusPendiente {
		return nil, fmt.Errorf("%w: la factura %s está %s", domain.ErrConflict, id, inv.Status)
	}
	details, err := uc.invoiceRepo.GetDetailsByInvoiceID(ctx, id)
	if err != nil {
		return nil, err
	}

	log := uc.log.Named("invoice_cancel").WithField("invoice_id", id)
	if err := uc.checkCancelable(ctx, details); err != nil {
		log.Warn().Err(err).Msg("anulación rechazada")
		return nil, err
	}

	var reverted []*entity.InvoiceDetail
	for i := len(details) - 1; i >= 0; i-- {
		d := details[i]
		if d.MovementID == "" {
			continue
		}
		err := uc.ledger.DeleteMovement(ctx, d.MovementID)
		if errors.Is(err, domain.ErrNotFound) {
			log.Debug().Str("movement_id", d.MovementID).Msg("movimiento ya eliminado")
			err = nil
		}
		if err != nil {
			log.Warn().Err(err).Str("movement_id", d.MovementID).Int("line", d.LineNumber).Msg("no se pudo revertir el movimiento")
			uc.unlinkReverted(context.WithoutCancel(ctx), reverted, log)
			return nil, fmt.Errorf("revertir línea %d (movimiento %s): %w", d.LineNumber, d.MovementID, err)
		}
		reverted = append(reverted, d)
	}

	now := uc.now()
	err = uc.txRunner.RunBilling(ctx, func(invoiceRepo repository.InvoiceRepository) error {
		current, err := invoiceRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: factura %s", domain.ErrNotFound, id)
		}
		if current.Status != entity.InvoiceStatusPendiente {
			return fmt.Errorf("%w: la factura %s está %s", domain.ErrConflict, id, current.Status)
		}
		return invoiceRepo.UpdateStatus(ctx, id, entity.InvoiceStatusAnulada, now)
	})
	if err != nil {
		return nil, err
	}
	inv.Status = entity.InvoiceStatusAnulada
	inv.UpdatedAt = now

	log.Info().Int("lines", len(details)).Msg("factura anulada")
	return toInvoiceResponse(inv, details), nil
}

// checkCancelable consulta en el libro cada movimiento vinculado. Los que ya no existen
// se ignoran; una ENTRADA con unidades consumidas impide la anulación.
func (uc *CreateInvoiceUseCase) checkCancelable(ctx context.Context, details []*entity.InvoiceDetail) error {
	for _, d := range details {
		if d.MovementID == "" {
			continue
		}
		mov, err := uc.ledger.GetMovement(ctx, d.MovementID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("consultar línea %d (movimiento %s): %w", d.LineNumber, d.MovementID, err)
		}
		if mov.IsEntrada() && !mov.Untouched() {
			return fmt.Errorf("%w: la ENTRADA de la línea %d tiene %s unidades consumidas",
				domain.ErrIntegrity, d.LineNumber, mov.Consumed().String())
		}
	}
	return nil
}

// unlinkReverted limpia el vínculo de las líneas cuyo movimiento ya se eliminó.
func (uc *CreateInvoiceUseCase) unlinkReverted(ctx context.Context, reverted []*entity.InvoiceDetail, log *logger.Logger) {
	if len(reverted) == 0 {
		return
	}
	err := uc.txRunner.RunBilling(ctx, func(invoiceRepo repository.InvoiceRepository) error {
		for _, d := range reverted {
			if err := invoiceRepo.LinkMovement(ctx, d.ID, ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Int("lines", len(reverted)).Msg("no se pudieron desvincular las líneas revertidas")
		return
	}
	for _, d := range reverted {
		d.MovementID = ""
	}
}
