package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/evertweb/programajava-sub002/internal/application/dto"
	"github.com/evertweb/programajava-sub002/internal/domain"
	"github.com/evertweb/programajava-sub002/internal/domain/entity"
	"github.com/evertweb/programajava-sub002/internal/domain/repository"
	"github.com/evertweb/programajava-sub002/pkg/logger"
)

// MoneyPrecision decimales de subtotal/IVA/total de la factura.
const MoneyPrecision = 2

var hundred = decimal.NewFromInt(100)

// BillingConfig parámetros de la saga.
type BillingConfig struct {
	DefaultIVAPercent   decimal.Decimal // se aplica a las líneas sin iva_percent
	DueDays             int             // vencimiento por defecto = emisión + DueDays
	CompensationTimeout time.Duration   // tiempo máximo para deshacer una saga fallida
}

// DefaultBillingConfig 13% de IVA, 30 días de plazo.
func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		DefaultIVAPercent:   decimal.NewFromInt(13),
		DueDays:             30,
		CompensationTimeout: 30 * time.Second,
	}
}

// CreateInvoiceUseCase orquesta la saga de creación de factura de compra: valida proveedor y
// productos, persiste la factura localmente y registra una ENTRADA remota por línea.
// Si algo falla después de validar el proveedor, deshace lo hecho en orden inverso.
type CreateInvoiceUseCase struct {
	txRunner    BillingTxRunner
	invoiceRepo repository.InvoiceRepository
	ledger      LedgerClient
	catalog     CatalogClient
	partners    PartnersClient
	cfg         BillingConfig
	log         *logger.Logger
	now         func() time.Time
}

// NewCreateInvoiceUseCase construye el caso de uso. invoiceRepo se usa solo para lecturas.
func NewCreateInvoiceUseCase(
	txRunner BillingTxRunner,
	invoiceRepo repository.InvoiceRepository,
	ledger LedgerClient,
	catalog CatalogClient,
	partners PartnersClient,
	cfg BillingConfig,
	log *logger.Logger,
) *CreateInvoiceUseCase {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.CompensationTimeout <= 0 {
		cfg.CompensationTimeout = DefaultBillingConfig().CompensationTimeout
	}
	return &CreateInvoiceUseCase{
		txRunner:    txRunner,
		invoiceRepo: invoiceRepo,
		ledger:      ledger,
		catalog:     catalog,
		partners:    partners,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (uc *CreateInvoiceUseCase) WithClock(now func() time.Time) *CreateInvoiceUseCase {
	uc.now = now
	return uc
}

// sagaRun estado mutable de una sola ejecución; nunca se comparte entre ejecuciones.
type sagaRun struct {
	sctx  SagaContext
	stack compensationStack
	log   *logger.Logger
}

func (r *sagaRun) enter(state SagaState) {
	r.sctx = r.sctx.Enter(state)
	r.log.Debug().Str("state", string(state)).Msg("saga: transición")
}

// CreateInvoice ejecuta la saga completa y devuelve la factura con sus movimientos vinculados.
// Cualquier falla de la saga se devuelve como *InvoiceSagaError.
func (uc *CreateInvoiceUseCase) CreateInvoice(ctx context.Context, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := validateInvoiceRequest(in); err != nil {
		return nil, err
	}

	invoiceID := uuid.New().String()
	run := &sagaRun{
		sctx: newSagaContext(invoiceID),
		log:  uc.log.Named("invoice_saga").WithField("invoice_id", invoiceID),
	}

	// 1) Proveedor: sin efectos todavía, falla sin compensar.
	run.enter(SagaValidatingSupplier)
	if err := uc.validateSupplier(ctx, in.SupplierID); err != nil {
		run.sctx = run.sctx.Fail(err.Error()).Enter(SagaFailed)
		run.log.Warn().Err(err).Msg("saga: proveedor inválido")
		return nil, &InvoiceSagaError{
			InvoiceID:      invoiceID,
			State:          SagaFailed,
			FailedAt:       SagaValidatingSupplier,
			CompletedSteps: run.sctx.CompletedSteps,
			Reason:         err.Error(),
			Cause:          err,
		}
	}
	run.sctx = run.sctx.Complete(StepValidateSupplier)

	// 2) Productos: los creados en catálogo no se compensan.
	run.enter(SagaValidatingProducts)
	products, err := uc.resolveProducts(ctx, run, in.Items)
	if err != nil {
		return nil, uc.fail(ctx, run, err)
	}
	run.sctx = run.sctx.Complete(StepValidateProducts)

	// 3) Factura + detalles en una transacción local.
	run.enter(SagaCreatingInvoice)
	inv, details := uc.buildInvoice(invoiceID, in, products)
	if err := uc.txRunner.RunBilling(ctx, func(invoiceRepo repository.InvoiceRepository) error {
		if err := invoiceRepo.Create(ctx, inv); err != nil {
			return err
		}
		for _, d := range details {
			if err := invoiceRepo.CreateDetail(ctx, d); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, uc.fail(ctx, run, fmt.Errorf("persistir factura: %w", err))
	}
	run.stack.push("eliminar factura "+invoiceID, func(ctx context.Context) error {
		return uc.txRunner.RunBilling(ctx, func(invoiceRepo repository.InvoiceRepository) error {
			return invoiceRepo.Delete(ctx, invoiceID)
		})
	})
	run.sctx = run.sctx.Complete(StepCreateInvoice)

	// 4) Una ENTRADA remota por línea. El id se fija antes de llamar y la compensación se apila
	// antes del resultado: tras un timeout el libro pudo haberla registrado igual.
	run.enter(SagaCreatingMovements)
	for _, d := range details {
		movementID := uuid.New().String()
		run.stack.push("eliminar movimiento "+movementID, func(ctx context.Context) error {
			return uc.deleteMovement(ctx, movementID)
		})
		if _, err := uc.ledger.CreateEntrada(ctx, movementID, d.ProductID, invoiceID, d.Quantity, d.UnitPrice); err != nil {
			return nil, uc.fail(ctx, run, fmt.Errorf("línea %d (%s): %w", d.LineNumber, d.ProductID, err))
		}
		run.sctx = run.sctx.WithMovement(movementID)
		d.MovementID = movementID
	}
	run.sctx = run.sctx.Complete(StepCreateMovements)

	// 5) Vincular movimientos y finalizar.
	if err := uc.txRunner.RunBilling(ctx, func(invoiceRepo repository.InvoiceRepository) error {
		for _, d := range details {
			if err := invoiceRepo.LinkMovement(ctx, d.ID, d.MovementID); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, uc.fail(ctx, run, fmt.Errorf("vincular movimientos: %w", err))
	}
	run.sctx = run.sctx.Complete(StepLinkMovements)
	run.enter(SagaCompleted)

	run.log.Info().
		Str("number", inv.Number).
		Int("lines", len(details)).
		Str("total", inv.Total.String()).
		Msg("factura creada")
	return toInvoiceResponse(inv, details), nil
}

// fail ejecuta la compensación y construye el error terminal.
func (uc *CreateInvoiceUseCase) fail(ctx context.Context, run *sagaRun, cause error) error {
	failedAt := run.sctx.State
	run.sctx = run.sctx.Fail(cause.Error())
	run.enter(SagaCompensating)

	// La compensación corre aunque el contexto de la petición ya esté cancelado.
	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.cfg.CompensationTimeout)
	defer cancel()
	pending := run.stack.len()
	failures := run.stack.unwind(compCtx, run.log)

	run.enter(SagaFailed)
	run.log.Warn().
		Err(cause).
		Str("failed_at", string(failedAt)).
		Strs("completed_steps", run.sctx.CompletedSteps).
		Int("compensations", pending).
		Int("compensation_failures", len(failures)).
		Msg("saga fallida")

	return &InvoiceSagaError{
		InvoiceID:            run.sctx.InvoiceID,
		State:                run.sctx.State,
		FailedAt:             failedAt,
		CompletedSteps:       run.sctx.CompletedSteps,
		Reason:               run.sctx.FailureReason,
		Cause:                cause,
		CompensationFailures: failures,
	}
}

// deleteMovement compensación idempotente: un movimiento inexistente ya está deshecho.
func (uc *CreateInvoiceUseCase) deleteMovement(ctx context.Context, id string) error {
	err := uc.ledger.DeleteMovement(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

func (uc *CreateInvoiceUseCase) validateSupplier(ctx context.Context, supplierID string) error {
	supplier, err := uc.partners.GetSupplierByID(ctx, supplierID)
	if err != nil {
		return fmt.Errorf("consultar proveedor %s: %w", supplierID, err)
	}
	if supplier == nil {
		return fmt.Errorf("%w: %s", domain.ErrSupplierNotFound, supplierID)
	}
	return nil
}

// resolveProducts busca cada producto; si no existe y la línea trae nombre, lo crea en catálogo.
// Líneas con el mismo nombre (sin distinguir mayúsculas) reutilizan el producto creado.
func (uc *CreateInvoiceUseCase) resolveProducts(ctx context.Context, run *sagaRun, items []dto.InvoiceItemRequest) ([]*entity.Product, error) {
	products := make([]*entity.Product, len(items))
	created := make(map[string]*entity.Product)
	for i, item := range items {
		var product *entity.Product
		if item.ProductID != "" {
			p, err := uc.catalog.GetProductByID(ctx, item.ProductID)
			if err != nil {
				return nil, fmt.Errorf("consultar producto %s: %w", item.ProductID, err)
			}
			product = p
		}
		if product == nil {
			name := normalizeProductName(item.ProductName)
			if name == "" {
				return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, item.ProductID)
			}
			key := productNameFolder.String(name)
			if p, ok := created[key]; ok {
				products[i] = p
				continue
			}
			p, err := uc.catalog.CreateProduct(ctx, name, item.UnitPrice, item.Unit)
			if err != nil {
				return nil, fmt.Errorf("crear producto %q: %w", name, err)
			}
			created[key] = p
			run.sctx = run.sctx.WithProduct(p.ID)
			run.log.Info().Str("product_id", p.ID).Str("name", p.Name).Msg("producto creado en catálogo")
			product = p
		}
		products[i] = product
	}
	return products, nil
}

var productNameFolder = cases.Fold()

// normalizeProductName NFC y espacios colapsados ("Diesel  B5 " -> "Diesel B5").
func normalizeProductName(name string) string {
	return strings.Join(strings.Fields(norm.NFC.String(name)), " ")
}

// buildInvoice calcula totales por línea: subtotal = cantidad × precio, iva = subtotal × % / 100.
func (uc *CreateInvoiceUseCase) buildInvoice(invoiceID string, in dto.CreateInvoiceRequest, products []*entity.Product) (*entity.Invoice, []*entity.InvoiceDetail) {
	now := uc.now()
	issue := now
	if in.IssueDate != nil {
		issue = *in.IssueDate
	}
	due := issue.AddDate(0, 0, uc.cfg.DueDays)
	if in.DueDate != nil {
		due = *in.DueDate
	}
	number := strings.TrimSpace(in.Number)
	if number == "" {
		number = "FC-" + strings.ToUpper(invoiceID[:8])
	}

	inv := &entity.Invoice{
		ID:         invoiceID,
		Number:     number,
		SupplierID: in.SupplierID,
		IssueDate:  issue,
		DueDate:    due,
		Status:     entity.InvoiceStatusPendiente,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	subtotal, iva := decimal.Zero, decimal.Zero
	details := make([]*entity.InvoiceDetail, 0, len(in.Items))
	for i, item := range in.Items {
		pct := uc.cfg.DefaultIVAPercent
		if item.IVAPercent != nil {
			pct = *item.IVAPercent
		}
		lineSubtotal := item.Quantity.Mul(item.UnitPrice).Round(MoneyPrecision)
		lineIVA := lineSubtotal.Mul(pct).Div(hundred).Round(MoneyPrecision)
		name := products[i].Name
		if name == "" {
			name = item.ProductName
		}
		details = append(details, &entity.InvoiceDetail{
			ID:          uuid.New().String(),
			InvoiceID:   invoiceID,
			LineNumber:  i + 1,
			ProductID:   products[i].ID,
			ProductName: name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			IVAPercent:  pct,
			Subtotal:    lineSubtotal,
			IVA:         lineIVA,
		})
		subtotal = subtotal.Add(lineSubtotal)
		iva = iva.Add(lineIVA)
	}
	inv.Subtotal = subtotal
	inv.IVA = iva
	inv.Total = subtotal.Add(iva)
	return inv, details
}

func validateInvoiceRequest(in dto.CreateInvoiceRequest) error {
	if strings.TrimSpace(in.SupplierID) == "" {
		return fmt.Errorf("%w: supplier_id requerido", domain.ErrInvalidInput)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: la factura requiere al menos una línea", domain.ErrInvalidInput)
	}
	if in.IssueDate != nil && in.DueDate != nil && in.DueDate.Before(*in.IssueDate) {
		return fmt.Errorf("%w: due_date anterior a issue_date", domain.ErrInvalidInput)
	}
	for i, item := range in.Items {
		line := i + 1
		if item.ProductID == "" && strings.TrimSpace(item.ProductName) == "" {
			return fmt.Errorf("%w: línea %d sin product_id ni product_name", domain.ErrInvalidInput, line)
		}
		if !item.Quantity.GreaterThan(decimal.Zero) {
			return fmt.Errorf("%w: línea %d con cantidad no positiva", domain.ErrInvalidInput, line)
		}
		if !item.UnitPrice.GreaterThan(decimal.Zero) {
			return fmt.Errorf("%w: línea %d con precio no positivo", domain.ErrInvalidInput, line)
		}
		if item.IVAPercent != nil && (item.IVAPercent.LessThan(decimal.Zero) || item.IVAPercent.GreaterThan(hundred)) {
			return fmt.Errorf("%w: línea %d con iva_percent fuera de rango", domain.ErrInvalidInput, line)
		}
	}
	return nil
}

// GetInvoice obtiene la factura con su detalle.
func (uc *CreateInvoiceUseCase) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := uc.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: factura %s", domain.ErrNotFound, id)
	}
	details, err := uc.invoiceRepo.GetDetailsByInvoiceID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toInvoiceResponse(inv, details), nil
}

func toInvoiceResponse(inv *entity.Invoice, details []*entity.InvoiceDetail) *dto.InvoiceResponse {
	resp := &dto.InvoiceResponse{
		ID:         inv.ID,
		Number:     inv.Number,
		SupplierID: inv.SupplierID,
		IssueDate:  inv.IssueDate.Format("2006-01-02"),
		DueDate:    inv.DueDate.Format("2006-01-02"),
		Subtotal:   inv.Subtotal,
		IVA:        inv.IVA,
		Total:      inv.Total,
		Status:     inv.Status,
		Details:    make([]dto.InvoiceDetailResponse, 0, len(details)),
	}
	for _, d := range details {
		resp.Details = append(resp.Details, dto.InvoiceDetailResponse{
			ID:          d.ID,
			ProductID:   d.ProductID,
			ProductName: d.ProductName,
			Quantity:    d.Quantity,
			UnitPrice:   d.UnitPrice,
			IVAPercent:  d.IVAPercent,
			Subtotal:    d.Subtotal,
			IVA:         d.IVA,
			MovementID:  d.MovementID,
		})
	}
	return resp
}
