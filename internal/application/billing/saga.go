package billing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/evertweb/programajava-sub002/pkg/logger"
)

// SagaState estado de una ejecución de la saga de creación de factura.
type SagaState string

const (
	SagaStarted            SagaState = "STARTED"
	SagaValidatingSupplier SagaState = "VALIDATING_SUPPLIER"
	SagaValidatingProducts SagaState = "VALIDATING_PRODUCTS"
	SagaCreatingInvoice    SagaState = "CREATING_INVOICE"
	SagaCreatingMovements  SagaState = "CREATING_MOVEMENTS"
	SagaCompleted          SagaState = "COMPLETED"
	SagaCompensating       SagaState = "COMPENSATING"
	SagaFailed             SagaState = "FAILED"
)

// Pasos completados que se reportan en el diagnóstico.
const (
	StepValidateSupplier = "VALIDATE_SUPPLIER"
	StepValidateProducts = "VALIDATE_PRODUCTS"
	StepCreateInvoice    = "CREATE_INVOICE"
	StepCreateMovements  = "CREATE_MOVEMENTS"
	StepLinkMovements    = "LINK_MOVEMENTS"
)

// SagaContext estado de una ejecución. Es un valor: cada transición devuelve una copia,
// de modo que ejecuciones concurrentes no comparten nada.
type SagaContext struct {
	InvoiceID          string
	CreatedProductIDs  []string
	CreatedMovementIDs []string
	State              SagaState
	CompletedSteps     []string
	FailureReason      string
}

func newSagaContext(invoiceID string) SagaContext {
	return SagaContext{InvoiceID: invoiceID, State: SagaStarted}
}

// Enter transiciona al estado indicado.
func (s SagaContext) Enter(state SagaState) SagaContext {
	s.State = state
	return s
}

// Complete registra un paso terminado.
func (s SagaContext) Complete(step string) SagaContext {
	s.CompletedSteps = append(slices.Clone(s.CompletedSteps), step)
	return s
}

// WithProduct registra un producto creado en catálogo (no se compensa).
func (s SagaContext) WithProduct(id string) SagaContext {
	s.CreatedProductIDs = append(slices.Clone(s.CreatedProductIDs), id)
	return s
}

// WithMovement registra un movimiento remoto creado (se compensa).
func (s SagaContext) WithMovement(id string) SagaContext {
	s.CreatedMovementIDs = append(slices.Clone(s.CreatedMovementIDs), id)
	return s
}

// Fail registra la causa de la falla.
func (s SagaContext) Fail(reason string) SagaContext {
	s.FailureReason = reason
	return s
}

// compensation acción de deshacer; debe ser idempotente.
type compensation struct {
	name string
	undo func(ctx context.Context) error
}

// compensationStack pila de acciones de deshacer, apiladas a medida que cada paso tiene éxito.
type compensationStack struct {
	actions []compensation
}

func (c *compensationStack) push(name string, undo func(ctx context.Context) error) {
	c.actions = append(c.actions, compensation{name: name, undo: undo})
}

func (c *compensationStack) len() int { return len(c.actions) }

// unwind ejecuta las acciones en orden inverso. Los errores se registran y se continúa
// (best-effort); devuelve la descripción de las acciones que fallaron.
func (c *compensationStack) unwind(ctx context.Context, log *logger.Logger) []string {
	var failures []string
	for i := len(c.actions) - 1; i >= 0; i-- {
		a := c.actions[i]
		if err := a.undo(ctx); err != nil {
			log.Error().Err(err).Str("action", a.name).Msg("compensación fallida; se continúa")
			failures = append(failures, fmt.Sprintf("%s: %v", a.name, err))
			continue
		}
		log.Debug().Str("action", a.name).Msg("compensación aplicada")
	}
	c.actions = nil
	return failures
}

// InvoiceSagaError falla terminal de la saga con el diagnóstico completo.
// Unwrap devuelve la causa original, así errors.Is(err, domain.ErrSupplierNotFound) funciona.
type InvoiceSagaError struct {
	InvoiceID            string
	State                SagaState // estado final (FAILED)
	FailedAt             SagaState // estado en el que ocurrió la falla
	CompletedSteps       []string
	Reason               string
	Cause                error
	CompensationFailures []string
}

func (e *InvoiceSagaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "saga de factura %s falló en %s: %s", e.InvoiceID, e.FailedAt, e.Reason)
	if len(e.CompensationFailures) > 0 {
		fmt.Fprintf(&b, " (compensación incompleta: %s)", strings.Join(e.CompensationFailures, "; "))
	}
	return b.String()
}

func (e *InvoiceSagaError) Unwrap() error { return e.Cause }

// AsSagaError extrae el InvoiceSagaError de la cadena de errores.
func AsSagaError(err error) (*InvoiceSagaError, bool) {
	var se *InvoiceSagaError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
