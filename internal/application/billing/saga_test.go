package billing_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evertweb/programajava-sub002/internal/application/billing"
	"github.com/evertweb/programajava-sub002/internal/application/dto"
	"github.com/evertweb/programajava-sub002/internal/application/inventory"
	"github.com/evertweb/programajava-sub002/internal/domain"
	"github.com/evertweb/programajava-sub002/internal/domain/entity"
	"github.com/evertweb/programajava-sub002/internal/infrastructure/memory"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ──────────────────────────────────────────────────────────────────────────────
// Colaboradores de test
// ──────────────────────────────────────────────────────────────────────────────

// catalog compartido por el libro y la saga.
type catalog struct {
	mu       sync.Mutex
	products map[string]*entity.Product
	seq      int
}

func (c *catalog) GetProductByID(_ context.Context, id string) (*entity.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.products[id], nil
}

func (c *catalog) CreateProduct(_ context.Context, name string, unitPrice decimal.Decimal, unit string) (*entity.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	p := &entity.Product{ID: fmt.Sprintf("NEW-%d", c.seq), Name: name, UnitPrice: unitPrice, Unit: unit}
	c.products[p.ID] = p
	return p, nil
}

type partners struct {
	suppliers map[string]*entity.Supplier
}

func (p *partners) GetSupplierByID(_ context.Context, id string) (*entity.Supplier, error) {
	return p.suppliers[id], nil
}

type fleet struct{}

func (fleet) GetVehicleByID(_ context.Context, id string) (*entity.Vehicle, error) {
	return &entity.Vehicle{ID: id}, nil
}

// flakyLedger delega en el libro real y falla en la llamada CreateEntrada número failOn.
// Con commitThenFail la ENTRADA queda registrada antes de devolver failErr.
// deleteErr aplica a todas las eliminaciones o solo a la número deleteFailOn.
type flakyLedger struct {
	inner          billing.LedgerClient
	mu             sync.Mutex
	calls          int
	failOn         int
	failErr        error
	commitThenFail bool
	deleteErr      error
	deleteFailOn   int
	deletes        []string
}

func (l *flakyLedger) CreateEntrada(ctx context.Context, movementID, productID, invoiceID string, qty, unitPrice decimal.Decimal) (*entity.Movement, error) {
	l.mu.Lock()
	l.calls++
	n := l.calls
	l.mu.Unlock()
	if l.failOn > 0 && n == l.failOn {
		if l.commitThenFail {
			if _, err := l.inner.CreateEntrada(ctx, movementID, productID, invoiceID, qty, unitPrice); err != nil {
				return nil, err
			}
		}
		return nil, l.failErr
	}
	return l.inner.CreateEntrada(ctx, movementID, productID, invoiceID, qty, unitPrice)
}

func (l *flakyLedger) GetMovement(ctx context.Context, id string) (*entity.Movement, error) {
	return l.inner.GetMovement(ctx, id)
}

func (l *flakyLedger) DeleteMovement(ctx context.Context, id string) error {
	l.mu.Lock()
	l.deletes = append(l.deletes, id)
	n := len(l.deletes)
	fail := l.deleteErr != nil && (l.deleteFailOn == 0 || n == l.deleteFailOn)
	l.mu.Unlock()
	if fail {
		return l.deleteErr
	}
	return l.inner.DeleteMovement(ctx, id)
}

type sagaFixture struct {
	catalog  *catalog
	ledgerUC *inventory.MovementUseCase
	ledger   *flakyLedger
	invoices *memory.InvoiceStore
	uc       *billing.CreateInvoiceUseCase
}

func newSagaFixture(t *testing.T) *sagaFixture {
	t.Helper()
	cat := &catalog{products: map[string]*entity.Product{
		"FUE-1": {ID: "FUE-1", Name: "Diésel", UnitPrice: d("5")},
		"ACE-1": {ID: "ACE-1", Name: "Aceite 15W40", UnitPrice: d("20")},
		"FIL-1": {ID: "FIL-1", Name: "Filtro de aire", UnitPrice: d("35")},
	}}
	ledgerStore := memory.NewLedgerStore()
	ledgerUC := inventory.NewMovementUseCase(ledgerStore, ledgerStore.Movements(), cat, fleet{}, inventory.Options{})
	ledger := &flakyLedger{inner: ledgerUC}
	invoices := memory.NewInvoiceStore()
	uc := billing.NewCreateInvoiceUseCase(invoices, invoices.Invoices(), ledger, cat,
		&partners{suppliers: map[string]*entity.Supplier{"PRV-1": {ID: "PRV-1", Name: "Gasolinera El Sol"}}},
		billing.DefaultBillingConfig(), nil).
		WithClock(func() time.Time { return time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC) })
	return &sagaFixture{catalog: cat, ledgerUC: ledgerUC, ledger: ledger, invoices: invoices, uc: uc}
}

func (f *sagaFixture) stock(t *testing.T, productID string) decimal.Decimal {
	t.Helper()
	s, err := f.ledgerUC.GetStock(context.Background(), productID)
	require.NoError(t, err)
	return s
}

func threeItems() dto.CreateInvoiceRequest {
	return dto.CreateInvoiceRequest{
		SupplierID: "PRV-1",
		Number:     "F-001",
		Items: []dto.InvoiceItemRequest{
			{ProductID: "FUE-1", Quantity: d("100"), UnitPrice: d("5")},
			{ProductID: "ACE-1", Quantity: d("4"), UnitPrice: d("20")},
			{ProductID: "FIL-1", Quantity: d("2"), UnitPrice: d("35")},
		},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestCreateInvoice_Exito(t *testing.T) {
	f := newSagaFixture(t)

	resp, err := f.uc.CreateInvoice(context.Background(), threeItems())
	require.NoError(t, err)

	assert.Equal(t, entity.InvoiceStatusPendiente, resp.Status)
	assert.Equal(t, "F-001", resp.Number)
	assert.Equal(t, "2024-06-09", resp.DueDate, "vencimiento = emisión + 30 días")
	require.Len(t, resp.Details, 3)
	for _, det := range resp.Details {
		assert.NotEmpty(t, det.MovementID, "cada línea queda vinculada a su ENTRADA")
	}
	assert.True(t, f.stock(t, "FUE-1").Equal(d("100")))
	assert.True(t, f.stock(t, "ACE-1").Equal(d("4")))

	stored, err := f.uc.GetInvoice(context.Background(), resp.ID)
	require.NoError(t, err)
	for _, det := range stored.Details {
		assert.NotEmpty(t, det.MovementID, "el vínculo debe persistir")
	}
	movs, err := f.ledgerUC.ListByInvoice(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Len(t, movs, 3)
}

func TestCreateInvoice_TotalesConIVAPorLinea(t *testing.T) {
	f := newSagaFixture(t)
	pct := d("19")
	resp, err := f.uc.CreateInvoice(context.Background(), dto.CreateInvoiceRequest{
		SupplierID: "PRV-1",
		Items: []dto.InvoiceItemRequest{
			{ProductID: "FUE-1", Quantity: d("10"), UnitPrice: d("5")},
			{ProductID: "ACE-1", Quantity: d("2"), UnitPrice: d("20"), IVAPercent: &pct},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "6.50", resp.Details[0].IVA.StringFixed(2), "IVA por defecto 13%")
	assert.Equal(t, "7.60", resp.Details[1].IVA.StringFixed(2))
	assert.Equal(t, "90.00", resp.Subtotal.StringFixed(2))
	assert.Equal(t, "14.10", resp.IVA.StringFixed(2))
	assert.Equal(t, "104.10", resp.Total.StringFixed(2))
	assert.NotEmpty(t, resp.Number, "se genera un número cuando no se envía")
}

// Tres líneas; la tercera falla: no quedan movimientos ni factura y el stock no cambia.
func TestCreateInvoice_FallaTerceraLineaCompensa(t *testing.T) {
	f := newSagaFixture(t)
	f.ledger.failOn = 3
	f.ledger.failErr = fmt.Errorf("%w: ledger caído", domain.ErrServiceUnavailable)

	_, err := f.uc.CreateInvoice(context.Background(), threeItems())
	require.Error(t, err)

	sagaErr, ok := billing.AsSagaError(err)
	require.True(t, ok, "se espera InvoiceSagaError, got %T", err)
	assert.Equal(t, billing.SagaFailed, sagaErr.State)
	assert.Equal(t, billing.SagaCreatingMovements, sagaErr.FailedAt)
	assert.Equal(t, []string{billing.StepValidateSupplier, billing.StepValidateProducts, billing.StepCreateInvoice}, sagaErr.CompletedSteps)
	assert.Empty(t, sagaErr.CompensationFailures)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)

	assert.Len(t, f.ledger.deletes, 3, "se compensan las dos ENTRADAs creadas y el id reservado de la tercera")
	assert.Equal(t, 0, f.invoices.Count())
	for _, id := range []string{"FUE-1", "ACE-1", "FIL-1"} {
		assert.True(t, f.stock(t, id).IsZero(), "stock de %s", id)
	}
	movs, err := f.ledgerUC.ListByInvoice(context.Background(), sagaErr.InvoiceID)
	require.NoError(t, err)
	assert.Empty(t, movs)
}

// El libro registra la tercera ENTRADA pero la respuesta se pierde por timeout:
// la compensación la elimina igual porque el id se reservó antes de llamar.
func TestCreateInvoice_TimeoutConEntradaRegistradaSeCompensa(t *testing.T) {
	f := newSagaFixture(t)
	f.ledger.failOn = 3
	f.ledger.commitThenFail = true
	f.ledger.failErr = fmt.Errorf("%w: sin respuesta del libro", domain.ErrServiceTimeout)

	_, err := f.uc.CreateInvoice(context.Background(), threeItems())
	require.ErrorIs(t, err, domain.ErrServiceTimeout)

	sagaErr, ok := billing.AsSagaError(err)
	require.True(t, ok)
	assert.Empty(t, sagaErr.CompensationFailures)
	assert.Equal(t, 0, f.invoices.Count())
	for _, id := range []string{"FUE-1", "ACE-1", "FIL-1"} {
		assert.True(t, f.stock(t, id).IsZero(), "stock de %s", id)
	}
	movs, err := f.ledgerUC.ListByInvoice(context.Background(), sagaErr.InvoiceID)
	require.NoError(t, err)
	assert.Empty(t, movs, "no queda ninguna ENTRADA huérfana")
}

func TestCreateInvoice_ProveedorInexistenteSinEfectos(t *testing.T) {
	f := newSagaFixture(t)
	req := threeItems()
	req.SupplierID = "PRV-404"

	_, err := f.uc.CreateInvoice(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrSupplierNotFound)

	sagaErr, ok := billing.AsSagaError(err)
	require.True(t, ok)
	assert.Equal(t, billing.SagaValidatingSupplier, sagaErr.FailedAt)
	assert.Empty(t, sagaErr.CompletedSteps)
	assert.Zero(t, f.ledger.calls)
	assert.Empty(t, f.ledger.deletes)
	assert.Equal(t, 0, f.invoices.Count())
}

func TestCreateInvoice_ProductoInexistenteSinNombre(t *testing.T) {
	f := newSagaFixture(t)
	_, err := f.uc.CreateInvoice(context.Background(), dto.CreateInvoiceRequest{
		SupplierID: "PRV-1",
		Items:      []dto.InvoiceItemRequest{{ProductID: "NOPE", Quantity: d("1"), UnitPrice: d("1")}},
	})
	require.ErrorIs(t, err, domain.ErrProductNotFound)
	sagaErr, ok := billing.AsSagaError(err)
	require.True(t, ok)
	assert.Equal(t, billing.SagaValidatingProducts, sagaErr.FailedAt)
	assert.Equal(t, 0, f.invoices.Count())
}

// Los productos creados durante la saga se conservan aunque la saga falle.
func TestCreateInvoice_ProductoCreadoNoSeCompensa(t *testing.T) {
	f := newSagaFixture(t)
	f.ledger.failOn = 2
	f.ledger.failErr = domain.ErrServiceTimeout

	_, err := f.uc.CreateInvoice(context.Background(), dto.CreateInvoiceRequest{
		SupplierID: "PRV-1",
		Items: []dto.InvoiceItemRequest{
			{ProductName: "Refrigerante", Unit: "galón", Quantity: d("3"), UnitPrice: d("12")},
			{ProductID: "FUE-1", Quantity: d("1"), UnitPrice: d("5")},
		},
	})
	require.Error(t, err)

	p, _ := f.catalog.GetProductByID(context.Background(), "NEW-1")
	require.NotNil(t, p)
	assert.Equal(t, "Refrigerante", p.Name)
	assert.True(t, f.stock(t, "NEW-1").IsZero())
}

func TestCreateInvoice_ProductoNuevoRepetidoSeCreaUnaVez(t *testing.T) {
	f := newSagaFixture(t)

	resp, err := f.uc.CreateInvoice(context.Background(), dto.CreateInvoiceRequest{
		SupplierID: "PRV-1",
		Items: []dto.InvoiceItemRequest{
			{ProductName: "  Líquido  de frenos ", Quantity: d("2"), UnitPrice: d("9")},
			{ProductName: "LÍQUIDO DE FRENOS", Quantity: d("1"), UnitPrice: d("9")},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Details, 2)
	assert.Equal(t, "NEW-1", resp.Details[0].ProductID)
	assert.Equal(t, "NEW-1", resp.Details[1].ProductID)
	assert.Equal(t, "Líquido de frenos", resp.Details[0].ProductName)
	assert.Equal(t, 1, f.catalog.seq)
	assert.True(t, f.stock(t, "NEW-1").Equal(d("3")))
}

func TestCreateInvoice_CompensacionParcialSeReporta(t *testing.T) {
	f := newSagaFixture(t)
	f.ledger.failOn = 2
	f.ledger.failErr = domain.ErrServiceUnavailable
	f.ledger.deleteErr = errors.New("conexión rechazada")

	_, err := f.uc.CreateInvoice(context.Background(), threeItems())
	sagaErr, ok := billing.AsSagaError(err)
	require.True(t, ok)
	require.Len(t, sagaErr.CompensationFailures, 2, "la línea fallida y la ya registrada")
	for _, failure := range sagaErr.CompensationFailures {
		assert.Contains(t, failure, "conexión rechazada")
	}
	assert.Equal(t, 0, f.invoices.Count(), "la factura se elimina aunque falle otra compensación")
}

func TestCreateInvoice_NumeroDuplicadoDelProveedor(t *testing.T) {
	f := newSagaFixture(t)
	_, err := f.uc.CreateInvoice(context.Background(), threeItems())
	require.NoError(t, err)

	_, err = f.uc.CreateInvoice(context.Background(), threeItems())
	require.ErrorIs(t, err, domain.ErrConflict)
	sagaErr, _ := billing.AsSagaError(err)
	require.NotNil(t, sagaErr)
	assert.Equal(t, billing.SagaCreatingInvoice, sagaErr.FailedAt)
	assert.True(t, f.stock(t, "FUE-1").Equal(d("100")), "el segundo intento no agrega stock")
}

func TestCreateInvoice_Validaciones(t *testing.T) {
	f := newSagaFixture(t)
	ctx := context.Background()

	_, err := f.uc.CreateInvoice(ctx, dto.CreateInvoiceRequest{Items: threeItems().Items})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.uc.CreateInvoice(ctx, dto.CreateInvoiceRequest{SupplierID: "PRV-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.uc.CreateInvoice(ctx, dto.CreateInvoiceRequest{
		SupplierID: "PRV-1",
		Items:      []dto.InvoiceItemRequest{{ProductID: "FUE-1", Quantity: d("-1"), UnitPrice: d("5")}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, isSaga := billing.AsSagaError(err)
	assert.False(t, isSaga, "la validación de entrada no inicia la saga")
}

func TestCancelInvoice_RestauraStock(t *testing.T) {
	f := newSagaFixture(t)
	ctx := context.Background()
	resp, err := f.uc.CreateInvoice(ctx, threeItems())
	require.NoError(t, err)

	canceled, err := f.uc.CancelInvoice(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusAnulada, canceled.Status)
	assert.True(t, f.stock(t, "FUE-1").IsZero())

	_, err = f.uc.CancelInvoice(ctx, resp.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.uc.CancelInvoice(ctx, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelInvoice_EntradaConsumidaQuedaPendiente(t *testing.T) {
	f := newSagaFixture(t)
	ctx := context.Background()
	resp, err := f.uc.CreateInvoice(ctx, threeItems())
	require.NoError(t, err)
	_, err = f.ledgerUC.CreateSalida(ctx, "FUE-1", "VH-1", d("10"))
	require.NoError(t, err)

	_, err = f.uc.CancelInvoice(ctx, resp.ID)
	require.ErrorIs(t, err, domain.ErrIntegrity)

	stored, err := f.uc.GetInvoice(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusPendiente, stored.Status)

	// El rechazo no toca el libro: las otras líneas conservan su ENTRADA.
	assert.Empty(t, f.ledger.deletes)
	assert.True(t, f.stock(t, "FUE-1").Equal(d("90")))
	assert.True(t, f.stock(t, "ACE-1").Equal(d("4")))
	assert.True(t, f.stock(t, "FIL-1").Equal(d("2")))
	for i, det := range stored.Details {
		assert.Equal(t, resp.Details[i].MovementID, det.MovementID)
	}
	movs, err := f.ledgerUC.ListByInvoice(ctx, resp.ID)
	require.NoError(t, err)
	assert.Len(t, movs, 3)
}

// Si una eliminación falla a mitad de la anulación, las líneas ya revertidas
// quedan desvinculadas y un reintento completa la anulación.
func TestCancelInvoice_FallaIntermediaDesvinculaLineasRevertidas(t *testing.T) {
	f := newSagaFixture(t)
	ctx := context.Background()
	resp, err := f.uc.CreateInvoice(ctx, threeItems())
	require.NoError(t, err)

	f.ledger.deleteErr = fmt.Errorf("%w: entrada consumida entre la verificación y la eliminación", domain.ErrIntegrity)
	f.ledger.deleteFailOn = 2

	_, err = f.uc.CancelInvoice(ctx, resp.ID)
	require.ErrorIs(t, err, domain.ErrIntegrity)

	stored, err := f.uc.GetInvoice(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusPendiente, stored.Status)
	require.Len(t, stored.Details, 3)
	assert.NotEmpty(t, stored.Details[0].MovementID)
	assert.NotEmpty(t, stored.Details[1].MovementID)
	assert.Empty(t, stored.Details[2].MovementID, "la línea revertida pierde su vínculo")
	assert.True(t, f.stock(t, "FIL-1").IsZero())
	assert.True(t, f.stock(t, "ACE-1").Equal(d("4")))

	f.ledger.deleteErr = nil
	canceled, err := f.uc.CancelInvoice(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusAnulada, canceled.Status)
	for _, id := range []string{"FUE-1", "ACE-1", "FIL-1"} {
		assert.True(t, f.stock(t, id).IsZero(), "stock de %s", id)
	}
}

func TestSagaContext_TransicionesNoCompartenEstado(t *testing.T) {
	base := billing.SagaContext{InvoiceID: "INV-1"}.WithMovement("M1")
	a := base.WithMovement("M2")
	b := base.WithMovement("M3")

	assert.Equal(t, []string{"M1"}, base.CreatedMovementIDs)
	assert.Equal(t, []string{"M1", "M2"}, a.CreatedMovementIDs)
	assert.Equal(t, []string{"M1", "M3"}, b.CreatedMovementIDs)

	c := a.Enter(billing.SagaCompensating).Fail("boom")
	assert.Equal(t, billing.SagaState(""), a.State)
	assert.Equal(t, billing.SagaCompensating, c.State)
	assert.Equal(t, "boom", c.FailureReason)
}
