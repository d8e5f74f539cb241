package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evertweb/programajava-sub002/internal/application/billing"
	"github.com/evertweb/programajava-sub002/internal/application/dto"
	"github.com/evertweb/programajava-sub002/internal/application/inventory"
	"github.com/evertweb/programajava-sub002/internal/domain/entity"
	"github.com/evertweb/programajava-sub002/internal/infrastructure/memory"
	"github.com/evertweb/programajava-sub002/internal/infrastructure/remote"
	apphttp "github.com/evertweb/programajava-sub002/internal/interfaces/http"
	pkgjwt "github.com/evertweb/programajava-sub002/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	testSecret = "test-secret-key-for-unit-tests"
	testIssuer = "fleet-services-test"
)

type catalog map[string]*entity.Product

func (c catalog) GetProductByID(_ context.Context, id string) (*entity.Product, error) {
	return c[id], nil
}

func (c catalog) CreateProduct(_ context.Context, name string, unitPrice decimal.Decimal, unit string) (*entity.Product, error) {
	p := &entity.Product{ID: "NEW-" + name, Name: name, UnitPrice: unitPrice, Unit: unit}
	c[p.ID] = p
	return p, nil
}

type fleet struct{}

func (fleet) GetVehicleByID(_ context.Context, id string) (*entity.Vehicle, error) {
	if id == "VH-1" {
		return &entity.Vehicle{ID: id, Plate: "P-123ABC"}, nil
	}
	return nil, nil
}

type partners struct{}

func (partners) GetSupplierByID(_ context.Context, id string) (*entity.Supplier, error) {
	if id == "PRV-1" {
		return &entity.Supplier{ID: id, Name: "Gasolinera El Sol"}, nil
	}
	return nil, nil
}

func testCatalog() catalog {
	return catalog{
		"FUE-1": {ID: "FUE-1", Name: "Diésel", UnitPrice: decimal.NewFromInt(5)},
		"ACE-1": {ID: "ACE-1", Name: "Aceite", UnitPrice: decimal.NewFromInt(20)},
		"FIL-1": {ID: "FIL-1", Name: "Filtro", UnitPrice: decimal.NewFromInt(35)},
	}
}

// buildLedgerApp servicio de libro con almacenamiento en memoria.
func buildLedgerApp(cat catalog) (*fiber.App, *inventory.MovementUseCase) {
	store := memory.NewLedgerStore()
	uc := inventory.NewMovementUseCase(store, store.Movements(), cat, fleet{}, inventory.Options{})
	app := fiber.New()
	apphttp.LedgerRouter(app, apphttp.LedgerDeps{
		Movements:          uc,
		ServiceTokenSecret: testSecret,
		ServiceTokenIssuer: testIssuer,
		InternalCallers:    []string{"invoicing"},
	})
	return app, uc
}

func serviceToken(t *testing.T, service string) string {
	t.Helper()
	tok, err := pkgjwt.GenerateService(testSecret, service, testIssuer, time.Minute)
	require.NoError(t, err)
	return "Bearer " + tok
}

// doJSON lanza la petición y decodifica la respuesta en out (si no es nil).
func doJSON(t *testing.T, app *fiber.App, method, path string, body any, auth string, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ──────────────────────────────────────────────────────────────────────────────
// Libro
// ──────────────────────────────────────────────────────────────────────────────

func TestLedger_FlujoEntradaSalidaStock(t *testing.T) {
	app, _ := buildLedgerApp(testCatalog())
	price := dec("5.00")

	var entrada dto.MovementResponse
	status := doJSON(t, app, http.MethodPost, "/api/movements", dto.CreateMovementRequest{
		ProductID: "FUE-1", Type: entity.MovementTypeEntrada, Quantity: dec("100"), UnitPrice: &price,
	}, "", &entrada)
	require.Equal(t, fiber.StatusCreated, status)
	assert.True(t, entrada.RemainingQuantity.Equal(dec("100")))

	var salida dto.MovementResponse
	status = doJSON(t, app, http.MethodPost, "/api/movements/salida", dto.CreateSalidaRequest{
		ProductID: "FUE-1", VehicleID: "VH-1", Quantity: dec("30"),
	}, "", &salida)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "5.0000", salida.RealUnitPrice.StringFixed(4))

	var stock dto.StockResponse
	require.Equal(t, fiber.StatusOK, doJSON(t, app, http.MethodGet, "/api/stock/FUE-1", nil, "", &stock))
	assert.True(t, stock.Quantity.Equal(dec("70")))

	var check dto.ConsistencyResponse
	require.Equal(t, fiber.StatusOK, doJSON(t, app, http.MethodGet, "/api/stock/FUE-1/consistency", nil, "", &check))
	assert.True(t, check.Consistent)

	var list dto.MovementListResponse
	require.Equal(t, fiber.StatusOK, doJSON(t, app, http.MethodGet, "/api/movements?product_id=FUE-1&limit=1", nil, "", &list))
	assert.Len(t, list.Items, 1)
	assert.Equal(t, salida.ID, list.Items[0].ID, "más reciente primero")

	var errBody dto.ErrorResponse
	status = doJSON(t, app, http.MethodDelete, "/api/movements/"+entrada.ID, nil, "", &errBody)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, dto.CodeIntegrity, errBody.Code)

	assert.Equal(t, fiber.StatusNoContent, doJSON(t, app, http.MethodDelete, "/api/movements/"+salida.ID, nil, "", nil))
	require.Equal(t, fiber.StatusOK, doJSON(t, app, http.MethodGet, "/api/stock/FUE-1", nil, "", &stock))
	assert.True(t, stock.Quantity.Equal(dec("100")))
}

func TestLedger_MapeoDeErrores(t *testing.T) {
	app, _ := buildLedgerApp(testCatalog())
	var errBody dto.ErrorResponse

	status := doJSON(t, app, http.MethodPost, "/api/movements/salida", dto.CreateSalidaRequest{
		ProductID: "FUE-1", VehicleID: "VH-1", Quantity: dec("1"),
	}, "", &errBody)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, dto.CodeInsufficientStock, errBody.Code)

	status = doJSON(t, app, http.MethodPost, "/api/movements/salida", dto.CreateSalidaRequest{
		ProductID: "FUE-1", VehicleID: "VH-1", Quantity: dec("0"),
	}, "", &errBody)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, dto.CodeValidation, errBody.Code)

	status = doJSON(t, app, http.MethodPost, "/api/movements/salida", dto.CreateSalidaRequest{
		ProductID: "XXX", VehicleID: "VH-1", Quantity: dec("1"),
	}, "", &errBody)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, dto.CodeProductNotFound, errBody.Code)

	status = doJSON(t, app, http.MethodGet, "/api/movements/no-existe", nil, "", &errBody)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, dto.CodeNotFound, errBody.Code)
}

func TestLedger_RutasInternasRequierenTokenDeServicio(t *testing.T) {
	app, _ := buildLedgerApp(testCatalog())
	body := dto.CreateEntradaRequest{ProductID: "FUE-1", InvoiceID: "INV-1", Quantity: dec("10"), UnitPrice: dec("5")}

	assert.Equal(t, fiber.StatusUnauthorized, doJSON(t, app, http.MethodPost, "/api/internal/movements/entrada", body, "", nil))
	assert.Equal(t, fiber.StatusUnauthorized, doJSON(t, app, http.MethodPost, "/api/internal/movements/entrada", body, "Bearer basura", nil))
	assert.Equal(t, fiber.StatusForbidden, doJSON(t, app, http.MethodPost, "/api/internal/movements/entrada", body, serviceToken(t, "reportes"), nil))

	var mov dto.MovementResponse
	status := doJSON(t, app, http.MethodPost, "/api/internal/movements/entrada", body, serviceToken(t, "invoicing"), &mov)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "INV-1", mov.InvoiceID)

	assert.Equal(t, fiber.StatusNoContent, doJSON(t, app, http.MethodDelete, "/api/internal/movements/"+mov.ID, nil, serviceToken(t, "invoicing"), nil))
}

func TestLedger_EntradaInternaConIDEsIdempotente(t *testing.T) {
	app, uc := buildLedgerApp(testCatalog())
	token := serviceToken(t, "invoicing")
	body := dto.CreateEntradaRequest{
		ID: "7d3e9c1a-2b4f-4a6e-9c8d-1e2f3a4b5c6d", ProductID: "FUE-1", InvoiceID: "INV-1",
		Quantity: dec("10"), UnitPrice: dec("5"),
	}

	var first, second dto.MovementResponse
	require.Equal(t, fiber.StatusCreated, doJSON(t, app, http.MethodPost, "/api/internal/movements/entrada", body, token, &first))
	require.Equal(t, fiber.StatusCreated, doJSON(t, app, http.MethodPost, "/api/internal/movements/entrada", body, token, &second))
	assert.Equal(t, body.ID, first.ID)
	assert.Equal(t, first.ID, second.ID)

	stock, err := uc.GetStock(context.Background(), "FUE-1")
	require.NoError(t, err)
	assert.True(t, stock.Equal(dec("10")))

	body.Quantity = dec("11")
	assert.Equal(t, fiber.StatusConflict, doJSON(t, app, http.MethodPost, "/api/internal/movements/entrada", body, token, nil))

	var got dto.MovementResponse
	require.Equal(t, fiber.StatusOK, doJSON(t, app, http.MethodGet, "/api/internal/movements/"+first.ID, nil, token, &got))
	assert.True(t, got.RemainingQuantity.Equal(dec("10")))
}

// ──────────────────────────────────────────────────────────────────────────────
// Facturación contra el libro por HTTP
// ──────────────────────────────────────────────────────────────────────────────

// failingProxy delega en el libro real pero responde 503 a la ENTRADA número failOn.
func failingProxy(ledger *fiber.App, failOn int) http.Handler {
	inner := adaptor.FiberApp(ledger)
	calls := 0
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/internal/movements/entrada" {
			calls++
			if calls == failOn {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		inner(w, r)
	})
}

func buildInvoicingApp(t *testing.T, ledgerHandler http.Handler, cat catalog) *fiber.App {
	t.Helper()
	srv := httptest.NewServer(ledgerHandler)
	t.Cleanup(srv.Close)

	ledger := remote.NewLedgerClient(remote.Options{
		BaseURL: srv.URL,
		Token:   remote.ServiceToken(testSecret, "invoicing", testIssuer, time.Minute),
		Retry:   remote.RetryPolicy{MaxAttempts: 1},
	})
	store := memory.NewInvoiceStore()
	uc := billing.NewCreateInvoiceUseCase(store, store.Invoices(), ledger, cat, partners{}, billing.DefaultBillingConfig(), nil)
	app := fiber.New()
	apphttp.InvoicingRouter(app, apphttp.InvoicingDeps{Invoices: uc})
	return app
}

func invoiceRequest() dto.CreateInvoiceRequest {
	return dto.CreateInvoiceRequest{
		SupplierID: "PRV-1",
		Number:     "F-100",
		Items: []dto.InvoiceItemRequest{
			{ProductID: "FUE-1", Quantity: dec("100"), UnitPrice: dec("5")},
			{ProductID: "ACE-1", Quantity: dec("4"), UnitPrice: dec("20")},
			{ProductID: "FIL-1", Quantity: dec("2"), UnitPrice: dec("35")},
		},
	}
}

func TestInvoicing_CrearYAnularContraLibroHTTP(t *testing.T) {
	cat := testCatalog()
	ledgerApp, ledgerUC := buildLedgerApp(cat)
	app := buildInvoicingApp(t, adaptor.FiberApp(ledgerApp), cat)

	var inv dto.InvoiceResponse
	require.Equal(t, fiber.StatusCreated, doJSON(t, app, http.MethodPost, "/api/invoices", invoiceRequest(), "", &inv))
	assert.Equal(t, entity.InvoiceStatusPendiente, inv.Status)
	stock, err := ledgerUC.GetStock(context.Background(), "FUE-1")
	require.NoError(t, err)
	assert.True(t, stock.Equal(dec("100")))

	var got dto.InvoiceResponse
	require.Equal(t, fiber.StatusOK, doJSON(t, app, http.MethodGet, "/api/invoices/"+inv.ID, nil, "", &got))
	assert.Len(t, got.Details, 3)

	var canceled dto.InvoiceResponse
	require.Equal(t, fiber.StatusOK, doJSON(t, app, http.MethodPost, "/api/invoices/"+inv.ID+"/cancel", nil, "", &canceled))
	assert.Equal(t, entity.InvoiceStatusAnulada, canceled.Status)
	stock, err = ledgerUC.GetStock(context.Background(), "FUE-1")
	require.NoError(t, err)
	assert.True(t, stock.IsZero())

	var errBody dto.ErrorResponse
	assert.Equal(t, fiber.StatusConflict, doJSON(t, app, http.MethodPost, "/api/invoices/"+inv.ID+"/cancel", nil, "", &errBody))
	assert.Equal(t, fiber.StatusNotFound, doJSON(t, app, http.MethodGet, "/api/invoices/no-existe", nil, "", &errBody))
}

func TestInvoicing_FallaTerceraLineaResponde422YCompensa(t *testing.T) {
	cat := testCatalog()
	ledgerApp, ledgerUC := buildLedgerApp(cat)
	app := buildInvoicingApp(t, failingProxy(ledgerApp, 3), cat)

	var sagaErr dto.SagaErrorResponse
	status := doJSON(t, app, http.MethodPost, "/api/invoices", invoiceRequest(), "", &sagaErr)
	require.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, dto.CodeSagaFailed, sagaErr.Code)
	assert.Equal(t, string(billing.SagaFailed), sagaErr.State)
	assert.Equal(t, string(billing.SagaCreatingMovements), sagaErr.FailedAt)
	assert.Empty(t, sagaErr.CompensationFailures)

	for _, id := range []string{"FUE-1", "ACE-1", "FIL-1"} {
		stock, err := ledgerUC.GetStock(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, stock.IsZero(), "stock de %s", id)
	}
}

func TestInvoicing_ProveedorInexistente(t *testing.T) {
	cat := testCatalog()
	ledgerApp, _ := buildLedgerApp(cat)
	app := buildInvoicingApp(t, adaptor.FiberApp(ledgerApp), cat)

	req := invoiceRequest()
	req.SupplierID = "PRV-404"
	var sagaErr dto.SagaErrorResponse
	require.Equal(t, fiber.StatusUnprocessableEntity, doJSON(t, app, http.MethodPost, "/api/invoices", req, "", &sagaErr))
	assert.Equal(t, string(billing.SagaValidatingSupplier), sagaErr.FailedAt)
	assert.Empty(t, sagaErr.CompletedSteps)
}
