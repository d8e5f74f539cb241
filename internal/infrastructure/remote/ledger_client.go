package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/evertweb/programajava-sub002/internal/application/billing"
	"github.com/evertweb/programajava-sub002/internal/application/dto"
	"github.com/evertweb/programajava-sub002/internal/domain/entity"
)

var _ billing.LedgerClient = (*LedgerClient)(nil)

// LedgerClient cliente de los endpoints internos del libro de inventario.
type LedgerClient struct {
	c *Client
}

// NewLedgerClient construye el cliente. Requiere Options.Token (endpoints internos).
func NewLedgerClient(opts Options) *LedgerClient {
	return &LedgerClient{c: newClient("ledger", opts)}
}

// CreateEntrada registra la ENTRADA de una línea de factura con el id elegido por la saga.
// El id viaja como clave de idempotencia, así que un reintento tras un timeout devuelve la
// misma ENTRADA en vez de duplicarla.
func (lc *LedgerClient) CreateEntrada(ctx context.Context, movementID, productID, invoiceID string, quantity, unitPrice decimal.Decimal) (*entity.Movement, error) {
	in := dto.CreateEntradaRequest{
		ID:        movementID,
		ProductID: productID,
		InvoiceID: invoiceID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
	}
	var out dto.MovementResponse
	if err := lc.c.do(ctx, http.MethodPost, "/api/internal/movements/entrada", in, &out, retryTransient); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("ledger: respuesta sin id de movimiento")
	}
	return out.ToEntity(), nil
}

// GetMovement consulta un movimiento; domain.ErrNotFound si no existe.
func (lc *LedgerClient) GetMovement(ctx context.Context, id string) (*entity.Movement, error) {
	var out dto.MovementResponse
	if err := lc.c.do(ctx, http.MethodGet, "/api/internal/movements/"+url.PathEscape(id), nil, &out, retryTransient); err != nil {
		return nil, err
	}
	return out.ToEntity(), nil
}

// DeleteMovement elimina un movimiento (el libro restaura el stock). Es idempotente del lado
// de la saga: domain.ErrNotFound indica que ya no existe.
func (lc *LedgerClient) DeleteMovement(ctx context.Context, id string) error {
	return lc.c.do(ctx, http.MethodDelete, "/api/internal/movements/"+url.PathEscape(id), nil, nil, retryTransient)
}
