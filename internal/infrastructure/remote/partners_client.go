package remote

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/evertweb/programajava-sub002/internal/application/billing"
	"github.com/evertweb/programajava-sub002/internal/application/dto"
	"github.com/evertweb/programajava-sub002/internal/domain"
	"github.com/evertweb/programajava-sub002/internal/domain/entity"
)

var _ billing.PartnersClient = (*PartnersClient)(nil)

// PartnersClient cliente del servicio de proveedores.
type PartnersClient struct {
	c *Client
}

// NewPartnersClient construye el cliente.
func NewPartnersClient(opts Options) *PartnersClient {
	return &PartnersClient{c: newClient("partners", opts)}
}

// GetSupplierByID devuelve (nil, nil) si el proveedor no existe.
func (pc *PartnersClient) GetSupplierByID(ctx context.Context, id string) (*entity.Supplier, error) {
	var out dto.SupplierResponse
	err := pc.c.do(ctx, http.MethodGet, "/api/suppliers/"+url.PathEscape(id), nil, &out, retryTransient)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrSupplierNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entity.Supplier{ID: out.ID, Name: out.Name, NIT: out.NIT}, nil
}
