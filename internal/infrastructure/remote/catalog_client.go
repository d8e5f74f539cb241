package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/evertweb/programajava-sub002/internal/application/billing"
	"github.com/evertweb/programajava-sub002/internal/application/dto"
	"github.com/evertweb/programajava-sub002/internal/application/inventory"
	"github.com/evertweb/programajava-sub002/internal/domain"
	"github.com/evertweb/programajava-sub002/internal/domain/entity"
)

var (
	_ inventory.ProductCatalog = (*CatalogClient)(nil)
	_ billing.CatalogClient    = (*CatalogClient)(nil)
)

// CatalogClient cliente del servicio de catálogo de productos.
type CatalogClient struct {
	c *Client
}

// NewCatalogClient construye el cliente.
func NewCatalogClient(opts Options) *CatalogClient {
	return &CatalogClient{c: newClient("catalog", opts)}
}

// GetProductByID devuelve (nil, nil) si el catálogo responde 404.
func (cc *CatalogClient) GetProductByID(ctx context.Context, id string) (*entity.Product, error) {
	var out dto.ProductResponse
	err := cc.c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), nil, &out, retryTransient)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrProductNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entity.Product{ID: out.ID, Name: out.Name, UnitPrice: out.UnitPrice, Unit: out.Unit}, nil
}

// CreateProduct da de alta un producto. No es idempotente: solo se reintenta si el servicio no respondió.
func (cc *CatalogClient) CreateProduct(ctx context.Context, name string, unitPrice decimal.Decimal, unit string) (*entity.Product, error) {
	var out dto.ProductResponse
	in := dto.CreateProductRequest{Name: name, UnitPrice: unitPrice, Unit: unit}
	if err := cc.c.do(ctx, http.MethodPost, "/api/products", in, &out, retryUnavailable); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("catalog: respuesta sin id de producto")
	}
	return &entity.Product{ID: out.ID, Name: out.Name, UnitPrice: out.UnitPrice, Unit: out.Unit}, nil
}
