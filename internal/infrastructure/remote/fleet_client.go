package remote

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/evertweb/programajava-sub002/internal/application/dto"
	"github.com/evertweb/programajava-sub002/internal/application/inventory"
	"github.com/evertweb/programajava-sub002/internal/domain"
	"github.com/evertweb/programajava-sub002/internal/domain/entity"
)

var _ inventory.FleetDirectory = (*FleetClient)(nil)

// FleetClient cliente del servicio de flota.
type FleetClient struct {
	c *Client
}

// NewFleetClient construye el cliente.
func NewFleetClient(opts Options) *FleetClient {
	return &FleetClient{c: newClient("fleet", opts)}
}

// GetVehicleByID devuelve (nil, nil) si el vehículo no existe.
func (fc *FleetClient) GetVehicleByID(ctx context.Context, id string) (*entity.Vehicle, error) {
	var out dto.VehicleResponse
	err := fc.c.do(ctx, http.MethodGet, "/api/vehicles/"+url.PathEscape(id), nil, &out, retryTransient)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrVehicleNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entity.Vehicle{ID: out.ID, Plate: out.Plate}, nil
}
