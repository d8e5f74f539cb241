package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/evertweb/programajava-sub002/internal/domain/entity"
)

// CreateMovementRequest body para POST /api/movements.
type CreateMovementRequest struct {
	ProductID string           `json:"product_id"`
	VehicleID string           `json:"vehicle_id,omitempty"`
	InvoiceID string           `json:"invoice_id,omitempty"`
	Type      string           `json:"type"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// CreateSalidaRequest body para POST /api/movements/salida.
type CreateSalidaRequest struct {
	ProductID string          `json:"product_id"`
	VehicleID string          `json:"vehicle_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// CreateEntradaRequest body para POST /api/internal/movements/entrada (solo facturación).
// ID es la clave de idempotencia: repetir la petición con el mismo id no duplica la ENTRADA.
type CreateEntradaRequest struct {
	ID        string          `json:"id,omitempty"`
	ProductID string          `json:"product_id"`
	InvoiceID string          `json:"invoice_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// MovementResponse representación HTTP de un movimiento.
type MovementResponse struct {
	ID                string          `json:"id"`
	ProductID         string          `json:"product_id"`
	VehicleID         string          `json:"vehicle_id,omitempty"`
	InvoiceID         string          `json:"invoice_id,omitempty"`
	Type              string          `json:"type"`
	Quantity          decimal.Decimal `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	RealCost          decimal.Decimal `json:"real_cost"`
	RealUnitPrice     decimal.Decimal `json:"real_unit_price"`
	CreatedAt         time.Time       `json:"created_at"`
}

// NewMovementResponse mapea la entidad a la respuesta HTTP.
func NewMovementResponse(m *entity.Movement) MovementResponse {
	return MovementResponse{
		ID:                m.ID,
		ProductID:         m.ProductID,
		VehicleID:         m.VehicleID,
		InvoiceID:         m.InvoiceID,
		Type:              m.Type,
		Quantity:          m.Quantity,
		UnitPrice:         m.UnitPrice,
		RemainingQuantity: m.RemainingQuantity,
		RealCost:          m.RealCost,
		RealUnitPrice:     m.RealUnitPrice,
		CreatedAt:         m.CreatedAt,
	}
}

// ToEntity reconstruye el movimiento desde su representación HTTP.
func (r MovementResponse) ToEntity() *entity.Movement {
	return &entity.Movement{
		ID:                r.ID,
		ProductID:         r.ProductID,
		VehicleID:         r.VehicleID,
		InvoiceID:         r.InvoiceID,
		Type:              r.Type,
		Quantity:          r.Quantity,
		UnitPrice:         r.UnitPrice,
		RemainingQuantity: r.RemainingQuantity,
		RealCost:          r.RealCost,
		RealUnitPrice:     r.RealUnitPrice,
		CreatedAt:         r.CreatedAt,
	}
}

// StockResponse stock actual de un producto.
type StockResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// AveragePriceResponse precio promedio ponderado del stock restante.
type AveragePriceResponse struct {
	ProductID string          `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
}

// ConsistencyResponse resultado de evaluar el invariante del libro.
type ConsistencyResponse struct {
	ProductID  string          `json:"product_id"`
	Entradas   decimal.Decimal `json:"entradas"`
	Salidas    decimal.Decimal `json:"salidas"`
	Stock      decimal.Decimal `json:"stock"`
	Remaining  decimal.Decimal `json:"remaining"`
	Consistent bool            `json:"consistent"`
}

// MovementListResponse página de movimientos.
type MovementListResponse struct {
	Items []MovementResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}
