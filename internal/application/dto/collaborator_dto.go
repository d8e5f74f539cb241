package dto

import "github.com/shopspring/decimal"

// ProductResponse producto del servicio de catálogo.
type ProductResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Unit      string          `json:"unit,omitempty"`
}

// CreateProductRequest body para POST /api/products del catálogo.
type CreateProductRequest struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Unit      string          `json:"unit,omitempty"`
}

// SupplierResponse proveedor del servicio de partners.
type SupplierResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	NIT  string `json:"nit,omitempty"`
}

// VehicleResponse vehículo del servicio de flota.
type VehicleResponse struct {
	ID    string `json:"id"`
	Plate string `json:"plate"`
}
