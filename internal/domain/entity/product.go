package entity

import "github.com/shopspring/decimal"

// Product es la vista mínima del catálogo que consumen el libro y la saga.
// El CRUD de productos vive en el servicio de catálogo.
type Product struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal
	Unit      string // galón, litro, unidad...
}
