package entity

// Supplier es la vista mínima de un proveedor (servicio de partners).
type Supplier struct {
	ID   string
	Name string
	NIT  string
}

// Vehicle es la vista mínima de un vehículo de la flota.
type Vehicle struct {
	ID    string
	Plate string
}
