package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrProductNotFound    = errors.New("producto no encontrado")
	ErrVehicleNotFound    = errors.New("vehículo no encontrado")
	ErrSupplierNotFound   = errors.New("proveedor no encontrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrConflict           = errors.New("conflicto con el estado actual")
	ErrInsufficientStock  = errors.New("stock insuficiente")
	ErrIntegrity          = errors.New("violación de integridad: stock ya utilizado por salidas posteriores")
	ErrServiceUnavailable = errors.New("servicio no disponible")
	ErrServiceTimeout     = errors.New("tiempo de espera agotado en servicio remoto")
)

// IsTransient indica si el error es candidato a reintento (servicio caído o timeout).
// Validación, no encontrado, integridad y stock insuficiente nunca se reintentan.
func IsTransient(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrServiceTimeout)
}
