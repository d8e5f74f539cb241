package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/evertweb/programajava-sub002/internal/application/dto"
	"github.com/evertweb/programajava-sub002/internal/application/inventory"
)

// MovementHandler maneja las peticiones HTTP del libro de movimientos.
type MovementHandler struct {
	uc *inventory.MovementUseCase
}

// NewMovementHandler construye el handler.
func NewMovementHandler(uc *inventory.MovementUseCase) *MovementHandler {
	return &MovementHandler{uc: uc}
}

// Create godoc
// @Summary      Registrar movimiento (ENTRADA o SALIDA)
// @Tags         movements
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateMovementRequest  true  "product_id, type, quantity, unit_price (ENTRADA), vehicle_id"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/movements [post]
func (h *MovementHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	mov, err := h.uc.CreateMovement(c.UserContext(), inventory.MovementInputDTO{
		ProductID: in.ProductID,
		VehicleID: in.VehicleID,
		InvoiceID: in.InvoiceID,
		Type:      in.Type,
		Quantity:  in.Quantity,
		UnitPrice: in.UnitPrice,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewMovementResponse(mov))
}

// CreateSalida godoc
// @Summary      Despachar producto a un vehículo (SALIDA FIFO)
// @Tags         movements
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateSalidaRequest  true  "product_id, vehicle_id, quantity"
// @Success      201   {object}  dto.MovementResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/movements/salida [post]
func (h *MovementHandler) CreateSalida(c *fiber.Ctx) error {
	var in dto.CreateSalidaRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	mov, err := h.uc.CreateSalida(c.UserContext(), in.ProductID, in.VehicleID, in.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewMovementResponse(mov))
}

// CreateEntrada godoc
// @Summary      Registrar ENTRADA de una factura (solo servicio de facturación)
// @Tags         internal
// @Security     ServiceToken
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateEntradaRequest  true  "id (idempotencia), product_id, invoice_id, quantity, unit_price"
// @Success      201   {object}  dto.MovementResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/internal/movements/entrada [post]
func (h *MovementHandler) CreateEntrada(c *fiber.Ctx) error {
	var in dto.CreateEntradaRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	mov, err := h.uc.CreateEntrada(c.UserContext(), in.ID, in.ProductID, in.InvoiceID, in.Quantity, in.UnitPrice)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewMovementResponse(mov))
}

// GetByID godoc
// @Summary      Obtener movimiento
// @Tags         movements
// @Produce      json
// @Param        id   path  string  true  "ID del movimiento"
// @Success      200  {object}  dto.MovementResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/movements/{id} [get]
// @Router       /api/internal/movements/{id} [get]
func (h *MovementHandler) GetByID(c *fiber.Ctx) error {
	mov, err := h.uc.GetMovement(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewMovementResponse(mov))
}

// List godoc
// @Summary      Listar movimientos de un producto
// @Tags         movements
// @Produce      json
// @Param        product_id  query  string  true   "Producto"
// @Param        limit       query  int     false  "Máximo 100"
// @Param        offset      query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.MovementListResponse
// @Router       /api/movements [get]
func (h *MovementHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return badBody(c)
	}
	page.DefaultPage()
	list, err := h.uc.ListByProduct(c.UserContext(), c.Query("product_id"), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	items := make([]dto.MovementResponse, 0, len(list))
	for _, m := range list {
		items = append(items, dto.NewMovementResponse(m))
	}
	return c.JSON(dto.MovementListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// Delete godoc
// @Summary      Eliminar movimiento (restaura stock FIFO si es SALIDA)
// @Tags         movements
// @Param        id   path  string  true  "ID del movimiento"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse  "ENTRADA ya consumida"
// @Router       /api/movements/{id} [delete]
func (h *MovementHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.DeleteMovement(c.UserContext(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Stock godoc
// @Summary      Stock actual del producto
// @Tags         stock
// @Produce      json
// @Param        productId  path  string  true  "Producto"
// @Success      200  {object}  dto.StockResponse
// @Router       /api/stock/{productId} [get]
func (h *MovementHandler) Stock(c *fiber.Ctx) error {
	productID := c.Params("productId")
	qty, err := h.uc.GetStock(c.UserContext(), productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.StockResponse{ProductID: productID, Quantity: qty})
}

// AveragePrice godoc
// @Summary      Precio promedio ponderado del stock restante
// @Tags         stock
// @Produce      json
// @Param        productId  path  string  true  "Producto"
// @Success      200  {object}  dto.AveragePriceResponse
// @Router       /api/stock/{productId}/average-price [get]
func (h *MovementHandler) AveragePrice(c *fiber.Ctx) error {
	productID := c.Params("productId")
	price, err := h.uc.GetWeightedAveragePrice(c.UserContext(), productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.AveragePriceResponse{ProductID: productID, Price: price})
}

// Consistency godoc
// @Summary      Verificar el invariante del libro para un producto
// @Tags         stock
// @Produce      json
// @Param        productId  path  string  true  "Producto"
// @Success      200  {object}  dto.ConsistencyResponse
// @Router       /api/stock/{productId}/consistency [get]
func (h *MovementHandler) Consistency(c *fiber.Ctx) error {
	res, err := h.uc.CheckConsistency(c.UserContext(), c.Params("productId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ConsistencyResponse{
		ProductID:  res.ProductID,
		Entradas:   res.Entradas,
		Salidas:    res.Salidas,
		Stock:      res.Stock,
		Remaining:  res.Remaining,
		Consistent: res.Consistent,
	})
}
