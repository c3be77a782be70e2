// Package http provides HTTP handlers for order lifecycle operations.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/orders/internal/httputil"
	"github.com/allisson/orders/internal/order/domain"
	"github.com/allisson/orders/internal/order/http/dto"
	"github.com/allisson/orders/internal/order/usecase"
	customValidation "github.com/allisson/orders/internal/validation"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	orderUseCase usecase.OrderUseCase
	logger       *slog.Logger
}

// NewOrderHandler creates a new order handler with required dependencies.
func NewOrderHandler(orderUseCase usecase.OrderUseCase, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orderUseCase: orderUseCase,
		logger:       logger,
	}
}

// CreateHandler places a new order.
// POST /v1/orders - Returns 201 Created with the PENDING order.
func (h *OrderHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	order, err := h.orderUseCase.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapOrderToResponse(order))
}

// GetHandler retrieves an order by ID.
// GET /v1/orders/:id - Returns 200 OK with the order.
func (h *OrderHandler) GetHandler(c *gin.Context) {
	h.handleByID(c, h.orderUseCase.Get)
}

// ListHandler lists the orders of a customer.
// GET /v1/orders?customer_id=customer_42 - Returns 200 OK with the orders, oldest first.
func (h *OrderHandler) ListHandler(c *gin.Context) {
	customerID := c.Query("customer_id")
	if customerID == "" {
		httputil.HandleValidationErrorGin(c,
			errors.New("customer_id query parameter is required"),
			h.logger)
		return
	}

	orders, err := h.orderUseCase.ListByCustomer(c.Request.Context(), customerID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOrdersToListResponse(orders))
}

// ConfirmHandler confirms a PENDING order.
// POST /v1/orders/:id/confirm
func (h *OrderHandler) ConfirmHandler(c *gin.Context) {
	h.handleByID(c, h.orderUseCase.Confirm)
}

// ShipHandler ships a CONFIRMED order.
// POST /v1/orders/:id/ship
func (h *OrderHandler) ShipHandler(c *gin.Context) {
	h.handleByID(c, h.orderUseCase.Ship)
}

// DeliverHandler delivers a SHIPPED order.
// POST /v1/orders/:id/deliver
func (h *OrderHandler) DeliverHandler(c *gin.Context) {
	h.handleByID(c, h.orderUseCase.Deliver)
}

// CancelHandler cancels an order that has not been delivered.
// POST /v1/orders/:id/cancel
func (h *OrderHandler) CancelHandler(c *gin.Context) {
	h.handleByID(c, h.orderUseCase.Cancel)
}

func (h *OrderHandler) handleByID(
	c *gin.Context,
	action func(ctx context.Context, id domain.OrderID) (*domain.Order, error),
) {
	id, err := domain.ParseOrderID(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	order, err := action(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOrderToResponse(order))
}
