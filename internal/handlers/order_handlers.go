package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/visioncraft/storefront/internal/audit"
	"github.com/visioncraft/storefront/internal/middleware"
	"github.com/visioncraft/storefront/internal/models"
)

// CreatePaymentIntentInput carries the amount the client is about to pay.
type CreatePaymentIntentInput struct {
	Amount decimal.Decimal `json:"amount"`
}

// ConfirmPaymentInput accepts the intent id or its client secret.
type ConfirmPaymentInput struct {
	PaymentIntentID string                 `json:"paymentIntentId" binding:"required"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress" binding:"required"`
}

//
// --- Checkout ---
//

func (h *Handlers) CreatePaymentIntent(c *gin.Context) {
	var input CreatePaymentIntentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	intent, err := h.Checkout.CreateIntent(c.Request.Context(), middleware.UserID(c), input.Amount)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"clientSecret":    intent.ClientSecret,
		"paymentIntentId": intent.ID,
	})
}

// ConfirmPayment places the order for a paid intent. Retries return the same order.
func (h *Handlers) ConfirmPayment(c *gin.Context) {
	var input ConfirmPaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.Checkout.ConfirmPayment(c.Request.Context(), middleware.UserID(c), input.PaymentIntentID, input.ShippingAddress)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

//
// --- Orders ---
//

// GetOrders returns the caller's orders, or every order for an admin.
func (h *Handlers) GetOrders(c *gin.Context) {
	var scope *string
	if !middleware.IsAdmin(c) {
		userID := middleware.UserID(c)
		scope = &userID
	}

	orders, err := h.Orders.GetOrders(c.Request.Context(), scope)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if orders == nil {
		orders = []models.OrderDetail{}
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handlers) GetOrder(c *gin.Context) {
	order, err := h.Orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if order.UserID != middleware.UserID(c) && !middleware.IsAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied: this order belongs to another user"})
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus is admin only. Illegal transitions are a 400.
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	var input models.UpdateOrderStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.Orders.UpdateStatus(c.Request.Context(), c.Param("id"), input.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.record(c, audit.Event{
		Action:   audit.ActionOrderStatusChanged,
		EntityID: order.ID,
		Data:     map[string]interface{}{"status": string(order.Status)},
	})
	c.JSON(http.StatusOK, order)
}
