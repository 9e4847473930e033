package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/visioncraft/storefront/internal/middleware"
	"github.com/visioncraft/storefront/internal/models"
	"github.com/visioncraft/storefront/internal/pricing"
)

//
// --- Cart Handlers ---
//

// CartResponse is the cart re-priced from the live catalog.
type CartResponse struct {
	Items      []models.CartLineView `json:"items"`
	Subtotal   models.Money          `json:"subtotal"`
	Tax        models.Money          `json:"tax"`
	Shipping   models.Money          `json:"shipping"`
	Total      models.Money          `json:"total"`
	TotalItems int                   `json:"totalItems"`
}

func (h *Handlers) GetCart(c *gin.Context) {
	userID := middleware.UserID(c)

	// 1. --- Load lines with live products ---
	lines, err := h.Carts.ListItems(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if lines == nil {
		lines = []models.CartLineView{}
	}

	// 2. --- Price them ---
	resp := CartResponse{Items: lines}
	resp.Subtotal, resp.Tax, resp.Shipping, resp.Total = pricing.Compute(pricing.FromCart(lines)).Money()
	for _, l := range lines {
		resp.TotalItems += l.Quantity
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) AddToCart(c *gin.Context) {
	var input models.AddToCartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.Carts.AddItem(c.Request.Context(), middleware.UserID(c), input.ProductID, input.Quantity, input.Options)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handlers) UpdateCartItem(c *gin.Context) {
	var input models.UpdateCartItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.Carts.UpdateQuantity(c.Request.Context(), middleware.UserID(c), c.Param("id"), input.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteCartItem is idempotent: removing a missing line still returns 204.
func (h *Handlers) DeleteCartItem(c *gin.Context) {
	if err := h.Carts.RemoveItem(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
