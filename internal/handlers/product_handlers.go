package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/visioncraft/storefront/internal/audit"
	"github.com/visioncraft/storefront/internal/models"
)

//
// --- Catalog (Public) ---
//

// ListProducts serves GET /api/products?categoryId=&search=
func (h *Handlers) ListProducts(c *gin.Context) {
	filter := models.ProductFilter{
		CategoryID: strings.TrimSpace(c.Query("categoryId")),
		Search:     strings.TrimSpace(c.Query("search")),
	}
	products, err := h.Products.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handlers) GetProduct(c *gin.Context) {
	product, err := h.Products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handlers) GetProductBySlug(c *gin.Context) {
	product, err := h.Products.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

//
// --- Catalog (Admin) ---
//

func (h *Handlers) CreateProduct(c *gin.Context) {
	var input models.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := h.Products.Create(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handlers) UpdateProduct(c *gin.Context) {
	var patch models.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := h.Products.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// DeleteProduct refuses with 409 when the product appears on any order.
func (h *Handlers) DeleteProduct(c *gin.Context) {
	id := c.Param("id")
	if err := h.Guard.DeleteProduct(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	h.record(c, audit.Event{Action: audit.ActionProductDeleted, EntityID: id})
	c.Status(http.StatusNoContent)
}

//
// --- Categories ---
//

func (h *Handlers) ListCategories(c *gin.Context) {
	categories, err := h.Categories.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *Handlers) CreateCategory(c *gin.Context) {
	var input models.CreateCategoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category, err := h.Categories.Create(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}
