package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/visioncraft/storefront/internal/handlers"
	"github.com/visioncraft/storefront/internal/middleware"
)

// Options carries what the router needs besides the handlers.
type Options struct {
	Tokens      middleware.TokenValidator
	Roles       middleware.RoleLookup
	Maintenance middleware.MaintenanceChecker
	CORSOrigins []string
	Logger      *zap.Logger
}

func SetupRouter(h *handlers.Handlers, opts Options) *gin.Engine {
	router := gin.New()

	// CORS first so preflight requests never reach auth.
	router.Use(middleware.CORSMiddleware(opts.CORSOrigins))
	router.Use(middleware.RequestLogger(opts.Logger))
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	requireAuth := middleware.AuthMiddleware(opts.Tokens, opts.Roles, opts.Maintenance)

	api := router.Group("/api")
	{
		// --- Auth Routes (Public) ---
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
		api.POST("/logout", h.Logout)

		// --- Catalog (Public) ---
		api.GET("/products", h.ListProducts)
		api.GET("/products/slug/:slug", h.GetProductBySlug)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/categories", h.ListCategories)

		// --- Protected Routes (Login Required) ---
		user := api.Group("/")
		user.Use(requireAuth)
		{
			user.GET("/user", h.Me)
			user.DELETE("/user", h.DeleteUser)
			user.DELETE("/user/:id", h.DeleteUser)

			user.GET("/cart", h.GetCart)
			user.POST("/cart", h.AddToCart)
			user.PUT("/cart/:id", h.UpdateCartItem)
			user.DELETE("/cart/:id", h.DeleteCartItem)

			user.POST("/create-payment-intent", h.CreatePaymentIntent)
			user.POST("/confirm-payment", h.ConfirmPayment)

			user.GET("/orders", h.GetOrders)
			user.GET("/orders/:id", h.GetOrder)
		}

		// --- Admin-Only Routes ---
		admin := api.Group("/")
		admin.Use(requireAuth, middleware.AdminMiddleware())
		{
			admin.POST("/products", h.CreateProduct)
			admin.PUT("/products/:id", h.UpdateProduct)
			admin.DELETE("/products/:id", h.DeleteProduct)
			admin.POST("/categories", h.CreateCategory)

			admin.PUT("/orders/:id/status", h.UpdateOrderStatus)

			admin.GET("/users", h.ListUsers)
			admin.PUT("/users/:id", h.UpdateUser)

			admin.GET("/settings", h.GetSettings)
			admin.PUT("/settings", h.UpdateSettings)

			admin.GET("/admin/stats", h.GetDashboardStats)
			admin.GET("/admin/sales-chart", h.GetSalesChart)
		}
	}

	return router
}
