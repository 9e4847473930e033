package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/visioncraft/storefront/internal/apperr"
	"github.com/visioncraft/storefront/internal/audit"
	"github.com/visioncraft/storefront/internal/middleware"
	"github.com/visioncraft/storefront/internal/models"
	"github.com/visioncraft/storefront/internal/payment"
)

type UserService interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error)
}

type ProductService interface {
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	GetBySlug(ctx context.Context, slug string) (*models.Product, error)
	Create(ctx context.Context, in models.ProductInput) (*models.Product, error)
	Update(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error)
}

type CategoryService interface {
	List(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, in models.CreateCategoryInput) (*models.Category, error)
}

type CartService interface {
	AddItem(ctx context.Context, userID, productID string, quantity int, opts models.Options) (*models.CartItem, error)
	UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, userID, itemID string) error
	ListItems(ctx context.Context, userID string) ([]models.CartLineView, error)
}

type OrderService interface {
	GetOrders(ctx context.Context, userID *string) ([]models.OrderDetail, error)
	GetOrder(ctx context.Context, id string) (*models.OrderDetail, error)
	UpdateStatus(ctx context.Context, orderID, status string) (*models.OrderDetail, error)
}

type DeletionGuard interface {
	DeleteProduct(ctx context.Context, id string) error
	DeleteUser(ctx context.Context, id string) error
}

type CheckoutService interface {
	CreateIntent(ctx context.Context, userID string, amount decimal.Decimal) (*payment.Intent, error)
	ConfirmPayment(ctx context.Context, userID, intentRef string, address models.ShippingAddress) (*models.OrderDetail, error)
}

type SettingsService interface {
	Get(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, values map[string]string) error
}

type StatsService interface {
	Dashboard(ctx context.Context) (*models.DashboardStats, error)
	SalesChart(ctx context.Context, period string) ([]models.SalesPoint, error)
}

type TokenIssuer interface {
	Generate(userID string) (string, error)
}

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	Users      UserService
	Products   ProductService
	Categories CategoryService
	Carts      CartService
	Orders     OrderService
	Guard      DeletionGuard
	Checkout   CheckoutService
	Settings   SettingsService
	Stats      StatsService
	Tokens     TokenIssuer
	Audit      audit.Sink
	Logger     *zap.Logger
}

// respondError writes err as {"error": message} with the status of its kind.
// Server-side failures are logged with the request path.
func (h *Handlers) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	if status >= http.StatusInternalServerError || kind == apperr.KindPaymentProvider {
		h.Logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("user_id", middleware.UserID(c)),
			zap.String("kind", kind.String()),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

// record writes an audit event. Audit failures never fail the request.
func (h *Handlers) record(c *gin.Context, e audit.Event) {
	if h.Audit == nil {
		return
	}
	if e.UserID == "" {
		e.UserID = middleware.UserID(c)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 5*time.Second)
	defer cancel()
	if err := h.Audit.Record(ctx, e); err != nil {
		h.Logger.Warn("failed to write audit event", zap.String("action", e.Action), zap.Error(err))
	}
}
