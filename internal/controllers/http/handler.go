package http

import (
	"context"
	"net/http"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"
	"github.com/izeeshan007/eternal-essence-backend/internal/repository"
	"github.com/izeeshan007/eternal-essence-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// OrderEngine is the lifecycle API the handlers drive.
type OrderEngine interface {
	SubmitOrder(ctx context.Context, buyer domain.Identity, in services.SubmitOrderInput) (*services.CheckoutResult, error)
	VerifyPayment(ctx context.Context, gatewayOrderRef, gatewayPaymentRef, signature string) (*domain.Order, error)
	RetryPayment(ctx context.Context, orderID string, requester domain.Identity) (*services.CheckoutResult, error)
	CancelOrder(ctx context.Context, orderID string, requester domain.Identity) (*domain.Order, error)
	AdvanceFulfillment(ctx context.Context, orderID string, next domain.OrderStatus, requester domain.Identity) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string, requester domain.Identity) (*domain.Order, error)
	ListOrdersForBuyer(ctx context.Context, requester domain.Identity) ([]domain.Order, error)
	ListOrders(ctx context.Context, requester domain.Identity, filter repository.ListFilter) ([]domain.Order, error)
}

var _ OrderEngine = (*services.OrderService)(nil)

type Handler struct {
	engine OrderEngine
	auth   Authenticator
}

func NewHandler(engine OrderEngine, auth Authenticator) *Handler {
	return &Handler{engine: engine, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api")

	// The gateway callback is authenticated by its signature, not a token.
	api.POST("/orders/verify-payment", h.VerifyPayment)

	orders := api.Group("/orders", RequireAuth(h.auth))
	orders.POST("", h.CreateOrder)
	orders.GET("/my", h.MyOrders)
	orders.GET("/:orderId", h.GetOrder)
	orders.POST("/:orderId/retry-payment", h.RetryPayment)
	orders.POST("/:orderId/cancel", h.CancelOrder)

	admin := api.Group("/admin/orders", RequireAuth(h.auth), RequireAdmin())
	admin.GET("", h.ListOrders)
	admin.GET("/:orderId", h.GetOrder)
	admin.PUT("/:orderId/status", h.UpdateStatus)
	admin.PUT("/:orderId/cancel", h.CancelOrder)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	res, err := h.engine.SubmitOrder(c.Request.Context(), identity(c), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newCheckoutResponse(res))
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	o, err := h.engine.VerifyPayment(c.Request.Context(), req.GatewayOrderRef, req.GatewayPaymentRef, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, StatusResponse{OrderID: o.OrderID, Status: o.Status})
}

func (h *Handler) MyOrders(c *gin.Context) {
	orders, err := h.engine.ListOrdersForBuyer(c.Request.Context(), identity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) GetOrder(c *gin.Context) {
	o, err := h.engine.GetOrder(c.Request.Context(), c.Param("orderId"), identity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) RetryPayment(c *gin.Context) {
	res, err := h.engine.RetryPayment(c.Request.Context(), c.Param("orderId"), identity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCheckoutResponse(res))
}

func (h *Handler) CancelOrder(c *gin.Context) {
	o, err := h.engine.CancelOrder(c.Request.Context(), c.Param("orderId"), identity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StatusResponse{OrderID: o.OrderID, Status: o.Status})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	next, err := domain.ParseStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	o, err := h.engine.AdvanceFulfillment(c.Request.Context(), c.Param("orderId"), next, identity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StatusResponse{OrderID: o.OrderID, Status: o.Status})
}

func (h *Handler) ListOrders(c *gin.Context) {
	var q ListOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	filter := repository.ListFilter{Limit: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		s, err := domain.ParseStatus(q.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		filter.Status = s
	}

	orders, err := h.engine.ListOrders(c.Request.Context(), identity(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}
