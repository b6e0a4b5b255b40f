package http

import (
	"github.com/izeeshan007/eternal-essence-backend/internal/domain"
	"github.com/izeeshan007/eternal-essence-backend/internal/services"
)

type LineItemRequest struct {
	ProductRef string `json:"productRef" binding:"required,max=64"`
	Variant    string `json:"variant" binding:"omitempty,max=64"`
	Quantity   int    `json:"quantity" binding:"required,min=1,max=100"`
}

// CreateOrderRequest carries no prices; totals are computed server side.
type CreateOrderRequest struct {
	Name          string            `json:"name" binding:"omitempty,max=255"`
	Email         string            `json:"email" binding:"omitempty,email"`
	Phone         string            `json:"phone" binding:"omitempty,max=32"`
	Address       string            `json:"address" binding:"omitempty,max=1024"`
	Items         []LineItemRequest `json:"items" binding:"required,min=1,max=50,dive"`
	PaymentMethod string            `json:"paymentMethod" binding:"required,oneof=OnlineGateway CashOnDelivery"`
	CouponCode    string            `json:"couponCode" binding:"omitempty,max=64"`
}

func (r CreateOrderRequest) toInput() services.SubmitOrderInput {
	items := make([]services.LineItemInput, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, services.LineItemInput{ProductRef: it.ProductRef, Variant: it.Variant, Quantity: it.Quantity})
	}
	return services.SubmitOrderInput{
		Name:          r.Name,
		Email:         r.Email,
		Phone:         r.Phone,
		Address:       r.Address,
		Items:         items,
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod),
		CouponCode:    r.CouponCode,
	}
}

type VerifyPaymentRequest struct {
	GatewayOrderRef   string `json:"gatewayOrderRef" binding:"required"`
	GatewayPaymentRef string `json:"gatewayPaymentRef" binding:"required"`
	Signature         string `json:"signature" binding:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type ListOrdersQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

type CheckoutResponse struct {
	OrderID string                `json:"orderId"`
	Status  domain.OrderStatus    `json:"status"`
	Total   int64                 `json:"total"`
	Payment *domain.GatewayIntent `json:"payment,omitempty"`
	Order   *domain.Order         `json:"order"`
}

func newCheckoutResponse(res *services.CheckoutResult) CheckoutResponse {
	return CheckoutResponse{
		OrderID: res.Order.OrderID,
		Status:  res.Order.Status,
		Total:   res.Order.Total,
		Payment: res.Intent,
		Order:   res.Order,
	}
}

type StatusResponse struct {
	OrderID string             `json:"orderId"`
	Status  domain.OrderStatus `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	OrderID string `json:"orderId,omitempty"`
}
