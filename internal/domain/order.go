package domain

import (
	"time"

	"gorm.io/datatypes"
)

type PaymentMethod string

const (
	PaymentOnline PaymentMethod = "OnlineGateway"
	PaymentCOD    PaymentMethod = "CashOnDelivery"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentOnline || m == PaymentCOD
}

// Buyer is captured at checkout and never changes afterwards.
type Buyer struct {
	UserID  string `json:"userId" gorm:"size:64;index"`
	Email   string `json:"email" gorm:"size:255;not null;index"`
	Name    string `json:"name,omitempty" gorm:"size:255"`
	Phone   string `json:"phone,omitempty" gorm:"size:32"`
	Address string `json:"address,omitempty" gorm:"size:1024"`
}

type LineItem struct {
	ID         uint64 `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderID    string `json:"-" gorm:"size:32;not null;index"`
	Position   int    `json:"-" gorm:"not null"`
	ProductRef string `json:"productRef" gorm:"size:64;not null"`
	Name       string `json:"name,omitempty" gorm:"size:255"`
	Variant    string `json:"variant,omitempty" gorm:"size:64"`
	Quantity   int    `json:"quantity" gorm:"not null"`
	UnitPrice  int64  `json:"unitPrice" gorm:"not null"`
}

func (i LineItem) Amount() int64 {
	return int64(i.Quantity) * i.UnitPrice
}

// Order amounts are integer minor units of Currency.
type Order struct {
	ID                uint64            `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderID           string            `json:"orderId" gorm:"size:32;not null;uniqueIndex"`
	Buyer             Buyer             `json:"buyer" gorm:"embedded;embeddedPrefix:buyer_"`
	Items             []LineItem        `json:"items" gorm:"foreignKey:OrderID;references:OrderID"`
	Subtotal          int64             `json:"subtotal" gorm:"not null"`
	Discount          int64             `json:"discount" gorm:"not null"`
	ShippingFee       int64             `json:"shippingFee" gorm:"not null"`
	Total             int64             `json:"total" gorm:"not null"`
	Currency          string            `json:"currency" gorm:"size:8;not null"`
	PaymentMethod     PaymentMethod     `json:"paymentMethod" gorm:"size:32;not null"`
	Status            OrderStatus       `json:"status" gorm:"type:varchar(32);not null;index"`
	GatewayOrderRef   string            `json:"gatewayOrderRef,omitempty" gorm:"size:64;index"`
	GatewayPaymentRef string            `json:"gatewayPaymentRef,omitempty" gorm:"size:64"`
	GatewaySignature  string            `json:"-" gorm:"size:128"`
	PaymentAttempts   int               `json:"paymentAttempts" gorm:"not null;default:0"`
	Metadata          datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// BalancedTotal reports whether total == subtotal - discount + shippingFee.
func (o *Order) BalancedTotal() bool {
	return o.Total == o.Subtotal-o.Discount+o.ShippingFee
}

// OwnedBy matches the verified identity against the stored buyer, never
// against anything the client sent with the request.
func (o *Order) OwnedBy(id Identity) bool {
	if o.Buyer.UserID != "" && id.UserID != "" {
		return o.Buyer.UserID == id.UserID
	}
	return o.Buyer.Email != "" && o.Buyer.Email == NormalizeEmail(id.Email)
}

// GatewayIntent is what a client needs to open the gateway checkout.
type GatewayIntent struct {
	GatewayOrderRef string `json:"gatewayOrderRef"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	KeyID           string `json:"keyId,omitempty"`
}

// Identity is what the auth collaborator vouches for.
type Identity struct {
	UserID  string
	Email   string
	IsAdmin bool
}
