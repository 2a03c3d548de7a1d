package models

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

const (
	PaymentMethodCOD   = "COD"
	PaymentMethodBkash = "bKash"
	PaymentMethodNagad = "Nagad"
)

type Order struct {
	ID            int           `json:"id"`
	OrderNumber   string        `json:"order_number"`
	UserID        *int          `json:"user_id,omitempty"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod string        `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentRef    string        `json:"payment_ref,omitempty"`
	Subtotal      float64       `json:"subtotal"`
	ShippingCost  float64       `json:"shipping_cost"`
	Discount      float64       `json:"discount"`
	Total         float64       `json:"total"`
	CouponCode    string        `json:"coupon_code,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	Items         []OrderItem   `json:"items,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// OrderItem is a denormalized snapshot of the product at purchase time.
// Rows are immutable after creation.
type OrderItem struct {
	ID        int     `json:"id"`
	OrderID   int     `json:"order_id"`
	ProductID int     `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
}

// OrderSummary is the list-view shape returned by GET /orders.
type OrderSummary struct {
	ID            int           `json:"id"`
	OrderNumber   string        `json:"order_number"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod string        `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Total         float64       `json:"total"`
	ItemCount     int           `json:"item_count"`
	CreatedAt     time.Time     `json:"created_at"`
}

type ShippingAddress struct {
	FullName      string `json:"full_name" binding:"required"`
	Phone         string `json:"phone" binding:"required"`
	Division      string `json:"division" binding:"required"`
	District      string `json:"district" binding:"required"`
	Area          string `json:"area" binding:"required"`
	StreetAddress string `json:"street_address" binding:"required"`
}

type OrderItemInput struct {
	ProductID int     `json:"product_id" binding:"required"`
	Name      string  `json:"name" binding:"required"`
	Price     float64 `json:"price" binding:"required,gt=0"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	Image     string  `json:"image"`
}

type CreateOrderRequest struct {
	Items           []OrderItemInput `json:"items" binding:"required,min=1,dive"`
	ShippingAddress ShippingAddress  `json:"shipping_address" binding:"required"`
	PaymentMethod   string           `json:"payment_method" binding:"required,oneof=COD bKash Nagad"`
	PaymentRef      string           `json:"payment_ref"`
	Notes           string           `json:"notes"`
	CouponCode      string           `json:"coupon_code"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}

type OrderEvent struct {
	OrderID       int           `json:"order_id"`
	OrderNumber   string        `json:"order_number"`
	UserID        int           `json:"user_id,omitempty"`
	Total         float64       `json:"total"`
	PaymentMethod string        `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	EventType     string        `json:"event_type"` // order_created, payment_success, payment_failed
}
