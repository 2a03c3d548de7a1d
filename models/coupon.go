package models

import "time"

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

// Coupon codes are stored uppercase; lookups normalize at the boundary.
type Coupon struct {
	ID            int          `json:"id"`
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discount_type"`
	Value         float64      `json:"value"`
	MinOrderValue *float64     `json:"min_order_value,omitempty"`
	MaxUses       *int         `json:"max_uses,omitempty"`
	UsedCount     int          `json:"used_count"`
	Active        bool         `json:"active"`
	StartsAt      *time.Time   `json:"starts_at,omitempty"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

type CreateCouponRequest struct {
	Code          string       `json:"code" binding:"required"`
	DiscountType  DiscountType `json:"discount_type" binding:"required,oneof=PERCENTAGE FIXED"`
	Value         float64      `json:"value" binding:"required,gt=0"`
	MinOrderValue *float64     `json:"min_order_value" binding:"omitempty,gt=0"`
	MaxUses       *int         `json:"max_uses" binding:"omitempty,gt=0"`
	StartsAt      *time.Time   `json:"starts_at"`
	ExpiresAt     *time.Time   `json:"expires_at"`
}
