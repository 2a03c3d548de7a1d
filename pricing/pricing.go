// Package pricing holds the order pricing and coupon eligibility rules.
// Everything here is pure computation; persistence stays in the handlers.
package pricing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"storefront-svc/models"

	"github.com/google/uuid"
)

// FlatShippingRate is the flat delivery charge applied to every order.
// There is no weight or zone based calculation.
const FlatShippingRate = 120.0

// EligibilityError reports why a coupon cannot be applied to an order.
// The Reason is returned verbatim to the client.
type EligibilityError struct {
	Reason string
}

func (e *EligibilityError) Error() string {
	return e.Reason
}

// Subtotal sums price x quantity over the submitted line items.
func Subtotal(items []models.OrderItemInput) float64 {
	var subtotal float64
	for _, item := range items {
		subtotal += item.Price * float64(item.Quantity)
	}
	return subtotal
}

// Discount computes the raw discount amount for an eligible coupon.
func Discount(coupon models.Coupon, subtotal float64) float64 {
	if coupon.DiscountType == models.DiscountTypePercentage {
		return subtotal * coupon.Value / 100
	}
	return coupon.Value
}

// ValidateCoupon checks a coupon against the order subtotal and the clock and
// returns the discount amount. Checks run in a fixed order so the client always
// sees the most specific rejection: activity window, usage cap, minimum order.
func ValidateCoupon(coupon models.Coupon, subtotal float64, now time.Time) (float64, error) {
	if !coupon.Active {
		return 0, &EligibilityError{Reason: "Invalid coupon code"}
	}
	if coupon.StartsAt != nil && now.Before(*coupon.StartsAt) {
		return 0, &EligibilityError{Reason: "Coupon is not active yet"}
	}
	if coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt) {
		return 0, &EligibilityError{Reason: "Coupon has expired"}
	}
	if coupon.MaxUses != nil && coupon.UsedCount >= *coupon.MaxUses {
		return 0, &EligibilityError{Reason: "Coupon usage limit reached"}
	}
	if coupon.MinOrderValue != nil && subtotal < *coupon.MinOrderValue {
		return 0, &EligibilityError{
			Reason: fmt.Sprintf("Minimum order value for this coupon is %.2f", *coupon.MinOrderValue),
		}
	}
	return Discount(coupon, subtotal), nil
}

// Total is the grand total the customer pays.
func Total(subtotal, shippingCost, discount float64) float64 {
	return subtotal + shippingCost - discount
}

// NewOrderNumber builds the human-facing order identifier. The base36
// millisecond timestamp keeps numbers roughly sortable; the random suffix
// keeps two orders in the same millisecond from colliding.
func NewOrderNumber(now time.Time) string {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	suffix := strings.ToUpper(uuid.NewString()[:4])
	return fmt.Sprintf("ORD-%s-%s", ts, suffix)
}

// InitialPaymentStatus maps the payment method to the status a fresh order
// starts with. Wallet payments arrive pre-confirmed; cash on delivery settles
// later.
func InitialPaymentStatus(paymentMethod string) models.PaymentStatus {
	switch paymentMethod {
	case models.PaymentMethodBkash, models.PaymentMethodNagad:
		return models.PaymentStatusPaid
	default:
		return models.PaymentStatusPending
	}
}

// NormalizeCode uppercases a coupon code. Applied at every read and write
// boundary so lookups are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
