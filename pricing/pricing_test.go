package pricing

import (
	"strings"
	"testing"
	"time"

	"storefront-svc/models"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func timePtr(t time.Time) *time.Time {
	return &t
}

func TestSubtotal(t *testing.T) {
	items := []models.OrderItemInput{
		{ProductID: 1, Name: "Notebook", Price: 500, Quantity: 2},
		{ProductID: 2, Name: "Pen", Price: 25.5, Quantity: 4},
	}

	got := Subtotal(items)
	want := 500*2 + 25.5*4

	if got != want {
		t.Errorf("Expected subtotal %v, got %v", want, got)
	}
}

func TestValidateCoupon_Percentage(t *testing.T) {
	coupon := models.Coupon{
		Code:         "SAVE10",
		DiscountType: models.DiscountTypePercentage,
		Value:        10,
		Active:       true,
	}

	discount, err := ValidateCoupon(coupon, 1000, time.Now())
	if err != nil {
		t.Fatalf("Expected coupon to be eligible, got error: %v", err)
	}
	if discount != 100 {
		t.Errorf("Expected discount 100, got %v", discount)
	}
	if total := Total(1000, FlatShippingRate, discount); total != 1000+FlatShippingRate-100 {
		t.Errorf("Expected total %v, got %v", 1000+FlatShippingRate-100, total)
	}
}

func TestValidateCoupon_Fixed(t *testing.T) {
	coupon := models.Coupon{
		Code:         "FLAT150",
		DiscountType: models.DiscountTypeFixed,
		Value:        150,
		Active:       true,
	}

	discount, err := ValidateCoupon(coupon, 1000, time.Now())
	if err != nil {
		t.Fatalf("Expected coupon to be eligible, got error: %v", err)
	}
	if discount != 150 {
		t.Errorf("Expected discount 150, got %v", discount)
	}

	// Fixed discounts do not scale with the subtotal.
	discount, err = ValidateCoupon(coupon, 5000, time.Now())
	if err != nil {
		t.Fatalf("Expected coupon to be eligible, got error: %v", err)
	}
	if discount != 150 {
		t.Errorf("Expected discount 150 on larger subtotal, got %v", discount)
	}
}

func TestValidateCoupon_Inactive(t *testing.T) {
	coupon := models.Coupon{
		Code:         "OLD",
		DiscountType: models.DiscountTypeFixed,
		Value:        50,
		Active:       false,
	}

	if _, err := ValidateCoupon(coupon, 1000, time.Now()); err == nil {
		t.Fatal("Expected inactive coupon to be rejected")
	}
}

func TestValidateCoupon_NotStartedYet(t *testing.T) {
	coupon := models.Coupon{
		Code:         "SOON",
		DiscountType: models.DiscountTypeFixed,
		Value:        50,
		Active:       true,
		StartsAt:     timePtr(time.Now().Add(24 * time.Hour)),
	}

	_, err := ValidateCoupon(coupon, 1000, time.Now())
	if err == nil {
		t.Fatal("Expected not-yet-active coupon to be rejected")
	}
}

func TestValidateCoupon_Expired(t *testing.T) {
	coupon := models.Coupon{
		Code:         "GONE",
		DiscountType: models.DiscountTypePercentage,
		Value:        50,
		Active:       true,
		ExpiresAt:    timePtr(time.Now().Add(-time.Hour)),
	}

	_, err := ValidateCoupon(coupon, 1000, time.Now())
	if err == nil {
		t.Fatal("Expected expired coupon to be rejected")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("Expected expiry message, got %q", err.Error())
	}
}

func TestValidateCoupon_UsageLimitReached(t *testing.T) {
	coupon := models.Coupon{
		Code:         "LIMITED",
		DiscountType: models.DiscountTypeFixed,
		Value:        100,
		Active:       true,
		MaxUses:      intPtr(5),
		UsedCount:    5,
	}

	_, err := ValidateCoupon(coupon, 1000, time.Now())
	if err == nil {
		t.Fatal("Expected exhausted coupon to be rejected")
	}
	if !strings.Contains(err.Error(), "limit") {
		t.Errorf("Expected usage limit message, got %q", err.Error())
	}
}

func TestValidateCoupon_MinimumOrderNotMet(t *testing.T) {
	coupon := models.Coupon{
		Code:          "BIGSPEND",
		DiscountType:  models.DiscountTypePercentage,
		Value:         20,
		Active:        true,
		MinOrderValue: floatPtr(2000),
	}

	_, err := ValidateCoupon(coupon, 1500, time.Now())
	if err == nil {
		t.Fatal("Expected under-minimum order to be rejected")
	}
	if !strings.Contains(err.Error(), "2000") {
		t.Errorf("Expected message to name the threshold, got %q", err.Error())
	}
}

func TestNewOrderNumber(t *testing.T) {
	now := time.Now()
	number := NewOrderNumber(now)

	if !strings.HasPrefix(number, "ORD-") {
		t.Errorf("Expected ORD- prefix, got %q", number)
	}
	if number != strings.ToUpper(number) {
		t.Errorf("Expected uppercase order number, got %q", number)
	}

	// Same-millisecond calls must still differ.
	if other := NewOrderNumber(now); other == number {
		t.Errorf("Expected distinct order numbers for the same timestamp, got %q twice", number)
	}
}

func TestInitialPaymentStatus(t *testing.T) {
	tests := []struct {
		method string
		want   models.PaymentStatus
	}{
		{models.PaymentMethodCOD, models.PaymentStatusPending},
		{models.PaymentMethodBkash, models.PaymentStatusPaid},
		{models.PaymentMethodNagad, models.PaymentStatusPaid},
	}

	for _, tt := range tests {
		if got := InitialPaymentStatus(tt.method); got != tt.want {
			t.Errorf("InitialPaymentStatus(%q) = %q, want %q", tt.method, got, tt.want)
		}
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  save10 "); got != "SAVE10" {
		t.Errorf("Expected SAVE10, got %q", got)
	}
}

func TestEndToEnd_CODNoCoupon(t *testing.T) {
	items := []models.OrderItemInput{{ProductID: 1, Name: "Mug", Price: 500, Quantity: 2}}

	subtotal := Subtotal(items)
	if subtotal != 1000 {
		t.Errorf("Expected subtotal 1000, got %v", subtotal)
	}

	total := Total(subtotal, FlatShippingRate, 0)
	if total != 1120 {
		t.Errorf("Expected total 1120, got %v", total)
	}

	if status := InitialPaymentStatus(models.PaymentMethodCOD); status != models.PaymentStatusPending {
		t.Errorf("Expected PENDING payment status, got %q", status)
	}
}
