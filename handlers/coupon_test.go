package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-svc/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func setupCouponTest(t *testing.T) (*CouponHandler, sqlmock.Sqlmock, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	handler := NewCouponHandler(db, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/admin/coupons", handler.CreateCoupon)
	router.GET("/admin/coupons", handler.ListCoupons)
	router.PATCH("/admin/coupons/:id/deactivate", handler.DeactivateCoupon)

	return handler, mock, router
}

func couponColumns() []string {
	return []string{"id", "code", "discount_type", "value", "min_order_value", "max_uses", "used_count", "active", "starts_at", "expires_at", "created_at"}
}

func TestCouponHandler_CreateCoupon_NormalizesCode(t *testing.T) {
	handler, mock, router := setupCouponTest(t)
	defer handler.db.Close()

	rows := sqlmock.NewRows(couponColumns()).
		AddRow(1, "SAVE10", "PERCENTAGE", 10.0, nil, nil, 0, true, nil, nil, time.Now())

	mock.ExpectQuery("INSERT INTO coupons").
		WithArgs("SAVE10", models.DiscountTypePercentage, 10.0, nil, nil, nil, nil).
		WillReturnRows(rows)

	reqBody := models.CreateCouponRequest{
		Code:         "save10", // stored uppercase
		DiscountType: models.DiscountTypePercentage,
		Value:        10,
	}

	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest("POST", "/admin/coupons", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d (body: %s)", http.StatusCreated, w.Code, w.Body.String())
	}

	var coupon models.Coupon
	if err := json.Unmarshal(w.Body.Bytes(), &coupon); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if coupon.Code != "SAVE10" {
		t.Errorf("Expected code SAVE10, got %q", coupon.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestCouponHandler_CreateCoupon_RejectsUnknownType(t *testing.T) {
	handler, mock, router := setupCouponTest(t)
	defer handler.db.Close()

	body, _ := json.Marshal(map[string]any{
		"code":          "ODD",
		"discount_type": "BOGOF",
		"value":         10,
	})
	req := httptest.NewRequest("POST", "/admin/coupons", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unexpected database calls were made: %v", err)
	}
}

func TestCouponHandler_ListCoupons_Success(t *testing.T) {
	handler, mock, router := setupCouponTest(t)
	defer handler.db.Close()

	rows := sqlmock.NewRows(couponColumns()).
		AddRow(1, "SAVE10", "PERCENTAGE", 10.0, nil, nil, 3, true, nil, nil, time.Now()).
		AddRow(2, "FLAT150", "FIXED", 150.0, 1000.0, 5, 5, false, nil, nil, time.Now())

	mock.ExpectQuery("SELECT (.+) FROM coupons ORDER BY id").
		WillReturnRows(rows)

	req := httptest.NewRequest("GET", "/admin/coupons", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var coupons []models.Coupon
	if err := json.Unmarshal(w.Body.Bytes(), &coupons); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(coupons) != 2 {
		t.Errorf("Expected 2 coupons, got %d", len(coupons))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestCouponHandler_DeactivateCoupon_NotFound(t *testing.T) {
	handler, mock, router := setupCouponTest(t)
	defer handler.db.Close()

	mock.ExpectExec("UPDATE coupons SET active = FALSE WHERE id = \\$1").
		WithArgs(99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	req := httptest.NewRequest("PATCH", "/admin/coupons/99/deactivate", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
