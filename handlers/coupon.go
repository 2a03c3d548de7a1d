package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"storefront-svc/models"
	"storefront-svc/pricing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type CouponHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewCouponHandler(db *sql.DB, logger *zap.Logger) *CouponHandler {
	return &CouponHandler{
		db:     db,
		logger: logger,
	}
}

func (h *CouponHandler) CreateCoupon(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-svc").Start(c.Request.Context(), "CreateCoupon")
	defer span.End()

	var req models.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code := pricing.NormalizeCode(req.Code)
	span.SetAttributes(attribute.String("coupon.code", code))

	var coupon models.Coupon
	err := h.db.QueryRowContext(ctx,
		"INSERT INTO coupons (code, discount_type, value, min_order_value, max_uses, starts_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, code, discount_type, value, min_order_value, max_uses, used_count, active, starts_at, expires_at, created_at",
		code, req.DiscountType, req.Value, req.MinOrderValue, req.MaxUses, req.StartsAt, req.ExpiresAt,
	).Scan(&coupon.ID, &coupon.Code, &coupon.DiscountType, &coupon.Value, &coupon.MinOrderValue,
		&coupon.MaxUses, &coupon.UsedCount, &coupon.Active, &coupon.StartsAt, &coupon.ExpiresAt, &coupon.CreatedAt)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create coupon", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("Coupon created", zap.String("code", coupon.Code))
	c.JSON(http.StatusCreated, coupon)
}

func (h *CouponHandler) ListCoupons(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-svc").Start(c.Request.Context(), "ListCoupons")
	defer span.End()

	rows, err := h.db.QueryContext(ctx,
		"SELECT id, code, discount_type, value, min_order_value, max_uses, used_count, active, starts_at, expires_at, created_at FROM coupons ORDER BY id",
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch coupons", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	coupons := []models.Coupon{}
	for rows.Next() {
		var coupon models.Coupon
		if err := rows.Scan(&coupon.ID, &coupon.Code, &coupon.DiscountType, &coupon.Value, &coupon.MinOrderValue,
			&coupon.MaxUses, &coupon.UsedCount, &coupon.Active, &coupon.StartsAt, &coupon.ExpiresAt, &coupon.CreatedAt); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan coupon", zap.Error(err))
			continue
		}
		coupons = append(coupons, coupon)
	}

	span.SetAttributes(attribute.Int("coupons.count", len(coupons)))
	c.JSON(http.StatusOK, coupons)
}

// DeactivateCoupon flips the active flag off; coupons are never deleted so
// historical orders keep a valid code reference.
func (h *CouponHandler) DeactivateCoupon(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-svc").Start(c.Request.Context(), "DeactivateCoupon")
	defer span.End()

	couponID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coupon ID"})
		return
	}

	span.SetAttributes(attribute.Int("coupon.id", couponID))

	result, err := h.db.ExecContext(ctx, "UPDATE coupons SET active = FALSE WHERE id = $1", couponID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to deactivate coupon", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Coupon not found"})
		return
	}

	h.logger.Info("Coupon deactivated", zap.Int("coupon_id", couponID))
	c.JSON(http.StatusOK, gin.H{"message": "Coupon deactivated"})
}
