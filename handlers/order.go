package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"storefront-svc/kafka"
	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/pricing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type OrderHandler struct {
	db        *sql.DB
	publisher kafka.Publisher
	logger    *zap.Logger
}

func NewOrderHandler(db *sql.DB, publisher kafka.Publisher, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		db:        db,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateOrder turns a submitted cart into a priced, persisted order. Pricing
// and coupon eligibility run before any write; the writes themselves (address,
// order, items, coupon counter, stock counters) share one transaction so a
// failed step leaves nothing behind.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-svc").Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.Int("order.item_count", len(req.Items)),
		attribute.String("order.payment_method", req.PaymentMethod),
	)

	subtotal := pricing.Subtotal(req.Items)
	shippingCost := pricing.FlatShippingRate

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}
	defer tx.Rollback()

	var discount float64
	var coupon *models.Coupon
	if req.CouponCode != "" {
		code := pricing.NormalizeCode(req.CouponCode)
		span.SetAttributes(attribute.String("order.coupon_code", code))

		var cp models.Coupon
		// Row lock so concurrent redemptions of the same code serialize.
		err := tx.QueryRowContext(ctx,
			"SELECT id, code, discount_type, value, min_order_value, max_uses, used_count, active, starts_at, expires_at FROM coupons WHERE code = $1 FOR UPDATE",
			code,
		).Scan(&cp.ID, &cp.Code, &cp.DiscountType, &cp.Value, &cp.MinOrderValue, &cp.MaxUses, &cp.UsedCount, &cp.Active, &cp.StartsAt, &cp.ExpiresAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				middleware.RecordCouponRejection("not_found")
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coupon code"})
				return
			}
			span.RecordError(err)
			h.logger.Error("Failed to load coupon", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
			return
		}

		discount, err = pricing.ValidateCoupon(cp, subtotal, time.Now())
		if err != nil {
			var eligibility *pricing.EligibilityError
			if errors.As(err, &eligibility) {
				middleware.RecordCouponRejection("ineligible")
				c.JSON(http.StatusBadRequest, gin.H{"error": eligibility.Reason})
				return
			}
			span.RecordError(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
			return
		}
		coupon = &cp
	}

	total := pricing.Total(subtotal, shippingCost, discount)
	orderNumber := pricing.NewOrderNumber(time.Now())
	paymentStatus := pricing.InitialPaymentStatus(req.PaymentMethod)

	// Addresses are only saved for signed-in customers; guests still check out.
	var userID *int
	var addressID *int
	if id, ok := middleware.UserID(c); ok {
		userID = &id

		var newAddressID int
		err := tx.QueryRowContext(ctx,
			"INSERT INTO addresses (user_id, full_name, phone, division, district, area, street_address) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id",
			id, req.ShippingAddress.FullName, req.ShippingAddress.Phone, req.ShippingAddress.Division,
			req.ShippingAddress.District, req.ShippingAddress.Area, req.ShippingAddress.StreetAddress,
		).Scan(&newAddressID)
		if err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to save address", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
			return
		}
		addressID = &newAddressID
	}

	couponCode := ""
	if coupon != nil {
		couponCode = coupon.Code
	}

	var orderID int
	err = tx.QueryRowContext(ctx,
		"INSERT INTO orders (order_number, user_id, address_id, status, payment_method, payment_status, payment_ref, subtotal, shipping_cost, discount, total, coupon_code, notes) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id",
		orderNumber, userID, addressID, models.OrderStatusPending, req.PaymentMethod, paymentStatus,
		req.PaymentRef, subtotal, shippingCost, discount, total, couponCode, req.Notes,
	).Scan(&orderID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}

	for _, item := range req.Items {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, product_id, name, price, image, quantity) VALUES ($1, $2, $3, $4, $5, $6)",
			orderID, item.ProductID, item.Name, item.Price, item.Image, item.Quantity,
		)
		if err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to create order item", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
			return
		}
	}

	if coupon != nil {
		// Guarded increment; the usage cap is re-checked in SQL so a racing
		// redemption past the limit rolls the whole order back.
		result, err := tx.ExecContext(ctx,
			"UPDATE coupons SET used_count = used_count + 1 WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)",
			coupon.ID,
		)
		if err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to update coupon usage", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
			return
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			middleware.RecordCouponRejection("limit_reached")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Coupon usage limit reached"})
			return
		}
	}

	for _, item := range req.Items {
		// Guarded decrement keeps stock from going negative under concurrency.
		result, err := tx.ExecContext(ctx,
			"UPDATE products SET stock = stock - $1, sales_count = sales_count + $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND stock >= $1",
			item.Quantity, item.ProductID,
		)
		if err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to update product stock", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
			return
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Insufficient stock for %s", item.Name)})
			return
		}
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to commit order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}

	span.SetAttributes(attribute.Int("order.id", orderID))
	middleware.RecordOrderCreated(req.PaymentMethod)

	event := models.OrderEvent{
		OrderID:       orderID,
		OrderNumber:   orderNumber,
		Total:         total,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: paymentStatus,
		EventType:     "order_created",
	}
	if userID != nil {
		event.UserID = *userID
	}

	if err := h.publisher.PublishOrderEvent(ctx, "order_events", event); err != nil {
		// Don't fail the request, the order is already committed
		h.logger.Error("Failed to publish order_created event", zap.Error(err))
	}

	h.logger.Info("Order created",
		zap.Int("order_id", orderID),
		zap.String("order_number", orderNumber),
		zap.Float64("total", total),
	)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"order": gin.H{
			"id":           orderID,
			"order_number": orderNumber,
			"total":        total,
		},
	})
}

// ListOrders returns the authenticated caller's order summaries, newest first.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-svc").Start(c.Request.Context(), "ListOrders")
	defer span.End()

	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	rows, err := h.db.QueryContext(ctx,
		"SELECT o.id, o.order_number, o.status, o.payment_method, o.payment_status, o.total, COUNT(i.id), o.created_at FROM orders o LEFT JOIN order_items i ON i.order_id = o.id WHERE o.user_id = $1 GROUP BY o.id ORDER BY o.created_at DESC",
		userID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	orders := []models.OrderSummary{}
	for rows.Next() {
		var o models.OrderSummary
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.Status, &o.PaymentMethod, &o.PaymentStatus, &o.Total, &o.ItemCount, &o.CreatedAt); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan order", zap.Error(err))
			continue
		}
		orders = append(orders, o)
	}

	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	c.JSON(http.StatusOK, orders)
}

// GetOrder returns one of the caller's orders with its line items.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-svc").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	span.SetAttributes(attribute.Int("order.id", orderID))

	var order models.Order
	err = h.db.QueryRowContext(ctx,
		"SELECT id, order_number, status, payment_method, payment_status, payment_ref, subtotal, shipping_cost, discount, total, coupon_code, notes, created_at, updated_at FROM orders WHERE id = $1 AND user_id = $2",
		orderID, userID,
	).Scan(&order.ID, &order.OrderNumber, &order.Status, &order.PaymentMethod, &order.PaymentStatus,
		&order.PaymentRef, &order.Subtotal, &order.ShippingCost, &order.Discount, &order.Total,
		&order.CouponCode, &order.Notes, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to get order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	rows, err := h.db.QueryContext(ctx,
		"SELECT id, order_id, product_id, name, price, image, quantity FROM order_items WHERE order_id = $1 ORDER BY id",
		orderID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch order items", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Name, &item.Price, &item.Image, &item.Quantity); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan order item", zap.Error(err))
			continue
		}
		order.Items = append(order.Items, item)
	}

	c.JSON(http.StatusOK, order)
}

var validOrderStatuses = map[models.OrderStatus]bool{
	models.OrderStatusPending:    true,
	models.OrderStatusConfirmed:  true,
	models.OrderStatusProcessing: true,
	models.OrderStatusShipped:    true,
	models.OrderStatusDelivered:  true,
	models.OrderStatusCancelled:  true,
}

// UpdateOrderStatus is the admin status-transition endpoint. Transitions are
// unconditional; only unknown status values are rejected.
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-svc").Start(c.Request.Context(), "UpdateOrderStatus")
	defer span.End()

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !validOrderStatuses[req.Status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order status"})
		return
	}

	span.SetAttributes(
		attribute.Int("order.id", orderID),
		attribute.String("order.status", string(req.Status)),
	)

	result, err := h.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		req.Status, orderID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update order status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	h.logger.Info("Order status updated", zap.Int("order_id", orderID), zap.String("status", string(req.Status)))
	c.JSON(http.StatusOK, gin.H{"message": "Order status updated"})
}
