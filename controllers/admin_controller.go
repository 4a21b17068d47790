package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sortirkopi/bean-order-api/middleware"
	"github.com/sortirkopi/bean-order-api/models"
	"github.com/sortirkopi/bean-order-api/repository"
	"github.com/sortirkopi/bean-order-api/services"
)

// UpdateOrderStatusRequest represents the request body for advancing an order
type UpdateOrderStatusRequest struct {
	Status models.FulfillmentStatus `json:"status" binding:"required"`
}

// RejectPaymentRequest represents the request body for rejecting a payment
type RejectPaymentRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// AdminListOrders handles GET /api/v1/admin/orders - all customers' orders
func AdminListOrders(c *gin.Context) {
	page, limit := pageParams(c)
	filter := repository.OrderFilter{
		FulfillmentStatus: models.FulfillmentStatus(c.Query("status")),
		PaymentStatus:     models.PaymentStatus(c.Query("payment_status")),
		Page:              page,
		Limit:             limit,
	}
	if raw := c.Query("customer_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", "customer_id must be a positive integer")
			return
		}
		filter.CustomerID = uint(id)
	}

	orders, total, err := services.Get().Orders.ListAllOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOrderPage(c, orders, total, page, limit)
}

// AdminUpdateOrderStatus handles PATCH /api/v1/admin/orders/:id/status
func AdminUpdateOrderStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	order, err := services.Get().Orders.AdvanceOrder(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// VerifyPayment handles POST /api/v1/admin/orders/:id/payment/verify
func VerifyPayment(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	admin, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	payment, err := services.Get().Payments.Verify(c.Request.Context(), id, admin)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    payment,
	})
}

// RejectPayment handles POST /api/v1/admin/orders/:id/payment/reject
func RejectPayment(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	admin, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req RejectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	payment, err := services.Get().Payments.Reject(c.Request.Context(), id, admin, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    payment,
	})
}
