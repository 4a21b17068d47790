package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sortirkopi/bean-order-api/models"
	"github.com/sortirkopi/bean-order-api/repository"
	"github.com/sortirkopi/bean-order-api/services"
)

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	WeightKg     *decimal.Decimal  `json:"weight_kg" binding:"required"`
	CoffeeType   models.CoffeeType `json:"coffee_type" binding:"required"`
	DeliveryDate string            `json:"delivery_date" binding:"omitempty,datetime=2006-01-02"`
	Notes        *string           `json:"notes" binding:"omitempty,max=1000"`
}

// CreateOrder handles POST /api/v1/orders - prices and creates a new order (customers only)
func CreateOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	// Check if user is a customer (only customers can create orders)
	if user.Role != models.RoleCustomer {
		errorResponse(c, http.StatusForbidden, "FORBIDDEN", "Only customers can create orders")
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	var delivery *time.Time
	if req.DeliveryDate != "" {
		d, _ := time.Parse("2006-01-02", req.DeliveryDate)
		delivery = &d
	}

	order, err := services.Get().Orders.CreateOrder(c.Request.Context(), services.CreateOrderInput{
		Customer:     user,
		WeightKg:     *req.WeightKg,
		CoffeeType:   req.CoffeeType,
		DeliveryDate: delivery,
		Notes:        req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    order,
	})
}

// ListOrders handles GET /api/v1/orders - lists the caller's orders, newest first
func ListOrders(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	page, limit := pageParams(c)
	filter := repository.OrderFilter{
		FulfillmentStatus: models.FulfillmentStatus(c.Query("status")),
		PaymentStatus:     models.PaymentStatus(c.Query("payment_status")),
		Page:              page,
		Limit:             limit,
	}

	orders, total, err := services.Get().Orders.ListOrders(c.Request.Context(), user, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOrderPage(c, orders, total, page, limit)
}

// GetOrder handles GET /api/v1/orders/:id
func GetOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	order, err := services.Get().Orders.GetOrderForUser(c.Request.Context(), user, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// CancelOrder handles POST /api/v1/orders/:id/cancel
func CancelOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	order, err := services.Get().Orders.CancelOrder(c.Request.Context(), user, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// DeleteOrder handles DELETE /api/v1/orders/:id - removes a cancelled order
func DeleteOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := services.Get().Orders.DeleteOrder(c.Request.Context(), user, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Order deleted",
	})
}

func respondOrderPage(c *gin.Context, orders []models.Order, total int64, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}
