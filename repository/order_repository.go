package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sortirkopi/bean-order-api/apperror"
	"github.com/sortirkopi/bean-order-api/models"
	"gorm.io/gorm"
)

// OrderFilter narrows ListOrders. Zero values mean "any".
type OrderFilter struct {
	CustomerID        uint
	FulfillmentStatus models.FulfillmentStatus
	PaymentStatus     models.PaymentStatus
	Page              int // 1-based; ignored when Limit is 0
	Limit             int // 0 returns every matching order
}

// OrderRepository persists orders and their current payment
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateOrder inserts a new order; the database assigns its ID
func (r *OrderRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Omit("Payment").Create(order).Error; err != nil {
		return apperror.Upstream("Failed to create order", err)
	}
	return nil
}

// GetOrder loads an order with its current payment
func (r *OrderRepository) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Payment").First(&order, id).Error
	if err != nil {
		return nil, orderErr(err, "Failed to load order")
	}
	return &order, nil
}

// ListOrders returns matching orders newest first, plus the unpaged total
func (r *OrderRepository) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if f.CustomerID != 0 {
		query = query.Where("customer_id = ?", f.CustomerID)
	}
	if f.FulfillmentStatus != "" {
		query = query.Where("fulfillment_status = ?", f.FulfillmentStatus)
	}
	if f.PaymentStatus != "" {
		query = query.Where("payment_status = ?", f.PaymentStatus)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperror.Upstream("Failed to count orders", err)
	}

	query = query.Preload("Payment").Order("created_at DESC").Order("id DESC")
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * f.Limit).Limit(f.Limit)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, 0, apperror.Upstream("Failed to list orders", err)
	}
	return orders, total, nil
}

// TransitionOrder moves fulfillment from -> to, but only while the order is
// still in `from` and its payment status is one of allowedPayments (any when
// empty). A lost race reports InvalidTransition.
func (r *OrderRepository) TransitionOrder(ctx context.Context, id uint, from, to models.FulfillmentStatus, allowedPayments []models.PaymentStatus) error {
	query := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND fulfillment_status = ?", id, from)
	if len(allowedPayments) > 0 {
		query = query.Where("payment_status IN ?", allowedPayments)
	}

	res := query.Updates(map[string]interface{}{
		"fulfillment_status": to,
		"updated_at":         time.Now(),
	})
	if res.Error != nil {
		return apperror.Upstream("Failed to update order status", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return apperror.Upstream("Failed to update order status", err)
	}
	if count == 0 {
		return apperror.NotFound("ORDER_NOT_FOUND", "Order not found")
	}
	return apperror.InvalidTransition("Order status changed concurrently")
}

// DeleteOrder hard-deletes a cancelled order together with its payment
func (r *OrderRepository) DeleteOrder(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.Payment{}).Error; err != nil {
			return apperror.Upstream("Failed to delete payment", err)
		}
		res := tx.Where("id = ? AND fulfillment_status = ?", id, models.FulfillmentCancelled).
			Delete(&models.Order{})
		if res.Error != nil {
			return apperror.Upstream("Failed to delete order", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return apperror.Upstream("Failed to delete order", err)
			}
			if count == 0 {
				return apperror.NotFound("ORDER_NOT_FOUND", "Order not found")
			}
			return apperror.InvalidTransition("Only cancelled orders can be deleted")
		}
		return nil
	})
}

// GetPaymentByOrder loads the current payment of an order
func (r *OrderRepository) GetPaymentByOrder(ctx context.Context, orderID uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("PAYMENT_NOT_FOUND", "Payment not found")
		}
		return nil, apperror.Upstream("Failed to load payment", err)
	}
	return &payment, nil
}

// SavePayment creates or updates the order's payment row and mirrors its
// status onto the order in one transaction. The order must not be cancelled
// and must still carry the payment status the caller read as expected; a lost
// race reports InvalidTransition and nothing is written.
func (r *OrderRepository) SavePayment(ctx context.Context, payment *models.Payment, expected models.PaymentStatus) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND fulfillment_status <> ? AND payment_status = ?",
				payment.OrderID, models.FulfillmentCancelled, expected).
			Updates(map[string]interface{}{
				"payment_status": payment.Status,
				"updated_at":     time.Now(),
			})
		if res.Error != nil {
			return apperror.Upstream("Failed to update order payment status", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Order{}).Where("id = ?", payment.OrderID).Count(&count).Error; err != nil {
				return apperror.Upstream("Failed to update order payment status", err)
			}
			if count == 0 {
				return apperror.NotFound("ORDER_NOT_FOUND", "Order not found")
			}
			return apperror.InvalidTransition("Order changed while the payment was being saved")
		}

		if err := tx.Save(payment).Error; err != nil {
			return apperror.Upstream("Failed to save payment", err)
		}
		return nil
	})
}

func orderErr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("ORDER_NOT_FOUND", "Order not found")
	}
	return apperror.Upstream(message, err)
}
