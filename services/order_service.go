package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sortirkopi/bean-order-api/apperror"
	"github.com/sortirkopi/bean-order-api/logging"
	"github.com/sortirkopi/bean-order-api/models"
	"github.com/sortirkopi/bean-order-api/pricing"
	"github.com/sortirkopi/bean-order-api/repository"
)

// CreateOrderInput is what a customer submits when placing an order
type CreateOrderInput struct {
	Customer     *models.User
	WeightKg     decimal.Decimal
	CoffeeType   models.CoffeeType
	DeliveryDate *time.Time
	Notes        *string
}

// OrderService owns pricing and the fulfillment lifecycle of orders
type OrderService struct {
	repo   *repository.OrderRepository
	cache  OrderCache
	locks  *OrderLocks
	images ImageService
	now    func() time.Time

	tableMu sync.RWMutex
	table   *pricing.Table
}

// NewOrderService wires an order service. images may be nil, in which case
// proof files are left in storage when an order is deleted.
func NewOrderService(repo *repository.OrderRepository, cache OrderCache, locks *OrderLocks, images ImageService) *OrderService {
	if cache == nil {
		cache = NewMemoryOrderCache(0)
	}
	if locks == nil {
		locks = NewOrderLocks()
	}
	return &OrderService{
		repo:   repo,
		cache:  cache,
		locks:  locks,
		images: images,
		now:    func() time.Time { return time.Now().UTC() },
		table:  pricing.DefaultTable,
	}
}

// PricingTable returns the table new orders are priced with
func (s *OrderService) PricingTable() *pricing.Table {
	s.tableMu.RLock()
	defer s.tableMu.RUnlock()
	return s.table
}

// SetPricingTable swaps the live price list. Existing orders keep their price.
func (s *OrderService) SetPricingTable(t *pricing.Table) {
	s.tableMu.Lock()
	s.table = t
	s.tableMu.Unlock()
}

// Quote prices a weight against the live table without persisting anything.
// Weights are cut to the stored precision of 3 decimals first.
func (s *OrderService) Quote(weightKg decimal.Decimal) (pricing.Quote, error) {
	return s.PricingTable().Quote(weightKg.Truncate(3))
}

// CreateOrder prices and persists a new order in pending/absent
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if in.Customer == nil || in.Customer.ID == 0 {
		return nil, apperror.Invalid("Customer is required")
	}
	if !in.CoffeeType.Valid() {
		return nil, apperror.Invalid("Unknown coffee type: " + string(in.CoffeeType))
	}

	quote, err := s.Quote(in.WeightKg)
	if err != nil {
		s.countRejected("create", err)
		return nil, err
	}

	if in.DeliveryDate != nil {
		today := s.now().Truncate(24 * time.Hour)
		if in.DeliveryDate.UTC().Before(today) {
			return nil, apperror.Invalid("Delivery date cannot be in the past")
		}
	}

	order := &models.Order{
		CustomerID:        in.Customer.ID,
		Customer:          in.Customer.Snapshot(),
		WeightKg:          quote.WeightKg,
		CoffeeType:        in.CoffeeType,
		PackageTier:       quote.Tier,
		PricePerKg:        quote.PricePerKg,
		TotalPrice:        quote.TotalPrice,
		PricingVersion:    quote.PricingVersion,
		DeliveryDate:      in.DeliveryDate,
		Notes:             trimmedOrNil(in.Notes),
		FulfillmentStatus: models.FulfillmentPending,
		PaymentStatus:     models.PaymentAbsent,
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	ordersCreated.WithLabelValues(string(order.PackageTier)).Inc()
	logging.FromCtx(ctx).Info("order created",
		"order_id", order.ID,
		"customer_id", order.CustomerID,
		"weight_kg", order.WeightKg.String(),
		"tier", order.PackageTier,
		"total_price", order.TotalPrice,
	)
	return order, nil
}

// GetOrder reads an order through the cache
func (s *OrderService) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	if order, ok := s.cache.Get(ctx, id); ok {
		return order, nil
	}

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, order)
	return order, nil
}

// GetOrderForUser returns an order the user may see: their own, or any for admins
func (s *OrderService) GetOrderForUser(ctx context.Context, user *models.User, id uint) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(user, order); err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders lists orders newest first. Customers only ever see their own.
func (s *OrderService) ListOrders(ctx context.Context, user *models.User, filter repository.OrderFilter) ([]models.Order, int64, error) {
	if !user.IsAdmin() {
		filter.CustomerID = user.ID
	}
	return s.ListAllOrders(ctx, filter)
}

// ListAllOrders lists orders across customers; for admin callers
func (s *OrderService) ListAllOrders(ctx context.Context, filter repository.OrderFilter) ([]models.Order, int64, error) {
	if filter.FulfillmentStatus != "" && !filter.FulfillmentStatus.Valid() {
		return nil, 0, apperror.Invalid("Unknown fulfillment status: " + string(filter.FulfillmentStatus))
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.Valid() {
		return nil, 0, apperror.Invalid("Unknown payment status: " + string(filter.PaymentStatus))
	}
	return s.repo.ListOrders(ctx, filter)
}

// CancelOrder cancels a pending order whose payment is not verified
func (s *OrderService) CancelOrder(ctx context.Context, user *models.User, id uint) (*models.Order, error) {
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(user, order); err != nil {
		return nil, err
	}
	if !order.CanCancel() {
		err := apperror.InvalidTransition(cancelRefusal(order))
		s.countRejected("cancel", err)
		return nil, err
	}

	err = s.repo.TransitionOrder(ctx, id, models.FulfillmentPending, models.FulfillmentCancelled,
		models.CancellablePaymentStatuses)
	s.cache.Invalidate(ctx, id)
	if err != nil {
		s.countRejected("cancel", err)
		return nil, err
	}

	orderTransitions.WithLabelValues(string(models.FulfillmentCancelled)).Inc()
	logging.FromCtx(ctx).Info("order cancelled", "order_id", id, "by", user.ID)
	return s.repo.GetOrder(ctx, id)
}

// DeleteOrder hard-deletes a cancelled order, its payment and, best effort,
// the stored proof image.
func (s *OrderService) DeleteOrder(ctx context.Context, user *models.User, id uint) error {
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if err := checkOwner(user, order); err != nil {
		return err
	}
	if !order.CanDelete() {
		err := apperror.InvalidTransition("Only cancelled orders can be deleted")
		s.countRejected("delete", err)
		return err
	}

	err = s.repo.DeleteOrder(ctx, id)
	s.cache.Invalidate(ctx, id)
	if err != nil {
		return err
	}

	log := logging.FromCtx(ctx)
	log.Info("order deleted", "order_id", id, "by", user.ID)

	if order.Payment != nil && s.images != nil {
		if err := s.images.DeleteImage(context.WithoutCancel(ctx), order.Payment.ProofImageRef); err != nil {
			log.Warn("failed to delete proof image", "order_id", id, "key", order.Payment.ProofImageRef, "error", err)
		}
	}
	return nil
}

// AdvanceOrder moves an order forward on behalf of an admin:
// pending -> processing once the payment is verified, processing -> completed.
func (s *OrderService) AdvanceOrder(ctx context.Context, id uint, to models.FulfillmentStatus) (*models.Order, error) {
	if !to.Valid() {
		return nil, apperror.Invalid("Unknown fulfillment status: " + string(to))
	}

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	from := order.FulfillmentStatus
	if !models.CanAdminAdvance(from, to, order.PaymentStatus) {
		msg := "Cannot move order from " + string(from) + " to " + string(to)
		if to == models.FulfillmentProcessing && from == models.FulfillmentPending {
			msg = "Payment must be verified before processing"
		}
		err := apperror.InvalidTransition(msg)
		s.countRejected("advance", err)
		return nil, err
	}

	var allowed []models.PaymentStatus
	if to == models.FulfillmentProcessing {
		allowed = []models.PaymentStatus{models.PaymentVerified}
	}
	err = s.repo.TransitionOrder(ctx, id, from, to, allowed)
	s.cache.Invalidate(ctx, id)
	if err != nil {
		return nil, err
	}

	orderTransitions.WithLabelValues(string(to)).Inc()
	logging.FromCtx(ctx).Info("order advanced", "order_id", id, "from", from, "to", to)
	return s.repo.GetOrder(ctx, id)
}

func (s *OrderService) countRejected(op string, err error) {
	if kind := apperror.KindOf(err); kind != "" {
		rejectedOperations.WithLabelValues(op, string(kind)).Inc()
	}
}

func checkOwner(user *models.User, order *models.Order) error {
	if user == nil {
		return apperror.Forbidden("You do not have access to this order")
	}
	if user.IsAdmin() || order.CustomerID == user.ID {
		return nil
	}
	return apperror.Forbidden("You do not have access to this order")
}

func cancelRefusal(order *models.Order) string {
	if order.FulfillmentStatus != models.FulfillmentPending {
		return "Order cannot be cancelled once it is " + string(order.FulfillmentStatus)
	}
	return "Order cannot be cancelled after payment is verified"
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
