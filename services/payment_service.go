package services

import (
	"context"
	"mime/multipart"
	"strings"
	"time"

	"github.com/sortirkopi/bean-order-api/apperror"
	"github.com/sortirkopi/bean-order-api/logging"
	"github.com/sortirkopi/bean-order-api/models"
	"github.com/sortirkopi/bean-order-api/repository"
)

// SubmitPaymentInput is a customer's proof-of-payment submission
type SubmitPaymentInput struct {
	OrderID       uint
	CustomerID    uint
	Method        models.PaymentMethod
	AccountName   string
	ProofImageRef string
	Amount        int64
	Notes         *string
}

// PaymentService records and reviews proofs of payment. An order has at most
// one current payment; resubmissions replace it in place.
type PaymentService struct {
	repo   *repository.OrderRepository
	cache  OrderCache
	locks  *OrderLocks
	images ImageService
	now    func() time.Time
}

// NewPaymentService wires a payment service. locks must be shared with the
// OrderService so cancellation and payment never interleave on one order.
func NewPaymentService(repo *repository.OrderRepository, cache OrderCache, locks *OrderLocks, images ImageService) *PaymentService {
	if cache == nil {
		cache = NewMemoryOrderCache(0)
	}
	if locks == nil {
		locks = NewOrderLocks()
	}
	return &PaymentService{
		repo:   repo,
		cache:  cache,
		locks:  locks,
		images: images,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Precheck runs every Submit rule except the proof reference against the
// current order, so callers can refuse before uploading anything.
func (s *PaymentService) Precheck(ctx context.Context, in SubmitPaymentInput) error {
	order, err := s.repo.GetOrder(ctx, in.OrderID)
	if err != nil {
		return err
	}
	in.ProofImageRef = "pending-upload"
	return checkSubmission(order, in)
}

// Submit attaches or replaces the order's payment and mirrors its status onto
// the order in one transaction.
func (s *PaymentService) Submit(ctx context.Context, in SubmitPaymentInput) (*models.Payment, error) {
	payment, _, err := s.submit(ctx, in)
	return payment, err
}

// SubmitWithProof uploads the proof file and submits the payment. When the
// submission does not commit, the uploaded object is removed again. A replaced
// proof is removed after commit.
func (s *PaymentService) SubmitWithProof(ctx context.Context, in SubmitPaymentInput, proof *multipart.FileHeader) (*models.Payment, error) {
	if s.images == nil {
		return nil, apperror.Upstream("Proof storage is not configured", nil)
	}
	if err := s.Precheck(ctx, in); err != nil {
		s.countRejected(err)
		return nil, err
	}

	key, err := s.images.UploadImage(ctx, proof, in.OrderID)
	if err != nil {
		return nil, err
	}
	in.ProofImageRef = key

	log := logging.FromCtx(ctx)
	payment, replacedKey, err := s.submit(ctx, in)
	if err != nil {
		if delErr := s.images.DeleteImage(context.WithoutCancel(ctx), key); delErr != nil {
			log.Error("failed to remove proof of failed submission", "order_id", in.OrderID, "key", key, "error", delErr)
		}
		return nil, err
	}

	if replacedKey != "" && replacedKey != key {
		if delErr := s.images.DeleteImage(context.WithoutCancel(ctx), replacedKey); delErr != nil {
			log.Warn("failed to remove replaced proof", "order_id", in.OrderID, "key", replacedKey, "error", delErr)
		}
	}

	s.attachProofURL(ctx, payment)
	return payment, nil
}

func (s *PaymentService) submit(ctx context.Context, in SubmitPaymentInput) (*models.Payment, string, error) {
	unlock, err := s.locks.Lock(ctx, in.OrderID)
	if err != nil {
		return nil, "", err
	}
	defer unlock()

	order, err := s.repo.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, "", err
	}
	if err := checkSubmission(order, in); err != nil {
		s.countRejected(err)
		return nil, "", err
	}

	var replacedKey string
	payment := order.Payment
	if payment == nil {
		payment = &models.Payment{OrderID: order.ID}
	} else {
		replacedKey = payment.ProofImageRef
	}

	payment.Method = in.Method
	payment.AccountName = strings.TrimSpace(in.AccountName)
	payment.Amount = in.Amount
	payment.ProofImageRef = in.ProofImageRef
	payment.Notes = trimmedOrNil(in.Notes)
	payment.Status = models.PaymentPending
	payment.UploadedAt = s.now()
	payment.VerifiedAt = nil
	payment.VerifiedBy = nil
	payment.RejectionReason = nil

	err = s.repo.SavePayment(ctx, payment, order.PaymentStatus)
	s.cache.Invalidate(ctx, order.ID)
	if err != nil {
		return nil, "", err
	}

	paymentEvents.WithLabelValues(string(models.PaymentPending)).Inc()
	logging.FromCtx(ctx).Info("payment submitted",
		"order_id", order.ID,
		"payment_id", payment.ID,
		"method", payment.Method,
		"amount", payment.Amount,
		"resubmission", replacedKey != "",
	)
	return payment, replacedKey, nil
}

// checkSubmission applies the submission rules in their reporting order
func checkSubmission(order *models.Order, in SubmitPaymentInput) error {
	if order.CustomerID != in.CustomerID {
		return apperror.Forbidden("You do not have access to this order")
	}
	if order.FulfillmentStatus == models.FulfillmentCancelled {
		return apperror.InvalidTransition("Cannot pay for a cancelled order")
	}
	if order.PaymentStatus == models.PaymentVerified {
		return apperror.AlreadyVerified()
	}
	if in.Amount != order.TotalPrice {
		return apperror.AmountMismatch(order.TotalPrice, in.Amount)
	}
	if strings.TrimSpace(in.ProofImageRef) == "" {
		return apperror.Invalid("Proof of payment is required")
	}
	if !in.Method.Valid() {
		return apperror.Invalid("Unknown payment method: " + string(in.Method))
	}
	if strings.TrimSpace(in.AccountName) == "" {
		return apperror.Invalid("Account name is required")
	}
	return nil
}

// Verify accepts a pending payment on behalf of an admin
func (s *PaymentService) Verify(ctx context.Context, orderID uint, adminSubject string) (*models.Payment, error) {
	return s.review(ctx, orderID, func(p *models.Payment) {
		now := s.now()
		p.Status = models.PaymentVerified
		p.VerifiedAt = &now
		p.VerifiedBy = &adminSubject
		p.RejectionReason = nil
	})
}

// Reject refuses a pending payment; the customer may resubmit afterwards
func (s *PaymentService) Reject(ctx context.Context, orderID uint, adminSubject, reason string) (*models.Payment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Invalid("Rejection reason is required")
	}
	return s.review(ctx, orderID, func(p *models.Payment) {
		p.Status = models.PaymentRejected
		p.RejectionReason = &reason
		p.VerifiedAt = nil
		p.VerifiedBy = &adminSubject
	})
}

func (s *PaymentService) review(ctx context.Context, orderID uint, apply func(*models.Payment)) (*models.Payment, error) {
	unlock, err := s.locks.Lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	payment := order.Payment
	if payment == nil {
		return nil, apperror.NotFound("PAYMENT_NOT_FOUND", "Payment not found")
	}
	if order.FulfillmentStatus == models.FulfillmentCancelled {
		err := apperror.InvalidTransition("Cannot review the payment of a cancelled order")
		s.countRejected(err)
		return nil, err
	}
	if payment.Status != models.PaymentPending {
		err := apperror.InvalidTransition("Only pending payments can be reviewed, payment is " + string(payment.Status))
		s.countRejected(err)
		return nil, err
	}

	apply(payment)
	err = s.repo.SavePayment(ctx, payment, models.PaymentPending)
	s.cache.Invalidate(ctx, orderID)
	if err != nil {
		return nil, err
	}

	paymentEvents.WithLabelValues(string(payment.Status)).Inc()
	logging.FromCtx(ctx).Info("payment reviewed", "order_id", orderID, "status", payment.Status)
	s.attachProofURL(ctx, payment)
	return payment, nil
}

// GetPayment returns the current payment of an order the user may see
func (s *PaymentService) GetPayment(ctx context.Context, user *models.User, orderID uint) (*models.Payment, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(user, order); err != nil {
		return nil, err
	}
	payment, err := s.repo.GetPaymentByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	s.attachProofURL(ctx, payment)
	return payment, nil
}

func (s *PaymentService) attachProofURL(ctx context.Context, p *models.Payment) {
	if s.images == nil || p == nil || p.ProofImageRef == "" {
		return
	}
	url, err := s.images.GetImageURL(ctx, p.ProofImageRef)
	if err != nil {
		logging.FromCtx(ctx).Warn("failed to resolve proof url", "order_id", p.OrderID, "error", err)
		return
	}
	p.ProofImageURL = &url
}

func (s *PaymentService) countRejected(err error) {
	if kind := apperror.KindOf(err); kind != "" {
		rejectedOperations.WithLabelValues("payment", string(kind)).Inc()
	}
}
