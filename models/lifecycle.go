package models

// FulfillmentStatus is the sorting-service progress of an order
type FulfillmentStatus string

const (
	FulfillmentPending    FulfillmentStatus = "pending"
	FulfillmentProcessing FulfillmentStatus = "processing"
	FulfillmentCompleted  FulfillmentStatus = "completed"
	FulfillmentCancelled  FulfillmentStatus = "cancelled"
)

// FulfillmentStatuses lists every fulfillment state
var FulfillmentStatuses = []FulfillmentStatus{
	FulfillmentPending, FulfillmentProcessing, FulfillmentCompleted, FulfillmentCancelled,
}

// PaymentStatus is the verification progress of an order's current payment.
// PaymentAbsent is only ever held by an order; it means no payment row exists.
type PaymentStatus string

const (
	PaymentAbsent   PaymentStatus = "absent"
	PaymentPending  PaymentStatus = "pending"
	PaymentVerified PaymentStatus = "verified"
	PaymentRejected PaymentStatus = "rejected"
)

// PaymentStatuses lists every payment state an order can mirror
var PaymentStatuses = []PaymentStatus{
	PaymentAbsent, PaymentPending, PaymentVerified, PaymentRejected,
}

var fulfillmentEdges = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentPending:    {FulfillmentProcessing, FulfillmentCancelled},
	FulfillmentProcessing: {FulfillmentCompleted},
}

// Valid reports whether s is a known fulfillment status
func (s FulfillmentStatus) Valid() bool {
	for _, v := range FulfillmentStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition leaves s
func (s FulfillmentStatus) Terminal() bool {
	return s == FulfillmentCompleted || s == FulfillmentCancelled
}

// CanTransitionTo reports whether next is a direct edge from s
func (s FulfillmentStatus) CanTransitionTo(next FulfillmentStatus) bool {
	for _, n := range fulfillmentEdges[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known payment status
func (s PaymentStatus) Valid() bool {
	for _, v := range PaymentStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// CanCustomerCancel is the self-cancel rule: only a pending order whose
// payment has not been verified.
func CanCustomerCancel(f FulfillmentStatus, p PaymentStatus) bool {
	return f == FulfillmentPending && p != PaymentVerified
}

// CancellablePaymentStatuses are the payment states that still allow a self-cancel
var CancellablePaymentStatuses = []PaymentStatus{PaymentAbsent, PaymentPending, PaymentRejected}

// CanAdminAdvance is the operator rule for moving fulfillment forward.
// Processing starts only once the payment is verified.
func CanAdminAdvance(from, to FulfillmentStatus, p PaymentStatus) bool {
	if !from.CanTransitionTo(to) {
		return false
	}
	if to == FulfillmentProcessing {
		return p == PaymentVerified
	}
	return true
}
