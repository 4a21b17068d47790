package models

import (
	"time"
)

// PaymentMethod is a supported bank or e-wallet transfer channel
type PaymentMethod string

const (
	MethodBCA       PaymentMethod = "bca"
	MethodBNI       PaymentMethod = "bni"
	MethodBRI       PaymentMethod = "bri"
	MethodMandiri   PaymentMethod = "mandiri"
	MethodDANA      PaymentMethod = "dana"
	MethodOVO       PaymentMethod = "ovo"
	MethodGoPay     PaymentMethod = "gopay"
	MethodShopeePay PaymentMethod = "shopeepay"
)

// PaymentMethods lists the accepted channels
var PaymentMethods = []PaymentMethod{
	MethodBCA, MethodBNI, MethodBRI, MethodMandiri,
	MethodDANA, MethodOVO, MethodGoPay, MethodShopeePay,
}

// Valid reports whether m is one of PaymentMethods
func (m PaymentMethod) Valid() bool {
	for _, v := range PaymentMethods {
		if m == v {
			return true
		}
	}
	return false
}

// Payment is the current proof-of-payment for an order. There is at most one
// row per order; a resubmission updates it in place.
type Payment struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	OrderID         uint          `gorm:"not null;uniqueIndex" json:"order_id"` // foreign key to orders table
	Method          PaymentMethod `gorm:"not null" json:"method"`
	AccountName     string        `gorm:"not null" json:"account_name"`
	Amount          int64         `gorm:"not null" json:"amount"`
	ProofImageRef   string        `gorm:"not null" json:"proof_image_ref"`  // storage key, never raw bytes
	ProofImageURL   *string       `gorm:"-" json:"proof_image_url,omitempty"` // computed field, presigned URL for the proof
	Notes           *string       `json:"notes,omitempty"`
	Status          PaymentStatus `gorm:"not null;default:'pending'" json:"status"` // pending, verified, rejected
	UploadedAt      time.Time     `json:"uploaded_at"`
	VerifiedAt      *time.Time    `json:"verified_at,omitempty"`
	VerifiedBy      *string       `json:"verified_by,omitempty"`
	RejectionReason *string       `json:"rejection_reason,omitempty"` // set only while rejected
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// TableName specifies the table name for the Payment model
func (Payment) TableName() string {
	return "payments"
}
