package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sortirkopi/bean-order-api/pricing"
)

// CoffeeType is the declared bean variety; it does not affect price
type CoffeeType string

const (
	CoffeeArabika  CoffeeType = "Arabika"
	CoffeeRobusta  CoffeeType = "Robusta"
	CoffeeLiberika CoffeeType = "Liberika"
	CoffeeCampuran CoffeeType = "Campuran"
)

// CoffeeTypes lists the accepted coffee types
var CoffeeTypes = []CoffeeType{CoffeeArabika, CoffeeRobusta, CoffeeLiberika, CoffeeCampuran}

// Valid reports whether c is one of CoffeeTypes
func (c CoffeeType) Valid() bool {
	for _, t := range CoffeeTypes {
		if c == t {
			return true
		}
	}
	return false
}

// CustomerSnapshot is the submitter identity copied at order time.
// Later profile edits are not synced into existing orders.
type CustomerSnapshot struct {
	Name    string `gorm:"not null" json:"name"`
	Phone   string `json:"phone"`
	Email   string `gorm:"not null" json:"email"`
	Address string `json:"address"`
}

// Order represents a bean sorting order
type Order struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	CustomerID        uint              `gorm:"not null;index" json:"customer_id"` // owner, foreign key to users table
	Customer          CustomerSnapshot  `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`
	WeightKg          decimal.Decimal   `gorm:"type:decimal(10,3);not null" json:"weight_kg"`
	CoffeeType        CoffeeType        `gorm:"not null" json:"coffee_type"`
	PackageTier       pricing.Tier      `gorm:"not null" json:"package_tier"`
	PricePerKg        int64             `gorm:"not null" json:"price_per_kg"`
	TotalPrice        int64             `gorm:"not null" json:"total_price"`
	PricingVersion    string            `json:"pricing_version"`
	DeliveryDate      *time.Time        `json:"delivery_date,omitempty"`
	Notes             *string           `json:"notes,omitempty"`
	FulfillmentStatus FulfillmentStatus `gorm:"not null;default:'pending';index" json:"fulfillment_status"`
	PaymentStatus     PaymentStatus     `gorm:"not null;default:'absent';index" json:"payment_status"`
	Payment           *Payment          `gorm:"foreignKey:OrderID" json:"payment,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// EffectivePricePerKg returns the stored unit price. Rows written before the
// unit price was persisted fall back to total/weight for display only.
func (o *Order) EffectivePricePerKg() int64 {
	if o.PricePerKg > 0 || o.WeightKg.IsZero() {
		return o.PricePerKg
	}
	return decimal.NewFromInt(o.TotalPrice).Div(o.WeightKg).Round(0).IntPart()
}

// CanCancel reports whether the owner may cancel the order now
func (o *Order) CanCancel() bool {
	return CanCustomerCancel(o.FulfillmentStatus, o.PaymentStatus)
}

// CanDelete reports whether the owner may hard-delete the order
func (o *Order) CanDelete() bool {
	return o.FulfillmentStatus == FulfillmentCancelled
}

// CanPay reports whether a payment may be (re)submitted for the order
func (o *Order) CanPay() bool {
	return o.FulfillmentStatus != FulfillmentCancelled && o.PaymentStatus != PaymentVerified
}
