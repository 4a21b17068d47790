package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Batch is one sorting run recorded by the sorting subsystem. This service
// only reads batches.
type Batch struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	OrderID        uint            `gorm:"not null;index" json:"order_id"`
	TotalBeans     int64           `gorm:"not null" json:"total_beans"`
	HealthyBeans   int64           `gorm:"not null" json:"healthy_beans"`
	DefectiveBeans int64           `gorm:"not null" json:"defective_beans"`
	Accuracy       float64         `json:"accuracy"`
	Weight         decimal.Decimal `gorm:"type:decimal(10,3)" json:"weight"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Batch model
func (Batch) TableName() string {
	return "batches"
}
