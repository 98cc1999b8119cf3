package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storekart/storekart-backend/pkg/enums"
)

// Order is the immutable financial record produced at checkout. TotalAmount
// is frozen from the cart and never recomputed.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	CartID        uuid.UUID         `gorm:"column:cart_id;type:uuid;not null"`
	Status        enums.OrderStatus `gorm:"column:status;not null;default:'pending'"`
	TotalAmount   decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	ShippingDate  time.Time         `gorm:"column:shipping_date;not null"`
	DeliveredDate *time.Time        `gorm:"column:delivered_date"`
	Items         []CartItem        `gorm:"foreignKey:OrderID"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
