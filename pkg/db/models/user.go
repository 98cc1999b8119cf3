package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/storekart/storekart-backend/pkg/enums"
)

// User represents a storefront account. Registration and credentials live in
// a separate identity service; this table carries profile and shipping data.
type User struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email     string         `gorm:"column:email;not null;uniqueIndex"`
	FirstName string         `gorm:"column:first_name;not null"`
	LastName  string         `gorm:"column:last_name;not null"`
	Phone     *string        `gorm:"column:phone"`
	Address   *string        `gorm:"column:address"`
	City      *string        `gorm:"column:city"`
	State     *string        `gorm:"column:state"`
	Pincode   *string        `gorm:"column:pincode"`
	Role      enums.UserRole `gorm:"column:role;not null;default:'customer'"`
	CartID    *uuid.UUID     `gorm:"column:cart_id;type:uuid"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// HasCompleteShippingAddress reports whether the profile can receive orders.
func (u User) HasCompleteShippingAddress() bool {
	return derefNonEmpty(u.Address) && derefNonEmpty(u.City) && derefNonEmpty(u.State)
}

func derefNonEmpty(s *string) bool {
	return s != nil && *s != ""
}
