package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product represents the canonical catalog listing.
type Product struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name        string          `gorm:"column:name;not null"`
	WsCode      int             `gorm:"column:ws_code;not null;uniqueIndex"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	PackageSize int             `gorm:"column:package_size;not null;default:1"`
	Tags        pq.StringArray  `gorm:"column:tags;type:text[]"`
	IsDeleted   bool            `gorm:"column:is_deleted;not null;default:false"`
	Images      []ProductImage  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
