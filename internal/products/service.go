package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgerrors "github.com/storekart/storekart-backend/pkg/errors"
)

// Snapshot is the point-in-time catalog view carts copy from. Historical
// snapshots stored on cart lines are never rewritten when the catalog changes.
type Snapshot struct {
	ProductID uuid.UUID
	Name      string
	UnitPrice decimal.Decimal
	ImageURL  *string
	IsDeleted bool
}

// Available reports whether the product may enter new cart mutations.
func (s Snapshot) Available() bool {
	return !s.IsDeleted
}

// Service resolves catalog products for cart and order flows.
type Service interface {
	Resolve(ctx context.Context, productID uuid.UUID) (*Snapshot, error)
}

type service struct {
	repo Repository
}

// NewService builds a catalog reader backed by the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

// Resolve loads the current name, price and primary image for a product.
// Missing products map to NOT_FOUND; soft-deleted products are returned with
// IsDeleted set so callers decide whether history access is allowed.
func (s *service) Resolve(ctx context.Context, productID uuid.UUID) (*Snapshot, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	snapshot := &Snapshot{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		IsDeleted: product.IsDeleted,
	}
	if len(product.Images) > 0 {
		url := product.Images[0].URL
		snapshot.ImageURL = &url
	}
	return snapshot, nil
}
