package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	product "github.com/storekart/storekart-backend/internal/products"
	"github.com/storekart/storekart-backend/internal/users"
	dbpkg "github.com/storekart/storekart-backend/pkg/db"
	"github.com/storekart/storekart-backend/pkg/db/models"
	"github.com/storekart/storekart-backend/pkg/enums"
	pkgerrors "github.com/storekart/storekart-backend/pkg/errors"
	"github.com/storekart/storekart-backend/pkg/metrics"
	"github.com/storekart/storekart-backend/pkg/money"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalogReader interface {
	Resolve(ctx context.Context, productID uuid.UUID) (*product.Snapshot, error)
}

// Service exposes the cart ledger operations.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*AddItemResult, error)
	UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*TotalResult, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*TotalResult, error)
}

type service struct {
	repo    Repository
	users   users.Repository
	catalog catalogReader
	tx      txRunner
	domain  *metrics.DomainMetrics
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, userRepo users.Repository, catalog catalogReader, tx txRunner, domain *metrics.DomainMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:    repo,
		users:   userRepo,
		catalog: catalog,
		tx:      tx,
		domain:  domain,
	}, nil
}

// AddItemInput captures the payload required to add a cart line.
type AddItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// AddItemResult returns the created line plus the recomputed cart total.
type AddItemResult struct {
	Item  ItemView        `json:"item"`
	Total decimal.Decimal `json:"total"`
}

// TotalResult returns the recomputed cart total after a mutation.
type TotalResult struct {
	Total decimal.Decimal `json:"total"`
}

// GetCart returns the user's open cart with resolved lines, or an empty
// representation when no open cart exists.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	cart, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyView(), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	items, err := s.repo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	return viewFromModels(cart.ID, items, cart.Total), nil
}

// AddItem appends a line with a catalog snapshot. Duplicate products conflict
// rather than merge; callers adjust quantity through UpdateQuantity instead.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*AddItemResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.Quantity <= 0 {
		input.Quantity = 1
	}

	snapshot, err := s.catalog.Resolve(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !snapshot.Available() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	var result AddItemResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.FindActiveByUserForUpdate(ctx, userID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
			}
			txUsers := s.users.WithTx(tx)
			if _, err := txUsers.FindByID(ctx, userID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
			}
			cart = &models.Cart{
				ID:     uuid.New(),
				UserID: userID,
				Status: enums.CartStatusActive,
				Total:  decimal.Zero,
			}
			if err := repo.CreateCart(ctx, cart); err != nil {
				// a concurrent first add won the active-cart unique index
				if dbpkg.IsUniqueViolation(err, "") {
					return pkgerrors.New(pkgerrors.CodeConflict, "cart already open, retry the request")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
			}
			if err := txUsers.SetCartRef(ctx, userID, &cart.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link cart to user")
			}
		}

		item := &models.CartItem{
			ID:        uuid.New(),
			CartID:    cart.ID,
			ProductID: snapshot.ProductID,
			Name:      snapshot.Name,
			UnitPrice: snapshot.UnitPrice,
			ImageURL:  snapshot.ImageURL,
			Quantity:  input.Quantity,
		}
		if err := repo.CreateItem(ctx, item); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "product already in cart")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
		}

		total, err := s.recomputeTotal(ctx, repo, cart.ID)
		if err != nil {
			return err
		}

		result = AddItemResult{Item: ItemViewFromModel(*item), Total: total}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.domain.IncCartMutation("add")
	return &result, nil
}

// UpdateQuantity replaces the quantity of an owned line. The product is
// re-checked against the catalog so retired listings stop accepting changes.
func (s *service) UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*TotalResult, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var result TotalResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, cart, err := s.loadOwnedItem(ctx, repo, userID, itemID)
		if err != nil {
			return err
		}

		snapshot, err := s.catalog.Resolve(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if !snapshot.Available() {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}

		if err := repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update quantity")
		}

		total, err := s.recomputeTotal(ctx, repo, cart.ID)
		if err != nil {
			return err
		}
		result = TotalResult{Total: total}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.domain.IncCartMutation("update")
	return &result, nil
}

// RemoveItem deletes an owned line and recomputes the total from whatever
// lines remain.
func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*TotalResult, error) {
	var result TotalResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, cart, err := s.loadOwnedItem(ctx, repo, userID, itemID)
		if err != nil {
			return err
		}

		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}

		total, err := s.recomputeTotal(ctx, repo, cart.ID)
		if err != nil {
			return err
		}
		result = TotalResult{Total: total}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.domain.IncCartMutation("remove")
	return &result, nil
}

// loadOwnedItem fetches the line, locks its cart and enforces ownership.
// Lines already attached to an order are no longer cart lines.
func (s *service) loadOwnedItem(ctx context.Context, repo Repository, userID, itemID uuid.UUID) (*models.CartItem, *models.Cart, error) {
	if userID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	item, err := repo.FindItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	if item.OrderID != nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	cart, err := repo.FindByIDForUpdate(ctx, item.CartID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart.UserID != userID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "cart item belongs to another user")
	}
	if cart.Status != enums.CartStatusActive {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return item, cart, nil
}

// recomputeTotal derives the cart total from the current lines and persists
// it. The cart row must already be locked by the caller's transaction.
func (s *service) recomputeTotal(ctx context.Context, repo Repository, cartID uuid.UUID) (decimal.Decimal, error) {
	items, err := repo.ListItems(ctx, cartID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(money.LineTotal(item.UnitPrice, item.Quantity))
	}
	total = money.Round(total)

	if err := repo.UpdateTotal(ctx, cartID, total); err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart total")
	}
	return total, nil
}
