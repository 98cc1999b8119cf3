package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storekart/storekart-backend/internal/cart"
	"github.com/storekart/storekart-backend/internal/orders"
	"github.com/storekart/storekart-backend/internal/users"
	"github.com/storekart/storekart-backend/pkg/db/models"
	"github.com/storekart/storekart-backend/pkg/enums"
	pkgerrors "github.com/storekart/storekart-backend/pkg/errors"
	"github.com/storekart/storekart-backend/pkg/metrics"
	"github.com/storekart/storekart-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service converts an open cart into an order.
type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID) (*Result, error)
}

type service struct {
	cartRepo  cart.Repository
	userRepo  users.Repository
	orderRepo orders.Repository
	events    eventEmitter
	tx        txRunner
	domain    *metrics.DomainMetrics
}

// NewService builds a checkout service backed by the provided stack.
func NewService(cartRepo cart.Repository, userRepo users.Repository, orderRepo orders.Repository, events eventEmitter, tx txRunner, domain *metrics.DomainMetrics) (Service, error) {
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		cartRepo:  cartRepo,
		userRepo:  userRepo,
		orderRepo: orderRepo,
		events:    events,
		tx:        tx,
		domain:    domain,
	}, nil
}

// Result is the API shape of a completed checkout.
type Result struct {
	Order orders.View     `json:"order"`
	Items []cart.ItemView `json:"items"`
}

type orderCreatedPayload struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      uuid.UUID `json:"user_id"`
	CartID      uuid.UUID `json:"cart_id"`
	TotalAmount string    `json:"total_amount"`
	ItemCount   int       `json:"item_count"`
	Status      string    `json:"status"`
}

// Checkout converts the user's open cart into a pending order. The order
// creation, line ownership transfer, cart conversion, open-cart unlink and
// the order.created event all commit in one transaction.
func (s *service) Checkout(ctx context.Context, userID uuid.UUID) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	var result Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		userRepo := s.userRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		openCart, err := cartRepo.FindActiveByUserForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		items, err := cartRepo.ListItems(ctx, openCart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}

		user, err := userRepo.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
		}
		if !user.HasCompleteShippingAddress() {
			return pkgerrors.New(pkgerrors.CodeIncompleteProfile, "shipping address incomplete").
				WithDetails(missingAddressFields(user))
		}

		order := &models.Order{
			ID:           uuid.New(),
			UserID:       userID,
			CartID:       openCart.ID,
			Status:       enums.OrderStatusPending,
			TotalAmount:  openCart.Total,
			ShippingDate: time.Now().UTC(),
		}
		if err := orderRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if err := cartRepo.AssignItemsToOrder(ctx, openCart.ID, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign items to order")
		}
		if err := cartRepo.MarkConverted(ctx, openCart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert cart")
		}
		if err := userRepo.SetCartRef(ctx, userID, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear open cart reference")
		}

		event := outbox.DomainEvent{
			EventType:     enums.OutboxEventOrderCreated,
			AggregateType: enums.OutboxAggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: user.Role.String()},
			Data: orderCreatedPayload{
				OrderID:     order.ID,
				UserID:      userID,
				CartID:      openCart.ID,
				TotalAmount: order.TotalAmount.StringFixed(2),
				ItemCount:   len(items),
				Status:      order.Status.String(),
			},
			Version: 1,
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order event")
		}

		result = Result{
			Order: orders.ViewFromModel(*order),
			Items: itemViews(items, order.ID),
		}
		return nil
	})
	if err != nil {
		s.domain.IncCheckout(checkoutOutcome(err))
		return nil, err
	}

	s.domain.IncCheckout("success")
	return &result, nil
}

func itemViews(items []models.CartItem, orderID uuid.UUID) []cart.ItemView {
	views := make([]cart.ItemView, 0, len(items))
	for _, item := range items {
		item.OrderID = &orderID
		views = append(views, cart.ItemViewFromModel(item))
	}
	return views
}

func missingAddressFields(user *models.User) map[string]string {
	missing := map[string]string{}
	if user.Address == nil || *user.Address == "" {
		missing["address"] = "required"
	}
	if user.City == nil || *user.City == "" {
		missing["city"] = "required"
	}
	if user.State == nil || *user.State == "" {
		missing["state"] = "required"
	}
	return missing
}

func checkoutOutcome(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "failed"
	}
	switch typed.Code() {
	case pkgerrors.CodeEmptyCart, pkgerrors.CodeIncompleteProfile, pkgerrors.CodeValidation:
		return "rejected"
	default:
		return "failed"
	}
}
