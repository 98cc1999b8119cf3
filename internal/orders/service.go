package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storekart/storekart-backend/pkg/enums"
	pkgerrors "github.com/storekart/storekart-backend/pkg/errors"
	"github.com/storekart/storekart-backend/pkg/metrics"
	"github.com/storekart/storekart-backend/pkg/outbox"
	"github.com/storekart/storekart-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes the order lifecycle operations.
type Service interface {
	GetByID(ctx context.Context, orderID, requesterID uuid.UUID, isAdmin bool) (*View, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]View, error)
	ListAll(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (*AdminList, error)
	SetStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, actor *outbox.ActorRef) (*View, error)
}

type service struct {
	repo   Repository
	events eventEmitter
	tx     txRunner
	domain *metrics.DomainMetrics
}

// NewService builds an orders service backed by the provided stack.
func NewService(repo Repository, events eventEmitter, tx txRunner, domain *metrics.DomainMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:   repo,
		events: events,
		tx:     tx,
		domain: domain,
	}, nil
}

type statusChangedPayload struct {
	OrderID       uuid.UUID `json:"order_id"`
	UserID        uuid.UUID `json:"user_id"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	DeliveredDate *string   `json:"delivered_date,omitempty"`
}

// GetByID loads an order with its lines. Non-admin requesters only see their
// own orders; foreign orders read as missing rather than forbidden.
func (s *service) GetByID(ctx context.Context, orderID, requesterID uuid.UUID, isAdmin bool) (*View, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !isAdmin && order.UserID != requesterID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	view := ViewFromModelWithItems(*order)
	return &view, nil
}

// ListByUser returns the buyer's order history, newest first.
func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	views := make([]View, 0, len(rows))
	for _, row := range rows {
		views = append(views, ViewFromModelWithItems(row))
	}
	return views, nil
}

// ListAll returns the admin listing with optional status filter.
func (s *service) ListAll(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (*AdminList, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}

	params = params.Normalize()
	rows, total, err := s.repo.ListAll(ctx, status, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	views := make([]View, 0, len(rows))
	for _, row := range rows {
		views = append(views, ViewFromModelWithItems(row))
	}
	return &AdminList{
		Orders:      views,
		TotalItems:  total,
		TotalPages:  params.TotalPages(total),
		CurrentPage: params.Page,
	}, nil
}

// SetStatus applies one lifecycle transition. The order row is locked for the
// duration so concurrent updates serialize, and the status event commits with
// the transition.
func (s *service) SetStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, actor *outbox.ActorRef) (*View, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var view View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		from := order.Status
		if !from.CanTransitionTo(status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition disallowed").
				WithDetails(map[string]string{
					"from": from.String(),
					"to":   status.String(),
				})
		}

		var deliveredDate *time.Time
		if status == enums.OrderStatusDelivered {
			now := time.Now().UTC()
			deliveredDate = &now
		}
		if err := repo.UpdateStatus(ctx, order.ID, status, deliveredDate); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		payload := statusChangedPayload{
			OrderID:    order.ID,
			UserID:     order.UserID,
			FromStatus: from.String(),
			ToStatus:   status.String(),
		}
		if deliveredDate != nil {
			stamp := deliveredDate.Format(time.RFC3339)
			payload.DeliveredDate = &stamp
		}
		event := outbox.DomainEvent{
			EventType:     enums.OutboxEventOrderStatusChanged,
			AggregateType: enums.OutboxAggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data:          payload,
			Version:       1,
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue status event")
		}

		order.Status = status
		order.DeliveredDate = deliveredDate
		view = ViewFromModel(*order)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.domain.IncStatusTransition(status.String())
	return &view, nil
}
