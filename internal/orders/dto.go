package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storekart/storekart-backend/internal/cart"
	"github.com/storekart/storekart-backend/pkg/db/models"
	"github.com/storekart/storekart-backend/pkg/enums"
)

// View is the API shape for a single order.
type View struct {
	ID            uuid.UUID         `json:"id"`
	UserID        uuid.UUID         `json:"user_id"`
	Status        enums.OrderStatus `json:"status"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	ShippingDate  time.Time         `json:"shipping_date"`
	DeliveredDate *time.Time        `json:"delivered_date,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	Items         []cart.ItemView   `json:"items,omitempty"`
}

// AdminList is the paginated admin listing shape.
type AdminList struct {
	Orders      []View `json:"orders"`
	TotalItems  int64  `json:"totalItems"`
	TotalPages  int    `json:"totalPages"`
	CurrentPage int    `json:"currentPage"`
}

// ViewFromModel maps an order row without line items.
func ViewFromModel(order models.Order) View {
	return View{
		ID:            order.ID,
		UserID:        order.UserID,
		Status:        order.Status,
		TotalAmount:   order.TotalAmount,
		ShippingDate:  order.ShippingDate,
		DeliveredDate: order.DeliveredDate,
		CreatedAt:     order.CreatedAt,
	}
}

// ViewFromModelWithItems maps an order row including its line items.
func ViewFromModelWithItems(order models.Order) View {
	view := ViewFromModel(order)
	view.Items = make([]cart.ItemView, 0, len(order.Items))
	for _, item := range order.Items {
		view.Items = append(view.Items, cart.ItemViewFromModel(item))
	}
	return view
}
