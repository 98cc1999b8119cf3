package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storekart/storekart-backend/pkg/db/models"
	"github.com/storekart/storekart-backend/pkg/money"
)

// ItemView is the API shape for one cart line.
type ItemView struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ImageURL  *string         `json:"image_url,omitempty"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// View is the API shape for the whole cart.
type View struct {
	CartID *uuid.UUID      `json:"cart_id,omitempty"`
	Items  []ItemView      `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

func ItemViewFromModel(item models.CartItem) ItemView {
	return ItemView{
		ID:        item.ID,
		ProductID: item.ProductID,
		Name:      item.Name,
		UnitPrice: item.UnitPrice,
		ImageURL:  item.ImageURL,
		Quantity:  item.Quantity,
		LineTotal: money.LineTotal(item.UnitPrice, item.Quantity),
	}
}

func viewFromModels(cartID uuid.UUID, items []models.CartItem, total decimal.Decimal) *View {
	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, ItemViewFromModel(item))
	}
	id := cartID
	return &View{CartID: &id, Items: views, Total: total}
}

// emptyView is what a user without an open cart sees.
func emptyView() *View {
	return &View{Items: []ItemView{}, Total: decimal.Zero.Round(2)}
}
