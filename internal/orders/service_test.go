package orders

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/storekart/storekart-backend/pkg/db/models"
	"github.com/storekart/storekart-backend/pkg/enums"
	pkgerrors "github.com/storekart/storekart-backend/pkg/errors"
	"github.com/storekart/storekart-backend/pkg/outbox"
	"github.com/storekart/storekart-backend/pkg/pagination"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", url.PathEscape(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ordersTable := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  cart_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  total_amount NUMERIC NOT NULL,
  shipping_date DATETIME NOT NULL,
  delivered_date DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	cartItemsTable := `
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  order_id TEXT,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  unit_price NUMERIC NOT NULL,
  image_url TEXT,
  quantity INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (cart_id, product_id)
);`
	outboxTable := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	for _, ddl := range []string{ordersTable, cartItemsTable, outboxTable} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func newOrdersService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(NewRepository(db), outbox.NewService(outbox.NewRepository(db), nil), testTxRunner{db: db}, nil)
	require.NoError(t, err)
	return svc
}

func createOrder(t *testing.T, db *gorm.DB, userID uuid.UUID, status enums.OrderStatus, total string, created time.Time) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:           uuid.New(),
		UserID:       userID,
		CartID:       uuid.New(),
		Status:       status,
		TotalAmount:  decimal.RequireFromString(total),
		ShippingDate: created,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func createOrderLine(t *testing.T, db *gorm.DB, order *models.Order, name string, price string, qty int) {
	t.Helper()

	item := &models.CartItem{
		ID:        uuid.New(),
		CartID:    order.CartID,
		OrderID:   &order.ID,
		ProductID: uuid.New(),
		Name:      name,
		UnitPrice: decimal.RequireFromString(price),
		Quantity:  qty,
	}
	require.NoError(t, db.Create(item).Error)
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected coded error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestSetStatusWalksLifecycle(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db)

	order := createOrder(t, db, uuid.New(), enums.OrderStatusPending, "120.00", time.Now().UTC())

	for _, status := range []enums.OrderStatus{
		enums.OrderStatusConfirmed,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
	} {
		view, err := svc.SetStatus(context.Background(), order.ID, status, nil)
		require.NoError(t, err)
		assert.Equal(t, status, view.Status)
	}

	var stored models.Order
	require.NoError(t, db.Where("id = ?", order.ID).First(&stored).Error)
	assert.Equal(t, enums.OrderStatusDelivered, stored.Status)
	require.NotNil(t, stored.DeliveredDate)

	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ? AND event_type = ?", order.ID, enums.OutboxEventOrderStatusChanged).
		Count(&events).Error)
	assert.Equal(t, int64(3), events)
}

func TestSetStatusRejectsIllegalTransitions(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db)

	order := createOrder(t, db, uuid.New(), enums.OrderStatusPending, "10.00", time.Now().UTC())

	_, err := svc.SetStatus(context.Background(), order.ID, enums.OrderStatusShipped, nil)
	assertCode(t, err, pkgerrors.CodeStateConflict)

	// terminal states stay frozen
	delivered := createOrder(t, db, uuid.New(), enums.OrderStatusDelivered, "10.00", time.Now().UTC())
	_, err = svc.SetStatus(context.Background(), delivered.ID, enums.OrderStatusCancelled, nil)
	assertCode(t, err, pkgerrors.CodeStateConflict)

	// failed transitions leave no events behind
	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("aggregate_id IN ?", []uuid.UUID{order.ID, delivered.ID}).
		Count(&events).Error)
	assert.Equal(t, int64(0), events)
}

func TestSetStatusCancelFromNonTerminal(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db)

	order := createOrder(t, db, uuid.New(), enums.OrderStatusShipped, "55.00", time.Now().UTC())

	view, err := svc.SetStatus(context.Background(), order.ID, enums.OrderStatusCancelled, nil)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, view.Status)
	assert.Nil(t, view.DeliveredDate)
}

func TestSetStatusMissingOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db)

	_, err := svc.SetStatus(context.Background(), uuid.New(), enums.OrderStatusConfirmed, nil)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestGetByIDScoping(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db)

	owner := uuid.New()
	order := createOrder(t, db, owner, enums.OrderStatusPending, "75.00", time.Now().UTC())
	createOrderLine(t, db, order, "Cedar Box", "25.00", 3)

	view, err := svc.GetByID(context.Background(), order.ID, owner, false)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "75.00", view.Items[0].LineTotal.StringFixed(2))

	// a stranger sees not-found, an admin sees the order
	_, err = svc.GetByID(context.Background(), order.ID, uuid.New(), false)
	assertCode(t, err, pkgerrors.CodeNotFound)

	_, err = svc.GetByID(context.Background(), order.ID, uuid.New(), true)
	require.NoError(t, err)
}

func TestListByUserNewestFirst(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db)

	user := uuid.New()
	now := time.Now().UTC()
	createOrder(t, db, user, enums.OrderStatusPending, "10.00", now.Add(-time.Hour))
	latest := createOrder(t, db, user, enums.OrderStatusConfirmed, "20.00", now)
	createOrder(t, db, uuid.New(), enums.OrderStatusPending, "99.00", now)

	views, err := svc.ListByUser(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, latest.ID, views[0].ID)
}

func TestListAllFilterAndPagination(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db)

	user := uuid.New()
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		createOrder(t, db, user, enums.OrderStatusPending, "10.00", now.Add(time.Duration(-i)*time.Minute))
	}
	createOrder(t, db, user, enums.OrderStatusShipped, "10.00", now)

	status := enums.OrderStatusPending
	list, err := svc.ListAll(context.Background(), &status, pagination.Params{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), list.TotalItems)
	assert.Equal(t, 2, list.TotalPages)
	assert.Equal(t, 1, list.CurrentPage)
	require.Len(t, list.Orders, 2)

	second, err := svc.ListAll(context.Background(), &status, pagination.Params{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)

	invalid := enums.OrderStatus("archived")
	_, err = svc.ListAll(context.Background(), &invalid, pagination.Params{})
	assertCode(t, err, pkgerrors.CodeValidation)
}
