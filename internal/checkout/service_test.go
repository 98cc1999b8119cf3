package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/storekart/storekart-backend/internal/cart"
	"github.com/storekart/storekart-backend/internal/orders"
	"github.com/storekart/storekart-backend/internal/users"
	"github.com/storekart/storekart-backend/pkg/db/models"
	"github.com/storekart/storekart-backend/pkg/enums"
	pkgerrors "github.com/storekart/storekart-backend/pkg/errors"
	"github.com/storekart/storekart-backend/pkg/outbox"
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

type failingEmitter struct{}

func (failingEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	return errors.New("emit failed")
}

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", url.PathEscape(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  phone TEXT,
  address TEXT,
  city TEXT,
  state TEXT,
  pincode TEXT,
  role TEXT NOT NULL DEFAULT 'customer',
  cart_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  total NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
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
);`, `
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
);`, `
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
);`}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newCheckoutService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(
		cart.NewRepository(db),
		users.NewRepository(db),
		orders.NewRepository(db),
		outbox.NewService(outbox.NewRepository(db), nil),
		testTxRunner{db: db},
		nil,
	)
	require.NoError(t, err)
	return svc
}

func strPtr(s string) *string {
	return &s
}

func newShippableUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		ID:        uuid.New(),
		Email:     email,
		FirstName: "Checkout",
		LastName:  "Buyer",
		Address:   strPtr("42 Harbor Lane"),
		City:      strPtr("Pune"),
		State:     strPtr("MH"),
		Role:      enums.UserRoleCustomer,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func newOpenCart(t *testing.T, db *gorm.DB, user *models.User, total string, lines int) *models.Cart {
	t.Helper()

	openCart := &models.Cart{
		ID:     uuid.New(),
		UserID: user.ID,
		Status: enums.CartStatusActive,
		Total:  decimal.RequireFromString(total),
	}
	require.NoError(t, db.Create(openCart).Error)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("cart_id", openCart.ID).Error)

	for i := 0; i < lines; i++ {
		item := &models.CartItem{
			ID:        uuid.New(),
			CartID:    openCart.ID,
			ProductID: uuid.New(),
			Name:      fmt.Sprintf("Line %d", i+1),
			UnitPrice: decimal.RequireFromString("10.00"),
			Quantity:  1,
		}
		require.NoError(t, db.Create(item).Error)
	}
	return openCart
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected coded error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestCheckoutConvertsCartAtomically(t *testing.T) {
	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db)

	user := newShippableUser(t, db, "convert@example.com")
	openCart := newOpenCart(t, db, user, "30.00", 3)

	result, err := svc.Checkout(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, result.Order.Status)
	assert.Equal(t, "30.00", result.Order.TotalAmount.StringFixed(2))
	require.Len(t, result.Items, 3)

	// order row frozen from the cart
	var order models.Order
	require.NoError(t, db.Where("id = ?", result.Order.ID).First(&order).Error)
	assert.Equal(t, openCart.ID, order.CartID)
	assert.False(t, order.ShippingDate.IsZero())

	// all lines transferred to the order
	var assigned int64
	require.NoError(t, db.Model(&models.CartItem{}).
		Where("order_id = ?", order.ID).
		Count(&assigned).Error)
	assert.Equal(t, int64(3), assigned)

	// cart converted, user unlinked
	var storedCart models.Cart
	require.NoError(t, db.Where("id = ?", openCart.ID).First(&storedCart).Error)
	assert.Equal(t, enums.CartStatusConverted, storedCart.Status)

	var storedUser models.User
	require.NoError(t, db.Where("id = ?", user.ID).First(&storedUser).Error)
	assert.Nil(t, storedUser.CartID)

	// order.created queued in the same commit
	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ? AND event_type = ?", order.ID, enums.OutboxEventOrderCreated).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestCheckoutEmptyCart(t *testing.T) {
	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db)

	// no cart at all
	user := newShippableUser(t, db, "nocart@example.com")
	_, err := svc.Checkout(context.Background(), user.ID)
	assertCode(t, err, pkgerrors.CodeEmptyCart)

	// open cart with zero lines
	other := newShippableUser(t, db, "zerolines@example.com")
	newOpenCart(t, db, other, "0.00", 0)
	_, err = svc.Checkout(context.Background(), other.ID)
	assertCode(t, err, pkgerrors.CodeEmptyCart)
}

func TestCheckoutIncompleteProfile(t *testing.T) {
	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db)

	user := &models.User{
		ID:        uuid.New(),
		Email:     "incomplete@example.com",
		FirstName: "No",
		LastName:  "Address",
		City:      strPtr("Pune"),
		Role:      enums.UserRoleCustomer,
	}
	require.NoError(t, db.Create(user).Error)
	newOpenCart(t, db, user, "10.00", 1)

	_, err := svc.Checkout(context.Background(), user.ID)
	assertCode(t, err, pkgerrors.CodeIncompleteProfile)

	typed := pkgerrors.As(err)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "address")
	assert.Contains(t, details, "state")
	assert.NotContains(t, details, "city")

	// nothing converted on rejection
	var storedCart models.Cart
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&storedCart).Error)
	assert.Equal(t, enums.CartStatusActive, storedCart.Status)
}

func TestCheckoutRollsBackWhenEventFails(t *testing.T) {
	db := setupCheckoutTestDB(t)

	svc, err := NewService(
		cart.NewRepository(db),
		users.NewRepository(db),
		orders.NewRepository(db),
		failingEmitter{},
		testTxRunner{db: db},
		nil,
	)
	require.NoError(t, err)

	user := newShippableUser(t, db, "rollback@example.com")
	openCart := newOpenCart(t, db, user, "20.00", 2)

	_, err = svc.Checkout(context.Background(), user.ID)
	require.Error(t, err)

	// the whole conversion rolled back
	var orderCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Equal(t, int64(0), orderCount)

	var storedCart models.Cart
	require.NoError(t, db.Where("id = ?", openCart.ID).First(&storedCart).Error)
	assert.Equal(t, enums.CartStatusActive, storedCart.Status)

	var storedUser models.User
	require.NoError(t, db.Where("id = ?", user.ID).First(&storedUser).Error)
	require.NotNil(t, storedUser.CartID)

	var unassigned int64
	require.NoError(t, db.Model(&models.CartItem{}).
		Where("cart_id = ? AND order_id IS NULL", openCart.ID).
		Count(&unassigned).Error)
	assert.Equal(t, int64(2), unassigned)
}

func TestCheckoutSecondCallIsEmptyCart(t *testing.T) {
	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db)

	user := newShippableUser(t, db, "twice@example.com")
	newOpenCart(t, db, user, "10.00", 1)

	_, err := svc.Checkout(context.Background(), user.ID)
	require.NoError(t, err)

	_, err = svc.Checkout(context.Background(), user.ID)
	assertCode(t, err, pkgerrors.CodeEmptyCart)
}
