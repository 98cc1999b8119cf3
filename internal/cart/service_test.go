package cart

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	product "github.com/storekart/storekart-backend/internal/products"
	"github.com/storekart/storekart-backend/internal/users"
	"github.com/storekart/storekart-backend/pkg/db/models"
	"github.com/storekart/storekart-backend/pkg/enums"
	pkgerrors "github.com/storekart/storekart-backend/pkg/errors"
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

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", url.PathEscape(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	usersTable := `
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
);`
	productsTable := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  ws_code INTEGER NOT NULL UNIQUE,
  price NUMERIC NOT NULL,
  package_size INTEGER NOT NULL DEFAULT 1,
  tags TEXT,
  is_deleted INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	productImagesTable := `
CREATE TABLE IF NOT EXISTS product_images (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  url TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`
	cartsTable := `
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  total NUMERIC NOT NULL DEFAULT 0,
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
	activeCartIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS uq_carts_active_user ON carts(user_id) WHERE status = 'active';`
	for _, ddl := range []string{usersTable, productsTable, productImagesTable, cartsTable, cartItemsTable, activeCartIndex} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func newCartService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	catalog, err := product.NewService(product.NewRepository(db))
	require.NoError(t, err)

	svc, err := NewService(NewRepository(db), users.NewRepository(db), catalog, testTxRunner{db: db}, nil)
	require.NoError(t, err)
	return svc
}

func newUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		ID:        uuid.New(),
		Email:     email,
		FirstName: "Test",
		LastName:  "Buyer",
		Role:      enums.UserRoleCustomer,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func newCatalogProduct(t *testing.T, db *gorm.DB, name string, wsCode int, price string) *models.Product {
	t.Helper()

	p := &models.Product{
		ID:     uuid.New(),
		Name:   name,
		WsCode: wsCode,
		Price:  decimal.RequireFromString(price),
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected coded error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestAddItemCreatesCartLazily(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)

	user := newUser(t, db, "lazy@example.com")
	p := newCatalogProduct(t, db, "Steel Bottle", 2001, "15.25")

	result, err := svc.AddItem(context.Background(), user.ID, AddItemInput{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, "Steel Bottle", result.Item.Name)
	assert.Equal(t, 2, result.Item.Quantity)
	assert.Equal(t, "30.50", result.Total.StringFixed(2))

	var stored models.User
	require.NoError(t, db.Where("id = ?", user.ID).First(&stored).Error)
	require.NotNil(t, stored.CartID)

	var cart models.Cart
	require.NoError(t, db.Where("id = ?", *stored.CartID).First(&cart).Error)
	assert.Equal(t, enums.CartStatusActive, cart.Status)
	assert.Equal(t, "30.50", cart.Total.StringFixed(2))
}

func TestAddItemDefaultsQuantityToOne(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)

	user := newUser(t, db, "default@example.com")
	p := newCatalogProduct(t, db, "Cork Board", 2010, "12.50")

	result, err := svc.AddItem(context.Background(), user.ID, AddItemInput{ProductID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Item.Quantity)
	assert.Equal(t, "12.50", result.Total.StringFixed(2))
}

func TestAddItemUnknownUserNotFound(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)

	p := newCatalogProduct(t, db, "Jute Rug", 2011, "64.00")

	_, err := svc.AddItem(context.Background(), uuid.New(), AddItemInput{ProductID: p.ID})
	assertCode(t, err, pkgerrors.CodeNotFound)
}

// blindCartRepo never sees an existing open cart, so every add behaves like
// the first one. Two calls through it replay the race where concurrent first
// adds both decide to create a cart.
type blindCartRepo struct {
	Repository
}

func (r blindCartRepo) WithTx(tx *gorm.DB) Repository {
	return blindCartRepo{Repository: r.Repository.WithTx(tx)}
}

func (r blindCartRepo) FindActiveByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return nil, gorm.ErrRecordNotFound
}

func TestAddItemConcurrentFirstAddConflicts(t *testing.T) {
	db := setupCartTestDB(t)

	catalog, err := product.NewService(product.NewRepository(db))
	require.NoError(t, err)
	svc, err := NewService(blindCartRepo{Repository: NewRepository(db)}, users.NewRepository(db), catalog, testTxRunner{db: db}, nil)
	require.NoError(t, err)

	user := newUser(t, db, "race@example.com")
	pa := newCatalogProduct(t, db, "Pine Crate", 2012, "18.00")
	pb := newCatalogProduct(t, db, "Wire Basket", 2013, "9.00")

	_, err = svc.AddItem(context.Background(), user.ID, AddItemInput{ProductID: pa.ID})
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), user.ID, AddItemInput{ProductID: pb.ID})
	assertCode(t, err, pkgerrors.CodeConflict)

	var active int64
	require.NoError(t, db.Model(&models.Cart{}).Where("user_id = ? AND status = ?", user.ID, enums.CartStatusActive).Count(&active).Error)
	assert.EqualValues(t, 1, active)
}

func TestAddItemDuplicateProductConflicts(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)

	user := newUser(t, db, "dup@example.com")
	p := newCatalogProduct(t, db, "Clay Mug", 2002, "8.00")

	_, err := svc.AddItem(context.Background(), user.ID, AddItemInput{ProductID: p.ID})
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), user.ID, AddItemInput{ProductID: p.ID, Quantity: 3})
	assertCode(t, err, pkgerrors.CodeConflict)

	view, err := svc.GetCart(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.Items[0].Quantity)
}

func TestAddItemUnknownOrDeletedProduct(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)

	user := newUser(t, db, "missing@example.com")

	_, err := svc.AddItem(context.Background(), user.ID, AddItemInput{ProductID: uuid.New()})
	assertCode(t, err, pkgerrors.CodeNotFound)

	deleted := newCatalogProduct(t, db, "Gone Chair", 2003, "80.00")
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", deleted.ID).Update("is_deleted", true).Error)

	_, err = svc.AddItem(context.Background(), user.ID, AddItemInput{ProductID: deleted.ID})
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestUpdateQuantityRecomputesFromSnapshotPrice(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)

	user := newUser(t, db, "snapshot@example.com")
	p := newCatalogProduct(t, db, "Walnut Tray", 2004, "10.00")

	added, err := svc.AddItem(context.Background(), user.ID, AddItemInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	// catalog price moves after the line was snapshotted
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", p.ID).Update("price", decimal.RequireFromString("99.99")).Error)

	result, err := svc.UpdateQuantity(context.Background(), user.ID, added.Item.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, "40.00", result.Total.StringFixed(2))
}

func TestUpdateQuantityRetiredProductNotFound(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)

	user := newUser(t, db, "retired@example.com")
	p := newCatalogProduct(t, db, "Rattan Lamp", 2014, "30.00")

	added, err := svc.AddItem(context.Background(), user.ID, AddItemInput{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	// listing retired after the line was snapshotted
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", p.ID).Update("is_deleted", true).Error)

	_, err = svc.UpdateQuantity(context.Background(), user.ID, added.Item.ID, 5)
	assertCode(t, err, pkgerrors.CodeNotFound)

	view, err := svc.GetCart(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.Equal(t, "60.00", view.Total.StringFixed(2))
}

func TestUpdateQuantityValidation(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)

	user := newUser(t, db, "validate@example.com")

	_, err := svc.UpdateQuantity(context.Background(), user.ID, uuid.New(), 0)
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.UpdateQuantity(context.Background(), user.ID, uuid.New(), 2)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestUpdateQuantityForeignItemForbidden(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)

	owner := newUser(t, db, "owner@example.com")
	intruder := newUser(t, db, "intruder@example.com")
	p := newCatalogProduct(t, db, "Linen Throw", 2005, "22.00")

	added, err := svc.AddItem(context.Background(), owner.ID, AddItemInput{ProductID: p.ID})
	require.NoError(t, err)

	_, err = svc.UpdateQuantity(context.Background(), intruder.ID, added.Item.ID, 2)
	assertCode(t, err, pkgerrors.CodeForbidden)

	_, err = svc.RemoveItem(context.Background(), intruder.ID, added.Item.ID)
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestRemoveItemRecomputesTotal(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)

	user := newUser(t, db, "remove@example.com")
	pa := newCatalogProduct(t, db, "Oak Shelf", 2006, "45.00")
	pb := newCatalogProduct(t, db, "Brass Hook", 2007, "5.50")

	first, err := svc.AddItem(context.Background(), user.ID, AddItemInput{ProductID: pa.ID})
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), user.ID, AddItemInput{ProductID: pb.ID, Quantity: 2})
	require.NoError(t, err)

	result, err := svc.RemoveItem(context.Background(), user.ID, first.Item.ID)
	require.NoError(t, err)
	assert.Equal(t, "11.00", result.Total.StringFixed(2))

	view, err := svc.GetCart(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, pb.ID, view.Items[0].ProductID)
}

func TestGetCartWithoutOpenCart(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)

	user := newUser(t, db, "empty@example.com")

	view, err := svc.GetCart(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Nil(t, view.CartID)
	assert.Empty(t, view.Items)
	assert.True(t, view.Total.IsZero())
}
