package orders

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sigmalabbd/labstore-backend/internal/cart"
	"github.com/sigmalabbd/labstore-backend/pkg/db/models"
	pkgerrors "github.com/sigmalabbd/labstore-backend/pkg/errors"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  customer_name TEXT NOT NULL,
  customer_phone TEXT NOT NULL,
  customer_email TEXT,
  shipping_addr TEXT NOT NULL,
  note TEXT,
  subtotal_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  product_slug TEXT NOT NULL,
  sku TEXT,
  unit_price_cents INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  line_total_cents INTEGER NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	return db
}

type testTx struct {
	db *gorm.DB
}

func (t *testTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(fn)
}

type stubCart struct {
	cart    cart.Cart
	getErr  error
	cleared int
}

func (s *stubCart) Get(context.Context, string) (cart.Cart, error) {
	if s.getErr != nil {
		return cart.Cart{}, s.getErr
	}
	return s.cart, nil
}

func (s *stubCart) Clear(context.Context, string) error {
	s.cleared++
	return nil
}

type stubProducts struct {
	products []models.Product
}

func (s *stubProducts) GetProductsByIDs(context.Context, []uuid.UUID) ([]models.Product, error) {
	return s.products, nil
}

func newTestOrderService(t *testing.T, db *gorm.DB, carts *stubCart, products *stubProducts) Service {
	t.Helper()
	svc, err := NewService(Params{
		Repo:     NewRepository(db),
		Tx:       &testTx{db: db},
		Carts:    carts,
		Products: products,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc
}

func stockedProduct(slug string, priceCents int64) models.Product {
	return models.Product{
		ID:         uuid.New(),
		SKU:        "SKU-" + slug,
		Slug:       slug,
		Name:       "Product " + slug,
		NameBn:     slug + "-bn",
		PriceCents: priceCents,
		InStock:    true,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
}

func cartLine(product models.Product, qty int) cart.Item {
	return cart.Item{
		ProductID:      product.ID,
		Slug:           product.Slug,
		Name:           product.Name,
		UnitPriceCents: product.PriceCents,
		Quantity:       qty,
		AddedAt:        time.Now().UTC(),
	}
}

func TestCheckoutSnapshotsCartIntoOrder(t *testing.T) {
	db := setupOrdersTestDB(t)

	product := stockedProduct("ph-meter", 250000)
	carts := &stubCart{cart: cart.Cart{
		Items:     []cart.Item{cartLine(product, 2)},
		ItemCount: 2,
	}}
	svc := newTestOrderService(t, db, carts, &stubProducts{products: []models.Product{product}})

	order, err := svc.Checkout(context.Background(), "s1", CheckoutInput{
		CustomerName:  "Rahim Uddin",
		CustomerPhone: "+8801712345678",
		ShippingAddr:  "12 Science Lab Road, Dhaka",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, order.Status)
	assert.EqualValues(t, 500000, order.TotalCents)
	require.Len(t, order.Items, 1)
	assert.EqualValues(t, 250000, order.Items[0].UnitPriceCents)
	assert.Equal(t, 1, carts.cleared)

	// the order is durable with its items
	persisted, err := svc.Detail(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, persisted.Items, 1)
	assert.Equal(t, product.Slug, persisted.Items[0].ProductSlug)
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	db := setupOrdersTestDB(t)
	carts := &stubCart{}
	svc := newTestOrderService(t, db, carts, &stubProducts{})

	_, err := svc.Checkout(context.Background(), "s1", CheckoutInput{
		CustomerName:  "Rahim Uddin",
		CustomerPhone: "+8801712345678",
		ShippingAddr:  "12 Science Lab Road, Dhaka",
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
	assert.Zero(t, carts.cleared)
}

func TestCheckoutRejectsUnavailableProduct(t *testing.T) {
	db := setupOrdersTestDB(t)

	product := stockedProduct("burette", 120000)
	carts := &stubCart{cart: cart.Cart{
		Items:     []cart.Item{cartLine(product, 1)},
		ItemCount: 1,
	}}
	// catalog no longer returns the product
	svc := newTestOrderService(t, db, carts, &stubProducts{})

	_, err := svc.Checkout(context.Background(), "s1", CheckoutInput{
		CustomerName:  "Karima Begum",
		CustomerPhone: "+8801812345678",
		ShippingAddr:  "45 College Road, Chattogram",
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeConflict, appErr.Code())
	// the cart must survive a failed checkout
	assert.Zero(t, carts.cleared)

	page, err := svc.List(context.Background(), "", "", 10)
	require.NoError(t, err)
	assert.Empty(t, page.Orders)
}

func TestCheckoutRejectsPriceDrift(t *testing.T) {
	db := setupOrdersTestDB(t)

	product := stockedProduct("microscope", 4500000)
	line := cartLine(product, 1)
	carts := &stubCart{cart: cart.Cart{
		Items:     []cart.Item{line},
		ItemCount: 1,
	}}
	// catalog price moved after the product was carted
	product.PriceCents = 4800000
	svc := newTestOrderService(t, db, carts, &stubProducts{products: []models.Product{product}})

	_, err := svc.Checkout(context.Background(), "s1", CheckoutInput{
		CustomerName:  "Nusrat Jahan",
		CustomerPhone: "+8801512345678",
		ShippingAddr:  "78 University Road, Sylhet",
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeConflict, appErr.Code())
	assert.Zero(t, carts.cleared)

	page, err := svc.List(context.Background(), "", "", 10)
	require.NoError(t, err)
	assert.Empty(t, page.Orders)
}

func TestUpdateStatusEnforcesTransitions(t *testing.T) {
	db := setupOrdersTestDB(t)

	product := stockedProduct("hotplate", 900000)
	carts := &stubCart{cart: cart.Cart{
		Items:     []cart.Item{cartLine(product, 1)},
		ItemCount: 1,
	}}
	svc := newTestOrderService(t, db, carts, &stubProducts{products: []models.Product{product}})

	order, err := svc.Checkout(context.Background(), "s1", CheckoutInput{
		CustomerName:  "Selim Reza",
		CustomerPhone: "+8801912345678",
		ShippingAddr:  "3 Industrial Area, Gazipur",
	})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), order.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, updated.Status)

	// delivered is not reachable from confirmed
	_, err = svc.UpdateStatus(context.Background(), order.ID, StatusDelivered)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
}

func TestListPaginatesNewestFirst(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	base := time.Now().Add(-time.Hour).UTC()
	for i := 0; i < 4; i++ {
		order := &models.Order{
			ID:            uuid.New(),
			SessionID:     "s1",
			Status:        StatusPending,
			CustomerName:  fmt.Sprintf("Customer %d", i),
			CustomerPhone: "+880170000000" + fmt.Sprint(i),
			ShippingAddr:  "Dhaka",
			SubtotalCents: 1000,
			TotalCents:    1000,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(order).Error)
	}

	page, err := repo.List(context.Background(), "", "", 3)
	require.NoError(t, err)
	assert.Len(t, page.Orders, 3)
	assert.EqualValues(t, 4, page.Total)
	require.NotEmpty(t, page.NextCursor)
	assert.Equal(t, "Customer 3", page.Orders[0].CustomerName)

	rest, err := repo.List(context.Background(), "", page.NextCursor, 3)
	require.NoError(t, err)
	assert.Len(t, rest.Orders, 1)
	assert.Equal(t, "Customer 0", rest.Orders[0].CustomerName)
}
