package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sigmalabbd/labstore-backend/internal/cart"
	"github.com/sigmalabbd/labstore-backend/internal/telemetry"
	"github.com/sigmalabbd/labstore-backend/pkg/db/models"
	pkgerrors "github.com/sigmalabbd/labstore-backend/pkg/errors"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
)

// Order status values. Payment settles off-platform, so the lifecycle stops at
// confirmation/cancellation.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusShipped   = "shipped"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

var statusTransitions = map[string]map[string]struct{}{
	StatusPending:   {StatusConfirmed: {}, StatusCancelled: {}},
	StatusConfirmed: {StatusShipped: {}, StatusCancelled: {}},
	StatusShipped:   {StatusDelivered: {}},
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartReader interface {
	Get(ctx context.Context, sessionID string) (cart.Cart, error)
	Clear(ctx context.Context, sessionID string) error
}

type productLoader interface {
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// CheckoutInput is the customer payload submitted with an order.
type CheckoutInput struct {
	CustomerName  string  `json:"customer_name" validate:"required"`
	CustomerPhone string  `json:"customer_phone" validate:"required"`
	CustomerEmail *string `json:"customer_email" validate:"omitempty,email"`
	ShippingAddr  string  `json:"shipping_addr" validate:"required"`
	Note          *string `json:"note"`
}

// Service exposes checkout and the admin order surface.
type Service interface {
	Checkout(ctx context.Context, sessionID string, input CheckoutInput) (*models.Order, error)
	List(ctx context.Context, status, cursor string, limit int) (OrderPage, error)
	Detail(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Order, error)
}

type service struct {
	repo     *Repository
	tx       txRunner
	carts    cartReader
	products productLoader
	logg     *logger.Logger
	sink     *telemetry.Sink
}

// Params collects the dependencies for NewService.
type Params struct {
	Repo     *Repository
	Tx       txRunner
	Carts    cartReader
	Products productLoader
	Logger   *logger.Logger
	Sink     *telemetry.Sink
}

// NewService builds the orders service.
func NewService(p Params) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Carts == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if p.Products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     p.Repo,
		tx:       p.Tx,
		carts:    p.Carts,
		products: p.Products,
		logg:     p.Logger,
		sink:     p.Sink,
	}, nil
}

// Checkout snapshots the session cart into an order. Every line is verified
// against the live catalog; a missing, out-of-stock, or re-priced product
// aborts the whole checkout. The cart is cleared only after the order
// transaction commits.
func (s *service) Checkout(ctx context.Context, sessionID string, input CheckoutInput) (*models.Order, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if strings.TrimSpace(input.CustomerName) == "" || strings.TrimSpace(input.CustomerPhone) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name and phone are required")
	}
	if strings.TrimSpace(input.ShippingAddr) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}

	sessionCart, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(sessionCart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	ids := make([]uuid.UUID, 0, len(sessionCart.Items))
	for _, item := range sessionCart.Items {
		ids = append(ids, item.ProductID)
	}
	current, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Product, len(current))
	for _, product := range current {
		byID[product.ID] = product
	}

	items := make([]models.OrderItem, 0, len(sessionCart.Items))
	subtotal := decimal.Zero
	for _, line := range sessionCart.Items {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product no longer available: "+line.Slug)
		}
		if !product.InStock {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product out of stock: "+product.Slug)
		}
		if product.PriceCents != line.UnitPriceCents {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "price has changed: "+product.Slug)
		}

		sku := product.SKU
		lineTotal := product.PriceCents * int64(line.Quantity)
		items = append(items, models.OrderItem{
			ID:             uuid.New(),
			ProductID:      product.ID,
			ProductName:    product.Name,
			ProductSlug:    product.Slug,
			SKU:            &sku,
			UnitPriceCents: product.PriceCents,
			Quantity:       line.Quantity,
			LineTotalCents: lineTotal,
		})
		subtotal = subtotal.Add(decimal.NewFromInt(lineTotal))
	}

	order := &models.Order{
		ID:            uuid.New(),
		SessionID:     sessionID,
		Status:        StatusPending,
		CustomerName:  strings.TrimSpace(input.CustomerName),
		CustomerPhone: strings.TrimSpace(input.CustomerPhone),
		CustomerEmail: input.CustomerEmail,
		ShippingAddr:  strings.TrimSpace(input.ShippingAddr),
		Note:          input.Note,
		SubtotalCents: subtotal.IntPart(),
		TotalCents:    subtotal.IntPart(),
		Items:         items,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.CreateTx(tx, order)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting order")
	}

	// cart cleanup is best-effort: a leftover cart after a committed order is
	// recoverable, a lost order is not
	if err := s.carts.Clear(ctx, sessionID); err != nil {
		cctx := s.logg.WithSessionID(ctx, sessionID)
		s.logg.Warn(cctx, "clearing cart after checkout failed: "+err.Error())
	}

	if s.sink != nil {
		s.sink.Emit(ctx, telemetry.Event{
			Name:      telemetry.EventCheckoutSubmitted,
			SessionID: sessionID,
			Props: map[string]any{
				"order_id":    order.ID.String(),
				"item_count":  sessionCart.ItemCount,
				"total_cents": order.TotalCents,
			},
		})
	}
	return order, nil
}

func (s *service) List(ctx context.Context, status, cursor string, limit int) (OrderPage, error) {
	page, err := s.repo.List(ctx, status, cursor, limit)
	if err != nil {
		return OrderPage{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing orders")
	}
	return page, nil
}

func (s *service) Detail(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order")
	}
	return order, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	order, err := s.Detail(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed, ok := statusTransitions[order.Status]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order status is final: "+order.Status)
	}
	if _, ok := allowed[status]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot transition order from %s to %s", order.Status, status))
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating order status")
	}
	order.Status = status
	return order, nil
}
