package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sigmalabbd/labstore-backend/internal/telemetry"
	"github.com/sigmalabbd/labstore-backend/pkg/config"
	pkgerrors "github.com/sigmalabbd/labstore-backend/pkg/errors"
	"github.com/sigmalabbd/labstore-backend/pkg/kv"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
	"github.com/sigmalabbd/labstore-backend/pkg/metrics"
)

const metricStore = "cart"

// Service exposes the session cart operations.
type Service interface {
	Get(ctx context.Context, sessionID string) (Cart, error)
	AddItem(ctx context.Context, sessionID string, input AddItemInput) (Cart, error)
	UpdateQuantity(ctx context.Context, sessionID string, productID uuid.UUID, quantity int) (Cart, error)
	RemoveItem(ctx context.Context, sessionID string, productID uuid.UUID) (Cart, error)
	Clear(ctx context.Context, sessionID string) error
}

type service struct {
	store    kv.Store
	logg     *logger.Logger
	mtr      *metrics.SessionStoreMetrics
	sink     *telemetry.Sink
	ttl      time.Duration
	validate *validator.Validate
	now      func() time.Time
}

// Params collects the dependencies for NewService.
type Params struct {
	Store   kv.Store
	Logger  *logger.Logger
	Metrics *metrics.SessionStoreMetrics
	Sink    *telemetry.Sink
	Config  config.CartConfig
}

// NewService builds a cart service over the blob store.
func NewService(p Params) (Service, error) {
	if p.Store == nil {
		return nil, fmt.Errorf("kv store required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		store:    p.Store,
		logg:     p.Logger,
		mtr:      p.Metrics,
		sink:     p.Sink,
		ttl:      p.Config.TTL,
		validate: validator.New(),
		now:      time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, sessionID string) (Cart, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	b, err := s.load(ctx, sessionID)
	if err != nil {
		s.incOp("get", "error")
		return Cart{}, err
	}
	s.incOp("get", "ok")
	return b.view(), nil
}

func (s *service) AddItem(ctx context.Context, sessionID string, input AddItemInput) (Cart, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if input.ProductID == uuid.Nil {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if strings.TrimSpace(input.Slug) == "" || strings.TrimSpace(input.Name) == "" {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "product slug and name are required")
	}
	if input.UnitPriceCents < 0 {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "unit price must be non-negative")
	}
	qty := input.Quantity
	if qty < 1 {
		qty = 1
	}

	b, err := s.load(ctx, sessionID)
	if err != nil {
		s.incOp("add_item", "error")
		return Cart{}, err
	}

	merged := false
	for i := range b.Items {
		if b.Items[i].ProductID == input.ProductID {
			b.Items[i].Quantity += qty
			merged = true
			break
		}
	}
	if !merged {
		b.Items = append(b.Items, Item{
			ProductID:      input.ProductID,
			Slug:           input.Slug,
			Name:           input.Name,
			NameBn:         input.NameBn,
			UnitPriceCents: input.UnitPriceCents,
			ImageURL:       input.ImageURL,
			Quantity:       qty,
			AddedAt:        s.now().UTC(),
		})
	}

	if err := s.persist(ctx, sessionID, &b); err != nil {
		s.incOp("add_item", "error")
		return Cart{}, err
	}
	s.incOp("add_item", "ok")
	s.emit(ctx, telemetry.EventCartItemAdded, sessionID, map[string]any{
		"product_id": input.ProductID.String(),
		"quantity":   qty,
		"merged":     merged,
	})
	return b.view(), nil
}

func (s *service) UpdateQuantity(ctx context.Context, sessionID string, productID uuid.UUID, quantity int) (Cart, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if productID == uuid.Nil {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	// quantity below one removes the line
	if quantity < 1 {
		return s.RemoveItem(ctx, sessionID, productID)
	}

	b, err := s.load(ctx, sessionID)
	if err != nil {
		s.incOp("update_quantity", "error")
		return Cart{}, err
	}

	found := false
	for i := range b.Items {
		if b.Items[i].ProductID == productID {
			b.Items[i].Quantity = quantity
			found = true
			break
		}
	}
	if found {
		if err := s.persist(ctx, sessionID, &b); err != nil {
			s.incOp("update_quantity", "error")
			return Cart{}, err
		}
		s.emit(ctx, telemetry.EventCartQtyChanged, sessionID, map[string]any{
			"product_id": productID.String(),
			"quantity":   quantity,
		})
	}
	s.incOp("update_quantity", "ok")
	return b.view(), nil
}

func (s *service) RemoveItem(ctx context.Context, sessionID string, productID uuid.UUID) (Cart, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if productID == uuid.Nil {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	b, err := s.load(ctx, sessionID)
	if err != nil {
		s.incOp("remove_item", "error")
		return Cart{}, err
	}

	kept := b.Items[:0]
	removed := false
	for _, item := range b.Items {
		if item.ProductID == productID {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	b.Items = kept

	// removing an absent product is a no-op, not an error
	if removed {
		if err := s.persist(ctx, sessionID, &b); err != nil {
			s.incOp("remove_item", "error")
			return Cart{}, err
		}
		s.emit(ctx, telemetry.EventCartItemRemoved, sessionID, map[string]any{
			"product_id": productID.String(),
		})
	}
	s.incOp("remove_item", "ok")
	return b.view(), nil
}

func (s *service) Clear(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if err := s.store.Del(ctx, kv.CartKey(sessionID)); err != nil {
		s.incOp("clear", "error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clearing cart")
	}
	s.incOp("clear", "ok")
	s.emit(ctx, telemetry.EventCartCleared, sessionID, nil)
	return nil
}

// load hydrates the cart blob. Absence and corruption hydrate an empty cart;
// a store failure is surfaced so callers never clobber durable state with an
// empty default.
func (s *service) load(ctx context.Context, sessionID string) (blob, error) {
	raw, err := s.store.Get(ctx, kv.CartKey(sessionID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return blob{}, nil
		}
		return blob{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading cart")
	}

	var b blob
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		s.warnCorrupt(ctx, sessionID, err)
		return blob{}, nil
	}
	if err := s.validate.Struct(&b); err != nil {
		s.warnCorrupt(ctx, sessionID, err)
		return blob{}, nil
	}
	return b, nil
}

func (s *service) persist(ctx context.Context, sessionID string, b *blob) error {
	b.UpdatedAt = s.now().UTC()
	payload, err := json.Marshal(b)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding cart")
	}
	if err := s.store.Set(ctx, kv.CartKey(sessionID), string(payload), s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting cart")
	}
	return nil
}

func (s *service) warnCorrupt(ctx context.Context, sessionID string, err error) {
	if s.mtr != nil {
		s.mtr.IncCorruptBlob(metricStore)
	}
	ctx = s.logg.WithSessionID(ctx, sessionID)
	s.logg.Warn(ctx, "malformed cart blob, starting empty: "+err.Error())
}

func (s *service) emit(ctx context.Context, name, sessionID string, props map[string]any) {
	if s.sink == nil {
		return
	}
	s.sink.Emit(ctx, telemetry.Event{Name: name, SessionID: sessionID, Props: props})
}

func (s *service) incOp(op, result string) {
	if s.mtr != nil {
		s.mtr.IncOp(metricStore, op, result)
	}
}
