package recent

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

const metricStore = "recent"

// Entry is one viewed product, most recent first. It carries a pricing and
// availability snapshot so the ledger can render cards without a catalog read.
type Entry struct {
	ProductID         uuid.UUID  `json:"product_id" validate:"required"`
	Slug              string     `json:"slug" validate:"required"`
	Name              string     `json:"name" validate:"required"`
	NameBn            string     `json:"name_bn"`
	PriceCents        int64      `json:"price_cents"`
	ComparePriceCents *int64     `json:"compare_price_cents,omitempty"`
	InStock           bool       `json:"in_stock"`
	CategoryID        *uuid.UUID `json:"category_id,omitempty"`
	ImageURL          *string    `json:"image_url,omitempty"`
	ViewedAt          time.Time  `json:"viewed_at"`
}

type blob struct {
	Entries []Entry `json:"entries" validate:"dive"`
}

// AddInput is the payload recorded when a product page is viewed.
type AddInput struct {
	ProductID         uuid.UUID
	Slug              string
	Name              string
	NameBn            string
	PriceCents        int64
	ComparePriceCents *int64
	InStock           bool
	CategoryID        *uuid.UUID
	ImageURL          *string
}

// Service tracks the per-session recently-viewed ledger.
type Service interface {
	Add(ctx context.Context, sessionID string, input AddInput) ([]Entry, error)
	List(ctx context.Context, sessionID string) ([]Entry, error)
	ListExcluding(ctx context.Context, sessionID string, productID uuid.UUID) ([]Entry, error)
	Clear(ctx context.Context, sessionID string) error
}

type service struct {
	store    kv.Store
	logg     *logger.Logger
	mtr      *metrics.SessionStoreMetrics
	sink     *telemetry.Sink
	capacity int
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
	Config  config.RecentConfig
}

// NewService builds the recently-viewed service over the blob store.
func NewService(p Params) (Service, error) {
	if p.Store == nil {
		return nil, fmt.Errorf("kv store required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Config.Capacity <= 0 {
		return nil, fmt.Errorf("recent capacity must be positive")
	}
	return &service{
		store:    p.Store,
		logg:     p.Logger,
		mtr:      p.Metrics,
		sink:     p.Sink,
		capacity: p.Config.Capacity,
		ttl:      p.Config.TTL,
		validate: validator.New(),
		now:      time.Now,
	}, nil
}

// Add dedups by product id, prepends with a fresh timestamp and truncates to
// the capacity.
func (s *service) Add(ctx context.Context, sessionID string, input AddInput) ([]Entry, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if strings.TrimSpace(input.Slug) == "" || strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product slug and name are required")
	}

	b, err := s.load(ctx, sessionID)
	if err != nil {
		s.incOp("add", "error")
		return nil, err
	}

	kept := make([]Entry, 0, len(b.Entries)+1)
	kept = append(kept, Entry{
		ProductID:         input.ProductID,
		Slug:              input.Slug,
		Name:              input.Name,
		NameBn:            input.NameBn,
		PriceCents:        input.PriceCents,
		ComparePriceCents: input.ComparePriceCents,
		InStock:           input.InStock,
		CategoryID:        input.CategoryID,
		ImageURL:          input.ImageURL,
		ViewedAt:          s.now().UTC(),
	})
	for _, entry := range b.Entries {
		if entry.ProductID == input.ProductID {
			continue
		}
		kept = append(kept, entry)
	}
	if len(kept) > s.capacity {
		kept = kept[:s.capacity]
	}
	b.Entries = kept

	if err := s.persist(ctx, sessionID, b); err != nil {
		s.incOp("add", "error")
		return nil, err
	}
	s.incOp("add", "ok")
	s.emit(ctx, sessionID, input.ProductID)
	return b.Entries, nil
}

func (s *service) List(ctx context.Context, sessionID string) ([]Entry, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	b, err := s.load(ctx, sessionID)
	if err != nil {
		s.incOp("list", "error")
		return nil, err
	}
	s.incOp("list", "ok")
	if b.Entries == nil {
		return []Entry{}, nil
	}
	return b.Entries, nil
}

// ListExcluding is the "other products you viewed" read used on a product page.
func (s *service) ListExcluding(ctx context.Context, sessionID string, productID uuid.UUID) ([]Entry, error) {
	entries, err := s.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	filtered := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.ProductID == productID {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered, nil
}

func (s *service) Clear(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if err := s.store.Del(ctx, kv.RecentKey(sessionID)); err != nil {
		s.incOp("clear", "error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clearing recently viewed")
	}
	s.incOp("clear", "ok")
	return nil
}

func (s *service) load(ctx context.Context, sessionID string) (blob, error) {
	raw, err := s.store.Get(ctx, kv.RecentKey(sessionID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return blob{}, nil
		}
		return blob{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading recently viewed")
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

func (s *service) persist(ctx context.Context, sessionID string, b blob) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding recently viewed")
	}
	if err := s.store.Set(ctx, kv.RecentKey(sessionID), string(payload), s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting recently viewed")
	}
	return nil
}

func (s *service) warnCorrupt(ctx context.Context, sessionID string, err error) {
	if s.mtr != nil {
		s.mtr.IncCorruptBlob(metricStore)
	}
	ctx = s.logg.WithSessionID(ctx, sessionID)
	s.logg.Warn(ctx, "malformed recently-viewed blob, starting empty: "+err.Error())
}

func (s *service) emit(ctx context.Context, sessionID string, productID uuid.UUID) {
	if s.sink == nil {
		return
	}
	s.sink.Emit(ctx, telemetry.Event{
		Name:      telemetry.EventProductViewed,
		SessionID: sessionID,
		Props:     map[string]any{"product_id": productID.String()},
	})
}

func (s *service) incOp(op, result string) {
	if s.mtr != nil {
		s.mtr.IncOp(metricStore, op, result)
	}
}
