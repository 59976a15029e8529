package compare

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sigmalabbd/labstore-backend/internal/telemetry"
	"github.com/sigmalabbd/labstore-backend/pkg/config"
	pkgerrors "github.com/sigmalabbd/labstore-backend/pkg/errors"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
	"github.com/sigmalabbd/labstore-backend/pkg/metrics"
)

const (
	metricStore   = "compare"
	minModalItems = 2
)

// Item is the product snapshot held in a compare selection, in insertion
// order, so the comparison table renders without another catalog read.
type Item struct {
	ProductID         uuid.UUID `json:"product_id"`
	Slug              string    `json:"slug"`
	Name              string    `json:"name"`
	NameBn            string    `json:"name_bn"`
	PriceCents        int64     `json:"price_cents"`
	ComparePriceCents *int64    `json:"compare_price_cents,omitempty"`
	InStock           bool      `json:"in_stock"`
	ImageURL          *string   `json:"image_url,omitempty"`
}

// Set is the read model for a session's compare selection.
type Set struct {
	Items      []Item `json:"items"`
	Capacity   int    `json:"capacity"`
	CanAddMore bool   `json:"can_add_more"`
	ModalOpen  bool   `json:"modal_open"`
}

// Service manages per-session compare selections. Selections live in process
// memory only; they are deliberately not persisted, so a restart clears them.
type Service interface {
	Get(ctx context.Context, sessionID string) (Set, error)
	Add(ctx context.Context, sessionID string, item Item) (Set, error)
	Toggle(ctx context.Context, sessionID string, item Item) (Set, error)
	Contains(ctx context.Context, sessionID string, productID uuid.UUID) (bool, error)
	Remove(ctx context.Context, sessionID string, productID uuid.UUID) (Set, error)
	Clear(ctx context.Context, sessionID string) (Set, error)
	OpenModal(ctx context.Context, sessionID string) (Set, error)
	CloseModal(ctx context.Context, sessionID string) (Set, error)
	Close()
}

type sessionSet struct {
	items     []Item
	modalOpen bool
	touchedAt time.Time
}

type service struct {
	mu       sync.Mutex
	sessions map[string]*sessionSet
	capacity int
	ttl      time.Duration
	logg     *logger.Logger
	mtr      *metrics.SessionStoreMetrics
	sink     *telemetry.Sink
	now      func() time.Time
	done     chan struct{}
	closeOnce sync.Once
}

// Params collects the dependencies for NewService.
type Params struct {
	Logger  *logger.Logger
	Metrics *metrics.SessionStoreMetrics
	Sink    *telemetry.Sink
	Config  config.CompareConfig
}

// NewService builds the in-memory compare service and starts the idle sweeper.
func NewService(p Params) (Service, error) {
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	capacity := p.Config.Capacity
	if capacity <= 0 {
		return nil, fmt.Errorf("compare capacity must be positive")
	}
	ttl := p.Config.SessionTTL
	if ttl <= 0 {
		return nil, fmt.Errorf("compare session ttl must be positive")
	}

	s := &service{
		sessions: make(map[string]*sessionSet),
		capacity: capacity,
		ttl:      ttl,
		logg:     p.Logger,
		mtr:      p.Metrics,
		sink:     p.Sink,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go s.sweepLoop()
	return s, nil
}

func (s *service) Get(ctx context.Context, sessionID string) (Set, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Set{}, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incOp("get", "ok")
	return s.viewLocked(s.touchLocked(sessionID)), nil
}

// Add puts the product into the selection. Adding a product already present
// is a no-op, as is adding to a full selection; nothing is evicted.
func (s *service) Add(ctx context.Context, sessionID string, item Item) (Set, error) {
	if err := checkItem(sessionID, item); err != nil {
		return Set{}, err
	}

	s.mu.Lock()
	set := s.touchLocked(sessionID)
	added := false
	if indexOf(set.items, item.ProductID) < 0 && len(set.items) < s.capacity {
		set.items = append(set.items, item)
		added = true
	}
	view := s.viewLocked(set)
	s.mu.Unlock()

	s.incOp("add", "ok")
	if added {
		s.emit(ctx, telemetry.EventCompareToggled, sessionID, map[string]any{
			"product_id": item.ProductID.String(),
			"added":      true,
		})
	}
	return view, nil
}

// Toggle adds the product when absent and removes it when present. Adding at
// capacity is a silent no-op; nothing is evicted.
func (s *service) Toggle(ctx context.Context, sessionID string, item Item) (Set, error) {
	if err := checkItem(sessionID, item); err != nil {
		return Set{}, err
	}

	s.mu.Lock()
	set := s.touchLocked(sessionID)

	removed := false
	if i := indexOf(set.items, item.ProductID); i >= 0 {
		set.items = append(set.items[:i], set.items[i+1:]...)
		removed = true
	}
	added := false
	if !removed && len(set.items) < s.capacity {
		set.items = append(set.items, item)
		added = true
	}
	if len(set.items) < minModalItems {
		set.modalOpen = false
	}
	view := s.viewLocked(set)
	s.mu.Unlock()

	s.incOp("toggle", "ok")
	if added || removed {
		s.emit(ctx, telemetry.EventCompareToggled, sessionID, map[string]any{
			"product_id": item.ProductID.String(),
			"added":      added,
		})
	}
	return view, nil
}

// Contains reports whether the product is in the session's selection.
func (s *service) Contains(ctx context.Context, sessionID string, productID uuid.UUID) (bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if productID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.incOp("contains", "ok")
	set, ok := s.sessions[sessionID]
	if !ok {
		return false, nil
	}
	set.touchedAt = s.now()
	return indexOf(set.items, productID) >= 0, nil
}

func (s *service) Remove(ctx context.Context, sessionID string, productID uuid.UUID) (Set, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Set{}, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if productID == uuid.Nil {
		return Set{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.touchLocked(sessionID)
	if i := indexOf(set.items, productID); i >= 0 {
		set.items = append(set.items[:i], set.items[i+1:]...)
	}
	if len(set.items) < minModalItems {
		set.modalOpen = false
	}
	s.incOp("remove", "ok")
	return s.viewLocked(set), nil
}

func (s *service) Clear(ctx context.Context, sessionID string) (Set, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Set{}, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	s.mu.Lock()
	delete(s.sessions, sessionID)
	view := s.viewLocked(s.touchLocked(sessionID))
	s.mu.Unlock()

	s.incOp("clear", "ok")
	s.emit(ctx, telemetry.EventCompareCleared, sessionID, nil)
	return view, nil
}

// OpenModal is a no-op until the selection holds at least two products.
func (s *service) OpenModal(ctx context.Context, sessionID string) (Set, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Set{}, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.touchLocked(sessionID)
	if len(set.items) >= minModalItems {
		set.modalOpen = true
	}
	s.incOp("open_modal", "ok")
	return s.viewLocked(set), nil
}

func (s *service) CloseModal(ctx context.Context, sessionID string) (Set, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Set{}, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.touchLocked(sessionID)
	set.modalOpen = false
	s.incOp("close_modal", "ok")
	return s.viewLocked(set), nil
}

// Close stops the idle-session sweeper.
func (s *service) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *service) touchLocked(sessionID string) *sessionSet {
	set, ok := s.sessions[sessionID]
	if !ok {
		set = &sessionSet{}
		s.sessions[sessionID] = set
	}
	set.touchedAt = s.now()
	return set
}

func (s *service) viewLocked(set *sessionSet) Set {
	items := make([]Item, len(set.items))
	copy(items, set.items)
	return Set{
		Items:      items,
		Capacity:   s.capacity,
		CanAddMore: len(items) < s.capacity,
		ModalOpen:  set.modalOpen,
	}
}

func checkItem(sessionID string, item Item) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if item.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if strings.TrimSpace(item.Slug) == "" || strings.TrimSpace(item.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product slug and name are required")
	}
	return nil
}

func indexOf(items []Item, productID uuid.UUID) int {
	for i, item := range items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *service) sweepLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *service) sweep() {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, set := range s.sessions {
		if set.touchedAt.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
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
