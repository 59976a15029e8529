package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sigmalabbd/labstore-backend/internal/telemetry"
	"github.com/sigmalabbd/labstore-backend/pkg/config"
	pkgerrors "github.com/sigmalabbd/labstore-backend/pkg/errors"
	"github.com/sigmalabbd/labstore-backend/pkg/kv"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
	"github.com/sigmalabbd/labstore-backend/pkg/metrics"
	"github.com/sigmalabbd/labstore-backend/pkg/schedule"
)

const (
	metricStore = "preferences"

	// throttleSweepEvery bounds how often idle per-session throttles are
	// reclaimed.
	throttleSweepEvery = time.Minute
)

// Density is the grid layout setting for one device class.
type Density string

const (
	DensityComfortable Density = "comfortable"
	DensityCompact     Density = "compact"
)

// DeviceClass partitions viewports into mobile and desktop. Each class keeps
// its own stored density; writing one never touches the other.
type DeviceClass string

const (
	DeviceMobile  DeviceClass = "mobile"
	DeviceDesktop DeviceClass = "desktop"
)

// ViewportResult reports the device class derived from a viewport width.
type ViewportResult struct {
	DeviceClass DeviceClass `json:"device_class"`
	Density     Density     `json:"density"`
	Recomputed  bool        `json:"recomputed"`
}

type blob struct {
	Density Density `json:"density"`
}

// Service manages the per-session, per-device-class grid density preference.
type Service interface {
	Density(ctx context.Context, sessionID string, class DeviceClass) (Density, error)
	SetDensity(ctx context.Context, sessionID string, class DeviceClass, density Density) error
	ToggleDensity(ctx context.Context, sessionID string, class DeviceClass) (Density, error)
	Viewport(ctx context.Context, sessionID string, width int) (ViewportResult, error)
	Close()
}

// sessionThrottle pairs a throttle with its last use so idle ones can be
// reclaimed.
type sessionThrottle struct {
	th        *schedule.Throttle
	touchedAt time.Time
}

type service struct {
	store          kv.Store
	logg           *logger.Logger
	mtr            *metrics.SessionStoreMetrics
	sink           *telemetry.Sink
	mobileMaxWidth int
	ttl            time.Duration
	throttleEvery  time.Duration
	now            func() time.Time
	done           chan struct{}
	closeOnce      sync.Once

	mu        sync.Mutex
	throttles map[string]*sessionThrottle
}

// Params collects the dependencies for NewService.
type Params struct {
	Store   kv.Store
	Logger  *logger.Logger
	Metrics *metrics.SessionStoreMetrics
	Sink    *telemetry.Sink
	Config  config.DensityConfig
}

// NewService builds the density preference service.
func NewService(p Params) (Service, error) {
	if p.Store == nil {
		return nil, fmt.Errorf("kv store required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Config.MobileMaxWidth <= 0 {
		return nil, fmt.Errorf("mobile max width must be positive")
	}
	if p.Config.ResizeThrottle <= 0 {
		return nil, fmt.Errorf("resize throttle must be positive")
	}
	s := &service{
		store:          p.Store,
		logg:           p.Logger,
		mtr:            p.Metrics,
		sink:           p.Sink,
		mobileMaxWidth: p.Config.MobileMaxWidth,
		ttl:            p.Config.PreferenceExpiry,
		throttleEvery:  p.Config.ResizeThrottle,
		now:            time.Now,
		done:           make(chan struct{}),
		throttles:      make(map[string]*sessionThrottle),
	}
	go s.sweepLoop()
	return s, nil
}

// ClassForWidth maps a viewport width to its device class. Widths at or below
// the threshold are mobile.
func (s *service) ClassForWidth(width int) DeviceClass {
	if width <= s.mobileMaxWidth {
		return DeviceMobile
	}
	return DeviceDesktop
}

func (s *service) Density(ctx context.Context, sessionID string, class DeviceClass) (Density, error) {
	if err := validateKey(sessionID, class); err != nil {
		return "", err
	}
	density := s.loadDensity(ctx, sessionID, class)
	s.incOp("get", "ok")
	return density, nil
}

func (s *service) SetDensity(ctx context.Context, sessionID string, class DeviceClass, density Density) error {
	if err := validateKey(sessionID, class); err != nil {
		return err
	}
	if density != DensityComfortable && density != DensityCompact {
		return pkgerrors.New(pkgerrors.CodeValidation, "density must be comfortable or compact")
	}

	payload, err := json.Marshal(blob{Density: density})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding density preference")
	}
	if err := s.store.Set(ctx, kv.DensityKey(sessionID, string(class)), string(payload), s.ttl); err != nil {
		s.incOp("set", "error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting density preference")
	}
	s.incOp("set", "ok")
	s.emit(ctx, sessionID, class, density)
	return nil
}

func (s *service) ToggleDensity(ctx context.Context, sessionID string, class DeviceClass) (Density, error) {
	if err := validateKey(sessionID, class); err != nil {
		return "", err
	}
	next := DensityCompact
	if s.loadDensity(ctx, sessionID, class) == DensityCompact {
		next = DensityComfortable
	}
	if err := s.SetDensity(ctx, sessionID, class, next); err != nil {
		return "", err
	}
	return next, nil
}

// Viewport recomputes the device class from a width report. Recomputes are
// throttled per session; calls inside the window return the last known state
// without touching the store.
func (s *service) Viewport(ctx context.Context, sessionID string, width int) (ViewportResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return ViewportResult{}, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if width <= 0 {
		return ViewportResult{}, pkgerrors.New(pkgerrors.CodeValidation, "viewport width must be positive")
	}

	class := s.ClassForWidth(width)
	if !s.throttleFor(sessionID).Allow() {
		s.incOp("viewport", "throttled")
		return ViewportResult{DeviceClass: class, Density: s.loadDensity(ctx, sessionID, class)}, nil
	}

	density := s.loadDensity(ctx, sessionID, class)
	s.incOp("viewport", "ok")
	return ViewportResult{DeviceClass: class, Density: density, Recomputed: true}, nil
}

func validateKey(sessionID string, class DeviceClass) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if class != DeviceMobile && class != DeviceDesktop {
		return pkgerrors.New(pkgerrors.CodeValidation, "device class must be mobile or desktop")
	}
	return nil
}

// loadDensity falls back to comfortable on absence, corruption, or a store
// failure: the preference is cosmetic and must never block a page render.
func (s *service) loadDensity(ctx context.Context, sessionID string, class DeviceClass) Density {
	raw, err := s.store.Get(ctx, kv.DensityKey(sessionID, string(class)))
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			ctx = s.logg.WithSessionID(ctx, sessionID)
			s.logg.Warn(ctx, "loading density preference failed: "+err.Error())
		}
		return DensityComfortable
	}
	var b blob
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		if s.mtr != nil {
			s.mtr.IncCorruptBlob(metricStore)
		}
		ctx = s.logg.WithSessionID(ctx, sessionID)
		s.logg.Warn(ctx, "malformed density blob, using default: "+err.Error())
		return DensityComfortable
	}
	if b.Density != DensityComfortable && b.Density != DensityCompact {
		return DensityComfortable
	}
	return b.Density
}

func (s *service) throttleFor(sessionID string) *schedule.Throttle {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.throttles[sessionID]
	if !ok {
		entry = &sessionThrottle{th: schedule.NewThrottle(s.throttleEvery)}
		s.throttles[sessionID] = entry
	}
	entry.touchedAt = s.now()
	return entry.th
}

// Close stops the idle-throttle sweeper.
func (s *service) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *service) sweepLoop() {
	ticker := time.NewTicker(throttleSweepEvery)
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

// sweep drops throttles idle past their window. A dropped throttle behaves
// exactly like a fresh one on the next viewport report.
func (s *service) sweep() {
	cutoff := s.now().Add(-s.throttleEvery)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.throttles {
		if entry.touchedAt.Before(cutoff) {
			delete(s.throttles, id)
		}
	}
}

func (s *service) emit(ctx context.Context, sessionID string, class DeviceClass, density Density) {
	if s.sink == nil {
		return
	}
	s.sink.Emit(ctx, telemetry.Event{
		Name:      telemetry.EventDensityChanged,
		SessionID: sessionID,
		Props:     map[string]any{"device_class": string(class), "density": string(density)},
	})
}

func (s *service) incOp(op, result string) {
	if s.mtr != nil {
		s.mtr.IncOp(metricStore, op, result)
	}
}
