package drafts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
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
	metricStore = "drafts"

	// debouncerSweepEvery bounds how often quiesced per-form debouncers are
	// reclaimed.
	debouncerSweepEvery = time.Minute
)

// Draft is the stored form snapshot. Fields holds the raw form values; the
// fingerprint is a SHA-256 over the canonicalized fields.
type Draft struct {
	ProductKey  string            `json:"product_key"`
	Fields      map[string]string `json:"fields"`
	Fingerprint string            `json:"fingerprint"`
	SavedAt     time.Time         `json:"saved_at"`
}

// CheckResult reports whether a usable draft exists for a form.
type CheckResult struct {
	Exists  bool       `json:"exists"`
	SavedAt *time.Time `json:"saved_at,omitempty"`
}

// Service is the admin product-draft cache. Storage failures are absorbed:
// a draft is a convenience copy, never the source of truth, so errors are
// logged and reported as absence instead of failing the form.
type Service interface {
	Check(ctx context.Context, sessionID, productKey string) CheckResult
	Save(ctx context.Context, sessionID, productKey string, fields map[string]string) error
	AutoSave(ctx context.Context, sessionID, productKey string, fields map[string]string) error
	Load(ctx context.Context, sessionID, productKey string) (*Draft, error)
	Discard(ctx context.Context, sessionID, productKey string) error
	Close()
}

type service struct {
	store    kv.Store
	logg     *logger.Logger
	mtr      *metrics.SessionStoreMetrics
	sink     *telemetry.Sink
	expiry   time.Duration
	debounce time.Duration
	now      func() time.Time
	done     chan struct{}

	mu         sync.Mutex
	debouncers map[string]*schedule.Debouncer
	closed     bool
}

// Params collects the dependencies for NewService.
type Params struct {
	Store   kv.Store
	Logger  *logger.Logger
	Metrics *metrics.SessionStoreMetrics
	Sink    *telemetry.Sink
	Config  config.DraftsConfig
}

// NewService builds the draft cache service.
func NewService(p Params) (Service, error) {
	if p.Store == nil {
		return nil, fmt.Errorf("kv store required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Config.Expiry <= 0 {
		return nil, fmt.Errorf("draft expiry must be positive")
	}
	if p.Config.AutosaveDebounce <= 0 {
		return nil, fmt.Errorf("autosave debounce must be positive")
	}
	s := &service{
		store:      p.Store,
		logg:       p.Logger,
		mtr:        p.Metrics,
		sink:       p.Sink,
		expiry:     p.Config.Expiry,
		debounce:   p.Config.AutosaveDebounce,
		now:        time.Now,
		done:       make(chan struct{}),
		debouncers: make(map[string]*schedule.Debouncer),
	}
	go s.sweepLoop()
	return s, nil
}

// Check reports draft presence. A draft past its expiry is purged and reported
// absent.
func (s *service) Check(ctx context.Context, sessionID, productKey string) CheckResult {
	draft := s.load(ctx, sessionID, productKey)
	if draft == nil {
		s.incOp("check", "ok")
		return CheckResult{}
	}
	if s.now().Sub(draft.SavedAt) > s.expiry {
		if err := s.store.Del(ctx, kv.DraftKey(sessionID, productKey)); err != nil {
			s.warnStorage(ctx, sessionID, "purging expired draft", err)
		}
		s.incOp("check", "ok")
		return CheckResult{}
	}
	s.incOp("check", "ok")
	savedAt := draft.SavedAt
	return CheckResult{Exists: true, SavedAt: &savedAt}
}

// Save persists immediately unless the content fingerprint matches the stored
// draft, in which case nothing is written and the timestamp keeps its age.
func (s *service) Save(ctx context.Context, sessionID, productKey string, fields map[string]string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if strings.TrimSpace(productKey) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product key is required")
	}

	fingerprint := Fingerprint(fields)
	if existing := s.load(ctx, sessionID, productKey); existing != nil && existing.Fingerprint == fingerprint {
		s.incOp("save", "skipped")
		return nil
	}

	draft := Draft{
		ProductKey:  productKey,
		Fields:      fields,
		Fingerprint: fingerprint,
		SavedAt:     s.now().UTC(),
	}
	payload, err := json.Marshal(draft)
	if err != nil {
		s.warnStorage(ctx, sessionID, "encoding draft", err)
		return nil
	}
	if err := s.store.Set(ctx, kv.DraftKey(sessionID, productKey), string(payload), s.expiry); err != nil {
		s.warnStorage(ctx, sessionID, "persisting draft", err)
		s.incOp("save", "error")
		return nil
	}
	s.incOp("save", "ok")
	s.emit(ctx, telemetry.EventDraftSaved, sessionID, productKey)
	return nil
}

// AutoSave debounces Save per (session, productKey): a burst of edits results
// in one write after the idle window, and superseded snapshots never land.
func (s *service) AutoSave(ctx context.Context, sessionID, productKey string, fields map[string]string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if strings.TrimSpace(productKey) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product key is required")
	}

	snapshot := make(map[string]string, len(fields))
	for k, v := range fields {
		snapshot[k] = v
	}

	// Hold the lock through Schedule so the sweeper cannot reclaim the
	// debouncer between lookup and arming.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	key := sessionID + "|" + productKey
	deb, ok := s.debouncers[key]
	if !ok {
		deb = schedule.NewDebouncer(s.debounce)
		s.debouncers[key] = deb
	}
	deb.Schedule(func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Save(saveCtx, sessionID, productKey, snapshot)
	})
	return nil
}

func (s *service) Load(ctx context.Context, sessionID, productKey string) (*Draft, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if strings.TrimSpace(productKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product key is required")
	}
	draft := s.load(ctx, sessionID, productKey)
	if draft == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no draft found")
	}
	if s.now().Sub(draft.SavedAt) > s.expiry {
		if err := s.store.Del(ctx, kv.DraftKey(sessionID, productKey)); err != nil {
			s.warnStorage(ctx, sessionID, "purging expired draft", err)
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no draft found")
	}
	s.incOp("load", "ok")
	return draft, nil
}

// Discard drops the stored draft and any pending autosave for the form.
func (s *service) Discard(ctx context.Context, sessionID, productKey string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if strings.TrimSpace(productKey) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product key is required")
	}

	s.mu.Lock()
	if deb, ok := s.debouncers[sessionID+"|"+productKey]; ok {
		deb.Cancel()
	}
	s.mu.Unlock()

	if err := s.store.Del(ctx, kv.DraftKey(sessionID, productKey)); err != nil {
		s.warnStorage(ctx, sessionID, "discarding draft", err)
		s.incOp("discard", "error")
		return nil
	}
	s.incOp("discard", "ok")
	s.emit(ctx, telemetry.EventDraftDiscarded, sessionID, productKey)
	return nil
}

// Close cancels all pending autosaves and stops the sweeper. Drafts already
// persisted stay.
func (s *service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	for _, deb := range s.debouncers {
		deb.Close()
	}
	s.debouncers = make(map[string]*schedule.Debouncer)
}

func (s *service) sweepLoop() {
	ticker := time.NewTicker(debouncerSweepEvery)
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

// sweep reclaims debouncers with no armed autosave. The next autosave for the
// form simply creates a fresh one.
func (s *service) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for key, deb := range s.debouncers {
		if !deb.Pending() {
			deb.Close()
			delete(s.debouncers, key)
		}
	}
}

// Fingerprint returns the hex SHA-256 of the canonical key-sorted encoding of
// the form fields. Identical content always produces the same fingerprint.
func Fingerprint(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(fields[k]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *service) load(ctx context.Context, sessionID, productKey string) *Draft {
	raw, err := s.store.Get(ctx, kv.DraftKey(sessionID, productKey))
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.warnStorage(ctx, sessionID, "loading draft", err)
		}
		return nil
	}
	var draft Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		if s.mtr != nil {
			s.mtr.IncCorruptBlob(metricStore)
		}
		s.warnStorage(ctx, sessionID, "malformed draft blob", err)
		return nil
	}
	return &draft
}

func (s *service) warnStorage(ctx context.Context, sessionID, action string, err error) {
	ctx = s.logg.WithSessionID(ctx, sessionID)
	s.logg.Warn(ctx, action+" failed: "+err.Error())
}

func (s *service) emit(ctx context.Context, name, sessionID, productKey string) {
	if s.sink == nil {
		return
	}
	s.sink.Emit(ctx, telemetry.Event{
		Name:      name,
		SessionID: sessionID,
		Props:     map[string]any{"product_key": productKey},
	})
}

func (s *service) incOp(op, result string) {
	if s.mtr != nil {
		s.mtr.IncOp(metricStore, op, result)
	}
}
