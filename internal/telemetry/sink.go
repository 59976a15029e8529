package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sigmalabbd/labstore-backend/pkg/config"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
	"github.com/sigmalabbd/labstore-backend/pkg/metrics"
)

// Publisher delivers a batch of events to the analytics backend.
type Publisher interface {
	Publish(ctx context.Context, batch []Event) error
}

// Sink buffers events and flushes them in batches. Emit never blocks the
// caller: when the queue is full the event is dropped and counted.
type Sink struct {
	queue   chan Event
	pub     Publisher
	logg    *logger.Logger
	mtr     *metrics.SessionStoreMetrics
	batch   int
	flushIn time.Duration

	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
	done    chan struct{}
}

// NewSink starts the background flusher. Close must be called on shutdown.
func NewSink(cfg config.TelemetryConfig, pub Publisher, logg *logger.Logger, mtr *metrics.SessionStoreMetrics) (*Sink, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	if cfg.FlushInterval <= 0 {
		return nil, fmt.Errorf("flush interval must be positive")
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = cfg.BatchSize * 4
	}

	s := &Sink{
		queue:   make(chan Event, queueSize),
		pub:     pub,
		logg:    logg,
		mtr:     mtr,
		batch:   cfg.BatchSize,
		flushIn: cfg.FlushInterval,
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s, nil
}

// Emit enqueues an event without blocking. A full queue drops the event.
func (s *Sink) Emit(ctx context.Context, event Event) {
	if s == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	select {
	case s.queue <- event:
	default:
		if s.mtr != nil {
			s.mtr.IncTelemetryDrop()
		}
		s.logg.Warn(ctx, "telemetry queue full, dropping event "+event.Name)
	}
}

func (s *Sink) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushIn)
	defer ticker.Stop()

	pending := make([]Event, 0, s.batch)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := make([]Event, len(pending))
		copy(batch, pending)
		pending = pending[:0]

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.pub.Publish(ctx, batch); err != nil {
			s.logg.Error(ctx, "telemetry batch publish failed", err)
		} else if s.mtr != nil {
			s.mtr.ObserveTelemetryFlush(len(batch))
		}
	}

	for {
		select {
		case event := <-s.queue:
			pending = append(pending, event)
			if len(pending) >= s.batch {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-s.done:
			// drain anything already enqueued, then flush once
			for {
				select {
				case event := <-s.queue:
					pending = append(pending, event)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops the flusher after draining the queue. Safe to call twice.
func (s *Sink) Close() {
	if s == nil {
		return
	}
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.closeMu.Unlock()

	s.wg.Wait()
}
