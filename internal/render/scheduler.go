// Package render coalesces recompute work into frame-sized batches.
//
// All queued functions run on one goroutine, the scheduler's frame loop, so
// view recomputation stays single-threaded no matter how many feed callbacks
// fire. Scheduling the same batch id twice within a frame keeps one entry in
// its original position; debounced channels additionally absorb delta bursts
// before anything reaches the frame queue.
package render

import (
	"context"
	"sync"
	"time"

	"github.com/rcrderby/crg-overlays/pkg/logger"
	"github.com/rcrderby/crg-overlays/pkg/metrics"
)

// Default scheduler configuration constants.
const (
	defaultFrameInterval    = 16 * time.Millisecond
	defaultSteadyDebounce   = 50 * time.Millisecond
	defaultHydrateDebounce  = 300 * time.Millisecond
	defaultStopDrainTimeout = time.Second
)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithFrameInterval sets the batch execution cadence.
func WithFrameInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.frameInterval = d
		}
	}
}

// WithDebounceIntervals sets the per-channel debounce intervals for steady
// state and for the initial hydration burst.
func WithDebounceIntervals(steady, hydrating time.Duration) Option {
	return func(s *Scheduler) {
		if steady > 0 {
			s.steadyDebounce = steady
		}
		if hydrating > 0 {
			s.hydrateDebounce = hydrating
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

type entry struct {
	id string
	fn func()
}

// Scheduler owns the frame loop and the per-channel debounce timers.
type Scheduler struct {
	frameInterval   time.Duration
	steadyDebounce  time.Duration
	hydrateDebounce time.Duration
	log             logger.Logger

	mu        sync.Mutex
	queue     []entry
	queued    map[string]int // batch id -> index in queue
	timers    map[string]*time.Timer
	hydrating bool
	started   bool
	stopCh    chan struct{}
	done      chan struct{}
}

// New creates a scheduler. Call Start before scheduling work.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		frameInterval:   defaultFrameInterval,
		steadyDebounce:  defaultSteadyDebounce,
		hydrateDebounce: defaultHydrateDebounce,
		queued:          map[string]int{},
		timers:          map[string]*time.Timer{},
		stopCh:          make(chan struct{}),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("render")
	}
	return s
}

// Start launches the frame loop until ctx is canceled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Stop halts the frame loop and cancels all pending debounce timers. Work
// already queued is dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	for ch, t := range s.timers {
		t.Stop()
		delete(s.timers, ch)
	}
	s.mu.Unlock()

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	select {
	case <-s.done:
	case <-time.After(defaultStopDrainTimeout):
	}
}

// Schedule queues fn for the next frame under the given batch id. A second
// call with the same id before the frame fires replaces the function but
// keeps the original queue position, so execution stays in enqueue order.
func (s *Scheduler) Schedule(id string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.queued[id]; ok {
		s.queue[i].fn = fn
		metrics.RecordRenderCoalesced()
		return
	}
	s.queued[id] = len(s.queue)
	s.queue = append(s.queue, entry{id: id, fn: fn})
}

// Debounce arms (or re-arms) the named channel's timer; when it fires the
// function is scheduled as a frame batch under the channel's id. A new call
// supersedes a pending one. The interval is longer while hydrating so the
// initial snapshot burst produces one recompute instead of hundreds.
func (s *Scheduler) Debounce(channel string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	interval := s.steadyDebounce
	if s.hydrating {
		interval = s.hydrateDebounce
	}

	if t, ok := s.timers[channel]; ok {
		t.Stop()
		metrics.RecordDebounceSuppressed(channel)
	}
	s.timers[channel] = time.AfterFunc(interval, func() {
		s.mu.Lock()
		delete(s.timers, channel)
		s.mu.Unlock()
		s.Schedule("debounce:"+channel, fn)
	})
}

// SetHydrating switches the debounce interval set. The projector holds
// hydration mode through the initial snapshot replay.
func (s *Scheduler) SetHydrating(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hydrating = on
}

// Flush runs every queued batch in enqueue order and clears the queue. The
// frame loop calls this once per tick; tests may call it directly.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	batch := s.queue
	s.queue = nil
	s.queued = map[string]int{}
	s.mu.Unlock()

	for _, e := range batch {
		s.runOne(e)
	}
	if len(batch) > 0 {
		metrics.RecordRenderPass(len(batch))
	}
}

// runOne executes one batch entry, containing any panic so a bad update
// cannot take down the loop.
func (s *Scheduler) runOne(e entry) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordRenderError()
			s.log.Error(context.Background(), "render batch panicked",
				logger.String("batch", e.id),
				logger.Any("panic", r),
			)
		}
	}()
	e.fn()
}
