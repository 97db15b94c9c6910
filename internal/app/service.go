// Package app wires the projection pipeline together.
//
// Deltas flow one direction: feed -> key classification -> aggregate store
// mutation -> derived-cache invalidation -> scheduled view rebuild ->
// published overlay. Nothing flows back upstream.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rcrderby/crg-overlays/internal/adapters/feed"
	"github.com/rcrderby/crg-overlays/internal/config"
	"github.com/rcrderby/crg-overlays/internal/domain/derived"
	"github.com/rcrderby/crg-overlays/internal/domain/gameclock"
	"github.com/rcrderby/crg-overlays/internal/domain/keypath"
	"github.com/rcrderby/crg-overlays/internal/domain/penaltybox"
	"github.com/rcrderby/crg-overlays/internal/domain/roster"
	"github.com/rcrderby/crg-overlays/internal/render"
	"github.com/rcrderby/crg-overlays/internal/view"
	"github.com/rcrderby/crg-overlays/pkg/logger"
	"github.com/rcrderby/crg-overlays/pkg/metrics"
)

// Feed patterns the projector subscribes to. One registration with many
// patterns so each delta is dispatched exactly once.
var feedPatterns = []string{
	"ScoreBoard.CurrentGame.Team(*)",
	"ScoreBoard.CurrentGame.Clock(*)",
	"ScoreBoard.CurrentGame.Expulsion(*)",
	"ScoreBoard.CurrentGame.CurrentPeriodNumber",
	"ScoreBoard.CurrentGame.InOvertime",
	"ScoreBoard.CurrentGame.OfficialScore",
	"ScoreBoard.CurrentGame.OfficialReview",
	"ScoreBoard.CurrentGame.TimeoutOwner",
	"ScoreBoard.CurrentGame.Rule(*)",
	"ScoreBoard.CurrentGame.EventInfo(*)",
}

// Render channel ids.
const (
	channelClock = "clock"
	channelGame  = "game"
)

// Sink receives every published overlay model. Implemented by the SSE hub.
type Sink interface {
	Publish(o view.Overlay)
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithFeedClient injects a feed client, replacing the default WebSocket
// client. Used by tests and the simulator harness.
func WithFeedClient(c feed.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.client = c
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service is the projection engine: it owns the pipeline from feed deltas to
// published overlay models.
type Service struct {
	mu  sync.RWMutex
	cfg *config.Config
	now func() time.Time
	log logger.Logger

	client  feed.Client
	store   *roster.Store
	facts   *derived.Facts
	engine  *penaltybox.Engine
	machine *gameclock.Machine
	builder *view.Builder
	sched   *render.Scheduler

	sinks   []Sink
	current view.Overlay

	started      bool
	regID        string
	hydrateTimer *time.Timer
	graceTimer   *time.Timer
}

// New constructs a service over a validated configuration.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddSink attaches a publish target. Call before Start.
func (s *Service) AddSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Start builds the pipeline and begins consuming the feed.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.log == nil {
		s.log = logger.Get().Named("projector")
	}
	if s.cfg == nil {
		return fmt.Errorf("%w: nil config", config.ErrInvalidConfig)
	}

	s.log.Info(ctx, "starting overlay projector...")

	if s.client == nil {
		s.client = feed.NewWSClient(
			s.cfg.Feed.URL,
			feed.WithRetryInterval(s.cfg.Feed.RetryInterval()),
			feed.WithHandshakeTimeout(s.cfg.Feed.HandshakeTimeout()),
			feed.WithConnStateListener(s.onConnState),
			feed.WithLogger(s.log.Named("feed")),
		)
	}

	s.store = roster.New(
		roster.WithNumTeams(s.cfg.Rules.NumTeams),
		roster.WithNameGrace(s.cfg.Timing.NameGrace()),
		roster.WithDefaultNamePrefix(s.cfg.Labels.DefaultTeamNamePrefix),
		roster.WithFilteredFlags(s.cfg.Display.FilteredSkaterFlags),
		roster.WithClock(s.now),
		roster.WithLogger(s.log.Named("roster")),
	)
	s.facts = derived.New(
		s.client.State(),
		derived.WithTTL(s.cfg.Timing.CacheTTL()),
		derived.WithClock(s.now),
		derived.WithLogger(s.log.Named("derived")),
	)
	s.engine = penaltybox.New(
		penaltybox.WithFouloutThreshold(s.cfg.Rules.FouloutPenaltyCount),
		penaltybox.WithWarningThresholds(s.cfg.Rules.WarningPenaltyCount5, s.cfg.Rules.WarningPenaltyCount6),
		penaltybox.WithFouloutCode(s.cfg.Penalties.FouloutCode),
		penaltybox.WithRemovedCode(s.cfg.Penalties.RemovedCode),
		penaltybox.WithFilteredCodes(s.cfg.Penalties.FilteredCodes),
		penaltybox.WithLabels(s.cfg.Labels.Expelled, s.cfg.Labels.Foulout, s.cfg.Labels.Removed),
	)
	s.machine = gameclock.New(
		gameclock.WithNumPeriods(s.cfg.Rules.NumPeriods),
		gameclock.WithLabels(gameclock.Labels{
			Official:       s.cfg.Labels.Official,
			Unofficial:     s.cfg.Labels.Unofficial,
			Overtime:       s.cfg.Labels.Overtime,
			PeriodPrefix:   s.cfg.Labels.PeriodPrefix,
			PreGame:        s.cfg.Labels.PreGame,
			PreFirstPeriod: s.cfg.Labels.PreFirstPeriod,
			Intermission:   s.cfg.Labels.Intermission,
		}),
	)
	s.builder = view.NewBuilder(
		s.store, s.engine, s.machine, s.facts, s.client.State(),
		view.WithLabels(s.cfg.Labels),
		view.WithBannerLogoPath(s.cfg.Display.BannerLogoPath),
		view.WithPenaltiesTitle(s.cfg.Display.PenaltiesTitle),
	)
	s.sched = render.New(
		render.WithFrameInterval(s.cfg.Timing.FrameInterval()),
		render.WithDebounceIntervals(s.cfg.Timing.Debounce(), s.cfg.Timing.HydrateDebounce()),
		render.WithLogger(s.log.Named("render")),
	)

	s.sched.Start(ctx)
	s.client.AutoRegister()
	s.regID = s.client.Register(feedPatterns, s.onDelta)
	s.client.Start(ctx)

	s.started = true
	s.log.Info(ctx, "overlay projector started",
		logger.String("feed", s.cfg.Feed.URL),
		logger.Int("teams", s.cfg.Rules.NumTeams),
	)
	return nil
}

// Stop halts the pipeline.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.log.Info(context.Background(), "stopping overlay projector...")
	if s.graceTimer != nil {
		s.graceTimer.Stop()
	}
	if s.hydrateTimer != nil {
		s.hydrateTimer.Stop()
	}
	s.client.Unregister(s.regID)
	s.client.Stop()
	s.sched.Stop()
	s.started = false
	s.log.Info(context.Background(), "overlay projector stopped")
}

// onConnState reacts to feed connection changes. A fresh connection replays
// the full snapshot, so the scheduler switches to the longer hydration
// debounce for the duration of the burst.
func (s *Service) onConnState(up bool) {
	if !up {
		return
	}
	s.sched.SetHydrating(true)
	s.mu.Lock()
	if s.hydrateTimer != nil {
		s.hydrateTimer.Stop()
	}
	s.hydrateTimer = time.AfterFunc(s.cfg.Timing.HydrationWindow(), func() {
		s.sched.SetHydrating(false)
		s.sched.Schedule(channelGame, s.rebuild)
	})
	s.mu.Unlock()
}

// onDelta is the single feed handler. It runs on the feed dispatch
// goroutine, which is the only writer of the aggregate store and the only
// caller of cache invalidation; ordering follows feed delivery.
func (s *Service) onDelta(key, value string) {
	m := keypath.Classify(key)

	switch m.Kind {
	case keypath.TeamField, keypath.SkaterField:
		if s.store.ApplyDelta(m, value) {
			s.sched.Debounce(teamChannel(m.Team), s.rebuild)
		}

	case keypath.PenaltyField:
		if s.store.ApplyDelta(m, value) {
			s.sched.Debounce(penaltyChannel(m.Team), s.rebuild)
		}

	case keypath.ExpulsionField:
		s.facts.InvalidateExpulsions()
		for n := 1; n <= s.store.NumTeams(); n++ {
			s.sched.Debounce(penaltyChannel(n), s.rebuild)
		}

	case keypath.ClockField:
		s.sched.Debounce(channelClock, s.rebuild)

	case keypath.GameField:
		if m.Field == "EventInfo" && (m.Qualifier == "Date" || m.Qualifier == "StartTime") {
			s.facts.InvalidateSchedule()
		}
		s.sched.Debounce(channelClock, s.rebuild)

	default:
		metrics.RecordDeltaIgnored()
		return
	}

	metrics.RecordDeltaApplied(m.Kind.String())
}

// rebuild recomputes the overlay model and publishes it. It always runs on
// the scheduler's frame goroutine.
func (s *Service) rebuild() {
	o := s.builder.Build(s.now())

	s.mu.Lock()
	s.current = o
	sinks := make([]Sink, len(s.sinks))
	copy(sinks, s.sinks)
	if o.NamePending {
		// A team is still nameless inside the grace window; render again
		// once it lapses so the generated default appears without a new
		// delta.
		if s.graceTimer != nil {
			s.graceTimer.Stop()
		}
		s.graceTimer = time.AfterFunc(s.store.NameGrace(), func() {
			s.sched.Schedule(channelGame, s.rebuild)
		})
	}
	s.mu.Unlock()

	for _, sink := range sinks {
		sink.Publish(o)
	}
}

// Overlay returns the most recently published overlay model.
func (s *Service) Overlay() view.Overlay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started": s.started,
	}
	if s.started {
		stats["rawStateKeys"] = s.client.State().Len()
		stats["teams"] = s.store.NumTeams()
		stats["lastRender"] = s.current.GeneratedAt
	}
	return stats
}

func teamChannel(n int) string {
	return fmt.Sprintf("team-%d", n)
}

func penaltyChannel(n int) string {
	return fmt.Sprintf("penalties-%d", n)
}
