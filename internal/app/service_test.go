package app

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/rcrderby/crg-overlays/internal/adapters/feed"
	"github.com/rcrderby/crg-overlays/internal/adapters/state"
	"github.com/rcrderby/crg-overlays/internal/config"
	"github.com/rcrderby/crg-overlays/internal/view"
)

const gamePrefix = "ScoreBoard.CurrentGame."

// fakeFeed is an in-process feed.Client. Push mirrors a delta into the
// snapshot and dispatches it to matching registrations, exactly like the
// real dispatch loop.
type fakeFeed struct {
	mu    sync.Mutex
	store *state.Store
	regs  map[string]struct {
		patterns []string
		handler  feed.Handler
	}
	nextID int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		store: state.NewStore(),
		regs: map[string]struct {
			patterns []string
			handler  feed.Handler
		}{},
	}
}

func (f *fakeFeed) Start(context.Context) {}
func (f *fakeFeed) Stop()                 {}
func (f *fakeFeed) AutoRegister()         {}

func (f *fakeFeed) Register(patterns []string, h feed.Handler) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := string(rune('a' + f.nextID))
	f.regs[id] = struct {
		patterns []string
		handler  feed.Handler
	}{patterns, h}
	return id
}

func (f *fakeFeed) Unregister(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.regs, id)
}

func (f *fakeFeed) State() state.Snapshot { return f.store }

func (f *fakeFeed) Push(key, value string) {
	if !f.store.Set(key, value) {
		return
	}
	f.mu.Lock()
	handlers := make([]feed.Handler, 0, len(f.regs))
	for _, reg := range f.regs {
		for _, p := range reg.patterns {
			if feed.PatternRegexp(p).MatchString(key) {
				handlers = append(handlers, reg.handler)
				break
			}
		}
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(key, value)
	}
}

// recordingSink captures every published overlay.
type recordingSink struct {
	mu   sync.Mutex
	last view.Overlay
	n    int
}

func (r *recordingSink) Publish(o view.Overlay) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = o
	r.n++
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.Timing.DebounceMS = 10
	cfg.Timing.FrameIntervalMS = 5
	cfg.Timing.NameGraceMS = 50
	return cfg
}

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestServiceProjection(t *testing.T) {
	Convey("Given a started service on a fake feed", t, func() {
		fake := newFakeFeed()
		sink := &recordingSink{}
		svc := New(testConfig(), WithFeedClient(fake))
		svc.AddSink(sink)

		So(svc.Start(t.Context()), ShouldBeNil)
		defer svc.Stop()

		Convey("Team deltas project into the published overlay", func() {
			fake.Push(gamePrefix+"Team(1).Name", "Heroes")
			fake.Push(gamePrefix+"Team(1).Score", "42")

			ok := waitFor(t, func() bool {
				o := svc.Overlay()
				return len(o.Teams) == 2 && o.Teams[0].Name == "Heroes"
			})
			So(ok, ShouldBeTrue)
			So(svc.Overlay().Teams[0].Score, ShouldEqual, "42")
			So(sink.count(), ShouldBeGreaterThan, 0)
		})

		Convey("A delta burst coalesces into few renders", func() {
			for i := 0; i < 50; i++ {
				fake.Push(gamePrefix+"Team(1).Score", string(rune('0'+i%10)))
			}
			waitFor(t, func() bool { return sink.count() > 0 })
			So(sink.count(), ShouldBeLessThan, 50)
		})

		Convey("Clock deltas project through the state machine", func() {
			fake.Push(gamePrefix+"CurrentPeriodNumber", "1")
			fake.Push(gamePrefix+"Clock(Period).Running", "true")
			fake.Push(gamePrefix+"Clock(Period).Time", "120000")

			ok := waitFor(t, func() bool {
				o := svc.Overlay()
				return o.ClockState == "in-period"
			})
			So(ok, ShouldBeTrue)
			So(svc.Overlay().PeriodLabel, ShouldEqual, "Period 1")
			So(svc.Overlay().ClockText, ShouldEqual, "2:00")
		})

		Convey("Expulsion deltas invalidate the cache and reclassify", func() {
			fake.Push(gamePrefix+"Team(1).Skater(a).Name", "Blockzilla")
			fake.Push(gamePrefix+"Team(1).Skater(a).RosterNumber", "404")
			fake.Push(gamePrefix+"Team(1).Skater(a).Penalty(1).Code", "G")
			fake.Push(gamePrefix+"Team(1).Skater(a).Penalty(1).Id", "pen-9")

			ok := waitFor(t, func() bool {
				o := svc.Overlay()
				return len(o.Teams) == 2 && len(o.Teams[0].Penalties) == 1
			})
			So(ok, ShouldBeTrue)

			fake.Push(gamePrefix+"Expulsion(pen-9).Id", "pen-9")
			ok = waitFor(t, func() bool {
				o := svc.Overlay()
				return len(o.Teams[0].Penalties) == 1 &&
					o.Teams[0].Penalties[0].DisplayValue == "EXP"
			})
			So(ok, ShouldBeTrue)
		})

		Convey("Unrecognized keys change nothing", func() {
			before := svc.Overlay().GeneratedAt
			fake.Push("ScoreBoard.Version(release)", "v2025.1")
			time.Sleep(100 * time.Millisecond)
			So(svc.Overlay().GeneratedAt, ShouldEqual, before)
		})
	})
}

func TestServiceNameGrace(t *testing.T) {
	Convey("Given a service whose teams never get names", t, func() {
		fake := newFakeFeed()
		svc := New(testConfig(), WithFeedClient(fake))
		So(svc.Start(t.Context()), ShouldBeNil)
		defer svc.Stop()

		Convey("A render inside the window schedules a follow-up that fills the default", func() {
			fake.Push(gamePrefix+"Team(1).Score", "0")

			ok := waitFor(t, func() bool {
				o := svc.Overlay()
				return len(o.Teams) == 2 && o.Teams[0].Name == "Team 1"
			})
			So(ok, ShouldBeTrue)
		})
	})
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a service", t, func() {
		fake := newFakeFeed()
		svc := New(testConfig(), WithFeedClient(fake))

		Convey("Start is idempotent", func() {
			So(svc.Start(t.Context()), ShouldBeNil)
			So(svc.Start(t.Context()), ShouldBeNil)
			svc.Stop()
		})

		Convey("Stop before Start is a no-op", func() {
			svc.Stop()
		})

		Convey("Stats report the pipeline state", func() {
			So(svc.Start(t.Context()), ShouldBeNil)
			defer svc.Stop()

			stats := svc.GetStats()
			So(stats["started"], ShouldBeTrue)
			So(stats["teams"], ShouldEqual, 2)
		})
	})
}
