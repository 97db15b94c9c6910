package view

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/rcrderby/crg-overlays/internal/adapters/state"
	"github.com/rcrderby/crg-overlays/internal/config"
	"github.com/rcrderby/crg-overlays/internal/domain/derived"
	"github.com/rcrderby/crg-overlays/internal/domain/gameclock"
	"github.com/rcrderby/crg-overlays/internal/domain/keypath"
	"github.com/rcrderby/crg-overlays/internal/domain/penaltybox"
	"github.com/rcrderby/crg-overlays/internal/domain/roster"
)

const gamePrefix = "ScoreBoard.CurrentGame."

// fixture wires a builder over a populated snapshot and roster store.
type fixture struct {
	snap  *state.Store
	store *roster.Store
	b     *Builder
}

func newFixture(opts ...Option) *fixture {
	snap := state.NewStore()
	store := roster.New(
		roster.WithFilteredFlags([]string{"ALT", "B", "BA"}),
		roster.WithClock(func() time.Time { return time.Unix(0, 0) }),
	)
	facts := derived.New(snap)
	opts = append([]Option{WithLabels(config.New().Labels)}, opts...)
	b := NewBuilder(store, penaltybox.New(), gameclock.New(), facts, snap, opts...)
	return &fixture{snap: snap, store: store, b: b}
}

// apply routes a raw key through classification into the right store, the
// same way the projector does.
func (f *fixture) apply(key, value string) {
	f.snap.Set(key, value)
	m := keypath.Classify(key)
	switch m.Kind {
	case keypath.TeamField, keypath.SkaterField, keypath.PenaltyField:
		f.store.ApplyDelta(m, value)
	}
}

func TestBuildTeams(t *testing.T) {
	Convey("Given two populated teams", t, func() {
		f := newFixture()
		f.apply(gamePrefix+"Team(1).Name", "Heroes")
		f.apply(gamePrefix+"Team(1).Score", "42")
		f.apply(gamePrefix+"Team(2).Name", "Villains")

		f.apply(gamePrefix+"Team(1).Skater(a).Name", "Blockzilla")
		f.apply(gamePrefix+"Team(1).Skater(a).RosterNumber", "404")
		f.apply(gamePrefix+"Team(1).Skater(a).Flags", "C")
		f.apply(gamePrefix+"Team(1).Skater(a).Penalty(1).Code", "B")
		f.apply(gamePrefix+"Team(1).Skater(b).Name", "Slamantha")
		f.apply(gamePrefix+"Team(1).Skater(b).RosterNumber", "17")

		o := f.b.Build(time.Now())

		Convey("Teams come out in number order with scores and rosters", func() {
			So(len(o.Teams), ShouldEqual, 2)
			So(o.Teams[0].Name, ShouldEqual, "Heroes")
			So(o.Teams[0].Score, ShouldEqual, "42")
			So(o.Teams[1].Name, ShouldEqual, "Villains")
			So(o.Teams[1].Score, ShouldEqual, "0")
		})

		Convey("Roster and penalty rows align by index", func() {
			rows := o.Teams[0].Roster
			pens := o.Teams[0].Penalties
			So(len(rows), ShouldEqual, 2)
			So(len(pens), ShouldEqual, 2)
			So(rows[0].Number, ShouldEqual, "17")
			So(rows[1].Number, ShouldEqual, "404")
			So(pens[1].Codes, ShouldEqual, "B")
			So(pens[1].DisplayValue, ShouldEqual, "1")
			So(pens[1].StatusClass, ShouldEqual, "normal")
		})

		Convey("Captain markers come from the flags", func() {
			So(o.Teams[0].Roster[1].CaptainMarker, ShouldEqual, "C")
			So(o.Teams[0].Roster[0].CaptainMarker, ShouldEqual, "")
		})

		Convey("Missing colors fall back to white on black", func() {
			So(o.Teams[0].Colors.Fg, ShouldEqual, "white")
			So(o.Teams[0].Colors.Bg, ShouldEqual, "black")
			So(o.Teams[0].Colors.Glow, ShouldEqual, "white")
		})
	})
}

func TestBuildLogos(t *testing.T) {
	Convey("Given one team with a logo and one without", t, func() {
		f := newFixture()
		f.apply(gamePrefix+"Team(1).Name", "Heroes")
		f.apply(gamePrefix+"Team(1).Logo", "/logos/heroes.png")
		f.apply(gamePrefix+"Team(2).Name", "Villains")

		Convey("Neither logo shows", func() {
			o := f.b.Build(time.Now())
			So(o.Teams[0].LogoURL, ShouldEqual, "")
			So(o.Teams[1].LogoURL, ShouldEqual, "")
		})

		Convey("Both show once both exist", func() {
			f.apply(gamePrefix+"Team(2).Logo", "/logos/villains.png")
			o := f.b.Build(time.Now())
			So(o.Teams[0].LogoURL, ShouldEqual, "/logos/heroes.png")
			So(o.Teams[1].LogoURL, ShouldEqual, "/logos/villains.png")
		})
	})
}

func TestBuildClock(t *testing.T) {
	Convey("Given a running period", t, func() {
		f := newFixture()
		f.apply(gamePrefix+"CurrentPeriodNumber", "1")
		f.apply(gamePrefix+"Clock(Period).Running", "true")
		f.apply(gamePrefix+"Clock(Period).Time", "754000")

		o := f.b.Build(time.Now())

		Convey("The clock section reflects the period", func() {
			So(o.PeriodLabel, ShouldEqual, "Period 1")
			So(o.ClockText, ShouldEqual, "12:34")
			So(o.ShowClock, ShouldBeTrue)
			So(o.ClockState, ShouldEqual, "in-period")
		})
	})

	Convey("Given malformed numerics", t, func() {
		f := newFixture()
		f.apply(gamePrefix+"CurrentPeriodNumber", "soon")
		f.apply(gamePrefix+"Clock(Period).Time", "???")

		Convey("The build degrades instead of failing", func() {
			So(func() { f.b.Build(time.Now()) }, ShouldNotPanic)
		})
	})
}

func TestBuildTimeout(t *testing.T) {
	Convey("Given timeout state", t, func() {
		f := newFixture()

		Convey("No running timeout clock means no indicator", func() {
			o := f.b.Build(time.Now())
			So(o.Timeout.Active, ShouldBeFalse)
		})

		Convey("An official review labels as review", func() {
			f.apply(gamePrefix+"Clock(Timeout).Running", "true")
			f.apply(gamePrefix+"OfficialReview", "true")
			o := f.b.Build(time.Now())
			So(o.Timeout.Active, ShouldBeTrue)
			So(o.Timeout.Label, ShouldEqual, "Official Review")
		})

		Convey("An official owner labels as official timeout", func() {
			f.apply(gamePrefix+"Clock(Timeout).Running", "true")
			f.apply(gamePrefix+"TimeoutOwner", "O")
			o := f.b.Build(time.Now())
			So(o.Timeout.Label, ShouldEqual, "Official Timeout")
		})

		Convey("A team owner labels as team timeout with the side marker", func() {
			f.apply(gamePrefix+"Clock(Timeout).Running", "true")
			f.apply(gamePrefix+"TimeoutOwner", "Team_2")
			o := f.b.Build(time.Now())
			So(o.Timeout.Label, ShouldEqual, "Team Timeout")
			So(o.Timeout.Owner, ShouldEqual, "_2")
		})

		Convey("No owner labels as a plain timeout", func() {
			f.apply(gamePrefix+"Clock(Timeout).Running", "true")
			o := f.b.Build(time.Now())
			So(o.Timeout.Label, ShouldEqual, "Timeout")
			So(o.Timeout.Owner, ShouldEqual, "")
		})
	})
}

func TestBuildGameInfo(t *testing.T) {
	Convey("Given game-level info", t, func() {
		f := newFixture(WithBannerLogoPath("/banner.png"), WithPenaltiesTitle("PENALTIES"))
		f.apply(gamePrefix+"EventInfo(Tournament)", "Spring Invitational")

		o := f.b.Build(time.Now())

		Convey("Tournament and presentation pass-throughs land on the model", func() {
			So(o.Tournament, ShouldEqual, "Spring Invitational")
			So(o.BannerLogoPath, ShouldEqual, "/banner.png")
			So(o.PenaltiesTitle, ShouldEqual, "PENALTIES")
		})
	})
}
