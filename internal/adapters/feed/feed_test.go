package feed

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPatternRegexp(t *testing.T) {
	Convey("Given feed wildcard patterns", t, func() {
		Convey("A (*) wildcard matches any parenthesized id", func() {
			re := PatternRegexp("ScoreBoard.CurrentGame.Team(*)")
			So(re.MatchString("ScoreBoard.CurrentGame.Team(1).Name"), ShouldBeTrue)
			So(re.MatchString("ScoreBoard.CurrentGame.Team(2).Skater(abc).Penalty(3).Code"), ShouldBeTrue)
			So(re.MatchString("ScoreBoard.CurrentGame.TeamKind"), ShouldBeFalse)
			So(re.MatchString("ScoreBoard.CurrentGame.Clock(Period).Time"), ShouldBeFalse)
		})

		Convey("A literal pattern matches itself and its extensions", func() {
			re := PatternRegexp("ScoreBoard.CurrentGame.CurrentPeriodNumber")
			So(re.MatchString("ScoreBoard.CurrentGame.CurrentPeriodNumber"), ShouldBeTrue)
			So(re.MatchString("ScoreBoard.CurrentGame.CurrentPeriodNumberX"), ShouldBeFalse)
		})

		Convey("Extensions only count at a path boundary", func() {
			re := PatternRegexp("ScoreBoard.CurrentGame.EventInfo")
			So(re.MatchString("ScoreBoard.CurrentGame.EventInfo(Date)"), ShouldBeTrue)
			So(re.MatchString("ScoreBoard.CurrentGame.EventInfoFoo"), ShouldBeFalse)
		})
	})
}

func TestRegistrationMatches(t *testing.T) {
	Convey("Given a registration with several patterns", t, func() {
		reg := &registration{
			id:       "r1",
			patterns: []string{"ScoreBoard.CurrentGame.Team(*)", "ScoreBoard.CurrentGame.Clock(*)"},
		}
		for _, p := range reg.patterns {
			reg.res = append(reg.res, PatternRegexp(p))
		}

		Convey("A key matching any pattern matches the registration once", func() {
			So(reg.matches("ScoreBoard.CurrentGame.Team(1).Score"), ShouldBeTrue)
			So(reg.matches("ScoreBoard.CurrentGame.Clock(Period).Running"), ShouldBeTrue)
			So(reg.matches("ScoreBoard.Settings.Setting(X)"), ShouldBeFalse)
		})
	})
}

func TestStringify(t *testing.T) {
	Convey("Given inbound JSON scalar values", t, func() {
		So(stringify(nil), ShouldEqual, "")
		So(stringify("Heroes"), ShouldEqual, "Heroes")
		So(stringify(true), ShouldEqual, "true")
		So(stringify(false), ShouldEqual, "false")
		So(stringify(float64(42)), ShouldEqual, "42")
		So(stringify(float64(-3)), ShouldEqual, "-3")
		So(stringify(float64(1.5)), ShouldEqual, "1.5")
	})
}
