package simfeed_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/rcrderby/crg-overlays/internal/adapters/feed"
	"github.com/rcrderby/crg-overlays/internal/simfeed"
)

const gamePrefix = "ScoreBoard.CurrentGame."

func startSim(t *testing.T) (*simfeed.Server, string) {
	t.Helper()
	sim := simfeed.NewServer()
	mux := http.NewServeMux()
	sim.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return sim, "ws" + strings.TrimPrefix(srv.URL, "http") + "/WS/"
}

func waitForKey(t *testing.T, c feed.Client, key string) (string, bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if v, ok := c.State().Get(key); ok {
			return v, true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return c.State().Get(key)
}

func TestApply(t *testing.T) {
	Convey("Given a simulated scoreboard", t, func() {
		sim := simfeed.NewServer()

		Convey("Applying a batch grows the snapshot", func() {
			sim.Apply(map[string]any{
				gamePrefix + "Team(1).Name":  "Heroes",
				gamePrefix + "Team(1).Score": 12,
			})
			So(sim.SnapshotLen(), ShouldEqual, 2)
		})

		Convey("Nil values retract keys", func() {
			sim.Apply(map[string]any{gamePrefix + "Team(1).Name": "Heroes"})
			sim.Apply(map[string]any{gamePrefix + "Team(1).Name": nil})
			So(sim.SnapshotLen(), ShouldEqual, 0)
		})
	})
}

func TestEndToEnd(t *testing.T) {
	Convey("Given a feed client connected to the simulator", t, func() {
		sim, url := startSim(t)
		sim.Apply(map[string]any{
			gamePrefix + "Team(1).Name":        "Heroes",
			gamePrefix + "Rule(Period.Number)": "2",
		})

		client := feed.NewWSClient(url, feed.WithRetryInterval(50*time.Millisecond))
		client.AutoRegister()
		client.Register([]string{gamePrefix + "Team(*)"}, func(string, string) {})
		client.Start(t.Context())
		defer client.Stop()

		Convey("Registration replays the matching snapshot", func() {
			v, ok := waitForKey(t, client, gamePrefix+"Team(1).Name")
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, "Heroes")

			Convey("And non-matching snapshot keys are not replayed", func() {
				_, ok := client.State().Get(gamePrefix + "Rule(Period.Number)")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("Later batches stream to the connected client", func() {
			waitForKey(t, client, gamePrefix+"Team(1).Name")

			sim.Apply(map[string]any{gamePrefix + "Team(1).Score": 42})
			v, ok := waitForKey(t, client, gamePrefix+"Team(1).Score")
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, "42")
		})
	})
}

func TestGameSeed(t *testing.T) {
	Convey("Given a seeded game", t, func() {
		sim, _ := startSim(t)
		game := simfeed.NewGame(sim, simfeed.GameConfig{
			TeamNames:  [2]string{"Heroes", "Villains"},
			RosterSize: 5,
			Tick:       time.Hour,
		}, nil)

		go game.Run(t.Context())

		Convey("The snapshot fills with rules, teams, and rosters", func() {
			deadline := time.Now().Add(5 * time.Second)
			for sim.SnapshotLen() == 0 && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}
			So(sim.SnapshotLen(), ShouldBeGreaterThan, 10)
		})
	})
}
