package simfeed

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rcrderby/crg-overlays/pkg/logger"
)

// Game script constants.
const (
	keyPrefix        = "ScoreBoard.CurrentGame."
	periodDurationMS = 30 * 60 * 1000
	intermissionMS   = 15 * 60 * 1000
	pregameMS        = 10 * 60 * 1000
	numPeriods       = 2

	scoreChancePct   = 25
	penaltyChancePct = 8
	maxJamPoints     = 4
	penaltySlots     = 9
)

// Penalty codes a simulated official might issue.
var penaltyCodes = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "L", "M", "N", "P", "X"}

var skaterNames = []string{
	"Hurricane Harriet", "Blockzilla", "Slamantha", "Jamzilla Jones",
	"Rolla Derby", "Crash Corrigan", "Pivot Python", "Whip It Wendy",
	"Bruise Lee", "Elbow Eliza", "Stopwatch Sally", "Track Attack Tess",
	"Mad Maxine", "Dodge Charger", "Ref Wrecker",
}

// randIntn returns a random int in [0, n) using crypto/rand.
func randIntn(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// GameConfig controls the scripted game.
type GameConfig struct {
	TeamNames  [2]string
	RosterSize int
	Tick       time.Duration
	Tournament string
}

// skaterState tracks one simulated skater.
type skaterState struct {
	id        string
	number    string
	name      string
	penalties int
}

// teamState tracks one simulated team.
type teamState struct {
	number  int
	name    string
	score   int
	skaters []*skaterState
}

// Game drives a scripted bout through the server: pregame countdown, two
// periods with scores and penalties, intermission, and a final score.
type Game struct {
	srv   *Server
	cfg   GameConfig
	log   logger.Logger
	teams [2]*teamState

	period  int
	clockMS int64
}

// NewGame creates a scripted game over the server.
func NewGame(srv *Server, cfg GameConfig, log logger.Logger) *Game {
	if cfg.RosterSize <= 0 {
		cfg.RosterSize = 12
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.TeamNames[0] == "" {
		cfg.TeamNames[0] = "Hometown Heroes"
	}
	if cfg.TeamNames[1] == "" {
		cfg.TeamNames[1] = "Visiting Villains"
	}
	if log == nil {
		log = logger.Get().Named("simgame")
	}
	return &Game{srv: srv, cfg: cfg, log: log}
}

// Run plays the whole scripted bout. It returns when the game is over or the
// context is cancelled.
func (g *Game) Run(ctx context.Context) {
	g.seed()

	if !g.countdown(ctx, pregameMS/int64(g.cfg.Tick/time.Millisecond)) {
		return
	}

	for p := 1; p <= numPeriods; p++ {
		g.startPeriod(p)
		if !g.playPeriod(ctx) {
			return
		}
		if p < numPeriods {
			g.startIntermission()
			if !g.countdown(ctx, 20) {
				return
			}
		}
	}

	g.finish(ctx)
}

// seed publishes the initial snapshot: rules, event info, rosters, colors.
func (g *Game) seed() {
	batch := map[string]any{
		keyPrefix + "Rule(Period.Number)":  strconv.Itoa(numPeriods),
		keyPrefix + "CurrentPeriodNumber":  0,
		keyPrefix + "InOvertime":           false,
		keyPrefix + "OfficialScore":        false,
		keyPrefix + "EventInfo(Tournament)": g.cfg.Tournament,
		keyPrefix + "EventInfo(Date)":      time.Now().Format("2006-01-02"),
		keyPrefix + "EventInfo(StartTime)": time.Now().Add(time.Duration(pregameMS) * time.Millisecond).Format("15:04"),
		keyPrefix + "Clock(Intermission).Running": true,
		keyPrefix + "Clock(Intermission).Time":    pregameMS,
	}

	colors := [2][2]string{{"#ffffff", "#a00000"}, {"#000000", "#00a0a0"}}
	for i := range g.teams {
		t := &teamState{number: i + 1, name: g.cfg.TeamNames[i]}
		g.teams[i] = t

		tp := fmt.Sprintf("%sTeam(%d).", keyPrefix, t.number)
		batch[tp+"Name"] = t.name
		batch[tp+"AlternateName(whiteboard)"] = t.name
		batch[tp+"Score"] = 0
		batch[tp+"TotalPenalties"] = 0
		batch[tp+"Color(whiteboard.fg)"] = colors[i][0]
		batch[tp+"Color(whiteboard.bg)"] = colors[i][1]

		for n := 0; n < g.cfg.RosterSize; n++ {
			sk := &skaterState{
				id:     uuid.NewString(),
				number: strconv.Itoa(100 + randIntn(900)),
				name:   skaterNames[randIntn(len(skaterNames))],
			}
			t.skaters = append(t.skaters, sk)

			sp := tp + "Skater(" + sk.id + ")."
			batch[sp+"Name"] = sk.name
			batch[sp+"RosterNumber"] = sk.number
			switch n {
			case 0:
				batch[sp+"Flags"] = "C"
			case 1:
				batch[sp+"Flags"] = "A"
			}
		}
	}

	g.srv.Apply(batch)
	g.log.Info(context.Background(), "game seeded",
		logger.String("home", g.teams[0].name),
		logger.String("away", g.teams[1].name),
	)
}

// countdown runs the intermission clock down over the given number of ticks.
func (g *Game) countdown(ctx context.Context, ticks int64) bool {
	remaining := g.get(keyPrefix + "Clock(Intermission).Time")
	step := remaining / ticks
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(g.cfg.Tick):
		}
		remaining -= step
		if remaining < 0 {
			remaining = 0
		}
		g.srv.Apply(map[string]any{
			keyPrefix + "Clock(Intermission).Time": remaining,
		})
	}
	return true
}

func (g *Game) startPeriod(p int) {
	g.period = p
	g.clockMS = periodDurationMS
	g.srv.Apply(map[string]any{
		keyPrefix + "CurrentPeriodNumber":         p,
		keyPrefix + "Clock(Intermission).Running": false,
		keyPrefix + "Clock(Period).Running":       true,
		keyPrefix + "Clock(Period).Time":          g.clockMS,
	})
	g.log.Info(context.Background(), "period started", logger.Int("period", p))
}

// playPeriod ticks the period clock down, scoring and penalizing at random.
func (g *Game) playPeriod(ctx context.Context) bool {
	tickMS := int64(g.cfg.Tick / time.Millisecond) * 60 // game time runs fast
	for g.clockMS > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(g.cfg.Tick):
		}

		g.clockMS -= tickMS
		if g.clockMS < 0 {
			g.clockMS = 0
		}
		batch := map[string]any{
			keyPrefix + "Clock(Period).Time": g.clockMS,
		}

		if randIntn(100) < scoreChancePct {
			g.score(batch)
		}
		if randIntn(100) < penaltyChancePct {
			g.penalize(batch)
		}

		g.srv.Apply(batch)
	}

	g.srv.Apply(map[string]any{
		keyPrefix + "Clock(Period).Running": false,
	})
	return true
}

func (g *Game) score(batch map[string]any) {
	t := g.teams[randIntn(2)]
	t.score += 1 + randIntn(maxJamPoints)
	batch[fmt.Sprintf("%sTeam(%d).Score", keyPrefix, t.number)] = t.score
}

func (g *Game) penalize(batch map[string]any) {
	t := g.teams[randIntn(2)]
	sk := t.skaters[randIntn(len(t.skaters))]
	if sk.penalties >= penaltySlots {
		return
	}
	sk.penalties++

	sp := fmt.Sprintf("%sTeam(%d).Skater(%s).Penalty(%d).", keyPrefix, t.number, sk.id, sk.penalties)
	batch[sp+"Code"] = penaltyCodes[randIntn(len(penaltyCodes))]
	batch[sp+"Id"] = uuid.NewString()

	total := 0
	for _, s := range t.skaters {
		total += s.penalties
	}
	batch[fmt.Sprintf("%sTeam(%d).TotalPenalties", keyPrefix, t.number)] = total
}

func (g *Game) startIntermission() {
	g.srv.Apply(map[string]any{
		keyPrefix + "Clock(Intermission).Running": true,
		keyPrefix + "Clock(Intermission).Time":    intermissionMS,
	})
	g.log.Info(context.Background(), "intermission started")
}

// finish publishes the unofficial then official final score.
func (g *Game) finish(ctx context.Context) {
	g.srv.Apply(map[string]any{
		keyPrefix + "Clock(Intermission).Running": true,
		keyPrefix + "Clock(Intermission).Time":    intermissionMS,
	})
	g.log.Info(ctx, "game over; score unofficial",
		logger.Int("home", g.teams[0].score),
		logger.Int("away", g.teams[1].score),
	)

	select {
	case <-ctx.Done():
		return
	case <-time.After(10 * g.cfg.Tick):
	}
	g.srv.Apply(map[string]any{
		keyPrefix + "OfficialScore": true,
	})
	g.log.Info(ctx, "score official")
}

func (g *Game) get(key string) int64 {
	g.srv.mu.Lock()
	defer g.srv.mu.Unlock()
	switch v := g.srv.snapshot[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
