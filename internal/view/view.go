// Package view assembles the display-ready overlay model.
//
// Everything the presentation layer shows is a field here: computed strings
// and class tags only, no raw feed keys and no domain objects. The builder
// reads the aggregate store, the penalty engine, the clock machine, and the
// raw snapshot's game-level fields, and produces one immutable Overlay per
// render pass.
package view

import (
	"strconv"
	"strings"
	"time"

	"github.com/rcrderby/crg-overlays/internal/adapters/state"
	"github.com/rcrderby/crg-overlays/internal/config"
	"github.com/rcrderby/crg-overlays/internal/domain/derived"
	"github.com/rcrderby/crg-overlays/internal/domain/gameclock"
	"github.com/rcrderby/crg-overlays/internal/domain/penaltybox"
	"github.com/rcrderby/crg-overlays/internal/domain/roster"
)

// Game-level feed keys read directly by the builder.
const (
	keyCurrentPeriod      = "ScoreBoard.CurrentGame.CurrentPeriodNumber"
	keyInOvertime         = "ScoreBoard.CurrentGame.InOvertime"
	keyOfficialScore      = "ScoreBoard.CurrentGame.OfficialScore"
	keyOfficialReview     = "ScoreBoard.CurrentGame.OfficialReview"
	keyTimeoutOwner       = "ScoreBoard.CurrentGame.TimeoutOwner"
	keyRuleNumPeriods     = "ScoreBoard.CurrentGame.Rule(Period.Number)"
	keyTournament         = "ScoreBoard.CurrentGame.EventInfo(Tournament)"
	keyPeriodRunning      = "ScoreBoard.CurrentGame.Clock(Period).Running"
	keyPeriodTime         = "ScoreBoard.CurrentGame.Clock(Period).Time"
	keyIntermissionRun    = "ScoreBoard.CurrentGame.Clock(Intermission).Running"
	keyIntermissionTime   = "ScoreBoard.CurrentGame.Clock(Intermission).Time"
	keyTimeoutRunning     = "ScoreBoard.CurrentGame.Clock(Timeout).Running"
	keyTimeoutTime        = "ScoreBoard.CurrentGame.Clock(Timeout).Time"
	skaterFlagCaptain     = "C"
	skaterFlagAltCaptain  = "A"
	defaultForegroundHex  = "white"
	defaultBackgroundHex  = "black"
)

// RosterRow is one line of the roster panel.
type RosterRow struct {
	Number        string `json:"number"`
	Name          string `json:"name"`
	CaptainMarker string `json:"captain_marker,omitempty"`
}

// PenaltyRow is one line of the penalties panel, aligned with the roster.
type PenaltyRow struct {
	Number       string `json:"number"`
	Codes        string `json:"codes"`
	DisplayValue string `json:"display_value"`
	StatusClass  string `json:"status_class"`
}

// Colors carries CSS-variable-equivalent team colors, with fallbacks already
// applied.
type Colors struct {
	Fg   string `json:"fg"`
	Bg   string `json:"bg"`
	Glow string `json:"glow,omitempty"`
}

// Team is one team's display state.
type Team struct {
	Number         int          `json:"number"`
	Name           string       `json:"name"`
	Score          string       `json:"score"`
	LogoURL        string       `json:"logo_url,omitempty"`
	Colors         Colors       `json:"colors"`
	TotalPenalties string       `json:"total_penalties"`
	Roster         []RosterRow  `json:"roster"`
	Penalties      []PenaltyRow `json:"penalties"`
}

// Timeout is the supplemental timeout indicator.
type Timeout struct {
	Active bool   `json:"active"`
	Label  string `json:"label,omitempty"`
	Owner  string `json:"owner,omitempty"`
}

// Overlay is the complete display model for one render pass.
type Overlay struct {
	Teams          []Team    `json:"teams"`
	ClockText      string    `json:"clock_text"`
	ShowClock      bool      `json:"show_clock"`
	PeriodLabel    string    `json:"period_label"`
	ClockState     string    `json:"clock_state"`
	Timeout        Timeout   `json:"timeout"`
	Tournament     string    `json:"tournament,omitempty"`
	PenaltiesTitle string    `json:"penalties_title,omitempty"`
	BannerLogoPath string    `json:"banner_logo_path,omitempty"`
	// NamePending is true while some team is still inside the default-name
	// grace window; the projector schedules a follow-up render when it
	// lapses.
	NamePending bool      `json:"-"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithLabels sets the label strings used for markers and timeouts.
func WithLabels(l config.Labels) Option {
	return func(b *Builder) { b.labels = l }
}

// WithBannerLogoPath passes the optional custom banner logo through.
func WithBannerLogoPath(path string) Option {
	return func(b *Builder) { b.bannerLogoPath = path }
}

// WithPenaltiesTitle sets the penalties panel heading.
func WithPenaltiesTitle(title string) Option {
	return func(b *Builder) {
		if title != "" {
			b.penaltiesTitle = title
		}
	}
}

// Builder assembles Overlay models from the projection state.
type Builder struct {
	store  *roster.Store
	engine *penaltybox.Engine
	clock  *gameclock.Machine
	facts  *derived.Facts
	snap   state.Snapshot

	labels         config.Labels
	bannerLogoPath string
	penaltiesTitle string
}

// NewBuilder wires a builder over the projection components.
func NewBuilder(store *roster.Store, engine *penaltybox.Engine, clock *gameclock.Machine, facts *derived.Facts, snap state.Snapshot, opts ...Option) *Builder {
	b := &Builder{
		store:  store,
		engine: engine,
		clock:  clock,
		facts:  facts,
		snap:   snap,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build computes the full overlay model.
func (b *Builder) Build(now time.Time) Overlay {
	teams := b.store.Teams()

	bothLogos := len(teams) > 0
	for _, t := range teams {
		if t.LogoURL == "" {
			bothLogos = false
			break
		}
	}

	o := Overlay{
		Tournament:     b.get(keyTournament),
		PenaltiesTitle: b.penaltiesTitle,
		BannerLogoPath: b.bannerLogoPath,
		GeneratedAt:    now,
	}

	for _, t := range teams {
		o.NamePending = o.NamePending || t.DefaultPending
		o.Teams = append(o.Teams, b.buildTeam(t, bothLogos))
	}

	eval := b.clock.Evaluate(b.clockInputs())
	o.ClockText = eval.ClockText
	o.ShowClock = eval.ShowClock
	o.PeriodLabel = eval.Label
	o.ClockState = eval.State.String()
	o.Timeout = b.buildTimeout()

	return o
}

func (b *Builder) buildTeam(t roster.TeamView, showLogo bool) Team {
	team := Team{
		Number:         t.Number,
		Name:           t.Name,
		Score:          orZero(t.Score),
		Colors:         applyColorFallbacks(t.Colors),
		TotalPenalties: orZero(t.TotalPenalties),
	}
	// Logos show only when every team has one; a lone logo unbalances the
	// layout.
	if showLogo {
		team.LogoURL = t.LogoURL
	}

	for _, sk := range t.Skaters {
		team.Roster = append(team.Roster, RosterRow{
			Number:        sk.Number,
			Name:          sk.Name,
			CaptainMarker: b.captainMarker(sk),
		})

		r := b.engine.Classify(sk, b.facts)
		team.Penalties = append(team.Penalties, PenaltyRow{
			Number:       sk.Number,
			Codes:        strings.Join(r.DisplayCodes, " "),
			DisplayValue: r.DisplayValue,
			StatusClass:  r.Status.String(),
		})
	}
	return team
}

func (b *Builder) captainMarker(sk roster.SkaterView) string {
	switch {
	case sk.HasFlag(skaterFlagCaptain):
		return b.labels.CaptainFlag
	case sk.HasFlag(skaterFlagAltCaptain):
		return b.labels.AltCaptainFlag
	default:
		return ""
	}
}

func (b *Builder) clockInputs() gameclock.Inputs {
	return gameclock.Inputs{
		CurrentPeriod:          atoiSafe(b.get(keyCurrentPeriod)),
		NumPeriods:             atoiSafe(b.get(keyRuleNumPeriods)),
		OfficialScore:          b.get(keyOfficialScore) == "true",
		InOvertime:             b.get(keyInOvertime) == "true",
		Intermission:           b.clockInput(keyIntermissionRun, keyIntermissionTime),
		Period:                 b.clockInput(keyPeriodRunning, keyPeriodTime),
		StartTimeMissingOrPast: b.facts.StartTimeMissingOrPast(),
	}
}

func (b *Builder) clockInput(runningKey, timeKey string) gameclock.ClockInput {
	t, present := b.snap.Get(timeKey)
	return gameclock.ClockInput{
		Running: b.get(runningKey) == "true",
		TimeMS:  parseMSSafe(t),
		Present: present,
	}
}

func (b *Builder) buildTimeout() Timeout {
	if b.get(keyTimeoutRunning) != "true" {
		return Timeout{}
	}

	to := Timeout{Active: true}
	owner := b.get(keyTimeoutOwner)
	switch {
	case b.get(keyOfficialReview) == "true":
		to.Label = b.labels.Timeout.Review
	case owner == b.labels.TimeoutOwner.Official:
		to.Label = b.labels.Timeout.Official
	case owner != "":
		to.Label = b.labels.Timeout.Team
		if strings.Contains(owner, "1") {
			to.Owner = b.labels.TimeoutOwner.Team1
		} else if strings.Contains(owner, "2") {
			to.Owner = b.labels.TimeoutOwner.Team2
		}
	default:
		to.Label = b.labels.Timeout.Untyped
	}
	return to
}

func (b *Builder) get(key string) string {
	v, _ := b.snap.Get(key)
	return v
}

func applyColorFallbacks(c roster.Colors) Colors {
	out := Colors{Fg: c.Fg, Bg: c.Bg, Glow: c.Glow}
	if out.Fg == "" || out.Bg == "" {
		out.Fg = defaultForegroundHex
		out.Bg = defaultBackgroundHex
	}
	if out.Glow == "" {
		out.Glow = out.Fg
	}
	return out
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// atoiSafe folds malformed numerics to zero; the feed occasionally carries
// blanks where numbers belong and rendering must degrade, not crash.
func atoiSafe(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func parseMSSafe(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
