// Package gameclock decides which clock the overlay shows and what the
// period/intermission label says.
//
// Nothing here is stored: every evaluation is a pure function of the current
// clock and period fields, re-run on each relevant delta. The branch order is
// a fixed precedence; see Evaluate.
package gameclock

import (
	"fmt"
)

// Default label and rule constants.
const (
	defaultNumPeriods = 2

	defaultOfficialLabel       = "Final Score"
	defaultUnofficialLabel     = "Unofficial Score"
	defaultOvertimeLabel       = "Overtime"
	defaultPeriodPrefix        = "Period"
	defaultPreGameLabel        = "Time To Derby"
	defaultPreFirstPeriodLabel = "Period 1"
	defaultIntermissionLabel   = "Intermission"

	// placeholder renders where a clock has no usable time. A non-breaking
	// space keeps the layout stable without showing a bogus value.
	placeholder = "\u00a0"

	msPerSecond      = 1000
	secondsPerMinute = 60
)

// State is the derived display state of the game clock.
type State int

// States, in no particular order; precedence lives in Evaluate.
const (
	Hidden State = iota
	PreGameCountdown
	PreGamePeriodPreview
	IntermissionBetweenPeriods
	InPeriod
	PostGameUnofficial
	PostGameOfficial
	Overtime
)

// String returns the state name for logs and tests.
func (s State) String() string {
	switch s {
	case PreGameCountdown:
		return "pregame-countdown"
	case PreGamePeriodPreview:
		return "pregame-period-preview"
	case IntermissionBetweenPeriods:
		return "intermission"
	case InPeriod:
		return "in-period"
	case PostGameUnofficial:
		return "postgame-unofficial"
	case PostGameOfficial:
		return "postgame-official"
	case Overtime:
		return "overtime"
	default:
		return "hidden"
	}
}

// ClockInput is one upstream clock's relevant fields. Present distinguishes
// "time is 0" from "the feed has no time for this clock".
type ClockInput struct {
	Running bool
	TimeMS  int64
	Present bool
}

// Inputs are the raw fields an evaluation runs over. Malformed upstream
// numerics must be folded to zero before they get here.
type Inputs struct {
	CurrentPeriod int
	// NumPeriods overrides the configured rule when > 0.
	NumPeriods             int
	OfficialScore          bool
	InOvertime             bool
	Intermission           ClockInput
	Period                 ClockInput
	StartTimeMissingOrPast bool
}

// Evaluation is the displayable outcome of one pass.
type Evaluation struct {
	State     State
	Label     string
	ClockText string
	ShowClock bool
}

// Labels configures the per-state label strings. Blank fields fall back to
// built-in defaults; a clock-state label is never rendered empty.
type Labels struct {
	Official       string
	Unofficial     string
	Overtime       string
	PeriodPrefix   string
	PreGame        string
	PreFirstPeriod string
	Intermission   string
}

// Option applies a configuration option to the Machine.
type Option func(*Machine)

// WithNumPeriods sets the default number of periods.
func WithNumPeriods(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.numPeriods = n
		}
	}
}

// WithLabels sets the label strings.
func WithLabels(l Labels) Option {
	return func(m *Machine) { m.labels = l }
}

// Machine evaluates clock/period inputs into a display state.
type Machine struct {
	numPeriods int
	labels     Labels
}

// New creates a machine with default rules and labels.
func New(opts ...Option) *Machine {
	m := &Machine{numPeriods: defaultNumPeriods}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Evaluate derives the display state. Precedence, highest first: official
// score, game over, overtime, in-period, pre-game, and the between-period
// intermission as the fallback.
func (m *Machine) Evaluate(in Inputs) Evaluation {
	numPeriods := m.numPeriods
	if in.NumPeriods > 0 {
		numPeriods = in.NumPeriods
	}

	gameOver := in.CurrentPeriod > numPeriods ||
		(in.CurrentPeriod >= numPeriods && (in.Intermission.Running || intermissionTimeLeft(in)))

	switch {
	case in.OfficialScore:
		return Evaluation{
			State:     PostGameOfficial,
			Label:     orDefault(m.labels.Official, defaultOfficialLabel),
			ClockText: placeholder,
			ShowClock: false,
		}

	case gameOver:
		return Evaluation{
			State:     PostGameUnofficial,
			Label:     orDefault(m.labels.Unofficial, defaultUnofficialLabel),
			ClockText: clockText(in.Intermission),
			ShowClock: in.Intermission.Present,
		}

	case in.InOvertime:
		return Evaluation{
			State:     Overtime,
			Label:     orDefault(m.labels.Overtime, defaultOvertimeLabel),
			ClockText: clockText(in.Period),
			ShowClock: true,
		}

	case in.CurrentPeriod > 0 && in.CurrentPeriod <= numPeriods && !in.Intermission.Running:
		prefix := orDefault(m.labels.PeriodPrefix, defaultPeriodPrefix)
		return Evaluation{
			State:     InPeriod,
			Label:     fmt.Sprintf("%s %d", prefix, in.CurrentPeriod),
			ClockText: clockText(in.Period),
			ShowClock: true,
		}

	case in.CurrentPeriod == 0:
		if in.StartTimeMissingOrPast {
			// No usable schedule: show the first period preview rather
			// than an empty countdown.
			return Evaluation{
				State:     PreGamePeriodPreview,
				Label:     orDefault(m.labels.PreFirstPeriod, defaultPreFirstPeriodLabel),
				ClockText: clockText(in.Period),
				ShowClock: in.Period.Present,
			}
		}
		if !in.Intermission.Present {
			return Evaluation{
				State:     Hidden,
				Label:     orDefault(m.labels.PreGame, defaultPreGameLabel),
				ClockText: placeholder,
				ShowClock: false,
			}
		}
		return Evaluation{
			State:     PreGameCountdown,
			Label:     orDefault(m.labels.PreGame, defaultPreGameLabel),
			ClockText: clockText(in.Intermission),
			ShowClock: true,
		}

	default:
		return Evaluation{
			State:     IntermissionBetweenPeriods,
			Label:     orDefault(m.labels.Intermission, defaultIntermissionLabel),
			ClockText: clockText(in.Intermission),
			ShowClock: in.Intermission.Present,
		}
	}
}

func intermissionTimeLeft(in Inputs) bool {
	return in.Intermission.Present && in.Intermission.TimeMS > 0 && !in.Period.Running
}

func clockText(c ClockInput) string {
	if !c.Present {
		return placeholder
	}
	return FormatTime(c.TimeMS)
}

// FormatTime renders milliseconds as "m:ss" with whole-second resolution and
// no hours component; derby periods are short. Negative input renders the
// placeholder, never a malformed string.
func FormatTime(ms int64) string {
	if ms < 0 {
		return placeholder
	}
	total := ms / msPerSecond
	return fmt.Sprintf("%d:%02d", total/secondsPerMinute, total%secondsPerMinute)
}

// Placeholder returns the fixed text rendered where no clock time exists.
func Placeholder() string {
	return placeholder
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
