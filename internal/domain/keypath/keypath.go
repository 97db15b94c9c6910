// Package keypath classifies scoreboard feed keys.
//
// The feed addresses every value with a dotted, parenthesized path such as
// "ScoreBoard.CurrentGame.Team(1).Skater(42).Penalty(3).Code". Classify turns
// one of those paths into a typed Match so the rest of the projector never
// touches pattern strings.
package keypath

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies which entity a feed key addresses.
type Kind int

// Key kinds, ordered roughly from most to least specific.
const (
	Unrecognized Kind = iota
	TeamField
	SkaterField
	PenaltyField
	ClockField
	ExpulsionField
	GameField
	SettingField
)

// String returns the kind name for logs and tests.
func (k Kind) String() string {
	switch k {
	case TeamField:
		return "team"
	case SkaterField:
		return "skater"
	case PenaltyField:
		return "penalty"
	case ClockField:
		return "clock"
	case ExpulsionField:
		return "expulsion"
	case GameField:
		return "game"
	case SettingField:
		return "setting"
	default:
		return "unrecognized"
	}
}

// Match is the classification result for a single feed key.
type Match struct {
	Kind Kind

	// Team is the team number extracted from Team(N), 0 when absent.
	Team int

	// SkaterID is the id extracted from Skater(...), empty when absent.
	SkaterID string

	// PenaltySlot is the numeric slot from Penalty(N), 0 when absent.
	PenaltySlot int

	// Field is the trailing field name, e.g. "Name", "Score", "Code",
	// "Running", "CurrentPeriodNumber".
	Field string

	// Qualifier carries the parenthesized argument of the trailing
	// component when one exists: the alternate-name id in
	// AlternateName(whiteboard), the clock name in Clock(Period).Time, the
	// color slot in Color(whiteboard.fg), the expulsion id, or the
	// Rule/EventInfo selector.
	Qualifier string
}

const (
	gamePrefix    = "ScoreBoard.CurrentGame."
	settingPrefix = "ScoreBoard.Settings."
)

var (
	teamRe      = regexp.MustCompile(`\.Team\((\d+)\)`)
	skaterRe    = regexp.MustCompile(`\.Skater\(([^)]+)\)`)
	penaltyRe   = regexp.MustCompile(`\.Penalty\((\d+)\)\.([A-Za-z]+)$`)
	clockRe     = regexp.MustCompile(`\.Clock\(([^)]+)\)\.([A-Za-z]+)$`)
	expulsionRe = regexp.MustCompile(`\.Expulsion\(([^)]+)\)(?:\.([A-Za-z]+))?$`)
	altNameRe   = regexp.MustCompile(`\.AlternateName\(([^)]+)\)$`)
	colorRe     = regexp.MustCompile(`\.Color\(([^)]+)\)$`)
	qualifiedRe = regexp.MustCompile(`\.([A-Za-z]+)\(([^)]+)\)$`)
	plainRe     = regexp.MustCompile(`\.([A-Za-z]+)$`)
)

// Classify maps a raw feed key to a Match. Keys that fit no known shape come
// back as Unrecognized; the feed schema is a superset of what the overlay
// consumes and unknown keys must never be treated as errors.
func Classify(key string) Match {
	m := Match{Kind: Unrecognized}

	if t := teamRe.FindStringSubmatch(key); t != nil {
		m.Team, _ = strconv.Atoi(t[1])
	}

	// Expulsions live directly under the game, not under a team.
	if e := expulsionRe.FindStringSubmatch(key); e != nil && strings.HasPrefix(key, gamePrefix) {
		m.Kind = ExpulsionField
		m.Qualifier = e[1]
		m.Field = e[2]
		return m
	}

	if s := skaterRe.FindStringSubmatch(key); s != nil {
		m.SkaterID = s[1]

		if p := penaltyRe.FindStringSubmatch(key); p != nil {
			m.Kind = PenaltyField
			m.PenaltySlot, _ = strconv.Atoi(p[1])
			m.Field = p[2]
			return m
		}

		// Pronoun sub-fields must not be mistaken for the skater name.
		if strings.Contains(key, "Pronoun") {
			return m
		}

		if f := plainRe.FindStringSubmatch(key); f != nil {
			m.Kind = SkaterField
			m.Field = f[1]
			return m
		}
		return m
	}

	if c := clockRe.FindStringSubmatch(key); c != nil {
		m.Kind = ClockField
		m.Qualifier = c[1]
		m.Field = c[2]
		return m
	}

	if m.Team > 0 {
		// Team-level fields. The Skater(...) branch above already returned,
		// so a skater's Name or Score can never be read as the team's.
		switch {
		case altNameRe.MatchString(key):
			a := altNameRe.FindStringSubmatch(key)
			m.Kind = TeamField
			m.Field = "AlternateName"
			m.Qualifier = a[1]
		case colorRe.MatchString(key):
			c := colorRe.FindStringSubmatch(key)
			m.Kind = TeamField
			m.Field = "Color"
			m.Qualifier = c[1]
		default:
			if f := plainRe.FindStringSubmatch(key); f != nil {
				m.Kind = TeamField
				m.Field = f[1]
			}
		}
		return m
	}

	if strings.HasPrefix(key, settingPrefix) {
		m.Kind = SettingField
		if q := qualifiedRe.FindStringSubmatch(key); q != nil {
			m.Field = q[1]
			m.Qualifier = q[2]
		} else if f := plainRe.FindStringSubmatch(key); f != nil {
			m.Field = f[1]
		}
		return m
	}

	if strings.HasPrefix(key, gamePrefix) {
		m.Kind = GameField
		if q := qualifiedRe.FindStringSubmatch(key); q != nil {
			m.Field = q[1]
			m.Qualifier = q[2]
		} else if f := plainRe.FindStringSubmatch(key); f != nil {
			m.Field = f[1]
		}
		return m
	}

	return m
}

// IsTeamName reports whether the match addresses the team's own display name,
// i.e. Team(N).Name with no skater in the path and not an AlternateName.
func (m Match) IsTeamName() bool {
	return m.Kind == TeamField && m.Field == "Name"
}

// IsTeamScore reports whether the match addresses the team score rather than
// a nested skater score field.
func (m Match) IsTeamScore() bool {
	return m.Kind == TeamField && m.Field == "Score"
}
