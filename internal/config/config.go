// Package config defines overlay configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file, and env vars.
// - The engine never runs on a partial configuration: Validate rejects any
//   config whose required sections are missing or out of range.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"time"
)

// Config contains the full overlay configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8347".
	Addr string `koanf:"addr"`

	Feed      Feed      `koanf:"feed"`
	Labels    Labels    `koanf:"labels"`
	Rules     Rules     `koanf:"rules"`
	Penalties Penalties `koanf:"penalties"`
	Timing    Timing    `koanf:"timing"`
	Display   Display   `koanf:"display"`
}

// Feed configures the scoreboard WebSocket connection.
type Feed struct {
	// URL is the scoreboard WebSocket endpoint, e.g.
	// "ws://localhost:8000/WS/".
	URL string `koanf:"url"`

	// RetryIntervalMS is the poll interval while the scoreboard is
	// unreachable. Connection absence is a retry state, not an error.
	RetryIntervalMS int `koanf:"retry_interval_ms"`

	// HandshakeTimeoutMS bounds a single connect attempt.
	HandshakeTimeoutMS int `koanf:"handshake_timeout_ms"`
}

// Labels holds every display string the overlay renders.
type Labels struct {
	// CaptainFlag and AltCaptainFlag are the markers shown next to
	// captain and alternate-captain roster rows.
	CaptainFlag    string `koanf:"captain_flag"`
	AltCaptainFlag string `koanf:"alt_captain_flag"`

	// DefaultTeamNamePrefix prefixes generated team names ("Team 1").
	DefaultTeamNamePrefix string `koanf:"default_team_name_prefix"`

	// PeriodPrefix prefixes the in-period label ("Period 2").
	PeriodPrefix string `koanf:"period_prefix"`

	// Expelled, Foulout and Removed replace the penalty count for skaters
	// out of the game.
	Expelled string `koanf:"expelled"`
	Foulout  string `koanf:"foulout"`
	Removed  string `koanf:"removed"`

	// PreFirstPeriod shows before P1 when the scheduled start is missing
	// or already past.
	PreFirstPeriod string `koanf:"pre_first_period"`

	// PreGame shows while counting down to a future start.
	PreGame string `koanf:"pre_game"`

	Intermission string `koanf:"intermission"`
	Official     string `koanf:"official"`
	Unofficial   string `koanf:"unofficial"`
	Overtime     string `koanf:"overtime"`

	Timeout      TimeoutLabels      `koanf:"timeout"`
	TimeoutOwner TimeoutOwnerLabels `koanf:"timeout_owner"`
}

// TimeoutLabels names the timeout variants.
type TimeoutLabels struct {
	Untyped  string `koanf:"untyped"`
	Official string `koanf:"official"`
	Team     string `koanf:"team"`
	Review   string `koanf:"review"`
}

// TimeoutOwnerLabels are the short owner indicators next to a timeout label.
type TimeoutOwnerLabels struct {
	Official string `koanf:"official"`
	Team1    string `koanf:"team1"`
	Team2    string `koanf:"team2"`
}

// Rules holds the numeric game rules the projector evaluates against.
type Rules struct {
	// FouloutPenaltyCount is the displayable-penalty count that fouls a
	// skater out.
	FouloutPenaltyCount int `koanf:"foulout_penalty_count"`

	// NumPeriods and NumTeams override the standard game shape.
	NumPeriods int `koanf:"num_periods"`
	NumTeams   int `koanf:"num_teams"`

	// WarningPenaltyCount5/6 are the exact counts that trigger the two
	// warning colors.
	WarningPenaltyCount5 int `koanf:"warning_penalty_count5"`
	WarningPenaltyCount6 int `koanf:"warning_penalty_count6"`
}

// Penalties holds the sentinel penalty codes.
type Penalties struct {
	// FouloutCode fouls a skater out on sight.
	FouloutCode string `koanf:"foulout_code"`

	// RemovedCode marks removal by the head referee. Empty disables the
	// Removed status.
	RemovedCode string `koanf:"removed_code"`

	// FilteredCodes are excluded from the displayed code list and count.
	FilteredCodes []string `koanf:"filtered_codes"`
}

// Timing holds the scheduler and cache intervals.
type Timing struct {
	// NameGraceMS delays the generated default team name so a placeholder
	// never flashes ahead of real data.
	NameGraceMS int `koanf:"name_grace_ms"`

	// FrameIntervalMS is the render batch cadence.
	FrameIntervalMS int `koanf:"frame_interval_ms"`

	// DebounceMS and HydrateDebounceMS are the per-channel debounce
	// intervals in steady state and during the initial snapshot burst.
	DebounceMS        int `koanf:"debounce_ms"`
	HydrateDebounceMS int `koanf:"hydrate_debounce_ms"`

	// HydrationWindowMS is how long after connect the projector stays in
	// hydration mode.
	HydrationWindowMS int `koanf:"hydration_window_ms"`

	// CacheTTLMS is the derived-value cache expiry.
	CacheTTLMS int `koanf:"cache_ttl_ms"`
}

// Display holds presentation pass-through settings.
type Display struct {
	// BannerLogoPath is an optional custom logo shown in the game info
	// section. Empty disables it.
	BannerLogoPath string `koanf:"banner_logo_path"`

	// FilteredSkaterFlags excludes bench and not-skating roles from the
	// roster display.
	FilteredSkaterFlags []string `koanf:"filtered_skater_flags"`

	// PenaltiesTitle is the penalties panel heading.
	PenaltiesTitle string `koanf:"penalties_title"`
}

// New creates a Config with the stock WFTDA-flavored defaults.
func New() *Config {
	return &Config{
		LogLevel: "info",
		Addr:     ":8347",
		Feed: Feed{
			URL:                "ws://localhost:8000/WS/",
			RetryIntervalMS:    1000,
			HandshakeTimeoutMS: 5000,
		},
		Labels: Labels{
			CaptainFlag:           "C",
			AltCaptainFlag:        "A",
			DefaultTeamNamePrefix: "Team ",
			PeriodPrefix:          "Period",
			Expelled:              "EXP",
			Foulout:               "FO",
			Removed:               "RE",
			PreFirstPeriod:        "Period 1",
			PreGame:               "Time To Derby",
			Intermission:          "Intermission",
			Official:              "Final Score",
			Unofficial:            "Unofficial Score",
			Overtime:              "Overtime",
			Timeout: TimeoutLabels{
				Untyped:  "Timeout",
				Official: "Official Timeout",
				Team:     "Team Timeout",
				Review:   "Official Review",
			},
			TimeoutOwner: TimeoutOwnerLabels{
				Official: "O",
				Team1:    "_1",
				Team2:    "_2",
			},
		},
		Rules: Rules{
			FouloutPenaltyCount:  7,
			NumPeriods:           2,
			NumTeams:             2,
			WarningPenaltyCount5: 5,
			WarningPenaltyCount6: 6,
		},
		Penalties: Penalties{
			FouloutCode:   "FO",
			RemovedCode:   "RE",
			FilteredCodes: []string{"FO", "RE"},
		},
		Timing: Timing{
			NameGraceMS:       500,
			FrameIntervalMS:   16,
			DebounceMS:        50,
			HydrateDebounceMS: 300,
			HydrationWindowMS: 2000,
			CacheTTLMS:        30000,
		},
		Display: Display{
			FilteredSkaterFlags: []string{"ALT", "B", "BA"},
			PenaltiesTitle:      "PENALTIES",
		},
	}
}

// NameGrace returns the default-name grace window as a duration.
func (t Timing) NameGrace() time.Duration { return time.Duration(t.NameGraceMS) * time.Millisecond }

// FrameInterval returns the render cadence as a duration.
func (t Timing) FrameInterval() time.Duration {
	return time.Duration(t.FrameIntervalMS) * time.Millisecond
}

// Debounce returns the steady-state debounce interval as a duration.
func (t Timing) Debounce() time.Duration { return time.Duration(t.DebounceMS) * time.Millisecond }

// HydrateDebounce returns the hydration debounce interval as a duration.
func (t Timing) HydrateDebounce() time.Duration {
	return time.Duration(t.HydrateDebounceMS) * time.Millisecond
}

// HydrationWindow returns the hydration window as a duration.
func (t Timing) HydrationWindow() time.Duration {
	return time.Duration(t.HydrationWindowMS) * time.Millisecond
}

// CacheTTL returns the derived-cache TTL as a duration.
func (t Timing) CacheTTL() time.Duration { return time.Duration(t.CacheTTLMS) * time.Millisecond }

// RetryInterval returns the feed retry interval as a duration.
func (f Feed) RetryInterval() time.Duration {
	return time.Duration(f.RetryIntervalMS) * time.Millisecond
}

// HandshakeTimeout returns the feed handshake timeout as a duration.
func (f Feed) HandshakeTimeout() time.Duration {
	return time.Duration(f.HandshakeTimeoutMS) * time.Millisecond
}
