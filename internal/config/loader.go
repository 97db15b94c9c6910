package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if OVERLAY_CONFIG is set
//  3. env (prefix OVERLAY_, "__" for nesting: OVERLAY_RULES__NUM_PERIODS)
//
// The result is validated before it is returned; the engine must never run
// on a partial configuration.
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("OVERLAY_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	envProvider := env.Provider("OVERLAY_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "OVERLAY_"))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine must not run with. Silently
// wrong thresholds or blank labels are worse than refusing to start.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Feed.URL == "":
		return fmt.Errorf("%w: feed.url must not be empty", ErrInvalidConfig)
	case c.Feed.RetryIntervalMS <= 0:
		return fmt.Errorf("%w: feed.retry_interval_ms must be positive", ErrInvalidConfig)
	case c.Rules.FouloutPenaltyCount <= 0:
		return fmt.Errorf("%w: rules.foulout_penalty_count must be positive", ErrInvalidConfig)
	case c.Rules.NumPeriods <= 0:
		return fmt.Errorf("%w: rules.num_periods must be positive", ErrInvalidConfig)
	case c.Rules.NumTeams <= 0:
		return fmt.Errorf("%w: rules.num_teams must be positive", ErrInvalidConfig)
	case c.Rules.WarningPenaltyCount5 <= 0 || c.Rules.WarningPenaltyCount6 <= 0:
		return fmt.Errorf("%w: rules.warning_penalty_count5/6 must be positive", ErrInvalidConfig)
	case c.Rules.WarningPenaltyCount5 > c.Rules.WarningPenaltyCount6:
		return fmt.Errorf("%w: warning thresholds must be ordered", ErrInvalidConfig)
	case c.Labels.Expelled == "" || c.Labels.Foulout == "":
		return fmt.Errorf("%w: labels.expelled and labels.foulout must not be empty", ErrInvalidConfig)
	case c.Labels.DefaultTeamNamePrefix == "":
		return fmt.Errorf("%w: labels.default_team_name_prefix must not be empty", ErrInvalidConfig)
	case c.Timing.NameGraceMS < 0:
		return fmt.Errorf("%w: timing.name_grace_ms must not be negative", ErrInvalidConfig)
	case c.Timing.FrameIntervalMS <= 0:
		return fmt.Errorf("%w: timing.frame_interval_ms must be positive", ErrInvalidConfig)
	case c.Timing.DebounceMS <= 0 || c.Timing.HydrateDebounceMS <= 0:
		return fmt.Errorf("%w: timing debounce intervals must be positive", ErrInvalidConfig)
	case c.Timing.CacheTTLMS <= 0:
		return fmt.Errorf("%w: timing.cache_ttl_ms must be positive", ErrInvalidConfig)
	}
	return nil
}
