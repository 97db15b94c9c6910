package roster

import (
	"time"

	"github.com/rcrderby/crg-overlays/pkg/logger"
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithNumTeams sets how many teams the store tracks. Teams are created up
// front and never destroyed.
func WithNumTeams(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.numTeams = n
		}
	}
}

// WithNameGrace sets how long a team may sit nameless before the generated
// default name kicks in.
func WithNameGrace(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.nameGrace = d
		}
	}
}

// WithDefaultNamePrefix sets the prefix for generated team names.
func WithDefaultNamePrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.defaultNamePrefix = prefix
		}
	}
}

// WithFilteredFlags sets the skater flags that exclude a skater from display
// (bench staff, alternates, not-skating roles).
func WithFilteredFlags(flags []string) Option {
	return func(s *Store) {
		s.filteredFlags = make(map[string]struct{}, len(flags))
		for _, f := range flags {
			s.filteredFlags[f] = struct{}{}
		}
	}
}

// WithClock overrides the time source. Test hook for the name-grace logic.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}
