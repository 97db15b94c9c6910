// Package feed connects to the scoreboard's WebSocket key/value push feed.
//
// The scoreboard addresses all state with path-like keys and pushes deltas
// for any registered wildcard pattern, e.g. "ScoreBoard.CurrentGame.Team(*)".
// The client keeps a raw snapshot mirror, serializes every delta through one
// bounded queue with a single dispatch goroutine, and fans deltas out to the
// handlers whose pattern matches. That single goroutine is the only writer
// of the snapshot and the downstream aggregate store.
package feed

import (
	"context"
	"regexp"
	"strings"

	"github.com/rcrderby/crg-overlays/internal/adapters/state"
)

// Handler receives one key/value delta. Handlers run on the dispatch
// goroutine, in registration order, in feed delivery order.
type Handler func(key, value string)

// Client is the subscription surface the projector builds on.
type Client interface {
	// Start launches the connection retry loop and the dispatch loop.
	// Feed absence is not an error; the client polls until the
	// scoreboard is reachable and reconnects after drops.
	Start(ctx context.Context)

	// Stop closes the connection and halts both loops.
	Stop()

	// AutoRegister makes the client re-send all registrations on every
	// (re)connect, so a scoreboard restart rehydrates the overlay.
	AutoRegister()

	// Register subscribes handler to all keys matching any of the
	// wildcard patterns. It returns a registration id for Unregister.
	// Registering before the connection is up is fine; patterns are
	// sent as soon as the scoreboard accepts a connection.
	Register(patterns []string, h Handler) string

	// Unregister drops a registration by id.
	Unregister(id string)

	// State returns the synchronously readable raw snapshot mirror.
	State() state.Snapshot
}

// PatternRegexp compiles a feed wildcard pattern into a key matcher. The
// "(*)" wildcard matches any single parenthesized id, and a pattern matches
// a key when the key extends it at a path boundary. Both ends of the
// protocol share this: the client filters dispatch with it and the
// simulator filters what it pushes to each registration.
func PatternRegexp(pattern string) *regexp.Regexp {
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, regexp.QuoteMeta("(*)"), `\([^)]+\)`)
	return regexp.MustCompile(`^` + escaped + `($|[.(])`)
}

// registration binds a set of compiled patterns to one handler.
type registration struct {
	id       string
	patterns []string
	res      []*regexp.Regexp
	handler  Handler
}

func (r *registration) matches(key string) bool {
	for _, re := range r.res {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}
