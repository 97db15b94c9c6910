// Package roster builds per-team, per-skater records out of feed deltas.
//
// Records are created on the first field seen for an entity and filled in
// incrementally; the feed makes no ordering promise, so a skater's penalties
// may arrive before their number. Nothing is ever deleted: a skater that
// drops out of the upstream roster simply stops receiving updates.
package roster

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rcrderby/crg-overlays/internal/domain/keypath"
	"github.com/rcrderby/crg-overlays/pkg/logger"
)

// Default store configuration constants.
const (
	defaultNumTeams   = 2
	defaultNameGrace  = 500 * time.Millisecond
	defaultNamePrefix = "Team "
)

// Alternate-name qualifiers observed in the feed. Only the whiteboard one is
// honored; the operator variant is deprecated upstream.
const (
	altNameWhiteboard = "whiteboard"
)

// Color slots under Team(N).Color(whiteboard.*).
const (
	colorFg   = "whiteboard.fg"
	colorBg   = "whiteboard.bg"
	colorGlow = "whiteboard.glow"
)

// Penalty is one penalty slot under a skater.
type Penalty struct {
	Slot int
	Code string
	ID   string
}

// Colors carries a team's whiteboard color overrides.
type Colors struct {
	Fg   string
	Bg   string
	Glow string
}

// SkaterView is an immutable copy of a skater handed to readers.
type SkaterView struct {
	ID        string
	Number    string
	Name      string
	Flags     []string
	Penalties []Penalty
}

// HasFlag reports whether the skater carries the given flag.
func (s SkaterView) HasFlag(flag string) bool {
	for _, f := range s.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// TeamView is an immutable copy of a team handed to readers. Skaters holds
// only displayable skaters, sorted by raw roster-number string.
type TeamView struct {
	Number int
	// Name is the resolved display name; empty while nameless and inside
	// the grace window.
	Name string
	// DefaultPending is true while the name is empty only because the
	// grace window has not elapsed yet.
	DefaultPending bool
	Score          string
	LogoURL        string
	Colors         Colors
	TotalPenalties string
	Skaters        []SkaterView
}

type skater struct {
	id        string
	number    string
	name      string
	flags     map[string]struct{}
	penalties map[int]*Penalty
	slots     []int // first-seen order of penalty slots
}

type team struct {
	number    int
	name      string // upstream roster name
	altName   string // whiteboard override
	score     string
	logoURL   string
	colors    Colors
	totals    string
	skaters   map[string]*skater
	firstSeen time.Time // when the store started waiting for a name
}

// Store is the aggregate store for all teams and skaters.
type Store struct {
	mu    sync.RWMutex
	teams map[int]*team

	numTeams          int
	nameGrace         time.Duration
	defaultNamePrefix string
	filteredFlags     map[string]struct{}
	now               func() time.Time
	log               logger.Logger
}

// New creates a store with all teams pre-created.
func New(opts ...Option) *Store {
	s := &Store{
		numTeams:          defaultNumTeams,
		nameGrace:         defaultNameGrace,
		defaultNamePrefix: defaultNamePrefix,
		filteredFlags:     map[string]struct{}{},
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("roster")
	}

	s.teams = make(map[int]*team, s.numTeams)
	start := s.now()
	for n := 1; n <= s.numTeams; n++ {
		s.teams[n] = &team{
			number:    n,
			skaters:   make(map[string]*skater),
			firstSeen: start,
		}
	}
	return s
}

// ApplyDelta folds one classified feed delta into the store. It returns true
// when stored state changed; re-applying the same delta is a no-op.
func (s *Store) ApplyDelta(m keypath.Match, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.teams[m.Team]
	if !ok {
		// A team number outside the configured range; the feed schema is
		// wider than the overlay.
		return false
	}

	switch m.Kind {
	case keypath.TeamField:
		return s.applyTeamField(t, m, value)
	case keypath.SkaterField:
		return s.applySkaterField(t, m, value)
	case keypath.PenaltyField:
		return s.applyPenaltyField(t, m, value)
	default:
		return false
	}
}

func (s *Store) applyTeamField(t *team, m keypath.Match, value string) bool {
	switch m.Field {
	case "Name":
		return setField(&t.name, value)
	case "AlternateName":
		if m.Qualifier != altNameWhiteboard {
			return false
		}
		return setField(&t.altName, value)
	case "Score":
		return setField(&t.score, value)
	case "Logo":
		return setField(&t.logoURL, value)
	case "TotalPenalties":
		return setField(&t.totals, value)
	case "Color":
		switch m.Qualifier {
		case colorFg:
			return setField(&t.colors.Fg, value)
		case colorBg:
			return setField(&t.colors.Bg, value)
		case colorGlow:
			return setField(&t.colors.Glow, value)
		}
	}
	return false
}

func (s *Store) applySkaterField(t *team, m keypath.Match, value string) bool {
	sk := s.getOrCreate(t, m.SkaterID)
	switch m.Field {
	case "Name":
		return setField(&sk.name, value)
	case "RosterNumber":
		return setField(&sk.number, value)
	case "Flags":
		return sk.setFlags(value)
	}
	return false
}

func (s *Store) applyPenaltyField(t *team, m keypath.Match, value string) bool {
	sk := s.getOrCreate(t, m.SkaterID)
	p, ok := sk.penalties[m.PenaltySlot]
	if !ok {
		p = &Penalty{Slot: m.PenaltySlot}
		sk.penalties[m.PenaltySlot] = p
		sk.slots = append(sk.slots, m.PenaltySlot)
	}
	switch m.Field {
	case "Code":
		return setField(&p.Code, value)
	case "Id":
		return setField(&p.ID, value)
	}
	return false
}

// getOrCreate returns the skater record for id, creating an empty one on
// first sight. Caller holds the write lock.
func (s *Store) getOrCreate(t *team, id string) *skater {
	sk, ok := t.skaters[id]
	if !ok {
		sk = &skater{
			id:        id,
			flags:     map[string]struct{}{},
			penalties: map[int]*Penalty{},
		}
		t.skaters[id] = sk
	}
	return sk
}

func (sk *skater) setFlags(value string) bool {
	next := map[string]struct{}{}
	for _, f := range strings.Fields(value) {
		next[f] = struct{}{}
	}
	if len(next) == len(sk.flags) {
		same := true
		for f := range next {
			if _, ok := sk.flags[f]; !ok {
				same = false
				break
			}
		}
		if same {
			return false
		}
	}
	sk.flags = next
	return true
}

func setField(dst *string, value string) bool {
	if *dst == value {
		return false
	}
	*dst = value
	return true
}

// NumTeams returns how many teams the store tracks.
func (s *Store) NumTeams() int {
	return s.numTeams
}

// NameGrace returns the configured default-name grace window.
func (s *Store) NameGrace() time.Duration {
	return s.nameGrace
}

// Team returns an immutable view of team n, or false for an unknown number.
func (s *Store) Team(n int) (TeamView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.teams[n]
	if !ok {
		return TeamView{}, false
	}
	return s.viewOf(t), true
}

// Teams returns immutable views of all teams in number order.
func (s *Store) Teams() []TeamView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]TeamView, 0, s.numTeams)
	for n := 1; n <= s.numTeams; n++ {
		views = append(views, s.viewOf(s.teams[n]))
	}
	return views
}

func (s *Store) viewOf(t *team) TeamView {
	name, pending := s.resolveName(t)
	v := TeamView{
		Number:         t.number,
		Name:           name,
		DefaultPending: pending,
		Score:          t.score,
		LogoURL:        t.logoURL,
		Colors:         t.colors,
		TotalPenalties: t.totals,
	}

	for _, sk := range t.skaters {
		if !s.displayable(sk) {
			continue
		}
		v.Skaters = append(v.Skaters, sk.view())
	}
	// Display order is the raw roster-number string compared
	// lexicographically, so "10" sorts before "9". That is the published
	// policy, not an accident.
	sort.Slice(v.Skaters, func(i, j int) bool {
		if v.Skaters[i].Number != v.Skaters[j].Number {
			return v.Skaters[i].Number < v.Skaters[j].Number
		}
		return v.Skaters[i].Name < v.Skaters[j].Name
	})
	return v
}

// resolveName applies the name precedence: whiteboard override, then the
// upstream roster name, then a generated default once the grace window has
// elapsed. While the window is open the name stays empty so a placeholder
// never flashes ahead of real data.
func (s *Store) resolveName(t *team) (name string, defaultPending bool) {
	if t.altName != "" {
		return t.altName, false
	}
	if t.name != "" {
		return t.name, false
	}
	if s.now().Sub(t.firstSeen) >= s.nameGrace {
		return fmt.Sprintf("%s%d", s.defaultNamePrefix, t.number), false
	}
	return "", true
}

func (s *Store) displayable(sk *skater) bool {
	if sk.number == "" || sk.name == "" {
		return false
	}
	for f := range sk.flags {
		if _, filtered := s.filteredFlags[f]; filtered {
			return false
		}
	}
	return true
}

func (sk *skater) view() SkaterView {
	v := SkaterView{
		ID:     sk.id,
		Number: sk.number,
		Name:   sk.name,
	}
	for f := range sk.flags {
		v.Flags = append(v.Flags, f)
	}
	sort.Strings(v.Flags)
	for _, slot := range sk.slots {
		v.Penalties = append(v.Penalties, *sk.penalties[slot])
	}
	return v
}
