package derived

import (
	"context"
	"regexp"
	"sort"
	"time"

	"github.com/rcrderby/crg-overlays/internal/adapters/state"
	"github.com/rcrderby/crg-overlays/pkg/logger"
	"github.com/rcrderby/crg-overlays/pkg/metrics"
)

// Feed keys the schedule fact is computed from.
const (
	dateKey      = "ScoreBoard.CurrentGame.EventInfo(Date)"
	startTimeKey = "ScoreBoard.CurrentGame.EventInfo(StartTime)"

	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

var expulsionIDRe = regexp.MustCompile(`^ScoreBoard\.CurrentGame\.Expulsion\(([^)]+)\)\.Id$`)

// expulsionSet is the cached expulsion index: a sorted id list for stable
// iteration plus a set for membership checks.
type expulsionSet struct {
	ids []string
	set map[string]struct{}
}

// Option applies a configuration option to Facts.
type Option func(*Facts)

// WithTTL sets the cache TTL for both derived facts.
func WithTTL(ttl time.Duration) Option {
	return func(f *Facts) {
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

// WithClock overrides the time source used for TTL expiry and the
// start-time comparison.
func WithClock(now func() time.Time) Option {
	return func(f *Facts) {
		if now != nil {
			f.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(f *Facts) {
		if log != nil {
			f.log = log
		}
	}
}

// Facts exposes the two full-scan derived values the renderers need.
type Facts struct {
	snap state.Snapshot
	ttl  time.Duration
	now  func() time.Time
	log  logger.Logger

	expulsions *Cache[expulsionSet]
	startPast  *Cache[bool]
}

// New creates the derived facts over a raw snapshot.
func New(snap state.Snapshot, opts ...Option) *Facts {
	f := &Facts{
		snap: snap,
		ttl:  defaultTTL,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logger.Get().Named("derived")
	}

	f.expulsions = NewCache(f.ttl, f.scanExpulsions)
	f.expulsions.setClock(f.now)
	f.startPast = NewCache(f.ttl, f.computeStartPast)
	f.startPast.setClock(f.now)
	return f
}

// ExpulsionIDs returns the sorted set of penalty ids flagged as expulsions.
func (f *Facts) ExpulsionIDs() []string {
	return f.expulsions.Get().ids
}

// IsExpulsion reports whether penaltyID belongs to an expulsion.
func (f *Facts) IsExpulsion(penaltyID string) bool {
	if penaltyID == "" {
		return false
	}
	_, ok := f.expulsions.Get().set[penaltyID]
	return ok
}

// StartTimeMissingOrPast reports whether the scheduled start is absent,
// unparsable, or already behind us. It fails open: only a well-formed start
// strictly in the future returns false, so missing schedule data can never
// block the game clock from showing.
func (f *Facts) StartTimeMissingOrPast() bool {
	return f.startPast.Get()
}

// InvalidateExpulsions must be called after any Expulsion(*) delta.
func (f *Facts) InvalidateExpulsions() {
	f.expulsions.Invalidate()
	metrics.RecordCacheInvalidation("expulsions")
}

// InvalidateSchedule must be called after any EventInfo date/time delta.
func (f *Facts) InvalidateSchedule() {
	f.startPast.Invalidate()
	metrics.RecordCacheInvalidation("schedule")
}

func (f *Facts) scanExpulsions() expulsionSet {
	es := expulsionSet{set: make(map[string]struct{})}
	f.snap.Scan(func(key, value string) bool {
		if m := expulsionIDRe.FindStringSubmatch(key); m != nil {
			id := value
			if id == "" {
				id = m[1]
			}
			if _, dup := es.set[id]; !dup {
				es.set[id] = struct{}{}
				es.ids = append(es.ids, id)
			}
		}
		return true
	})
	sort.Strings(es.ids)
	metrics.RecordCacheRebuild("expulsions")
	return es
}

func (f *Facts) computeStartPast() bool {
	date, okDate := f.snap.Get(dateKey)
	start, okStart := f.snap.Get(startTimeKey)
	if !okDate || !okStart || date == "" || start == "" {
		return true
	}

	at, err := time.ParseInLocation(dateTimeLayout, date+" "+start, time.Local)
	if err != nil {
		// Also accept a bare date with no start time on it.
		if _, derr := time.ParseInLocation(dateLayout, date, time.Local); derr != nil {
			f.log.Warn(context.Background(), "unparsable start date/time; treating as missing",
				logger.String("date", date),
				logger.String("start", start),
			)
		} else {
			f.log.Warn(context.Background(), "unparsable start time; treating as missing",
				logger.String("start", start),
			)
		}
		return true
	}

	metrics.RecordCacheRebuild("schedule")
	return !at.After(f.now())
}
