// Package penaltybox classifies a skater's penalty record for display.
//
// Given the skater's raw penalty list and the game-wide expulsion index it
// decides what the penalty column shows: a count, or one of the removal
// labels (expelled, removed by the head referee, fouled out), plus a status
// tag the presentation layer turns into a CSS class.
package penaltybox

import (
	"strconv"

	"github.com/rcrderby/crg-overlays/internal/domain/roster"
)

// Default rule constants, matching WFTDA play.
const (
	defaultFouloutThreshold = 7
	defaultWarning5         = 5
	defaultWarning6         = 6
	defaultFouloutCode      = "FO"
	defaultRemovedCode      = "RE"
	defaultExpelledLabel    = "EXP"
	defaultFouloutLabel     = "FO"
	defaultRemovedLabel     = "RE"
)

// Status is the skater's penalty standing. Exactly one applies.
type Status int

// Statuses in increasing severity.
const (
	Normal Status = iota
	Warning5
	Warning6
	FouledOut
	Expelled
	Removed
)

// String returns the CSS-class form of the status.
func (s Status) String() string {
	switch s {
	case Warning5:
		return "warning-5"
	case Warning6:
		return "warning-6"
	case FouledOut:
		return "foulout"
	case Expelled:
		return "expelled"
	case Removed:
		return "removed"
	default:
		return "normal"
	}
}

// Result is the classification of one skater.
type Result struct {
	// DisplayCodes is the penalty-code list to show, with filtered codes
	// and expulsion penalties removed.
	DisplayCodes []string

	// DisplayCount is len(DisplayCodes): the filtered, displayable count.
	DisplayCount int

	// RawCount is the unfiltered penalty count. Thresholds here evaluate
	// DisplayCount; RawCount is kept available because upstream revisions
	// disagree on which count drives the warnings.
	RawCount int

	Status Status

	// DisplayValue is what the count cell shows: the numeric DisplayCount
	// for skaters still playing, or the configured removal label.
	DisplayValue string
}

// ExpulsionChecker answers whether a penalty id is an expulsion. Implemented
// by the derived-facts cache.
type ExpulsionChecker interface {
	IsExpulsion(penaltyID string) bool
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithFouloutThreshold sets the displayable-penalty count that fouls a
// skater out.
func WithFouloutThreshold(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.fouloutThreshold = n
		}
	}
}

// WithWarningThresholds sets the exact counts that trigger the two warning
// tags.
func WithWarningThresholds(w5, w6 int) Option {
	return func(e *Engine) {
		if w5 > 0 {
			e.warning5 = w5
		}
		if w6 > 0 {
			e.warning6 = w6
		}
	}
}

// WithFouloutCode sets the sentinel code that fouls a skater out on sight.
func WithFouloutCode(code string) Option {
	return func(e *Engine) { e.fouloutCode = code }
}

// WithRemovedCode sets the sentinel code for removal by the head referee.
// An empty code disables the Removed status.
func WithRemovedCode(code string) Option {
	return func(e *Engine) { e.removedCode = code }
}

// WithFilteredCodes sets the codes excluded from the displayed list and the
// displayable count.
func WithFilteredCodes(codes []string) Option {
	return func(e *Engine) {
		e.filteredCodes = make(map[string]struct{}, len(codes))
		for _, c := range codes {
			e.filteredCodes[c] = struct{}{}
		}
	}
}

// WithLabels sets the display labels for the three removal states.
func WithLabels(expelled, foulout, removed string) Option {
	return func(e *Engine) {
		if expelled != "" {
			e.expelledLabel = expelled
		}
		if foulout != "" {
			e.fouloutLabel = foulout
		}
		if removed != "" {
			e.removedLabel = removed
		}
	}
}

// Engine classifies skater penalty records against configured rules.
type Engine struct {
	fouloutThreshold int
	warning5         int
	warning6         int
	fouloutCode      string
	removedCode      string
	filteredCodes    map[string]struct{}
	expelledLabel    string
	fouloutLabel     string
	removedLabel     string
}

// New creates an engine with WFTDA defaults.
func New(opts ...Option) *Engine {
	e := &Engine{
		fouloutThreshold: defaultFouloutThreshold,
		warning5:         defaultWarning5,
		warning6:         defaultWarning6,
		fouloutCode:      defaultFouloutCode,
		removedCode:      defaultRemovedCode,
		filteredCodes: map[string]struct{}{
			defaultFouloutCode: {},
			defaultRemovedCode: {},
		},
		expelledLabel: defaultExpelledLabel,
		fouloutLabel:  defaultFouloutLabel,
		removedLabel:  defaultRemovedLabel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify computes the display record for one skater. The rules apply in
// strict order: expulsion beats removal beats foul-out beats the plain count,
// and the first match wins.
func (e *Engine) Classify(sk roster.SkaterView, exp ExpulsionChecker) Result {
	r := Result{RawCount: len(sk.Penalties)}

	expelled := false
	removed := false
	foulCode := false
	for _, p := range sk.Penalties {
		if exp != nil && exp.IsExpulsion(p.ID) {
			expelled = true
			continue // an expulsion is not an ordinary penalty
		}
		if p.Code == "" {
			continue
		}
		if e.removedCode != "" && p.Code == e.removedCode {
			removed = true
		}
		if p.Code == e.fouloutCode {
			foulCode = true
		}
		if _, filtered := e.filteredCodes[p.Code]; filtered {
			continue
		}
		r.DisplayCodes = append(r.DisplayCodes, p.Code)
	}
	r.DisplayCount = len(r.DisplayCodes)

	switch {
	case expelled:
		r.Status = Expelled
		r.DisplayValue = e.expelledLabel
	case removed:
		r.Status = Removed
		r.DisplayValue = e.removedLabel
	case r.DisplayCount >= e.fouloutThreshold || foulCode:
		r.Status = FouledOut
		r.DisplayValue = e.fouloutLabel
	default:
		r.DisplayValue = strconv.Itoa(r.DisplayCount)
		switch r.DisplayCount {
		case e.warning5:
			r.Status = Warning5
		case e.warning6:
			r.Status = Warning6
		}
	}

	return r
}
