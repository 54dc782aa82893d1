// Package recurrence converts free-text interval descriptors ("3 months",
// "6mo", "After Every Use") into a duration abstraction usable for due-date
// arithmetic.
//
// Parsing is pure and idempotent: the same descriptor always yields the same
// interval, and unparseable input degrades to a conservative default with a
// warning rather than an abort. Both the instantiator (initial due date) and
// the lifecycle manager (next due date after completion/skip) call into this
// package.
package recurrence

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind distinguishes calendar-based intervals from sentinels.
type Kind string

const (
	// KindCalendar recurs on a fixed calendar interval.
	KindCalendar Kind = "calendar"

	// KindOnUse recurs only on explicit completion ("After Every Use").
	// Occurrences are due immediately when created or re-armed.
	KindOnUse Kind = "on_use"

	// KindNone never recurs: a one-shot obligation.
	KindNone Kind = "none"
)

// Interval is a parsed recurrence descriptor. Calendar intervals use
// year/month/day components so that month arithmetic follows the calendar
// ("3 months" from Jan 15 is Apr 15, not 90 days later).
type Interval struct {
	Kind   Kind
	Years  int
	Months int
	Days   int
}

// DefaultInterval is the conservative fallback applied when a descriptor
// cannot be parsed: 30 days.
var DefaultInterval = Interval{Kind: KindCalendar, Days: 30}

// ParseWarning reports an unparseable descriptor. It is advisory: the
// accompanying Interval is always usable (the conservative default), so
// callers log the warning and continue rather than failing generation.
type ParseWarning struct {
	Descriptor string
}

func (w *ParseWarning) Error() string {
	return fmt.Sprintf("unparseable recurrence descriptor %q: using default of %d days", w.Descriptor, DefaultInterval.Days)
}

// Sentinel descriptors recognized case-insensitively.
const (
	sentinelAfterEveryUse = "after every use"
	sentinelNone          = "none"
	sentinelManual        = "manual"
	sentinelAsNeeded      = "as needed"
)

var numericUnitRe = regexp.MustCompile(`^(\d+)\s*([a-z]+)$`)

// Parse converts a free-text descriptor into an Interval.
//
// Recognized forms: "<n> <unit>" with unit in day(s)/d, week(s)/w/wk,
// month(s)/mo/m, year(s)/y/yr ("3 months", "1 week", "6mo", "45 days"), the
// "After Every Use" sentinel, and "none"/"manual"/"as needed" for one-shot
// obligations. Matching is case-insensitive and whitespace-tolerant.
//
// On failure Parse returns (DefaultInterval, *ParseWarning). The returned
// error is never anything other than *ParseWarning, and the interval is
// always valid, so callers may treat the error as a log-and-continue signal.
func Parse(descriptor string) (Interval, error) {
	s := strings.ToLower(strings.TrimSpace(descriptor))

	switch s {
	case sentinelAfterEveryUse:
		return Interval{Kind: KindOnUse}, nil
	case sentinelNone, sentinelManual, sentinelAsNeeded, "":
		return Interval{Kind: KindNone}, nil
	}

	m := numericUnitRe.FindStringSubmatch(s)
	if m == nil {
		return DefaultInterval, &ParseWarning{Descriptor: descriptor}
	}

	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return DefaultInterval, &ParseWarning{Descriptor: descriptor}
	}

	switch m[2] {
	case "day", "days", "d":
		return Interval{Kind: KindCalendar, Days: n}, nil
	case "week", "weeks", "w", "wk", "wks":
		return Interval{Kind: KindCalendar, Days: 7 * n}, nil
	case "month", "months", "mo", "mos", "m":
		return Interval{Kind: KindCalendar, Months: n}, nil
	case "year", "years", "y", "yr", "yrs":
		return Interval{Kind: KindCalendar, Years: n}, nil
	default:
		return DefaultInterval, &ParseWarning{Descriptor: descriptor}
	}
}

// Recurring reports whether completing an occurrence should schedule a
// successor.
func (iv Interval) Recurring() bool {
	return iv.Kind == KindCalendar || iv.Kind == KindOnUse
}

// DueImmediately reports whether a freshly created or re-armed occurrence is
// due right away rather than after the interval elapses.
func (iv Interval) DueImmediately() bool {
	return iv.Kind == KindOnUse
}

// AddTo advances a date by the interval using calendar arithmetic.
// OnUse and None intervals return t unchanged.
func (iv Interval) AddTo(t time.Time) time.Time {
	if iv.Kind != KindCalendar {
		return t
	}
	return t.AddDate(iv.Years, iv.Months, iv.Days)
}

// String renders the interval in the canonical descriptor form.
func (iv Interval) String() string {
	switch iv.Kind {
	case KindOnUse:
		return "After Every Use"
	case KindNone:
		return "none"
	}
	switch {
	case iv.Years > 0:
		return fmt.Sprintf("%d %s", iv.Years, plural(iv.Years, "year"))
	case iv.Months > 0:
		return fmt.Sprintf("%d %s", iv.Months, plural(iv.Months, "month"))
	default:
		return fmt.Sprintf("%d %s", iv.Days, plural(iv.Days, "day"))
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
