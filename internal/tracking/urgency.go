// Package tracking derives payment balance and due-date urgency from stored
// order and payment records. Everything here is pure and safe for concurrent use.
package tracking

import (
	"fmt"
	"time"
)

// Tier classifies how close an order is to its due date.
type Tier string

const (
	TierOverdue  Tier = "overdue"
	TierWarning1 Tier = "warning-1"
	TierWarning3 Tier = "warning-3"
	TierWarning5 Tier = "warning-5"
	TierSafe     Tier = "safe"
)

// Tiers lists every tier from most to least urgent.
func Tiers() []Tier {
	return []Tier{TierOverdue, TierWarning1, TierWarning3, TierWarning5, TierSafe}
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierOverdue, TierWarning1, TierWarning3, TierWarning5, TierSafe:
		return true
	}
	return false
}

// NeedsReminder reports whether orders in this tier are eligible for a
// due-date reminder. Safe orders never trigger one.
func (t Tier) NeedsReminder() bool {
	return t.Valid() && t != TierSafe
}

// Classify maps a days-to-due value onto its tier. Boundaries belong to the
// more urgent tier: 3 days is warning-3, 5 days is warning-5.
func Classify(daysToDue int) Tier {
	switch {
	case daysToDue <= 0:
		return TierOverdue
	case daysToDue == 1:
		return TierWarning1
	case daysToDue <= 3:
		return TierWarning3
	case daysToDue <= 5:
		return TierWarning5
	default:
		return TierSafe
	}
}

// Label renders the human text shown next to an order.
func Label(tier Tier, daysToDue int) string {
	switch {
	case tier == TierOverdue && daysToDue == 0:
		return "Due Today"
	case tier == TierOverdue && daysToDue < 0:
		return fmt.Sprintf("%d days overdue", -daysToDue)
	case daysToDue == 1:
		return "Due Tomorrow"
	default:
		return fmt.Sprintf("%d days left", daysToDue)
	}
}

// DaysToDue returns the whole calendar days between today and due, both taken
// as dates in loc. Positive means days remaining, zero due today, negative overdue.
func DaysToDue(due, today time.Time, loc *time.Location) int {
	return CivilDays(due, loc) - CivilDays(today, loc)
}

// StartOfDay returns midnight of t's calendar date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// CivilDays numbers t's calendar date in loc as days since 1970-01-01.
// Working on dates rather than durations keeps DST shifts from skewing results.
func CivilDays(t time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// SameDay reports whether a and b fall on the same calendar date in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return CivilDays(a, loc) == CivilDays(b, loc)
}

// DateIn reinterprets the calendar date carried by t (read in t's own
// location) as midnight in loc. DATE columns scan as UTC midnight; this keeps
// their day intact when the reporting zone is behind UTC.
func DateIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
