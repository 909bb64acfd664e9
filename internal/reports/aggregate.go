// Package reports summarises payments per day and per method and serves the
// dashboard.
package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tailorhub/tailorhub/internal/payments"
	"github.com/tailorhub/tailorhub/internal/tracking"
)

// DateLayout is the calendar-date format used for day keys.
const DateLayout = "2006-01-02"

// Day is one calendar day of a summary.
type Day struct {
	Date     string             `json:"date"`
	DayName  string             `json:"day_name"`
	Total    decimal.Decimal    `json:"total"`
	Count    int                `json:"count"`
	Payments []payments.Payment `json:"payments"`
}

// MethodTotal aggregates payments of one method.
type MethodTotal struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// Summary aggregates payments over an inclusive date range.
type Summary struct {
	Start    time.Time                       `json:"start"`
	End      time.Time                       `json:"end"`
	Total    decimal.Decimal                 `json:"total"`
	Count    int                             `json:"count"`
	ByMethod map[payments.Method]MethodTotal `json:"by_method"`
	Days     []Day                           `json:"days"`
}

// Aggregate buckets ps into every calendar day of [start, end] in loc. Days
// without payments are present with zero totals. Payments dated outside the
// range are ignored, so Total always equals the sum of the day totals.
func Aggregate(ps []payments.Payment, start, end time.Time, loc *time.Location) Summary {
	first := tracking.StartOfDay(start, loc)
	last := tracking.StartOfDay(end, loc)

	s := Summary{
		Start:    first,
		End:      endOfDay(last),
		Total:    decimal.Zero,
		ByMethod: make(map[payments.Method]MethodTotal, len(payments.Methods())),
		Days:     []Day{},
	}
	for _, m := range payments.Methods() {
		s.ByMethod[m] = MethodTotal{Total: decimal.Zero}
	}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		s.Days = append(s.Days, Day{
			Date:     d.Format(DateLayout),
			DayName:  d.Weekday().String(),
			Total:    decimal.Zero,
			Payments: []payments.Payment{},
		})
	}

	base := tracking.CivilDays(first, loc)
	for _, p := range ps {
		idx := tracking.CivilDays(p.PaidAt, loc) - base
		if idx < 0 || idx >= len(s.Days) {
			continue
		}
		day := &s.Days[idx]
		day.Total = day.Total.Add(p.Amount)
		day.Count++
		day.Payments = append(day.Payments, p)

		mt := s.ByMethod[p.Method]
		mt.Count++
		mt.Total = mt.Total.Add(p.Amount)
		s.ByMethod[p.Method] = mt

		s.Total = s.Total.Add(p.Amount)
		s.Count++
	}
	return s
}

// CurrentWeek returns Monday 00:00:00 through Sunday 23:59:59 of the week
// containing now, in loc.
func CurrentWeek(now time.Time, loc *time.Location) (time.Time, time.Time) {
	today := tracking.StartOfDay(now, loc)
	offset := (int(today.Weekday()) + 6) % 7
	monday := today.AddDate(0, 0, -offset)
	return monday, endOfDay(monday.AddDate(0, 0, 6))
}

// LastWeek returns the full week before CurrentWeek.
func LastWeek(now time.Time, loc *time.Location) (time.Time, time.Time) {
	monday, _ := CurrentWeek(now, loc)
	prev := monday.AddDate(0, 0, -7)
	return prev, endOfDay(prev.AddDate(0, 0, 6))
}

func endOfDay(day time.Time) time.Time {
	return day.AddDate(0, 0, 1).Add(-time.Second)
}
