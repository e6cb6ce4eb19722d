// Package checkin holds the temporal core: week enumeration,
// submission-state resolution, attendance and timezone math. It is the
// single implementation consulted by both the interactive handlers and
// the reminder engine, so both always agree on week IDs, lock states
// and local dates. Every function takes time as an explicit parameter.
package checkin

import (
	"fmt"
	"time"
)

// GraceHours is the window after a week's Friday deadline during which
// a late weekly submission is still accepted without auto-red grading.
const GraceHours = 48

// DateLayout is the wire format for logical dates (keys, log entries).
const DateLayout = "2006-01-02"

// Epoch week: Monday Jan 5 2026. Week IDs count from here.
var (
	epochYear  = 2026
	epochMonth = time.January
	epochDay   = 5
)

// Week is one Mon-Fri work week. Friday carries the 23:59:59 deadline
// instant; Grace is Friday + 48h.
type Week struct {
	ID     string    `json:"id"`
	Index  int       `json:"index"`
	Monday time.Time `json:"monday"`
	Friday time.Time `json:"friday"`
	Grace  time.Time `json:"grace"`
	Label  string    `json:"label"`
	Range  string    `json:"range"`
	Short  string    `json:"short"`
}

// EpochMonday returns the epoch Monday at midnight in loc.
func EpochMonday(loc *time.Location) time.Time {
	return time.Date(epochYear, epochMonth, epochDay, 0, 0, 0, 0, loc)
}

// GenerateWeeks enumerates weeks from the epoch through now + 28 days,
// in now's location. Weeks are contiguous, Monday-aligned and 5
// calendar days each.
func GenerateWeeks(now time.Time) []Week {
	loc := now.Location()
	epoch := EpochMonday(loc)
	end := now.AddDate(0, 0, 28)

	var weeks []Week
	for i := 0; ; i++ {
		mon := epoch.AddDate(0, 0, i*7)
		if mon.After(end) {
			break
		}
		friDay := mon.AddDate(0, 0, 4)
		fri := time.Date(friDay.Year(), friDay.Month(), friDay.Day(), 23, 59, 59, 0, loc)
		weeks = append(weeks, Week{
			ID:     weekID(i),
			Index:  i,
			Monday: mon,
			Friday: fri,
			Grace:  fri.Add(GraceHours * time.Hour),
			Label:  mon.Format("Jan 2"),
			Range:  weekRange(mon, friDay),
			Short:  fmt.Sprintf("%d/%d", int(mon.Month()), mon.Day()),
		})
	}
	return weeks
}

func weekID(index int) string {
	return fmt.Sprintf("w%02d", index+1)
}

func weekRange(mon, fri time.Time) string {
	if mon.Month() == fri.Month() {
		return fmt.Sprintf("%s – %d", mon.Format("Jan 2"), fri.Day())
	}
	return fmt.Sprintf("%s – %s", mon.Format("Jan 2"), fri.Format("Jan 2"))
}

// CurrentWeekIndex returns the highest index whose Monday has started,
// or 0 when now precedes the epoch.
func CurrentWeekIndex(weeks []Week, now time.Time) int {
	for i := len(weeks) - 1; i >= 0; i-- {
		if !now.Before(weeks[i].Monday) {
			return i
		}
	}
	return 0
}

// Locked reports whether the grace window has closed. A week with an
// existing submission is never treated as locked for display; locking
// only gates new submissions and triggers auto-red for empty weeks.
func (w Week) Locked(now time.Time) bool {
	return now.After(w.Grace)
}

// Overdue reports whether now falls inside the grace window.
func (w Week) Overdue(now time.Time) bool {
	return now.After(w.Friday) && !now.After(w.Grace)
}

// TimeLeft renders the remaining time until the Friday deadline as
// "3d 7h" or "7h", or "" once the deadline passed.
func (w Week) TimeLeft(now time.Time) string {
	d := w.Friday.Sub(now)
	if d <= 0 {
		return ""
	}
	h := int(d.Hours())
	if h >= 24 {
		return fmt.Sprintf("%dd %dh", h/24, h%24)
	}
	return fmt.Sprintf("%dh", h)
}

// Weekdays returns the five logical dates of the week.
func (w Week) Weekdays() []string {
	days := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		days = append(days, DateString(w.Monday.AddDate(0, 0, i)))
	}
	return days
}

// WeekIndexForDate maps a logical date to its epoch-relative week
// index using pure calendar arithmetic, independent of any timezone.
// Dates before the epoch yield negative indexes.
func WeekIndexForDate(date string) (int, error) {
	t, err := time.ParseInLocation(DateLayout, date, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", date, err)
	}
	days := int(t.Sub(EpochMonday(time.UTC)).Hours() / 24)
	if days >= 0 {
		return days / 7, nil
	}
	return (days - 6) / 7, nil
}

// WeekIDForDate is the cross-runtime week key format: "w01", "w02", …
// from the epoch Monday. Pre-epoch dates map to "w00".
func WeekIDForDate(date string) string {
	idx, err := WeekIndexForDate(date)
	if err != nil || idx < 0 {
		return "w00"
	}
	return weekID(idx)
}

// WeekLabelForID renders "W9: Mar 2" style labels for reminder emails.
func WeekLabelForID(id string) string {
	var n int
	if _, err := fmt.Sscanf(id, "w%d", &n); err != nil || n < 1 {
		return id
	}
	mon := EpochMonday(time.UTC).AddDate(0, 0, (n-1)*7)
	return fmt.Sprintf("W%d: %s", n, mon.Format("Jan 2"))
}

// DateString formats t's calendar date in its own location.
func DateString(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a logical date at noon in loc, keeping day
// arithmetic safe across DST transitions.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t.Add(12 * time.Hour), nil
}

// StepDate moves a logical date by days using calendar arithmetic.
func StepDate(date string, days int) string {
	t, err := time.ParseInLocation(DateLayout, date, time.UTC)
	if err != nil {
		return date
	}
	return DateString(t.AddDate(0, 0, days))
}

// IsWeekend reports Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// WeekdaysBack walks backward from `from` collecting the most recent
// `count` weekdays, newest first, including `from` itself when it is a
// weekday.
func WeekdaysBack(count int, from time.Time) []string {
	days := make([]string, 0, count)
	d := from
	for len(days) < count {
		if !IsWeekend(d) {
			days = append(days, DateString(d))
		}
		d = d.AddDate(0, 0, -1)
	}
	return days
}

// LastCompletedWeekday returns today, or the preceding Friday when
// today is a weekend day.
func LastCompletedWeekday(today time.Time) string {
	d := today
	for IsWeekend(d) {
		d = d.AddDate(0, 0, -1)
	}
	return DateString(d)
}
