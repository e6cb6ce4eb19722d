package checkin

import "time"

// ResolveTZ resolves the effective IANA timezone: the member's own
// setting, then the company default, then UTC. Unknown or malformed
// names fall through to the next candidate; this never fails.
func ResolveTZ(memberTZ, companyTZ string) *time.Location {
	for _, name := range []string{memberTZ, companyTZ} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

// LocalParts is a member-local view of an instant, the reminder
// engine's notion of "now" for one member.
type LocalParts struct {
	Date    string
	Hour    int
	Minute  int
	Weekday time.Weekday
}

// LocalPartsIn breaks an instant into wall-clock parts in loc.
func LocalPartsIn(t time.Time, loc *time.Location) LocalParts {
	l := t.In(loc)
	return LocalParts{
		Date:    DateString(l),
		Hour:    l.Hour(),
		Minute:  l.Minute(),
		Weekday: l.Weekday(),
	}
}

// IsLate reports whether a submission instant lands on a later calendar
// day than its logical date, in the viewer's timezone. A 11 PM local
// submission on the due date is on time even after it crosses midnight
// UTC; the same instant viewed from Tokyo may be late.
func IsLate(logicalDate string, at time.Time, loc *time.Location) bool {
	if logicalDate == "" || at.IsZero() {
		return false
	}
	return DateString(at.In(loc)) > logicalDate
}

// FormatTime renders an instant as member-local time with the zone
// abbreviation, e.g. "11:30 PM PST".
func FormatTime(at time.Time, loc *time.Location) string {
	if at.IsZero() {
		return ""
	}
	return at.In(loc).Format("3:04 PM MST")
}

// FormatSubmission renders a submission timestamp; late ones carry the
// local weekday so a reviewer sees "Thu 1:10 AM JST" against a
// Wednesday due date.
func FormatSubmission(logicalDate string, at time.Time, loc *time.Location) string {
	if at.IsZero() {
		return ""
	}
	if !IsLate(logicalDate, at, loc) {
		return FormatTime(at, loc)
	}
	return at.In(loc).Format("Mon 3:04 PM MST")
}

// DayLabel renders a logical date as "Thu, Feb 26" for feeds and
// reminder emails.
func DayLabel(date string) string {
	t, err := time.ParseInLocation(DateLayout, date, time.UTC)
	if err != nil {
		return date
	}
	return t.Format("Mon, Jan 2")
}
