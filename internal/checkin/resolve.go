package checkin

import (
	"math"
	"time"

	"checkinAPI/internal/types/entry"
)

// WeekStatus is a week's resolved grading outcome. The zero value means
// pending (not yet graded).
type WeekStatus string

const (
	StatusPending       WeekStatus = ""
	StatusGreen         WeekStatus = "green"
	StatusRed           WeekStatus = "red"
	StatusAutoRed       WeekStatus = "auto-red"
	StatusPreEnrollment WeekStatus = "pre-enrollment"
)

// Graded reports whether the status counts as scored (green or any
// flavor of red). Pending and pre-enrollment weeks are not graded.
func (s WeekStatus) Graded() bool {
	return s == StatusGreen || s == StatusRed || s == StatusAutoRed
}

// EnrollmentWeekIndex maps a member's AddedAt stamp to the first week
// index that counts toward grading. Missing or unparseable stamps, and
// pre-epoch joins, enroll from week 0.
func EnrollmentWeekIndex(addedAt string, loc *time.Location) int {
	if addedAt == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, addedAt)
	if err != nil {
		if t, err = time.ParseInLocation(DateLayout, addedAt, loc); err != nil {
			return 0
		}
	}
	idx, err := WeekIndexForDate(DateString(t.In(loc)))
	if err != nil || idx < 0 {
		return 0
	}
	return idx
}

// ResolveWeek grades one week for one member.
//
// Pre-enrollment always wins, even over spurious data. An entry with
// KPI results resolves from the scored subset only: no scored KPI means
// pending, all-green means green, any red means red. Entries carrying
// only the legacy manual status pass it through. An empty week is
// auto-red once the grace window closed, pending until then.
func ResolveWeek(weeks []Week, idx int, e *entry.WeeklyEntry, enrollIdx int, now time.Time) WeekStatus {
	if idx < enrollIdx {
		return StatusPreEnrollment
	}
	if idx < 0 || idx >= len(weeks) {
		return StatusPending
	}
	if e != nil {
		if len(e.KPIs) > 0 {
			scored, green := 0, 0
			for _, k := range e.KPIs {
				if k.Status == "" {
					continue
				}
				scored++
				if k.Status == entry.KPIGreen {
					green++
				}
			}
			if scored == 0 {
				return StatusPending
			}
			if green == scored {
				return StatusGreen
			}
			return StatusRed
		}
		if e.Status != "" {
			return WeekStatus(e.Status)
		}
	}
	if weeks[idx].Locked(now) {
		return StatusAutoRed
	}
	return StatusPending
}

// WeekStreak counts consecutive green weeks walking back from the
// current week. Any non-green outcome, including pending and
// pre-enrollment, ends the walk.
func WeekStreak(currentIdx int, resolve func(i int) WeekStatus) int {
	streak := 0
	for i := currentIdx; i >= 0; i-- {
		if resolve(i) != StatusGreen {
			break
		}
		streak++
	}
	return streak
}

// HitRate is the percentage of graded weeks between enrollment and the
// current week that resolved green, rounded to the nearest integer.
// Returns nil when no week has been graded yet.
func HitRate(enrollIdx, currentIdx int, resolve func(i int) WeekStatus) *int {
	green, scored := 0, 0
	for i := enrollIdx; i <= currentIdx; i++ {
		switch resolve(i) {
		case StatusGreen:
			green++
			scored++
		case StatusRed, StatusAutoRed:
			scored++
		}
	}
	if scored == 0 {
		return nil
	}
	rate := int(math.Round(100 * float64(green) / float64(scored)))
	return &rate
}
