package checkin

import (
	"time"

	"checkinAPI/internal/types/entry"
)

// DailySummary is one member's attendance picture for one week.
// Expected grows day by day through the week and shrinks for PTO, so a
// mid-week view never demands all five days. It drives an advisory
// health indicator, not a pass/fail gate.
type DailySummary struct {
	Count    int      `json:"count"`
	Stuck    int      `json:"stuck"`
	PTOCount int      `json:"ptoCount"`
	Expected int      `json:"expected"`
	Days     []string `json:"days"`
}

// WeekDailySummary tallies a member's daily submissions for a week.
// entryFor and ptoFor look up by logical date; PTO days are excluded
// from both the submission count and the expectation.
func WeekDailySummary(w Week, now time.Time, entryFor func(date string) *entry.DailyEntry, ptoFor func(date string) bool) DailySummary {
	days := w.Weekdays()
	today := DateString(now)

	s := DailySummary{Days: days}
	elapsed := 0
	for _, d := range days {
		if d <= today {
			elapsed++
		}
		if ptoFor(d) {
			s.PTOCount++
			continue
		}
		if e := entryFor(d); e != nil {
			s.Count++
			if e.Stuck {
				s.Stuck++
			}
		}
	}
	s.Expected = elapsed - s.PTOCount
	if s.Expected < 0 {
		s.Expected = 0
	}
	return s
}
