package checkin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"checkinAPI/internal/types/entry"
)

func summaryWith(t *testing.T, now time.Time, entries map[string]entry.DailyEntry, pto map[string]bool) DailySummary {
	t.Helper()
	weeks := GenerateWeeks(now)
	w := weeks[CurrentWeekIndex(weeks, now)]
	return WeekDailySummary(w, now,
		func(date string) *entry.DailyEntry {
			if e, ok := entries[date]; ok {
				return &e
			}
			return nil
		},
		func(date string) bool { return pto[date] },
	)
}

func TestExpectedGrowsThroughWeek(t *testing.T) {
	tue := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
	s := summaryWith(t, tue, nil, nil)
	assert.Equal(t, 2, s.Expected)
	assert.Equal(t, 0, s.Count)

	fri := time.Date(2026, 2, 13, 15, 0, 0, 0, time.UTC)
	s = summaryWith(t, fri, nil, nil)
	assert.Equal(t, 5, s.Expected)
}

func TestPTOReducesExpectation(t *testing.T) {
	fri := time.Date(2026, 2, 13, 15, 0, 0, 0, time.UTC)
	s := summaryWith(t, fri, nil, map[string]bool{"2026-02-09": true})
	assert.Equal(t, 4, s.Expected)
	assert.Equal(t, 1, s.PTOCount)
}

func TestPTODaySubmissionNotCounted(t *testing.T) {
	fri := time.Date(2026, 2, 13, 15, 0, 0, 0, time.UTC)
	entries := map[string]entry.DailyEntry{
		"2026-02-09": {Worked: "shipped"},
		"2026-02-10": {Worked: "debugged", Stuck: true},
	}
	s := summaryWith(t, fri, entries, map[string]bool{"2026-02-09": true})
	assert.Equal(t, 1, s.Count) // the PTO day's entry is skipped
	assert.Equal(t, 1, s.Stuck)
}

func TestExpectedNeverNegative(t *testing.T) {
	mon := time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC)
	pto := map[string]bool{
		"2026-02-09": true, "2026-02-10": true, "2026-02-11": true,
		"2026-02-12": true, "2026-02-13": true,
	}
	s := summaryWith(t, mon, nil, pto)
	assert.Equal(t, 0, s.Expected)
	assert.Equal(t, 5, s.PTOCount)
}
