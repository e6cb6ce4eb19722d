package services

import (
	"context"
	"testing"
	"time"

	"checkinAPI/internal/checkin"
	"checkinAPI/internal/types/entry"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday 2026-02-04 falls inside week w05 (Mon Feb 2 – Fri Feb 6).
type checkinFixture struct {
	accounts  *AccountService
	checkins  *CheckinService
	companyID string
	teamID    string
	clock     time.Time
}

func newCheckinFixture(t *testing.T) *checkinFixture {
	t.Helper()
	f := &checkinFixture{clock: time.Date(2026, 2, 4, 15, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	now := func() time.Time { return f.clock }
	f.accounts = NewAccountService(store, zerolog.Nop()).WithClock(now)
	f.checkins = NewCheckinService(store, f.accounts, zerolog.Nop()).WithClock(now)

	var err error
	f.companyID, err = f.accounts.Setup(context.Background(), "boss@acme.test", "pw", "Acme", "UTC")
	require.NoError(t, err)
	f.teamID, err = f.accounts.AddTeam(context.Background(), f.companyID, "Core")
	require.NoError(t, err)
	return f
}

func (f *checkinFixture) addMember(t *testing.T, name, email string, kpis []string) string {
	t.Helper()
	member, _, err := f.accounts.AddMember(context.Background(), f.companyID, f.teamID, name, email, "", kpis)
	require.NoError(t, err)
	return member.ID
}

func TestSubmitDailyValidation(t *testing.T) {
	f := newCheckinFixture(t)
	ctx := context.Background()
	memberID := f.addMember(t, "Jane", "jane@acme.test", nil)

	err := f.checkins.SubmitDaily(ctx, f.companyID, memberID, "2026-02-04", DailyInput{})
	assert.ErrorIs(t, err, ErrValidation)

	err = f.checkins.SubmitDaily(ctx, f.companyID, memberID, "2026-02-04", DailyInput{Worked: "things", Stuck: true})
	assert.ErrorIs(t, err, ErrValidation)

	// Saturday is never selectable.
	err = f.checkins.SubmitDaily(ctx, f.companyID, memberID, "2026-01-31", DailyInput{Worked: "things"})
	assert.ErrorIs(t, err, ErrValidation)

	// Eleven weekdays back is outside the window.
	err = f.checkins.SubmitDaily(ctx, f.companyID, memberID, "2026-01-20", DailyInput{Worked: "things"})
	assert.ErrorIs(t, err, ErrValidation)

	err = f.checkins.SubmitDaily(ctx, f.companyID, memberID, "2026-02-04", DailyInput{Worked: "shipped the importer"})
	assert.NoError(t, err)
}

func TestSubmitDailyEditKeepsOriginalTime(t *testing.T) {
	f := newCheckinFixture(t)
	ctx := context.Background()
	memberID := f.addMember(t, "Jane", "jane@acme.test", nil)

	first := f.clock
	require.NoError(t, f.checkins.SubmitDaily(ctx, f.companyID, memberID, "2026-02-04", DailyInput{Worked: "v1"}))

	f.clock = f.clock.Add(2 * time.Hour)
	require.NoError(t, f.checkins.SubmitDaily(ctx, f.companyID, memberID, "2026-02-04", DailyInput{Worked: "v2", Plan: "tomorrow"}))

	detail, err := f.checkins.MemberDetail(ctx, f.companyID, memberID, "w05")
	require.NoError(t, err)

	var day *DayDetail
	for i := range detail.Days {
		if detail.Days[i].Date == "2026-02-04" {
			day = &detail.Days[i]
		}
	}
	require.NotNil(t, day)
	require.NotNil(t, day.Entry)
	assert.Equal(t, "v2", day.Entry.Worked)
	assert.True(t, day.Entry.Edited)
	assert.Equal(t, first, day.Entry.OriginalAt)
	assert.Equal(t, f.clock, day.Entry.At)
}

func TestSubmitWeekly(t *testing.T) {
	f := newCheckinFixture(t)
	ctx := context.Background()
	memberID := f.addMember(t, "Jane", "jane@acme.test", []string{"Ship weekly", "Zero regressions"})

	// Both KPIs must be scored.
	err := f.checkins.SubmitWeekly(ctx, f.companyID, memberID, "w05", []KPIInput{{Status: "green"}}, "")
	assert.ErrorIs(t, err, ErrValidation)
	err = f.checkins.SubmitWeekly(ctx, f.companyID, memberID, "w05", []KPIInput{{Status: "green"}, {Status: ""}}, "")
	assert.ErrorIs(t, err, ErrValidation)

	// Week w01's grace window closed weeks ago.
	err = f.checkins.SubmitWeekly(ctx, f.companyID, memberID, "w01", []KPIInput{{Status: "green"}, {Status: "green"}}, "")
	assert.ErrorIs(t, err, ErrWeekLocked)

	err = f.checkins.SubmitWeekly(ctx, f.companyID, memberID, "w05",
		[]KPIInput{{Status: "green", Actual: "3 releases"}, {Status: "red", Actual: "one rollback"}}, "rough week")
	require.NoError(t, err)

	detail, err := f.checkins.MemberDetail(ctx, f.companyID, memberID, "w05")
	require.NoError(t, err)
	require.NotNil(t, detail.Entry)
	require.Len(t, detail.Entry.KPIs, 2)
	// Labels are snapshotted from the member's KPI list.
	assert.Equal(t, "Ship weekly", detail.Entry.KPIs[0].Name)
	assert.Equal(t, "Zero regressions", detail.Entry.KPIs[1].Name)
	assert.Equal(t, checkin.StatusRed, detail.Status)
}

func TestTogglePTO(t *testing.T) {
	f := newCheckinFixture(t)
	ctx := context.Background()
	memberID := f.addMember(t, "Jane", "jane@acme.test", nil)

	on, err := f.checkins.TogglePTO(ctx, f.companyID, memberID)
	require.NoError(t, err)
	assert.True(t, on)

	on, err = f.checkins.TogglePTO(ctx, f.companyID, memberID)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestCommentsOverwriteAndClear(t *testing.T) {
	f := newCheckinFixture(t)
	ctx := context.Background()
	memberID := f.addMember(t, "Jane", "jane@acme.test", nil)
	require.NoError(t, f.checkins.SubmitDaily(ctx, f.companyID, memberID, "2026-02-04", DailyInput{Worked: "stuff"}))

	require.NoError(t, f.checkins.SetDailyComment(ctx, f.companyID, memberID, "2026-02-04", "first take"))
	require.NoError(t, f.checkins.SetDailyComment(ctx, f.companyID, memberID, "2026-02-04", "second take"))

	feed, err := f.checkins.DailyFeed(ctx, f.companyID, "2026-02-04")
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.NotNil(t, feed[0].Comment)
	assert.Equal(t, "second take", feed[0].Comment.Text)

	require.NoError(t, f.checkins.SetDailyComment(ctx, f.companyID, memberID, "2026-02-04", ""))
	feed, err = f.checkins.DailyFeed(ctx, f.companyID, "2026-02-04")
	require.NoError(t, err)
	assert.Nil(t, feed[0].Comment)
}

func TestDailyFeedOrdering(t *testing.T) {
	f := newCheckinFixture(t)
	ctx := context.Background()

	// Names chosen so alphabetical order would invert the expected
	// bucket order.
	stuckID := f.addMember(t, "Zed", "zed@acme.test", nil)
	submittedID := f.addMember(t, "Wes", "wes@acme.test", nil)
	missingID := f.addMember(t, "Amy", "amy@acme.test", nil)
	ptoID := f.addMember(t, "Bea", "bea@acme.test", nil)

	require.NoError(t, f.checkins.SubmitDaily(ctx, f.companyID, stuckID, "2026-02-04",
		DailyInput{Worked: "tried the migration", Didnt: "blocked on credentials", Stuck: true}))
	require.NoError(t, f.checkins.SubmitDaily(ctx, f.companyID, submittedID, "2026-02-04",
		DailyInput{Worked: "closed three tickets"}))

	// Bea is on PTO today.
	_, err := f.checkins.TogglePTO(ctx, f.companyID, ptoID)
	require.NoError(t, err)

	feed, err := f.checkins.DailyFeed(ctx, f.companyID, "2026-02-04")
	require.NoError(t, err)
	require.Len(t, feed, 4)
	assert.Equal(t, stuckID, feed[0].Member.ID)
	assert.Equal(t, submittedID, feed[1].Member.ID)
	assert.Equal(t, missingID, feed[2].Member.ID)
	assert.Equal(t, ptoID, feed[3].Member.ID)
	assert.True(t, feed[3].PTO)
	for _, item := range feed {
		assert.Empty(t, item.Member.Password)
	}

	// A CEO reply resolves the stuck thread and drops Zed back into the
	// submitted bucket, behind Wes alphabetically.
	require.NoError(t, f.checkins.ReplyStuck(ctx, f.companyID, stuckID, "2026-02-04", RoleCEO, "credentials sent"))
	feed, err = f.checkins.DailyFeed(ctx, f.companyID, "2026-02-04")
	require.NoError(t, err)
	assert.Equal(t, submittedID, feed[0].Member.ID)
	assert.Equal(t, stuckID, feed[1].Member.ID)
}

func TestStuckThreadAppends(t *testing.T) {
	f := newCheckinFixture(t)
	ctx := context.Background()
	memberID := f.addMember(t, "Jane", "jane@acme.test", nil)
	require.NoError(t, f.checkins.SubmitDaily(ctx, f.companyID, memberID, "2026-02-04",
		DailyInput{Worked: "x", Didnt: "y", Stuck: true}))

	require.NoError(t, f.checkins.ReplyStuck(ctx, f.companyID, memberID, "2026-02-04", RoleCEO, "what do you need?"))
	require.NoError(t, f.checkins.ReplyStuck(ctx, f.companyID, memberID, "2026-02-04", memberID, "a prod db snapshot"))

	feed, err := f.checkins.DailyFeed(ctx, f.companyID, "2026-02-04")
	require.NoError(t, err)
	require.Len(t, feed[0].Thread, 2)
	assert.Equal(t, RoleCEO, feed[0].Thread[0].From)
	assert.Equal(t, memberID, feed[0].Thread[1].From)
}

func TestMarkSeen(t *testing.T) {
	f := newCheckinFixture(t)
	ctx := context.Background()
	memberID := f.addMember(t, "Jane", "jane@acme.test", nil)

	key := entry.DailyCommentKey(memberID, "2026-02-04")
	require.NoError(t, f.checkins.MarkSeen(ctx, f.companyID, memberID, key))

	data, err := f.checkins.loadData(ctx, f.companyID)
	require.NoError(t, err)
	assert.True(t, data.Seen[entry.SeenKey(memberID, key)])
}

func TestSummaryAndWeeklyBoard(t *testing.T) {
	f := newCheckinFixture(t)
	ctx := context.Background()
	memberID := f.addMember(t, "Jane", "jane@acme.test", []string{"Ship weekly"})

	require.NoError(t, f.checkins.SubmitWeekly(ctx, f.companyID, memberID, "w05",
		[]KPIInput{{Status: "green"}}, ""))
	require.NoError(t, f.checkins.SubmitDaily(ctx, f.companyID, memberID, "2026-02-03", DailyInput{Worked: "a"}))
	require.NoError(t, f.checkins.SubmitDaily(ctx, f.companyID, memberID, "2026-02-04", DailyInput{Worked: "b"}))

	summary, err := f.checkins.Summary(ctx, f.companyID, memberID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Streak)
	require.NotNil(t, summary.HitRate)
	assert.Equal(t, 100, *summary.HitRate)
	assert.Equal(t, 1, summary.Green)
	assert.Equal(t, 0, summary.Red)
	require.Len(t, summary.History, 1)
	assert.Equal(t, "w05", summary.History[0].WeekID)
	assert.Empty(t, summary.Member.Password)

	board, err := f.checkins.WeeklyBoard(ctx, f.companyID, "w05")
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, checkin.StatusGreen, board[0].Status)
	assert.Empty(t, board[0].Member.Password)
	assert.Equal(t, 2, board[0].DailyCount)
	// Wednesday: Mon through Wed have elapsed.
	assert.Equal(t, 3, board[0].Expected)
}

func TestHeatmapWindow(t *testing.T) {
	f := newCheckinFixture(t)
	ctx := context.Background()
	f.addMember(t, "Jane", "jane@acme.test", nil)

	rows, err := f.checkins.Heatmap(ctx, f.companyID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	// Only five weeks have started by Feb 4.
	assert.Len(t, rows[0].Cells, 5)
	assert.Equal(t, "w05", rows[0].Cells[len(rows[0].Cells)-1].WeekID)
}
