package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"checkinAPI/internal/types/company"
	"checkinAPI/internal/types/reminder"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []string // recipient emails in send order
	failFor map[string]bool
}

func (s *fakeSender) Send(ctx context.Context, to, toName, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[to] {
		return errors.New("smtp unavailable")
	}
	s.sent = append(s.sent, to)
	return nil
}

type reminderFixture struct {
	accounts  *AccountService
	checkins  *CheckinService
	reminders *ReminderService
	sender    *fakeSender
	store     *MemoryStore
	companyID string
	teamID    string
	clock     time.Time
}

func newReminderFixture(t *testing.T) *reminderFixture {
	t.Helper()
	f := &reminderFixture{
		sender: &fakeSender{failFor: map[string]bool{}},
		store:  NewMemoryStore(),
		// Wednesday evening inside the daily window, UTC.
		clock: time.Date(2026, 2, 4, 18, 5, 0, 0, time.UTC),
	}
	now := func() time.Time { return f.clock }
	f.accounts = NewAccountService(f.store, zerolog.Nop()).WithClock(now)
	f.checkins = NewCheckinService(f.store, f.accounts, zerolog.Nop()).WithClock(now)
	f.reminders = NewReminderService(f.store, f.accounts, f.sender, zerolog.Nop(), ReminderOptions{
		AppURL:        "https://checkin.test",
		SendPerSecond: 10000, // no throttling in tests
	}).WithClock(now)

	ctx := context.Background()
	var err error
	f.companyID, err = f.accounts.Setup(ctx, "boss@acme.test", "pw", "Acme", "UTC")
	require.NoError(t, err)
	f.teamID, err = f.accounts.AddTeam(ctx, f.companyID, "Core")
	require.NoError(t, err)
	return f
}

func (f *reminderFixture) addMember(t *testing.T, name, email string) string {
	t.Helper()
	member, _, err := f.accounts.AddMember(context.Background(), f.companyID, f.teamID, name, email, "", []string{"Ship"})
	require.NoError(t, err)
	return member.ID
}

func (f *reminderFixture) enable(t *testing.T, cfg reminder.Config) {
	t.Helper()
	require.NoError(t, f.reminders.UpdateConfig(context.Background(), f.companyID, cfg))
}

func allOn() reminder.Config {
	return reminder.Config{Enabled: true, DailyEnabled: true, WeeklyEnabled: true}
}

func TestRunSkipsCompanyWithoutConfig(t *testing.T) {
	f := newReminderFixture(t)
	f.addMember(t, "Jane", "jane@acme.test")

	summary, err := f.reminders.Run(context.Background(), f.clock)
	require.NoError(t, err)
	assert.Equal(t, reminder.RunSummary{}, summary)
	assert.Empty(t, f.sender.sent)
}

func TestDailyReminderWindow(t *testing.T) {
	f := newReminderFixture(t)
	f.addMember(t, "Jane", "jane@acme.test")
	f.enable(t, allOn())
	ctx := context.Background()

	cases := []struct {
		name string
		at   time.Time
		sent int
	}{
		{"inside window", time.Date(2026, 2, 4, 18, 5, 0, 0, time.UTC), 1},
		{"window edge", time.Date(2026, 2, 4, 18, 14, 59, 0, time.UTC), 1},
		{"minute too late", time.Date(2026, 2, 4, 18, 15, 0, 0, time.UTC), 0},
		{"wrong hour", time.Date(2026, 2, 4, 17, 5, 0, 0, time.UTC), 0},
		{"saturday", time.Date(2026, 2, 7, 18, 5, 0, 0, time.UTC), 0},
		{"sunday", time.Date(2026, 2, 8, 18, 5, 0, 0, time.UTC), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.sender.sent = nil
			require.NoError(t, f.store.Set(ctx, reminderLogKey(f.companyID), "[]"))

			summary, err := f.reminders.Run(ctx, tc.at)
			require.NoError(t, err)
			assert.Equal(t, tc.sent, summary.Sent)
			assert.Len(t, f.sender.sent, tc.sent)
		})
	}
}

func TestDailyReminderSkipsSubmittedAndPTO(t *testing.T) {
	f := newReminderFixture(t)
	ctx := context.Background()
	submitted := f.addMember(t, "Jane", "jane@acme.test")
	onPTO := f.addMember(t, "Kai", "kai@acme.test")
	f.addMember(t, "Liv", "liv@acme.test")
	f.enable(t, allOn())

	// Jane submitted earlier today; Kai is on PTO.
	f.clock = time.Date(2026, 2, 4, 15, 0, 0, 0, time.UTC)
	require.NoError(t, f.checkins.SubmitDaily(ctx, f.companyID, submitted, "2026-02-04", DailyInput{Worked: "done"}))
	_, err := f.checkins.TogglePTO(ctx, f.companyID, onPTO)
	require.NoError(t, err)

	f.clock = time.Date(2026, 2, 4, 18, 5, 0, 0, time.UTC)
	summary, err := f.reminders.Run(ctx, f.clock)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, []string{"liv@acme.test"}, f.sender.sent)
}

func TestDailyReminderDedupAndFailedRetry(t *testing.T) {
	f := newReminderFixture(t)
	ctx := context.Background()
	f.addMember(t, "Jane", "jane@acme.test")
	f.enable(t, allOn())

	summary, err := f.reminders.Run(ctx, f.clock)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)

	// Second run in the same window: the sent log blocks a resend.
	summary, err = f.reminders.Run(ctx, f.clock)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Sent)
	assert.Len(t, f.sender.sent, 1)

	// A failed attempt does not block the next run.
	f.sender.sent = nil
	require.NoError(t, f.store.Set(ctx, reminderLogKey(f.companyID), "[]"))
	f.sender.failFor["jane@acme.test"] = true

	summary, err = f.reminders.Run(ctx, f.clock)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	f.sender.failFor["jane@acme.test"] = false
	summary, err = f.reminders.Run(ctx, f.clock)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)

	log, err := f.reminders.Log(ctx, f.companyID, 10)
	require.NoError(t, err)
	require.Len(t, log, 2)
	// Newest first.
	assert.Equal(t, reminder.StatusSent, log[0].Status)
	assert.Equal(t, reminder.StatusFailed, log[1].Status)
	assert.Equal(t, "smtp unavailable", log[1].Error)
}

func TestWeeklyReminderTargetsLastFriday(t *testing.T) {
	f := newReminderFixture(t)
	ctx := context.Background()
	f.addMember(t, "Jane", "jane@acme.test")
	f.enable(t, allOn())

	// Saturday 2026-02-07 10:05 UTC. The week that just ended is w05
	// (Friday 2026-02-06).
	at := time.Date(2026, 2, 7, 10, 5, 0, 0, time.UTC)
	summary, err := f.reminders.Run(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)

	log, err := f.reminders.Log(ctx, f.companyID, 1)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, reminder.TypeWeekly, log[0].Type)
	assert.Equal(t, "2026-02-06", log[0].Date)
	assert.Equal(t, "w05", log[0].WeekID)
}

func TestWeeklyReminderSkipsSubmittedWeek(t *testing.T) {
	f := newReminderFixture(t)
	ctx := context.Background()
	memberID := f.addMember(t, "Jane", "jane@acme.test")
	f.enable(t, allOn())

	f.clock = time.Date(2026, 2, 4, 15, 0, 0, 0, time.UTC)
	require.NoError(t, f.checkins.SubmitWeekly(ctx, f.companyID, memberID, "w05",
		[]KPIInput{{Status: "green"}}, ""))

	at := time.Date(2026, 2, 7, 10, 5, 0, 0, time.UTC)
	summary, err := f.reminders.Run(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Sent)
}

func TestMemberWithoutEmailSkipped(t *testing.T) {
	f := newReminderFixture(t)
	ctx := context.Background()
	f.enable(t, allOn())

	// Documents written by the legacy client can hold members with no
	// email address. They must not be evaluated, dispatched or logged.
	cfg, err := f.accounts.LoadConfig(ctx)
	require.NoError(t, err)
	comp := cfg.Companies[f.companyID]
	team := comp.Teams[f.teamID]
	team.Members = append(team.Members, company.Member{ID: "m-nomail", Name: "No Mail"})
	comp.Teams[f.teamID] = team
	cfg.Companies[f.companyID] = comp
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, f.store.Set(ctx, configKey(), string(raw)))

	summary, err := f.reminders.Run(ctx, f.clock)
	require.NoError(t, err)
	assert.Equal(t, reminder.RunSummary{}, summary)
	assert.Empty(t, f.sender.sent)

	log, err := f.reminders.Log(ctx, f.companyID, 10)
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestPausedMemberSkipped(t *testing.T) {
	f := newReminderFixture(t)
	ctx := context.Background()
	pausedID := f.addMember(t, "Jane", "jane@acme.test")
	f.addMember(t, "Kai", "kai@acme.test")

	cfg := allOn()
	cfg.PausedMembers = map[string]reminder.PausedMember{
		pausedID: {PausedAt: f.clock, Reason: "parental leave"},
	}
	f.enable(t, cfg)

	summary, err := f.reminders.Run(ctx, f.clock)
	require.NoError(t, err)
	// Paused members are not evaluated at all.
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, []string{"kai@acme.test"}, f.sender.sent)
}

func TestTypeTogglesRespected(t *testing.T) {
	f := newReminderFixture(t)
	ctx := context.Background()
	f.addMember(t, "Jane", "jane@acme.test")
	f.enable(t, reminder.Config{Enabled: true, DailyEnabled: false, WeeklyEnabled: true})

	summary, err := f.reminders.Run(ctx, f.clock)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Sent)

	f.enable(t, reminder.Config{Enabled: false, DailyEnabled: true, WeeklyEnabled: true})
	summary, err = f.reminders.Run(ctx, f.clock)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
}

func TestTimezoneDrivesTriggerWindow(t *testing.T) {
	f := newReminderFixture(t)
	ctx := context.Background()
	memberID := f.addMember(t, "Jane", "jane@acme.test")
	require.NoError(t, f.accounts.SetMemberTimezone(ctx, f.companyID, memberID, "Asia/Tokyo"))
	f.enable(t, allOn())

	// 18:05 UTC is 03:05 next day in Tokyo: nothing fires.
	summary, err := f.reminders.Run(ctx, time.Date(2026, 2, 4, 18, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Sent)

	// 09:05 UTC on Wednesday is 18:05 Tokyo.
	summary, err = f.reminders.Run(ctx, time.Date(2026, 2, 4, 9, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)

	log, err := f.reminders.Log(ctx, f.companyID, 1)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-04", log[0].Date)
}

func TestLogTrimsToNewest(t *testing.T) {
	f := newReminderFixture(t)
	ctx := context.Background()
	f.enable(t, allOn())
	f.reminders.opts.MaxLog = 5

	for i := 0; i < 8; i++ {
		f.addMember(t, fmt.Sprintf("M%d", i), fmt.Sprintf("m%d@acme.test", i))
	}

	summary, err := f.reminders.Run(ctx, f.clock)
	require.NoError(t, err)
	assert.Equal(t, 8, summary.Sent)

	log, err := f.reminders.Log(ctx, f.companyID, 100)
	require.NoError(t, err)
	assert.Len(t, log, 5)
}
