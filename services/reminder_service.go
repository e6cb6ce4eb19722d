package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"checkinAPI/internal/checkin"
	"checkinAPI/internal/types/company"
	"checkinAPI/internal/types/entry"
	"checkinAPI/internal/types/reminder"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ReminderOptions tunes the dispatch engine. Zero values take the
// defaults below.
type ReminderOptions struct {
	AppURL        string
	DailyHour     int
	WeeklyHour    int
	WindowMinutes int
	MaxLog        int
	SendPerSecond float64
}

const (
	defaultDailyHour  = 18
	defaultWeeklyHour = 10
	defaultWindowMin  = 15
	defaultMaxLog     = 500
	defaultSendRate   = 5
)

// ReminderService evaluates member-local trigger windows and sends
// nudge emails. It holds no schedule of its own; an external cron hits
// the run endpoint at least every WindowMinutes.
type ReminderService struct {
	store    Store
	accounts *AccountService
	sender   EmailSender
	logger   zerolog.Logger
	limiter  *rate.Limiter
	opts     ReminderOptions
	now      func() time.Time
}

func NewReminderService(store Store, accounts *AccountService, sender EmailSender, logger zerolog.Logger, opts ReminderOptions) *ReminderService {
	if opts.DailyHour == 0 {
		opts.DailyHour = defaultDailyHour
	}
	if opts.WeeklyHour == 0 {
		opts.WeeklyHour = defaultWeeklyHour
	}
	if opts.WindowMinutes == 0 {
		opts.WindowMinutes = defaultWindowMin
	}
	if opts.MaxLog == 0 {
		opts.MaxLog = defaultMaxLog
	}
	if opts.SendPerSecond == 0 {
		opts.SendPerSecond = defaultSendRate
	}
	return &ReminderService{
		store:    store,
		accounts: accounts,
		sender:   sender,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Limit(opts.SendPerSecond), 1),
		opts:     opts,
		now:      time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *ReminderService) WithClock(now func() time.Time) *ReminderService {
	s.now = now
	return s
}

// Config returns a company's stored reminder settings, or a disabled
// zero config when none exist yet.
func (s *ReminderService) Config(ctx context.Context, companyID string) (reminder.Config, error) {
	cfg, _, err := s.loadConfig(ctx, companyID)
	return cfg, err
}

func (s *ReminderService) loadConfig(ctx context.Context, companyID string) (reminder.Config, bool, error) {
	var cfg reminder.Config
	raw, found, err := s.store.Get(ctx, reminderCfgKey(companyID))
	if err != nil {
		return cfg, false, fmt.Errorf("failed to load reminder config: %w", err)
	}
	if !found {
		return cfg, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return cfg, false, fmt.Errorf("failed to decode reminder config: %w", err)
	}
	return cfg, true, nil
}

// UpdateConfig replaces a company's reminder settings.
func (s *ReminderService) UpdateConfig(ctx context.Context, companyID string, cfg reminder.Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode reminder config: %w", err)
	}
	if err := s.store.Set(ctx, reminderCfgKey(companyID), string(raw)); err != nil {
		return fmt.Errorf("failed to save reminder config: %w", err)
	}
	return nil
}

// Log returns a company's send log, newest first.
func (s *ReminderService) Log(ctx context.Context, companyID string, limit int) ([]reminder.LogEntry, error) {
	log, err := s.loadLog(ctx, companyID)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(log)-1; i < j; i, j = i+1, j-1 {
		log[i], log[j] = log[j], log[i]
	}
	if limit > 0 && len(log) > limit {
		log = log[:limit]
	}
	return log, nil
}

func (s *ReminderService) loadLog(ctx context.Context, companyID string) ([]reminder.LogEntry, error) {
	raw, found, err := s.store.Get(ctx, reminderLogKey(companyID))
	if err != nil {
		return nil, fmt.Errorf("failed to load reminder log: %w", err)
	}
	if !found {
		return nil, nil
	}
	var log []reminder.LogEntry
	if err := json.Unmarshal([]byte(raw), &log); err != nil {
		return nil, fmt.Errorf("failed to decode reminder log: %w", err)
	}
	return log, nil
}

func (s *ReminderService) saveLog(ctx context.Context, companyID string, log []reminder.LogEntry) error {
	if len(log) > s.opts.MaxLog {
		log = log[len(log)-s.opts.MaxLog:]
	}
	raw, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("failed to encode reminder log: %w", err)
	}
	if err := s.store.Set(ctx, reminderLogKey(companyID), string(raw)); err != nil {
		return fmt.Errorf("failed to save reminder log: %w", err)
	}
	return nil
}

// Run evaluates every member of every company against the trigger
// windows at the given instant and sends due reminders. now is the
// caller's clock so the trigger endpoint can pin it for debugging.
func (s *ReminderService) Run(ctx context.Context, now time.Time) (reminder.RunSummary, error) {
	var summary reminder.RunSummary

	org, err := s.accounts.LoadConfig(ctx)
	if err != nil {
		return summary, err
	}

	companyIDs := make([]string, 0, len(org.Companies))
	for id := range org.Companies {
		companyIDs = append(companyIDs, id)
	}
	sort.Strings(companyIDs)

	for _, companyID := range companyIDs {
		if err := s.runCompany(ctx, companyID, org.Companies[companyID], now, &summary); err != nil {
			s.logger.Error().Err(err).Str("company_id", companyID).Msg("reminder run failed for company")
		}
	}
	return summary, nil
}

func (s *ReminderService) runCompany(ctx context.Context, companyID string, comp company.Company, now time.Time, summary *reminder.RunSummary) error {
	cfg, found, err := s.loadConfig(ctx, companyID)
	if err != nil {
		return err
	}
	// No stored config means the company never opted in.
	if !found || !cfg.Enabled {
		return nil
	}

	data, err := s.checkinData(ctx, companyID)
	if err != nil {
		return err
	}
	log, err := s.loadLog(ctx, companyID)
	if err != nil {
		return err
	}

	dirty := false
	for _, m := range comp.AllMembers() {
		// Legacy documents can hold members with no email address.
		if m.Email == "" {
			continue
		}
		if _, paused := cfg.PausedMembers[m.ID]; paused {
			continue
		}
		summary.Processed++
		loc := checkin.ResolveTZ(m.Timezone, comp.Timezone)
		local := checkin.LocalPartsIn(now, loc)

		if cfg.DailyEnabled && s.dailyDue(local, m, data, log) {
			log = append(log, s.dispatch(ctx, companyID, comp, m, reminder.TypeDaily, local.Date, "", now, summary))
			dirty = true
		}
		if cfg.WeeklyEnabled {
			if friday, weekID, due := s.weeklyDue(local, m, data, log); due {
				log = append(log, s.dispatch(ctx, companyID, comp, m, reminder.TypeWeekly, friday, weekID, now, summary))
				dirty = true
			}
		}
	}

	if dirty {
		return s.saveLog(ctx, companyID, log)
	}
	return nil
}

func (s *ReminderService) checkinData(ctx context.Context, companyID string) (entry.CompanyData, error) {
	var data entry.CompanyData
	raw, found, err := s.store.Get(ctx, dataKey(companyID))
	if err != nil {
		return data, fmt.Errorf("failed to load company data: %w", err)
	}
	if found {
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return data, fmt.Errorf("failed to decode company data: %w", err)
		}
	}
	data.Normalize()
	return data, nil
}

func (s *ReminderService) inWindow(local checkin.LocalParts, hour int) bool {
	return local.Hour == hour && local.Minute < s.opts.WindowMinutes
}

func (s *ReminderService) dailyDue(local checkin.LocalParts, m company.Member, data entry.CompanyData, log []reminder.LogEntry) bool {
	if !s.inWindow(local, s.opts.DailyHour) {
		return false
	}
	if local.Weekday == time.Saturday || local.Weekday == time.Sunday {
		return false
	}
	if _, ok := data.Daily[entry.DailyKey(m.ID, local.Date)]; ok {
		return false
	}
	if data.PTO[entry.PTOKey(m.ID, local.Date)] {
		return false
	}
	return !reminder.AlreadySent(log, m.ID, reminder.TypeDaily, local.Date)
}

// weeklyDue fires Saturday morning for the week that just ended. The
// logical date is the member-local Friday.
func (s *ReminderService) weeklyDue(local checkin.LocalParts, m company.Member, data entry.CompanyData, log []reminder.LogEntry) (string, string, bool) {
	if local.Weekday != time.Saturday || !s.inWindow(local, s.opts.WeeklyHour) {
		return "", "", false
	}
	friday := checkin.StepDate(local.Date, -1)
	weekID := checkin.WeekIDForDate(friday)
	if weekID == "w00" {
		return "", "", false
	}
	if _, ok := data.Weekly[entry.WeeklyKey(m.ID, weekID)]; ok {
		return "", "", false
	}
	if reminder.AlreadySent(log, m.ID, reminder.TypeWeekly, friday) {
		return "", "", false
	}
	return friday, weekID, true
}

func (s *ReminderService) dispatch(ctx context.Context, companyID string, comp company.Company, m company.Member, typ, date, weekID string, now time.Time, summary *reminder.RunSummary) reminder.LogEntry {
	logEntry := reminder.LogEntry{
		ID:          uuid.New().String(),
		Type:        typ,
		MemberID:    m.ID,
		MemberName:  m.Name,
		MemberEmail: m.Email,
		CompanyID:   companyID,
		Date:        date,
		WeekID:      weekID,
		SentAt:      now,
		Status:      reminder.StatusSent,
	}

	subject, body := s.compose(typ, comp, m, weekID)

	if err := s.limiter.Wait(ctx); err != nil {
		logEntry.Status = reminder.StatusFailed
		logEntry.Error = err.Error()
		summary.Failed++
		return logEntry
	}
	if err := s.sender.Send(ctx, m.Email, m.Name, subject, body); err != nil {
		s.logger.Error().Err(err).Str("member_id", m.ID).Str("type", typ).Msg("reminder send failed")
		logEntry.Status = reminder.StatusFailed
		logEntry.Error = err.Error()
		summary.Failed++
		return logEntry
	}

	s.logger.Info().Str("member_id", m.ID).Str("type", typ).Str("date", date).Msg("reminder sent")
	summary.Sent++
	return logEntry
}

func (s *ReminderService) compose(typ string, comp company.Company, m company.Member, weekID string) (subject, body string) {
	switch typ {
	case reminder.TypeWeekly:
		label := checkin.WeekLabelForID(weekID)
		subject = fmt.Sprintf("Weekly KPIs due — %s, %s", label, comp.Name)
		body = fmt.Sprintf(
			"Hi %s,\n\nYour KPI self-assessment for %s hasn't been submitted yet. Submissions lock 48 hours after Friday's deadline.\n\nSubmit here: %s\n",
			m.FirstName(), label, s.opts.AppURL)
	default:
		subject = fmt.Sprintf("Your daily checkin is waiting — %s", comp.Name)
		body = fmt.Sprintf(
			"Hi %s,\n\nYou haven't posted today's update for %s yet. It takes two minutes.\n\nPost it here: %s\n",
			m.FirstName(), comp.Name, s.opts.AppURL)
	}
	return subject, body
}
