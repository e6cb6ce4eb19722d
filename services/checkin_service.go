package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"checkinAPI/internal/checkin"
	"checkinAPI/internal/types/company"
	"checkinAPI/internal/types/entry"

	"github.com/rs/zerolog"
)

var ErrWeekLocked = errors.New("week is locked")

const selectableDayCount = 10

// CheckinService owns a company's operational document: daily and
// weekly entries, comments, stuck threads, seen flags and PTO marks.
// Every mutation is a read-patch-write of the whole document.
type CheckinService struct {
	store    Store
	accounts *AccountService
	logger   zerolog.Logger
	now      func() time.Time
}

func NewCheckinService(store Store, accounts *AccountService, logger zerolog.Logger) *CheckinService {
	return &CheckinService{store: store, accounts: accounts, logger: logger, now: time.Now}
}

// WithClock overrides the service clock. Tests only.
func (s *CheckinService) WithClock(now func() time.Time) *CheckinService {
	s.now = now
	return s
}

func (s *CheckinService) loadData(ctx context.Context, companyID string) (entry.CompanyData, error) {
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

func (s *CheckinService) saveData(ctx context.Context, companyID string, data entry.CompanyData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode company data: %w", err)
	}
	if err := s.store.Set(ctx, dataKey(companyID), string(raw)); err != nil {
		return fmt.Errorf("failed to save company data: %w", err)
	}
	return nil
}

func (s *CheckinService) companyAndMember(ctx context.Context, companyID, memberID string) (company.Company, company.Member, error) {
	cfg, err := s.accounts.LoadConfig(ctx)
	if err != nil {
		return company.Company{}, company.Member{}, err
	}
	comp, ok := cfg.Companies[companyID]
	if !ok {
		return company.Company{}, company.Member{}, ErrNotFound
	}
	if memberID == "" {
		return comp, company.Member{}, nil
	}
	member, _, ok := comp.FindMember(memberID)
	if !ok {
		return company.Company{}, company.Member{}, ErrNotFound
	}
	return comp, member, nil
}

// DailyInput is a member's daily submission. Worked is required; Didnt
// becomes required when Stuck is set.
type DailyInput struct {
	Worked string `json:"worked"`
	Didnt  string `json:"didnt"`
	Plan   string `json:"plan"`
	Stuck  bool   `json:"stuck"`
}

// SubmitDaily writes or edits a member's entry for a logical date. The
// date must be one of the member's selectable recent weekdays. Editing
// preserves the first submission time and flags the entry.
func (s *CheckinService) SubmitDaily(ctx context.Context, companyID, memberID, date string, in DailyInput) error {
	if strings.TrimSpace(in.Worked) == "" {
		return fmt.Errorf("%w: worked is required", ErrValidation)
	}
	if in.Stuck && strings.TrimSpace(in.Didnt) == "" {
		return fmt.Errorf("%w: describe what you are stuck on", ErrValidation)
	}

	comp, member, err := s.companyAndMember(ctx, companyID, memberID)
	if err != nil {
		return err
	}
	loc := checkin.ResolveTZ(member.Timezone, comp.Timezone)
	if !containsDate(checkin.WeekdaysBack(selectableDayCount, s.now().In(loc)), date) {
		return fmt.Errorf("%w: date %s is not open for submission", ErrValidation, date)
	}

	data, err := s.loadData(ctx, companyID)
	if err != nil {
		return err
	}

	key := entry.DailyKey(memberID, date)
	now := s.now()
	e := entry.DailyEntry{
		Worked: strings.TrimSpace(in.Worked),
		Didnt:  strings.TrimSpace(in.Didnt),
		Plan:   strings.TrimSpace(in.Plan),
		Stuck:  in.Stuck,
		At:     now,
	}
	if prev, ok := data.Daily[key]; ok {
		e.Edited = true
		e.OriginalAt = prev.OriginalAt
		if e.OriginalAt.IsZero() {
			e.OriginalAt = prev.At
		}
	}
	data.Daily[key] = e
	return s.saveData(ctx, companyID, data)
}

// KPIInput scores one KPI, positionally matching the member's current
// KPI list.
type KPIInput struct {
	Status string `json:"status"`
	Actual string `json:"actual"`
}

// SubmitWeekly writes a member's KPI self-assessment for a week. Every
// KPI must be scored and the week must still be inside its grace
// window. KPI labels are snapshotted into the entry.
func (s *CheckinService) SubmitWeekly(ctx context.Context, companyID, memberID, weekID string, kpis []KPIInput, challenge string) error {
	comp, member, err := s.companyAndMember(ctx, companyID, memberID)
	if err != nil {
		return err
	}
	if len(member.KPIs) == 0 {
		return fmt.Errorf("%w: no KPIs assigned", ErrValidation)
	}
	if len(kpis) != len(member.KPIs) {
		return fmt.Errorf("%w: expected %d KPI results", ErrValidation, len(member.KPIs))
	}
	for i, k := range kpis {
		if k.Status != entry.KPIGreen && k.Status != entry.KPIRed {
			return fmt.Errorf("%w: KPI %d is not scored", ErrValidation, i+1)
		}
	}

	loc := checkin.ResolveTZ(member.Timezone, comp.Timezone)
	now := s.now()
	weeks := checkin.GenerateWeeks(now.In(loc))
	idx, ok := weekIndexForID(weeks, weekID)
	if !ok {
		return fmt.Errorf("%w: unknown week %s", ErrValidation, weekID)
	}
	if weeks[idx].Locked(now) {
		return ErrWeekLocked
	}

	results := make([]entry.KPIResult, len(kpis))
	for i, k := range kpis {
		results[i] = entry.KPIResult{
			Name:   member.KPIs[i],
			Status: k.Status,
			Actual: strings.TrimSpace(k.Actual),
		}
	}

	data, err := s.loadData(ctx, companyID)
	if err != nil {
		return err
	}
	data.Weekly[entry.WeeklyKey(memberID, weekID)] = entry.WeeklyEntry{
		KPIs:      results,
		Challenge: strings.TrimSpace(challenge),
		At:        now,
	}
	return s.saveData(ctx, companyID, data)
}

// TogglePTO flips today's PTO mark for the member, in the member's
// timezone. Only the current day can be toggled.
func (s *CheckinService) TogglePTO(ctx context.Context, companyID, memberID string) (bool, error) {
	comp, member, err := s.companyAndMember(ctx, companyID, memberID)
	if err != nil {
		return false, err
	}
	loc := checkin.ResolveTZ(member.Timezone, comp.Timezone)
	today := checkin.DateString(s.now().In(loc))

	data, err := s.loadData(ctx, companyID)
	if err != nil {
		return false, err
	}
	key := entry.PTOKey(memberID, today)
	on := !data.PTO[key]
	if on {
		data.PTO[key] = true
	} else {
		delete(data.PTO, key)
	}
	if err := s.saveData(ctx, companyID, data); err != nil {
		return false, err
	}
	return on, nil
}

// SetDailyComment writes CEO feedback on a daily entry. An existing
// comment is overwritten; empty text removes it.
func (s *CheckinService) SetDailyComment(ctx context.Context, companyID, memberID, date, text string) error {
	return s.setComment(ctx, companyID, entry.DailyCommentKey(memberID, date), text)
}

// SetWeeklyComment writes CEO feedback on a weekly entry.
func (s *CheckinService) SetWeeklyComment(ctx context.Context, companyID, memberID, weekID, text string) error {
	return s.setComment(ctx, companyID, entry.WeeklyCommentKey(memberID, weekID), text)
}

func (s *CheckinService) setComment(ctx context.Context, companyID, key, text string) error {
	data, err := s.loadData(ctx, companyID)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		delete(data.Comments, key)
	} else {
		data.Comments[key] = entry.Comment{Text: text, At: s.now()}
	}
	return s.saveData(ctx, companyID, data)
}

// MarkSeen records that a member has viewed feedback under a comment
// key.
func (s *CheckinService) MarkSeen(ctx context.Context, companyID, memberID, commentKey string) error {
	data, err := s.loadData(ctx, companyID)
	if err != nil {
		return err
	}
	data.Seen[entry.SeenKey(memberID, commentKey)] = true
	return s.saveData(ctx, companyID, data)
}

// ReplyStuck appends a message to a stuck thread. From is "ceo" or the
// replying member's ID.
func (s *CheckinService) ReplyStuck(ctx context.Context, companyID, memberID, date, from, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: reply text is required", ErrValidation)
	}
	data, err := s.loadData(ctx, companyID)
	if err != nil {
		return err
	}
	key := entry.StuckKey(memberID, date)
	data.Stuck[key] = append(data.Stuck[key], entry.StuckMessage{
		Text: text,
		From: from,
		At:   s.now(),
	})
	return s.saveData(ctx, companyID, data)
}

// Feed item sort buckets. Lower sorts first.
const (
	feedStuck = iota
	feedSubmitted
	feedMissing
	feedPTO
)

// FeedItem is one member's row in the CEO daily feed.
type FeedItem struct {
	Member    company.Member       `json:"member"`
	TeamID    string               `json:"teamId"`
	Entry     *entry.DailyEntry    `json:"entry,omitempty"`
	Submitted string               `json:"submitted,omitempty"`
	Late      bool                 `json:"late,omitempty"`
	PTO       bool                 `json:"pto,omitempty"`
	Comment   *entry.Comment       `json:"comment,omitempty"`
	Thread    []entry.StuckMessage `json:"thread,omitempty"`
	bucket    int
}

// DailyFeed builds the CEO review list for one date. Unresolved stuck
// entries sort first, then submissions, then members with nothing, PTO
// last.
func (s *CheckinService) DailyFeed(ctx context.Context, companyID, date string) ([]FeedItem, error) {
	comp, _, err := s.companyAndMember(ctx, companyID, "")
	if err != nil {
		return nil, err
	}
	data, err := s.loadData(ctx, companyID)
	if err != nil {
		return nil, err
	}

	var items []FeedItem
	for teamID, team := range comp.Teams {
		for _, m := range team.Members {
			item := FeedItem{Member: m.Sanitized(), TeamID: teamID, bucket: feedMissing}
			loc := checkin.ResolveTZ(m.Timezone, comp.Timezone)

			if e, ok := data.Daily[entry.DailyKey(m.ID, date)]; ok {
				e := e
				item.Entry = &e
				item.Late = checkin.IsLate(date, e.At, loc)
				item.Submitted = checkin.FormatSubmission(date, e.At, loc)
				item.bucket = feedSubmitted
				if e.Stuck {
					item.Thread = data.Stuck[entry.StuckKey(m.ID, date)]
					if !threadResolved(item.Thread) {
						item.bucket = feedStuck
					}
				}
			} else if data.PTO[entry.PTOKey(m.ID, date)] {
				item.PTO = true
				item.bucket = feedPTO
			}
			if c, ok := data.Comments[entry.DailyCommentKey(m.ID, date)]; ok {
				c := c
				item.Comment = &c
			}
			items = append(items, item)
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].bucket != items[j].bucket {
			return items[i].bucket < items[j].bucket
		}
		return items[i].Member.Name < items[j].Member.Name
	})
	return items, nil
}

// threadResolved reports whether the CEO has replied in a stuck thread.
func threadResolved(thread []entry.StuckMessage) bool {
	for _, msg := range thread {
		if msg.From == RoleCEO {
			return true
		}
	}
	return false
}

// BoardRow is one member's row in the CEO weekly table.
type BoardRow struct {
	Member     company.Member     `json:"member"`
	TeamID     string             `json:"teamId"`
	Status     checkin.WeekStatus `json:"status"`
	Entry      *entry.WeeklyEntry `json:"entry,omitempty"`
	DailyCount int                `json:"dailyCount"`
	Expected   int                `json:"expected"`
	Comment    *entry.Comment     `json:"comment,omitempty"`
}

// WeeklyBoard builds the CEO review table for one week.
func (s *CheckinService) WeeklyBoard(ctx context.Context, companyID, weekID string) ([]BoardRow, error) {
	comp, _, err := s.companyAndMember(ctx, companyID, "")
	if err != nil {
		return nil, err
	}
	data, err := s.loadData(ctx, companyID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	loc := checkin.ResolveTZ("", comp.Timezone)
	weeks := checkin.GenerateWeeks(now.In(loc))
	idx, ok := weekIndexForID(weeks, weekID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown week %s", ErrValidation, weekID)
	}

	var rows []BoardRow
	for teamID, team := range comp.Teams {
		for _, m := range team.Members {
			row := BoardRow{Member: m.Sanitized(), TeamID: teamID}
			row.Status = s.statusFor(data, weeks, idx, m, loc, now)
			if e, ok := data.Weekly[entry.WeeklyKey(m.ID, weekID)]; ok {
				e := e
				row.Entry = &e
			}
			summary := checkin.WeekDailySummary(weeks[idx], now.In(loc),
				dailyLookup(data, m.ID), ptoLookup(data, m.ID))
			row.DailyCount = summary.Count
			row.Expected = summary.Expected
			if c, ok := data.Comments[entry.WeeklyCommentKey(m.ID, weekID)]; ok {
				c := c
				row.Comment = &c
			}
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Member.Name < rows[j].Member.Name
	})
	return rows, nil
}

const heatmapWeeks = 12

// HeatmapCell is one member-week in the CEO heatmap.
type HeatmapCell struct {
	WeekID   string             `json:"weekId"`
	Status   checkin.WeekStatus `json:"status"`
	Daily    int                `json:"daily"`
	Expected int                `json:"expected"`
}

// HeatmapRow covers a member's recent weeks, newest last.
type HeatmapRow struct {
	Member company.Member `json:"member"`
	Cells  []HeatmapCell  `json:"cells"`
}

// Heatmap builds the last-12-weeks status grid for every member.
func (s *CheckinService) Heatmap(ctx context.Context, companyID string) ([]HeatmapRow, error) {
	comp, _, err := s.companyAndMember(ctx, companyID, "")
	if err != nil {
		return nil, err
	}
	data, err := s.loadData(ctx, companyID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	loc := checkin.ResolveTZ("", comp.Timezone)
	weeks := checkin.GenerateWeeks(now.In(loc))
	current := checkin.CurrentWeekIndex(weeks, now)
	start := current - heatmapWeeks + 1
	if start < 0 {
		start = 0
	}

	var rows []HeatmapRow
	for _, m := range comp.AllMembers() {
		row := HeatmapRow{Member: m.Sanitized()}
		for i := start; i <= current; i++ {
			summary := checkin.WeekDailySummary(weeks[i], now.In(loc),
				dailyLookup(data, m.ID), ptoLookup(data, m.ID))
			row.Cells = append(row.Cells, HeatmapCell{
				WeekID:   weeks[i].ID,
				Status:   s.statusFor(data, weeks, i, m, loc, now),
				Daily:    summary.Count,
				Expected: summary.Expected,
			})
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Member.Name < rows[j].Member.Name
	})
	return rows, nil
}

// DayDetail is one logical date inside a member drilldown.
type DayDetail struct {
	Date      string            `json:"date"`
	Label     string            `json:"label"`
	Entry     *entry.DailyEntry `json:"entry,omitempty"`
	Submitted string            `json:"submitted,omitempty"`
	Late      bool              `json:"late,omitempty"`
	PTO       bool              `json:"pto,omitempty"`
	Comment   *entry.Comment    `json:"comment,omitempty"`
}

// MemberWeekDetail is the CEO drilldown into one member's week.
type MemberWeekDetail struct {
	Member company.Member     `json:"member"`
	Week   checkin.Week       `json:"week"`
	Status checkin.WeekStatus `json:"status"`
	Entry  *entry.WeeklyEntry `json:"entry,omitempty"`
	Days   []DayDetail        `json:"days"`
}

// MemberDetail builds the drilldown view of one member's week.
func (s *CheckinService) MemberDetail(ctx context.Context, companyID, memberID, weekID string) (MemberWeekDetail, error) {
	comp, member, err := s.companyAndMember(ctx, companyID, memberID)
	if err != nil {
		return MemberWeekDetail{}, err
	}
	data, err := s.loadData(ctx, companyID)
	if err != nil {
		return MemberWeekDetail{}, err
	}

	now := s.now()
	loc := checkin.ResolveTZ(member.Timezone, comp.Timezone)
	weeks := checkin.GenerateWeeks(now.In(loc))
	idx, ok := weekIndexForID(weeks, weekID)
	if !ok {
		return MemberWeekDetail{}, fmt.Errorf("%w: unknown week %s", ErrValidation, weekID)
	}

	detail := MemberWeekDetail{
		Member: member.Sanitized(),
		Week:   weeks[idx],
		Status: s.statusFor(data, weeks, idx, member, loc, now),
	}
	if e, ok := data.Weekly[entry.WeeklyKey(memberID, weekID)]; ok {
		e := e
		detail.Entry = &e
	}
	for _, date := range weeks[idx].Weekdays() {
		day := DayDetail{Date: date, Label: checkin.DayLabel(date)}
		if e, ok := data.Daily[entry.DailyKey(memberID, date)]; ok {
			e := e
			day.Entry = &e
			day.Late = checkin.IsLate(date, e.At, loc)
			day.Submitted = checkin.FormatSubmission(date, e.At, loc)
		}
		day.PTO = data.PTO[entry.PTOKey(memberID, date)]
		if c, ok := data.Comments[entry.DailyCommentKey(memberID, date)]; ok {
			c := c
			day.Comment = &c
		}
		detail.Days = append(detail.Days, day)
	}
	return detail, nil
}

// WeekHistoryItem is one graded week in a member summary.
type WeekHistoryItem struct {
	WeekID string             `json:"weekId"`
	Label  string             `json:"label"`
	Status checkin.WeekStatus `json:"status"`
}

// MemberSummary is the streak and hit-rate rollup for one member.
type MemberSummary struct {
	Member  company.Member    `json:"member"`
	Streak  int               `json:"streak"`
	HitRate *int              `json:"hitRate"`
	Green   int               `json:"green"`
	Red     int               `json:"red"`
	History []WeekHistoryItem `json:"history"`
}

// Summary computes a member's streak, hit rate and per-week history
// from enrollment through the current week.
func (s *CheckinService) Summary(ctx context.Context, companyID, memberID string) (MemberSummary, error) {
	comp, member, err := s.companyAndMember(ctx, companyID, memberID)
	if err != nil {
		return MemberSummary{}, err
	}
	data, err := s.loadData(ctx, companyID)
	if err != nil {
		return MemberSummary{}, err
	}

	now := s.now()
	loc := checkin.ResolveTZ(member.Timezone, comp.Timezone)
	weeks := checkin.GenerateWeeks(now.In(loc))
	current := checkin.CurrentWeekIndex(weeks, now)
	enroll := checkin.EnrollmentWeekIndex(member.AddedAt, loc)

	resolve := func(i int) checkin.WeekStatus {
		return s.statusFor(data, weeks, i, member, loc, now)
	}

	summary := MemberSummary{
		Member:  member.Sanitized(),
		Streak:  checkin.WeekStreak(current, resolve),
		HitRate: checkin.HitRate(enroll, current, resolve),
	}
	for i := enroll; i <= current && i < len(weeks); i++ {
		if i < 0 {
			continue
		}
		st := resolve(i)
		switch st {
		case checkin.StatusGreen:
			summary.Green++
		case checkin.StatusRed, checkin.StatusAutoRed:
			summary.Red++
		}
		summary.History = append(summary.History, WeekHistoryItem{
			WeekID: weeks[i].ID,
			Label:  weeks[i].Label,
			Status: st,
		})
	}
	return summary, nil
}

// SelectableDays returns the member's open submission dates, newest
// first, in the member's timezone.
func (s *CheckinService) SelectableDays(ctx context.Context, companyID, memberID string) ([]string, error) {
	comp, member, err := s.companyAndMember(ctx, companyID, memberID)
	if err != nil {
		return nil, err
	}
	loc := checkin.ResolveTZ(member.Timezone, comp.Timezone)
	return checkin.WeekdaysBack(selectableDayCount, s.now().In(loc)), nil
}

func (s *CheckinService) statusFor(data entry.CompanyData, weeks []checkin.Week, idx int, m company.Member, loc *time.Location, now time.Time) checkin.WeekStatus {
	var e *entry.WeeklyEntry
	if idx >= 0 && idx < len(weeks) {
		if we, ok := data.Weekly[entry.WeeklyKey(m.ID, weeks[idx].ID)]; ok {
			e = &we
		}
	}
	enroll := checkin.EnrollmentWeekIndex(m.AddedAt, loc)
	return checkin.ResolveWeek(weeks, idx, e, enroll, now)
}

func dailyLookup(data entry.CompanyData, memberID string) func(date string) *entry.DailyEntry {
	return func(date string) *entry.DailyEntry {
		if e, ok := data.Daily[entry.DailyKey(memberID, date)]; ok {
			return &e
		}
		return nil
	}
}

func ptoLookup(data entry.CompanyData, memberID string) func(date string) bool {
	return func(date string) bool {
		return data.PTO[entry.PTOKey(memberID, date)]
	}
}

func weekIndexForID(weeks []checkin.Week, weekID string) (int, bool) {
	for i := 0; i < len(weeks); i++ {
		if weeks[i].ID == weekID {
			return i, true
		}
	}
	return 0, false
}

func containsDate(dates []string, date string) bool {
	for _, d := range dates {
		if d == date {
			return true
		}
	}
	return false
}
