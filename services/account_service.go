package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkinAPI/internal/checkin"
	"checkinAPI/internal/types/company"
	"checkinAPI/utils"

	"github.com/rs/zerolog"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadySetup       = errors.New("already set up")
	ErrNotSetup           = errors.New("not set up")
	ErrEmailTaken         = errors.New("email already in use")
	ErrValidation         = errors.New("validation failed")
)

const (
	RoleCEO    = "ceo"
	RoleMember = "member"
)

// Session identifies an authenticated caller. MemberID is empty for the
// CEO.
type Session struct {
	Role      string `json:"role"`
	CompanyID string `json:"compId,omitempty"`
	MemberID  string `json:"memberId,omitempty"`
}

// AccountService owns the org structure document: CEO credentials,
// companies, teams, members and the email login index.
type AccountService struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewAccountService(store Store, logger zerolog.Logger) *AccountService {
	return &AccountService{store: store, logger: logger, now: time.Now}
}

// WithClock overrides the service clock. Tests only.
func (s *AccountService) WithClock(now func() time.Time) *AccountService {
	s.now = now
	return s
}

// LoadConfig reads the org document. A missing document returns
// ErrNotSetup so callers can distinguish first boot from a read fault.
func (s *AccountService) LoadConfig(ctx context.Context) (company.AppConfig, error) {
	raw, found, err := s.store.Get(ctx, configKey())
	if err != nil {
		return company.AppConfig{}, fmt.Errorf("failed to load org config: %w", err)
	}
	if !found {
		return company.AppConfig{}, ErrNotSetup
	}

	var cfg company.AppConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return company.AppConfig{}, fmt.Errorf("failed to decode org config: %w", err)
	}
	normalizeConfig(&cfg)
	return cfg, nil
}

func (s *AccountService) saveConfig(ctx context.Context, cfg company.AppConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode org config: %w", err)
	}
	if err := s.store.Set(ctx, configKey(), string(raw)); err != nil {
		return fmt.Errorf("failed to save org config: %w", err)
	}
	return nil
}

func normalizeConfig(cfg *company.AppConfig) {
	if cfg.Companies == nil {
		cfg.Companies = map[string]company.Company{}
	}
	if cfg.Users == nil {
		cfg.Users = map[string]company.UserRef{}
	}
}

// IsSetup reports whether the org document exists yet.
func (s *AccountService) IsSetup(ctx context.Context) (bool, error) {
	_, err := s.LoadConfig(ctx)
	if errors.Is(err, ErrNotSetup) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Setup creates the org document with CEO credentials and the first
// company. Rejected once a document exists.
func (s *AccountService) Setup(ctx context.Context, ceoEmail, ceoPassword, companyName, companyTZ string) (string, error) {
	ceoEmail = normalizeEmail(ceoEmail)
	if ceoEmail == "" || ceoPassword == "" || strings.TrimSpace(companyName) == "" {
		return "", fmt.Errorf("%w: email, password and company name are required", ErrValidation)
	}

	if ok, err := s.IsSetup(ctx); err != nil {
		return "", err
	} else if ok {
		return "", ErrAlreadySetup
	}

	companyID := utils.GenID()
	cfg := company.AppConfig{
		CEOEmail:    ceoEmail,
		CEOPassword: utils.HashPassword(ceoPassword),
		Companies: map[string]company.Company{
			companyID: {
				Name:     strings.TrimSpace(companyName),
				Timezone: companyTZ,
				Teams:    map[string]company.Team{},
			},
		},
		Users: map[string]company.UserRef{},
	}

	if err := s.saveConfig(ctx, cfg); err != nil {
		return "", err
	}
	s.logger.Info().Str("company_id", companyID).Msg("initial setup complete")
	return companyID, nil
}

// Authenticate checks CEO credentials first, then the member login
// index.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)

	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		return Session{}, err
	}

	if email == normalizeEmail(cfg.CEOEmail) {
		if !utils.CheckPassword(cfg.CEOPassword, password) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{Role: RoleCEO}, nil
	}

	ref, ok := cfg.Users[email]
	if !ok {
		return Session{}, ErrInvalidCredentials
	}
	comp, ok := cfg.Companies[ref.CompanyID]
	if !ok {
		return Session{}, ErrInvalidCredentials
	}
	member, _, ok := comp.FindMember(ref.MemberID)
	if !ok {
		return Session{}, ErrInvalidCredentials
	}
	if !utils.CheckPassword(member.Password, password) {
		return Session{}, ErrInvalidCredentials
	}
	return Session{Role: RoleMember, CompanyID: ref.CompanyID, MemberID: ref.MemberID}, nil
}

// ChangeCEOPassword verifies the current password before replacing it.
func (s *AccountService) ChangeCEOPassword(ctx context.Context, current, next string) error {
	if next == "" {
		return fmt.Errorf("%w: new password is required", ErrValidation)
	}
	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(cfg.CEOPassword, current) {
		return ErrInvalidCredentials
	}
	cfg.CEOPassword = utils.HashPassword(next)
	return s.saveConfig(ctx, cfg)
}

// ChangeMemberPassword verifies the current password before replacing
// it.
func (s *AccountService) ChangeMemberPassword(ctx context.Context, companyID, memberID, current, next string) error {
	if next == "" {
		return fmt.Errorf("%w: new password is required", ErrValidation)
	}
	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		return err
	}
	comp, ok := cfg.Companies[companyID]
	if !ok {
		return ErrNotFound
	}
	member, teamID, ok := comp.FindMember(memberID)
	if !ok {
		return ErrNotFound
	}
	if !utils.CheckPassword(member.Password, current) {
		return ErrInvalidCredentials
	}
	member.Password = utils.HashPassword(next)
	replaceMember(&cfg, companyID, teamID, member)
	return s.saveConfig(ctx, cfg)
}

// ResetMemberPassword generates a fresh password for a member and
// returns it in plain text, once. CEO only.
func (s *AccountService) ResetMemberPassword(ctx context.Context, companyID, memberID string) (string, error) {
	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		return "", err
	}
	comp, ok := cfg.Companies[companyID]
	if !ok {
		return "", ErrNotFound
	}
	member, teamID, ok := comp.FindMember(memberID)
	if !ok {
		return "", ErrNotFound
	}
	plain := utils.RandomPassword()
	member.Password = utils.HashPassword(plain)
	replaceMember(&cfg, companyID, teamID, member)
	if err := s.saveConfig(ctx, cfg); err != nil {
		return "", err
	}
	return plain, nil
}

// Companies returns every company with member credentials stripped,
// ready to serve to the admin UI.
func (s *AccountService) Companies(ctx context.Context) (map[string]company.Company, error) {
	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]company.Company, len(cfg.Companies))
	for id, comp := range cfg.Companies {
		out[id] = comp.Sanitized()
	}
	return out, nil
}

// AddCompany creates an empty company and returns its ID.
func (s *AccountService) AddCompany(ctx context.Context, name, tz string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: company name is required", ErrValidation)
	}
	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		return "", err
	}
	companyID := utils.GenID()
	cfg.Companies[companyID] = company.Company{
		Name:     name,
		Timezone: tz,
		Teams:    map[string]company.Team{},
	}
	if err := s.saveConfig(ctx, cfg); err != nil {
		return "", err
	}
	return companyID, nil
}

// RemoveCompany deletes a company and every login mapped into it. The
// company's operational document is left in the store as an orphan.
func (s *AccountService) RemoveCompany(ctx context.Context, companyID string) error {
	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		return err
	}
	if _, ok := cfg.Companies[companyID]; !ok {
		return ErrNotFound
	}
	delete(cfg.Companies, companyID)
	for email, ref := range cfg.Users {
		if ref.CompanyID == companyID {
			delete(cfg.Users, email)
		}
	}
	return s.saveConfig(ctx, cfg)
}

// SetCompanyTimezone validates the IANA name before storing it.
func (s *AccountService) SetCompanyTimezone(ctx context.Context, companyID, tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrValidation, tz)
	}
	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		return err
	}
	comp, ok := cfg.Companies[companyID]
	if !ok {
		return ErrNotFound
	}
	comp.Timezone = tz
	cfg.Companies[companyID] = comp
	return s.saveConfig(ctx, cfg)
}

// AddTeam creates an empty team and returns its ID.
func (s *AccountService) AddTeam(ctx context.Context, companyID, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: team name is required", ErrValidation)
	}
	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		return "", err
	}
	comp, ok := cfg.Companies[companyID]
	if !ok {
		return "", ErrNotFound
	}
	teamID := utils.GenID()
	if comp.Teams == nil {
		comp.Teams = map[string]company.Team{}
	}
	comp.Teams[teamID] = company.Team{Name: name}
	cfg.Companies[companyID] = comp
	if err := s.saveConfig(ctx, cfg); err != nil {
		return "", err
	}
	return teamID, nil
}

// RemoveTeam deletes a team and the login mappings of every member in
// it.
func (s *AccountService) RemoveTeam(ctx context.Context, companyID, teamID string) error {
	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		return err
	}
	comp, ok := cfg.Companies[companyID]
	if !ok {
		return ErrNotFound
	}
	team, ok := comp.Teams[teamID]
	if !ok {
		return ErrNotFound
	}
	for _, m := range team.Members {
		delete(cfg.Users, normalizeEmail(m.Email))
	}
	delete(comp.Teams, teamID)
	cfg.Companies[companyID] = comp
	return s.saveConfig(ctx, cfg)
}

// AddMember creates a member with a generated ID, avatar initials, a
// hashed random initial password and today's enrollment stamp. The
// plain initial password is returned once.
func (s *AccountService) AddMember(ctx context.Context, companyID, teamID, name, email, role string, kpis []string) (company.Member, string, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" {
		return company.Member{}, "", fmt.Errorf("%w: name and email are required", ErrValidation)
	}

	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		return company.Member{}, "", err
	}
	if email == normalizeEmail(cfg.CEOEmail) {
		return company.Member{}, "", ErrEmailTaken
	}
	if _, taken := cfg.Users[email]; taken {
		return company.Member{}, "", ErrEmailTaken
	}
	comp, ok := cfg.Companies[companyID]
	if !ok {
		return company.Member{}, "", ErrNotFound
	}
	team, ok := comp.Teams[teamID]
	if !ok {
		return company.Member{}, "", ErrNotFound
	}

	plain := utils.RandomPassword()
	loc := checkin.ResolveTZ("", comp.Timezone)
	member := company.Member{
		ID:       utils.GenID(),
		Name:     name,
		Email:    email,
		Role:     role,
		Avatar:   utils.AvatarInitials(name),
		Password: utils.HashPassword(plain),
		KPIs:     kpis,
		AddedAt:  checkin.DateString(s.now().In(loc)),
	}
	team.Members = append(team.Members, member)
	comp.Teams[teamID] = team
	cfg.Companies[companyID] = comp
	cfg.Users[email] = company.UserRef{CompanyID: companyID, MemberID: member.ID}

	if err := s.saveConfig(ctx, cfg); err != nil {
		return company.Member{}, "", err
	}
	return member.Sanitized(), plain, nil
}

// RemoveMember deletes a member and their login mapping. Submitted
// history stays in the company document.
func (s *AccountService) RemoveMember(ctx context.Context, companyID, memberID string) error {
	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		return err
	}
	comp, ok := cfg.Companies[companyID]
	if !ok {
		return ErrNotFound
	}
	member, teamID, ok := comp.FindMember(memberID)
	if !ok {
		return ErrNotFound
	}

	team := comp.Teams[teamID]
	kept := team.Members[:0]
	for _, m := range team.Members {
		if m.ID != memberID {
			kept = append(kept, m)
		}
	}
	team.Members = kept
	comp.Teams[teamID] = team
	cfg.Companies[companyID] = comp
	delete(cfg.Users, normalizeEmail(member.Email))
	return s.saveConfig(ctx, cfg)
}

// UpdateMemberKPIs replaces a member's KPI list. Past weekly entries
// keep their snapshotted labels.
func (s *AccountService) UpdateMemberKPIs(ctx context.Context, companyID, memberID string, kpis []string) error {
	return s.updateMember(ctx, companyID, memberID, func(m *company.Member) error {
		m.KPIs = kpis
		return nil
	})
}

// SetMemberTimezone validates the IANA name before storing it. An empty
// name clears the override back to the company timezone.
func (s *AccountService) SetMemberTimezone(ctx context.Context, companyID, memberID, tz string) error {
	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrValidation, tz)
		}
	}
	return s.updateMember(ctx, companyID, memberID, func(m *company.Member) error {
		m.Timezone = tz
		return nil
	})
}

// UpdateMemberProfile changes name and role. Email is identity and is
// not editable here.
func (s *AccountService) UpdateMemberProfile(ctx context.Context, companyID, memberID, name, role string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	return s.updateMember(ctx, companyID, memberID, func(m *company.Member) error {
		m.Name = name
		m.Avatar = utils.AvatarInitials(name)
		m.Role = role
		return nil
	})
}

func (s *AccountService) updateMember(ctx context.Context, companyID, memberID string, patch func(*company.Member) error) error {
	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		return err
	}
	comp, ok := cfg.Companies[companyID]
	if !ok {
		return ErrNotFound
	}
	member, teamID, ok := comp.FindMember(memberID)
	if !ok {
		return ErrNotFound
	}
	if err := patch(&member); err != nil {
		return err
	}
	replaceMember(&cfg, companyID, teamID, member)
	return s.saveConfig(ctx, cfg)
}

func replaceMember(cfg *company.AppConfig, companyID, teamID string, member company.Member) {
	comp := cfg.Companies[companyID]
	team := comp.Teams[teamID]
	for i, m := range team.Members {
		if m.ID == member.ID {
			team.Members[i] = member
			break
		}
	}
	comp.Teams[teamID] = team
	cfg.Companies[companyID] = comp
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
