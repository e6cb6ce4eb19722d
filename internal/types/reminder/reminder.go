package reminder

import "time"

const (
	TypeDaily  = "daily"
	TypeWeekly = "weekly"

	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Config is a company's reminder settings, stored as its own KV
// document. A company with no stored config has reminders disabled.
type Config struct {
	Enabled       bool                    `json:"enabled"`
	DailyEnabled  bool                    `json:"dailyEnabled"`
	WeeklyEnabled bool                    `json:"weeklyEnabled"`
	PausedMembers map[string]PausedMember `json:"pausedMembers,omitempty"`
}

type PausedMember struct {
	PausedAt time.Time `json:"pausedAt"`
	Reason   string    `json:"reason,omitempty"`
}

// LogEntry records one send attempt. The log is append-only, capped to
// the newest entries, and is the dedup source of truth: only a "sent"
// entry for (member, type, date) blocks another attempt.
type LogEntry struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	MemberID    string    `json:"memberId"`
	MemberName  string    `json:"memberName"`
	MemberEmail string    `json:"memberEmail"`
	CompanyID   string    `json:"companyId"`
	Date        string    `json:"date"`
	WeekID      string    `json:"weekId,omitempty"`
	SentAt      time.Time `json:"sentAt"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
}

// RunSummary is the trigger endpoint's response.
type RunSummary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// AlreadySent reports whether log holds a successful send for the
// given member, reminder type and logical date.
func AlreadySent(log []LogEntry, memberID, typ, date string) bool {
	for _, e := range log {
		if e.MemberID == memberID && e.Type == typ && e.Date == date && e.Status == StatusSent {
			return true
		}
	}
	return false
}
