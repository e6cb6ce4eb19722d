package entry

import (
	"encoding/json"
	"time"
)

const (
	KPIGreen = "green"
	KPIRed   = "red"
)

// KPIResult is one KPI's outcome inside a weekly entry. Name snapshots
// the KPI text at submission time so later edits to a member's KPI list
// cannot shift historical results by index.
type KPIResult struct {
	Name   string `json:"name,omitempty"`
	Status string `json:"status,omitempty"`
	Actual string `json:"actual,omitempty"`
}

// DailyEntry is one member's update for one calendar date, keyed
// memberId:date. Resubmitting overwrites in place; OriginalAt survives
// edits.
type DailyEntry struct {
	Worked     string    `json:"worked"`
	Didnt      string    `json:"didnt,omitempty"`
	Plan       string    `json:"plan,omitempty"`
	Stuck      bool      `json:"stuck,omitempty"`
	At         time.Time `json:"at"`
	Edited     bool      `json:"edited,omitempty"`
	OriginalAt time.Time `json:"originalAt,omitempty"`
}

// WeeklyEntry is one member's KPI self-assessment for one week, keyed
// memberId:weekId. Status is the legacy manual-override path and only
// consulted when KPIs is empty.
type WeeklyEntry struct {
	KPIs      []KPIResult `json:"kpis,omitempty"`
	Status    string      `json:"status,omitempty"`
	Challenge string      `json:"challenge,omitempty"`
	At        time.Time   `json:"at"`
}

// Comment is CEO feedback on a daily or weekly submission. One active
// comment per key, overwritten on edit.
type Comment struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// StuckMessage is one message in a stuck thread. From is "ceo" or the
// member's ID.
type StuckMessage struct {
	Text string    `json:"text"`
	From string    `json:"from"`
	At   time.Time `json:"at"`
}

// CompanyData is a company's entire operational dataset, stored and
// rewritten as one JSON document. Mutations are read-patch-write of the
// whole blob; there is no field-level isolation and the last writer
// wins.
type CompanyData struct {
	Weekly   map[string]WeeklyEntry     `json:"wci"`
	Daily    map[string]DailyEntry      `json:"dci"`
	Comments map[string]Comment         `json:"cmt"`
	KPIPlans map[string]json.RawMessage `json:"kpiP,omitempty"`
	Stuck    map[string][]StuckMessage  `json:"sr"`
	Seen     map[string]bool            `json:"seen"`
	PTO      map[string]bool            `json:"pto"`
}

// Normalize replaces nil maps so callers can index without guarding.
func (d *CompanyData) Normalize() {
	if d.Weekly == nil {
		d.Weekly = map[string]WeeklyEntry{}
	}
	if d.Daily == nil {
		d.Daily = map[string]DailyEntry{}
	}
	if d.Comments == nil {
		d.Comments = map[string]Comment{}
	}
	if d.Stuck == nil {
		d.Stuck = map[string][]StuckMessage{}
	}
	if d.Seen == nil {
		d.Seen = map[string]bool{}
	}
	if d.PTO == nil {
		d.PTO = map[string]bool{}
	}
}

// Key formats shared by both the interactive surface and the reminder
// engine. Changing any of these breaks existing documents.

func DailyKey(memberID, date string) string { return memberID + ":" + date }

func WeeklyKey(memberID, weekID string) string { return memberID + ":" + weekID }

func DailyCommentKey(memberID, date string) string { return "d:" + memberID + ":" + date }

func WeeklyCommentKey(memberID, weekID string) string { return memberID + ":" + weekID }

func StuckKey(memberID, date string) string { return memberID + ":" + date }

func PTOKey(memberID, date string) string { return memberID + ":" + date }

func SeenKey(memberID, commentKey string) string { return memberID + ":" + commentKey }
