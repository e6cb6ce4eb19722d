package company

// Member is a tracked team member. Password stores the salted hash,
// never the raw password. AddedAt (YYYY-MM-DD or RFC3339) marks the
// enrollment cutover: weeks before it are never graded.
type Member struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Role     string   `json:"role"`
	Avatar   string   `json:"av"`
	Password string   `json:"pw"`
	Timezone string   `json:"tz,omitempty"`
	KPIs     []string `json:"kpis"`
	AddedAt  string   `json:"addedAt,omitempty"`
}

type Team struct {
	Name    string   `json:"name"`
	Members []Member `json:"members"`
}

type Company struct {
	Name     string          `json:"name"`
	Timezone string          `json:"tz,omitempty"`
	Teams    map[string]Team `json:"teams"`
}

// UserRef maps a login email to its company and member.
type UserRef struct {
	CompanyID string `json:"compId"`
	MemberID  string `json:"memberId"`
}

// AppConfig is the whole-document account configuration blob stored
// under a single KV key.
type AppConfig struct {
	CEOEmail    string             `json:"ceoEmail"`
	CEOPassword string             `json:"ceoPw"`
	Companies   map[string]Company `json:"companies"`
	Users       map[string]UserRef `json:"users"`
}

// AllMembers flattens a company's teams into one member list.
func (c Company) AllMembers() []Member {
	var all []Member
	for _, t := range c.Teams {
		all = append(all, t.Members...)
	}
	return all
}

// FindMember returns the member with the given ID, and the ID of the
// team holding it.
func (c Company) FindMember(memberID string) (Member, string, bool) {
	for tid, t := range c.Teams {
		for _, m := range t.Members {
			if m.ID == memberID {
				return m, tid, true
			}
		}
	}
	return Member{}, "", false
}

// Sanitized returns a copy safe for API responses: the stored
// credential never leaves the service layer.
func (m Member) Sanitized() Member {
	m.Password = ""
	return m
}

// Sanitized strips every member credential from a company view.
func (c Company) Sanitized() Company {
	teams := make(map[string]Team, len(c.Teams))
	for tid, t := range c.Teams {
		members := make([]Member, len(t.Members))
		for i, m := range t.Members {
			members[i] = m.Sanitized()
		}
		teams[tid] = Team{Name: t.Name, Members: members}
	}
	c.Teams = teams
	return c
}

// FirstName returns the leading word of the member's name, used in
// reminder email greetings.
func (m Member) FirstName() string {
	for i := 0; i < len(m.Name); i++ {
		if m.Name[i] == ' ' {
			return m.Name[:i]
		}
	}
	return m.Name
}
