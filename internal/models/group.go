package models

import "time"

// Group is a named set of peers used for broadcast fan-out. Membership is
// validated against pairing status only when a member is added; it may drift
// to reference a since-removed peer, in which case broadcast to that member
// fails per-recipient rather than fatally.
type Group struct {
	Name      string    `json:"name"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
}

// HasMember reports whether name is in the group.
func (g *Group) HasMember(name string) bool {
	for _, m := range g.Members {
		if m == name {
			return true
		}
	}
	return false
}
