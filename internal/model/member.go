package model

// Role controls what a team member may do to tasks.
type Role string

const (
	RoleManager Role = "MANAGER"
	RoleMember  Role = "MEMBER"
)

// TeamMember is a provisioned member of the filling team.
// Members are created out-of-band and mutate rarely.
type TeamMember struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

// MemberName resolves an assignee id against a member list.
// Dangling references render as "Unassigned", same as an empty id.
func MemberName(members []TeamMember, id string) string {
	if id == "" {
		return "Unassigned"
	}
	for _, m := range members {
		if m.ID == id {
			return m.Name
		}
	}
	return "Unassigned"
}
