package domain

import (
	"net/mail"
	"strings"
)

// Role names a team role used by the permission policy.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleLead   Role = "lead"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// ParseRole normalizes a role name; blank means member.
func ParseRole(raw string) (Role, error) {
	switch role := Role(strings.ToLower(strings.TrimSpace(raw))); role {
	case "":
		return RoleMember, nil
	case RoleAdmin, RoleLead, RoleMember, RoleViewer:
		return role, nil
	default:
		return "", ErrInvalidRole
	}
}

// TeamMember is assignee reference data copied onto tasks by value.
type TeamMember struct {
	ID     string
	Name   string
	Avatar string
	Email  string
	Role   Role
}

func NewTeamMember(id, name, avatar, email string, role Role) (TeamMember, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if id == "" {
		return TeamMember{}, ErrInvalidID
	}
	if name == "" {
		return TeamMember{}, ErrInvalidName
	}
	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil || addr.Address != email {
			return TeamMember{}, ErrInvalidEmail
		}
	}
	role, err := ParseRole(string(role))
	if err != nil {
		return TeamMember{}, err
	}
	return TeamMember{
		ID:     id,
		Name:   name,
		Avatar: strings.TrimSpace(avatar),
		Email:  email,
		Role:   role,
	}, nil
}

// Unassigned reports whether no member is set.
func (m TeamMember) Unassigned() bool {
	return strings.TrimSpace(m.ID) == ""
}
