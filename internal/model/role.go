package model

import (
	"fmt"
	"strings"
)

// Role gates navigation and the patient endpoints. It is a closed set.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDoctor Role = "doctor"
	RoleNurse  Role = "nurse"
)

// AllRoles lists every dashboard role in display order.
var AllRoles = []Role{RoleAdmin, RoleDoctor, RoleNurse}

// ParseRole accepts the dashboard roles only; anything else (including the
// upstream "patient" role) is rejected.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleNurse:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// RoleSet is a small set of roles.
type RoleSet []Role

func (s RoleSet) Contains(r Role) bool {
	for _, x := range s {
		if x == r {
			return true
		}
	}
	return false
}
