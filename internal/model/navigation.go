package model

// NavItem is one sidebar entry. Icon is the name of the icon the front-end
// renders.
type NavItem struct {
	Label        string  `json:"label"`
	Route        string  `json:"route"`
	Icon         string  `json:"icon"`
	AllowedRoles RoleSet `json:"-"`
}
