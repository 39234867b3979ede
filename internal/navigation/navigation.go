package navigation

import "github.com/jwalitptl/meditrack/internal/model"

var allRoles = model.RoleSet{model.RoleAdmin, model.RoleDoctor, model.RoleNurse}

// Menu is the sidebar in display order.
var Menu = []model.NavItem{
	{Label: "Dashboard", Route: "/dashboard", Icon: "layout-dashboard", AllowedRoles: allRoles},
	{Label: "Patients", Route: "/patients", Icon: "users", AllowedRoles: allRoles},
	{Label: "Vitals", Route: "/vitals", Icon: "activity", AllowedRoles: allRoles},
	{Label: "Appointments", Route: "/appointments", Icon: "calendar", AllowedRoles: allRoles},
	{Label: "Reports", Route: "/reports", Icon: "file-text", AllowedRoles: allRoles},
	{Label: "Doctors", Route: "/doctors", Icon: "stethoscope", AllowedRoles: model.RoleSet{model.RoleAdmin}},
	{Label: "Analytics", Route: "/analytics", Icon: "bar-chart-3", AllowedRoles: model.RoleSet{model.RoleAdmin, model.RoleDoctor}},
	{Label: "User Management", Route: "/users", Icon: "user-plus", AllowedRoles: model.RoleSet{model.RoleAdmin}},
}

// Footer holds the entries pinned below the menu.
var Footer = []model.NavItem{
	{Label: "Settings", Route: "/settings", Icon: "settings", AllowedRoles: allRoles},
	{Label: "Help & Support", Route: "/help", Icon: "help-circle", AllowedRoles: allRoles},
}

// Filter returns the items whose allowed roles include role, keeping their
// order. An unknown or empty role gets nothing.
func Filter(items []model.NavItem, role model.Role) []model.NavItem {
	out := []model.NavItem{}
	if !role.Valid() {
		return out
	}
	for _, item := range items {
		if item.AllowedRoles.Contains(role) {
			out = append(out, item)
		}
	}
	return out
}

// Sidebar is the navigation shown to one role.
type Sidebar struct {
	Items  []model.NavItem `json:"items"`
	Footer []model.NavItem `json:"footer"`
}

func For(role model.Role) Sidebar {
	return Sidebar{
		Items:  Filter(Menu, role),
		Footer: Filter(Footer, role),
	}
}
