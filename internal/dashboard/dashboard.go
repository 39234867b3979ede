package dashboard

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/meditrack/internal/listview"
	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/internal/navigation"
)

type ChangeType string

const (
	ChangeIncrease ChangeType = "increase"
	ChangeDecrease ChangeType = "decrease"
)

type Stat struct {
	Name       string     `json:"name"`
	Value      string     `json:"value"`
	Change     string     `json:"change"`
	ChangeType ChangeType `json:"changeType"`
	Icon       string     `json:"icon"`
	Live       bool       `json:"live"`
}

type Activity struct {
	ID      int    `json:"id"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Time    string `json:"time"`
	Icon    string `json:"icon"`
}

type Appointment struct {
	ID      int    `json:"id"`
	Patient string `json:"patient"`
	Time    string `json:"time"`
	Type    string `json:"type"`
	Status  string `json:"status"`
}

type QuickAction struct {
	Label string `json:"label"`
	Route string `json:"route"`
	Icon  string `json:"icon"`
}

type Summary struct {
	Welcome      string        `json:"welcome"`
	Subtitle     string        `json:"subtitle"`
	Stats        []Stat        `json:"stats"`
	Activities   []Activity    `json:"recentActivities"`
	Appointments []Appointment `json:"upcomingAppointments"`
	QuickActions []QuickAction `json:"quickActions"`
}

// quickActions reuse the navigation item type so the same role filter
// applies.
var quickActions = []model.NavItem{
	{Label: "Add Patient", Route: "/patients/new", Icon: "users", AllowedRoles: model.RoleSet{model.RoleAdmin, model.RoleDoctor, model.RoleNurse}},
	{Label: "Schedule Appointment", Route: "/appointments/new", Icon: "calendar", AllowedRoles: model.RoleSet{model.RoleAdmin, model.RoleDoctor, model.RoleNurse}},
	{Label: "Record Vitals", Route: "/vitals/new", Icon: "activity", AllowedRoles: model.RoleSet{model.RoleAdmin, model.RoleDoctor, model.RoleNurse}},
	{Label: "View Reports", Route: "/reports", Icon: "file-text", AllowedRoles: model.RoleSet{model.RoleAdmin, model.RoleDoctor, model.RoleNurse}},
}

// Builder assembles the dashboard. Only the patient total is live; the
// remaining figures are sample data.
type Builder struct {
	patients listview.Fetcher
	timeout  time.Duration
	logger   zerolog.Logger
}

func NewBuilder(patients listview.Fetcher, timeout time.Duration, logger zerolog.Logger) *Builder {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Builder{patients: patients, timeout: timeout, logger: logger}
}

func (b *Builder) Summary(ctx context.Context, user model.User) Summary {
	stats := sampleStats()
	if total, ok := b.patientTotal(ctx); ok {
		stats[0].Value = formatCount(total)
		stats[0].Change = ""
		stats[0].Live = true
	}

	actions := make([]QuickAction, 0, len(quickActions))
	for _, item := range navigation.Filter(quickActions, user.Role) {
		actions = append(actions, QuickAction{Label: item.Label, Route: item.Route, Icon: item.Icon})
	}

	return Summary{
		Welcome:      "Welcome back, " + user.Profile.FirstName + "!",
		Subtitle:     "Here's what's happening at your clinic today.",
		Stats:        stats,
		Activities:   sampleActivities(),
		Appointments: sampleAppointments(),
		QuickActions: actions,
	}
}

func (b *Builder) patientTotal(ctx context.Context) (int, bool) {
	if b.patients == nil {
		return 0, false
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	page, err := b.patients.List(ctx, model.ListParams{Skip: 0, Limit: 1})
	if err != nil {
		b.logger.Debug().Err(err).Msg("patient total unavailable, using sample figure")
		return 0, false
	}
	if !page.TotalReported {
		b.logger.Debug().Msg("upstream reported no patient total, using sample figure")
		return 0, false
	}
	return page.Total, true
}

func sampleStats() []Stat {
	return []Stat{
		{Name: "Total Patients", Value: "1,234", Change: "+12%", ChangeType: ChangeIncrease, Icon: "users"},
		{Name: "Active Appointments", Value: "56", Change: "+8%", ChangeType: ChangeIncrease, Icon: "calendar"},
		{Name: "Pending Reports", Value: "23", Change: "-5%", ChangeType: ChangeDecrease, Icon: "file-text"},
		{Name: "Critical Alerts", Value: "4", Change: "+2", ChangeType: ChangeIncrease, Icon: "alert-triangle"},
	}
}

func sampleActivities() []Activity {
	return []Activity{
		{ID: 1, Type: "appointment", Message: "New appointment scheduled with Dr. Smith", Time: "2 minutes ago", Icon: "calendar"},
		{ID: 2, Type: "vital", Message: "High blood pressure alert for Patient #1234", Time: "15 minutes ago", Icon: "activity"},
		{ID: 3, Type: "report", Message: "Lab report completed for Patient #5678", Time: "1 hour ago", Icon: "file-text"},
		{ID: 4, Type: "patient", Message: "New patient registration: Jane Doe", Time: "2 hours ago", Icon: "users"},
	}
}

func sampleAppointments() []Appointment {
	return []Appointment{
		{ID: 1, Patient: "John Smith", Time: "10:00 AM", Type: "Consultation", Status: "confirmed"},
		{ID: 2, Patient: "Sarah Johnson", Time: "11:30 AM", Type: "Follow-up", Status: "pending"},
		{ID: 3, Patient: "Michael Brown", Time: "2:00 PM", Type: "Check-up", Status: "confirmed"},
	}
}

// formatCount renders n with thousands separators.
func formatCount(n int) string {
	s := strconv.Itoa(n)
	if n < 0 {
		return s
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
