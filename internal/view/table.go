package view

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/jwalitptl/meditrack/internal/listview"
	"github.com/jwalitptl/meditrack/internal/model"
)

// Row is one rendered line of the patient table.
type Row struct {
	ID        string `json:"id"`
	PatientID string `json:"patientId"`
	Initials  string `json:"initials"`
	Name      string `json:"name"`
	Subtitle  string `json:"subtitle"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Age       int    `json:"age"`
	Gender    string `json:"gender,omitempty"`
	LastVisit string `json:"lastVisit,omitempty"`
	Status    string `json:"status"`
	CanView   bool   `json:"canView"`
	CanEdit   bool   `json:"canEdit"`
	CanDelete bool   `json:"canDelete"`
}

type Pager struct {
	Page        int    `json:"page"`
	PageSize    int    `json:"pageSize"`
	Summary     string `json:"summary"`
	PrevEnabled bool   `json:"prevEnabled"`
	NextEnabled bool   `json:"nextEnabled"`
	EndReached  bool   `json:"endReached"`
}

// Table is the patient list page as the front-end draws it.
type Table struct {
	SearchTerm string           `json:"searchTerm"`
	Rows       []Row            `json:"rows"`
	Pager      Pager            `json:"pager"`
	Loading    bool             `json:"loading"`
	Source     listview.Source  `json:"source"`
	Notice     *listview.Notice `json:"notice,omitempty"`
	CanCreate  bool             `json:"canCreate"`
}

// RenderTable turns controller state into rows for role, computing ages as
// of today.
func RenderTable(st listview.State, role model.Role, today time.Time) Table {
	canEdit := role.Valid()
	canDelete := role == model.RoleAdmin || role == model.RoleDoctor

	rows := make([]Row, 0, len(st.Rows))
	for _, p := range st.Rows {
		rows = append(rows, Row{
			ID:        p.ID,
			PatientID: p.PatientID,
			Initials:  Initials(p.PersonalInfo.FirstName, p.PersonalInfo.LastName),
			Name:      p.FullName(),
			Subtitle:  subtitle(p.MedicalInfo),
			Email:     p.PersonalInfo.Email,
			Phone:     p.PersonalInfo.Phone,
			Age:       model.Age(p.PersonalInfo.DateOfBirth, today),
			Gender:    string(p.PersonalInfo.Gender),
			LastVisit: lastVisit(p.LastVisit),
			Status:    status(p.IsActive),
			CanView:   role.Valid(),
			CanEdit:   canEdit,
			CanDelete: canDelete,
		})
	}

	return Table{
		SearchTerm: st.SearchTerm,
		Rows:       rows,
		Pager: Pager{
			Page:        st.Page,
			PageSize:    st.PageSize,
			Summary:     summary(st, len(rows)),
			PrevEnabled: st.PrevEnabled,
			NextEnabled: st.NextEnabled,
			EndReached:  st.EndReached,
		},
		Loading:   st.Loading,
		Source:    st.Source,
		Notice:    st.Notice,
		CanCreate: canEdit,
	}
}

// Initials returns the upper-cased first letters of first and last name.
func Initials(first, last string) string {
	var b strings.Builder
	for _, s := range []string{first, last} {
		if r, _ := utf8.DecodeRuneInString(strings.TrimSpace(s)); r != utf8.RuneError {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

func subtitle(m model.MedicalInfo) string {
	allergies := "No allergies"
	if len(m.Allergies) > 0 {
		allergies = strings.Join(m.Allergies, ", ")
	}
	if m.BloodType == "" {
		return allergies
	}
	return m.BloodType + " • " + allergies
}

func lastVisit(d *model.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func status(active bool) string {
	if active {
		return "Active"
	}
	return "Inactive"
}

func summary(st listview.State, shown int) string {
	if shown == 0 {
		if st.Loading {
			return "Loading patients..."
		}
		return "No patients found"
	}
	from := 1
	if st.Source == listview.SourceRemote {
		from = (st.Page-1)*st.PageSize + 1
	}
	total := st.Total
	if total < from+shown-1 {
		total = from + shown - 1
	}
	return fmt.Sprintf("Showing %d to %d of %d patients", from, from+shown-1, total)
}
