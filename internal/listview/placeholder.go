package listview

import (
	"time"

	"github.com/jwalitptl/meditrack/internal/model"
)

// Placeholder returns the sample patients shown when the patient service
// cannot supply a list. Each call returns a fresh copy.
func Placeholder() []model.Patient {
	johnVisit := model.NewDate(2025, time.July, 10)
	janeVisit := model.NewDate(2025, time.July, 12)

	return []model.Patient{
		{
			ID:        "1",
			PatientID: "P001234",
			PersonalInfo: model.PersonalInfo{
				FirstName:   "John",
				LastName:    "Doe",
				Email:       "john.doe@email.com",
				Phone:       "+1234567890",
				DateOfBirth: model.NewDate(1985, time.March, 15),
				Gender:      model.GenderMale,
				Address: model.Address{
					Street:  "123 Main St",
					City:    "New York",
					State:   "NY",
					ZipCode: "10001",
				},
			},
			MedicalInfo: model.MedicalInfo{
				BloodType:         "A+",
				Allergies:         []string{"penicillin"},
				ChronicConditions: []string{"diabetes"},
			},
			LastVisit: &johnVisit,
			IsActive:  true,
		},
		{
			ID:        "2",
			PatientID: "P001235",
			PersonalInfo: model.PersonalInfo{
				FirstName:   "Jane",
				LastName:    "Smith",
				Email:       "jane.smith@email.com",
				Phone:       "+1234567891",
				DateOfBirth: model.NewDate(1990, time.July, 22),
				Gender:      model.GenderFemale,
				Address: model.Address{
					Street:  "456 Oak Ave",
					City:    "Boston",
					State:   "MA",
					ZipCode: "02101",
				},
			},
			MedicalInfo: model.MedicalInfo{
				BloodType:         "O-",
				Allergies:         []string{"shellfish"},
				ChronicConditions: []string{"hypertension"},
			},
			LastVisit: &janeVisit,
			IsActive:  true,
		},
	}
}
