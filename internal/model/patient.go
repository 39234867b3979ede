package model

import "strings"

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country,omitempty"`
}

type EmergencyContact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone"`
}

type InsuranceInfo struct {
	Provider     string `json:"provider"`
	PolicyNumber string `json:"policyNumber"`
	GroupNumber  string `json:"groupNumber,omitempty"`
}

type PersonalInfo struct {
	FirstName        string            `json:"firstName" validate:"required"`
	LastName         string            `json:"lastName" validate:"required"`
	Email            string            `json:"email,omitempty" validate:"omitempty,email"`
	Phone            string            `json:"phone,omitempty"`
	DateOfBirth      Date              `json:"dateOfBirth" validate:"required"`
	Gender           Gender            `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	Address          Address           `json:"address"`
	EmergencyContact *EmergencyContact `json:"emergencyContact,omitempty"`
}

type MedicalInfo struct {
	BloodType         string         `json:"bloodType,omitempty"`
	Height            *float64       `json:"height,omitempty"`
	Weight            *float64       `json:"weight,omitempty"`
	Allergies         []string       `json:"allergies"`
	ChronicConditions []string       `json:"chronicConditions"`
	Medications       []string       `json:"medications,omitempty"`
	InsuranceInfo     *InsuranceInfo `json:"insuranceInfo,omitempty"`
}

// Patient is a read-through copy of the upstream record. PatientID is the
// human-readable code assigned by the upstream and never sent back.
type Patient struct {
	ID               string       `json:"id"`
	PatientID        string       `json:"patientId"`
	PersonalInfo     PersonalInfo `json:"personalInfo"`
	MedicalInfo      MedicalInfo  `json:"medicalInfo"`
	AssignedDoctor   string       `json:"assignedDoctor,omitempty"`
	RegistrationDate *Date        `json:"registrationDate,omitempty"`
	LastVisit        *Date        `json:"lastVisit,omitempty"`
	IsActive         bool         `json:"isActive"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.PersonalInfo.FirstName + " " + p.PersonalInfo.LastName)
}

// CreatePatientRequest is the body sent on create.
type CreatePatientRequest struct {
	PersonalInfo   PersonalInfo `json:"personalInfo"`
	MedicalInfo    MedicalInfo  `json:"medicalInfo"`
	AssignedDoctor string       `json:"assignedDoctor,omitempty"`
}

// UpdatePatientRequest is a partial update; nil sections are left unchanged
// by the upstream.
type UpdatePatientRequest struct {
	PersonalInfo   *PersonalInfo `json:"personalInfo,omitempty"`
	MedicalInfo    *MedicalInfo  `json:"medicalInfo,omitempty"`
	AssignedDoctor *string       `json:"assignedDoctor,omitempty"`
	LastVisit      *Date         `json:"lastVisit,omitempty"`
	IsActive       *bool         `json:"isActive,omitempty"`
}

// ListParams are the upstream list query parameters.
type ListParams struct {
	Search string `json:"search" form:"search"`
	Skip   int    `json:"skip" form:"skip"`
	Limit  int    `json:"limit" form:"limit"`
}

// PatientPage is one page of patients. Total is an estimate unless
// TotalReported is set.
type PatientPage struct {
	Items         []Patient `json:"items"`
	Total         int       `json:"total"`
	TotalReported bool      `json:"-"`
}
