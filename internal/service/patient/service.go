package patient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/internal/service/audit"
	"github.com/jwalitptl/meditrack/pkg/errors"
)

// DefaultLimit is the page size used by Search.
const DefaultLimit = 10

type PatientService interface {
	List(ctx context.Context, params model.ListParams) (*model.PatientPage, error)
	Get(ctx context.Context, id string) (*model.Patient, error)
	Create(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error)
	Update(ctx context.Context, id string, req *model.UpdatePatientRequest) (*model.Patient, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, query string) (*model.PatientPage, error)
}

// Upstream is the subset of the API client the service needs.
type Upstream interface {
	Get(ctx context.Context, path string, query url.Values, out interface{}) error
	Post(ctx context.Context, path string, body, out interface{}) error
	Put(ctx context.Context, path string, body, out interface{}) error
	Delete(ctx context.Context, path string) error
}

type Service struct {
	api      Upstream
	auditor  *audit.Service
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewService(api Upstream, auditor *audit.Service, logger zerolog.Logger) *Service {
	return &Service{
		api:      api,
		auditor:  auditor,
		validate: newValidator(),
		logger:   logger.With().Str("service", "patient").Logger(),
	}
}

func (s *Service) List(ctx context.Context, params model.ListParams) (*model.PatientPage, error) {
	if params.Skip < 0 {
		return nil, errors.Validation("invalid list parameters", map[string]string{"skip": "must not be negative"}, nil)
	}
	if params.Limit <= 0 {
		return nil, errors.Validation("invalid list parameters", map[string]string{"limit": "must be positive"}, nil)
	}

	query := url.Values{}
	query.Set("skip", strconv.Itoa(params.Skip))
	query.Set("limit", strconv.Itoa(params.Limit))
	if params.Search != "" {
		query.Set("search", params.Search)
	}

	var raw json.RawMessage
	if err := s.api.Get(ctx, "/patients", query, &raw); err != nil {
		return nil, asFetch("failed to list patients", err)
	}

	page, err := decodePage(raw, params.Skip)
	if err != nil {
		return nil, errors.Fetch("malformed patient list", err)
	}
	return page, nil
}

// decodePage accepts {items, total} or a bare array. Without a reported
// total, the count is what has been seen so far.
func decodePage(raw json.RawMessage, skip int) (*model.PatientPage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []model.Patient
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return &model.PatientPage{Items: nonNil(items), Total: skip + len(items)}, nil
	}

	var envelope struct {
		Items *[]model.Patient `json:"items"`
		Total *int             `json:"total"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	if envelope.Items == nil {
		return nil, errMissingItems
	}
	page := &model.PatientPage{Items: nonNil(*envelope.Items), Total: skip + len(*envelope.Items)}
	if envelope.Total != nil {
		page.Total = *envelope.Total
		page.TotalReported = true
	}
	return page, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Patient, error) {
	path, err := patientPath(id)
	if err != nil {
		return nil, err
	}

	var p model.Patient
	if err := s.api.Get(ctx, path, nil, &p); err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound("patient", err)
		}
		return nil, asFetch("failed to get patient", err)
	}
	return &p, nil
}

func (s *Service) Create(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error) {
	if req == nil {
		return nil, errors.Validation("patient data is required", nil, nil)
	}
	if err := s.check(req); err != nil {
		return nil, err
	}

	var created model.Patient
	if err := s.api.Post(ctx, "/patients", req, &created); err != nil {
		return nil, asMutation("failed to create patient", err)
	}

	s.auditor.Log(ctx, model.AuditActionCreate, model.AuditEntityPatient, created.ID, map[string]string{
		"patientId": created.PatientID,
	})
	return &created, nil
}

func (s *Service) Update(ctx context.Context, id string, req *model.UpdatePatientRequest) (*model.Patient, error) {
	path, err := patientPath(id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.Validation("patient data is required", nil, nil)
	}
	if err := s.check(req); err != nil {
		return nil, err
	}

	var updated model.Patient
	if err := s.api.Put(ctx, path, req, &updated); err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound("patient", err)
		}
		return nil, asMutation("failed to update patient", err)
	}

	s.auditor.Log(ctx, model.AuditActionUpdate, model.AuditEntityPatient, id, changedSections(req))
	return &updated, nil
}

// Delete is idempotent: a patient that is already gone counts as deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	path, err := patientPath(id)
	if err != nil {
		return err
	}

	if err := s.api.Delete(ctx, path); err != nil {
		if errors.IsNotFound(err) {
			s.logger.Debug().Str("patient_id", id).Msg("patient already deleted")
			return nil
		}
		return asFetch("failed to delete patient", err)
	}

	s.auditor.Log(ctx, model.AuditActionDelete, model.AuditEntityPatient, id, nil)
	return nil
}

func (s *Service) Search(ctx context.Context, query string) (*model.PatientPage, error) {
	return s.List(ctx, model.ListParams{Search: strings.TrimSpace(query), Skip: 0, Limit: DefaultLimit})
}

func patientPath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.Validation("patient id is required", map[string]string{"id": "is required"}, nil)
	}
	return "/patients/" + url.PathEscape(id), nil
}

// asFetch keeps authentication and validation errors intact and turns
// everything else into a FetchError.
func asFetch(msg string, err error) error {
	switch errors.KindOf(err) {
	case errors.KindAuthentication, errors.KindFetch, errors.KindValidation, errors.KindForbidden:
		return err
	}
	return errors.Fetch(msg, err)
}

// asMutation maps rejections of a create/update. Any 4xx is a validation
// failure; the rest is a fetch failure.
func asMutation(msg string, err error) error {
	switch errors.KindOf(err) {
	case errors.KindAuthentication, errors.KindValidation, errors.KindForbidden:
		return err
	case errors.KindNotFound:
		return errors.Validation(msg, nil, err)
	}
	return errors.Fetch(msg, err)
}

func changedSections(req *model.UpdatePatientRequest) map[string]bool {
	return map[string]bool{
		"personalInfo":   req.PersonalInfo != nil,
		"medicalInfo":    req.MedicalInfo != nil,
		"assignedDoctor": req.AssignedDoctor != nil,
		"lastVisit":      req.LastVisit != nil,
		"isActive":       req.IsActive != nil,
	}
}

func nonNil(items []model.Patient) []model.Patient {
	if items == nil {
		return []model.Patient{}
	}
	return items
}
