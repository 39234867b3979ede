package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/meditrack/internal/apiclient"
	"github.com/jwalitptl/meditrack/internal/apiclient/apitest"
	dashboardsvc "github.com/jwalitptl/meditrack/internal/dashboard"
	"github.com/jwalitptl/meditrack/internal/handler/auth"
	"github.com/jwalitptl/meditrack/internal/handler/dashboard"
	"github.com/jwalitptl/meditrack/internal/handler/health"
	"github.com/jwalitptl/meditrack/internal/handler/navigation"
	"github.com/jwalitptl/meditrack/internal/handler/patient"
	promhandler "github.com/jwalitptl/meditrack/internal/handler/prometheus"
	"github.com/jwalitptl/meditrack/internal/listview"
	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/internal/service/audit"
	patientsvc "github.com/jwalitptl/meditrack/internal/service/patient"
	"github.com/jwalitptl/meditrack/internal/session"
	pkgauth "github.com/jwalitptl/meditrack/pkg/auth"
	"github.com/jwalitptl/meditrack/pkg/messaging"
	"github.com/jwalitptl/meditrack/pkg/metrics"
)

const cookieName = "meditrack_session"

type envelope struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Kind    string            `json:"kind"`
	Fields  map[string]string `json:"fields"`
	Data    json.RawMessage   `json:"data"`
}

type testEnv struct {
	upstream *apitest.Server
	engine   *gin.Engine
	broker   *messaging.MemoryBroker
}

func samplePatients() []model.Patient {
	return []model.Patient{
		{
			ID:        "p-1",
			PatientID: "P000001",
			PersonalInfo: model.PersonalInfo{
				FirstName:   "Alice",
				LastName:    "Walker",
				Email:       "alice@example.com",
				DateOfBirth: model.NewDate(1990, time.July, 22),
				Gender:      model.GenderFemale,
			},
			MedicalInfo: model.MedicalInfo{BloodType: "O+", Allergies: []string{"latex"}},
			IsActive:    true,
		},
		{
			ID:        "p-2",
			PatientID: "P000002",
			PersonalInfo: model.PersonalInfo{
				FirstName:   "Bob",
				LastName:    "Stone",
				DateOfBirth: model.NewDate(1975, time.January, 3),
				Gender:      model.GenderMale,
			},
			IsActive: true,
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := apitest.NewServer(t, samplePatients()...)
	upstream.RequireAuth()
	upstream.AddUser(model.User{ID: "u-1", Username: "dr.smith", Email: "smith@example.com", Role: model.RoleDoctor, IsActive: true,
		Profile: model.Profile{FirstName: "Sarah", LastName: "Smith"}}, "secret")
	upstream.AddUser(model.User{ID: "u-2", Username: "nurse.joy", Role: model.RoleNurse, IsActive: true}, "secret")

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)
	logger := zerolog.Nop()

	api, err := apiclient.New(apiclient.Config{BaseURL: upstream.URL(), Timeout: 2 * time.Second}, m, logger)
	require.NoError(t, err)

	broker := messaging.NewMemoryBroker()
	auditor := audit.NewService(broker, "audit", m, logger)
	patients := patientsvc.NewService(api, auditor, logger)

	tokens := pkgauth.NewJWTService("test-secret", "meditrack", time.Hour)
	sessions := session.NewManager(session.NewRemoteProvider(api), session.NewMemoryStore(time.Minute), tokens, time.Hour, auditor, m, logger)
	views := listview.NewRegistry(patients, listview.Options{PageSize: 10, FetchTimeout: 2 * time.Second, Metrics: m, Logger: logger}, time.Minute)

	r := NewRouter(sessions, Handlers{
		Auth:       auth.NewHandler(sessions, views, auth.CookieConfig{Name: cookieName}),
		Patient:    patient.NewHandler(patients, views, 2*time.Second, logger),
		Navigation: navigation.NewHandler(),
		Dashboard:  dashboard.NewHandler(dashboardsvc.NewBuilder(patients, time.Second, logger)),
		Health:     health.NewHandler(api, nil),
		Metrics:    promhandler.New(reg),
	}, m, logger, RouterConfig{CookieName: cookieName})
	r.Setup()

	return &testEnv{upstream: upstream, engine: r.Engine(), broker: broker}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	w, env := e.do(t, http.MethodPost, "/api/v1/auth/login", "", model.Credentials{Username: username, Password: "secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp auth.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.NotEmpty(t, resp.Token)
	assert.Contains(t, w.Header().Get("Set-Cookie"), cookieName+"=")
	return resp.Token
}

type tableResponse struct {
	Rows []struct {
		Name      string `json:"name"`
		Subtitle  string `json:"subtitle"`
		CanDelete bool   `json:"canDelete"`
	} `json:"rows"`
	Pager struct {
		Page       int    `json:"page"`
		Summary    string `json:"summary"`
		EndReached bool   `json:"endReached"`
	} `json:"pager"`
	Source string `json:"source"`
	Notice *struct {
		Message   string `json:"message"`
		Retryable bool   `json:"retryable"`
	} `json:"notice"`
}

func decodeTable(t *testing.T, env envelope) tableResponse {
	t.Helper()
	var tbl tableResponse
	require.NoError(t, json.Unmarshal(env.Data, &tbl))
	return tbl
}

func TestRouter_RequiresSession(t *testing.T) {
	e := newTestEnv(t)

	w, env := e.do(t, http.MethodGet, "/api/v1/patients/view", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "authentication", env.Kind)

	w, _ = e.do(t, http.MethodGet, "/api/v1/patients/view", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_LoginRejectsBadPassword(t *testing.T) {
	e := newTestEnv(t)

	w, env := e.do(t, http.MethodPost, "/api/v1/auth/login", "", model.Credentials{Username: "dr.smith", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "error", env.Status)
}

func TestRouter_DoctorFlow(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "dr.smith")

	w, env := e.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me auth.MeResponse
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.True(t, me.IsDoctor)
	assert.False(t, me.IsAdmin)

	w, env = e.do(t, http.MethodGet, "/api/v1/navigation", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sidebar struct {
		Items []model.NavItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sidebar))
	labels := make([]string, 0, len(sidebar.Items))
	for _, item := range sidebar.Items {
		labels = append(labels, item.Label)
	}
	assert.Equal(t, []string{"Dashboard", "Patients", "Vitals", "Appointments", "Reports", "Analytics"}, labels)

	w, env = e.do(t, http.MethodGet, "/api/v1/patients/view", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tbl := decodeTable(t, env)
	assert.Equal(t, "remote", tbl.Source)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "Alice Walker", tbl.Rows[0].Name)
	assert.Equal(t, "O+ • latex", tbl.Rows[0].Subtitle)
	assert.True(t, tbl.Rows[0].CanDelete)
	assert.Equal(t, "Showing 1 to 2 of 2 patients", tbl.Pager.Summary)

	w, env = e.do(t, http.MethodGet, "/api/v1/patients/view?search=stone", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tbl = decodeTable(t, env)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "Bob Stone", tbl.Rows[0].Name)
	assert.Equal(t, 1, tbl.Pager.Page)

	w, _ = e.do(t, http.MethodDelete, "/api/v1/patients/p-2", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = e.do(t, http.MethodDelete, "/api/v1/patients/p-2", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = e.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_NurseCannotDelete(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "nurse.joy")

	w, env := e.do(t, http.MethodDelete, "/api/v1/patients/p-1", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", env.Kind)

	w, env = e.do(t, http.MethodGet, "/api/v1/patients/view", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tbl := decodeTable(t, env)
	require.NotEmpty(t, tbl.Rows)
	assert.False(t, tbl.Rows[0].CanDelete)
}

func TestRouter_UpstreamFailureFallsBackAndRetries(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "dr.smith")

	e.upstream.SetFailing(true)
	w, env := e.do(t, http.MethodGet, "/api/v1/patients/view", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tbl := decodeTable(t, env)
	assert.Equal(t, "placeholder", tbl.Source)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "John Doe", tbl.Rows[0].Name)
	require.NotNil(t, tbl.Notice)
	assert.True(t, tbl.Notice.Retryable)

	e.upstream.SetFailing(false)
	w, env = e.do(t, http.MethodPost, "/api/v1/patients/view/retry", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tbl = decodeTable(t, env)
	assert.Equal(t, "remote", tbl.Source)
	assert.Nil(t, tbl.Notice)
	assert.Equal(t, "Alice Walker", tbl.Rows[0].Name)
}

func TestRouter_CreateValidation(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "dr.smith")

	w, env := e.do(t, http.MethodPost, "/api/v1/patients", token, map[string]interface{}{
		"personalInfo": map[string]interface{}{"firstName": "Carl", "dateOfBirth": "1980-02-02"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "validation", env.Kind)
	assert.Contains(t, env.Fields, "personalInfo.lastName")
}

func TestRouter_LoginPublishesAuditEvent(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := e.broker.Subscribe(ctx, "audit")
	require.NoError(t, err)

	e.login(t, "dr.smith")

	select {
	case msg := <-events:
		var ev model.AuditEvent
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, model.AuditActionLogin, ev.Action)
		assert.Equal(t, "dr.smith", ev.Actor)
	case <-time.After(time.Second):
		t.Fatal("no audit event published")
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	e := newTestEnv(t)

	w, _ := e.do(t, http.MethodGet, "/api/v1/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = e.do(t, http.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}
