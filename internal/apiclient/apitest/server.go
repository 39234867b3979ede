// Package apitest runs an in-memory stand-in for the upstream patient API.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/meditrack/internal/model"
)

type account struct {
	password string
	user     model.User
}

type Server struct {
	srv *httptest.Server

	mu          sync.Mutex
	patients    []model.Patient
	accounts    map[string]account
	tokens      map[string]model.User
	nextID      int
	failing     bool
	bareList    bool
	requireAuth bool
	listQueries []url.Values
}

// NewServer starts a fake upstream seeded with patients. It is closed when
// the test ends.
func NewServer(t testing.TB, patients ...model.Patient) *Server {
	s := &Server{
		patients: append([]model.Patient(nil), patients...),
		accounts: make(map[string]account),
		tokens:   make(map[string]model.User),
		nextID:   len(patients) + 1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", s.login)
	mux.HandleFunc("GET /api/v1/auth/me", s.me)
	mux.HandleFunc("GET /api/v1/patients", s.authed(s.list))
	mux.HandleFunc("POST /api/v1/patients", s.authed(s.create))
	mux.HandleFunc("GET /api/v1/patients/{id}", s.authed(s.get))
	mux.HandleFunc("PUT /api/v1/patients/{id}", s.authed(s.update))
	mux.HandleFunc("DELETE /api/v1/patients/{id}", s.authed(s.delete))

	s.srv = httptest.NewServer(s.failable(mux))
	t.Cleanup(s.srv.Close)
	return s
}

// URL is the API base URL, including the /api/v1 prefix.
func (s *Server) URL() string {
	return s.srv.URL + "/api/v1"
}

// SetFailing makes every request answer 503.
func (s *Server) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

// SetBareList makes the list endpoint answer a bare JSON array.
func (s *Server) SetBareList(bare bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bareList = bare
}

// RequireAuth rejects patient requests without a token issued by login.
func (s *Server) RequireAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireAuth = true
}

func (s *Server) AddUser(user model.User, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[user.Username] = account{password: password, user: user}
}

// ListQueries returns the query strings of every list request received.
func (s *Server) ListQueries() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.listQueries...)
}

func (s *Server) failable(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		failing := s.failing
		s.mu.Unlock()
		if failing {
			writeJSON(w, http.StatusServiceUnavailable, detail("service unavailable"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		required := s.requireAuth
		s.mu.Unlock()
		if required {
			if _, ok := s.userFor(r); !ok {
				writeJSON(w, http.StatusUnauthorized, detail("Could not validate credentials"))
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) userFor(r *http.Request) (model.User, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.tokens[token]
	return u, ok
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, detail("bad form"))
		return
	}
	name, password := r.PostForm.Get("username"), r.PostForm.Get("password")

	s.mu.Lock()
	var found *account
	for _, a := range s.accounts {
		a := a
		if (a.user.Username == name || a.user.Email == name) && a.password == password {
			found = &a
			break
		}
	}
	if found == nil {
		s.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, detail("Incorrect username or password"))
		return
	}
	token := uuid.NewString()
	s.tokens[token] = found.user
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   1800,
		"user":         found.user,
	})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, ok := s.userFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, detail("Could not validate credentials"))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, _ := strconv.Atoi(q.Get("skip"))
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	term := strings.ToLower(q.Get("search"))

	s.mu.Lock()
	s.listQueries = append(s.listQueries, q)
	var matched []model.Patient
	for _, p := range s.patients {
		if p.IsActive && matches(p, term) {
			matched = append(matched, p)
		}
	}
	bare := s.bareList
	s.mu.Unlock()

	page := []model.Patient{}
	if skip < len(matched) {
		end := skip + limit
		if end > len(matched) {
			end = len(matched)
		}
		page = matched[skip:end]
	}

	if bare {
		writeJSON(w, http.StatusOK, page)
		return
	}
	writeJSON(w, http.StatusOK, model.PatientPage{Items: page, Total: len(matched)})
}

func matches(p model.Patient, term string) bool {
	if term == "" {
		return true
	}
	for _, field := range []string{p.PersonalInfo.FirstName, p.PersonalInfo.LastName, p.PatientID, p.PersonalInfo.Email} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(r.PathValue("id")); i >= 0 {
		writeJSON(w, http.StatusOK, s.patients[i])
		return
	}
	writeJSON(w, http.StatusNotFound, detail("Patient not found"))
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var req model.CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, detail(err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.patients {
		if req.PersonalInfo.Email != "" && p.PersonalInfo.Email == req.PersonalInfo.Email {
			writeJSON(w, http.StatusBadRequest, detail("Patient with this email already exists"))
			return
		}
	}

	today := model.NewDate(time.Now().Year(), time.Now().Month(), time.Now().Day())
	p := model.Patient{
		ID:               strconv.Itoa(s.nextID),
		PatientID:        fmt.Sprintf("P%06d", s.nextID),
		PersonalInfo:     req.PersonalInfo,
		MedicalInfo:      req.MedicalInfo,
		AssignedDoctor:   req.AssignedDoctor,
		RegistrationDate: &today,
		IsActive:         true,
	}
	s.nextID++
	s.patients = append(s.patients, p)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	var req model.UpdatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, detail(err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(r.PathValue("id"))
	if i < 0 {
		writeJSON(w, http.StatusNotFound, detail("Patient not found"))
		return
	}
	p := &s.patients[i]
	if req.PersonalInfo != nil {
		p.PersonalInfo = *req.PersonalInfo
	}
	if req.MedicalInfo != nil {
		p.MedicalInfo = *req.MedicalInfo
	}
	if req.AssignedDoctor != nil {
		p.AssignedDoctor = *req.AssignedDoctor
	}
	if req.LastVisit != nil {
		p.LastVisit = req.LastVisit
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	writeJSON(w, http.StatusOK, *p)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(r.PathValue("id"))
	if i < 0 {
		writeJSON(w, http.StatusNotFound, detail("Patient not found"))
		return
	}
	s.patients = append(s.patients[:i], s.patients[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) indexOf(id string) int {
	for i, p := range s.patients {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func detail(msg string) map[string]string {
	return map[string]string{"detail": msg}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
