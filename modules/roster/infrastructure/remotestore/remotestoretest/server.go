// Package remotestoretest serves the roster store HTTP API on top of any roster.Store.
package remotestoretest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/mux"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
	"github.com/iota-uz/roster-sync/modules/roster/infrastructure/remotestore"
	"github.com/iota-uz/roster-sync/pkg/httpapi"
)

type Server struct {
	*httptest.Server

	store roster.Store
	token string

	// FailNext answers the next n requests with 503.
	FailNext atomic.Int32

	mu       sync.Mutex
	requests []string
}

// New starts a server. Requests must carry "Bearer <token>" when token is not empty.
func New(store roster.Store, token string) *Server {
	s := &Server{store: store, token: token}
	r := mux.NewRouter()
	r.Use(s.middleware)
	r.HandleFunc("/api/v1/orgs", s.listOrgs).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/orgs", s.createOrg).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/courses", s.listCourses).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/courses/{id}", s.updateCourse).Methods(http.MethodPatch)
	s.Server = httptest.NewServer(r)
	return s
}

// Requests returns "METHOD path" for every request served so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()

		if s.FailNext.Load() > 0 && s.FailNext.Add(-1) >= 0 {
			_ = httpapi.WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "try again later", nil)
			return
		}
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			_ = httpapi.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listOrgs(w http.ResponseWriter, r *http.Request) {
	orgs, err := s.store.FetchAllOrgs(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if raw := r.URL.Query().Get("code"); raw != "" {
		code, err := strconv.Atoi(raw)
		if err != nil {
			_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_CODE", "code must be an integer", nil)
			return
		}
		page := remotestore.Page[remotestore.OrgDTO]{Items: []remotestore.OrgDTO{}}
		if org, err := s.store.FindOrgByCode(r.Context(), code); err == nil {
			page.Items = append(page.Items, remotestore.OrgFromRecord(org))
		}
		_ = httpapi.WriteJSON(w, http.StatusOK, page)
		return
	}
	items := make([]remotestore.OrgDTO, 0, len(orgs))
	for _, o := range orgs {
		items = append(items, remotestore.OrgFromRecord(o))
	}
	writePage(w, r, items)
}

func (s *Server) listCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.store.FetchAllCourses(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	items := make([]remotestore.CourseDTO, 0, len(courses))
	for _, c := range courses {
		items = append(items, remotestore.CourseFromRecord(c))
	}
	writePage(w, r, items)
}

func (s *Server) createOrg(w http.ResponseWriter, r *http.Request) {
	var req remotestore.CreateOrgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code <= 0 || strings.TrimSpace(req.Name) == "" {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "name and a positive code are required", nil)
		return
	}
	org, err := s.store.CreateOrg(r.Context(), req.Name, req.Code)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, remotestore.OrgFromRecord(org))
}

func (s *Server) updateCourse(w http.ResponseWriter, r *http.Request) {
	var req remotestore.UpdateCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.store.UpdateCourseHeadcount(r.Context(), mux.Vars(r)["id"], req.Headcount); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writePage[T any](w http.ResponseWriter, r *http.Request, items []T) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("cursor"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	offset = min(max(offset, 0), len(items))
	end := min(offset+limit, len(items))

	page := remotestore.Page[T]{Items: items[offset:end]}
	if end < len(items) {
		next := strconv.Itoa(end)
		page.NextCursor = &next
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, page)
}

func writeStoreError(w http.ResponseWriter, err error) {
	var conflict *roster.ConflictError
	switch {
	case errors.As(err, &conflict):
		_ = httpapi.WriteError(w, http.StatusConflict, remotestore.CodeOrgConflict, err.Error(),
			map[string]string{"code": strconv.Itoa(conflict.Code)})
	case errors.Is(err, roster.ErrNotFound):
		_ = httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	default:
		_ = httpapi.WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}
