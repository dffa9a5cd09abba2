// Package galileotest provides an in-process fake of the Galileo API for
// tests. It serves project and log stream lookups, the paginated
// sessions/traces/spans search endpoints, and session detail documents.
package galileotest

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicktill/galileo-metrics/pkg/config"
	"github.com/nicktill/galileo-metrics/pkg/galileo"
)

// TokenMode controls how the fake fills next_starting_token.
type TokenMode int

const (
	// TokenNormal sends the next offset while records remain, null after.
	TokenNormal TokenMode = iota
	// TokenNever always sends null, even on a full page.
	TokenNever
	// TokenAlways always sends the next offset, even past the end.
	TokenAlways
)

type failAfter struct {
	n      int
	status int
}

type projectFilter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SearchRequest is a decoded search body as received by the fake.
type SearchRequest struct {
	Kind          string
	ProjectID     string
	ParentField   string
	ParentID      string
	Limit         int
	StartingToken int
	Sort          map[string]any
}

// Server is a fake Galileo API backed by httptest.
type Server struct {
	*httptest.Server
	APIKey string

	mu               sync.Mutex
	projects         []galileo.Project
	logStreams       map[string][]galileo.LogStream
	sessions         map[string][]galileo.Session
	traces           map[string][]galileo.Trace
	spans            map[string][]galileo.Span
	experimentTraces map[string][]galileo.Trace
	sessionDetails   map[string]galileo.SessionDetail
	failures         map[string]int
	failAfter        map[string]failAfter
	served           map[string]int
	delays           map[string]time.Duration
	tokenMode        TokenMode
	requests         []SearchRequest
}

// NewServer starts a fake that accepts apiKey. It is closed when the test ends.
func NewServer(t testing.TB, apiKey string) *Server {
	t.Helper()

	s := &Server{
		APIKey:           apiKey,
		logStreams:       make(map[string][]galileo.LogStream),
		sessions:         make(map[string][]galileo.Session),
		traces:           make(map[string][]galileo.Trace),
		spans:            make(map[string][]galileo.Span),
		experimentTraces: make(map[string][]galileo.Trace),
		sessionDetails:   make(map[string]galileo.SessionDetail),
		failures:         make(map[string]int),
		failAfter:        make(map[string]failAfter),
		served:           make(map[string]int),
		delays:           make(map[string]time.Duration),
	}

	router := mux.NewRouter()
	router.Use(s.authenticate)

	api := router.PathPrefix("/v2/projects").Subrouter()
	api.HandleFunc("/paginated", s.handleProjects).Methods(http.MethodPost)
	api.HandleFunc("/{project}/log_streams", s.handleLogStreams).Methods(http.MethodGet)
	api.HandleFunc("/{project}/{kind:sessions|traces|spans}/search", s.handleSearch).Methods(http.MethodPost)
	api.HandleFunc("/{project}/sessions/{session}", s.handleSession).Methods(http.MethodGet)

	s.Server = httptest.NewServer(router)
	t.Cleanup(s.Close)
	return s
}

// AddProject registers a project.
func (s *Server) AddProject(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = append(s.projects, galileo.Project{ID: id, Name: name})
}

// AddLogStream registers a log stream under a project.
func (s *Server) AddLogStream(projectID, id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logStreams[projectID] = append(s.logStreams[projectID], galileo.LogStream{ID: id, Name: name, ProjectID: projectID})
}

// SetSessions replaces the sessions of a log stream.
func (s *Server) SetSessions(logStreamID string, sessions ...galileo.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[logStreamID] = sessions
}

// SetTraces replaces the traces of a log stream.
func (s *Server) SetTraces(logStreamID string, traces ...galileo.Trace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[logStreamID] = traces
}

// SetSpans replaces the spans of a log stream.
func (s *Server) SetSpans(logStreamID string, spans ...galileo.Span) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans[logStreamID] = spans
}

// SetExperimentTraces replaces the traces of an experiment.
func (s *Server) SetExperimentTraces(experimentID string, traces ...galileo.Trace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.experimentTraces[experimentID] = traces
}

// SetSessionDetail stores the document served for GET sessions/{id}.
func (s *Server) SetSessionDetail(projectID string, detail galileo.SessionDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionDetails[projectID+"/"+detail.ID] = detail
}

// Fail makes every request to kind answer with status. Kinds are
// "projects", "log_streams", "session", "sessions", "traces", "spans".
func (s *Server) Fail(kind string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[kind] = status
}

// FailAfter lets the first n requests to kind through and answers every
// later one with status.
func (s *Server) FailAfter(kind string, n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAfter[kind] = failAfter{n: n, status: status}
}

// Delay holds every response of kind for d.
func (s *Server) Delay(kind string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[kind] = d
}

// SetTokenMode changes how next_starting_token is filled.
func (s *Server) SetTokenMode(mode TokenMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenMode = mode
}

// Requests returns the search requests received for kind, in order.
// Requests answered by an injected failure are not recorded.
func (s *Server) Requests(kind string) []SearchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []SearchRequest
	for _, r := range s.requests {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(config.APIKeyHeader) != s.APIKey {
			respondError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// intercept applies configured delays and failures. It returns true when
// the response has already been written.
func (s *Server) intercept(w http.ResponseWriter, kind string) bool {
	s.mu.Lock()
	delay := s.delays[kind]
	status := s.failures[kind]
	if fa, ok := s.failAfter[kind]; ok && s.served[kind] >= fa.n {
		status = fa.status
	}
	s.served[kind]++
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if status != 0 {
		respondError(w, status, "injected failure")
		return true
	}
	return false
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, "projects") {
		return
	}

	var body struct {
		Filters []projectFilter `json:"filters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matches := make([]galileo.Project, 0)
	for _, p := range s.projects {
		if matchesFilters(p, body.Filters) {
			matches = append(matches, p)
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"projects": matches})
}

func (s *Server) handleLogStreams(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, "log_streams") {
		return
	}
	projectID := mux.Vars(r)["project"]

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasProject(projectID) {
		respondError(w, http.StatusNotFound, "project not found")
		return
	}
	streams := s.logStreams[projectID]
	if streams == nil {
		streams = []galileo.LogStream{}
	}
	respondJSON(w, http.StatusOK, streams)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, "session") {
		return
	}
	vars := mux.Vars(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	detail, ok := s.sessionDetails[vars["project"]+"/"+vars["session"]]
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind := vars["kind"]
	if s.intercept(w, kind) {
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := SearchRequest{
		Kind:          kind,
		ProjectID:     vars["project"],
		Limit:         intField(body, "limit"),
		StartingToken: intField(body, "starting_token"),
	}
	if sort, ok := body["sort"].(map[string]any); ok {
		req.Sort = sort
	}
	for _, field := range []string{"log_stream_id", "experiment_id"} {
		if id, ok := body[field].(string); ok {
			req.ParentField, req.ParentID = field, id
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)

	if !s.hasProject(req.ProjectID) {
		respondError(w, http.StatusNotFound, "project not found")
		return
	}
	if req.ParentID == "" || req.Limit <= 0 {
		respondError(w, http.StatusUnprocessableEntity, "log_stream_id or experiment_id and a positive limit are required")
		return
	}

	var resp map[string]any
	switch {
	case req.ParentField == "experiment_id":
		resp = paginate(s.experimentTraces[req.ParentID], req, s.tokenMode)
	case kind == "sessions":
		resp = paginate(s.sessions[req.ParentID], req, s.tokenMode)
	case kind == "traces":
		resp = paginate(s.traces[req.ParentID], req, s.tokenMode)
	default:
		resp = paginate(s.spans[req.ParentID], req, s.tokenMode)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) hasProject(id string) bool {
	for _, p := range s.projects {
		if p.ID == id {
			return true
		}
	}
	return false
}

// paginate slices all at the requested offset and fills the token per mode.
func paginate[T any](all []T, req SearchRequest, mode TokenMode) map[string]any {
	start := req.StartingToken
	if start > len(all) {
		start = len(all)
	}
	end := start + req.Limit
	if end > len(all) {
		end = len(all)
	}

	records := make([]T, 0, end-start)
	records = append(records, all[start:end]...)

	var next any
	switch mode {
	case TokenAlways:
		next = end
	case TokenNormal:
		if end < len(all) {
			next = end
		}
	}

	return map[string]any{
		"records":             records,
		"num_records":         len(all),
		"next_starting_token": next,
	}
}

func matchesFilters(p galileo.Project, filters []projectFilter) bool {
	for _, f := range filters {
		if f.Name == "name" && !strings.EqualFold(p.Name, f.Value) {
			return false
		}
	}
	return true
}

func intField(body map[string]any, key string) int {
	if v, ok := body[key].(float64); ok {
		return int(v)
	}
	return 0
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error":  http.StatusText(status),
		"detail": message,
	})
}
