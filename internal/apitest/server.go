// Package apitest provides an in-process fake of the BPM REST API for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// Email and Password are the credentials the fake accepts.
	Email    = "ops@sunroof.test"
	Password = "hunter2"

	// RefreshCookie is the name of the long-lived refresh credential.
	RefreshCookie = "bpm_refresh"
)

var signingKey = []byte("apitest")

// Server is a fake BPM backend. All methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	valid       map[string]bool
	refresh     string
	collections map[string][]map[string]any
	files       map[string][]byte
	hits        map[string]int
	refreshes   int
	holds       map[string]chan struct{}
	failures    map[string]failure
}

type failure struct {
	status    int
	remaining int
}

// New starts a fake server; it is closed when the test ends.
func New(t testing.TB) *Server {
	s := &Server{
		valid:       map[string]bool{},
		collections: map[string][]map[string]any{},
		files:       map[string][]byte{},
		hits:        map[string]int{},
		holds:       map[string]chan struct{}{},
		failures:    map[string]failure{},
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.count)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.login)
		r.Get("/authenticated", s.authenticated)
		r.Get("/refresh", s.refreshToken)
		r.Post("/logout", s.logout)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/{resource}", s.list)
		r.Post("/{resource}", s.create)
		r.Put("/{resource}", s.update)
		r.Delete("/{resource}", s.remove)
		r.Post("/{resource}/log", s.addLog)
		r.Post("/{resource}/convert", s.convert)
		r.Post("/{resource}/read", s.markRead)
		r.Get("/{resource}/download", s.download)
	})
	return r
}

// Login mints a token and refresh cookie directly, bypassing HTTP.
func (s *Server) Login() (token string, refresh *http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(), &http.Cookie{Name: RefreshCookie, Value: s.refresh}
}

// ExpireTokens invalidates every access token issued so far.
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = map[string]bool{}
}

// RevokeRefresh invalidates the refresh cookie.
func (s *Server) RevokeRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = ""
}

// Refreshes returns how many refresh calls were made.
func (s *Server) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

// Hits returns how many requests reached "METHOD /path".
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// Seed replaces the collection for resource. Records without an id get one.
func (s *Server) Seed(resource string, records ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		cp := clone(rec)
		if _, ok := cp["id"]; !ok {
			cp["id"] = uuid.NewString()
		}
		out = append(out, cp)
	}
	s.collections[resource] = out
}

// Records returns a copy of a collection.
func (s *Server) Records(resource string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.collections[resource]))
	for _, rec := range s.collections[resource] {
		out = append(out, clone(rec))
	}
	return out
}

// PutFile registers the content served by /api/files/download?id=.
func (s *Server) PutFile(id string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = append([]byte(nil), content...)
}

// Hold blocks requests to "METHOD /path" until the returned func is called.
func (s *Server) Hold(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[route] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.holds, route)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Fail makes the next n requests to "METHOD /path" answer with status.
func (s *Server) Fail(route string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, remaining: n}
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.hits[route]++
		hold := s.holds[route]
		fail := s.failures[route]
		if fail.remaining > 0 {
			s.failures[route] = failure{status: fail.status, remaining: fail.remaining - 1}
		}
		s.mu.Unlock()

		if hold != nil {
			<-hold
		}
		if fail.remaining > 0 {
			writeError(w, fail.status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) issueLocked() string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-1",
		"email": Email,
		"name":  "Ops Desk",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
		"jti":   uuid.NewString(),
	}).SignedString(signingKey)
	if err != nil {
		panic(fmt.Sprintf("apitest: sign token: %v", err))
	}
	s.valid[token] = true
	if s.refresh == "" {
		s.refresh = uuid.NewString()
	}
	return token
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

func (s *Server) tokenValid(r *http.Request) bool {
	tok := bearer(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return tok != "" && s.valid[tok]
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.tokenValid(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type tokenResponse struct {
	IDToken string `json:"idToken"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if creds.Email != Email || creds.Password != Password {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	s.mu.Lock()
	s.refresh = uuid.NewString()
	token := s.issueLocked()
	refresh := s.refresh
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: RefreshCookie, Value: refresh, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, tokenResponse{IDToken: token})
}

func (s *Server) authenticated(w http.ResponseWriter, r *http.Request) {
	if !s.tokenValid(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{IDToken: bearer(r)})
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookie)

	s.mu.Lock()
	s.refreshes++
	if err != nil || s.refresh == "" || cookie.Value != s.refresh {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "refresh rejected")
		return
	}
	token := s.issueLocked()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, tokenResponse{IDToken: token})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.valid, bearer(r))
	s.refresh = ""
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: RefreshCookie, Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	if id := r.URL.Query().Get("id"); id != "" {
		rec, ok := s.find(resource, id)
		if !ok {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeJSON(w, http.StatusOK, rec)
		return
	}
	writeJSON(w, http.StatusOK, s.Records(resource))
}

func (s *Server) find(resource, id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.collections[resource] {
		if fmt.Sprint(rec["id"]) == id {
			return clone(rec), true
		}
	}
	return nil, false
}

func (s *Server) mutate(resource, id string, fn func(rec map[string]any)) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.collections[resource] {
		if fmt.Sprint(rec["id"]) == id {
			fn(rec)
			return clone(rec), true
		}
	}
	return nil, false
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	var rec map[string]any
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if rec == nil {
		rec = map[string]any{}
	}
	rec["id"] = uuid.NewString()
	rec["createdAt"] = time.Now().UTC().Format(time.RFC3339)

	s.mu.Lock()
	s.collections[resource] = append(s.collections[resource], clone(rec))
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	id := r.URL.Query().Get("id")
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	rec, ok := s.mutate(resource, id, func(rec map[string]any) {
		for k, v := range patch {
			if k == "id" {
				continue
			}
			rec[k] = v
		}
	})
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	id := r.URL.Query().Get("id")

	s.mu.Lock()
	recs := s.collections[resource]
	idx := -1
	for i, rec := range recs {
		if fmt.Sprint(rec["id"]) == id {
			idx = i
			break
		}
	}
	if idx >= 0 {
		s.collections[resource] = append(recs[:idx], recs[idx+1:]...)
	}
	s.mu.Unlock()

	if idx < 0 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addLog(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	var entry map[string]any
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	rec, ok := s.mutate(resource, r.URL.Query().Get("id"), func(rec map[string]any) {
		logs, _ := rec["logs"].([]any)
		rec["logs"] = append(logs, entry)
	})
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) convert(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "resource") != "leads" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	lead, ok := s.mutate("leads", r.URL.Query().Get("id"), func(rec map[string]any) {
		rec["status"] = "won"
	})
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	customer := map[string]any{
		"id":        uuid.NewString(),
		"name":      lead["name"],
		"email":     lead["email"],
		"phone":     lead["phone"],
		"address":   lead["address"],
		"leadId":    lead["id"],
		"createdAt": time.Now().UTC().Format(time.RFC3339),
	}
	s.mu.Lock()
	s.collections["customers"] = append(s.collections["customers"], clone(customer))
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, customer)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.mutate(chi.URLParam(r, "resource"), r.URL.Query().Get("id"), func(rec map[string]any) {
		rec["read"] = true
	})
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	s.mu.Lock()
	content, ok := s.files[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, id))
	_, _ = w.Write(content)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func clone(rec map[string]any) map[string]any {
	cp := make(map[string]any, len(rec))
	for k, v := range rec {
		cp[k] = v
	}
	return cp
}
