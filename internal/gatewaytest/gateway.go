// Package gatewaytest runs an in-memory notes API gateway on an httptest
// server. It implements the same HTTP contract as the production backend and
// lets tests inject failures and inspect the requests a client sent.
package gatewaytest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/mininotes/mininotes-go/internal/model"
)

// Request is what the gateway saw of one incoming call.
type Request struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
}

type account struct {
	user         model.User
	passwordHash string
}

type failure struct {
	method string
	path   string
	status int
}

// Gateway is a running fake gateway. Its zero value is not usable; call New.
type Gateway struct {
	URL string

	server      *httptest.Server
	secret      string
	tokenExpiry time.Duration
	wrapNotes   bool
	now         func() time.Time
	authLimiter *rate.Limiter

	mu         sync.Mutex
	accounts   map[string]*account
	notes      map[int64][]model.Note
	static     map[string]int64
	nextToken  string
	nextUserID int64
	nextNoteID int64
	failures   []failure
	requests   []Request
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithWrappedNotes makes single-note replies use the {"note": {...}} envelope.
func WithWrappedNotes() Option {
	return func(g *Gateway) { g.wrapNotes = true }
}

// WithClock overrides the time source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithTokenExpiry sets the lifetime of issued JWTs.
func WithTokenExpiry(d time.Duration) Option {
	return func(g *Gateway) { g.tokenExpiry = d }
}

// WithAuthRateLimit limits login and register to rps requests per second.
func WithAuthRateLimit(rps float64, burst int) Option {
	return func(g *Gateway) { g.authLimiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// New starts a gateway. Call Close when done.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		secret:      "gatewaytest-secret",
		tokenExpiry: time.Hour,
		now:         time.Now,
		accounts:    make(map[string]*account),
		notes:       make(map[int64][]model.Note),
		static:      make(map[string]int64),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.server = httptest.NewServer(g.routes())
	g.URL = g.server.URL
	return g
}

// Close shuts the server down.
func (g *Gateway) Close() {
	g.server.Close()
}

func (g *Gateway) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(g.record)
	r.Use(g.injectFailures)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(g.rateLimit)
		r.Post("/api/auth/register", g.handleRegister)
		r.Post("/api/auth/login", g.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(g.requireAuth)
		r.Get("/api/notes", g.handleListNotes)
		r.Post("/api/notes", g.handleCreateNote)
		r.Get("/api/notes/{id}", g.handleGetNote)
		r.Put("/api/notes/{id}", g.handleUpdateNote)
		r.Delete("/api/notes/{id}", g.handleDeleteNote)
	})

	return r
}

// FailNext makes the next request matching method and path answer with status.
func (g *Gateway) FailNext(method, path string, status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = append(g.failures, failure{method: method, path: path, status: status})
}

// NextToken makes the next successful login or register return token
// verbatim instead of a signed JWT.
func (g *Gateway) NextToken(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextToken = token
}

// RevokeTokens invalidates every token issued so far.
func (g *Gateway) RevokeTokens() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.static = make(map[string]int64)
	g.secret = g.secret + "-rotated"
}

// Requests returns a copy of every request seen, oldest first.
func (g *Gateway) Requests() []Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Request(nil), g.requests...)
}

// RequestCount returns the number of requests seen.
func (g *Gateway) RequestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// AddUser registers an account directly, bypassing HTTP.
func (g *Gateway) AddUser(email, password string) model.User {
	g.mu.Lock()
	defer g.mu.Unlock()

	u, err := g.createAccountLocked(email, password)
	if err != nil {
		panic(err)
	}
	return u
}

// SeedNote stores a note for userID directly, as the newest note.
func (g *Gateway) SeedNote(userID int64, content string) model.Note {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.insertNoteLocked(userID, content)
}

// Notes returns the stored notes of userID, newest first.
func (g *Gateway) Notes(userID int64) []model.Note {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]model.Note(nil), g.notes[userID]...)
}

func (g *Gateway) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.requests = append(g.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     chimw.GetReqID(r.Context()),
		})
		g.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		status := 0
		for i, f := range g.failures {
			if f.method == r.Method && f.path == r.URL.Path {
				status = f.status
				g.failures = append(g.failures[:i], g.failures[i+1:]...)
				break
			}
		}
		g.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, errorResponse(http.StatusText(status)))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.authLimiter != nil && !g.authLimiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorResponse("too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
