// Package http exposes the ledger as a JSON API. Callers identify
// themselves with the X-User header; every data route is scoped to that
// user.
package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"fet/internal/middleware/trace"
	"fet/internal/services"
)

type Server struct {
	http.Server
	ledger       *services.LedgerService
	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, ledger *services.LedgerService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		ledger:      ledger,
		rateLimiter: newRateLimiter(),
	}
	s.Server = http.Server{
		Addr:    addr,
		Handler: trace.Middleware(s.withUser(mux)),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleHealth)

	mux.HandleFunc("GET /family", s.handleListFamily)
	mux.HandleFunc("POST /family", s.handleAddFamilyMember)
	mux.HandleFunc("PUT /family", s.handleReplaceFamily)
	mux.HandleFunc("DELETE /family/{name}", s.handleDeleteFamilyMember)

	mux.HandleFunc("GET /expenses", s.handleListExpenses)
	mux.HandleFunc("POST /expenses", s.handleCreateExpense)

	mux.HandleFunc("GET /budget", s.handleGetBudget)
	mux.HandleFunc("PUT /budget", s.handleSetBudget)
	mux.HandleFunc("POST /budget/sync", s.handleSyncBudget)
	mux.HandleFunc("PUT /budget/limits", s.handleSetLimits)

	mux.HandleFunc("GET /summary/monthly", s.handleMonthlySummary)
	mux.HandleFunc("GET /summary/yearly", s.handleYearlySummary)
	mux.HandleFunc("GET /breakdown", s.handleCategoryBreakdown)

	mux.HandleFunc("GET /goals", s.handleListGoals)
	mux.HandleFunc("POST /goals", s.handleAddGoal)
	mux.HandleFunc("DELETE /goals/{name}", s.handleDeleteGoal)

	mux.HandleFunc("GET /forecast", s.handleForecast)
	mux.HandleFunc("POST /receipt/guess", s.handleReceiptGuess)

	return s
}

// withUser resolves the X-User header into the request context and rate
// limits mutating requests per user. Health endpoints stay open.
func (s *Server) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
			next.ServeHTTP(w, r)
			return
		}

		username := strings.TrimSpace(r.Header.Get("X-User"))
		if username == "" {
			writeError(w, http.StatusUnauthorized, "missing X-User header")
			return
		}

		if r.Method != http.MethodGet && !s.rateLimiter.allow(username) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), username)))
	})
}

// Shutdown stops the server and its background routines once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// rateLimiter caps mutating requests per user per minute.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

const requestsPerMinute = 60

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for key, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[key]
	if !exists {
		rl.clients[key] = &clientInfo{lastRequest: now, requests: 1}
		return true
	}

	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	client.requests++
	client.lastRequest = now
	return client.requests <= requestsPerMinute
}
