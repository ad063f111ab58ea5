// Package http exposes the JSON API for boards, habits, the ledger, and
// client forms, plus a websocket feed of board updates.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"

	"opsboard/internal/auth"
	applog "opsboard/internal/log"
	"opsboard/internal/services"
)

type Server struct {
	http.Server

	boards      *services.BoardService
	habits      *services.HabitService
	ledger      *services.LedgerService
	forms       *services.FormService
	tokens      *auth.Manager
	hub         *Hub
	limiter     *rateLimiter
	defaultGoal int

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// The websocket hub's Run loop is started here. defaultGoal is the monthly
// goal used by the progress endpoint when the request does not name one.
func NewServer(addr string, boards *services.BoardService, habits *services.HabitService, ledger *services.LedgerService, forms *services.FormService, tokens *auth.Manager, defaultGoal int) *Server {
	mux := http.NewServeMux()

	s := &Server{
		boards:      boards,
		habits:      habits,
		ledger:      ledger,
		forms:       forms,
		tokens:      tokens,
		hub:         NewHub(),
		limiter:     newRateLimiter(),
		defaultGoal: defaultGoal,
	}
	go s.hub.Run()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/boards/{board}", s.withAuth(s.handleBoard))
	mux.HandleFunc("GET /api/boards/{board}/progress", s.withAuth(s.handleProgress))
	mux.HandleFunc("POST /api/records", s.withAuth(s.handleCreateRecord))
	mux.HandleFunc("POST /api/records/{id}/transition", s.withAuth(s.handleTransition))
	mux.HandleFunc("DELETE /api/records/{id}", s.withAuth(s.handleDeleteRecord))

	mux.HandleFunc("GET /api/habits", s.withAuth(s.handleListHabits))
	mux.HandleFunc("POST /api/habits", s.withAuth(s.handleCreateHabit))
	mux.HandleFunc("POST /api/habits/{id}/complete", s.withAuth(s.handleComplete))
	mux.HandleFunc("DELETE /api/habits/{id}/complete", s.withAuth(s.handleUncomplete))
	mux.HandleFunc("GET /api/habits/{id}/streaks", s.withAuth(s.handleStreaks))

	mux.HandleFunc("POST /api/transactions", s.withAuth(s.handleAppendTransaction))
	mux.HandleFunc("GET /api/finance/{month}", s.withAuth(s.handleMonthSummary))
	mux.HandleFunc("POST /api/finance/{month}/export", s.withAuth(s.handleExportMonth))

	mux.HandleFunc("POST /api/forms", s.withAuth(s.handleCreateForm))
	mux.HandleFunc("GET /api/forms/{id}", s.withAuth(s.handleGetForm))
	mux.HandleFunc("POST /api/forms/{id}/submissions", s.withAuth(s.handleSubmit))

	mux.HandleFunc("GET /ws", s.withAuth(s.handleWebsocket))

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	httpLogger := applog.New(applog.Config{
		Level:     applog.DefaultConfig().Level,
		Component: applog.ComponentHTTP,
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           c.Handler(applog.Middleware(httpLogger)(s.withObservability(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter cleanup and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withObservability adds a request id, security headers, rate limiting of
// mutating requests, and request logging.
func (s *Server) withObservability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		if r.Method != http.MethodGet && !s.limiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP, applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		slog.InfoContext(ctx, "Request completed",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, time.Since(start).Milliseconds(),
			applog.FieldClientIP, clientIP)
	})
}

// withAuth requires a valid bearer token and stores the identity in the
// request context.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.TokenFromRequest(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		id, err := s.tokens.Verify(token)
		if err != nil {
			slog.WarnContext(r.Context(), "Token rejected", applog.FieldError, err)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
