// Package api provides the HTTP API for observing and steering a city.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/talgya/mini-city/internal/engine"
	"github.com/talgya/mini-city/internal/persistence"
	"github.com/talgya/mini-city/internal/world"
)

// Server serves the simulation over HTTP. Every access to simulation
// state goes through Clock.Exec.
type Server struct {
	Clock    *engine.Clock
	DB       *persistence.DB // Optional; nil disables snapshots and event storage
	Hub      *Hub
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// CommandLimit caps command POSTs per client per minute.
	CommandLimit int

	http *http.Server
}

// NewServer creates a server for clock.
func NewServer(clock *engine.Clock, db *persistence.DB, port int, adminKey string) *Server {
	return &Server{
		Clock:        clock,
		DB:           db,
		Hub:          NewHub(),
		Port:         port,
		AdminKey:     adminKey,
		CommandLimit: 120,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	commands := NewRateLimiter(s.CommandLimit, time.Minute)

	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints.
		r.Get("/status", s.handleStatus)
		r.Get("/grid", s.handleGrid)
		r.Get("/layers/{layer}", s.handleLayer)
		r.Get("/tile/{x}/{y}", s.handleTile)
		r.Get("/vehicles", s.handleVehicles)
		r.Get("/economy", s.handleEconomy)
		r.Get("/events", s.handleEvents)
		r.Get("/speed", s.handleSpeed)
		r.Get("/stream", s.handleStream)

		// Admin endpoints.
		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly, commands.Middleware)
			r.Post("/build", s.handleBuild)
			r.Post("/upgrade", s.handleUpgrade)
			r.Post("/demolish", s.handleDemolish)
			r.Post("/select", s.handleSelect)
			r.Post("/deselect", s.handleDeselect)
			r.Post("/overlay", s.handleOverlay)
			r.Post("/speed", s.handleSpeed)
			r.Post("/reset", s.handleReset)
			r.Post("/snapshot", s.handleSnapshot)
		})
	})
	return r
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.http = &http.Server{Addr: addr, Handler: s.Handler()}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the listener, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// AfterTick drains the simulation's events to subscribers and storage.
// It runs under the clock lock.
func (s *Server) AfterTick(sim *engine.Simulation) {
	events := sim.DrainEvents()
	if len(events) == 0 {
		return
	}
	s.Hub.Publish(events)
	if s.DB != nil {
		if err := s.DB.SaveEvents(events); err != nil {
			slog.Error("save events failed", "error", err)
		}
	}
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && token == s.AdminKey
}

// adminOnly requires the bearer token.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no CITYSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// read renders fn's result under the clock lock and writes it afterwards.
func (s *Server) read(w http.ResponseWriter, fn func(sim *engine.Simulation) (any, error)) {
	var (
		body []byte
		err  error
	)
	s.Clock.Exec(func(sim *engine.Simulation) {
		var data any
		if data, err = fn(sim); err == nil {
			body, err = json.MarshalIndent(data, "", "  ")
		}
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
	w.Write([]byte("\n"))
}

// command runs fn under the clock lock and publishes the events it emitted.
func (s *Server) command(w http.ResponseWriter, fn func(sim *engine.Simulation) (any, error)) {
	s.read(w, func(sim *engine.Simulation) (any, error) {
		result, err := fn(sim)
		s.AfterTick(sim)
		return result, err
	})
}

// statusFor maps command failures to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, world.ErrInvalidCoordinate), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, world.ErrIllegalMutation), errors.Is(err, engine.ErrUpgradeLocked):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

var (
	errBadRequest  = errors.New("bad request")
	errNotFound    = errors.New("not found")
	errUnavailable = errors.New("unavailable")
)

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

// coordParams reads {x} and {y} from the URL.
func coordParams(r *http.Request) (world.Coord, error) {
	x, errX := strconv.Atoi(chi.URLParam(r, "x"))
	y, errY := strconv.Atoi(chi.URLParam(r, "y"))
	if errX != nil || errY != nil {
		return world.Coord{}, fmt.Errorf("coordinates must be integers: %w", errBadRequest)
	}
	return world.Coord{X: x, Y: y}, nil
}

// decode reads a JSON request body into v.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", errBadRequest)
	}
	return nil
}
