// Package api exposes the running game over HTTP. GET endpoints are public
// read-only observation; the SSE stream relays broadcast events; POST
// endpoints require a bearer token.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/calderas/rumormill/internal/archive"
	"github.com/calderas/rumormill/internal/game"
)

const maxSSEConns = 8

// Server serves one game session over HTTP.
type Server struct {
	Session  *game.Session
	DB       *archive.DB // nil disables history endpoints
	Port     int
	AdminKey string // bearer token for POST endpoints; empty = POST disabled

	startedAt time.Time
	sseConns  int32
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	s.startedAt = time.Now()

	historyLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/feed", s.handleFeed)
	mux.HandleFunc("/api/v1/market", s.handleMarket)
	mux.HandleFunc("/api/v1/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentDetail)
	mux.HandleFunc("/api/v1/history", RateLimitMiddleware(historyLimiter, s.handleHistory))

	// SSE relay of broadcast events.
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// Admin control plane.
	mux.HandleFunc("/api/v1/advance", s.adminOnly(s.handleAdvance))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins. Set
// CORS_ORIGINS to a comma-separated list; localhost dev servers are always
// allowed.
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

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no admin key set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	m := s.Session.Market()
	sc := s.Session.Scenario

	outcome := "hidden"
	if o, revealed := s.Session.Outcome(); revealed {
		outcome = string(o)
	}

	writeJSON(w, map[string]any{
		"session":      s.Session.ID,
		"scenario":     sc.Title,
		"question":     sc.Question,
		"phase":        s.Session.Phase(),
		"day":          s.Session.Day(),
		"agents":       len(s.Session.Roster()),
		"yes_odds":     m.YesOdds,
		"no_odds":      m.NoOdds,
		"volume":       humanize.Commaf(m.Volume),
		"bets":         m.BetCount,
		"betting_open": m.BettingOpen,
		"outcome":      outcome,
		"uptime":       humanize.Time(s.startedAt),
	})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	writeJSON(w, s.Session.Feed(limit))
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Session.Market())
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Session.Leaderboard())
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	type agentSummary struct {
		ID          string         `json:"id"`
		DisplayName string         `json:"display_name"`
		Type        game.AgentType `json:"type"`
		Reputation  float64        `json:"reputation"`
		Followers   int            `json:"followers"`
		Wins        int            `json:"wins"`
	}

	result := make([]agentSummary, 0)
	for _, id := range s.Session.Roster() {
		a := s.Session.AgentByID(id)
		if a == nil {
			continue
		}
		rep := 0.0
		if sc := s.Session.AgentScore(id); sc != nil {
			rep = sc.Overall
		}
		result = append(result, agentSummary{
			ID:          a.ID,
			DisplayName: a.DisplayName,
			Type:        a.Type,
			Reputation:  rep,
			Followers:   len(a.Followers),
			Wins:        a.WinCount,
		})
	}
	writeJSON(w, result)
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 5 || parts[4] == "" {
		http.Error(w, "missing agent id", http.StatusBadRequest)
		return
	}
	id := parts[4]

	a := s.Session.AgentByID(id)
	if a == nil {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]any{
		"agent":      a,
		"reputation": s.Session.AgentStats(id),
		"holdings":   s.Session.Holdings(id),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "archive not available", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	rows, err := s.DB.RecentGames(limit)
	if err != nil {
		slog.Error("history query failed", "error", err)
		writeJSON(w, []archive.GameRow{})
		return
	}

	type gameEntry struct {
		archive.GameRow
		RevealedAgo string `json:"revealed_ago"`
	}
	result := make([]gameEntry, 0, len(rows))
	for _, row := range rows {
		result = append(result, gameEntry{GameRow: row, RevealedAgo: humanize.Time(row.RevealedAt)})
	}
	writeJSON(w, result)
}

// handleAdvance force-advances the game to a given day. Operator debug
// control; the live ticker keeps its own schedule otherwise.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Day int `json:"day"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Day < 1 || req.Day > game.TotalDays {
		http.Error(w, fmt.Sprintf("day must be 1-%d", game.TotalDays), http.StatusBadRequest)
		return
	}

	s.Session.AdvanceToDay(req.Day)
	slog.Info("day advanced via API", "day", s.Session.Day())

	writeJSON(w, map[string]any{
		"day":   s.Session.Day(),
		"phase": s.Session.Phase(),
	})
}

// handleStream provides an SSE endpoint relaying broadcast events as they
// happen, with a short feed catch-up for fresh clients.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	current := atomic.AddInt32(&s.sseConns, 1)
	if current > maxSSEConns {
		atomic.AddInt32(&s.sseConns, -1)
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.sseConns, -1)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch, cancel := s.Session.Bus().Subscribe()
	defer cancel()

	for _, p := range s.Session.Feed(10) {
		writeSSEEvent(w, game.Event{
			Type:      game.EventNewPost,
			Timestamp: p.Timestamp,
			Payload:   map[string]any{"post": p},
		})
	}
	flusher.Flush()

	slog.Info("SSE client connected", "remote", r.RemoteAddr)

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeSSEEvent(w, ev)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "remote", r.RemoteAddr)
			return
		}
	}
}

// writeSSEEvent writes a single event in SSE format.
func writeSSEEvent(w http.ResponseWriter, ev game.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
