// Package api provides the HTTP API for observing and steering the colony.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/mini-colony/internal/agents"
	"github.com/talgya/mini-colony/internal/blackboard"
	"github.com/talgya/mini-colony/internal/engine"
	"github.com/talgya/mini-colony/internal/persistence"
	"github.com/talgya/mini-colony/internal/tasks"
	"github.com/talgya/mini-colony/internal/world"
)

const (
	streamCatchUp    = 50
	streamWriteWait  = 5 * time.Second
	streamPingPeriod = 15 * time.Second
)

// Server serves the colony state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // Optional; /history is unavailable without it
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	upgrader websocket.Upgrader
	http     *http.Server
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	historyLimiter := NewRateLimiter(60, time.Minute)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/agents", s.handleAgents)
	mux.HandleFunc("GET /api/v1/agent/{id}", s.handleAgentDetail)
	mux.HandleFunc("GET /api/v1/tasks", s.handleTasks)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/history", RateLimitMiddleware(historyLimiter, s.handleHistory))
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	// Admin endpoints.
	mux.HandleFunc("GET /api/v1/speed", s.handleSpeed)
	mux.HandleFunc("POST /api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("POST /api/v1/designate", s.adminOnly(s.handleDesignate))
	mux.HandleFunc("POST /api/v1/source/{id}/remove", s.adminOnly(s.handleRemoveSource))

	return corsMiddleware(mux)
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

// Close stops the listener. Open streams end when their clients go away.
func (s *Server) Close() error {
	if s.http == nil {
		return nil
	}
	return s.http.Close()
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

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	return ok && token == s.AdminKey
}

// adminOnly wraps a handler so POST requests require the admin bearer token.
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
	s.Sim.RLock()
	st := s.Sim.Stats()
	s.Sim.RUnlock()

	status := map[string]any{
		"name":     "mini-colony",
		"tick":     st.Tick,
		"sim_time": engine.SimTime(st.Tick),
		"stats":    st,
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
	}
	writeJSON(w, status)
}

type agentSummary struct {
	ID         world.EntityID    `json:"id"`
	Name       string            `json:"name"`
	Profession agents.Profession `json:"profession"`
	Position   world.Position    `json:"position"`
	Busy       bool              `json:"busy"`
	Task       *tasks.Record     `json:"task,omitempty"`
	Completed  uint32            `json:"completed"`
	Cancelled  uint32            `json:"cancelled"`
}

func (s *Server) summarize(a *agents.Agent) agentSummary {
	pos, _ := s.Sim.Entities.Position(a.ID)
	sum := agentSummary{
		ID:         a.ID,
		Name:       a.Name,
		Profession: a.Profession,
		Position:   pos,
		Completed:  a.Completed,
		Cancelled:  a.Cancelled,
	}
	if rec, ok := a.CurrentTask(); ok {
		sum.Busy = true
		sum.Task = &rec
	}
	return sum
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	s.Sim.RLock()
	defer s.Sim.RUnlock()

	out := make([]agentSummary, 0, len(s.Sim.Colonists))
	for _, a := range s.Sim.Colonists {
		if prof := r.URL.Query().Get("profession"); prof != "" && a.Profession.String() != prof {
			continue
		}
		out = append(out, s.summarize(a))
	}
	writeJSON(w, out)
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}

	s.Sim.RLock()
	defer s.Sim.RUnlock()

	a, ok := s.Sim.Index[world.EntityID(id)]
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	detail := map[string]any{
		"agent":      s.summarize(a),
		"priorities": a.Priorities.Map(),
		"born_tick":  a.BornTick,
		"recent":     agents.RecentWork(a, 10),
	}
	if lt, ok := a.LastTask(); ok {
		detail["last_task"] = lt
	}
	if a.Board != nil {
		detail["blackboard"] = a.Board.Keys()
		if missing, ok := blackboard.Get(a.Board, agents.MissingReagent); ok {
			detail["missing_reagent"] = missing
		}
	}
	writeJSON(w, detail)
}

type sourceView struct {
	*engine.Source
	Entries []tasks.Entry `json:"entries"`
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	s.Sim.RLock()
	defer s.Sim.RUnlock()

	list := s.Sim.SourceList()
	out := make([]sourceView, 0, len(list))
	for _, src := range list {
		v := sourceView{Source: src, Entries: []tasks.Entry{}}
		for _, e := range src.Queue.All() {
			v.Entries = append(v.Entries, e)
		}
		out = append(out, v)
	}
	writeJSON(w, map[string]any{
		"sources": out,
		"piles":   s.Sim.PileList(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1000)

	s.Sim.RLock()
	events := s.Sim.RecentEvents(limit)
	s.Sim.RUnlock()

	writeJSON(w, events)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "history unavailable (no database)", http.StatusServiceUnavailable)
		return
	}

	var agent world.EntityID
	if raw := r.URL.Query().Get("agent"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid agent id", http.StatusBadRequest)
			return
		}
		agent = world.EntityID(id)
	}

	rows, err := s.DB.TaskHistory(agent, queryInt(r, "limit", 100, 1000))
	if err != nil {
		slog.Error("task history query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []persistence.HistoryEntry{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not running", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleDesignate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind string `json:"kind"`
		X    int    `json:"x"`
		Y    int    `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	kind, err := tasks.ParseKind(req.Kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.Sim.Lock()
	src, err := s.Sim.AddDesignation(kind, world.Pos(req.X, req.Y, 0))
	s.Sim.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	slog.Info("designation added", "id", src.ID, "kind", kind, "position", src.Position)
	writeJSON(w, src)
}

func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid source id", http.StatusBadRequest)
		return
	}

	s.Sim.Lock()
	err = s.Sim.RemoveSource(world.EntityID(id))
	s.Sim.Unlock()
	if errors.Is(err, engine.ErrUnknownSource) {
		http.Error(w, "source not found", http.StatusNotFound)
		return
	}

	slog.Info("source removed", "id", id)
	writeJSON(w, map[string]any{"removed": id})
}

// handleStream upgrades to a websocket and pushes colony events as JSON text
// frames, starting with a short catch-up of recent events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	subID, ch, backlog := s.Sim.SubscribeFrom(streamCatchUp)
	defer s.Sim.Unsubscribe(subID)

	for _, e := range backlog {
		if err := writeFrame(conn, e); err != nil {
			return
		}
	}

	slog.Info("stream client connected", "sub_id", subID)

	// Reader: discard client frames and notice when the client goes away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := writeFrame(conn, e); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-gone:
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, e engine.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func queryInt(r *http.Request, key string, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
