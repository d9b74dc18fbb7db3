package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-colony/internal/agents"
	"github.com/talgya/mini-colony/internal/engine"
	"github.com/talgya/mini-colony/internal/persistence"
	"github.com/talgya/mini-colony/internal/tasks"
	"github.com/talgya/mini-colony/internal/world"
)

const testKey = "secret"

func newTestServer(t *testing.T) (*Server, *agents.Agent) {
	t.Helper()
	m := world.NewMap(12, 12)
	m.SetTerrain(world.Pos(6, 2, 0), world.TerrainRock)
	sim, err := engine.NewSimulation(m, world.NewEntities(), engine.Options{RepeatOrders: 1})
	require.NoError(t, err)

	_, err = sim.AddDesignation(tasks.KindDig, world.Pos(6, 2, 0))
	require.NoError(t, err)
	id := sim.Entities.Spawn(world.KindColonist, world.Pos(5, 1, 0))
	a := agents.NewAgent(id, "Digger", agents.ProfessionMiner, tasks.Priorities{1, 0, 0, 0})
	require.NoError(t, sim.AddColonist(a, world.Pos(5, 1, 0)))

	return &Server{Sim: sim, Eng: engine.NewEngine(), AdminKey: testKey}, a
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer(t)
	s.Sim.Step(1)

	rec := do(t, s.Handler(), "GET", "/api/v1/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, body["tick"])
	assert.Equal(t, "Day 1, 00:01", body["sim_time"])
	assert.EqualValues(t, 1, body["speed"])
}

func TestAgentsAndDetail(t *testing.T) {
	s, a := newTestServer(t)
	h := s.Handler()
	s.Sim.Step(1)

	rec := do(t, h, "GET", "/api/v1/agents", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]agentSummary](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Digger", list[0].Name)
	assert.True(t, list[0].Busy, "the colonist claimed the dig on tick 1")
	require.NotNil(t, list[0].Task)
	assert.Equal(t, tasks.KindDig, list[0].Task.Task.Kind)

	rec = do(t, h, "GET", "/api/v1/agents?profession=carpenter", "", "")
	assert.Empty(t, decode[[]agentSummary](t, rec))

	rec = do(t, h, "GET", "/api/v1/agent/"+itoa(a.ID), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[map[string]any](t, rec)
	assert.Contains(t, detail, "priorities")
	assert.Contains(t, detail["blackboard"], agents.CurrentTask.Name())

	assert.Equal(t, http.StatusNotFound, do(t, h, "GET", "/api/v1/agent/999", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "GET", "/api/v1/agent/abc", "", "").Code)
}

func TestTasksListsQueueEntries(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, "GET", "/api/v1/tasks", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Sources []struct {
			ID      world.EntityID `json:"id"`
			Kind    string         `json:"kind"`
			Entries []struct {
				State string `json:"state"`
			} `json:"entries"`
		} `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Sources, 1)
	require.Len(t, body.Sources[0].Entries, 1)
	assert.Equal(t, "available", body.Sources[0].Entries[0].State)

	s.Sim.Step(1)
	rec = do(t, h, "GET", "/api/v1/tasks", "", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "claimed", body.Sources[0].Entries[0].State)
}

func TestSpeedRequiresAdminKey(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	assert.Equal(t, http.StatusUnauthorized, do(t, h, "POST", "/api/v1/speed", `{"speed":2}`, "wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, "POST", "/api/v1/speed", `{"speed":2}`, "").Code)
	assert.Equal(t, 1.0, s.Eng.Speed())

	assert.Equal(t, http.StatusBadRequest, do(t, h, "POST", "/api/v1/speed", `{"speed":-1}`, testKey).Code)

	rec := do(t, h, "POST", "/api/v1/speed", `{"speed":4}`, testKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4.0, s.Eng.Speed())

	rec = do(t, h, "GET", "/api/v1/speed", "", "")
	assert.Equal(t, 4.0, decode[map[string]float64](t, rec)["speed"])

	s.AdminKey = ""
	assert.Equal(t, http.StatusForbidden, do(t, s.Handler(), "POST", "/api/v1/speed", `{"speed":2}`, testKey).Code)
}

func TestDesignateAndRemove(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	s.Sim.Map.SetTerrain(world.Pos(9, 9, 0), world.TerrainTree)

	rec := do(t, h, "POST", "/api/v1/designate", `{"kind":"chop","x":9,"y":9}`, testKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	src := decode[map[string]any](t, rec)
	assert.Len(t, s.Sim.Sources, 2)

	assert.Equal(t, http.StatusBadRequest,
		do(t, h, "POST", "/api/v1/designate", `{"kind":"chop","x":1,"y":1}`, testKey).Code,
		"grass cannot be chopped")
	assert.Equal(t, http.StatusBadRequest,
		do(t, h, "POST", "/api/v1/designate", `{"kind":"fly","x":9,"y":9}`, testKey).Code)

	id := int(src["id"].(float64))
	path := "/api/v1/source/" + itoa(world.EntityID(id)) + "/remove"
	assert.Equal(t, http.StatusOK, do(t, h, "POST", path, "", testKey).Code)
	assert.Len(t, s.Sim.Sources, 1)
	assert.Equal(t, http.StatusNotFound, do(t, h, "POST", path, "", testKey).Code)
}

func TestHistory(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s.Handler(), "GET", "/api/v1/history", "", "").Code)

	db, err := persistence.Open(filepath.Join(t.TempDir(), "colony.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s.DB = db
	h := s.Handler()

	for tick := uint64(1); tick <= 30 && s.Sim.Totals.Completed == 0; tick++ {
		s.Sim.Step(tick)
	}
	require.NoError(t, db.SaveWorldState(s.Sim))

	rec := do(t, h, "GET", "/api/v1/history?limit=5", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]persistence.HistoryEntry](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, "complete", rows[0].Outcome)
	assert.Equal(t, "dig_rock", rows[0].Reaction)

	assert.Equal(t, http.StatusBadRequest, do(t, h, "GET", "/api/v1/history?agent=x", "", "").Code)
}

func TestStreamDeliversEvents(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	s.Sim.Step(1)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Catch-up: the claim made on tick 1.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e engine.Event
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, uint64(1), e.Tick)
	assert.Contains(t, e.Description, "Digger took dig")

	// Live: the dig completes a few ticks later.
	for tick := uint64(2); tick <= 20; tick++ {
		s.Sim.Step(tick)
	}
	require.NoError(t, conn.ReadJSON(&e))
	assert.Greater(t, e.Tick, uint64(1))
}

func itoa(id world.EntityID) string {
	b, _ := json.Marshal(uint64(id))
	return string(b)
}
