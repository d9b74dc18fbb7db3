// Row mapping for colonists, sources, piles, terrain changes and the task
// journal, and restoring a simulation from them.
package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/mini-colony/internal/agents"
	"github.com/talgya/mini-colony/internal/economy"
	"github.com/talgya/mini-colony/internal/engine"
	"github.com/talgya/mini-colony/internal/tasks"
	"github.com/talgya/mini-colony/internal/world"
)

type colonistRow struct {
	ID             int64  `db:"id"`
	Name           string `db:"name"`
	Profession     string `db:"profession"`
	PrioritiesJSON string `db:"priorities_json"`
	X              int    `db:"pos_x"`
	Y              int    `db:"pos_y"`
	Z              int    `db:"pos_z"`
	Completed      uint32 `db:"completed"`
	Cancelled      uint32 `db:"cancelled"`
	BornTick       int64  `db:"born_tick"`
	WorkLogJSON    string `db:"work_log_json"`
}

type sourceRow struct {
	ID       int64  `db:"id"`
	Kind     string `db:"kind"`
	X        int    `db:"pos_x"`
	Y        int    `db:"pos_y"`
	Z        int    `db:"pos_z"`
	Workshop string `db:"workshop"`
	TaskKind string `db:"task_kind"`
	Reaction string `db:"reaction"`
}

type pileRow struct {
	ID           int64  `db:"id"`
	X            int    `db:"pos_x"`
	Y            int    `db:"pos_y"`
	Z            int    `db:"pos_z"`
	ContentsJSON string `db:"contents_json"`
}

type tileRow struct {
	X       int `db:"pos_x"`
	Y       int `db:"pos_y"`
	Z       int `db:"pos_z"`
	Terrain int `db:"terrain"`
}

// HistoryEntry is one row of the task journal.
type HistoryEntry struct {
	ID       int64  `db:"id" json:"id"`
	Tick     int64  `db:"tick" json:"tick"`
	AgentID  int64  `db:"agent_id" json:"agent_id"`
	SourceID int64  `db:"source_id" json:"source_id"`
	TaskID   string `db:"task_id" json:"task_id"`
	Kind     string `db:"kind" json:"kind"`
	Reaction string `db:"reaction" json:"reaction"`
	Outcome  string `db:"outcome" json:"outcome"`
}

// SaveColonists writes all colonists to the database (full replace). Caller
// holds the simulation lock.
func (db *DB) SaveColonists(sim *engine.Simulation) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM colonists"); err != nil {
		return err
	}

	for _, a := range sim.Colonists {
		prioJSON, _ := json.Marshal(a.Priorities.Map())
		logJSON, _ := json.Marshal(a.WorkLog)
		pos, _ := sim.Entities.Position(a.ID)

		_, err := tx.NamedExec(`INSERT INTO colonists
			(id, name, profession, priorities_json, pos_x, pos_y, pos_z,
			 completed, cancelled, born_tick, work_log_json)
			VALUES (:id, :name, :profession, :priorities_json, :pos_x, :pos_y, :pos_z,
			 :completed, :cancelled, :born_tick, :work_log_json)`,
			colonistRow{
				ID:             int64(a.ID),
				Name:           a.Name,
				Profession:     a.Profession.String(),
				PrioritiesJSON: string(prioJSON),
				X:              pos.X,
				Y:              pos.Y,
				Z:              pos.Z,
				Completed:      a.Completed,
				Cancelled:      a.Cancelled,
				BornTick:       int64(a.BornTick),
				WorkLogJSON:    string(logJSON),
			})
		if err != nil {
			return fmt.Errorf("insert colonist %d: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// SaveSources writes all task sources (full replace). Queues are not saved.
func (db *DB) SaveSources(sources []*engine.Source) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM sources"); err != nil {
		return err
	}

	for _, src := range sources {
		_, err := tx.NamedExec(`INSERT INTO sources
			(id, kind, pos_x, pos_y, pos_z, workshop, task_kind, reaction)
			VALUES (:id, :kind, :pos_x, :pos_y, :pos_z, :workshop, :task_kind, :reaction)`,
			sourceRow{
				ID:       int64(src.ID),
				Kind:     src.Kind.String(),
				X:        src.Position.X,
				Y:        src.Position.Y,
				Z:        src.Position.Z,
				Workshop: src.Workshop,
				TaskKind: src.TaskKind.String(),
				Reaction: src.Reaction,
			})
		if err != nil {
			return fmt.Errorf("insert source %d: %w", src.ID, err)
		}
	}

	return tx.Commit()
}

// SavePiles writes all item piles (full replace).
func (db *DB) SavePiles(piles []*engine.Pile) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM piles"); err != nil {
		return err
	}

	for _, p := range piles {
		contents, _ := json.Marshal(p.Contents.Map())
		_, err := tx.Exec(
			"INSERT INTO piles (id, pos_x, pos_y, pos_z, contents_json) VALUES (?, ?, ?, ?, ?)",
			int64(p.ID), p.Position.X, p.Position.Y, p.Position.Z, string(contents),
		)
		if err != nil {
			return fmt.Errorf("insert pile %d: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// SaveTileChanges writes the terrain altered since the map was generated.
func (db *DB) SaveTileChanges(changes map[world.Position]world.Terrain) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for p, t := range changes {
		_, err := tx.Exec(
			"INSERT OR REPLACE INTO tile_changes (pos_x, pos_y, pos_z, terrain) VALUES (?, ?, ?, ?)",
			p.X, p.Y, p.Z, int(t),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AppendTaskHistory appends resolved claims to the task journal.
func (db *DB) AppendTaskHistory(entries []engine.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range entries {
		_, err := tx.Exec(`INSERT INTO task_history
			(tick, agent_id, source_id, task_id, kind, reaction, outcome)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			int64(e.Tick), int64(e.Agent), int64(e.Source), e.TaskID.String(),
			e.Kind.String(), e.Reaction, e.Outcome.String(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// TaskHistory returns the newest journal entries. A non-zero agent filters
// to one colonist.
func (db *DB) TaskHistory(agent world.EntityID, limit int) ([]HistoryEntry, error) {
	var out []HistoryEntry
	var err error
	if agent != 0 {
		err = db.conn.Select(&out,
			"SELECT * FROM task_history WHERE agent_id = ? ORDER BY id DESC LIMIT ?",
			int64(agent), limit)
	} else {
		err = db.conn.Select(&out,
			"SELECT * FROM task_history ORDER BY id DESC LIMIT ?", limit)
	}
	return out, err
}

// LoadWorldState rebuilds a saved colony on m, which the caller regenerates
// from the colony's seed. Every restored task starts Available.
func (db *DB) LoadWorldState(m *world.Map, opts engine.Options) (*engine.Simulation, error) {
	tick, err := db.LastTick()
	if err != nil {
		return nil, fmt.Errorf("read last tick: %w", err)
	}

	ents := world.NewEntities()
	sim, err := engine.NewSimulation(m, ents, opts)
	if err != nil {
		return nil, err
	}
	sim.LastTick = tick

	var tiles []tileRow
	if err := db.conn.Select(&tiles, "SELECT pos_x, pos_y, pos_z, terrain FROM tile_changes"); err != nil {
		return nil, fmt.Errorf("load tile changes: %w", err)
	}
	changes := make(map[world.Position]world.Terrain, len(tiles))
	for _, t := range tiles {
		changes[world.Pos(t.X, t.Y, t.Z)] = world.Terrain(t.Terrain)
	}
	sim.ApplyTileChanges(changes)

	var piles []pileRow
	if err := db.conn.Select(&piles, "SELECT * FROM piles ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load piles: %w", err)
	}
	for _, r := range piles {
		contents, err := decodeInventory(r.ContentsJSON)
		if err != nil {
			return nil, fmt.Errorf("pile %d: %w", r.ID, err)
		}
		sim.RestorePile(&engine.Pile{
			ID:       world.EntityID(r.ID),
			Position: world.Pos(r.X, r.Y, r.Z),
			Contents: contents,
		})
	}

	var sources []sourceRow
	if err := db.conn.Select(&sources, "SELECT * FROM sources ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	for _, r := range sources {
		src, err := r.toSource()
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", r.ID, err)
		}
		sim.RestoreSource(src)
	}

	var colonists []colonistRow
	if err := db.conn.Select(&colonists, "SELECT * FROM colonists ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load colonists: %w", err)
	}
	for _, r := range colonists {
		a, err := r.toAgent()
		if err != nil {
			return nil, fmt.Errorf("colonist %d: %w", r.ID, err)
		}
		if err := sim.AddColonist(a, world.Pos(r.X, r.Y, r.Z)); err != nil {
			return nil, err
		}
	}

	stock := map[string]int{}
	if err := db.getMetaJSON("stockpile", &stock); err != nil {
		return nil, fmt.Errorf("load stockpile: %w", err)
	}
	for name, n := range stock {
		g, err := economy.ParseGood(name)
		if err != nil {
			return nil, fmt.Errorf("load stockpile: %w", err)
		}
		sim.Stockpile.Add(g, n)
	}
	if err := db.getMetaJSON("totals", &sim.Totals); err != nil {
		return nil, fmt.Errorf("load totals: %w", err)
	}
	var next uint64
	if err := db.getMetaJSON("next_entity_id", &next); err != nil {
		return nil, fmt.Errorf("load next id: %w", err)
	}
	ents.SetNextID(world.EntityID(next))
	sim.RebuildCache()

	return sim, nil
}

func (r colonistRow) toAgent() (*agents.Agent, error) {
	prof, err := agents.ParseProfession(r.Profession)
	if err != nil {
		return nil, err
	}
	var weights map[string]uint8
	if err := json.Unmarshal([]byte(r.PrioritiesJSON), &weights); err != nil {
		return nil, fmt.Errorf("priorities: %w", err)
	}
	prio, err := tasks.PrioritiesFromMap(weights)
	if err != nil {
		return nil, err
	}

	a := agents.NewAgent(world.EntityID(r.ID), r.Name, prof, prio)
	a.Completed = r.Completed
	a.Cancelled = r.Cancelled
	a.BornTick = uint64(r.BornTick)
	if err := json.Unmarshal([]byte(r.WorkLogJSON), &a.WorkLog); err != nil {
		return nil, fmt.Errorf("work log: %w", err)
	}
	return a, nil
}

func (r sourceRow) toSource() (*engine.Source, error) {
	src := &engine.Source{
		ID:       world.EntityID(r.ID),
		Position: world.Pos(r.X, r.Y, r.Z),
		Workshop: r.Workshop,
		Reaction: r.Reaction,
	}
	switch r.Kind {
	case engine.SourceDesignation.String():
		src.Kind = engine.SourceDesignation
	case engine.SourceWorkshop.String():
		src.Kind = engine.SourceWorkshop
	default:
		return nil, fmt.Errorf("unknown source kind %q", r.Kind)
	}
	kind, err := tasks.ParseKind(r.TaskKind)
	if err != nil {
		return nil, err
	}
	src.TaskKind = kind
	return src, nil
}

func decodeInventory(raw string) (economy.Inventory, error) {
	var inv economy.Inventory
	var m map[string]int
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return inv, err
	}
	for name, n := range m {
		g, err := economy.ParseGood(name)
		if err != nil {
			return inv, err
		}
		inv.Add(g, n)
	}
	return inv, nil
}
