// Package persistence provides SQLite-based colony state storage.
//
// Colonists, sources, piles, terrain changes and the task journal are stored.
// Claims and blackboards are not: a restored colony starts with every task
// Available and every colonist idle.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/mini-colony/internal/engine"
)

// DB wraps a SQLite connection for colony state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS colonists (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		profession TEXT NOT NULL,
		priorities_json TEXT NOT NULL,
		pos_x INTEGER NOT NULL,
		pos_y INTEGER NOT NULL,
		pos_z INTEGER NOT NULL,
		completed INTEGER NOT NULL,
		cancelled INTEGER NOT NULL,
		born_tick INTEGER NOT NULL,
		work_log_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sources (
		id INTEGER PRIMARY KEY,
		kind TEXT NOT NULL,
		pos_x INTEGER NOT NULL,
		pos_y INTEGER NOT NULL,
		pos_z INTEGER NOT NULL,
		workshop TEXT NOT NULL,
		task_kind TEXT NOT NULL,
		reaction TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS piles (
		id INTEGER PRIMARY KEY,
		pos_x INTEGER NOT NULL,
		pos_y INTEGER NOT NULL,
		pos_z INTEGER NOT NULL,
		contents_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tile_changes (
		pos_x INTEGER NOT NULL,
		pos_y INTEGER NOT NULL,
		pos_z INTEGER NOT NULL,
		terrain INTEGER NOT NULL,
		PRIMARY KEY (pos_x, pos_y, pos_z)
	);

	CREATE TABLE IF NOT EXISTS task_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		source_id INTEGER NOT NULL,
		task_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		reaction TEXT NOT NULL,
		outcome TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_agent ON task_history(agent_id);
	CREATE INDEX IF NOT EXISTS idx_history_tick ON task_history(tick);
	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (tick, description, category) VALUES (?, ?, ?)",
			e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

func (db *DB) saveMetaJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return db.SaveMeta(key, string(data))
}

func (db *DB) getMetaJSON(key string, v any) error {
	raw, err := db.GetMeta(key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	return json.Unmarshal([]byte(raw), v)
}

// HasWorldState reports whether a colony has been saved.
func (db *DB) HasWorldState() bool {
	_, err := db.GetMeta("last_tick")
	return err == nil
}

// LastTick returns the tick of the last save.
func (db *DB) LastTick() (uint64, error) {
	raw, err := db.GetMeta("last_tick")
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(raw, 10, 64)
}

// SaveWorldState performs a full save of the colony. It takes the simulation's
// write lock to acknowledge the task journal; entries stay queued until their
// insert commits.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	sim.Lock()
	defer sim.Unlock()

	var since uint64
	saved := db.HasWorldState()
	if saved {
		t, err := db.LastTick()
		if err != nil {
			return fmt.Errorf("read last tick: %w", err)
		}
		since = t
	}

	slog.Info("saving colony state",
		"tick", sim.LastTick,
		"colonists", len(sim.Colonists),
		"sources", len(sim.Sources),
		"piles", len(sim.Piles),
	)

	if err := db.SaveColonists(sim); err != nil {
		return fmt.Errorf("save colonists: %w", err)
	}
	if err := db.SaveSources(sim.SourceList()); err != nil {
		return fmt.Errorf("save sources: %w", err)
	}
	if err := db.SavePiles(sim.PileList()); err != nil {
		return fmt.Errorf("save piles: %w", err)
	}
	if err := db.SaveTileChanges(sim.TileChanges); err != nil {
		return fmt.Errorf("save tile changes: %w", err)
	}
	journal := sim.Journal()
	if err := db.AppendTaskHistory(journal); err != nil {
		return fmt.Errorf("save task history: %w", err)
	}
	sim.AckJournal(len(journal))

	var fresh []engine.Event
	for _, e := range sim.Events {
		if !saved || e.Tick > since {
			fresh = append(fresh, e)
		}
	}
	if err := db.SaveEvents(fresh); err != nil {
		return fmt.Errorf("save events: %w", err)
	}

	if err := db.saveMetaJSON("stockpile", sim.Stockpile.Map()); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.saveMetaJSON("totals", sim.Totals); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta("next_entity_id", strconv.FormatUint(uint64(sim.Entities.NextID()), 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta("last_tick", strconv.FormatUint(sim.LastTick, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("colony state saved")
	return nil
}
