// Package persistence provides SQLite storage for the settlement grid.
// Only kind and level are stored per cell; derived layers, residents'
// commute state and vehicles are rebuilt on load.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/mini-city/internal/engine"
	"github.com/talgya/mini-city/internal/world"
)

// ErrNoWorld is returned when nothing has been saved yet.
var ErrNoWorld = errors.New("no saved world")

// Metadata keys.
const (
	MetaLastTick = "last_tick"
	MetaCash     = "cash"
	MetaWidth    = "width"
	MetaHeight   = "height"
	MetaSeed     = "seed"
)

// DB wraps a SQLite connection for world state persistence.
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
	CREATE TABLE IF NOT EXISTS cells (
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		kind TEXT NOT NULL,
		level INTEGER NOT NULL,
		PRIMARY KEY (x, y)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		x INTEGER,
		y INTEGER
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_events_category ON events(category);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type cellRow struct {
	X     int    `db:"x"`
	Y     int    `db:"y"`
	Kind  string `db:"kind"`
	Level int    `db:"level"`
}

type eventRow struct {
	Tick        uint64        `db:"tick"`
	Description string        `db:"description"`
	Category    string        `db:"category"`
	X           sql.NullInt64 `db:"x"`
	Y           sql.NullInt64 `db:"y"`
}

// SaveGrid writes every non-empty cell (full replace).
func (db *DB) SaveGrid(g *world.Grid) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM cells"); err != nil {
		return err
	}

	stmt, err := tx.Preparex("INSERT INTO cells (x, y, kind, level) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	var execErr error
	g.Each(func(at world.Coord, cell *world.Cell) {
		if execErr != nil || cell.Kind == world.KindEmpty {
			return
		}
		_, execErr = stmt.Exec(at.X, at.Y, cell.Kind.String(), cell.Level)
	})
	if execErr != nil {
		return execErr
	}

	for key, value := range map[string]int{MetaWidth: g.Width, MetaHeight: g.Height} {
		if _, err := tx.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", key, strconv.Itoa(value)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadGrid rebuilds the saved grid. Houses come back with every resident
// at home and factories with empty job pools.
func (db *DB) LoadGrid() (*world.Grid, error) {
	width, err := db.metaInt(MetaWidth)
	if err != nil {
		return nil, err
	}
	height, err := db.metaInt(MetaHeight)
	if err != nil {
		return nil, err
	}

	var rows []cellRow
	if err := db.conn.Select(&rows, "SELECT x, y, kind, level FROM cells"); err != nil {
		return nil, fmt.Errorf("load cells: %w", err)
	}

	g := world.NewGrid(int(width), int(height))
	for _, r := range rows {
		kind, ok := world.ParseKind(r.Kind)
		if !ok {
			slog.Warn("skipping cell of unknown kind", "x", r.X, "y", r.Y, "kind", r.Kind)
			continue
		}
		at := world.Coord{X: r.X, Y: r.Y}
		if err := g.Place(at, world.Restored(at, kind, r.Level)); err != nil {
			slog.Warn("skipping cell outside grid", "x", r.X, "y", r.Y, "error", err)
		}
	}
	return g, nil
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
		var x, y sql.NullInt64
		if e.At != nil {
			x = sql.NullInt64{Int64: int64(e.At.X), Valid: true}
			y = sql.NullInt64{Int64: int64(e.At.Y), Valid: true}
		}
		_, err := tx.Exec(
			"INSERT INTO events (tick, description, category, x, y) VALUES (?, ?, ?, ?, ?)",
			e.Tick, e.Description, e.Category, x, y,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		"SELECT tick, description, category, x, y FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}

	events := make([]engine.Event, len(rows))
	for i, r := range rows {
		events[i] = engine.Event{Tick: r.Tick, Description: r.Description, Category: r.Category}
		if r.X.Valid && r.Y.Valid {
			events[i].At = &world.Coord{X: int(r.X.Int64), Y: int(r.Y.Int64)}
		}
	}
	return events, nil
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

func (db *DB) metaInt(key string) (int64, error) {
	value, err := db.GetMeta(key)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoWorld
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", key, value, err)
	}
	return n, nil
}

// SaveWorldState performs a full save of the grid, tick and treasury.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	slog.Info("saving world state", "tick", sim.CurrentTick(), "grid", sim.Grid.String())

	if err := db.SaveGrid(sim.Grid); err != nil {
		return fmt.Errorf("save grid: %w", err)
	}
	if err := db.SaveMeta(MetaLastTick, strconv.FormatUint(sim.CurrentTick(), 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta(MetaCash, strconv.FormatInt(sim.Cash, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("world state saved")
	return nil
}

// LoadWorldState restores a simulation from storage. Vehicles are not
// stored, so every resident starts at home.
func (db *DB) LoadWorldState(opts engine.Options) (*engine.Simulation, error) {
	g, err := db.LoadGrid()
	if err != nil {
		return nil, err
	}
	sim := engine.NewSimulation(g, opts)

	if tick, err := db.metaInt(MetaLastTick); err == nil {
		sim.Tick = uint64(tick)
	} else if !errors.Is(err, ErrNoWorld) {
		return nil, err
	}
	if cash, err := db.metaInt(MetaCash); err == nil {
		sim.Cash = cash
		sim.Report.Cash = cash
	} else if !errors.Is(err, ErrNoWorld) {
		return nil, err
	}

	slog.Info("world state loaded", "tick", sim.Tick, "cash", sim.Cash, "grid", g.String())
	return sim, nil
}
