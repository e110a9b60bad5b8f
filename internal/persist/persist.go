// Package persist stores save games: the held-item loadout carried
// between missions plus a compressed snapshot of the entity components.
package persist

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/voidworks/darkvr/internal/game/entity"
	"github.com/voidworks/darkvr/pkg/math"
)

// ErrSaveNotFound is returned when loading a save name that does not
// exist.
var ErrSaveNotFound = errors.New("persist: save not found")

// Slot names for the held-item loadout.
const (
	SlotLeftHand  = "left_hand"
	SlotRightHand = "right_hand"
	SlotInventory = "inventory"
)

// HeldItems is the loadout that survives a level transition.
type HeldItems struct {
	LeftHand  string
	RightHand string
	Inventory []string
}

// EntityRow is one entity's persisted component state.
type EntityRow struct {
	Name      string            `json:"name"`
	Template  int32             `json:"template,omitempty"`
	Position  [3]float32        `json:"position"`
	Rotation  [4]float32        `json:"rotation"`
	Alertness [2]uint8          `json:"alertness,omitempty"`
	HitPoints *entity.HitPoints `json:"hit_points,omitempty"`
}

// Snapshot is the serialized mission state.
type Snapshot struct {
	Mission  string      `json:"mission"`
	Entities []EntityRow `json:"entities"`
}

// SaveRecord couples a snapshot with its loadout.
type SaveRecord struct {
	Name      string
	Mission   string
	CreatedAt time.Time
	Held      HeldItems
	Snapshot  Snapshot
}

// SaveStore is the sqlite-backed save database.
type SaveStore struct {
	db *sql.DB
}

// Open opens (or creates) the save database at path.
func Open(path string) (*SaveStore, error) {
	if path == "" {
		return nil, fmt.Errorf("persist: empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SaveStore{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS saves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			mission TEXT NOT NULL,
			created_at TEXT NOT NULL,
			snapshot BLOB NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS held_items (
			save_id INTEGER NOT NULL REFERENCES saves(id) ON DELETE CASCADE,
			slot TEXT NOT NULL,
			item TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_held_save ON held_items(save_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *SaveStore) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// Put writes a save record, replacing any save with the same name.
func (s *SaveStore) Put(rec SaveRecord) error {
	blob, err := encodeSnapshot(rec.Snapshot)
	if err != nil {
		return err
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(
		`INSERT INTO saves(name,mission,created_at,snapshot) VALUES(?,?,?,?)
		 ON CONFLICT(name) DO UPDATE SET mission=excluded.mission,
		   created_at=excluded.created_at, snapshot=excluded.snapshot`,
		rec.Name, rec.Mission, created.Format(time.RFC3339Nano), blob,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if id == 0 {
		// Conflict path: look the row id up.
		if err := tx.QueryRow(`SELECT id FROM saves WHERE name = ?`, rec.Name).Scan(&id); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM held_items WHERE save_id = ?`, id); err != nil {
		return err
	}
	insert := func(slot, item string) error {
		if item == "" {
			return nil
		}
		_, err := tx.Exec(`INSERT INTO held_items(save_id,slot,item) VALUES(?,?,?)`, id, slot, item)
		return err
	}
	if err := insert(SlotLeftHand, rec.Held.LeftHand); err != nil {
		return err
	}
	if err := insert(SlotRightHand, rec.Held.RightHand); err != nil {
		return err
	}
	for _, item := range rec.Held.Inventory {
		if err := insert(SlotInventory, item); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Get loads a save record by name.
func (s *SaveStore) Get(name string) (*SaveRecord, error) {
	var (
		id      int64
		mission string
		created string
		blob    []byte
	)
	err := s.db.QueryRow(
		`SELECT id, mission, created_at, snapshot FROM saves WHERE name = ?`, name,
	).Scan(&id, &mission, &created, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSaveNotFound
	}
	if err != nil {
		return nil, err
	}

	snap, err := decodeSnapshot(blob)
	if err != nil {
		return nil, err
	}
	rec := &SaveRecord{Name: name, Mission: mission, Snapshot: snap}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		rec.CreatedAt = t
	}

	rows, err := s.db.Query(`SELECT slot, item FROM held_items WHERE save_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var slot, item string
		if err := rows.Scan(&slot, &item); err != nil {
			return nil, err
		}
		switch slot {
		case SlotLeftHand:
			rec.Held.LeftHand = item
		case SlotRightHand:
			rec.Held.RightHand = item
		case SlotInventory:
			rec.Held.Inventory = append(rec.Held.Inventory, item)
		}
	}
	return rec, rows.Err()
}

// List returns the save names, newest first.
func (s *SaveStore) List() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM saves ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes a save and its held items.
func (s *SaveStore) Delete(name string) error {
	_, err := s.db.Exec(`DELETE FROM saves WHERE name = ?`, name)
	return err
}

func encodeSnapshot(snap Snapshot) ([]byte, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(raw); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(blob []byte) (Snapshot, error) {
	dec, err := zstd.NewReader(bytes.NewReader(blob))
	if err != nil {
		return Snapshot{}, err
	}
	defer dec.Close()
	raw, err := io.ReadAll(dec)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// SnapshotStore captures the persistable component state of every
// live entity.
func SnapshotStore(store *entity.Store, mission string) Snapshot {
	snap := Snapshot{Mission: mission}
	for id, pos := range store.Positions {
		row := EntityRow{
			Name:     store.Names[id],
			Position: [3]float32{pos.Position.X, pos.Position.Y, pos.Position.Z},
			Rotation: [4]float32{pos.Rotation.X, pos.Rotation.Y, pos.Rotation.Z, pos.Rotation.W},
		}
		if tpl, ok := store.Templates[id]; ok {
			row.Template = int32(tpl)
		}
		if a, ok := store.Alertness[id]; ok {
			row.Alertness = [2]uint8{uint8(a.Current), uint8(a.Peak)}
		}
		if hp, ok := store.HitPoints[id]; ok {
			cp := *hp
			row.HitPoints = &cp
		}
		snap.Entities = append(snap.Entities, row)
	}
	return snap
}

// RestoreStore rebuilds component rows from a snapshot into a fresh
// store. Runtime state (models, physics bodies, script state) is
// rebuilt by the mission loader from the templates.
func RestoreStore(snap Snapshot) *entity.Store {
	store := entity.NewStore()
	for _, row := range snap.Entities {
		id := store.Spawn()
		if row.Name != "" {
			store.Names[id] = row.Name
		}
		store.Positions[id] = &entity.Position{
			Position: math.Vec3{X: row.Position[0], Y: row.Position[1], Z: row.Position[2]},
			Rotation: math.Quat{X: row.Rotation[0], Y: row.Rotation[1], Z: row.Rotation[2], W: row.Rotation[3]},
		}
		if row.Template != 0 {
			store.Templates[id] = entity.TemplateID(row.Template)
		}
		if row.Alertness != ([2]uint8{}) {
			store.Alertness[id] = &entity.AIAlertness{
				Current: entity.AlertLevel(row.Alertness[0]),
				Peak:    entity.AlertLevel(row.Alertness[1]),
			}
		}
		if row.HitPoints != nil {
			cp := *row.HitPoints
			store.HitPoints[id] = &cp
		}
	}
	return store
}
