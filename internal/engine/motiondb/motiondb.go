// Package motiondb resolves motion-schema queries (actor type plus
// descriptive tags) to concrete clip names, from a JSON motion
// database.
package motiondb

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/voidworks/darkvr/internal/logger"
)

var (
	ErrNoActorType = errors.New("motiondb: unknown actor type")
	ErrNoMatch     = errors.New("motiondb: no clip matches the query")
)

// databaseSchema constrains motion database documents before they are
// unmarshaled; a malformed database fails loudly at load time instead
// of resolving garbage mid-mission.
const databaseSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["actors"],
  "properties": {
    "actors": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": {
          "type": "object",
          "required": ["clip", "tags"],
          "properties": {
            "clip": {"type": "string", "minLength": 1},
            "tags": {
              "type": "array",
              "items": {"type": "string", "minLength": 1}
            }
          }
        }
      }
    }
  }
}`

// Entry maps one clip to the tags it satisfies.
type Entry struct {
	Clip string   `json:"clip"`
	Tags []string `json:"tags"`
}

// SelectionMode picks how ties between equally-ranked entries break.
type SelectionMode int

const (
	// SelectRandom picks uniformly among the best-ranked entries.
	SelectRandom SelectionMode = iota
	// SelectSequential cycles through the best-ranked entries in
	// order, one per query.
	SelectSequential
)

// QueryItem is one tag of a query. Required tags must all be present
// on an entry; optional tags only improve its rank.
type QueryItem struct {
	Tag      string
	Optional bool
}

// Query asks for a clip for one actor type.
type Query struct {
	ActorType string
	Items     []QueryItem
	Selection SelectionMode
}

// Database is a loaded motion database. Resolve is not safe for
// concurrent use; the mission core owns a single instance.
type Database struct {
	actors  map[string][]Entry
	cursors map[string]int
	rng     *rand.Rand
}

type document struct {
	Actors map[string][]Entry `json:"actors"`
}

// Load validates and parses a motion database document.
func Load(data []byte) (*Database, error) {
	schema, err := jsonschema.CompileString("motiondb.json", databaseSchema)
	if err != nil {
		return nil, fmt.Errorf("compile motion schema: %w", err)
	}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse motion database: %w", err)
	}
	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("validate motion database: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse motion database: %w", err)
	}

	db := &Database{
		actors:  doc.Actors,
		cursors: make(map[string]int),
		rng:     rand.New(rand.NewSource(0x6d6f7470)),
	}
	for actor, entries := range db.actors {
		logger.Debug("motion database actor loaded",
			zap.String("actor", actor), zap.Int("entries", len(entries)))
	}
	return db, nil
}

// Resolve returns the clip name matching the query. Entries missing a
// required tag are excluded; among the rest the entries satisfying the
// most optional tags win, and Selection breaks ties.
func (db *Database) Resolve(q Query) (string, error) {
	entries, ok := db.actors[q.ActorType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoActorType, q.ActorType)
	}

	bestRank := -1
	var best []string
	for _, e := range entries {
		rank, ok := rankEntry(e, q.Items)
		if !ok {
			continue
		}
		if rank > bestRank {
			bestRank = rank
			best = best[:0]
		}
		if rank == bestRank {
			best = append(best, e.Clip)
		}
	}
	if len(best) == 0 {
		return "", fmt.Errorf("%w: actor %q tags %v", ErrNoMatch, q.ActorType, q.Items)
	}

	if q.Selection == SelectSequential {
		key := q.cursorKey()
		i := db.cursors[key] % len(best)
		db.cursors[key] = i + 1
		return best[i], nil
	}
	return best[db.rng.Intn(len(best))], nil
}

func rankEntry(e Entry, items []QueryItem) (int, bool) {
	tags := make(map[string]bool, len(e.Tags))
	for _, t := range e.Tags {
		tags[t] = true
	}
	rank := 0
	for _, item := range items {
		if tags[item.Tag] {
			rank++
			continue
		}
		if !item.Optional {
			return 0, false
		}
	}
	return rank, true
}

func (q Query) cursorKey() string {
	tags := make([]string, 0, len(q.Items))
	for _, item := range q.Items {
		tags = append(tags, item.Tag)
	}
	sort.Strings(tags)
	return q.ActorType + "|" + strings.Join(tags, ",")
}
