// Package entity is the component store. Components are plain data
// addressed by entity ID; all gameplay logic lives in the ai and
// mission packages.
package entity

import (
	"github.com/voidworks/darkvr/pkg/math"
)

// ID addresses one entity. Zero is never a live entity.
type ID uint32

// None is the null entity.
const None ID = 0

// AlertLevel is an AI's awareness of the player.
type AlertLevel uint8

const (
	AlertLowest AlertLevel = iota
	AlertLow
	AlertModerate
	AlertHigh
)

func (l AlertLevel) String() string {
	switch l {
	case AlertLowest:
		return "lowest"
	case AlertLow:
		return "low"
	case AlertModerate:
		return "moderate"
	case AlertHigh:
		return "high"
	}
	return "invalid"
}

// Position is the authoritative transform after physics sync.
type Position struct {
	Position math.Vec3
	Rotation math.Quat
	Cell     uint32
}

// TemplateID indexes the template library.
type TemplateID int32

// Creature dispatches per-species joint remapping and motion schemas.
type Creature int

const (
	CreatureNone Creature = iota
	CreatureHumanoid
	CreatureSpider
	CreatureOverlord
	CreatureCamera
	CreatureTurret
)

// ActorType is the motion-schema actor name for the creature.
func (c Creature) ActorType() string {
	switch c {
	case CreatureHumanoid:
		return "humanoid"
	case CreatureSpider:
		return "spider"
	case CreatureOverlord:
		return "overlord"
	case CreatureCamera, CreatureTurret:
		return "static"
	}
	return "none"
}

// AIAlertCap bounds an entity's alertness.
type AIAlertCap struct {
	MaxLevel AlertLevel
	MinLevel AlertLevel
	MinRelax AlertLevel
}

// AIAwareDelay is the raw time-to-level-two in milliseconds.
type AIAwareDelay struct {
	Milliseconds uint32
}

// AIAlertness mirrors the alertness engine's (current, peak) pair.
type AIAlertness struct {
	Current AlertLevel
	Peak    AlertLevel
}

// RenderType selects how the renderer treats the entity.
type RenderType int

const (
	RenderNormal RenderType = iota
	RenderNotRendered
	RenderCorona
	RenderEditorOnly
)

// HitPoints is current/max health.
type HitPoints struct {
	Current int32
	Max     int32
}

// Teleported counts down ticks during which the entity skips physics
// sync after a teleport.
type Teleported struct {
	CountdownTimer int32
}

// LinkKind tags a relation between two entities.
type LinkKind int

const (
	LinkSwitch LinkKind = iota
	LinkContains
	LinkFlinderize
	LinkCorpse
	LinkAIProjectile
	LinkAIRangedWeapon
	LinkAIWatchObj
)

// Link is a directed relation. Radius is only meaningful for
// LinkAIWatchObj.
type Link struct {
	Kind   LinkKind
	From   ID
	To     ID
	Radius float32
}

// Store owns every component map. It is mutated exclusively inside the
// mission tick.
type Store struct {
	next ID

	Names           map[ID]string
	Positions       map[ID]*Position
	Templates       map[ID]TemplateID
	Creatures       map[ID]Creature
	AlertCaps       map[ID]AIAlertCap
	AwareDelays     map[ID]AIAwareDelay
	Alertness       map[ID]*AIAlertness
	ModelNames      map[ID]string
	RenderTypes     map[ID]RenderType
	Scripts         map[ID][]string
	HitPoints       map[ID]*HitPoints
	VoiceIndexes    map[ID]int
	MotionActorTags map[ID][]string
	Teleported      map[ID]*Teleported
	Scales          map[ID]math.Vec3
	Transforms      map[ID]math.Mat4
	JointTransforms map[ID]*[40]math.Mat4
	HasRefs         map[ID]bool

	Links []Link
}

// NewStore returns an empty component store.
func NewStore() *Store {
	return &Store{
		next:            1,
		Names:           make(map[ID]string),
		Positions:       make(map[ID]*Position),
		Templates:       make(map[ID]TemplateID),
		Creatures:       make(map[ID]Creature),
		AlertCaps:       make(map[ID]AIAlertCap),
		AwareDelays:     make(map[ID]AIAwareDelay),
		Alertness:       make(map[ID]*AIAlertness),
		ModelNames:      make(map[ID]string),
		RenderTypes:     make(map[ID]RenderType),
		Scripts:         make(map[ID][]string),
		HitPoints:       make(map[ID]*HitPoints),
		VoiceIndexes:    make(map[ID]int),
		MotionActorTags: make(map[ID][]string),
		Teleported:      make(map[ID]*Teleported),
		Scales:          make(map[ID]math.Vec3),
		Transforms:      make(map[ID]math.Mat4),
		JointTransforms: make(map[ID]*[40]math.Mat4),
		HasRefs:         make(map[ID]bool),
	}
}

// Spawn allocates a fresh entity ID.
func (s *Store) Spawn() ID {
	id := s.next
	s.next++
	return id
}

// Alive reports whether the entity still has a position row.
func (s *Store) Alive(id ID) bool {
	_, ok := s.Positions[id]
	return ok
}

// Remove drops every component row and link touching the entity.
func (s *Store) Remove(id ID) {
	delete(s.Names, id)
	delete(s.Positions, id)
	delete(s.Templates, id)
	delete(s.Creatures, id)
	delete(s.AlertCaps, id)
	delete(s.AwareDelays, id)
	delete(s.Alertness, id)
	delete(s.ModelNames, id)
	delete(s.RenderTypes, id)
	delete(s.Scripts, id)
	delete(s.HitPoints, id)
	delete(s.VoiceIndexes, id)
	delete(s.MotionActorTags, id)
	delete(s.Teleported, id)
	delete(s.Scales, id)
	delete(s.Transforms, id)
	delete(s.JointTransforms, id)
	delete(s.HasRefs, id)

	kept := s.Links[:0]
	for _, l := range s.Links {
		if l.From != id && l.To != id {
			kept = append(kept, l)
		}
	}
	s.Links = kept
}

// AddLink appends a relation.
func (s *Store) AddLink(l Link) {
	s.Links = append(s.Links, l)
}

// LinksFrom returns every link of one kind leaving the entity.
func (s *Store) LinksFrom(id ID, kind LinkKind) []Link {
	var out []Link
	for _, l := range s.Links {
		if l.From == id && l.Kind == kind {
			out = append(out, l)
		}
	}
	return out
}

// RemoveLink drops the links of one kind between a specific pair.
func (s *Store) RemoveLink(from, to ID, kind LinkKind) {
	kept := s.Links[:0]
	for _, l := range s.Links {
		if l.From == from && l.To == to && l.Kind == kind {
			continue
		}
		kept = append(kept, l)
	}
	s.Links = kept
}

// RemoveLinksTo drops every link of one kind pointing at the entity,
// whoever holds it.
func (s *Store) RemoveLinksTo(to ID, kind LinkKind) {
	kept := s.Links[:0]
	for _, l := range s.Links {
		if l.To == to && l.Kind == kind {
			continue
		}
		kept = append(kept, l)
	}
	s.Links = kept
}

// FindByName returns the first entity carrying the name.
func (s *Store) FindByName(name string) (ID, bool) {
	for id, n := range s.Names {
		if n == name {
			return id, true
		}
	}
	return None, false
}
