package audio

import (
	"math/rand"
	"strings"
	"sync"
)

// Sample is one playable sound. Frequency weights random selection
// within a schema and speech line picks.
type Sample struct {
	Name      string
	Data      []byte
	Frequency int
}

// Schema maps sound schema names to weighted sample sets.
type Schema struct {
	mu      sync.RWMutex
	samples map[string][]Sample
	rng     *rand.Rand
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{
		samples: make(map[string][]Sample),
		rng:     rand.New(rand.NewSource(0x736e6400)),
	}
}

// Add registers a sample under a schema name.
func (s *Schema) Add(schemaName string, sample Sample) {
	if sample.Frequency <= 0 {
		sample.Frequency = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(schemaName)
	s.samples[key] = append(s.samples[key], sample)
}

// GetRandomSample picks a frequency-weighted sample from a schema.
func (s *Schema) GetRandomSample(schemaName string) (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.samples[strings.ToLower(schemaName)]
	if len(set) == 0 {
		return Sample{}, false
	}
	total := 0
	for _, sm := range set {
		total += sm.Frequency
	}
	pick := s.rng.Intn(total)
	for _, sm := range set {
		pick -= sm.Frequency
		if pick < 0 {
			return sm, true
		}
	}
	return set[len(set)-1], true
}

// Literal looks for a sample registered directly under the name,
// the fallback path for names that are not schemas.
func (s *Schema) Literal(name string) (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, set := range s.samples {
		for _, sm := range set {
			if strings.EqualFold(sm.Name, name) {
				return sm, true
			}
		}
	}
	return Sample{}, false
}

// SpeechLine ties a schema ID to the tags that select it.
type SpeechLine struct {
	SchemaID string
	Tags     []string
	Weight   int
}

// SpeechDB resolves (voice, concept, tags) to a schema ID. Each voice
// maps concepts to candidate lines; a line matches when all of its
// tags appear in the query.
type SpeechDB struct {
	mu     sync.RWMutex
	voices map[int]map[string][]SpeechLine
	rng    *rand.Rand
}

// NewSpeechDB returns an empty speech database.
func NewSpeechDB() *SpeechDB {
	return &SpeechDB{
		voices: make(map[int]map[string][]SpeechLine),
		rng:    rand.New(rand.NewSource(0x76636500)),
	}
}

// Add registers a line for one voice and concept.
func (db *SpeechDB) Add(voiceIndex int, concept string, line SpeechLine) {
	if line.Weight <= 0 {
		line.Weight = 1
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	voice := db.voices[voiceIndex]
	if voice == nil {
		voice = make(map[string][]SpeechLine)
		db.voices[voiceIndex] = voice
	}
	key := strings.ToLower(concept)
	voice[key] = append(voice[key], line)
}

// Resolve picks a weighted line whose tags are all present in the
// query tags. Returns false when the voice, concept, or tag match is
// empty.
func (db *SpeechDB) Resolve(voiceIndex int, concept string, tags []string) (string, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	voice := db.voices[voiceIndex]
	if voice == nil {
		return "", false
	}
	lines := voice[strings.ToLower(concept)]
	if len(lines) == 0 {
		return "", false
	}

	query := make(map[string]bool, len(tags))
	for _, t := range tags {
		query[strings.ToLower(t)] = true
	}

	var matched []SpeechLine
	total := 0
	for _, line := range lines {
		ok := true
		for _, t := range line.Tags {
			if !query[strings.ToLower(t)] {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, line)
			total += line.Weight
		}
	}
	if len(matched) == 0 {
		return "", false
	}

	pick := db.rng.Intn(total)
	for _, line := range matched {
		pick -= line.Weight
		if pick < 0 {
			return line.SchemaID, true
		}
	}
	return matched[len(matched)-1].SchemaID, true
}
