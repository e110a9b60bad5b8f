// Package audio plays mission sounds and AI speech. Playback runs on
// the speaker's own thread; the simulation hands over owned sample
// data and never shares mutable state with it.
package audio

import (
	"bytes"
	"fmt"
	"io"
	stdmath "math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	"go.uber.org/zap"

	"github.com/voidworks/darkvr/internal/logger"
)

// DefaultSampleRate is the playback sample rate.
const DefaultSampleRate = beep.SampleRate(44100)

// audibleRange is the distance at which a spatial sound fades out
// completely, in world units.
const audibleRange = 40.0

// Manager owns the speaker and the sound/speech databases.
type Manager struct {
	mu sync.RWMutex

	initialized  bool
	sampleRate   beep.SampleRate
	mixer        *beep.Mixer
	masterVolume float64

	schema *Schema
	speech *SpeechDB
}

// New creates a silent manager; call Init to open the speaker.
func New(schema *Schema, speech *SpeechDB) *Manager {
	if schema == nil {
		schema = NewSchema()
	}
	if speech == nil {
		speech = NewSpeechDB()
	}
	return &Manager{
		masterVolume: 1.0,
		mixer:        &beep.Mixer{},
		schema:       schema,
		speech:       speech,
	}
}

// Init opens the speaker and starts the mixer.
func (m *Manager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}
	m.sampleRate = DefaultSampleRate
	if err := speaker.Init(m.sampleRate, m.sampleRate.N(time.Second/30)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	speaker.Play(m.mixer)
	m.initialized = true
	return nil
}

// Close shuts the speaker down.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	speaker.Clear()
	m.initialized = false
}

// SetMasterVolume sets the 0..1 master volume.
func (m *Manager) SetMasterVolume(vol float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}
	m.masterVolume = vol
}

// PlaySample resolves a sound schema name and plays it. Distance
// attenuates the volume; sounds past the audible range are dropped.
// Unresolved names fall back to the literal name, matching the source
// schema's behavior.
func (m *Manager) PlaySample(name string, distance float32) error {
	sample, ok := m.schema.GetRandomSample(name)
	if !ok {
		logger.Debug("sound schema miss, using literal name", zap.String("name", name))
		sample, ok = m.schema.Literal(name)
		if !ok {
			logger.Warn("sound sample not found", zap.String("name", name))
			return nil
		}
	}
	return m.play(sample.Data, distanceVolume(distance))
}

// PlaySpeech resolves (voice, concept, tags) through the speech DB and
// plays the chosen line. An empty resolution warns and plays nothing.
func (m *Manager) PlaySpeech(voiceIndex int, concept string, tags []string, distance float32) error {
	schemaID, ok := m.speech.Resolve(voiceIndex, concept, tags)
	if !ok {
		logger.Warn("speech resolution empty",
			zap.Int("voice", voiceIndex),
			zap.String("concept", concept),
			zap.Strings("tags", tags))
		return nil
	}
	return m.PlaySample(schemaID, distance)
}

func (m *Manager) play(data []byte, gain float64) error {
	m.mu.RLock()
	initialized := m.initialized
	vol := m.masterVolume * gain
	m.mu.RUnlock()

	if !initialized || len(data) == 0 || vol <= 0 {
		return nil
	}

	streamer, format, err := wav.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return fmt.Errorf("decode wav: %w", err)
	}

	var resampled beep.Streamer = streamer
	if format.SampleRate != m.sampleRate {
		resampled = beep.Resample(4, format.SampleRate, m.sampleRate, streamer)
	}

	m.mixer.Add(&effects.Volume{
		Streamer: resampled,
		Base:     2,
		Volume:   volumeToDb(vol),
		Silent:   vol <= 0,
	})
	return nil
}

// distanceVolume maps a distance to a 0..1 gain with linear falloff.
func distanceVolume(distance float32) float64 {
	if distance <= 0 {
		return 1
	}
	if float64(distance) >= audibleRange {
		return 0
	}
	return 1 - float64(distance)/audibleRange
}

func volumeToDb(vol float64) float64 {
	if vol <= 0 {
		return -100
	}
	return 20 * stdmath.Log10(vol)
}
