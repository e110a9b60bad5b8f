// Package ai implements the alertness state machine and the behavior
// layer that drives animation queries and steering for AI entities.
package ai

import (
	"github.com/voidworks/darkvr/internal/game/entity"
)

// State is one entity's alertness. Current and Peak are mirrored into
// the AIAlertness component after every update.
type State struct {
	Current              entity.AlertLevel
	Peak                 entity.AlertLevel
	VisibleTime          float32
	HiddenTime           float32
	TimeSinceLevelChange float32
}

// Timings are the seconds of continuous visibility (or hiddenness)
// needed to move one level up (or down).
type Timings struct {
	ToLow        float32
	ToModerate   float32
	ToHigh       float32
	FromHigh     float32
	FromModerate float32
	FromLow      float32
}

// Decay defaults applied when a template only declares an aware delay.
const (
	defaultToHigh    = 1.0
	defaultDecayTime = 5.0
)

// TimingsFromAwareDelay derives escalation timings from the raw "time
// to level two" in milliseconds, split equally between the first two
// steps.
func TimingsFromAwareDelay(ms uint32) Timings {
	step := float32(ms) / 1000 / 2
	return Timings{
		ToLow:        step,
		ToModerate:   step,
		ToHigh:       defaultToHigh,
		FromHigh:     defaultDecayTime,
		FromModerate: defaultDecayTime,
		FromLow:      defaultDecayTime,
	}
}

// Cap bounds an entity's alertness range.
type Cap struct {
	MaxLevel entity.AlertLevel
	MinLevel entity.AlertLevel
	MinRelax entity.AlertLevel
}

// Transition records one level change.
type Transition struct {
	Old entity.AlertLevel
	New entity.AlertLevel
}

// ProcessAlertnessUpdate advances the alertness machine by dt seconds.
// Visibility accumulates toward escalation, hiddenness toward decay;
// transitions clamp to [cap.MinLevel, cap.MaxLevel]. The peak rises
// with escalation and, on decay, is clamped down to no lower than
// cap.MinRelax. Returns the transition if a level change occurred.
func ProcessAlertnessUpdate(s *State, isVisible bool, dt float32, timings Timings, cap Cap) (Transition, bool) {
	s.TimeSinceLevelChange += dt

	if isVisible {
		s.VisibleTime += dt
		s.HiddenTime = 0

		threshold, ok := escalationThreshold(s.Current, timings)
		if !ok || s.VisibleTime < threshold {
			return Transition{}, false
		}
		next := clampLevel(s.Current+1, cap.MinLevel, cap.MaxLevel)
		if next == s.Current {
			return Transition{}, false
		}
		old := s.Current
		s.Current = next
		if s.Peak < next {
			s.Peak = next
		}
		s.VisibleTime = 0
		s.TimeSinceLevelChange = 0
		return Transition{Old: old, New: next}, true
	}

	s.HiddenTime += dt
	s.VisibleTime = 0

	threshold, ok := decayThreshold(s.Current, timings)
	if !ok || s.HiddenTime < threshold {
		return Transition{}, false
	}
	next := clampLevel(s.Current-1, cap.MinLevel, cap.MaxLevel)
	if next == s.Current {
		return Transition{}, false
	}
	old := s.Current
	s.Current = next
	relaxed := next
	if relaxed < cap.MinRelax {
		relaxed = cap.MinRelax
	}
	if s.Peak > relaxed {
		s.Peak = relaxed
	}
	s.HiddenTime = 0
	s.TimeSinceLevelChange = 0
	return Transition{Old: old, New: next}, true
}

func escalationThreshold(level entity.AlertLevel, t Timings) (float32, bool) {
	switch level {
	case entity.AlertLowest:
		return t.ToLow, true
	case entity.AlertLow:
		return t.ToModerate, true
	case entity.AlertModerate:
		return t.ToHigh, true
	}
	return 0, false
}

func decayThreshold(level entity.AlertLevel, t Timings) (float32, bool) {
	switch level {
	case entity.AlertHigh:
		return t.FromHigh, true
	case entity.AlertModerate:
		return t.FromModerate, true
	case entity.AlertLow:
		return t.FromLow, true
	}
	return 0, false
}

func clampLevel(l, min, max entity.AlertLevel) entity.AlertLevel {
	// AlertLevel is unsigned; Lowest-1 wraps high and clamps back via
	// the max bound only when min is Lowest, so guard the wrap first.
	if l > entity.AlertHigh {
		l = entity.AlertLowest
	}
	if l < min {
		l = min
	}
	if l > max {
		l = max
	}
	return l
}
