package config

import (
	"errors"
	"strconv"
	"strings"

	"github.com/voidworks/darkvr/pkg/math"
)

// ErrBadMissionArg is returned for a malformed --mission value.
var ErrBadMissionArg = errors.New("Unable to parse mission argument")

// MissionRef is a parsed --mission argument. Exactly one of
// SpawnDefault and HasPoint is set when a spawn was given; neither is
// set for a bare mission name.
type MissionRef struct {
	Name         string
	SpawnDefault bool
	HasPoint     bool
	Point        math.Vec3
}

// ParseMissionArg parses "name", "name:default", or "name:x,y,z".
func ParseMissionArg(arg string) (MissionRef, error) {
	if arg == "" {
		return MissionRef{}, ErrBadMissionArg
	}
	name, spawn, found := strings.Cut(arg, ":")
	if name == "" {
		return MissionRef{}, ErrBadMissionArg
	}
	ref := MissionRef{Name: name}
	if !found {
		return ref, nil
	}
	if spawn == "default" {
		ref.SpawnDefault = true
		return ref, nil
	}
	parts := strings.Split(spawn, ",")
	if len(parts) != 3 {
		return MissionRef{}, ErrBadMissionArg
	}
	var coords [3]float32
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return MissionRef{}, ErrBadMissionArg
		}
		coords[i] = float32(v)
	}
	ref.HasPoint = true
	ref.Point = math.Vec3{X: coords[0], Y: coords[1], Z: coords[2]}
	return ref, nil
}
