// Package formats provides parsers for the engine's binary asset formats.
package formats

// Note: CAL (creature skeleton) is fully implemented in cal.go
// Note: MC (motion clip) is fully implemented in mc.go
// Note: AIPATH (navigation chunk) is fully implemented in aipath.go
// Note: GLB (glTF binary mesh/skeleton/clips) is fully implemented in glb.go
