package shader

import (
	"fmt"
	"strconv"
	"strings"
)

// Stage identifies the pipeline stage a shader is compiled for.
type Stage int

const (
	// StageVertex is the vertex stage of a graphics pipeline.
	StageVertex Stage = iota
	// StageHull is the tessellation control stage.
	StageHull
	// StageDomain is the tessellation evaluation stage.
	StageDomain
	// StageGeometry is the geometry stage.
	StageGeometry
	// StagePixel is the pixel (fragment) stage.
	StagePixel
	// StageMesh is the mesh stage.
	StageMesh
	// StageAmplification is the amplification (task) stage.
	StageAmplification
	// StageCompute is the only stage of a compute pipeline.
	StageCompute

	stageCount
)

var stagePrefixes = [stageCount]string{"vs", "hs", "ds", "gs", "ps", "ms", "as", "cs"}

var stageNames = [stageCount]string{"vertex", "hull", "domain", "geometry", "pixel", "mesh", "amplification", "compute"}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s >= StageVertex && s < stageCount
}

func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Prefix returns the two-letter profile prefix of the stage, e.g. "vs".
func (s Stage) Prefix() string {
	if !s.Valid() {
		return ""
	}
	return stagePrefixes[s]
}

// UnmarshalText decodes a stage from its name ("vertex") or profile prefix ("vs").
func (s *Stage) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i := range stageCount {
		if stageNames[i] == name || stagePrefixes[i] == name {
			*s = i
			return nil
		}
	}
	if name == "fragment" {
		*s = StagePixel
		return nil
	}
	return fmt.Errorf("shader: unknown stage %q", text)
}

// Profile is a parsed compile target of the form "<stage>_<major>_<minor>", e.g. "ps_1_3".
// The version selects the SPIR-V version emitted.
type Profile struct {
	Stage Stage
	Major uint8
	Minor uint8
}

// ParseProfile parses a profile string such as "vs_1_3".
//
// Parameters:
//   - s: the profile string
//
// Returns:
//   - Profile: the parsed profile
//   - error: an error if the prefix or version is malformed
func ParseProfile(s string) (Profile, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "_")
	if len(parts) != 3 {
		return Profile{}, fmt.Errorf("shader: malformed profile %q, want <stage>_<major>_<minor>", s)
	}
	var p Profile
	found := false
	for i := range stageCount {
		if stagePrefixes[i] == parts[0] {
			p.Stage = i
			found = true
			break
		}
	}
	if !found {
		return Profile{}, fmt.Errorf("shader: unknown stage prefix %q in profile %q", parts[0], s)
	}
	major, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return Profile{}, fmt.Errorf("shader: bad major version in profile %q: %w", s, err)
	}
	minor, err := strconv.ParseUint(parts[2], 10, 8)
	if err != nil {
		return Profile{}, fmt.Errorf("shader: bad minor version in profile %q: %w", s, err)
	}
	p.Major, p.Minor = uint8(major), uint8(minor)
	return p, nil
}

func (p Profile) String() string {
	return fmt.Sprintf("%s_%d_%d", p.Stage.Prefix(), p.Major, p.Minor)
}

// ProfileFor builds the profile string for a stage at the given SPIR-V version.
func ProfileFor(stage Stage, major, minor uint8) string {
	return Profile{Stage: stage, Major: major, Minor: minor}.String()
}
