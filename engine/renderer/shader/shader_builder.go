package shader

import (
	"log/slog"
	"maps"
)

// ShaderBuilderOption is a functional option for configuring a Shader.
type ShaderBuilderOption func(*shader)

// WithDefines adds macros for this shader on top of the environment's.
//
// Parameters:
//   - defines: macro names and their replacement text
//
// Returns:
//   - ShaderBuilderOption: a function that applies the option
func WithDefines(defines map[string]string) ShaderBuilderOption {
	return func(s *shader) {
		if s.defines == nil {
			s.defines = make(map[string]string, len(defines))
		}
		maps.Copy(s.defines, defines)
	}
}

// WithIncludeDirs replaces the environment's include search path for this shader.
//
// Parameters:
//   - dirs: directories searched after the source file's own directory
//
// Returns:
//   - ShaderBuilderOption: a function that applies the option
func WithIncludeDirs(dirs ...string) ShaderBuilderOption {
	return func(s *shader) {
		s.includeDirs = dirs
	}
}

// WithLogger sets the logger compile outcomes are reported to.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - ShaderBuilderOption: a function that applies the option
func WithLogger(l *slog.Logger) ShaderBuilderOption {
	return func(s *shader) {
		s.logger = l
	}
}
