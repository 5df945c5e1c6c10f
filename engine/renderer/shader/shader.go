package shader

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"

	"github.com/Carmen-Shannon/oxy-reload/engine/logger"
)

// shader is the implementation of the Shader interface.
// It owns the last good bytecode and root-signature blob for one source file and entry point.
type shader struct {
	key         string
	env         *Environment
	sourcePath  string
	profile     Profile
	entryPoint  string
	defines     map[string]string
	includeDirs []string
	logger      *slog.Logger

	bytecode      []byte
	rootSignature []byte
	includes      []string

	// compiledTime is the source time the blobs were built from, 0 when unknown.
	compiledTime uint64
	// failedTime is the source time of the last failed compile; Load does not retry it.
	failedTime   uint64
	revision     uint64
	diagnostics  string
	compilations int
}

// Shader is one shader source file compiled for one entry point and profile. It loads itself
// from the compiled cache or the compiler and recompiles when its source, or a file it includes,
// changes on disk.
type Shader interface {
	// Key retrieves the unique identifier for this shader.
	//
	// Returns:
	//   - string: the shader's key
	Key() string

	// SourcePath returns the path of the shader's source file.
	//
	// Returns:
	//   - string: the source path
	SourcePath() string

	// Profile returns the compile target.
	//
	// Returns:
	//   - Profile: the parsed profile
	Profile() Profile

	// EntryPoint returns the compiled entry point name.
	//
	// Returns:
	//   - string: the entry point name
	EntryPoint() string

	// Stage returns the stage the profile targets.
	//
	// Returns:
	//   - Stage: the pipeline stage
	Stage() Stage

	// Load fills the bytecode, from the cache when its recorded source time matches the current
	// one and from the compiler otherwise. A successful compile is written back to the cache.
	// On failure the compiled-against time is reset to 0.
	//
	// Returns:
	//   - bool: true if the shader has bytecode afterwards
	//   - error: a wrapped ErrToolchain if the compiler itself failed
	Load() (bool, error)

	// Refresh recompiles when the source time no longer matches the compiled-against time.
	// It does nothing if revision was already observed, so units shared between pipelines are
	// stat-ed once per revision. A failed recompile keeps the previous bytecode.
	//
	// Parameters:
	//   - revision: the current directory revision
	//
	// Returns:
	//   - bool: true if new bytecode replaced the old one
	//   - error: a wrapped ErrToolchain if the compiler itself failed
	Refresh(revision uint64) (bool, error)

	// Bytecode returns the compiled bytecode, nil if there is none.
	//
	// Returns:
	//   - []byte: the bytecode
	Bytecode() []byte

	// RootSignature returns the root-signature blob produced with the bytecode.
	//
	// Returns:
	//   - []byte: the blob, nil if there is none
	RootSignature() []byte

	// CompiledTime returns the source time the current blobs were built from in FILETIME ticks,
	// or 0 if the last load or compile failed.
	//
	// Returns:
	//   - uint64: the compiled-against time
	CompiledTime() uint64

	// Revision returns the last directory revision Refresh observed.
	//
	// Returns:
	//   - uint64: the revision
	Revision() uint64

	// Diagnostics returns the output of the last failed compile, empty after a success.
	//
	// Returns:
	//   - string: the compiler diagnostics
	Diagnostics() string

	// Compilations returns how many times the compiler has been invoked for this shader.
	//
	// Returns:
	//   - int: the compile count
	Compilations() int

	// Release drops the bytecode and root-signature blob.
	Release()
}

var _ Shader = &shader{}

// NewShader creates a Shader. Nothing is read until Load or Refresh is called.
// It panics on an empty source path or a malformed profile.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - env: the shared compiler, cache and compile arguments
//   - sourcePath: the file path to read WGSL source from
//   - profile: the compile target, e.g. "ps_1_3"
//   - entryPoint: the function to compile
//   - opts: optional ShaderBuilderOption values
//
// Returns:
//   - Shader: the new shader
func NewShader(key string, env *Environment, sourcePath, profile, entryPoint string, opts ...ShaderBuilderOption) Shader {
	if sourcePath == "" {
		panic(fmt.Sprintf("shader: %s must have a source path", key))
	}
	if env == nil || env.Compiler == nil {
		panic(fmt.Sprintf("shader: %s needs an environment with a compiler", key))
	}
	p, err := ParseProfile(profile)
	if err != nil {
		panic(fmt.Sprintf("shader: %s: %v", key, err))
	}
	s := &shader{
		key:         key,
		env:         env,
		sourcePath:  sourcePath,
		profile:     p,
		entryPoint:  entryPoint,
		defines:     maps.Clone(env.Defines),
		includeDirs: env.IncludeDirs,
		logger:      env.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.Or(s.logger).With("shader", key)
	return s
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) SourcePath() string {
	return s.sourcePath
}

func (s *shader) Profile() Profile {
	return s.profile
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) Stage() Stage {
	return s.profile.Stage
}

func (s *shader) Bytecode() []byte {
	if len(s.bytecode) == 0 {
		return nil
	}
	return s.bytecode
}

func (s *shader) RootSignature() []byte {
	if len(s.rootSignature) == 0 {
		return nil
	}
	return s.rootSignature
}

func (s *shader) CompiledTime() uint64 {
	return s.compiledTime
}

func (s *shader) Revision() uint64 {
	return s.revision
}

func (s *shader) Diagnostics() string {
	return s.diagnostics
}

func (s *shader) Compilations() int {
	return s.compilations
}

func (s *shader) Release() {
	s.bytecode = nil
	s.rootSignature = nil
}

func (s *shader) Load() (bool, error) {
	if s.includes == nil {
		// A directive error here is reported again, with context, by the compile below.
		s.includes, _ = ScanIncludes(s.sourcePath, s.includeDirs, s.defines)
	}
	sourceTime, err := s.sourceTime()
	if err != nil {
		s.logger.Debug("shader source unavailable", "path", s.sourcePath, "err", err)
		s.compiledTime = 0
		return s.hasBytecode(), nil
	}

	if s.env.Cache != nil {
		if cached, err := s.env.Cache.ReadTime(s.sourcePath, s.entryPoint); err == nil && cached == sourceTime {
			code, rs, err := s.env.Cache.Read(s.sourcePath, s.entryPoint)
			if err == nil {
				s.bytecode, s.rootSignature = code, rs
				s.compiledTime = sourceTime
				s.logger.Debug("shader loaded from cache", "path", s.sourcePath)
				return true, nil
			}
			s.logger.Debug("shader cache unreadable", "path", s.sourcePath, "err", err)
		}
	}

	if s.failedTime == sourceTime && !s.hasBytecode() {
		s.compiledTime = 0
		return false, nil
	}

	ok, err := s.compile(sourceTime)
	if err != nil {
		return s.hasBytecode(), err
	}
	if !ok {
		s.compiledTime = 0
	}
	return s.hasBytecode(), nil
}

func (s *shader) Refresh(revision uint64) (bool, error) {
	if revision == s.revision {
		return false, nil
	}
	s.revision = revision

	sourceTime, err := s.sourceTime()
	if err != nil {
		s.logger.Debug("shader source unavailable", "path", s.sourcePath, "err", err)
		s.compiledTime = 0
		return false, nil
	}
	if sourceTime == s.compiledTime {
		return false, nil
	}

	ok, err := s.compile(sourceTime)
	if err != nil {
		return false, err
	}
	if !ok {
		s.compiledTime = 0
		return false, nil
	}
	return true, nil
}

// compile runs the compiler and, on success, replaces both blobs and writes them to the cache.
// The previous blobs survive a failed compile.
func (s *shader) compile(sourceTime uint64) (bool, error) {
	source, err := os.ReadFile(s.sourcePath)
	if err != nil {
		s.diagnostics = err.Error()
		return false, nil
	}

	s.compilations++
	result, err := s.env.Compiler.Compile(CompileRequest{
		Path:        s.sourcePath,
		Source:      source,
		EntryPoint:  s.entryPoint,
		Profile:     s.profile.String(),
		IncludeDirs: s.includeDirs,
		Defines:     s.defines,
		Debug:       true,
	})
	if err != nil {
		s.compiledTime = 0
		if !errors.Is(err, ErrToolchain) {
			err = fmt.Errorf("%w: %v", ErrToolchain, err)
		}
		s.logger.Error("shader toolchain failed", "path", s.sourcePath, "err", err)
		return false, err
	}
	known := s.includes
	if result.Includes != nil {
		s.includes = result.Includes
	}
	if !result.Success || len(result.Bytecode) == 0 {
		s.failedTime = sourceTime
		s.diagnostics = result.Diagnostics
		s.logger.Debug("shader compile failed", "path", s.sourcePath, "entry", s.entryPoint, "diagnostics", result.Diagnostics)
		return false, nil
	}

	s.bytecode = result.Bytecode
	s.rootSignature = result.RootSignature
	s.diagnostics = ""
	s.failedTime = 0

	// sourceTime was taken before the read; only includes this compile discovered can raise it.
	sourceTime = max(sourceTime, s.includeTime(known))
	s.compiledTime = sourceTime

	if s.env.Cache != nil {
		if err := s.env.Cache.Write(s.sourcePath, s.entryPoint, sourceTime, s.bytecode, s.rootSignature); err != nil {
			s.logger.Warn("shader cache write failed", "path", s.sourcePath, "err", err)
		}
	}
	s.logger.Debug("shader compiled", "path", s.sourcePath, "entry", s.entryPoint)
	return true, nil
}

// sourceTime returns the newest write time of the source and the includes it was last known to
// pull in. A missing include counts as time 0 so the compile reports it.
func (s *shader) sourceTime() (uint64, error) {
	info, err := os.Stat(s.sourcePath)
	if err != nil {
		return 0, err
	}
	newest := FileTime(info.ModTime())
	for _, inc := range s.includes {
		if info, err := os.Stat(inc); err == nil {
			newest = max(newest, FileTime(info.ModTime()))
		}
	}
	return newest, nil
}

// includeTime returns the newest write time of the includes not in known.
func (s *shader) includeTime(known []string) uint64 {
	var newest uint64
	for _, inc := range s.includes {
		if slices.Contains(known, inc) {
			continue
		}
		if info, err := os.Stat(inc); err == nil {
			newest = max(newest, FileTime(info.ModTime()))
		}
	}
	return newest
}

func (s *shader) hasBytecode() bool {
	return len(s.bytecode) > 0
}
