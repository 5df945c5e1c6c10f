package shader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
)

const (
	metadataExt      = ".lci"
	bytecodeExt      = ".spv"
	rootSignatureExt = ".rs"

	// filetimeEpochOffset is the number of 100ns ticks between 1601-01-01 and 1970-01-01.
	filetimeEpochOffset = 116444736000000000
)

// ErrCacheMiss is returned when no usable cache entry exists for a shader.
var ErrCacheMiss = errors.New("shader: cache miss")

// FileTime converts a modification time to 100ns ticks since 1601-01-01 UTC, the unit stored in
// cache metadata. The zero time maps to 0.
func FileTime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano()/100) + filetimeEpochOffset
}

// Cache stores compiled bytecode and root-signature blobs on disk keyed by source path and
// entry point. Each entry is three files sharing a stem: the metadata word pair holding the
// source time that was compiled, the bytecode and the root-signature blob.
type Cache struct {
	dir        string
	sourceRoot string
}

// NewCache creates a cache rooted at dir. Source paths under sourceRoot are stored relative to
// it; any other path is stored under its sanitized absolute form.
//
// Parameters:
//   - dir: the cache directory, "~" is expanded
//   - sourceRoot: the directory source paths are made relative to, empty to use absolute paths
//
// Returns:
//   - *Cache: the cache
//   - error: an error if dir cannot be expanded
func NewCache(dir, sourceRoot string) (*Cache, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("shader: cache dir %q: %w", dir, err)
	}
	return &Cache{dir: expanded, sourceRoot: sourceRoot}, nil
}

// DefaultCacheDir returns the per-user cache directory.
func DefaultCacheDir() string {
	dir, err := homedir.Expand("~/.oxy-reload/shadercache")
	if err != nil {
		return filepath.Join(os.TempDir(), "oxy-reload-shadercache")
	}
	return dir
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// stem returns the path shared by the three files of one entry, without extension.
func (c *Cache) stem(sourcePath, entryPoint string) string {
	rel := sourcePath
	if c.sourceRoot != "" {
		if r, err := filepath.Rel(c.sourceRoot, sourcePath); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		}
	}
	if filepath.IsAbs(rel) {
		rel = strings.TrimPrefix(rel, filepath.VolumeName(rel))
		rel = strings.TrimLeft(rel, `/\`)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.Join(c.dir, rel+"."+entryPoint)
}

// ReadTime returns the source time recorded for an entry.
//
// Parameters:
//   - sourcePath: the shader source path
//   - entryPoint: the compiled entry point
//
// Returns:
//   - uint64: the recorded source time in FILETIME ticks
//   - error: ErrCacheMiss when the metadata is absent or malformed
func (c *Cache) ReadTime(sourcePath, entryPoint string) (uint64, error) {
	data, err := os.ReadFile(c.stem(sourcePath, entryPoint) + metadataExt)
	if err != nil || len(data) != 8 {
		return 0, ErrCacheMiss
	}
	low := binary.LittleEndian.Uint32(data[0:4])
	high := binary.LittleEndian.Uint32(data[4:8])
	return uint64(high)<<32 | uint64(low), nil
}

// Read returns the cached blobs for an entry.
//
// Parameters:
//   - sourcePath: the shader source path
//   - entryPoint: the compiled entry point
//
// Returns:
//   - []byte: the bytecode
//   - []byte: the root-signature blob, possibly empty
//   - error: ErrCacheMiss when the bytecode is absent or empty
func (c *Cache) Read(sourcePath, entryPoint string) ([]byte, []byte, error) {
	stem := c.stem(sourcePath, entryPoint)
	code, err := os.ReadFile(stem + bytecodeExt)
	if err != nil || len(code) == 0 {
		return nil, nil, ErrCacheMiss
	}
	rs, err := os.ReadFile(stem + rootSignatureExt)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("shader: read root signature cache: %w", err)
	}
	return code, rs, nil
}

// Write stores the blobs and then the metadata for an entry, so a torn write leaves a
// stale or missing time rather than a time that claims new blobs.
//
// Parameters:
//   - sourcePath: the shader source path
//   - entryPoint: the compiled entry point
//   - sourceTime: the source time the blobs were compiled from
//   - bytecode: the compiled bytecode
//   - rootSignature: the root-signature blob
//
// Returns:
//   - error: an error if any file could not be written
func (c *Cache) Write(sourcePath, entryPoint string, sourceTime uint64, bytecode, rootSignature []byte) error {
	stem := c.stem(sourcePath, entryPoint)
	if err := os.MkdirAll(filepath.Dir(stem), 0o755); err != nil {
		return fmt.Errorf("shader: create cache dir: %w", err)
	}
	if err := os.WriteFile(stem+bytecodeExt, bytecode, 0o644); err != nil {
		return fmt.Errorf("shader: write bytecode cache: %w", err)
	}
	if err := os.WriteFile(stem+rootSignatureExt, rootSignature, 0o644); err != nil {
		return fmt.Errorf("shader: write root signature cache: %w", err)
	}
	var meta [8]byte
	binary.LittleEndian.PutUint32(meta[0:4], uint32(sourceTime))
	binary.LittleEndian.PutUint32(meta[4:8], uint32(sourceTime>>32))
	if err := os.WriteFile(stem+metadataExt, meta[:], 0o644); err != nil {
		return fmt.Errorf("shader: write cache metadata: %w", err)
	}
	return nil
}

// Clean removes every cache file under the cache directory.
//
// Returns:
//   - int: the number of files removed
//   - error: the first removal error
func (c *Cache) Clean() (int, error) {
	removed := 0
	err := filepath.WalkDir(c.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case metadataExt, bytecodeExt, rootSignatureExt:
			if err := os.Remove(path); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// Entries returns the number of metadata files in the cache.
func (c *Cache) Entries() (int, error) {
	n := 0
	err := filepath.WalkDir(c.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == metadataExt {
			n++
		}
		return nil
	})
	return n, err
}
