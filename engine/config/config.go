// Package config loads the application configuration from a TOML or YAML file.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for a config file whose extension is not .toml, .yaml or .yml.
var ErrUnknownFormat = errors.New("config: unknown file format")

// Config is the whole application configuration.
type Config struct {
	Window     WindowConfig    `toml:"window" yaml:"window"`
	Renderer   RendererConfig  `toml:"renderer" yaml:"renderer"`
	Shaders    ShaderConfig    `toml:"shaders" yaml:"shaders"`
	Log        LogConfig       `toml:"log" yaml:"log"`
	Techniques []TechniqueSpec `toml:"technique" yaml:"techniques"`
}

// WindowConfig configures the application window.
type WindowConfig struct {
	Title  string `toml:"title" yaml:"title"`
	Width  int    `toml:"width" yaml:"width"`
	Height int    `toml:"height" yaml:"height"`

	// Resize limits. The initial size must fall inside them.
	MinWidth  int `toml:"min_width" yaml:"min_width"`
	MinHeight int `toml:"min_height" yaml:"min_height"`
	MaxWidth  int `toml:"max_width" yaml:"max_width"`
	MaxHeight int `toml:"max_height" yaml:"max_height"`
}

// RendererConfig configures the device and swapchain.
type RendererConfig struct {
	PresentMode     renderer.PresentMode     `toml:"present_mode" yaml:"present_mode"`
	MSAA            renderer.MSAASampleCount `toml:"msaa" yaml:"msaa"`
	FallbackAdapter bool                     `toml:"fallback_adapter" yaml:"fallback_adapter"`
	UploadMiB       int                      `toml:"upload_mib" yaml:"upload_mib"`
	DepthFormat     gpu.Format               `toml:"depth_format" yaml:"depth_format"`
}

// ShaderConfig configures shader compilation, caching and watching.
type ShaderConfig struct {
	Root        string            `toml:"root" yaml:"root"`
	CacheDir    string            `toml:"cache_dir" yaml:"cache_dir"`
	IncludeDirs []string          `toml:"include_dirs" yaml:"include_dirs"`
	Defines     map[string]string `toml:"defines" yaml:"defines"`
	// Version is the SPIR-V version used for shaders without an explicit profile, e.g. "1.3".
	Version string `toml:"version" yaml:"version"`
	Watch   bool   `toml:"watch" yaml:"watch"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// Default returns the configuration used for every field a file leaves out.
//
// Returns:
//   - *Config: the defaults
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:     "oxy-reload",
			Width:     1280,
			Height:    720,
			MinWidth:  600,
			MinHeight: 200,
			MaxWidth:  3840,
			MaxHeight: 2160,
		},
		Renderer: RendererConfig{
			PresentMode: renderer.PresentModeVSync,
			MSAA:        renderer.MSAAOff,
			UploadMiB:   16,
			DepthFormat: gpu.FormatD32Float,
		},
		Shaders: ShaderConfig{
			Root:     "shaders",
			CacheDir: shader.DefaultCacheDir(),
			Version:  "1.3",
			Watch:    true,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Decoder is implemented by the toml and yaml decoders.
type Decoder interface {
	Decode(v any) error
}

// DecoderFunc creates a Decoder for a reader.
type DecoderFunc func(r io.Reader) Decoder

// NewDecoderFunc returns a DecoderFunc for a specific Decoder type.
func NewDecoderFunc[T Decoder](f func(r io.Reader) T) DecoderFunc {
	return func(r io.Reader) Decoder { return f(r) }
}

var (
	tomlDecoder = NewDecoderFunc(func(r io.Reader) *toml.Decoder {
		return toml.NewDecoder(r).DisallowUnknownFields()
	})
	yamlDecoder = NewDecoderFunc(func(r io.Reader) *yaml.Decoder {
		d := yaml.NewDecoder(r)
		d.KnownFields(true)
		return d
	})
)

// DecoderFor picks the decoder for a file by its extension.
//
// Parameters:
//   - path: the config file path
//
// Returns:
//   - DecoderFunc: the decoder
//   - error: ErrUnknownFormat for any other extension
func DecoderFor(path string) (DecoderFunc, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return tomlDecoder, nil
	case ".yaml", ".yml":
		return yamlDecoder, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

// Read decodes a configuration from r on top of the defaults, then resolves its paths against dir.
//
// Parameters:
//   - r: the encoded configuration
//   - f: the decoder for r
//   - dir: the directory relative paths are resolved against
//
// Returns:
//   - *Config: the configuration
//   - error: a decode or validation error
func Read(r io.Reader, f DecoderFunc, dir string) (*Config, error) {
	c := Default()
	if err := f(r).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := c.resolve(dir); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

// Load reads a TOML or YAML file. Relative paths in it are resolved against the file's directory.
//
// Parameters:
//   - path: the config file; a leading ~ is expanded
//
// Returns:
//   - *Config: the configuration
//   - error: ErrUnknownFormat, an open error, or a decode or validation error
func Load(path string) (*Config, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	f, err := DecoderFor(path)
	if err != nil {
		return nil, err
	}
	fp, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer fp.Close()

	c, err := Read(bufio.NewReader(fp), f, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// resolve expands ~, makes paths absolute and fills shader profiles.
func (c *Config) resolve(dir string) error {
	var err error
	if c.Shaders.Root, err = resolvePath(dir, c.Shaders.Root); err != nil {
		return err
	}
	if c.Shaders.CacheDir, err = resolvePath(dir, c.Shaders.CacheDir); err != nil {
		return err
	}
	for i, inc := range c.Shaders.IncludeDirs {
		if c.Shaders.IncludeDirs[i], err = resolvePath(c.Shaders.Root, inc); err != nil {
			return err
		}
	}

	major, minor, err := ParseVersion(c.Shaders.Version)
	if err != nil {
		return err
	}
	for t := range c.Techniques {
		for s := range c.Techniques[t].Shaders {
			sh := &c.Techniques[t].Shaders[s]
			if sh.Path, err = resolvePath(c.Shaders.Root, sh.Path); err != nil {
				return err
			}
			if sh.Profile == "" {
				sh.Profile = shader.ProfileFor(sh.Stage, major, minor)
			}
		}
	}
	return nil
}

func resolvePath(dir, p string) (string, error) {
	if p == "" {
		return "", nil
	}
	p, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	return filepath.Clean(p), nil
}

// ParseVersion parses a SPIR-V version such as "1.3" or "1_3".
//
// Parameters:
//   - v: the version string
//
// Returns:
//   - uint8: the major version
//   - uint8: the minor version
//   - error: an error for a malformed version
func ParseVersion(v string) (uint8, uint8, error) {
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == '.' || r == '_' })
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("config: malformed shader version %q", v)
	}
	major, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("config: malformed shader version %q", v)
	}
	minor, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("config: malformed shader version %q", v)
	}
	return uint8(major), uint8(minor), nil
}

// Validate checks the fields a decoder cannot.
//
// Returns:
//   - error: the first problem found
func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("config: window size %dx%d", c.Window.Width, c.Window.Height)
	}
	w := c.Window
	if w.MinWidth <= 0 || w.MinHeight <= 0 || w.MaxWidth < w.MinWidth || w.MaxHeight < w.MinHeight {
		return fmt.Errorf("config: window limits %dx%d to %dx%d", w.MinWidth, w.MinHeight, w.MaxWidth, w.MaxHeight)
	}
	if w.Width < w.MinWidth || w.Width > w.MaxWidth || w.Height < w.MinHeight || w.Height > w.MaxHeight {
		return fmt.Errorf("config: window size %dx%d outside limits %dx%d to %dx%d",
			w.Width, w.Height, w.MinWidth, w.MinHeight, w.MaxWidth, w.MaxHeight)
	}
	if c.Renderer.UploadMiB <= 0 {
		return fmt.Errorf("config: upload_mib must be positive, got %d", c.Renderer.UploadMiB)
	}
	if !c.Renderer.DepthFormat.IsDepth() {
		return fmt.Errorf("config: depth_format %s is not a depth format", c.Renderer.DepthFormat)
	}
	seen := make(map[string]bool, len(c.Techniques))
	for i := range c.Techniques {
		t := &c.Techniques[i]
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.Name] {
			return fmt.Errorf("config: technique %q defined twice", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// Technique returns the technique with the given name.
//
// Parameters:
//   - name: the technique name
//
// Returns:
//   - *TechniqueSpec: the technique, or nil
func (c *Config) Technique(name string) *TechniqueSpec {
	for i := range c.Techniques {
		if c.Techniques[i].Name == name {
			return &c.Techniques[i]
		}
	}
	return nil
}

// UploadSize returns the upload buffer capacity in bytes.
func (c *Config) UploadSize() uint64 {
	return uint64(c.Renderer.UploadMiB) << 20
}

// NewShaderEnvironment builds the shader environment the configuration describes.
//
// Parameters:
//   - compiler: the shader compiler
//
// Returns:
//   - *shader.Environment: the environment
//   - error: an error if the cache directory cannot be used
func (c *Config) NewShaderEnvironment(compiler shader.Compiler) (*shader.Environment, error) {
	cache, err := shader.NewCache(c.Shaders.CacheDir, c.Shaders.Root)
	if err != nil {
		return nil, err
	}
	return &shader.Environment{
		Compiler:    compiler,
		Cache:       cache,
		IncludeDirs: c.Shaders.IncludeDirs,
		Defines:     c.Shaders.Defines,
	}, nil
}
