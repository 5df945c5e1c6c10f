// pre_processor.go implements the WGSL pre-processor run before every compile. It
// understands a small C-like directive set on lines of their own:
//
//	#include "file.wgsl"   splice another file, searched next to the including file then in the include dirs
//	#define NAME value     substitute NAME as a whole word in the lines that follow
//	#ifdef NAME / #ifndef NAME / #else / #endif
//
// Directive lines are replaced with WGSL line comments so diagnostics keep their line numbers
// for the root file up to the first include.
package shader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ErrInclude reports an include that could not be resolved or read.
var ErrInclude = errors.New("shader: include failed")

var (
	includeRegex = regexp.MustCompile(`^\s*#include\s+"([^"]+)"\s*$`)
	defineRegex  = regexp.MustCompile(`^\s*#define\s+(\w+)(?:\s+(.*?))?\s*$`)
	condRegex    = regexp.MustCompile(`^\s*#(ifdef|ifndef)\s+(\w+)\s*$`)
	elseRegex    = regexp.MustCompile(`^\s*#else\s*$`)
	endifRegex   = regexp.MustCompile(`^\s*#endif\s*$`)
)

// PreProcessor expands directives in WGSL source.
type PreProcessor interface {
	// Process expands the source of the file at path.
	//
	// Parameters:
	//   - path: the file the source was read from, used to resolve relative includes
	//   - source: the raw source text
	//
	// Returns:
	//   - string: the expanded source
	//   - []string: absolute paths of every file included, directly or transitively, sorted
	//   - error: a wrapped ErrInclude, or a directive error such as an unterminated #ifdef
	Process(path string, source []byte) (string, []string, error)
}

type preProcessor struct {
	includeDirs []string
	defines     map[string]string
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor.
//
// Parameters:
//   - includeDirs: directories searched for includes after the including file's directory
//   - defines: macros visible before the first line, as if #defined there
//
// Returns:
//   - PreProcessor: the pre-processor
func NewPreProcessor(includeDirs []string, defines map[string]string) PreProcessor {
	return &preProcessor{includeDirs: includeDirs, defines: defines}
}

// expansion is the state of one Process call.
type expansion struct {
	p        *preProcessor
	defines  map[string]string
	included map[string]bool
	stack    map[string]bool
	out      strings.Builder
}

func (p *preProcessor) Process(path string, source []byte) (string, []string, error) {
	e := &expansion{
		p:        p,
		defines:  make(map[string]string, len(p.defines)),
		included: make(map[string]bool),
		stack:    make(map[string]bool),
	}
	for k, v := range p.defines {
		e.defines[k] = v
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if err := e.expand(abs, string(source)); err != nil {
		return "", nil, err
	}

	includes := make([]string, 0, len(e.included))
	for inc := range e.included {
		includes = append(includes, inc)
	}
	sort.Strings(includes)
	return e.out.String(), includes, nil
}

func (e *expansion) expand(path, source string) error {
	e.stack[path] = true
	defer delete(e.stack, path)

	// active[i] is whether lines at nesting depth i are emitted.
	active := []bool{true}
	taken := []bool{true}
	for n, line := range strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n") {
		live := active[len(active)-1]
		switch {
		case condRegex.MatchString(line):
			m := condRegex.FindStringSubmatch(line)
			_, defined := e.defines[m[2]]
			cond := defined == (m[1] == "ifdef")
			active = append(active, live && cond)
			taken = append(taken, cond)
			e.comment(line)
		case elseRegex.MatchString(line):
			if len(active) == 1 {
				return fmt.Errorf("%s:%d: #else without #ifdef", path, n+1)
			}
			parent := active[len(active)-2]
			active[len(active)-1] = parent && !taken[len(taken)-1]
			e.comment(line)
		case endifRegex.MatchString(line):
			if len(active) == 1 {
				return fmt.Errorf("%s:%d: #endif without #ifdef", path, n+1)
			}
			active = active[:len(active)-1]
			taken = taken[:len(taken)-1]
			e.comment(line)
		case !live:
			e.comment(line)
		case defineRegex.MatchString(line):
			m := defineRegex.FindStringSubmatch(line)
			e.defines[m[1]] = m[2]
			e.comment(line)
		case includeRegex.MatchString(line):
			m := includeRegex.FindStringSubmatch(line)
			target, err := e.p.resolve(filepath.Dir(path), m[1])
			if err != nil {
				return fmt.Errorf("%s:%d: %w", path, n+1, err)
			}
			e.comment(line)
			if e.stack[target] || e.included[target] {
				continue
			}
			data, err := os.ReadFile(target)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInclude, m[1], err)
			}
			e.included[target] = true
			if err := e.expand(target, string(data)); err != nil {
				return err
			}
		default:
			e.out.WriteString(e.substitute(line))
			e.out.WriteByte('\n')
		}
	}
	if len(active) != 1 {
		return fmt.Errorf("%s: unterminated #ifdef", path)
	}
	return nil
}

func (e *expansion) comment(line string) {
	e.out.WriteString("// ")
	e.out.WriteString(strings.TrimSpace(line))
	e.out.WriteByte('\n')
}

func (e *expansion) substitute(line string) string {
	if len(e.defines) == 0 || strings.HasPrefix(strings.TrimSpace(line), "//") {
		return line
	}
	var sb strings.Builder
	i := 0
	for i < len(line) {
		if !isIdentStart(line[i]) {
			sb.WriteByte(line[i])
			i++
			continue
		}
		j := i
		for j < len(line) && isIdentPart(line[j]) {
			j++
		}
		word := line[i:j]
		if v, ok := e.defines[word]; ok {
			sb.WriteString(v)
		} else {
			sb.WriteString(word)
		}
		i = j
	}
	return sb.String()
}

func (p *preProcessor) resolve(dir, name string) (string, error) {
	candidates := []string{name}
	if !filepath.IsAbs(name) {
		candidates = candidates[:0]
		candidates = append(candidates, filepath.Join(dir, name))
		for _, d := range p.includeDirs {
			candidates = append(candidates, filepath.Join(d, name))
		}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			abs, err := filepath.Abs(c)
			if err != nil {
				return c, nil
			}
			return abs, nil
		}
	}
	return "", fmt.Errorf("%w: %q not found", ErrInclude, name)
}

// ScanIncludes expands the file at path and returns the files it includes. Directive errors
// are reported the same way Process reports them.
//
// Parameters:
//   - path: the root source file
//   - includeDirs: the include search path
//   - defines: initial macros; they decide which conditional includes are taken
//
// Returns:
//   - []string: absolute include paths, sorted
//   - error: a read error for the root file, or a Process error
func ScanIncludes(path string, includeDirs []string, defines map[string]string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	_, includes, err := NewPreProcessor(includeDirs, defines).Process(path, data)
	return includes, err
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
