package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-reload/engine/config"
	"github.com/Carmen-Shannon/oxy-reload/engine/logger"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
)

// newCompilerFunc creates the compiler used by warm.
type newCompilerFunc func(l *slog.Logger) shader.Compiler

const usage = "usage: shadercache [-workers n] [-log level] warm|clean|stat <config>"

// run executes one command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer, newCompiler newCompilerFunc) int {
	fs := flag.NewFlagSet("shadercache", flag.ContinueOnError)
	fs.SetOutput(stderr)
	workers := fs.Int("workers", runtime.NumCPU(), "number of parallel compiles for warm")
	level := fs.String("log", "warn", "log level: debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(stderr, usage)
		return 2
	}

	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logger.ParseLevel(*level)}))
	logger.SetLogger(log)

	cfg, err := config.Load(fs.Arg(1))
	if err != nil {
		log.Error("loading config", "err", err)
		return 1
	}
	env, err := cfg.NewShaderEnvironment(newCompiler(log))
	if err != nil {
		log.Error("opening cache", "err", err)
		return 1
	}
	env.Logger = log

	switch fs.Arg(0) {
	case "warm":
		err = warm(cfg, env, max(*workers, 1), stdout)
	case "clean":
		err = clean(env.Cache, stdout)
	case "stat":
		err = stat(cfg, env, stdout)
	default:
		fmt.Fprintln(stderr, usage)
		return 2
	}
	if err != nil {
		log.Error(fs.Arg(0)+" failed", "err", err)
		return 1
	}
	return 0
}

// shaders creates every shader of every technique.
func shaders(cfg *config.Config, env *shader.Environment) ([]shader.Shader, error) {
	techniques, err := cfg.BuildTechniques(&gfx.Context{Shaders: env, Logger: env.Logger})
	if err != nil {
		return nil, err
	}
	var all []shader.Shader
	for _, t := range techniques {
		all = append(all, t.Shaders()...)
	}
	return all, nil
}

type warmResult struct {
	shader   shader.Shader
	compiled bool
	err      error
}

// errWarmFailed is returned when at least one shader has no bytecode after warming.
var errWarmFailed = errors.New("some shaders failed to compile")

func warm(cfg *config.Config, env *shader.Environment, workers int, out io.Writer) error {
	all, err := shaders(cfg, env)
	if err != nil {
		return err
	}

	pool := worker.NewDynamicWorkerPool(workers, 256, 1*time.Second)
	results := make([]warmResult, len(all))
	var wg sync.WaitGroup
	for i, s := range all {
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				before := s.Compilations()
				ok, err := s.Load()
				if err == nil && !ok {
					err = errors.New("no bytecode")
					if d := s.Diagnostics(); d != "" {
						err = errors.New(d)
					}
				}
				results[i] = warmResult{shader: s, compiled: s.Compilations() > before, err: err}
				return nil, err
			},
		})
	}
	wg.Wait()

	failed, compiled := 0, 0
	for _, r := range results {
		switch {
		case r.err != nil:
			failed++
			fmt.Fprintf(out, "FAIL %s (%s): %v\n", r.shader.Key(), r.shader.SourcePath(), r.err)
		case r.compiled:
			compiled++
		}
	}
	fmt.Fprintf(out, "%d shaders: %d compiled, %d cached, %d failed\n", len(results), compiled, len(results)-compiled-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errWarmFailed, failed, len(results))
	}
	return nil
}

func clean(cache *shader.Cache, out io.Writer) error {
	removed, err := cache.Clean()
	fmt.Fprintf(out, "removed %d files from %s\n", removed, cache.Dir())
	return err
}

// cacheStatus reports whether the cached entry of s matches its sources.
func cacheStatus(s shader.Shader, env *shader.Environment) string {
	cached, err := env.Cache.ReadTime(s.SourcePath(), s.EntryPoint())
	if err != nil {
		return "missing"
	}
	info, err := os.Stat(s.SourcePath())
	if err != nil {
		return "no source"
	}
	newest := shader.FileTime(info.ModTime())
	includes, err := shader.ScanIncludes(s.SourcePath(), env.IncludeDirs, env.Defines)
	if err != nil {
		return "stale"
	}
	for _, inc := range includes {
		if info, err := os.Stat(inc); err == nil {
			newest = max(newest, shader.FileTime(info.ModTime()))
		}
	}
	if cached != newest {
		return "stale"
	}
	return "valid"
}

func stat(cfg *config.Config, env *shader.Environment, out io.Writer) error {
	all, err := shaders(cfg, env)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SHADER\tPROFILE\tSTATUS\tSOURCE")
	for _, s := range all {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Key(), s.Profile(), cacheStatus(s, env), s.SourcePath())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	entries, err := env.Cache.Entries()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d cache entries in %s\n", entries, env.Cache.Dir())
	return nil
}
