// Command shadercache warms, inspects and cleans the shader cache of a configuration.
//
// Usage:
//
//	shadercache [-workers n] [-log level] warm|clean|stat <config>
package main

import (
	"log/slog"
	"os"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, func(l *slog.Logger) shader.Compiler {
		return shader.NewNagaCompiler(shader.WithCompilerLogger(l))
	}))
}
