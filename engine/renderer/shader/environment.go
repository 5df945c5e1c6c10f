package shader

import "log/slog"

// Environment is what every Shader needs to build itself: the toolchain, the on-disk cache and the
// compile arguments shared by all units of an application.
type Environment struct {
	Compiler    Compiler
	Cache       *Cache
	IncludeDirs []string
	Defines     map[string]string
	Logger      *slog.Logger
}
