package shader

import "errors"

// ErrToolchain marks a failure of the compiler toolchain itself rather than of the shader source.
// It is an environment failure and is not recovered from.
var ErrToolchain = errors.New("shader: compiler toolchain failure")
