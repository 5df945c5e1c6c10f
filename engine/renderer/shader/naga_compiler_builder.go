package shader

import "log/slog"

// NagaCompilerBuilderOption configures a naga-backed Compiler.
type NagaCompilerBuilderOption func(*nagaCompiler)

// WithIRValidation toggles naga's IR validation pass, on by default.
//
// Parameters:
//   - enabled: whether lowered modules are validated before code generation
//
// Returns:
//   - NagaCompilerBuilderOption: a function that applies the option
func WithIRValidation(enabled bool) NagaCompilerBuilderOption {
	return func(c *nagaCompiler) {
		c.validateIR = enabled
	}
}

// WithOutputValidation makes naga validate the SPIR-V it emits.
//
// Parameters:
//   - enabled: whether emitted SPIR-V is validated
//
// Returns:
//   - NagaCompilerBuilderOption: a function that applies the option
func WithOutputValidation(enabled bool) NagaCompilerBuilderOption {
	return func(c *nagaCompiler) {
		c.validateOutput = enabled
	}
}

// WithCompilerLogger sets the logger compile results are reported to.
//
// Parameters:
//   - l: the logger; nil uses the package default
//
// Returns:
//   - NagaCompilerBuilderOption: a function that applies the option
func WithCompilerLogger(l *slog.Logger) NagaCompilerBuilderOption {
	return func(c *nagaCompiler) {
		c.logger = l
	}
}
