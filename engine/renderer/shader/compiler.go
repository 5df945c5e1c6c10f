package shader

// CompileRequest carries a shader source buffer and the fixed compile arguments.
type CompileRequest struct {
	// Path is the source file path, used to resolve includes and label diagnostics.
	Path string
	// Source is the raw source text.
	Source []byte
	// EntryPoint is the function to compile.
	EntryPoint string
	// Profile is the target profile string, e.g. "ps_1_3".
	Profile string
	// IncludeDirs are searched after the directory of Path.
	IncludeDirs []string
	// Defines are substituted by the pre-processor.
	Defines map[string]string
	// Debug embeds debug information in the output.
	Debug bool
}

// CompileResult is the outcome of a compile that reached the compiler.
// Success false is a content failure described by Diagnostics.
type CompileResult struct {
	Bytecode      []byte
	RootSignature []byte
	Diagnostics   string
	Success       bool
	// Includes lists every file pulled in by the pre-processor.
	Includes []string
}

// Compiler turns shader source into bytecode and a root-signature blob.
type Compiler interface {
	// Compile compiles one entry point.
	//
	// Parameters:
	//   - req: the source buffer and compile arguments
	//
	// Returns:
	//   - CompileResult: the outputs, or Success=false with diagnostics for invalid source
	//   - error: non-nil only when the toolchain itself failed; it wraps ErrToolchain
	Compile(req CompileRequest) (CompileResult, error)
}
