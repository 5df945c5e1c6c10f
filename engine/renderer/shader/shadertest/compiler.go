// Package shadertest provides a scripted shader.Compiler for tests.
package shadertest

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
)

// Compiler is a fake shader.Compiler. By default it succeeds and returns bytecode derived from the
// request so different sources produce different bytes. Fail and Toolchain switch the next
// compiles to content failure or toolchain failure.
type Compiler struct {
	mu sync.Mutex

	// Fail makes compiles return Success=false with Diagnostics.
	Fail bool
	// Diagnostics is reported when Fail is set.
	Diagnostics string
	// Toolchain, when non-nil, is returned as the compile error.
	Toolchain error
	// RootSignature is returned as the root-signature blob; nil derives one from the request.
	RootSignature []byte
	// Includes is reported as the include list of every compile.
	Includes []string
	// OnCompile, when set, runs before each compile returns.
	OnCompile func(req shader.CompileRequest)

	Requests []shader.CompileRequest
}

var _ shader.Compiler = &Compiler{}

// Compile records the request and returns the scripted result.
func (c *Compiler) Compile(req shader.CompileRequest) (shader.CompileResult, error) {
	if c.OnCompile != nil {
		c.OnCompile(req)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, req)

	if c.Toolchain != nil {
		return shader.CompileResult{}, fmt.Errorf("%w: %v", shader.ErrToolchain, c.Toolchain)
	}
	if c.Fail {
		diag := c.Diagnostics
		if diag == "" {
			diag = req.Path + ": error: scripted failure"
		}
		return shader.CompileResult{Diagnostics: diag, Includes: c.Includes}, nil
	}
	rs := c.RootSignature
	if rs == nil {
		rs = []byte("rs:" + req.EntryPoint)
	}
	return shader.CompileResult{
		Bytecode:      Bytecode(req),
		RootSignature: rs,
		Success:       true,
		Includes:      c.Includes,
	}, nil
}

// Calls returns the number of compiles requested so far.
func (c *Compiler) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Requests)
}

// Bytecode returns the bytes the fake produces for a request.
func Bytecode(req shader.CompileRequest) []byte {
	return append([]byte(req.Profile+":"+req.EntryPoint+":"), req.Source...)
}
