package gpu

import "errors"

var (
	// ErrDevice marks an environment failure reported by the native device or runtime.
	// The render loop treats it as fatal.
	ErrDevice = errors.New("gpu: device failure")

	// ErrUnsupported marks a description or call the active backend cannot express.
	// It is recoverable: the affected pipeline simply stays unbuilt.
	ErrUnsupported = errors.New("gpu: unsupported by backend")
)
