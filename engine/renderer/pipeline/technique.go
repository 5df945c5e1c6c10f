package pipeline

import "fmt"

// Technique describes a pipeline. Describe is called whenever the pipeline has no native objects
// or ShouldRebuild reports true.
type Technique interface {
	// Describe binds shaders and sets state through the manipulator.
	//
	// Parameters:
	//   - m: a GraphicsManipulator or ComputeManipulator, valid only for the duration of the call
	//
	// Returns:
	//   - error: an error to abort this describe; the previous pipeline objects are kept
	Describe(m Manipulator) error

	// ShouldRebuild is polled on every Bind. Returning true re-runs Describe and rebuilds the pipeline.
	//
	// Returns:
	//   - bool: true to force a rebuild this frame
	ShouldRebuild() bool
}

// GraphicsTechnique adapts a describe function for graphics pipelines into a Technique that never
// asks for a rebuild on its own.
type GraphicsTechnique func(m GraphicsManipulator) error

var _ Technique = GraphicsTechnique(nil)

func (f GraphicsTechnique) Describe(m Manipulator) error {
	gm, ok := m.(GraphicsManipulator)
	if !ok {
		return fmt.Errorf("pipeline: graphics technique given a %s manipulator", m.Type())
	}
	return f(gm)
}

func (GraphicsTechnique) ShouldRebuild() bool {
	return false
}

// ComputeTechnique adapts a describe function for compute pipelines into a Technique.
type ComputeTechnique func(m ComputeManipulator) error

var _ Technique = ComputeTechnique(nil)

func (f ComputeTechnique) Describe(m Manipulator) error {
	cm, ok := m.(ComputeManipulator)
	if !ok {
		return fmt.Errorf("pipeline: compute technique given a %s manipulator", m.Type())
	}
	return f(cm)
}

func (ComputeTechnique) ShouldRebuild() bool {
	return false
}

type rebuildHook struct {
	Technique
	hook func() bool
}

// WithRebuildHook wraps t so that hook, or t's own ShouldRebuild, can force a rebuild.
//
// Parameters:
//   - t: the technique to wrap
//   - hook: polled on every Bind
//
// Returns:
//   - Technique: the wrapped technique
func WithRebuildHook(t Technique, hook func() bool) Technique {
	return &rebuildHook{Technique: t, hook: hook}
}

func (r *rebuildHook) ShouldRebuild() bool {
	// Poll both; hooks may be one-shot.
	own := r.Technique.ShouldRebuild()
	return r.hook() || own
}
