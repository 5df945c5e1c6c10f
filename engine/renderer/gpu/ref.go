package gpu

type refCount[T Releaser] struct {
	obj  T
	refs int
}

// Ref owns a native object. The object is released when the last Ref sharing it is released.
// Lifetime is only ever extended through Clone.
type Ref[T Releaser] struct {
	shared *refCount[T]
}

// NewRef takes ownership of obj.
//
// Parameters:
//   - obj: the native object to own
//
// Returns:
//   - *Ref[T]: a reference holding the only count on obj
func NewRef[T Releaser](obj T) *Ref[T] {
	return &Ref[T]{shared: &refCount[T]{obj: obj, refs: 1}}
}

// Get returns the owned object. It panics on a released Ref.
func (r *Ref[T]) Get() T {
	if r.shared == nil {
		panic("gpu: use of released reference")
	}
	return r.shared.obj
}

// Valid reports whether r is non-nil and not yet released.
func (r *Ref[T]) Valid() bool {
	return r != nil && r.shared != nil
}

// Clone returns a second reference to the same object.
func (r *Ref[T]) Clone() *Ref[T] {
	if r.shared == nil {
		panic("gpu: clone of released reference")
	}
	r.shared.refs++
	return &Ref[T]{shared: r.shared}
}

// Release drops this reference. Releasing twice is a no-op.
func (r *Ref[T]) Release() {
	if r == nil || r.shared == nil {
		return
	}
	s := r.shared
	r.shared = nil
	s.refs--
	if s.refs == 0 {
		s.obj.Release()
	}
}
