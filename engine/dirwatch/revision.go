package dirwatch

// RevisionSource exposes a counter that advances whenever something under a watched root changes.
type RevisionSource interface {
	// CurrentRevision returns the current revision. It never decreases.
	//
	// Returns:
	//   - uint64: the current revision
	CurrentRevision() uint64
}

// Counter is a manually bumped RevisionSource, used where no file watching is wanted.
type Counter struct {
	revision uint64
}

var _ RevisionSource = &Counter{}

// Bump advances the revision by one and returns the new value.
func (c *Counter) Bump() uint64 {
	c.revision++
	return c.revision
}

func (c *Counter) CurrentRevision() uint64 {
	return c.revision
}
