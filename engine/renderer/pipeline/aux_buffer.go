package pipeline

// AuxCapacity is the number of entries each auxiliary buffer holds.
const AuxCapacity = 16

// auxBuffer is a fixed-capacity list owned by a pipeline and filled by its manipulators.
type auxBuffer[T any] struct {
	items [AuxCapacity]T
	n     int
}

// push appends v and reports whether it fit.
func (b *auxBuffer[T]) push(v T) bool {
	if b.n == AuxCapacity {
		return false
	}
	b.items[b.n] = v
	b.n++
	return true
}

func (b *auxBuffer[T]) reset() {
	clear(b.items[:b.n])
	b.n = 0
}

// slice returns a copy of the filled entries, nil when empty.
func (b *auxBuffer[T]) slice() []T {
	if b.n == 0 {
		return nil
	}
	return append([]T(nil), b.items[:b.n]...)
}
