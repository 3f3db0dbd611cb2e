package vulkan

// table maps the uint64 handles the renderer sees onto native objects.
// Ids come from the driver-wide counter so a handle is never reused, even
// across kinds.
type table[T any] struct {
	next  *uint64
	items map[uint64]T
}

func newTable[T any](next *uint64) table[T] {
	return table[T]{next: next, items: make(map[uint64]T)}
}

func (t table[T]) put(v T) uint64 {
	*t.next++
	t.items[*t.next] = v
	return *t.next
}

// get returns the zero value, the null native handle, for unknown ids.
func (t table[T]) get(id uint64) T {
	return t.items[id]
}

func (t table[T]) lookup(id uint64) (T, bool) {
	v, ok := t.items[id]
	return v, ok
}

// take removes id and returns what it mapped to.
func (t table[T]) take(id uint64) (T, bool) {
	v, ok := t.items[id]
	if ok {
		delete(t.items, id)
	}
	return v, ok
}

func (t table[T]) len() int {
	return len(t.items)
}
