package util

// FreeList is a bounded stack of reusable objects
//
// Unlike sync.Pool, objects are never collected by GC and the number of kept objects is limited, to make memory usage
// predictable for large buffers. It's not thread-safe.
type FreeList[T any] struct {
	free  []T
	limit int
	alloc func() T
}

// NewFreeList creates a FreeList keeping up to limit objects, using alloc to create new objects when empty
func NewFreeList[T any](limit int, alloc func() T) *FreeList[T] {
	if limit < 0 {
		limit = 0
	}
	return &FreeList[T]{
		free:  make([]T, 0, limit),
		limit: limit,
		alloc: alloc,
	}
}

// Get takes a free object or allocates a new one
func (list *FreeList[T]) Get() T {
	n := len(list.free)
	if n == 0 {
		return list.alloc()
	}
	obj := list.free[n-1]
	var zero T
	list.free[n-1] = zero
	list.free = list.free[:n-1]
	return obj
}

// Put returns an object for reuse. Returns false if the list is full and the object is dropped.
func (list *FreeList[T]) Put(obj T) bool {
	if len(list.free) >= list.limit {
		return false
	}
	list.free = append(list.free, obj)
	return true
}

// Len returns the number of free objects
func (list *FreeList[T]) Len() int {
	return len(list.free)
}
