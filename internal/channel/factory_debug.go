//go:build debug

package channel

// New creates a session queue.
// In debug builds, this returns a single-slot channel (ignores size) so
// slow-consumer drops show up immediately.
func New[T any](size int) Channel[T] {
	return NewBuffered[T](1)
}
