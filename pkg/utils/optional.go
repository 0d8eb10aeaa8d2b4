// Cached entries may or may not carry a caller payload. Optional makes the "absent" case explicit instead of
// overloading the zero value of V, which may itself be a legitimate payload (e.g. 0 or "").

package utils

import "fmt"

// Optional holds either a present value of type T or nothing.
type Optional[T any] struct {
	value   T
	present bool
}

// Some wraps `value` as a present Optional.
func Some[T any](value T) Optional[T] {
	return Optional[T]{value: value, present: true}
}

// None returns an absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the wrapped value and whether it is present. Absent optionals return the zero value of T.
func (o Optional[T]) Get() (T, bool /*present*/) {
	return o.value, o.present
}

// IsPresent reports whether a value is held.
func (o Optional[T]) IsPresent() bool {
	return o.present
}

// OrElse returns the held value or `fallback` if absent.
func (o Optional[T]) OrElse(fallback T) T {
	if o.present {
		return o.value
	}
	return fallback
}

func (o Optional[T]) String() string {
	if !o.present {
		return "None"
	}
	return fmt.Sprintf("Some(%v)", o.value)
}
