package negotiation

// optional holds a value that may be absent. Absence is distinct from the
// zero value.
type optional[T any] struct {
	value T
	set   bool
}

func some[T any](v T) optional[T] {
	return optional[T]{value: v, set: true}
}

func (o optional[T]) get() (T, bool) {
	return o.value, o.set
}

// orMissing returns the value or ErrMissingValue.
func (o optional[T]) orMissing() (T, error) {
	if !o.set {
		var zero T
		return zero, ErrMissingValue
	}
	return o.value, nil
}
