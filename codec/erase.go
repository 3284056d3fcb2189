package codec

import "fmt"

// Erase adapts a typed codec to the untyped values held by the store.
// Encoding a value of another type fails instead of panicking.
func Erase[V any](c Codec[V]) Codec[any] {
	return erased[V]{inner: c}
}

type erased[V any] struct{ inner Codec[V] }

func (e erased[V]) Encode(v any) ([]byte, error) {
	tv, ok := v.(V)
	if !ok {
		var zero V
		return nil, fmt.Errorf("codec: value is %T, want %T", v, zero)
	}
	return e.inner.Encode(tv)
}

func (e erased[V]) Decode(b []byte) (any, error) {
	v, err := e.inner.Decode(b)
	if err != nil {
		return nil, err
	}
	return v, nil
}
