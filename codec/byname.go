package codec

import "fmt"

// ByName returns the codec registered under name ("json", "msgpack", "cbor"),
// wrapped in a Limit when maxDecode > 0. An empty name selects JSON.
func ByName[V any](name string, maxDecode int) (Codec[V], error) {
	var c Codec[V]
	switch name {
	case "", "json":
		c = JSON[V]{}
	case "msgpack":
		c = Msgpack[V]{}
	case "cbor":
		cb, err := NewCBOR[V](false)
		if err != nil {
			return nil, err
		}
		c = cb
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
	if maxDecode > 0 {
		c = Limit[V]{Inner: c, MaxDecode: maxDecode}
	}
	return c, nil
}
