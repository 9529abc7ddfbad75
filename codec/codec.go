// Package codec converts resolved values to bytes for an L2 provider.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Names accepted by ByName.
const (
	NameJSON    = "json"
	NameMsgpack = "msgpack"
	NameCBOR    = "cbor"
)

// ByName returns one of the reflection-based codecs for V.
func ByName[V any](name string) (Codec[V], bool) {
	switch name {
	case NameJSON, "":
		return JSON[V]{}, true
	case NameMsgpack:
		return Msgpack[V]{}, true
	case NameCBOR:
		c, err := NewCBOR[V](false)
		if err != nil {
			return nil, false
		}
		return c, true
	}
	return nil, false
}
