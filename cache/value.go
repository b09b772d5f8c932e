package cache

import (
	"fmt"
	"reflect"

	"github.com/goliatone/go-errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Encoded is a msgpack payload returned by serializing backends, which cannot
// know the Go type a value was stored as. Use As to decode it.
type Encoded []byte

// Encode serializes v the way serializing backends store it.
func Encode(v any) (Encoded, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "encode cache value")
	}
	return Encoded(data), nil
}

// IsAbsent reports whether v carries no value: a nil interface, or a nil
// pointer, map, slice, interface, channel or func.
func IsAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}

// As converts a value read from a cache into T. Absent values yield the zero
// T. Encoded payloads are decoded with msgpack.
func As[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}
	if enc, ok := v.(Encoded); ok {
		var out T
		if err := msgpack.Unmarshal(enc, &out); err != nil {
			return zero, errors.Wrap(err, errors.CategoryInternal, "decode cache value").
				WithTextCode(TextCodeResultType).
				WithMetadata(map[string]any{"type": fmt.Sprintf("%T", zero)})
		}
		return out, nil
	}
	if IsAbsent(v) {
		return zero, nil
	}
	return zero, errors.New(fmt.Sprintf("cached value of type %T is not %T", v, zero), errors.CategoryInternal).
		WithTextCode(TextCodeResultType)
}
