package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// EmptyKey is the key produced for a call without arguments.
const EmptyKey = "SimpleKey[]"

// KeyGenerator derives a cache key from an operation name and the arguments
// selected for it.
type KeyGenerator interface {
	GenerateKey(operation string, params ...any) any
}

// KeyGeneratorFunc adapts a plain function to KeyGenerator.
type KeyGeneratorFunc func(operation string, params ...any) any

func (f KeyGeneratorFunc) GenerateKey(operation string, params ...any) any {
	return f(operation, params...)
}

// DefaultKeyGenerator builds keys from the arguments alone, so a read and a
// write declared on different operations address the same entry. Plain
// strings are escaped and every other value carries its type, so distinct
// argument lists never share a key.
type DefaultKeyGenerator struct{}

// NewDefaultKeyGenerator returns the default argument based generator.
func NewDefaultKeyGenerator() KeyGenerator {
	return DefaultKeyGenerator{}
}

func (DefaultKeyGenerator) GenerateKey(_ string, params ...any) any {
	if len(params) == 0 {
		return EmptyKey
	}
	return joinValues(params)
}

// OperationKeyGenerator prefixes the key with the operation name. Use it when
// distinct operations sharing a cache must not collide.
type OperationKeyGenerator struct{}

func (OperationKeyGenerator) GenerateKey(operation string, params ...any) any {
	if len(params) == 0 {
		return operation
	}
	return operation + KeySeparator + joinValues(params)
}

// TrailingArgKeyGenerator drops the last argument before delegating. The last
// argument is expected to be call plumbing (a callback or continuation) rather
// than call data.
type TrailingArgKeyGenerator struct {
	Delegate KeyGenerator
}

func (g TrailingArgKeyGenerator) GenerateKey(operation string, params ...any) any {
	delegate := g.Delegate
	if delegate == nil {
		delegate = DefaultKeyGenerator{}
	}
	if len(params) > 0 {
		params = params[:len(params)-1]
	}
	return delegate.GenerateKey(operation, params...)
}

// HashedKeyGenerator replaces delegate keys longer than MaxLength with an
// xxhash digest. Useful for backends that limit key size.
type HashedKeyGenerator struct {
	Delegate  KeyGenerator
	MaxLength int
	Prefix    string
}

func (g HashedKeyGenerator) GenerateKey(operation string, params ...any) any {
	delegate := g.Delegate
	if delegate == nil {
		delegate = DefaultKeyGenerator{}
	}
	key := KeyString(delegate.GenerateKey(operation, params...))
	if g.MaxLength > 0 && len(key) <= g.MaxLength {
		return key
	}
	prefix := g.Prefix
	if prefix == "" {
		prefix = "xxh"
	}
	return fmt.Sprintf("%s:%016x", prefix, xxhash.Sum64String(key))
}

// KeyString renders a key as a string for backends that address entries by
// string. Strings are returned unchanged.
func KeyString(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case fmt.Stringer:
		return k.String()
	}
	return serializeValue(key)
}

var keyEscaper = strings.NewReplacer(
	`\`, `\\`,
	`:`, `\:`,
	`,`, `\,`,
	`=`, `\=`,
	`{`, `\{`,
	`}`, `\}`,
	`[`, `\[`,
	`]`, `\]`,
)

// escapeKeyPart escapes the characters the serializer uses as structure.
func escapeKeyPart(s string) string {
	return keyEscaper.Replace(s)
}

func joinValues(params []any) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = serializeValue(p)
	}
	return strings.Join(parts, KeySeparator)
}

var stringType = reflect.TypeOf("")

func serializeValue(v any) string {
	if v == nil {
		return "[nil]"
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	switch rt.Kind() {
	case reflect.Func:
		// only stable within one process
		return fmt.Sprintf("func:%p", v)
	case reflect.Chan:
		return fmt.Sprintf("chan:%p", v)
	case reflect.Ptr:
		if rv.IsNil() {
			return "[nil]"
		}
		return serializeValue(rv.Elem().Interface())
	case reflect.Interface:
		if rv.IsNil() {
			return "interface:nil"
		}
		return serializeValue(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		return "slice" + serializeElements(rv)
	case reflect.Array:
		return "array" + serializeElements(rv)
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return serializeMap(rv)
	case reflect.Struct:
		return serializeStruct(rv, rt)
	}

	if rt == stringType {
		return escapeKeyPart(rv.String())
	}
	if isBasicKind(rt.Kind()) {
		return escapeKeyPart(rt.String()) + ":" + escapeKeyPart(fmt.Sprintf("%v", v))
	}
	return jsonFallback(v)
}

func serializeElements(rv reflect.Value) string {
	n := rv.Len()
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = serializeValue(rv.Index(i).Interface())
	}
	return fmt.Sprintf("[%d]:{%s}", n, strings.Join(parts, ","))
}

func serializeMap(rv reflect.Value) string {
	type entry struct{ key, value string }

	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		entries = append(entries, entry{
			key:   serializeValue(iter.Key().Interface()),
			value: serializeValue(iter.Value().Interface()),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	pairs := make([]string, len(entries))
	for i, e := range entries {
		pairs[i] = e.key + "=" + e.value
	}
	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ","))
}

func serializeStruct(rv reflect.Value, rt reflect.Type) string {
	parts := make([]string, 0, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		fv := rv.Field(i)
		if !fv.CanInterface() {
			continue
		}
		parts = append(parts, field.Name+"="+serializeValue(fv.Interface()))
	}
	return fmt.Sprintf("struct:%s{%s}", escapeKeyPart(rt.String()), strings.Join(parts, ","))
}

func isBasicKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	default:
		return false
	}
}

func jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("fallback:%T", v)
	}
	return "json:" + escapeKeyPart(string(data))
}
