package repositorycache

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// CacheNameFor derives the default cache name of a repository of T: the
// plural snake_case form of the type name, so User becomes users and
// *BillingAccount becomes billing_accounts.
func CacheNameFor[T any]() string {
	rt := reflect.TypeFor[T]()
	for rt.Kind() == reflect.Pointer || rt.Kind() == reflect.Slice {
		rt = rt.Elem()
	}
	name := rt.Name()
	// generic instantiations carry their type arguments
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	snake := toSnake(name)
	if snake == "" {
		return "records"
	}
	return inflection.Plural(snake)
}

// toSnake lowercases s and separates words with single underscores. Every rune
// that is not a letter or digit becomes a separator, so the result is safe in
// key namespaces of any backend.
func toSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	pending := false
	separate := func() {
		if b.Len() > 0 {
			pending = true
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					separate()
				}
			}
			r = unicode.ToLower(r)
		case unicode.IsDigit(r):
			if i > 0 && unicode.IsLetter(runes[i-1]) {
				separate()
			}
		case unicode.IsLower(r):
		default:
			separate()
			continue
		}

		if pending {
			b.WriteByte('_')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
