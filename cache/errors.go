package cache

import (
	"fmt"

	"github.com/goliatone/go-errors"
)

// Text codes attached to engine errors.
const (
	TextCodeCacheNotFound        = "CACHE_NOT_FOUND"
	TextCodeDuplicateCache       = "CACHE_DUPLICATE"
	TextCodeKeyGeneratorNotFound = "KEY_GENERATOR_NOT_FOUND"
	TextCodeResultType           = "CACHE_RESULT_TYPE"
)

func cacheNotFoundError(name string) error {
	return errors.New(fmt.Sprintf("no cache named %q", name), errors.CategoryNotFound).
		WithTextCode(TextCodeCacheNotFound).
		WithMetadata(map[string]any{"cache": name})
}

func duplicateCacheError(name string) error {
	return errors.New(fmt.Sprintf("cache %q registered twice", name), errors.CategoryConflict).
		WithTextCode(TextCodeDuplicateCache).
		WithMetadata(map[string]any{"cache": name})
}

func keyGeneratorNotFoundError(name string) error {
	return errors.New(fmt.Sprintf("no key generator named %q", name), errors.CategoryNotFound).
		WithTextCode(TextCodeKeyGeneratorNotFound).
		WithMetadata(map[string]any{"key_generator": name})
}

// IsCacheNotFound reports whether err signals an unknown cache name.
func IsCacheNotFound(err error) bool {
	return hasTextCode(err, TextCodeCacheNotFound)
}

// IsKeyGeneratorNotFound reports whether err signals an unknown key generator.
func IsKeyGeneratorNotFound(err error) bool {
	return hasTextCode(err, TextCodeKeyGeneratorNotFound)
}

// IsResultType reports whether a cached value could not be converted.
func IsResultType(err error) bool {
	return hasTextCode(err, TextCodeResultType)
}

func hasTextCode(err error, code string) bool {
	var e *errors.Error
	if !errors.As(err, &e) {
		return false
	}
	return e.TextCode == code
}
