package cache

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrInvalidArgument is the root of every argument validation failure.
	ErrInvalidArgument = errors.New("cache: invalid argument")

	// ErrInvalidKey reports a nil key or a blank textual key.
	ErrInvalidKey = fmt.Errorf("%w: key is nil or blank", ErrInvalidArgument)

	// ErrInvalidValue reports a nil value passed to Put/PutAll.
	ErrInvalidValue = fmt.Errorf("%w: value is nil", ErrInvalidArgument)

	// ErrNoLoader is returned by New when Options.Loader is nil.
	ErrNoLoader = errors.New("cache: no Loader provided")

	// ErrNoRunner is returned by New when Options.Runner is nil.
	ErrNoRunner = errors.New("cache: no Runner provided")

	// ErrClosed is returned by key operations after Close.
	ErrClosed = errors.New("cache: closed")
)

// validateKey rejects nil keys and empty or whitespace-only textual keys.
func validateKey[K comparable](k K) error {
	switch v := any(k).(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return ErrInvalidKey
		}
		return nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, uintptr:
		return nil
	}

	if isNil(k) {
		return ErrInvalidKey
	}
	// Named string types (type UserID string) are textual too.
	if rv := reflect.ValueOf(k); rv.Kind() == reflect.String && strings.TrimSpace(rv.String()) == "" {
		return ErrInvalidKey
	}
	return nil
}

// validateValue rejects nil values of nil-able types.
func validateValue[V any](v V) error {
	if isNil(v) {
		return ErrInvalidValue
	}
	return nil
}

// isNil reports whether x is nil or a nil pointer, map, slice, chan, func
// or interface wrapped in an interface.
func isNil(x any) bool {
	if x == nil {
		return true
	}
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}
