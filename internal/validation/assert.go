// Package validation provides constructor-time contract checks.
package validation

import (
	"cmp"
	"fmt"
	"reflect"
)

// AssertNotNil panics if the provided pointer is nil.
// It is intended for constructors where a dependency is mandatory.
//
// Usage:
//
//	validation.AssertNotNil(cfg, "retry config")
func AssertNotNil[T any](ptr *T, name string) {
	if ptr == nil {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
}

// AssertPresent panics if dep is nil, including an interface holding a nil pointer.
//
//	validation.AssertPresent(sink, "sink")
func AssertPresent(dep any, name string) {
	if dep == nil {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
	v := reflect.ValueOf(dep)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			panic(fmt.Sprintf("critical error: %s cannot be nil", name))
		}
	}
}

// AssertPositive panics unless v > 0. Used for intervals and strides.
func AssertPositive[T cmp.Ordered](v T, name string) {
	var zero T
	if v <= zero {
		panic(fmt.Sprintf("critical error: %s must be positive, got %v", name, v))
	}
}

// Panics here signal programmer error (misconfiguration), never runtime failures.
