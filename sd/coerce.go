package sd

import "github.com/spf13/cast"

// AsString coerces v to a string, the same opportunistic way RPC method
// implementations want to read a loosely-typed parameter.
func AsString(v Value) (string, error) {
	return cast.ToStringE(v)
}

// AsInt64 coerces v to an int64.
func AsInt64(v Value) (int64, error) {
	return cast.ToInt64E(v)
}

// AsFloat64 coerces v to a float64.
func AsFloat64(v Value) (float64, error) {
	return cast.ToFloat64E(v)
}

// AsBool coerces v to a bool.
func AsBool(v Value) (bool, error) {
	return cast.ToBoolE(v)
}

// AsArray asserts v is an Array, without coercion (structure is not
// opportunistically convertible the way scalars are).
func AsArray(v Value) (Array, bool) {
	a, ok := v.(Array)
	return a, ok
}

// AsMap asserts v is a Map.
func AsMap(v Value) (Map, bool) {
	m, ok := v.(Map)
	return m, ok
}
