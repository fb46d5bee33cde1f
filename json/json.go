// Package json provides low-level byte-appending JSON helpers on top of
// jsonparser, shared by the sd notation codec and anything else that wants
// to build or scan JSON fragments without a full encoding/json round-trip.
package json

import (
	jsp "github.com/buger/jsonparser"
)

// Get, the Parse* helpers and the ValueType constants are re-exported so
// callers only need to import this package, not jsonparser directly;
// ArrayEach and ObjectEach below wrap jsonparser's versions.
var (
	Get        = jsp.Get
	ParseBool  = jsp.ParseBoolean
	ParseInt   = jsp.ParseInt
	ParseFloat = jsp.ParseFloat
	ParseStr   = jsp.ParseString
)

type ValueType = jsp.ValueType

const (
	NotExist = jsp.NotExist
	String   = jsp.String
	Number   = jsp.Number
	Object   = jsp.Object
	Array    = jsp.Array
	Boolean  = jsp.Boolean
	Null     = jsp.Null
	Unknown  = jsp.Unknown
)

func Bool(dst []byte, val bool) []byte {
	if val {
		return append(dst, `true`...)
	} else {
		return append(dst, `false`...)
	}
}

// Str appends src as a quoted JSON string, backslash-escaping quotes,
// backslashes, newlines, carriage returns and tabs; other bytes, including
// other control characters, are copied unchanged.
func Str(dst []byte, src string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch c {
		case '"', '\\':
			dst = append(dst, '\\', c)
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		default:
			dst = append(dst, c)
		}
	}
	return append(dst, '"')
}

// ArrayEach calls cb for each element in the src array.
// If the callback returns an non-nil error, it breaks immediately and returns it.
func ArrayEach(src []byte, cb func(val []byte, typ ValueType) error) (reterr error) {
	// convert panics into reterr error
	defer func() {
		if r, ok := recover().(error); ok {
			reterr = r
		}
	}()

	jsp.ArrayEach(src, func(val []byte, typ jsp.ValueType, _ int, _ error) {
		err := cb(val, typ)
		if err != nil {
			panic(err) // the only way to break from ArrayEach
		}
	})

	return nil
}

// ObjectEach calls cb for each element in the src object.
// If the callback returns an non-nil error, it breaks immediately and returns it.
func ObjectEach(src []byte, cb func(key, val []byte, typ ValueType) error) error {
	return jsp.ObjectEach(src, func(key, val []byte, typ jsp.ValueType, _ int) error {
		return cb(key, val, typ)
	})
}
