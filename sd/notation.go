package sd

import (
	"encoding/base64"
	"sort"
	"strconv"
	"time"

	"github.com/llio/llio/json"
)

// ToNotation serializes v into the notation wire format used by RPC request
// and response bodies.
func ToNotation(v Value) []byte {
	return appendValue(nil, v)
}

func appendValue(dst []byte, v Value) []byte {
	switch t := v.(type) {
	case nil:
		return append(dst, "null"...)
	case bool:
		return json.Bool(dst, t)
	case int:
		return strconv.AppendInt(dst, int64(t), 10)
	case int32:
		return strconv.AppendInt(dst, int64(t), 10)
	case int64:
		return strconv.AppendInt(dst, t, 10)
	case float32:
		return strconv.AppendFloat(dst, float64(t), 'g', -1, 32)
	case float64:
		return strconv.AppendFloat(dst, t, 'g', -1, 64)
	case string:
		return json.Str(dst, t)
	case UUID:
		return appendTagged(dst, "uuid", t.String())
	case Date:
		return appendTagged(dst, "date", t.Time().UTC().Format(time.RFC3339Nano))
	case Binary:
		return appendTagged(dst, "binary", base64.StdEncoding.EncodeToString(t))
	case []byte:
		return appendTagged(dst, "binary", base64.StdEncoding.EncodeToString(t))
	case Array:
		dst = append(dst, '[')
		for i, e := range t {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendValue(dst, e)
		}
		return append(dst, ']')
	case Map:
		dst = append(dst, '{')
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = json.Str(dst, k)
			dst = append(dst, ':')
			dst = appendValue(dst, t[k])
		}
		return append(dst, '}')
	default:
		// unknown Go type: best-effort, never panics the caller
		return append(dst, "null"...)
	}
}

func appendTagged(dst []byte, typ, val string) []byte {
	dst = append(dst, `{"$type":`...)
	dst = json.Str(dst, typ)
	dst = append(dst, `,"$val":`...)
	dst = json.Str(dst, val)
	return append(dst, '}')
}

// FromNotation parses the first value out of data and returns it along with
// the number of bytes it consumed, so callers can frame subsequent values
// out of the same stream.
func FromNotation(data []byte) (Value, int, error) {
	value, dataType, offset, err := json.Get(data)
	if err != nil {
		return nil, 0, err
	}
	v, err := decodeTyped(value, dataType)
	if err != nil {
		return nil, 0, err
	}
	return v, offset, nil
}

func decodeTyped(value []byte, dataType json.ValueType) (Value, error) {
	switch dataType {
	case json.Null:
		return nil, nil
	case json.Boolean:
		return json.ParseBool(value)
	case json.Number:
		if i, err := json.ParseInt(value); err == nil {
			return i, nil
		}
		return json.ParseFloat(value)
	case json.String:
		return json.ParseStr(value)
	case json.Array:
		arr := Array{}
		var outerErr error
		err := json.ArrayEach(value, func(v []byte, typ json.ValueType) error {
			item, err := decodeTyped(v, typ)
			if err != nil {
				return err
			}
			arr = append(arr, item)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if outerErr != nil {
			return nil, outerErr
		}
		return arr, nil
	case json.Object:
		obj := Map{}
		err := json.ObjectEach(value, func(key, val []byte, typ json.ValueType) error {
			item, err := decodeTyped(val, typ)
			if err != nil {
				return err
			}
			obj[string(key)] = item
			return nil
		})
		if err != nil {
			return nil, err
		}
		return untag(obj)
	default:
		return nil, ErrValue
	}
}

// untag recognizes the {"$type":..., "$val":...} wrapper used to carry
// UUID/Date/Binary through the otherwise JSON-shaped notation, and converts
// it back to the corresponding Go type. Any other object passes through
// unchanged.
func untag(obj Map) (Value, error) {
	typ, ok := obj["$type"].(string)
	if !ok {
		return obj, nil
	}
	val, ok := obj["$val"].(string)
	if !ok {
		return obj, nil
	}

	switch typ {
	case "uuid":
		return ParseUUID(val)
	case "date":
		t, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return nil, err
		}
		return Date(t), nil
	case "binary":
		b, err := base64.StdEncoding.DecodeString(val)
		if err != nil {
			return nil, err
		}
		return Binary(b), nil
	default:
		return obj, nil
	}
}
