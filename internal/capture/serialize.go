package capture

import (
	"fmt"
	"reflect"
	"time"
)

// Enumerated is implemented by attribute values that wrap an underlying
// scalar, such as enum-like types decoded from integrations. The serialiser
// unwraps them rather than stringifying the wrapper.
type Enumerated interface {
	// EnumValue returns the underlying value the enumeration represents.
	EnumValue() any
}

// Serializer coerces arbitrary attribute values into YAML-safe form.
//
// Serialisation is total: every input produces a value that yaml.Marshal can
// encode, falling back to the value's string form when no structured mapping
// exists. It never returns an error.
type Serializer struct {
	logger Logger
}

// NewSerializer creates a Serializer. Pass nil to disable logging of
// fallback coercions.
func NewSerializer(logger Logger) *Serializer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Serializer{logger: logger}
}

// Serialize converts a value into a YAML-safe equivalent.
//
// Mappings:
//   - nil stays nil
//   - booleans, integers, floats, and strings pass through
//   - Enumerated values are unwrapped and serialised recursively
//   - time.Time becomes an RFC 3339 string
//   - maps become map[string]any with stringified keys
//   - slices and arrays become []any
//   - everything else falls back to its fmt string form
func (s *Serializer) Serialize(value any) any {
	if value == nil {
		return nil
	}

	if enum, ok := value.(Enumerated); ok {
		return s.Serialize(enum.EnumValue())
	}

	switch v := value.(type) {
	case bool, string:
		return v
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return v
	case float32, float64:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case time.Duration:
		return v.Seconds()
	case []byte:
		return string(v)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return s.Serialize(rv.Elem().Interface())

	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			out[key] = s.Serialize(iter.Value().Interface())
		}
		return out

	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = s.Serialize(rv.Index(i).Interface())
		}
		return out

	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()

	default:
		// Structs, channels, funcs: keep totality with the string form
		s.logger.Warn("attribute value coerced to string",
			"type", fmt.Sprintf("%T", value),
		)
		return fmt.Sprint(value)
	}
}

// SerializeAttributes coerces a full attribute map, dropping nothing.
func (s *Serializer) SerializeAttributes(attrs map[string]any) AttributeMap {
	out := make(AttributeMap, len(attrs))
	for k, v := range attrs {
		out[k] = s.Serialize(v)
	}
	return out
}
