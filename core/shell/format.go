package shell

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/josephlewis42/pipesh/core/expand"
)

// Detail levels for Format.
const (
	// Inspect renders a value in full, one row per element or field.
	Inspect = iota
	// Line renders a value on a single line.
	Line
	// Part renders a value nested inside another one.
	Part
)

const inspectColumn = "%-20s %s\n"

// Converter gets the first chance to format values. It returns false for
// values it doesn't handle.
type Converter interface {
	Format(value interface{}, level int, session *Session) (string, bool)
}

// ConverterFunc adapts a function to a Converter.
type ConverterFunc func(value interface{}, level int, session *Session) (string, bool)

func (f ConverterFunc) Format(value interface{}, level int, session *Session) (string, bool) {
	return f(value, level, session)
}

// Describable values render themselves.
type Describable interface {
	Describe(level int) string
}

// Format renders value for people at the given level.
func (s *Session) Format(value interface{}, level int) string {
	if value == nil {
		return "null"
	}
	if str, ok := value.(string); ok {
		return str
	}

	for _, c := range s.processor.converterList() {
		if out, ok := c.Format(value, level, s); ok {
			return out
		}
	}

	switch v := value.(type) {
	case Describable:
		return v.Describe(level)
	case error:
		return v.Error()
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if isPrimitive(rv.Type().Elem().Kind()) {
			return formatPrimitives(rv)
		}
		list, _ := expand.ToList(value)
		return s.formatList(list, level)

	case reflect.Map:
		keys, values, _ := expand.MapEntries(value)
		return s.formatMap(keys, values, level)
	}

	if level == Inspect {
		return s.inspect(value)
	}
	return fmt.Sprint(value)
}

func (s *Session) formatList(list []interface{}, level int) string {
	var sb strings.Builder
	if level == Inspect {
		for _, o := range list {
			sb.WriteString(s.Format(o, Line))
			sb.WriteString("\n")
		}
		return sb.String()
	}

	sb.WriteString("[")
	for i, o := range list {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(s.Format(o, Part))
	}
	sb.WriteString("]")
	return sb.String()
}

func (s *Session) formatMap(keys, values []interface{}, level int) string {
	var sb strings.Builder
	if level == Inspect {
		for i, k := range keys {
			key := s.Format(k, Line)
			sb.WriteString(key)
			for n := len(key); n < 20; n++ {
				sb.WriteByte(' ')
			}
			sb.WriteString(s.Format(values[i], Line))
			sb.WriteString("\n")
		}
		return sb.String()
	}

	sb.WriteString("[")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(s.Format(k, Part))
		sb.WriteString("=")
		sb.WriteString(s.Format(values[i], Part))
	}
	sb.WriteString("]")
	return sb.String()
}

func isPrimitive(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func formatPrimitives(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = fmt.Sprint(rv.Index(i).Interface())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// inspect lists the exported fields of a struct. Values without any fall
// back to their default formatting.
func (s *Session) inspect(value interface{}) string {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return fmt.Sprint(value)
	}

	var sb strings.Builder
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		fmt.Fprintf(&sb, inspectColumn, field.Name, s.Format(rv.Field(i).Interface(), Line))
	}
	if sb.Len() == 0 {
		return fmt.Sprint(value)
	}
	return sb.String()
}
