package expand

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ArgList holds values that must be spliced into the surrounding argument
// list as separate words. A plain slice is passed through as one value.
type ArgList []interface{}

// ToList converts slices and arrays (other than byte slices) to a generic
// list. The second return value is false for anything else.
func ToList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case nil, []byte, string:
		return nil, false
	case ArgList:
		return []interface{}(l), true
	case []interface{}:
		return l, true
	case []string:
		out := make([]interface{}, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	default:
		return nil, false
	}
}

// MapEntries returns the keys and values of a map sorted by the string
// form of their keys, so map output is stable.
func MapEntries(v interface{}) (keys, values []interface{}, ok bool) {
	if v == nil {
		return nil, nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, nil, false
	}

	mapKeys := rv.MapKeys()
	sort.Slice(mapKeys, func(i, j int) bool {
		return Stringify(mapKeys[i].Interface()) < Stringify(mapKeys[j].Interface())
	})
	for _, k := range mapKeys {
		keys = append(keys, k.Interface())
		values = append(values, rv.MapIndex(k).Interface())
	}
	return keys, values, true
}

// MapLen returns the number of entries in v if it's a map.
func MapLen(v interface{}) (int, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return 0, false
	}
	return rv.Len(), true
}

// mapLookup looks up a key by its string form.
func mapLookup(v interface{}, key string) interface{} {
	keys, values, _ := MapEntries(v)
	for i, k := range keys {
		if Stringify(k) == key {
			return values[i]
		}
	}
	return nil
}

// toCollection turns maps into lists of their values, keys (k) or both
// interleaved (k and v). Lists are normalized, other values pass through.
func toCollection(v interface{}, flagk, flagv bool) interface{} {
	if keys, values, ok := MapEntries(v); ok {
		var out []interface{}
		switch {
		case flagk && flagv:
			for i := range keys {
				out = append(out, keys[i], values[i])
			}
		case flagk:
			out = append(out, keys...)
		default:
			out = append(out, values...)
		}
		if out == nil {
			out = []interface{}{}
		}
		return out
	}
	if l, ok := ToList(v); ok {
		return l
	}
	return v
}

// Stringify renders a value as text for splicing into a word. Lists are
// joined with spaces.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	}
	if l, ok := ToList(v); ok {
		parts := make([]string, len(l))
		for i, e := range l {
			parts[i] = Stringify(e)
		}
		return strings.Join(parts, " ")
	}
	return fmt.Sprint(v)
}

func joinList(l []interface{}, sep string) string {
	parts := make([]string, len(l))
	for i, e := range l {
		parts[i] = Stringify(e)
	}
	return strings.Join(parts, sep)
}
