package shell

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/josephlewis42/pipesh/core/expand"
)

var (
	processType = reflect.TypeOf((*Process)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// methodProxy calls a method of an arbitrary value by name.
type methodProxy struct {
	target interface{}
	name   string
}

func (m *methodProxy) Execute(proc Process, args []interface{}) (interface{}, error) {
	return invokeMethod(proc, m.target, m.name, args)
}

func (m *methodProxy) String() string {
	return fmt.Sprintf("%T.%s", m.target, m.name)
}

// findMethod matches name case insensitively against the exported methods
// of v, also trying Get and Is prefixed accessors.
func findMethod(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for _, candidate := range []string{name, "Get" + name, "Is" + name} {
		for i := 0; i < t.NumMethod(); i++ {
			if strings.EqualFold(t.Method(i).Name, candidate) {
				return v.Method(i), true
			}
		}
	}
	return reflect.Value{}, false
}

func invokeMethod(proc Process, target interface{}, name string, args []interface{}) (interface{}, error) {
	if target == nil {
		return nil, evalErrorf("cannot call %s on null", name)
	}

	method, ok := findMethod(reflect.ValueOf(target), name)
	if !ok {
		return nil, evalErrorf("no method %s on %T", name, target)
	}

	in, err := convertArgs(proc, method.Type(), args)
	if err != nil {
		return nil, &EvalError{Msg: fmt.Sprintf("calling %s on %T", name, target), Err: err}
	}
	return unpackResults(method.Call(in))
}

func convertArgs(proc Process, t reflect.Type, args []interface{}) ([]reflect.Value, error) {
	var in []reflect.Value
	param := 0
	if t.NumIn() > 0 && t.In(0) == processType {
		in = append(in, reflect.ValueOf(&proc).Elem())
		param++
	}

	next := 0
	for ; param < t.NumIn(); param++ {
		pt := t.In(param)
		if t.IsVariadic() && param == t.NumIn()-1 {
			for ; next < len(args); next++ {
				v, err := convertValue(args[next], pt.Elem())
				if err != nil {
					return nil, err
				}
				in = append(in, v)
			}
			return in, nil
		}

		if next >= len(args) {
			return nil, fmt.Errorf("too few arguments, got %d", len(args))
		}
		v, err := convertValue(args[next], pt)
		if err != nil {
			return nil, err
		}
		in = append(in, v)
		next++
	}

	if next < len(args) {
		return nil, fmt.Errorf("too many arguments, got %d", len(args))
	}
	return in, nil
}

func convertValue(value interface{}, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	s := expand.Stringify(value)
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(s).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 0, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("cannot convert %q to %s", s, t)
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 0, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("cannot convert %q to %s", s, t)
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(s, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("cannot convert %q to %s", s, t)
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("cannot convert %q to %s", s, t)
		}
		return reflect.ValueOf(b), nil
	case reflect.Slice:
		if list, ok := expand.ToList(value); ok {
			out := reflect.MakeSlice(t, len(list), len(list))
			for i, item := range list {
				v, err := convertValue(item, t.Elem())
				if err != nil {
					return reflect.Value{}, err
				}
				out.Index(i).Set(v)
			}
			return out, nil
		}
	}

	return reflect.Value{}, fmt.Errorf("cannot convert %s to %s", rv.Type(), t)
}

// unpackResults turns method results into a value and an error. A trailing
// error result is split off.
func unpackResults(out []reflect.Value) (interface{}, error) {
	var err error
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if e := out[n-1].Interface(); e != nil {
			err = e.(error)
		}
		out = out[:n-1]
	}

	switch len(out) {
	case 0:
		return nil, err
	case 1:
		return resultValue(out[0]), err
	default:
		values := make([]interface{}, len(out))
		for i, v := range out {
			values[i] = resultValue(v)
		}
		return values, err
	}
}

func resultValue(v reflect.Value) interface{} {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}
