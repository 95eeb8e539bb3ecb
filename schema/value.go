package schema

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/neoql/querylanguage"
)

// Value converts a parsed GraphQL value into a Go value. Variables are read
// from vars; objects become querylanguage.Object with their written key
// order, and objects coming from variables get sorted keys.
func Value(v *ast.Value, vars map[string]any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch v.Kind {
	case ast.Variable:
		return FromJSON(vars[v.Raw]), nil
	case ast.IntValue:
		n, err := strconv.ParseInt(v.Raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("int %s: %w", v.Raw, err)
		}
		return n, nil
	case ast.FloatValue:
		f, err := strconv.ParseFloat(v.Raw, 64)
		if err != nil {
			return nil, fmt.Errorf("float %s: %w", v.Raw, err)
		}
		return f, nil
	case ast.StringValue, ast.BlockValue, ast.EnumValue:
		return v.Raw, nil
	case ast.BooleanValue:
		return v.Raw == "true", nil
	case ast.NullValue:
		return nil, nil
	case ast.ListValue:
		list := make([]any, 0, len(v.Children))
		for _, c := range v.Children {
			x, err := Value(c.Value, vars)
			if err != nil {
				return nil, err
			}
			list = append(list, x)
		}
		return list, nil
	case ast.ObjectValue:
		obj := make(querylanguage.Object, 0, len(v.Children))
		for _, c := range v.Children {
			x, err := Value(c.Value, vars)
			if err != nil {
				return nil, err
			}
			obj = append(obj, querylanguage.KeyValue{Key: c.Name, Value: x})
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unexpected value kind %d", v.Kind)
	}
}

// FromJSON converts a decoded JSON value into the argument value shape.
// Maps become objects with sorted keys.
func FromJSON(v any) any {
	switch v := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := make(querylanguage.Object, len(keys))
		for i, k := range keys {
			obj[i] = querylanguage.KeyValue{Key: k, Value: FromJSON(v[k])}
		}
		return obj
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = FromJSON(v[i])
		}
		return out
	case int:
		return int64(v)
	case int32:
		return int64(v)
	default:
		return v
	}
}

// Arguments converts an argument list into an object.
func Arguments(args ast.ArgumentList, vars map[string]any) (querylanguage.Object, error) {
	obj := make(querylanguage.Object, 0, len(args))
	for _, a := range args {
		v, err := Value(a.Value, vars)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", a.Name, err)
		}
		obj = append(obj, querylanguage.KeyValue{Key: a.Name, Value: v})
	}
	return obj, nil
}

// Int reads an integer argument value. JSON numbers are accepted when they
// hold a whole number.
func Int(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case int:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
