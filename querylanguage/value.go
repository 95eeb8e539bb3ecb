package querylanguage

// Object is an input object whose keys keep the order they were written in.
// Argument values are one of nil, bool, int64, float64, string, []any or
// Object.
type Object []KeyValue

// KeyValue is one entry of an Object.
type KeyValue struct {
	Key   string
	Value any
}

// Get returns the value stored under key.
func (o Object) Get(key string) (any, bool) {
	for _, kv := range o {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// Has reports whether key is present.
func (o Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Keys returns the keys in order.
func (o Object) Keys() []string {
	keys := make([]string, len(o))
	for i, kv := range o {
		keys[i] = kv.Key
	}
	return keys
}

// Map returns o as a plain map, converting nested objects as well.
func (o Object) Map() map[string]any {
	m := make(map[string]any, len(o))
	for _, kv := range o {
		m[kv.Key] = Plain(kv.Value)
	}
	return m
}

// Plain converts nested Objects to maps so the value can be bound as a
// statement parameter.
func Plain(v any) any {
	switch v := v.(type) {
	case Object:
		return v.Map()
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = Plain(v[i])
		}
		return out
	default:
		return v
	}
}

// AsObject returns v as an Object, accepting nil as the empty object.
func AsObject(v any) (Object, bool) {
	switch v := v.(type) {
	case nil:
		return nil, true
	case Object:
		return v, true
	default:
		return nil, false
	}
}

// AsList returns v as a list. A single non-list value is coerced into a
// list of one, as GraphQL input coercion does.
func AsList(v any) []any {
	switch v := v.(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []any{v}
	}
}
