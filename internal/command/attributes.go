package command

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindString ValueKind = iota + 1
	KindInt
	KindBool
	KindList
)

// Value is a typed attribute value: exactly one of string, int, bool or
// string list.
type Value struct {
	kind ValueKind
	str  string
	num  int64
	flag bool
	list []string
}

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// IntValue wraps an integer.
func IntValue(n int64) Value { return Value{kind: KindInt, num: n} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{kind: KindBool, flag: b} }

// ListValue wraps a copy of items.
func ListValue(items ...string) Value { return Value{kind: KindList, list: append([]string(nil), items...)} }

// ValueOf converts a decoded scalar (string, bool, any integer, or a list of
// strings) into a Value.
func ValueOf(v any) (Value, error) {
	switch t := v.(type) {
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case int:
		return IntValue(int64(t)), nil
	case int64:
		return IntValue(t), nil
	case int32:
		return IntValue(int64(t)), nil
	case uint64:
		return IntValue(int64(t)), nil
	case []string:
		return ListValue(t...), nil
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return Value{}, fmt.Errorf("list item %v is %T, want string", item, item)
			}
			items = append(items, s)
		}
		return ListValue(items...), nil
	default:
		return Value{}, fmt.Errorf("unsupported attribute type %T", v)
	}
}

// Kind returns the variant tag; the zero Value has kind 0.
func (v Value) Kind() ValueKind { return v.kind }

// Any returns the held value as an interface, for encoding.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindBool:
		return v.flag
	case KindList:
		return append([]string(nil), v.list...)
	default:
		return nil
	}
}

// MarshalJSON encodes the held value.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// String formats the held value with fmt.
func (v Value) String() string {
	return fmt.Sprint(v.Any())
}

// Attributes is a concurrency-safe, string-keyed store of typed values
// attached to a definition after construction.
type Attributes struct {
	mu     sync.RWMutex
	values map[string]Value
}

// NewAttributes returns a store seeded with values.
func NewAttributes(values map[string]Value) *Attributes {
	a := &Attributes{values: make(map[string]Value, len(values))}
	for k, v := range values {
		a.values[k] = v
	}
	return a
}

// Set stores v under key.
func (a *Attributes) Set(key string, v Value) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values[key] = v
}

// Delete removes key.
func (a *Attributes) Delete(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.values, key)
}

// Get returns the raw value under key.
func (a *Attributes) Get(key string) (Value, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.values[key]
	return v, ok
}

// String returns the string under key; ok is false if absent or not a string.
func (a *Attributes) String(key string) (string, bool) {
	v, ok := a.Get(key)
	if !ok || v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Int returns the integer under key; ok is false if absent or not an int.
func (a *Attributes) Int(key string) (int64, bool) {
	v, ok := a.Get(key)
	if !ok || v.kind != KindInt {
		return 0, false
	}
	return v.num, true
}

// Bool returns the boolean under key; ok is false if absent or not a bool.
func (a *Attributes) Bool(key string) (bool, bool) {
	v, ok := a.Get(key)
	if !ok || v.kind != KindBool {
		return false, false
	}
	return v.flag, true
}

// List returns a copy of the list under key; ok is false if absent or not
// a list.
func (a *Attributes) List(key string) ([]string, bool) {
	v, ok := a.Get(key)
	if !ok || v.kind != KindList {
		return nil, false
	}
	return append([]string(nil), v.list...), true
}

// Keys returns the attribute names in sorted order.
func (a *Attributes) Keys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, 0, len(a.values))
	for k := range a.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of every attribute.
func (a *Attributes) Snapshot() map[string]Value {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]Value, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}
