package vm

import (
	"encoding/json"
	"fmt"
	"iter"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// SafeString is a string that is written to output without escaping.
type SafeString string

func (s SafeString) String() string { return string(s) }

// NullContext is the receiver passed to helpers when the current context is
// nil. It behaves like an empty object.
var NullContext any = &nullContext{}

type nullContext struct{}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"`", "&#x60;",
	"=", "&#x3D;",
)

// Escape replaces the HTML special characters in s with entities.
func Escape(s string) string {
	if !strings.ContainsAny(s, "&<>\"'`=") {
		return s
	}
	return escaper.Replace(s)
}

// EscapeValue converts v to a string and escapes it. SafeString values are
// returned unchanged and nil becomes the empty string.
func EscapeValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case SafeString:
		return string(v)
	case string:
		return Escape(v)
	}
	return Escape(ToString(v))
}

// ToString converts a value to its output representation.
func ToString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case SafeString:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return formatFloat(v)
	case float32:
		return formatFloat(float64(v))
	case *nullContext:
		return "[object Object]"
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return formatFloat(rv.Float())
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = ToString(rv.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	case reflect.Pointer:
		if rv.IsNil() {
			return ""
		}
		if rv.Elem().Kind() != reflect.Struct {
			return ToString(rv.Elem().Interface())
		}
		return "[object Object]"
	case reflect.Map, reflect.Struct:
		return "[object Object]"
	case reflect.Func:
		return "function"
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// IsTruthy reports whether v is truthy: nil, false, zero numbers, NaN and
// the empty string are falsy. Everything else, including empty slices and
// maps, is truthy.
func IsTruthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case SafeString:
		return v != ""
	case int:
		return v != 0
	case float64:
		return v != 0 && !math.IsNaN(v)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f != 0 && !math.IsNaN(f)
	case reflect.String:
		return rv.Len() > 0
	case reflect.Bool:
		return rv.Bool()
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// IsEmpty reports whether v counts as empty for the if, unless and with
// helpers: falsy values other than zero, and empty slices or arrays.
func IsEmpty(v any) bool {
	if !IsTruthy(v) && !isZeroNumber(v) {
		return true
	}
	if IsArray(v) {
		return reflect.ValueOf(v).Len() == 0
	}
	return false
}

func isZeroNumber(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	}
	return false
}

// IsArray reports whether v is a slice or array.
func IsArray(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return true
	}
	return false
}

// IsObject reports whether v has named properties that can be enumerated:
// maps, structs, pointers to structs, Fields values and data frames.
func IsObject(v any) bool {
	switch v.(type) {
	case nil:
		return false
	case Fields, *Frame, *nullContext:
		return true
	}
	rv := indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Map, reflect.Struct:
		return true
	}
	return false
}

// sameValue reports whether a and b are the same context. Reference types
// compare by identity and basic types by value.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return a == b
	}
	return false
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

// Entry is one element visited when iterating a value.
type Entry struct {
	Key   any
	Value any
}

// Entries lists the elements of v for iteration. Slices and arrays yield
// their index as key, iterables are drained first and objects yield their
// keys in Keys order. The second result is false when v cannot be iterated.
func Entries(v any) ([]Entry, bool) {
	switch v := v.(type) {
	case nil:
		return nil, false
	case iter.Seq[any]:
		var entries []Entry
		for item := range v {
			entries = append(entries, Entry{Key: len(entries), Value: item})
		}
		return entries, true
	case Fields, *Frame:
		return objectEntries(v), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		entries := make([]Entry, rv.Len())
		for i := range entries {
			entries[i] = Entry{Key: i, Value: rv.Index(i).Interface()}
		}
		return entries, true
	case reflect.Chan:
		if rv.IsNil() {
			return nil, false
		}
		var entries []Entry
		for {
			item, ok := rv.Recv()
			if !ok {
				break
			}
			entries = append(entries, Entry{Key: len(entries), Value: item.Interface()})
		}
		return entries, true
	}
	if IsObject(v) {
		return objectEntries(v), true
	}
	return nil, false
}

func objectEntries(v any) []Entry {
	keys := Keys(v)
	entries := make([]Entry, len(keys))
	for i, key := range keys {
		value, _ := ownProperty(v, key)
		entries[i] = Entry{Key: key, Value: value}
	}
	return entries
}

// Keys returns the own property names of an object. Fields values keep
// their own order; map keys are sorted with integer keys first in numeric
// order; struct fields follow declaration order.
func Keys(v any) []string {
	switch v := v.(type) {
	case nil:
		return nil
	case Fields:
		return v.Keys()
	case *Frame:
		return v.Keys()
	}
	rv := indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		it := rv.MapRange()
		for it.Next() {
			keys = append(keys, ToString(it.Key().Interface()))
		}
		sortKeys(keys)
		return keys
	case reflect.Struct:
		return structInfoOf(rv.Type()).keys
	}
	return nil
}

func sortKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		a, aerr := strconv.ParseUint(keys[i], 10, 32)
		b, berr := strconv.ParseUint(keys[j], 10, 32)
		switch {
		case aerr == nil && berr == nil:
			return a < b
		case aerr == nil:
			return true
		case berr == nil:
			return false
		}
		return keys[i] < keys[j]
	})
}

// Fields is implemented by values that expose their own named properties
// in a fixed order.
type Fields interface {
	Keys() []string
	Field(name string) (any, bool)
}

// OrderedMap is a string keyed map that remembers insertion order.
type OrderedMap struct {
	keys   []string
	values map[string]any
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: map[string]any{}}
}

// Set assigns a value, appending the key if it is new.
func (m *OrderedMap) Set(key string, value any) {
	if m.values == nil {
		m.values = map[string]any{}
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key.
func (m *OrderedMap) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Delete removes a key.
func (m *OrderedMap) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Field implements Fields.
func (m *OrderedMap) Field(name string) (any, bool) {
	return m.Get(name)
}

// MarshalJSON writes the entries as a JSON object in insertion order.
func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, key := range m.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(m.values[key])
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// extend returns a new object holding the own properties of base followed
// by the entries of hash, which win on conflict.
func extend(base any, hash map[string]any) *OrderedMap {
	out := NewOrderedMap()
	if IsObject(base) {
		for _, key := range Keys(base) {
			v, _ := ownProperty(base, key)
			out.Set(key, v)
		}
	}
	keys := make([]string, 0, len(hash))
	for key := range hash {
		keys = append(keys, key)
	}
	sortKeys(keys)
	for _, key := range keys {
		out.Set(key, hash[key])
	}
	return out
}
