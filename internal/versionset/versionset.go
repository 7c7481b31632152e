// Package versionset models a set of version delimiters as an ordered JSON
// object mapping version identifiers to arbitrary JSON values.
package versionset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/iancoleman/orderedmap"
)

// ErrNotObject is returned by Parse when the document is valid JSON but not an object.
var ErrNotObject = errors.New("version set must be a JSON object")

// Value is an opaque JSON value. Two values are equal when they decode to the
// same structure, regardless of object key order or formatting.
type Value struct {
	raw json.RawMessage
}

// NewValue wraps raw JSON. The input is not validated.
func NewValue(raw []byte) Value {
	return Value{raw: append(json.RawMessage(nil), raw...)}
}

// Raw returns the JSON text of the value as it was read.
func (v Value) Raw() json.RawMessage {
	return v.raw
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v.raw) == 0 {
		return []byte("null"), nil
	}
	return v.raw, nil
}

// Equal reports whether v and other describe the same JSON structure.
func (v Value) Equal(other Value) bool {
	a, errA := v.decode()
	b, errB := other.decode()
	if errA != nil || errB != nil {
		return bytes.Equal(v.raw, other.raw)
	}
	return cmp.Equal(a, b)
}

func (v Value) decode() (interface{}, error) {
	var out interface{}
	if len(v.raw) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(v.raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Set is an insertion-ordered mapping from version identifier to Value.
type Set struct {
	m *orderedmap.OrderedMap
}

// New returns an empty Set.
func New() *Set {
	m := orderedmap.New()
	m.SetEscapeHTML(false)
	return &Set{m: m}
}

// Parse decodes a JSON object into a Set, keeping the document's key order.
// When a key appears more than once the last value wins.
func Parse(data []byte) (*Set, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	var probe interface{}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, ok := probe.(map[string]interface{}); !ok {
		return nil, ErrNotObject
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	order := orderedmap.New()
	if err := json.Unmarshal(trimmed, order); err != nil {
		return nil, fmt.Errorf("failed to read key order: %w", err)
	}

	s := New()
	for _, key := range order.Keys() {
		s.Set(key, Value{raw: values[key]})
	}
	return s, nil
}

// Len returns the number of versions in the set.
func (s *Set) Len() int {
	return len(s.m.Keys())
}

// Keys returns the version identifiers in insertion order.
func (s *Set) Keys() []string {
	keys := s.m.Keys()
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// Get returns the value stored for key.
func (s *Set) Get(key string) (Value, bool) {
	raw, ok := s.m.Get(key)
	if !ok {
		return Value{}, false
	}
	v, ok := raw.(Value)
	return v, ok
}

// Set stores value under key. An existing key keeps its position.
func (s *Set) Set(key string, value Value) {
	s.m.Set(key, value)
}

// Merge copies every entry of other into s. Entries of other overwrite
// entries of s with the same key.
func (s *Set) Merge(other *Set) {
	if other == nil {
		return
	}
	for _, key := range other.m.Keys() {
		v, _ := other.Get(key)
		s.Set(key, v)
	}
}

// Diff returns the entries of s that are missing from seen or whose values
// differ structurally from seen's, in the key order of s.
func (s *Set) Diff(seen *Set) *Set {
	out := New()
	for _, key := range s.m.Keys() {
		v, _ := s.Get(key)
		if seen != nil {
			if prev, ok := seen.Get(key); ok && prev.Equal(v) {
				continue
			}
		}
		out.Set(key, v)
	}
	return out
}

// MarshalJSON implements json.Marshaler, writing keys in insertion order.
func (s *Set) MarshalJSON() ([]byte, error) {
	return s.m.MarshalJSON()
}

// MarshalIndent renders the set as JSON indented with two spaces, without
// HTML escaping and without a trailing newline.
func (s *Set) MarshalIndent() ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
