package graphql

import (
	"bytes"
	"encoding/json"
)

// OrderedMap is a JSON object that keeps its keys in selection order.
type OrderedMap struct {
	keys   []string
	values map[string]any
}

func newOrderedMap(n int) *OrderedMap {
	return &OrderedMap{keys: make([]string, 0, n), values: make(map[string]any, n)}
}

// Set stores v under key. A key set twice keeps its first position.
func (m *OrderedMap) Set(key string, v any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value under key, or nil.
func (m *OrderedMap) Get(key string) any {
	if m == nil {
		return nil
	}
	return m.values[key]
}

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []string {
	if m == nil {
		return nil
	}
	return m.keys
}

func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
