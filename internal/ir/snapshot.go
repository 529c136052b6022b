package ir

import (
	"bytes"
	"fmt"
)

// Entry is one field name and its resolved value.
type Entry struct {
	Name  string
	Value IRValue
}

// Snapshot is an ordered view of resolved field values.
// Order is the evaluation order of the graph that produced it; it is not
// sorted. Use Object() for keyed access or hashing.
type Snapshot []Entry

// Get returns the value for name, or IRNull when the snapshot has no entry.
func (s Snapshot) Get(name string) IRValue {
	for _, e := range s {
		if e.Name == name {
			return OrNull(e.Value)
		}
	}
	return Null
}

// Has reports whether the snapshot contains name.
func (s Snapshot) Has(name string) bool {
	for _, e := range s {
		if e.Name == name {
			return true
		}
	}
	return false
}

// Names returns field names in snapshot order.
func (s Snapshot) Names() []string {
	names := make([]string, len(s))
	for i, e := range s {
		names[i] = e.Name
	}
	return names
}

// Object returns the snapshot as an unordered mapping.
func (s Snapshot) Object() IRObject {
	obj := make(IRObject, len(s))
	for _, e := range s {
		obj[e.Name] = OrNull(e.Value)
	}
	return obj
}

// Filter returns the entries whose names are in keep, preserving order.
func (s Snapshot) Filter(keep func(name string) bool) Snapshot {
	out := make(Snapshot, 0, len(s))
	for _, e := range s {
		if keep(e.Name) {
			out = append(out, e)
		}
	}
	return out
}

// MarshalJSON encodes the snapshot as a JSON object in snapshot order.
// Values use canonical encoding; only the top-level key order differs.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeCanonicalString(&buf, e.Name)
		buf.WriteByte(':')
		if err := writeCanonical(&buf, e.Value); err != nil {
			return nil, fmt.Errorf("snapshot field %q: %w", e.Name, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
