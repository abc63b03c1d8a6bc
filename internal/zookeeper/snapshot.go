package zookeeper

import (
	"bytes"
	"encoding/json"
)

// Entry is one path of the namespace and its value. A nil Value means the
// node holds no data.
type Entry struct {
	Path  string
	Value []byte
}

// Snapshot is an ordered path→value capture of the namespace. Entries keep
// the order in which the dumper discovered them.
type Snapshot struct {
	entries []Entry
	index   map[string]int
}

func newSnapshot() *Snapshot {
	return &Snapshot{index: make(map[string]int)}
}

func (s *Snapshot) put(path string, value []byte) {
	if i, ok := s.index[path]; ok {
		s.entries[i].Value = value
		return
	}
	s.index[path] = len(s.entries)
	s.entries = append(s.entries, Entry{Path: path, Value: value})
}

// Len returns the number of recorded paths.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Paths returns the recorded paths in discovery order.
func (s *Snapshot) Paths() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Path
	}
	return out
}

// Get returns the value recorded for path and whether path was recorded.
func (s *Snapshot) Get(path string) ([]byte, bool) {
	i, ok := s.index[path]
	if !ok {
		return nil, false
	}
	return s.entries[i].Value, true
}

// MarshalJSON writes a flat object in discovery order. Values are strings;
// an absent value is null.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Path)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if e.Value == nil {
			buf.WriteString("null")
			continue
		}
		v, err := json.Marshal(string(e.Value))
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
