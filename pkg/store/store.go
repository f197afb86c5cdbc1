// Package store persists election records. A commit writes all of its records or none.
//
// Every election has two namespaces: public records form the audit trail, private records
// hold trustee secrets and are never published.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned by Get when no record has the key.
var ErrNotFound = errors.New("store: record not found")

// Record is one value to persist under Key.
type Record struct {
	Key     string
	Value   []byte
	Private bool
}

// Memory is a Store kept in memory, for tests and dry runs.
type Memory struct {
	mu      sync.RWMutex
	records map[string]map[key][]byte
}

type key struct {
	name    string
	private bool
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]map[key][]byte)}
}

// Commit writes the records of the election atomically.
func (m *Memory) Commit(ctx context.Context, election string, records ...Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(election, records); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.records[election]
	if !ok {
		bucket = make(map[key][]byte)
		m.records[election] = bucket
	}
	for _, r := range records {
		bucket[key{r.Key, r.Private}] = append([]byte(nil), r.Value...)
	}
	return nil
}

// Get returns a copy of the record.
func (m *Memory) Get(ctx context.Context, election, name string, private bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.records[election][key{name, private}]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Elections lists the elections with at least one record.
func (m *Memory) Elections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.records))
	for id := range m.records {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func validate(election string, records []Record) error {
	if election == "" {
		return errors.New("store: empty election id")
	}
	for _, r := range records {
		if r.Key == "" {
			return errors.New("store: empty record key")
		}
	}
	return nil
}
