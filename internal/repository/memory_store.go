package repository

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"sync"

	"github.com/keelwise/keel/internal/models"
)

// MemoryStore keeps rows in process memory. Used when DATABASE_URL is empty and in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]models.Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]models.Record)}
}

// Insert appends a copy of record.
func (s *MemoryStore) Insert(_ context.Context, table string, record models.Record) error {
	if err := checkTable(table); err != nil {
		return err
	}

	if len(record) == 0 {
		return ErrEmptyRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables[table] = append(s.tables[table], maps.Clone(record))

	return nil
}

// Upsert replaces the row whose conflictColumn matches, or appends.
func (s *MemoryStore) Upsert(_ context.Context, table, conflictColumn string, record models.Record) error {
	if err := checkTable(table); err != nil {
		return err
	}

	key, ok := record[conflictColumn]
	if !ok {
		return fmt.Errorf("upsert into %s: record is missing conflict column %q", table, conflictColumn)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.tables[table]
	for i, row := range rows {
		if reflect.DeepEqual(row[conflictColumn], key) {
			merged := maps.Clone(row)
			maps.Copy(merged, record)
			rows[i] = merged

			return nil
		}
	}

	s.tables[table] = append(rows, maps.Clone(record))

	return nil
}

// List returns copies of the rows matching every value in where, in insertion order.
func (s *MemoryStore) List(_ context.Context, table string, where models.Record) ([]models.Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Record

	for _, row := range s.tables[table] {
		if matches(row, where) {
			out = append(out, maps.Clone(row))
		}
	}

	return out, nil
}

func matches(row, where models.Record) bool {
	for col, want := range where {
		if !reflect.DeepEqual(row[col], want) {
			return false
		}
	}

	return true
}
