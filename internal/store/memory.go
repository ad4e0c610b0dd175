// Package store keeps audit records addressable by audit id.
package store

import (
	"errors"
	"sync"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
)

// ErrNotFound is returned by Get when no record exists for the requested id.
var ErrNotFound = errors.New("audit not found")

// Store saves and retrieves audit records by id.
type Store interface {
	// Save stores rec under rec.AuditID, replacing any earlier record with
	// the same id.
	Save(rec *models.AuditRecord) error

	// Get returns the record saved under id, or ErrNotFound.
	Get(id string) (*models.AuditRecord, error)
}

// MemoryStore is a Store backed by a map. Records live for the lifetime of
// the process. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.AuditRecord
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*models.AuditRecord)}
}

// Save implements Store. A record without an id is rejected.
func (s *MemoryStore) Save(rec *models.AuditRecord) error {
	if rec == nil || rec.AuditID == "" {
		return errors.New("audit record has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.AuditID] = rec
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(id string) (*models.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
