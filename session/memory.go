package session

import (
	"context"
	"slices"
	"sync"

	"github.com/tbxark/tripvoice/types"
)

// MemoryStore keeps records in process memory. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*types.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*types.Record)}
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*types.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, id string, rec *types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = rec.Clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

var _ Store = (*MemoryStore)(nil)
