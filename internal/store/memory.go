package store

import (
	"context"
	"sync"

	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// MemoryStore is a process-local Store for tests and single-instance runs.
type MemoryStore struct {
	table string
	clock clockwork.Clock

	mu   sync.RWMutex
	rows map[string]domain.Observation
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(table string, clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		table: table,
		clock: clock,
		rows:  make(map[string]domain.Observation),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, city string, temperature float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[city] = domain.Observation{City: city, Temperature: temperature, ObservedAt: s.clock.Now().UTC()}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, city string, _ Consistency) (domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obs, ok := s.rows[city]
	if !ok {
		return domain.Observation{}, ErrNotFound
	}
	return obs, nil
}

func (s *MemoryStore) Delete(_ context.Context, city string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, city)
	return nil
}

func (s *MemoryStore) Describe(_ context.Context) (TableInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TableInfo{
		Driver:    "memory",
		Table:     s.table,
		Status:    statusActive,
		KeySchema: keySchema,
		ItemCount: int64(len(s.rows)),
	}, nil
}

func (s *MemoryStore) Close() error { return nil }
