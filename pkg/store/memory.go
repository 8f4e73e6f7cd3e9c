package store

import "context"

// MemoryStore keeps values in process. Used for tests and the memory driver.
type MemoryStore struct {
	*base
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{base: newBase()}
}

func (s *MemoryStore) Get(_ context.Context, keys ...string) (map[string]any, error) {
	return s.get(keys)
}

func (s *MemoryStore) Set(ctx context.Context, values map[string]any) error {
	return s.set(ctx, values, nil)
}

func (s *MemoryStore) Close() error {
	s.close()
	return nil
}
