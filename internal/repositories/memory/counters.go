package memory

import "context"

type CounterRepository struct {
	store *Store
}

func (r *CounterRepository) Next(_ context.Context, name string) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name]++
	return s.counters[name], nil
}

func (r *CounterRepository) EnsureAtLeast(_ context.Context, name string, floor int64) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counters[name] < floor {
		s.counters[name] = floor
	}
	return nil
}
