package runs

import (
	"context"
	"sort"
	"sync"
)

// NewMemoryRepository keeps runs for the lifetime of the process only.
func NewMemoryRepository() Repository {
	return &memoryRepo{records: make(map[string]*Record)}
}

type memoryRepo struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func (m *memoryRepo) Save(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *r
	m.records[r.Id] = &cp
	return nil
}

func (m *memoryRepo) GetById(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok {
		return nil, nil
	}

	cp := *r
	return &cp, nil
}

func (m *memoryRepo) GetRecent(_ context.Context, limit uint) ([]*Record, error) {
	m.mu.RLock()
	ret := make([]*Record, 0, len(m.records))
	for _, r := range m.records {
		cp := *r
		ret = append(ret, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].StartTime.Equal(ret[j].StartTime) {
			return ret[i].Id > ret[j].Id
		}
		return ret[i].StartTime.After(ret[j].StartTime)
	})

	if limit > 0 && uint(len(ret)) > limit {
		ret = ret[:limit]
	}

	return ret, nil
}
