package reports

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps reports and requests in process memory.
type MemoryRepository struct {
	mu       sync.Mutex
	reports  map[string]Report
	requests map[string]ModificationRequest
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		reports:  make(map[string]Report),
		requests: make(map[string]ModificationRequest),
	}
}

func (m *MemoryRepository) CreateReport(_ context.Context, r Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[r.ID]; ok {
		return ErrConflict
	}
	m.reports[r.ID] = r
	return nil
}

func (m *MemoryRepository) GetReport(_ context.Context, id string) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return Report{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryRepository) ListReports(_ context.Context, classID string) ([]Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Report{}
	for _, r := range m.reports {
		if r.ClassID == classID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) UpdateReport(_ context.Context, id string, fn func(*Report) error) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return Report{}, ErrNotFound
	}
	if err := fn(&r); err != nil {
		return Report{}, err
	}
	m.reports[id] = r
	return r, nil
}

func (m *MemoryRepository) DeleteReport(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[id]; !ok {
		return ErrNotFound
	}
	delete(m.reports, id)
	return nil
}

func (m *MemoryRepository) CreateRequest(_ context.Context, r ModificationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[r.ID]; ok {
		return ErrConflict
	}
	m.requests[r.ID] = r
	return nil
}

func (m *MemoryRepository) GetRequest(_ context.Context, id string) (ModificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return ModificationRequest{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryRepository) ListRequests(_ context.Context, classID string) ([]ModificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []ModificationRequest{}
	for _, r := range m.requests {
		if r.ClassID == classID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// UpdateRequest holds the lock while fn runs, so concurrent decisions on the
// same request serialize.
func (m *MemoryRepository) UpdateRequest(_ context.Context, id string, fn func(*ModificationRequest) error) (ModificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return ModificationRequest{}, ErrNotFound
	}
	if err := fn(&r); err != nil {
		return ModificationRequest{}, err
	}
	m.requests[id] = r
	return r, nil
}
