package attendance

import (
	"context"
	"sync"
	"time"

	"classattend/internal/classroom"
	"classattend/internal/ident"
)

// MemoryStore keeps daily records in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[recordKey]Record
	now     func() time.Time
}

type recordKey struct {
	classID string
	day     time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[recordKey]Record), now: time.Now}
}

func (m *MemoryStore) GetRecord(_ context.Context, classID string, day time.Time) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[recordKey{classID, classroom.Day(day)}]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *MemoryStore) ListRecords(_ context.Context, classID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for k, rec := range m.records {
		if k.classID == classID {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateRecord(_ context.Context, classID string, day time.Time, fn func(*Record, bool) error) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey{classID, classroom.Day(day)}
	rec, exists := m.records[key]
	if exists {
		rec = cloneRecord(rec)
	} else {
		rec = Record{ClassID: classID, Date: key.day, Periods: []Period{}}
	}
	if err := fn(&rec, exists); err != nil {
		return Record{}, err
	}
	rec.ClassID, rec.Date = classID, key.day
	rec.UpdatedAt = m.now().UTC()
	m.records[key] = cloneRecord(rec)
	return rec, nil
}

func cloneRecord(r Record) Record {
	periods := make([]Period, len(r.Periods))
	for i, p := range r.Periods {
		p.AbsentRollNumbers = append([]ident.Flex{}, p.AbsentRollNumbers...)
		periods[i] = p
	}
	r.Periods = periods
	return r
}
