package classroom

import (
	"context"
	"strings"
	"sync"
)

// MemoryRepository keeps everything in process memory. Used for dev and tests.
type MemoryRepository struct {
	mu       sync.Mutex
	classes  map[string]Class
	teachers map[string]Teacher
	dates    map[string]SpecialDate
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		classes:  make(map[string]Class),
		teachers: make(map[string]Teacher),
		dates:    make(map[string]SpecialDate),
	}
}

func (r *MemoryRepository) CreateClass(_ context.Context, c Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.classes {
		if strings.EqualFold(existing.Name, c.Name) {
			return ErrConflict
		}
	}
	r.classes[c.ID] = cloneClass(c)
	return nil
}

func (r *MemoryRepository) GetClass(_ context.Context, id string) (Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.classes[id]
	if !ok {
		return Class{}, ErrNotFound
	}
	return cloneClass(c), nil
}

func (r *MemoryRepository) FindClassByName(_ context.Context, name string) (Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.classes {
		if strings.EqualFold(c.Name, name) {
			return cloneClass(c), nil
		}
	}
	return Class{}, ErrNotFound
}

func (r *MemoryRepository) ListClasses(_ context.Context) ([]Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Class, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, cloneClass(c))
	}
	sortClasses(out)
	return out, nil
}

func (r *MemoryRepository) UpdateClass(_ context.Context, id string, fn func(*Class) error) (Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.classes[id]
	if !ok {
		return Class{}, ErrNotFound
	}
	c = cloneClass(c)
	if err := fn(&c); err != nil {
		return Class{}, err
	}
	r.classes[id] = cloneClass(c)
	return c, nil
}

func (r *MemoryRepository) CreateTeacher(_ context.Context, t Teacher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.teachers {
		if existing.Email == t.Email || existing.Code == t.Code {
			return ErrConflict
		}
	}
	r.teachers[t.ID] = t
	return nil
}

func (r *MemoryRepository) GetTeacher(_ context.Context, id string) (Teacher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teachers[id]
	if !ok {
		return Teacher{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepository) FindTeacherByEmail(_ context.Context, email string) (Teacher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.teachers {
		if t.Email == email {
			return t, nil
		}
	}
	return Teacher{}, ErrNotFound
}

func (r *MemoryRepository) AddSpecialDate(_ context.Context, d SpecialDate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.dates {
		if existing.ClassID == d.ClassID && existing.Date.Equal(d.Date) {
			return ErrConflict
		}
	}
	r.dates[d.ID] = d
	return nil
}

func (r *MemoryRepository) ListSpecialDates(_ context.Context, classID string) ([]SpecialDate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SpecialDate
	for _, d := range r.dates {
		if d.ClassID == classID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *MemoryRepository) DeleteSpecialDate(_ context.Context, classID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dates[id]
	if !ok || d.ClassID != classID {
		return ErrNotFound
	}
	delete(r.dates, id)
	return nil
}

func cloneClass(c Class) Class {
	c.RollNumbers = append([]string(nil), c.RollNumbers...)
	c.Subjects = append([]Subject(nil), c.Subjects...)
	if c.Timetable != nil {
		tt := make(Timetable, len(c.Timetable))
		for day, slots := range c.Timetable {
			tt[day] = append([]Slot(nil), slots...)
		}
		c.Timetable = tt
	}
	return c
}
