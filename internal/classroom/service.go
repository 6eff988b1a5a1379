package classroom

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"classattend/internal/ident"
)

// Repository persists classes, teachers and special dates.
type Repository interface {
	CreateClass(ctx context.Context, c Class) error
	GetClass(ctx context.Context, id string) (Class, error)
	FindClassByName(ctx context.Context, name string) (Class, error)
	ListClasses(ctx context.Context) ([]Class, error)
	// UpdateClass applies fn to the stored class atomically and saves the result.
	UpdateClass(ctx context.Context, id string, fn func(*Class) error) (Class, error)

	CreateTeacher(ctx context.Context, t Teacher) error
	GetTeacher(ctx context.Context, id string) (Teacher, error)
	FindTeacherByEmail(ctx context.Context, email string) (Teacher, error)

	AddSpecialDate(ctx context.Context, d SpecialDate) error
	ListSpecialDates(ctx context.Context, classID string) ([]SpecialDate, error)
	DeleteSpecialDate(ctx context.Context, classID, id string) error
}

// SubjectInput is the admin-editable part of a subject.
type SubjectInput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// NewClass describes a class to create.
type NewClass struct {
	Name          string
	AdminPin      string
	RollNumbers   []string
	Subjects      []SubjectInput
	Timetable     Timetable
	MinAttendance float64
}

// Service implements class administration.
type Service struct {
	repo             Repository
	defaultThreshold float64
	now              func() time.Time
}

// NewService creates a service. defaultThreshold applies to classes created
// without an explicit minimum attendance.
func NewService(repo Repository, defaultThreshold float64) *Service {
	if defaultThreshold <= 0 || defaultThreshold > 100 {
		defaultThreshold = 75
	}
	return &Service{repo: repo, defaultThreshold: defaultThreshold, now: time.Now}
}

// CreateClass validates and stores a new class.
func (s *Service) CreateClass(ctx context.Context, in NewClass) (Class, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || strings.TrimSpace(in.AdminPin) == "" {
		return Class{}, fmt.Errorf("%w: class name and admin pin required", ErrInvalid)
	}
	rolls := ident.DedupeRolls(in.RollNumbers)
	if len(rolls) == 0 {
		return Class{}, fmt.Errorf("%w: at least one roll number is required", ErrInvalid)
	}
	if len(in.Subjects) == 0 {
		return Class{}, fmt.Errorf("%w: at least one subject is required", ErrInvalid)
	}
	subjects := make([]Subject, 0, len(in.Subjects))
	for _, si := range in.Subjects {
		sub, err := newSubject(si, subjects)
		if err != nil {
			return Class{}, err
		}
		subjects = append(subjects, sub)
	}
	threshold := in.MinAttendance
	if threshold == 0 {
		threshold = s.defaultThreshold
	}
	if err := validThreshold(threshold); err != nil {
		return Class{}, err
	}
	tt, err := canonicalTimetable(in.Timetable, subjects)
	if err != nil {
		return Class{}, err
	}

	c := Class{
		ID:            uuid.NewString(),
		Name:          name,
		AdminPin:      strings.TrimSpace(in.AdminPin),
		RollNumbers:   rolls,
		Subjects:      subjects,
		Timetable:     tt,
		MinAttendance: threshold,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.CreateClass(ctx, c); err != nil {
		return Class{}, err
	}
	return c, nil
}

func (s *Service) GetClass(ctx context.Context, id string) (Class, error) {
	return s.repo.GetClass(ctx, strings.TrimSpace(id))
}

// FindClassByName looks a class up by name, ignoring case and surrounding space.
func (s *Service) FindClassByName(ctx context.Context, name string) (Class, error) {
	return s.repo.FindClassByName(ctx, strings.TrimSpace(name))
}

func (s *Service) ListClasses(ctx context.Context) ([]Class, error) {
	return s.repo.ListClasses(ctx)
}

// UpdateRoster replaces the roster.
func (s *Service) UpdateRoster(ctx context.Context, classID string, rolls []string) (Class, error) {
	rolls = ident.DedupeRolls(rolls)
	if len(rolls) == 0 {
		return Class{}, fmt.Errorf("%w: at least one roll number is required", ErrInvalid)
	}
	return s.repo.UpdateClass(ctx, classID, func(c *Class) error {
		c.RollNumbers = rolls
		return nil
	})
}

// SetThreshold changes the minimum attendance percentage of a class.
func (s *Service) SetThreshold(ctx context.Context, classID string, pct float64) (Class, error) {
	if err := validThreshold(pct); err != nil {
		return Class{}, err
	}
	return s.repo.UpdateClass(ctx, classID, func(c *Class) error {
		c.MinAttendance = pct
		return nil
	})
}

// AddSubject appends a subject to a class.
func (s *Service) AddSubject(ctx context.Context, classID string, in SubjectInput) (Subject, error) {
	var added Subject
	_, err := s.repo.UpdateClass(ctx, classID, func(c *Class) error {
		sub, err := newSubject(in, c.Subjects)
		if err != nil {
			return err
		}
		c.Subjects = append(c.Subjects, sub)
		added = sub
		return nil
	})
	return added, err
}

// UpdateSubject edits the name and code of a subject. Its id never changes.
func (s *Service) UpdateSubject(ctx context.Context, classID, subjectID string, in SubjectInput) (Subject, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Subject{}, fmt.Errorf("%w: subject name required", ErrInvalid)
	}
	var updated Subject
	_, err := s.repo.UpdateClass(ctx, classID, func(c *Class) error {
		i := subjectIndex(c.Subjects, subjectID)
		if i < 0 {
			return fmt.Errorf("subject %s: %w", subjectID, ErrNotFound)
		}
		c.Subjects[i].Name = name
		c.Subjects[i].Code = strings.TrimSpace(in.Code)
		updated = c.Subjects[i]
		return nil
	})
	return updated, err
}

// DeleteSubject removes a subject and its timetable slots. Recorded
// attendance keeps its snapshot of the subject.
func (s *Service) DeleteSubject(ctx context.Context, classID, subjectID string) error {
	_, err := s.repo.UpdateClass(ctx, classID, func(c *Class) error {
		i := subjectIndex(c.Subjects, subjectID)
		if i < 0 {
			return fmt.Errorf("subject %s: %w", subjectID, ErrNotFound)
		}
		if len(c.Subjects) == 1 {
			return ErrLastSubject
		}
		c.Subjects = append(c.Subjects[:i:i], c.Subjects[i+1:]...)
		c.Timetable = c.Timetable.Without(subjectID)
		return nil
	})
	return err
}

// SetTimetable replaces the weekly timetable.
func (s *Service) SetTimetable(ctx context.Context, classID string, tt Timetable) (Class, error) {
	return s.repo.UpdateClass(ctx, classID, func(c *Class) error {
		canon, err := canonicalTimetable(tt, c.Subjects)
		if err != nil {
			return err
		}
		c.Timetable = canon
		return nil
	})
}

// CreateTeacher registers a teacher. Codes are 4 to 6 characters.
func (s *Service) CreateTeacher(ctx context.Context, name, email, code string) (Teacher, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return Teacher{}, fmt.Errorf("%w: teacher name and a valid email required", ErrInvalid)
	}
	if len(code) < 4 || len(code) > 6 {
		return Teacher{}, fmt.Errorf("%w: teacher code must be 4 to 6 characters", ErrInvalid)
	}
	t := Teacher{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Code:      code,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateTeacher(ctx, t); err != nil {
		return Teacher{}, err
	}
	return t, nil
}

func (s *Service) GetTeacher(ctx context.Context, id string) (Teacher, error) {
	return s.repo.GetTeacher(ctx, strings.TrimSpace(id))
}

// AssignTeacher makes teacherID responsible for a subject.
func (s *Service) AssignTeacher(ctx context.Context, classID, subjectID, teacherID string) (Subject, error) {
	t, err := s.repo.GetTeacher(ctx, teacherID)
	if err != nil {
		return Subject{}, err
	}
	return s.setTeacher(ctx, classID, subjectID, t.ID, t.Name)
}

// UnassignTeacher clears the teacher of a subject.
func (s *Service) UnassignTeacher(ctx context.Context, classID, subjectID string) (Subject, error) {
	return s.setTeacher(ctx, classID, subjectID, "", "")
}

func (s *Service) setTeacher(ctx context.Context, classID, subjectID, teacherID, teacherName string) (Subject, error) {
	var updated Subject
	_, err := s.repo.UpdateClass(ctx, classID, func(c *Class) error {
		i := subjectIndex(c.Subjects, subjectID)
		if i < 0 {
			return fmt.Errorf("subject %s: %w", subjectID, ErrNotFound)
		}
		c.Subjects[i].TeacherID = teacherID
		c.Subjects[i].TeacherName = teacherName
		updated = c.Subjects[i]
		return nil
	})
	return updated, err
}

// TeacherAssignments lists every subject the teacher is assigned to.
func (s *Service) TeacherAssignments(ctx context.Context, teacherID string) ([]Assignment, error) {
	classes, err := s.repo.ListClasses(ctx)
	if err != nil {
		return nil, err
	}
	var out []Assignment
	for _, c := range classes {
		for _, sub := range c.Subjects {
			if sub.TeacherID != "" && sub.TeacherID == teacherID {
				out = append(out, Assignment{ClassID: c.ID, ClassName: c.Name, SubjectID: sub.ID, SubjectName: sub.Name})
			}
		}
	}
	return out, nil
}

// AuthenticateAdmin checks a class name and admin pin.
func (s *Service) AuthenticateAdmin(ctx context.Context, className, pin string) (Class, error) {
	c, err := s.FindClassByName(ctx, className)
	if err != nil {
		return Class{}, ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(c.AdminPin), []byte(strings.TrimSpace(pin))) != 1 {
		return Class{}, ErrUnauthorized
	}
	return c, nil
}

// AuthenticateStudent resolves a roll number on a class roster. The returned
// roll is the roster entry as entered.
func (s *Service) AuthenticateStudent(ctx context.Context, className, roll string) (Class, string, error) {
	c, err := s.FindClassByName(ctx, className)
	if err != nil {
		return Class{}, "", ErrUnauthorized
	}
	entry, ok := c.Roll(roll)
	if !ok {
		return Class{}, "", ErrUnauthorized
	}
	return c, entry, nil
}

// AuthenticateTeacher checks a teacher email and teacher code.
func (s *Service) AuthenticateTeacher(ctx context.Context, email, code string) (Teacher, error) {
	t, err := s.repo.FindTeacherByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return Teacher{}, ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(t.Code), []byte(strings.TrimSpace(code))) != 1 {
		return Teacher{}, ErrUnauthorized
	}
	return t, nil
}

// AddSpecialDate marks a day on the class calendar. One entry per day.
func (s *Service) AddSpecialDate(ctx context.Context, classID, date, kind, title string) (SpecialDate, error) {
	if _, err := s.repo.GetClass(ctx, classID); err != nil {
		return SpecialDate{}, err
	}
	day, err := ParseDay(date)
	if err != nil {
		return SpecialDate{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalid)
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	switch kind {
	case DateHoliday, DateExam, DateEvent:
	case "":
		kind = DateHoliday
	default:
		return SpecialDate{}, fmt.Errorf("%w: unknown date type %q", ErrInvalid, kind)
	}
	d := SpecialDate{
		ID:      uuid.NewString(),
		ClassID: classID,
		Date:    day,
		Type:    kind,
		Title:   strings.TrimSpace(title),
	}
	if err := s.repo.AddSpecialDate(ctx, d); err != nil {
		return SpecialDate{}, err
	}
	return d, nil
}

// ListSpecialDates returns the class calendar sorted by date.
func (s *Service) ListSpecialDates(ctx context.Context, classID string) ([]SpecialDate, error) {
	dates, err := s.repo.ListSpecialDates(ctx, classID)
	if err != nil {
		return nil, err
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Date.Before(dates[j].Date) })
	return dates, nil
}

func (s *Service) DeleteSpecialDate(ctx context.Context, classID, id string) error {
	return s.repo.DeleteSpecialDate(ctx, classID, id)
}

// Holidays returns the set of holiday days of a class.
func (s *Service) Holidays(ctx context.Context, classID string) (map[time.Time]bool, error) {
	dates, err := s.repo.ListSpecialDates(ctx, classID)
	if err != nil {
		return nil, err
	}
	out := make(map[time.Time]bool)
	for _, d := range dates {
		if d.Type == DateHoliday {
			out[Day(d.Date)] = true
		}
	}
	return out, nil
}

func newSubject(in SubjectInput, existing []Subject) (Subject, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Subject{}, fmt.Errorf("%w: subject name required", ErrInvalid)
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	if subjectIndex(existing, id) >= 0 {
		return Subject{}, fmt.Errorf("subject %s: %w", id, ErrConflict)
	}
	return Subject{ID: id, Name: name, Code: strings.TrimSpace(in.Code)}, nil
}

func subjectIndex(subjects []Subject, id string) int {
	id = strings.TrimSpace(id)
	for i, s := range subjects {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func validThreshold(pct float64) error {
	if pct <= 0 || pct > 100 {
		return fmt.Errorf("%w: minimum attendance must be above 0 and at most 100", ErrInvalid)
	}
	return nil
}
