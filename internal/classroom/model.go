package classroom

import (
	"errors"
	"strings"
	"time"

	"classattend/internal/ident"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalid      = errors.New("invalid input")
	ErrConflict     = errors.New("already exists")
	ErrLastSubject  = errors.New("a class must keep at least one subject")
	ErrUnauthorized = errors.New("invalid credentials")
)

// Class is a classroom with its roster, subjects and weekly timetable.
type Class struct {
	ID            string    `json:"id"`
	Name          string    `json:"className"`
	AdminPin      string    `json:"-"`
	RollNumbers   []string  `json:"rollNumbers"`
	Subjects      []Subject `json:"subjects"`
	Timetable     Timetable `json:"timetable"`
	MinAttendance float64   `json:"minAttendance"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Subject is owned by a class. TeacherName is a snapshot taken at assignment.
type Subject struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code,omitempty"`
	TeacherID   string `json:"teacherId,omitempty"`
	TeacherName string `json:"teacherName,omitempty"`
}

// Teacher can be assigned to subjects across classes.
type Teacher struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Code      string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Assignment is one subject of one class taught by a teacher.
type Assignment struct {
	ClassID     string `json:"classId"`
	ClassName   string `json:"className"`
	SubjectID   string `json:"subjectId"`
	SubjectName string `json:"subjectName"`
}

// Special date types.
const (
	DateHoliday = "holiday"
	DateExam    = "exam"
	DateEvent   = "event"
)

// SpecialDate marks a calendar day of a class. Holidays hold no classes.
type SpecialDate struct {
	ID      string    `json:"id"`
	ClassID string    `json:"classId"`
	Date    time.Time `json:"date"`
	Type    string    `json:"type"`
	Title   string    `json:"title"`
}

// Subject returns the subject with the given id.
func (c Class) Subject(id string) (Subject, bool) {
	id = strings.TrimSpace(id)
	for _, s := range c.Subjects {
		if s.ID == id {
			return s, true
		}
	}
	return Subject{}, false
}

// Roll returns the roster entry matching roll, as it was entered.
func (c Class) Roll(roll string) (string, bool) {
	for _, r := range c.RollNumbers {
		if ident.SameRoll(r, roll) {
			return r, true
		}
	}
	return "", false
}

// HasRoll reports whether roll is enrolled.
func (c Class) HasRoll(roll string) bool {
	_, ok := c.Roll(roll)
	return ok
}

const dayLayout = "2006-01-02"

// ParseDay parses YYYY-MM-DD, or an RFC 3339 timestamp taken at its UTC
// calendar date, into midnight UTC.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dayLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, ErrInvalid
	}
	return Day(t.UTC()), nil
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDay renders a day as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.Format(dayLayout)
}
