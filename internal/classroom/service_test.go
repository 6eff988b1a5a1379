package classroom

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classattend/internal/ident"
)

func setup(t *testing.T) (*Service, Class) {
	t.Helper()
	svc := NewService(NewMemoryRepository(), 75)
	c, err := svc.CreateClass(context.Background(), NewClass{
		Name:        " CSE B ",
		AdminPin:    "4321",
		RollNumbers: []string{"1", " 2", "02", "3"},
		Subjects: []SubjectInput{
			{ID: "S1", Name: "Math", Code: "MA101"},
			{Name: "Physics", Code: "PH101"},
		},
		Timetable: Timetable{
			"monday":  {{SubjectID: "S1"}, {SubjectID: "ph101"}, {SubjectID: "S1"}},
			"Tuesday": {{SubjectID: "Physics"}},
		},
	})
	require.NoError(t, err)
	return svc, c
}

func TestCreateClassNormalizes(t *testing.T) {
	_, c := setup(t)

	assert.Equal(t, "CSE B", c.Name)
	assert.Equal(t, []string{"1", "2", "3"}, c.RollNumbers)
	assert.Equal(t, 75.0, c.MinAttendance)
	require.Len(t, c.Subjects, 2)
	physics := c.Subjects[1].ID
	assert.NotEmpty(t, physics)

	require.Contains(t, c.Timetable, "Monday")
	assert.Equal(t, []Slot{{SubjectID: "S1"}, {SubjectID: ident.Flex(physics)}, {SubjectID: "S1"}}, c.Timetable["Monday"])
	assert.Equal(t, []Slot{{SubjectID: ident.Flex(physics)}}, c.Timetable["Tuesday"])
}

func TestCreateClassRejects(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	base := NewClass{Name: "X", AdminPin: "1", RollNumbers: []string{"1"}, Subjects: []SubjectInput{{Name: "Math"}}}

	tests := []struct {
		name    string
		mutate  func(*NewClass)
		wantErr error
	}{
		{"duplicate name any case", func(n *NewClass) { n.Name = "cse b" }, ErrConflict},
		{"empty roster", func(n *NewClass) { n.RollNumbers = []string{" ", ""} }, ErrInvalid},
		{"no subjects", func(n *NewClass) { n.Subjects = nil }, ErrInvalid},
		{"missing pin", func(n *NewClass) { n.AdminPin = " " }, ErrInvalid},
		{"threshold above 100", func(n *NewClass) { n.MinAttendance = 120 }, ErrInvalid},
		{"unknown weekday", func(n *NewClass) { n.Timetable = Timetable{"Funday": nil} }, ErrInvalid},
		{"unknown slot subject", func(n *NewClass) { n.Timetable = Timetable{"Monday": {{SubjectID: "Chem"}}} }, ErrInvalid},
		{"duplicate subject id", func(n *NewClass) { n.Subjects = []SubjectInput{{ID: "A", Name: "x"}, {ID: "A", Name: "y"}} }, ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := svc.CreateClass(ctx, in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDeleteSubject(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()
	physics := c.Subjects[1].ID

	require.NoError(t, svc.DeleteSubject(ctx, c.ID, physics))
	got, err := svc.GetClass(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, got.Subjects, 1)
	assert.Equal(t, []Slot{{SubjectID: "S1"}, {SubjectID: "S1"}}, got.Timetable["Monday"])
	assert.Empty(t, got.Timetable["Tuesday"])

	assert.ErrorIs(t, svc.DeleteSubject(ctx, c.ID, "S1"), ErrLastSubject)
	assert.ErrorIs(t, svc.DeleteSubject(ctx, c.ID, "nope"), ErrNotFound)
}

func TestUpdateSubjectKeepsID(t *testing.T) {
	svc, c := setup(t)
	sub, err := svc.UpdateSubject(context.Background(), c.ID, "S1", SubjectInput{ID: "ignored", Name: "Mathematics"})
	require.NoError(t, err)
	assert.Equal(t, "S1", sub.ID)
	assert.Equal(t, "Mathematics", sub.Name)
}

func TestRosterAndThreshold(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()

	got, err := svc.UpdateRoster(ctx, c.ID, []string{"10", "11", "010"})
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "11"}, got.RollNumbers)

	_, err = svc.UpdateRoster(ctx, c.ID, nil)
	assert.ErrorIs(t, err, ErrInvalid)

	got, err = svc.SetThreshold(ctx, c.ID, 60)
	require.NoError(t, err)
	assert.Equal(t, 60.0, got.MinAttendance)

	_, err = svc.SetThreshold(ctx, c.ID, 0)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.SetThreshold(ctx, "missing", 60)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTeachers(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()

	teacher, err := svc.CreateTeacher(ctx, "John Doe", " Teacher@Test.com ", "123456")
	require.NoError(t, err)
	assert.Equal(t, "teacher@test.com", teacher.Email)

	_, err = svc.CreateTeacher(ctx, "Other", "teacher@test.com", "9999")
	assert.ErrorIs(t, err, ErrConflict)
	_, err = svc.CreateTeacher(ctx, "Short", "s@test.com", "12")
	assert.ErrorIs(t, err, ErrInvalid)

	sub, err := svc.AssignTeacher(ctx, c.ID, "S1", teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, teacher.ID, sub.TeacherID)
	assert.Equal(t, "John Doe", sub.TeacherName)

	assignments, err := svc.TeacherAssignments(ctx, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, []Assignment{{ClassID: c.ID, ClassName: "CSE B", SubjectID: "S1", SubjectName: "Math"}}, assignments)

	logged, err := svc.AuthenticateTeacher(ctx, "TEACHER@test.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, teacher.ID, logged.ID)
	_, err = svc.AuthenticateTeacher(ctx, "teacher@test.com", "000000")
	assert.ErrorIs(t, err, ErrUnauthorized)

	sub, err = svc.UnassignTeacher(ctx, c.ID, "S1")
	require.NoError(t, err)
	assert.Empty(t, sub.TeacherID)
}

func TestAuthenticateAdminAndStudent(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()

	got, err := svc.AuthenticateAdmin(ctx, "  cse b ", "4321")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	_, err = svc.AuthenticateAdmin(ctx, "cse b", "1111")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.AuthenticateAdmin(ctx, "nope", "4321")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, roll, err := svc.AuthenticateStudent(ctx, "CSE B", "003")
	require.NoError(t, err)
	assert.Equal(t, "3", roll)
	_, _, err = svc.AuthenticateStudent(ctx, "CSE B", "9")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSpecialDates(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()

	later, err := svc.AddSpecialDate(ctx, c.ID, "2026-01-26", "", "Republic Day")
	require.NoError(t, err)
	assert.Equal(t, DateHoliday, later.Type)
	_, err = svc.AddSpecialDate(ctx, c.ID, "2026-01-12", "exam", "Midterm")
	require.NoError(t, err)

	_, err = svc.AddSpecialDate(ctx, c.ID, "2026-01-26T10:00:00Z", "event", "Dup")
	assert.ErrorIs(t, err, ErrConflict)
	_, err = svc.AddSpecialDate(ctx, c.ID, "26/01/2026", "event", "Bad")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.AddSpecialDate(ctx, c.ID, "2026-02-01", "party", "Bad")
	assert.ErrorIs(t, err, ErrInvalid)

	dates, err := svc.ListSpecialDates(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, "Midterm", dates[0].Title)

	holidays, err := svc.Holidays(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, map[time.Time]bool{time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC): true}, holidays)

	require.NoError(t, svc.DeleteSpecialDate(ctx, c.ID, later.ID))
	assert.ErrorIs(t, svc.DeleteSpecialDate(ctx, c.ID, later.ID), ErrNotFound)
}

func TestTimetablePeriodsOn(t *testing.T) {
	_, c := setup(t)
	monday := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	wednesday := monday.AddDate(0, 0, 2)

	assert.Equal(t, 2, c.Timetable.PeriodsOn(monday, "S1"))
	assert.Equal(t, 0, c.Timetable.PeriodsOn(wednesday, "S1"))

	raw := Timetable{"monday": {{SubjectID: "7"}}}
	assert.Equal(t, 1, raw.PeriodsOn(monday, " 7 "))
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2026-01-20")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDay("2026-01-20T23:30:00+05:30")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-20", FormatDay(d))

	d, err = ParseDay("2026-01-12T23:30:00-05:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDay("2026-01-13T02:00:00+05:30")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-12", FormatDay(d))

	_, err = ParseDay("yesterday")
	assert.ErrorIs(t, err, ErrInvalid)
}
