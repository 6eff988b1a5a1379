package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"classattend/internal/classroom"
	"classattend/internal/ident"
	"classattend/internal/metrics"
)

const teacherRole = "teacher"

// maxSimulatedDates bounds one simulation request.
const maxSimulatedDates = 366

// Classes is the class lookup the service reads rosters, subjects and
// timetables from.
type Classes interface {
	GetClass(ctx context.Context, id string) (classroom.Class, error)
	Holidays(ctx context.Context, classID string) (map[time.Time]bool, error)
}

// Store persists daily records.
type Store interface {
	// GetRecord returns ErrNotFound when no record exists for the day.
	GetRecord(ctx context.Context, classID string, day time.Time) (Record, error)
	ListRecords(ctx context.Context, classID string) ([]Record, error)
	// UpdateRecord runs fn against the record of (classID, day) while holding
	// an exclusive lock on it. exists is false when the day had no record; it
	// is created only if fn returns nil.
	UpdateRecord(ctx context.Context, classID string, day time.Time, fn func(rec *Record, exists bool) error) (Record, error)
}

// Options configures report computation.
type Options struct {
	SafetyBuffer    float64
	CountUnverified bool
}

// Service marks attendance and computes reports from daily records.
type Service struct {
	classes Classes
	store   Store
	opts    Options
}

// NewService creates a service.
func NewService(classes Classes, store Store, opts Options) *Service {
	if opts.SafetyBuffer < 0 {
		opts.SafetyBuffer = DefaultSafetyBuffer
	}
	return &Service{classes: classes, store: store, opts: opts}
}

// PeriodInput is one period as submitted by a marker.
type PeriodInput struct {
	PeriodNum         int          `json:"periodNum" binding:"min=1"`
	SubjectID         ident.Flex   `json:"subjectId" binding:"required"`
	SubjectName       string       `json:"subjectName"`
	AbsentRollNumbers []ident.Flex `json:"absentRollNumbers"`
}

// MarkAttendance replaces the periods of one class day. Periods that were
// verified keep their verification when re-marked with the same number and
// subject. A teacher marking their own subject verifies it.
func (s *Service) MarkAttendance(ctx context.Context, classID, date string, in []PeriodInput, actor Actor) (Record, error) {
	day, err := parseDay(date)
	if err != nil {
		return Record{}, err
	}
	class, err := s.classes.GetClass(ctx, classID)
	if err != nil {
		return Record{}, err
	}
	if actor.Role == teacherRole && !teaches(class, actor.ID) {
		return Record{}, ErrForbidden
	}
	periods, err := buildPeriods(class, in)
	if err != nil {
		return Record{}, err
	}
	teacher := actor.Role == teacherRole
	if teacher {
		for _, p := range periods {
			if !assigned(class, string(p.SubjectID), actor.ID) {
				return Record{}, fmt.Errorf("%w: %s is taught by another teacher", ErrForbidden, p.SubjectName)
			}
		}
	}

	rec, err := s.store.UpdateRecord(ctx, class.ID, day, func(rec *Record, _ bool) error {
		prev := rec.canonical().Periods
		if teacher {
			// a teacher only replaces the periods of their own subjects
			merged, err := keepOthers(class, prev, periods, actor.ID)
			if err != nil {
				return err
			}
			periods = merged
		}
		for i := range periods {
			p := &periods[i]
			for _, old := range prev {
				if old.IsVerified && old.PeriodNum == p.PeriodNum && old.SubjectID == p.SubjectID {
					p.IsVerified, p.VerifiedBy = true, old.VerifiedBy
				}
			}
			if !p.IsVerified && teacher && assigned(class, string(p.SubjectID), actor.ID) {
				p.IsVerified, p.VerifiedBy = true, actor.ID
			}
		}
		rec.Periods = periods
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	metrics.AttendanceWrites.WithLabelValues("mark").Inc()
	return rec.canonical(), nil
}

// VerifyPeriod marks one period verified by the teacher of its subject.
// Verification is never reverted.
func (s *Service) VerifyPeriod(ctx context.Context, classID, date string, periodNum int, teacherID string) (Record, error) {
	day, err := parseDay(date)
	if err != nil {
		return Record{}, err
	}
	class, err := s.classes.GetClass(ctx, classID)
	if err != nil {
		return Record{}, err
	}
	rec, err := s.store.UpdateRecord(ctx, class.ID, day, func(rec *Record, exists bool) error {
		if !exists {
			return ErrNotFound
		}
		i, ok := rec.period(periodNum)
		if !ok {
			return fmt.Errorf("%w: period %d", ErrNotFound, periodNum)
		}
		p := &rec.Periods[i]
		sub, ok := class.Subject(string(p.SubjectID))
		if !ok || sub.TeacherID == "" || sub.TeacherID != teacherID {
			return ErrForbidden
		}
		if !p.IsVerified {
			p.IsVerified, p.VerifiedBy = true, teacherID
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	metrics.AttendanceWrites.WithLabelValues("verify").Inc()
	return rec.canonical(), nil
}

// GetRecord returns the record of one day, or nil when nothing was marked.
func (s *Service) GetRecord(ctx context.Context, classID, date string) (*Record, error) {
	day, err := parseDay(date)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.GetRecord(ctx, classID, day)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec = rec.canonical()
	return &rec, nil
}

// ListRecords returns a class's records in date order. With a subjectID only
// days teaching that subject are returned, holding only its periods.
func (s *Service) ListRecords(ctx context.Context, classID, subjectID string) ([]Record, error) {
	if _, err := s.classes.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	recs, err := s.records(ctx, classID)
	if err != nil {
		return nil, err
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return recs, nil
	}
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		var kept []Period
		for _, p := range r.Periods {
			if string(p.SubjectID) == subjectID {
				kept = append(kept, p)
			}
		}
		if len(kept) > 0 {
			r.Periods = kept
			out = append(out, r)
		}
	}
	return out, nil
}

// SubjectReport is one subject of a student report.
type SubjectReport struct {
	SubjectID       string `json:"subjectId"`
	SubjectName     string `json:"subjectName"`
	Orphaned        bool   `json:"orphaned,omitempty"`
	TotalClasses    int    `json:"totalClasses"`
	AttendedClasses int    `json:"attendedClasses"`
	Projection
}

// StudentReport is a student's attendance across all subjects of a class.
type StudentReport struct {
	ClassID     string          `json:"classId"`
	ClassName   string          `json:"className"`
	StudentRoll string          `json:"studentRoll"`
	Threshold   float64         `json:"threshold"`
	Subjects    []SubjectReport `json:"subjects"`
	Overall     SubjectReport   `json:"overall"`
}

// StudentReport aggregates and projects every subject for one student.
func (s *Service) StudentReport(ctx context.Context, classID, roll string) (StudentReport, error) {
	start := time.Now()
	defer func() { metrics.ReportDuration.WithLabelValues("student").Observe(time.Since(start).Seconds()) }()

	class, rows, err := s.studentRows(ctx, classID, roll)
	if err != nil {
		return StudentReport{}, err
	}
	return s.buildReport(class, displayRoll(class, roll), rows), nil
}

// ClassReports computes the report of every roster member from a single read
// of the class's records.
func (s *Service) ClassReports(ctx context.Context, classID string) ([]StudentReport, error) {
	start := time.Now()
	defer func() { metrics.ReportDuration.WithLabelValues("class").Observe(time.Since(start).Seconds()) }()

	class, err := s.classes.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	recs, err := s.records(ctx, class.ID)
	if err != nil {
		return nil, err
	}
	roster := ident.DedupeRolls(class.RollNumbers)
	agg := Aggregate(roster, class.Subjects, recs, AggregateOptions{CountUnverified: s.opts.CountUnverified})
	out := make([]StudentReport, 0, len(roster))
	for _, roll := range roster {
		out = append(out, s.buildReport(class, roll, agg.ForStudent(roll)))
	}
	return out, nil
}

func (s *Service) buildReport(class classroom.Class, roll string, rows []StudentSubject) StudentReport {
	policy := Policy{Threshold: class.MinAttendance, Buffer: s.opts.SafetyBuffer}
	out := StudentReport{
		ClassID:     class.ID,
		ClassName:   class.Name,
		StudentRoll: roll,
		Threshold:   class.MinAttendance,
		Subjects:    make([]SubjectReport, 0, len(rows)),
	}
	var total, attended int
	for _, r := range rows {
		out.Subjects = append(out.Subjects, SubjectReport{
			SubjectID:       r.SubjectID,
			SubjectName:     r.SubjectName,
			Orphaned:        r.Orphaned,
			TotalClasses:    r.Total,
			AttendedClasses: r.Attended,
			Projection:      Project(r.Total, r.Attended, policy),
		})
		total += r.Total
		attended += r.Attended
	}
	out.Overall = SubjectReport{
		SubjectName:     "Overall",
		TotalClasses:    total,
		AttendedClasses: attended,
		Projection:      Project(total, attended, policy),
	}
	return out
}

// Simulation is the result of SimulateBunk.
type Simulation struct {
	ClassID     string   `json:"classId"`
	StudentRoll string   `json:"studentRoll"`
	Dates       []string `json:"dates"`
	// Holidays lists requested dates skipped because no class is held.
	Holidays []string `json:"holidays,omitempty"`
	Impacts  []Impact `json:"impacts"`
}

// SimulateBunk projects the effect of skipping the given dates.
func (s *Service) SimulateBunk(ctx context.Context, classID, roll string, dates []string) (Simulation, error) {
	start := time.Now()
	defer func() { metrics.ReportDuration.WithLabelValues("simulate").Observe(time.Since(start).Seconds()) }()

	if len(dates) == 0 {
		return Simulation{}, fmt.Errorf("%w: no dates", ErrInvalid)
	}
	if len(dates) > maxSimulatedDates {
		return Simulation{}, fmt.Errorf("%w: at most %d dates", ErrInvalid, maxSimulatedDates)
	}
	days := make([]time.Time, 0, len(dates))
	seen := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		day, err := parseDay(d)
		if err != nil {
			return Simulation{}, err
		}
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	class, rows, err := s.studentRows(ctx, classID, roll)
	if err != nil {
		return Simulation{}, err
	}
	holidays, err := s.classes.Holidays(ctx, class.ID)
	if err != nil {
		return Simulation{}, err
	}

	out := Simulation{ClassID: class.ID, StudentRoll: displayRoll(class, roll), Dates: []string{}}
	kept := days[:0]
	for _, d := range days {
		if holidays[d] {
			out.Holidays = append(out.Holidays, classroom.FormatDay(d))
			continue
		}
		kept = append(kept, d)
		out.Dates = append(out.Dates, classroom.FormatDay(d))
	}
	out.Impacts = Simulate(kept, class.Timetable, rows)
	if out.Impacts == nil {
		out.Impacts = []Impact{}
	}
	return out, nil
}

// StudentStat is one roster row of SubjectStats.
type StudentStat struct {
	RollNumber string  `json:"rollNumber"`
	Total      int     `json:"total"`
	Attended   int     `json:"attended"`
	Percentage float64 `json:"percentage"`
}

// SubjectStats is the roster-wide view of one subject.
type SubjectStats struct {
	SubjectID   string        `json:"subjectId"`
	SubjectName string        `json:"subjectName"`
	Periods     int           `json:"periods"`
	Students    []StudentStat `json:"students"`
}

// SubjectStats aggregates one subject over the whole roster.
func (s *Service) SubjectStats(ctx context.Context, classID, subjectID string) (SubjectStats, error) {
	start := time.Now()
	defer func() { metrics.ReportDuration.WithLabelValues("subject").Observe(time.Since(start).Seconds()) }()

	class, err := s.classes.GetClass(ctx, classID)
	if err != nil {
		return SubjectStats{}, err
	}
	recs, err := s.records(ctx, class.ID)
	if err != nil {
		return SubjectStats{}, err
	}
	agg := Aggregate(class.RollNumbers, class.Subjects, recs, AggregateOptions{CountUnverified: s.opts.CountUnverified})
	st, ok := agg.Subject(strings.TrimSpace(subjectID))
	if !ok {
		return SubjectStats{}, fmt.Errorf("%w: subject %q", ErrNotFound, subjectID)
	}
	out := SubjectStats{SubjectID: st.SubjectID, SubjectName: st.SubjectName, Periods: st.Periods}
	for _, roll := range ident.DedupeRolls(class.RollNumbers) {
		t := st.Students[roll]
		out.Students = append(out.Students, StudentStat{
			RollNumber: roll,
			Total:      t.Total,
			Attended:   t.Attended,
			Percentage: Percentage(t.Attended, t.Total),
		})
	}
	return out, nil
}

// ApplyCorrection marks roll present in every period of subjectID on day.
func (s *Service) ApplyCorrection(ctx context.Context, classID string, day time.Time, subjectID, roll string) (Record, error) {
	key := ident.RollKey(roll)
	subjectID = strings.TrimSpace(subjectID)
	rec, err := s.store.UpdateRecord(ctx, classID, classroom.Day(day), func(rec *Record, exists bool) error {
		if !exists {
			return ErrNotFound
		}
		*rec = rec.canonical()
		found := false
		for i := range rec.Periods {
			p := &rec.Periods[i]
			if string(p.SubjectID) != subjectID {
				continue
			}
			found = true
			kept := p.AbsentRollNumbers[:0]
			for _, a := range p.AbsentRollNumbers {
				if string(a) != key {
					kept = append(kept, a)
				}
			}
			p.AbsentRollNumbers = kept
		}
		if !found {
			return fmt.Errorf("%w: no %s period on %s", ErrNotFound, subjectID, classroom.FormatDay(day))
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	metrics.AttendanceWrites.WithLabelValues("correction").Inc()
	return rec.canonical(), nil
}

func (s *Service) records(ctx context.Context, classID string) ([]Record, error) {
	recs, err := s.store.ListRecords(ctx, classID)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		recs[i] = recs[i].canonical()
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Date.Before(recs[j].Date) })
	return recs, nil
}

func (s *Service) studentRows(ctx context.Context, classID, roll string) (classroom.Class, []StudentSubject, error) {
	if ident.RollKey(roll) == "" {
		return classroom.Class{}, nil, fmt.Errorf("%w: roll number required", ErrInvalid)
	}
	class, err := s.classes.GetClass(ctx, classID)
	if err != nil {
		return classroom.Class{}, nil, err
	}
	recs, err := s.records(ctx, class.ID)
	if err != nil {
		return classroom.Class{}, nil, err
	}
	who := displayRoll(class, roll)
	agg := Aggregate([]string{who}, class.Subjects, recs, AggregateOptions{CountUnverified: s.opts.CountUnverified})
	return class, agg.ForStudent(who), nil
}

func buildPeriods(class classroom.Class, in []PeriodInput) ([]Period, error) {
	out := make([]Period, 0, len(in))
	nums := make(map[int]bool, len(in))
	for _, pi := range in {
		if pi.PeriodNum < 1 {
			return nil, fmt.Errorf("%w: period number must be positive", ErrInvalid)
		}
		if nums[pi.PeriodNum] {
			return nil, fmt.Errorf("%w: period %d listed twice", ErrInvalid, pi.PeriodNum)
		}
		nums[pi.PeriodNum] = true
		sub, ok := class.Subject(string(pi.SubjectID))
		if !ok {
			return nil, fmt.Errorf("%w: unknown subject %q", ErrInvalid, pi.SubjectID)
		}
		p := Period{
			PeriodNum:         pi.PeriodNum,
			SubjectID:         ident.Flex(sub.ID),
			SubjectName:       sub.Name,
			AbsentRollNumbers: []ident.Flex{},
		}
		seen := make(map[string]bool, len(pi.AbsentRollNumbers))
		for _, a := range pi.AbsentRollNumbers {
			key := ident.RollKey(string(a))
			if key == "" || seen[key] {
				continue
			}
			if !class.HasRoll(key) {
				return nil, fmt.Errorf("%w: roll %q is not on the roster", ErrInvalid, a)
			}
			seen[key] = true
			p.AbsentRollNumbers = append(p.AbsentRollNumbers, ident.Flex(key))
		}
		out = append(out, p)
	}
	sortPeriods(out)
	return out, nil
}

func teaches(class classroom.Class, teacherID string) bool {
	if teacherID == "" {
		return false
	}
	for _, s := range class.Subjects {
		if s.TeacherID == teacherID {
			return true
		}
	}
	return false
}

// assigned reports whether teacherID teaches subjectID in class.
func assigned(class classroom.Class, subjectID, teacherID string) bool {
	sub, ok := class.Subject(subjectID)
	return ok && teacherID != "" && sub.TeacherID == teacherID
}

// keepOthers merges a teacher's submitted periods with the stored periods of
// subjects they are not assigned to. A submitted period may not take the
// number of one of those.
func keepOthers(class classroom.Class, prev, mine []Period, teacherID string) ([]Period, error) {
	out := make([]Period, 0, len(prev)+len(mine))
	taken := make(map[int]bool, len(prev))
	for _, p := range prev {
		if assigned(class, string(p.SubjectID), teacherID) {
			continue
		}
		taken[p.PeriodNum] = true
		out = append(out, p)
	}
	for _, p := range mine {
		if taken[p.PeriodNum] {
			return nil, fmt.Errorf("%w: period %d belongs to another subject", ErrForbidden, p.PeriodNum)
		}
		out = append(out, p)
	}
	sortPeriods(out)
	return out, nil
}

func displayRoll(class classroom.Class, roll string) string {
	if entry, ok := class.Roll(roll); ok {
		return entry
	}
	return ident.NormalizeRoll(roll)
}

func parseDay(s string) (time.Time, error) {
	day, err := classroom.ParseDay(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalid, s)
	}
	return day, nil
}
