package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"classattend/internal/attendance"
	"classattend/internal/classroom"
	"classattend/internal/ident"
)

// Repository persists reports and modification requests.
type Repository interface {
	CreateReport(ctx context.Context, r Report) error
	GetReport(ctx context.Context, id string) (Report, error)
	// ListReports returns a class's reports, newest first.
	ListReports(ctx context.Context, classID string) ([]Report, error)
	UpdateReport(ctx context.Context, id string, fn func(*Report) error) (Report, error)
	DeleteReport(ctx context.Context, id string) error

	CreateRequest(ctx context.Context, r ModificationRequest) error
	GetRequest(ctx context.Context, id string) (ModificationRequest, error)
	ListRequests(ctx context.Context, classID string) ([]ModificationRequest, error)
	UpdateRequest(ctx context.Context, id string, fn func(*ModificationRequest) error) (ModificationRequest, error)
}

// Classes looks up classes and teacher assignments.
type Classes interface {
	GetClass(ctx context.Context, id string) (classroom.Class, error)
	TeacherAssignments(ctx context.Context, teacherID string) ([]classroom.Assignment, error)
}

// Corrector applies an approved request to the daily record.
type Corrector interface {
	ApplyCorrection(ctx context.Context, classID string, day time.Time, subjectID, roll string) (attendance.Record, error)
}

// Service implements the report and modification request workflows.
type Service struct {
	repo      Repository
	classes   Classes
	corrector Corrector
	now       func() time.Time
}

// NewService creates a service.
func NewService(repo Repository, classes Classes, corrector Corrector) *Service {
	return &Service{repo: repo, classes: classes, corrector: corrector, now: time.Now}
}

// ReportInput is what a student submits.
type ReportInput struct {
	Date        string `json:"date" binding:"required"`
	SubjectID   string `json:"subjectId" binding:"required"`
	Description string `json:"issueDescription" binding:"required"`
}

// Submit files a report for roll.
func (s *Service) Submit(ctx context.Context, classID, roll string, in ReportInput) (Report, error) {
	class, entry, err := s.student(ctx, classID, roll)
	if err != nil {
		return Report{}, err
	}
	day, err := classroom.ParseDay(in.Date)
	if err != nil {
		return Report{}, fmt.Errorf("%w: date %q", ErrInvalid, in.Date)
	}
	sub, ok := class.Subject(in.SubjectID)
	if !ok {
		return Report{}, fmt.Errorf("%w: unknown subject %q", ErrInvalid, in.SubjectID)
	}
	desc, err := text(in.Description, true)
	if err != nil {
		return Report{}, err
	}
	now := s.now().UTC()
	r := Report{
		ID:          uuid.NewString(),
		ClassID:     class.ID,
		StudentRoll: entry,
		Date:        day,
		SubjectID:   sub.ID,
		SubjectName: sub.Name,
		Description: desc,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateReport(ctx, r); err != nil {
		return Report{}, err
	}
	return r, nil
}

// ListForClass returns every report of a class, newest first.
func (s *Service) ListForClass(ctx context.Context, classID string) ([]Report, error) {
	if _, err := s.classes.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	return s.repo.ListReports(ctx, classID)
}

// ListForStudent returns the reports filed by roll.
func (s *Service) ListForStudent(ctx context.Context, classID, roll string) ([]Report, error) {
	all, err := s.repo.ListReports(ctx, classID)
	if err != nil {
		return nil, err
	}
	out := []Report{}
	for _, r := range all {
		if ident.SameRoll(r.StudentRoll, roll) {
			out = append(out, r)
		}
	}
	return out, nil
}

// UpdateStatus lets the class admin answer a report.
func (s *Service) UpdateStatus(ctx context.Context, classID, id, status, response string) (Report, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case StatusPending, StatusResolved, StatusRejected:
	default:
		return Report{}, fmt.Errorf("%w: status %q", ErrInvalid, status)
	}
	resp, err := text(response, false)
	if err != nil {
		return Report{}, err
	}
	return s.repo.UpdateReport(ctx, id, func(r *Report) error {
		if r.ClassID != classID {
			return ErrNotFound
		}
		now := s.now().UTC()
		r.Status = status
		if resp != "" {
			r.AdminResponse = resp
		}
		r.UpdatedAt = now
		if status == StatusPending {
			r.ResolvedAt = nil
		} else {
			r.ResolvedAt = &now
		}
		return nil
	})
}

// Edit changes the description of a pending report owned by roll.
func (s *Service) Edit(ctx context.Context, classID, roll, id, description string) (Report, error) {
	desc, err := text(description, true)
	if err != nil {
		return Report{}, err
	}
	return s.repo.UpdateReport(ctx, id, func(r *Report) error {
		if err := owns(*r, classID, roll); err != nil {
			return err
		}
		if r.Status != StatusPending {
			return ErrBadState
		}
		r.Description = desc
		r.UpdatedAt = s.now().UTC()
		return nil
	})
}

// Delete removes an answered report owned by roll. Pending reports stay
// until the admin has seen them.
func (s *Service) Delete(ctx context.Context, classID, roll, id string) error {
	r, err := s.repo.GetReport(ctx, id)
	if err != nil {
		return err
	}
	if err := owns(r, classID, roll); err != nil {
		return err
	}
	if r.Status == StatusPending {
		return ErrBadState
	}
	return s.repo.DeleteReport(ctx, id)
}

// RequestInput is what a student files to have an absence corrected.
type RequestInput struct {
	SubjectID string `json:"subjectId" binding:"required"`
	Date      string `json:"date" binding:"required"`
	Reason    string `json:"reason"`
}

// FileRequest asks the subject's teacher to mark roll present on a day.
func (s *Service) FileRequest(ctx context.Context, classID, roll string, in RequestInput) (ModificationRequest, error) {
	class, entry, err := s.student(ctx, classID, roll)
	if err != nil {
		return ModificationRequest{}, err
	}
	day, err := classroom.ParseDay(in.Date)
	if err != nil {
		return ModificationRequest{}, fmt.Errorf("%w: date %q", ErrInvalid, in.Date)
	}
	sub, ok := class.Subject(in.SubjectID)
	if !ok {
		return ModificationRequest{}, fmt.Errorf("%w: unknown subject %q", ErrInvalid, in.SubjectID)
	}
	if sub.TeacherID == "" {
		return ModificationRequest{}, fmt.Errorf("%w: no teacher is assigned to %s", ErrInvalid, sub.Name)
	}
	reason, err := text(in.Reason, false)
	if err != nil {
		return ModificationRequest{}, err
	}
	existing, err := s.repo.ListRequests(ctx, class.ID)
	if err != nil {
		return ModificationRequest{}, err
	}
	for _, r := range existing {
		if r.Status == RequestPending && r.SubjectID == sub.ID && r.Date.Equal(day) && ident.SameRoll(r.RollNumber, entry) {
			return ModificationRequest{}, ErrConflict
		}
	}
	req := ModificationRequest{
		ID:         uuid.NewString(),
		ClassID:    class.ID,
		SubjectID:  sub.ID,
		Date:       day,
		RollNumber: entry,
		Reason:     reason,
		Status:     RequestPending,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return ModificationRequest{}, err
	}
	return req, nil
}

// RequestsForStudent lists the requests filed by roll.
func (s *Service) RequestsForStudent(ctx context.Context, classID, roll string) ([]ModificationRequest, error) {
	all, err := s.repo.ListRequests(ctx, classID)
	if err != nil {
		return nil, err
	}
	out := []ModificationRequest{}
	for _, r := range all {
		if ident.SameRoll(r.RollNumber, roll) {
			out = append(out, r)
		}
	}
	return out, nil
}

// PendingForTeacher lists pending requests for subjects assigned to the
// teacher, oldest first.
func (s *Service) PendingForTeacher(ctx context.Context, teacherID string) ([]ModificationRequest, error) {
	assignments, err := s.classes.TeacherAssignments(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	subjects := make(map[string]map[string]bool)
	for _, a := range assignments {
		if subjects[a.ClassID] == nil {
			subjects[a.ClassID] = make(map[string]bool)
		}
		subjects[a.ClassID][a.SubjectID] = true
	}
	out := []ModificationRequest{}
	for classID, subs := range subjects {
		reqs, err := s.repo.ListRequests(ctx, classID)
		if err != nil {
			return nil, err
		}
		for _, r := range reqs {
			if r.Status == RequestPending && subs[r.SubjectID] {
				out = append(out, r)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Decide approves or rejects a pending request. Approval marks the student
// present in every period of the subject on that day; the request stays
// pending if the correction fails.
func (s *Service) Decide(ctx context.Context, teacherID, id, status string) (ModificationRequest, error) {
	var approve bool
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approved":
		approve = true
	case "rejected":
	default:
		return ModificationRequest{}, fmt.Errorf("%w: status %q", ErrInvalid, status)
	}
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return ModificationRequest{}, err
	}
	class, err := s.classes.GetClass(ctx, req.ClassID)
	if err != nil {
		return ModificationRequest{}, err
	}
	if sub, ok := class.Subject(req.SubjectID); !ok || sub.TeacherID == "" || sub.TeacherID != teacherID {
		return ModificationRequest{}, ErrForbidden
	}
	return s.repo.UpdateRequest(ctx, id, func(r *ModificationRequest) error {
		if r.Status != RequestPending {
			return ErrBadState
		}
		if approve {
			if _, err := s.corrector.ApplyCorrection(ctx, r.ClassID, r.Date, r.SubjectID, r.RollNumber); err != nil {
				return fmt.Errorf("apply correction: %w", err)
			}
			r.Status = RequestApproved
		} else {
			r.Status = RequestRejected
		}
		r.DecidedBy = teacherID
		return nil
	})
}

func (s *Service) student(ctx context.Context, classID, roll string) (classroom.Class, string, error) {
	class, err := s.classes.GetClass(ctx, classID)
	if err != nil {
		return classroom.Class{}, "", err
	}
	entry, ok := class.Roll(roll)
	if !ok {
		return classroom.Class{}, "", fmt.Errorf("%w: roll %q is not on the roster", ErrForbidden, roll)
	}
	return class, entry, nil
}

func owns(r Report, classID, roll string) error {
	if r.ClassID != classID {
		return ErrNotFound
	}
	if !ident.SameRoll(r.StudentRoll, roll) {
		return ErrForbidden
	}
	return nil
}

func text(s string, required bool) (string, error) {
	s = strings.TrimSpace(s)
	if required && s == "" {
		return "", fmt.Errorf("%w: text required", ErrInvalid)
	}
	if utf8.RuneCountInString(s) > MaxTextLength {
		return "", fmt.Errorf("%w: at most %d characters", ErrInvalid, MaxTextLength)
	}
	return s, nil
}
