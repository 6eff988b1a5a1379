// Package reminder finds students below the attendance threshold and
// delivers them a notice through the job queue.
package reminder

import (
	"context"
	"fmt"
	"strings"

	"classattend/internal/attendance"
	"classattend/internal/classroom"
	"classattend/internal/logger"
	"classattend/internal/metrics"
	"classattend/internal/queue"
)

// MessageType tags reminder messages on the queue.
const MessageType = "attendance.reminder"

// Notice is the payload of one reminder.
type Notice struct {
	ClassID    string          `json:"classId"`
	ClassName  string          `json:"className"`
	RollNumber string          `json:"rollNumber"`
	Title      string          `json:"title"`
	Body       string          `json:"body"`
	URL        string          `json:"url"`
	Subjects   []DangerSubject `json:"subjects"`
}

// DangerSubject is one subject below the threshold.
type DangerSubject struct {
	SubjectID  string  `json:"subjectId"`
	Name       string  `json:"subjectName"`
	Percentage float64 `json:"percentage"`
	MustAttend int     `json:"mustAttend"`
}

// Classes lists every class.
type Classes interface {
	ListClasses(ctx context.Context) ([]classroom.Class, error)
}

// Reports computes the report of every student of a class.
type Reports interface {
	ClassReports(ctx context.Context, classID string) ([]attendance.StudentReport, error)
}

// Job publishes one notice per student with a subject in danger.
type Job struct {
	classes Classes
	reports Reports
	queue   queue.Queue
	log     *logger.Logger
}

// NewJob creates a job.
func NewJob(classes Classes, reports Reports, q queue.Queue, log *logger.Logger) *Job {
	if log == nil {
		log = logger.Default()
	}
	return &Job{classes: classes, reports: reports, queue: q, log: log}
}

// Run scans every class and returns the number of notices published. A class
// that fails is logged and skipped.
func (j *Job) Run(ctx context.Context) (int, error) {
	classes, err := j.classes.ListClasses(ctx)
	if err != nil {
		return 0, fmt.Errorf("list classes: %w", err)
	}
	sent := 0
	for _, c := range classes {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		n, err := j.runClass(ctx, c)
		sent += n
		if err != nil {
			metrics.Reminders.WithLabelValues("publish", "error").Inc()
			j.log.Errorf("reminder: class %s (%s): %v", c.Name, c.ID, err)
		}
	}
	j.log.Infof("reminder: published %d notices for %d classes", sent, len(classes))
	return sent, nil
}

func (j *Job) runClass(ctx context.Context, c classroom.Class) (int, error) {
	reps, err := j.reports.ClassReports(ctx, c.ID)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, rep := range reps {
		notice, ok := BuildNotice(rep)
		if !ok {
			continue
		}
		msg, err := queue.NewMessage(MessageType, notice)
		if err != nil {
			return sent, err
		}
		if err := j.queue.Publish(ctx, msg); err != nil {
			return sent, fmt.Errorf("publish: %w", err)
		}
		metrics.Reminders.WithLabelValues("publish", "ok").Inc()
		sent++
	}
	return sent, nil
}

// BuildNotice turns a report into a notice. ok is false when no subject is
// in danger.
func BuildNotice(rep attendance.StudentReport) (Notice, bool) {
	var danger []DangerSubject
	var parts []string
	for _, s := range rep.Subjects {
		if s.Status != attendance.StatusDanger {
			continue
		}
		danger = append(danger, DangerSubject{
			SubjectID:  s.SubjectID,
			Name:       s.SubjectName,
			Percentage: s.Percentage,
			MustAttend: s.MustAttend,
		})
		if s.Unrecoverable {
			parts = append(parts, fmt.Sprintf("%s (%g%%)", s.SubjectName, s.Percentage))
		} else {
			parts = append(parts, fmt.Sprintf("%s (%g%%, attend %d more)", s.SubjectName, s.Percentage, s.MustAttend))
		}
	}
	if len(danger) == 0 {
		return Notice{}, false
	}
	title := "Attendance below " + fmt.Sprintf("%g%%", rep.Threshold)
	return Notice{
		ClassID:    rep.ClassID,
		ClassName:  rep.ClassName,
		RollNumber: rep.StudentRoll,
		Title:      title,
		Body:       strings.Join(parts, "; "),
		URL:        fmt.Sprintf("/student/%s/%s/report", rep.ClassID, rep.StudentRoll),
		Subjects:   danger,
	}, true
}
