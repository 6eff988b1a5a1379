package reports

import (
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalid   = errors.New("invalid input")
	ErrForbidden = errors.New("forbidden")
	ErrBadState  = errors.New("not allowed in current status")
	ErrConflict  = errors.New("already exists")
)

// Report statuses.
const (
	StatusPending  = "pending"
	StatusResolved = "resolved"
	StatusRejected = "rejected"
)

// Request statuses.
const (
	RequestPending  = "Pending"
	RequestApproved = "Approved"
	RequestRejected = "Rejected"
)

// MaxTextLength bounds descriptions, responses and reasons.
const MaxTextLength = 500

// Report is a student's complaint about a recorded day, answered by the
// class admin.
type Report struct {
	ID            string     `json:"id"`
	ClassID       string     `json:"classId"`
	StudentRoll   string     `json:"studentRoll"`
	Date          time.Time  `json:"date"`
	SubjectID     string     `json:"subjectId"`
	SubjectName   string     `json:"subjectName"`
	Description   string     `json:"issueDescription"`
	Status        string     `json:"status"`
	AdminResponse string     `json:"adminResponse,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
}

// ModificationRequest asks the subject's teacher to mark a student present
// on a day. Approval corrects the daily record.
type ModificationRequest struct {
	ID         string    `json:"id"`
	ClassID    string    `json:"classId"`
	SubjectID  string    `json:"subjectId"`
	Date       time.Time `json:"date"`
	RollNumber string    `json:"rollNumber"`
	Reason     string    `json:"reason,omitempty"`
	Status     string    `json:"status"`
	DecidedBy  string    `json:"decidedBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
