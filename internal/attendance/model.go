package attendance

import (
	"errors"
	"sort"
	"strings"
	"time"

	"classattend/internal/ident"
)

var (
	ErrNotFound  = errors.New("attendance record not found")
	ErrInvalid   = errors.New("invalid attendance input")
	ErrForbidden = errors.New("not allowed for this subject")
)

// Period is one taught slot of a day. A roster member not listed in
// AbsentRollNumbers was present.
type Period struct {
	PeriodNum         int          `json:"periodNum"`
	SubjectID         ident.Flex   `json:"subjectId"`
	SubjectName       string       `json:"subjectName"`
	IsVerified        bool         `json:"isVerified"`
	VerifiedBy        string       `json:"verifiedBy,omitempty"`
	AbsentRollNumbers []ident.Flex `json:"absentRollNumbers"`
}

// Record holds every period of one class on one calendar day. There is at
// most one record per (ClassID, Date).
type Record struct {
	ClassID   string    `json:"classId"`
	Date      time.Time `json:"date"`
	Periods   []Period  `json:"periods"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsAbsent reports whether roll is listed absent for the period.
func (p Period) IsAbsent(roll string) bool {
	key := ident.RollKey(roll)
	for _, a := range p.AbsentRollNumbers {
		if string(a) == key {
			return true
		}
	}
	return false
}

// canonical rewrites identifiers to their comparison form. It is applied to
// every record read from storage so the rest of the package compares plain
// strings.
func (p Period) canonical() Period {
	p.SubjectID = ident.Flex(strings.TrimSpace(string(p.SubjectID)))
	seen := make(map[string]bool, len(p.AbsentRollNumbers))
	absent := make([]ident.Flex, 0, len(p.AbsentRollNumbers))
	for _, a := range p.AbsentRollNumbers {
		k := ident.RollKey(string(a))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		absent = append(absent, ident.Flex(k))
	}
	p.AbsentRollNumbers = absent
	return p
}

func (r Record) canonical() Record {
	periods := make([]Period, len(r.Periods))
	for i, p := range r.Periods {
		periods[i] = p.canonical()
	}
	r.Periods = periods
	return r
}

func (r *Record) period(num int) (int, bool) {
	for i, p := range r.Periods {
		if p.PeriodNum == num {
			return i, true
		}
	}
	return -1, false
}

func sortPeriods(ps []Period) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].PeriodNum < ps[j].PeriodNum })
}

// Actor is the caller of a write.
type Actor struct {
	Role string
	ID   string
}
