package attendance

import (
	"sort"
	"strings"
	"time"

	"classattend/internal/classroom"
	"classattend/internal/ident"
)

// Totals counts one student's periods of one subject.
type Totals struct {
	Total    int `json:"total"`
	Attended int `json:"attended"`
}

// SubjectTotals is the reduction of all records for one subject.
type SubjectTotals struct {
	SubjectID   string `json:"subjectId"`
	SubjectName string `json:"subjectName"`
	// Orphaned subjects were recorded but are no longer on the class.
	Orphaned bool              `json:"orphaned,omitempty"`
	Periods  int               `json:"periods"`
	Students map[string]Totals `json:"students"`
}

// Aggregation is the per-subject, per-student result of Aggregate. Subjects
// follow the class's subject order; orphaned subjects come last, by id.
type Aggregation struct {
	Subjects []SubjectTotals `json:"subjects"`
}

// Subject finds the totals of one subject.
func (a Aggregation) Subject(id string) (SubjectTotals, bool) {
	for _, s := range a.Subjects {
		if s.SubjectID == id {
			return s, true
		}
	}
	return SubjectTotals{}, false
}

// StudentSubject is one row of a student's view of an Aggregation.
type StudentSubject struct {
	SubjectID   string
	SubjectName string
	Orphaned    bool
	Totals
}

// ForStudent extracts the rows of one roster entry.
func (a Aggregation) ForStudent(roll string) []StudentSubject {
	out := make([]StudentSubject, 0, len(a.Subjects))
	for _, s := range a.Subjects {
		row, ok := s.Students[roll]
		if !ok {
			for entry, t := range s.Students {
				if ident.SameRoll(entry, roll) {
					row = t
					break
				}
			}
		}
		out = append(out, StudentSubject{SubjectID: s.SubjectID, SubjectName: s.SubjectName, Orphaned: s.Orphaned, Totals: row})
	}
	return out
}

// AggregateOptions tunes which periods count.
type AggregateOptions struct {
	// CountUnverified includes periods no teacher has verified yet.
	CountUnverified bool
}

type orphanName struct {
	name string
	date time.Time
}

// Aggregate reduces records into per-subject totals for every roster member.
// Every subject on the class gets a row even when it was never taught. A
// subject that appears only in records is reported under the snapshot name of
// its most recent period. Record order does not affect the result.
func Aggregate(roster []string, subjects []classroom.Subject, records []Record, opts AggregateOptions) Aggregation {
	roster = ident.DedupeRolls(roster)
	keys := make([]string, len(roster))
	for i, r := range roster {
		keys[i] = ident.RollKey(r)
	}

	periods := make(map[string]int)
	attended := make(map[string][]int)
	orphans := make(map[string]orphanName)
	live := make(map[string]bool, len(subjects))
	for _, s := range subjects {
		live[s.ID] = true
	}

	for _, rec := range records {
		for _, p := range rec.Periods {
			if !p.IsVerified && !opts.CountUnverified {
				continue
			}
			sid := strings.TrimSpace(string(p.SubjectID))
			if sid == "" {
				continue
			}
			periods[sid]++
			counts, ok := attended[sid]
			if !ok {
				counts = make([]int, len(roster))
				attended[sid] = counts
			}
			absent := make(map[string]bool, len(p.AbsentRollNumbers))
			for _, a := range p.AbsentRollNumbers {
				absent[ident.RollKey(string(a))] = true
			}
			for i, k := range keys {
				if !absent[k] {
					counts[i]++
				}
			}
			if !live[sid] {
				orphans[sid] = laterName(orphans[sid], p.SubjectName, rec.Date)
			}
		}
	}

	row := func(id, name string, orphaned bool) SubjectTotals {
		st := SubjectTotals{
			SubjectID:   id,
			SubjectName: name,
			Orphaned:    orphaned,
			Periods:     periods[id],
			Students:    make(map[string]Totals, len(roster)),
		}
		counts := attended[id]
		for i, r := range roster {
			t := Totals{Total: periods[id]}
			if counts != nil {
				t.Attended = counts[i]
			}
			st.Students[r] = t
		}
		return st
	}

	out := Aggregation{Subjects: make([]SubjectTotals, 0, len(subjects)+len(orphans))}
	for _, s := range subjects {
		out.Subjects = append(out.Subjects, row(s.ID, s.Name, false))
	}
	ids := make([]string, 0, len(orphans))
	for id := range orphans {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out.Subjects = append(out.Subjects, row(id, orphans[id].name, true))
	}
	return out
}

// laterName keeps the snapshot name of the most recent day. Ties resolve to
// the lexically larger name so the result is independent of record order.
func laterName(cur orphanName, name string, date time.Time) orphanName {
	name = strings.TrimSpace(name)
	if name == "" {
		if cur.name == "" && cur.date.IsZero() {
			return orphanName{date: date}
		}
		return cur
	}
	if cur.name == "" || date.After(cur.date) || (date.Equal(cur.date) && name > cur.name) {
		return orphanName{name: name, date: date}
	}
	return cur
}
