package classroom

import (
	"fmt"
	"strings"
	"time"

	"classattend/internal/ident"
)

// Slot is one scheduled period in a weekday's timetable.
type Slot struct {
	SubjectID ident.Flex `json:"subjectId"`
}

// Timetable maps a weekday name ("Monday") to its ordered slots.
type Timetable map[string][]Slot

// ParseWeekday accepts full weekday names in any case.
func ParseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, true
		}
	}
	return 0, false
}

// SlotsOn returns the slots scheduled on the given weekday.
func (t Timetable) SlotsOn(day time.Weekday) []Slot {
	if slots, ok := t[day.String()]; ok {
		return slots
	}
	// tolerate stored keys that were never canonicalized
	for k, slots := range t {
		if d, ok := ParseWeekday(k); ok && d == day {
			return slots
		}
	}
	return nil
}

// PeriodsOn counts the periods of subjectID scheduled on the weekday of date.
func (t Timetable) PeriodsOn(date time.Time, subjectID string) int {
	subjectID = strings.TrimSpace(subjectID)
	n := 0
	for _, s := range t.SlotsOn(date.Weekday()) {
		if strings.TrimSpace(string(s.SubjectID)) == subjectID {
			n++
		}
	}
	return n
}

// Without returns a copy of t with every slot of subjectID removed.
func (t Timetable) Without(subjectID string) Timetable {
	out := make(Timetable, len(t))
	for day, slots := range t {
		kept := make([]Slot, 0, len(slots))
		for _, s := range slots {
			if string(s.SubjectID) != subjectID {
				kept = append(kept, s)
			}
		}
		out[day] = kept
	}
	return out
}

// canonicalTimetable rewrites weekday keys to their canonical names and
// resolves every slot to a subject id. A slot may name its subject by id, by
// code or by name (case-insensitive), in that order of precedence.
func canonicalTimetable(in Timetable, subjects []Subject) (Timetable, error) {
	out := make(Timetable, len(in))
	for key, slots := range in {
		day, ok := ParseWeekday(key)
		if !ok {
			return nil, fmt.Errorf("%w: unknown weekday %q", ErrInvalid, key)
		}
		name := day.String()
		for _, s := range slots {
			ref := strings.TrimSpace(string(s.SubjectID))
			id, ok := resolveSubject(ref, subjects)
			if !ok {
				return nil, fmt.Errorf("%w: timetable references unknown subject %q", ErrInvalid, ref)
			}
			out[name] = append(out[name], Slot{SubjectID: ident.Flex(id)})
		}
		if _, ok := out[name]; !ok {
			out[name] = []Slot{}
		}
	}
	return out, nil
}

func resolveSubject(ref string, subjects []Subject) (string, bool) {
	if ref == "" {
		return "", false
	}
	for _, s := range subjects {
		if s.ID == ref {
			return s.ID, true
		}
	}
	for _, s := range subjects {
		if s.Code != "" && strings.EqualFold(s.Code, ref) {
			return s.ID, true
		}
	}
	for _, s := range subjects {
		if strings.EqualFold(s.Name, ref) {
			return s.ID, true
		}
	}
	return "", false
}
