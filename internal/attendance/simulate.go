package attendance

import (
	"time"

	"classattend/internal/classroom"
)

// Impact is the effect of skipping a set of dates on one subject.
type Impact struct {
	SubjectID         string  `json:"subjectId"`
	SubjectName       string  `json:"subjectName"`
	ClassesMissed     int     `json:"classesMissed"`
	CurrentTotal      int     `json:"currentTotal"`
	CurrentAttended   int     `json:"currentAttended"`
	AfterTotal        int     `json:"afterTotal"`
	AfterAttended     int     `json:"afterAttended"`
	CurrentPercentage float64 `json:"currentPercentage"`
	AfterPercentage   float64 `json:"afterPercentage"`
	Drop              float64 `json:"drop"`
}

// Simulate projects skipping every date in dates. A date contributes one
// missed period per timetable slot of the subject on that weekday. Subjects
// that were never taught are left out.
func Simulate(dates []time.Time, tt classroom.Timetable, current []StudentSubject) []Impact {
	var out []Impact
	for _, s := range current {
		if s.Total == 0 {
			continue
		}
		missed := 0
		for _, d := range dates {
			missed += tt.PeriodsOn(d, s.SubjectID)
		}
		before := Percentage(s.Attended, s.Total)
		after := Percentage(s.Attended, s.Total+missed)
		out = append(out, Impact{
			SubjectID:         s.SubjectID,
			SubjectName:       s.SubjectName,
			ClassesMissed:     missed,
			CurrentTotal:      s.Total,
			CurrentAttended:   s.Attended,
			AfterTotal:        s.Total + missed,
			AfterAttended:     s.Attended,
			CurrentPercentage: before,
			AfterPercentage:   after,
			Drop:              round1(before - after),
		})
	}
	return out
}
