package attendance

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classattend/internal/classroom"
	"classattend/internal/ident"
)

var (
	day1 = time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	day2 = day1.AddDate(0, 0, 1)
)

func period(num int, subject string, absent ...string) Period {
	p := Period{PeriodNum: num, SubjectID: ident.Flex(subject), SubjectName: subject, IsVerified: true}
	for _, a := range absent {
		p.AbsentRollNumbers = append(p.AbsentRollNumbers, ident.Flex(a))
	}
	return p
}

func TestAggregateEndToEnd(t *testing.T) {
	subjects := []classroom.Subject{{ID: "S1", Name: "Math"}}
	records := []Record{{ClassID: "c", Date: day1, Periods: []Period{period(1, "S1", "2")}}}

	agg := Aggregate([]string{"1", "2", "3"}, subjects, records, AggregateOptions{CountUnverified: true})

	st, ok := agg.Subject("S1")
	require.True(t, ok)
	assert.Equal(t, map[string]Totals{
		"1": {Total: 1, Attended: 1},
		"2": {Total: 1, Attended: 0},
		"3": {Total: 1, Attended: 1},
	}, st.Students)

	p := Project(1, 0, Policy{Threshold: 75, Buffer: 5})
	assert.Equal(t, 0.0, p.Percentage)
	assert.Equal(t, StatusDanger, p.Status)
}

func TestAggregateNeverTaughtSubjectHasRow(t *testing.T) {
	subjects := []classroom.Subject{{ID: "S1", Name: "Math"}, {ID: "S2", Name: "Physics"}}
	records := []Record{{Date: day1, Periods: []Period{period(1, "S1")}}}

	agg := Aggregate([]string{"1", "2"}, subjects, records, AggregateOptions{CountUnverified: true})

	require.Len(t, agg.Subjects, 2)
	st, ok := agg.Subject("S2")
	require.True(t, ok)
	assert.Equal(t, 0, st.Periods)
	assert.Equal(t, map[string]Totals{"1": {}, "2": {}}, st.Students)
}

func TestAggregateCompletenessAndComplementarity(t *testing.T) {
	roster := []string{"1", "2", "3", "4"}
	subjects := []classroom.Subject{{ID: "A", Name: "A"}, {ID: "B", Name: "B"}}
	records := []Record{
		{Date: day1, Periods: []Period{period(1, "A", "1", "2"), period(2, "B"), period(3, "A", "4")}},
		{Date: day2, Periods: []Period{period(1, "B", "3"), period(2, "B", "1", "3")}},
	}

	agg := Aggregate(roster, subjects, records, AggregateOptions{CountUnverified: true})

	periods := 0
	for _, st := range agg.Subjects {
		periods += st.Periods
	}
	assert.Equal(t, 5, periods)

	a, _ := agg.Subject("A")
	assert.Equal(t, Totals{Total: 2, Attended: 1}, a.Students["1"])
	assert.Equal(t, Totals{Total: 2, Attended: 2}, a.Students["3"])
	b, _ := agg.Subject("B")
	assert.Equal(t, Totals{Total: 3, Attended: 1}, b.Students["3"])

	absences := 0
	for _, rec := range records {
		for _, p := range rec.Periods {
			absences += len(p.AbsentRollNumbers)
		}
	}
	missed := 0
	for _, st := range agg.Subjects {
		for _, tot := range st.Students {
			missed += tot.Total - tot.Attended
		}
	}
	assert.Equal(t, absences, missed)
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	roster := []string{"1", "2", "3"}
	subjects := []classroom.Subject{{ID: "A", Name: "A"}}
	records := []Record{
		{Date: day1, Periods: []Period{period(1, "A", "1"), period(2, "OLD", "2")}},
		{Date: day2, Periods: []Period{period(1, "A", "3")}},
		{Date: day2.AddDate(0, 0, 1), Periods: []Period{{PeriodNum: 1, SubjectID: "OLD", SubjectName: "Chemistry", IsVerified: true}}},
	}
	want := Aggregate(roster, subjects, records, AggregateOptions{CountUnverified: true})

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		shuffled := append([]Record(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, Aggregate(roster, subjects, shuffled, AggregateOptions{CountUnverified: true}))
	}
}

func TestAggregateOrphanedSubjectUsesLatestSnapshotName(t *testing.T) {
	subjects := []classroom.Subject{{ID: "A", Name: "A"}}
	records := []Record{
		{Date: day2, Periods: []Period{{PeriodNum: 1, SubjectID: "X", SubjectName: "Chemistry II", IsVerified: true}}},
		{Date: day1, Periods: []Period{{PeriodNum: 1, SubjectID: "X", SubjectName: "Chemistry", IsVerified: true}}},
	}

	agg := Aggregate([]string{"1"}, subjects, records, AggregateOptions{CountUnverified: true})

	st, ok := agg.Subject("X")
	require.True(t, ok)
	assert.True(t, st.Orphaned)
	assert.Equal(t, "Chemistry II", st.SubjectName)
	assert.Equal(t, Totals{Total: 2, Attended: 2}, st.Students["1"])
	assert.Equal(t, "X", agg.Subjects[len(agg.Subjects)-1].SubjectID)
}

func TestAggregateUnverifiedOption(t *testing.T) {
	subjects := []classroom.Subject{{ID: "A", Name: "A"}}
	p := period(1, "A", "1")
	p.IsVerified = false
	records := []Record{{Date: day1, Periods: []Period{p, period(2, "A")}}}

	counted := Aggregate([]string{"1"}, subjects, records, AggregateOptions{CountUnverified: true})
	a, _ := counted.Subject("A")
	assert.Equal(t, Totals{Total: 2, Attended: 1}, a.Students["1"])

	skipped := Aggregate([]string{"1"}, subjects, records, AggregateOptions{})
	a, _ = skipped.Subject("A")
	assert.Equal(t, Totals{Total: 1, Attended: 1}, a.Students["1"])
}

func TestAggregateNormalizesNumericRolls(t *testing.T) {
	var stored Record
	require.NoError(t, json.Unmarshal([]byte(`{"periods":[{"periodNum":1,"subjectId":7,"absentRollNumbers":[5,"007"," 12 "]}]}`), &stored))
	stored = stored.canonical()

	subjects := []classroom.Subject{{ID: "7", Name: "Math"}}
	agg := Aggregate([]string{"05", "7", "12", "13"}, subjects, []Record{stored}, AggregateOptions{CountUnverified: true})

	st, ok := agg.Subject("7")
	require.True(t, ok)
	assert.Equal(t, 0, st.Students["05"].Attended)
	assert.Equal(t, 0, st.Students["7"].Attended)
	assert.Equal(t, 0, st.Students["12"].Attended)
	assert.Equal(t, 1, st.Students["13"].Attended)

	rows := agg.ForStudent("5")
	require.Len(t, rows, 1)
	assert.Equal(t, Totals{Total: 1, Attended: 0}, rows[0].Totals)
}
