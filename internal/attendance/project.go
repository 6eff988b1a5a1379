package attendance

import (
	"fmt"
	"math"
)

// Status classifies a percentage against a class threshold.
type Status string

const (
	StatusSafe       Status = "safe"
	StatusBorderline Status = "borderline"
	StatusDanger     Status = "danger"
)

// DefaultSafetyBuffer is the margin above the threshold that counts as safe.
const DefaultSafetyBuffer = 5.0

const epsilon = 1e-9

// Policy is the threshold a projection is made against.
type Policy struct {
	Threshold float64
	Buffer    float64
}

// Projection answers how many periods can be skipped, or must be attended,
// to hold the threshold.
type Projection struct {
	Percentage float64 `json:"percentage"`
	Status     Status  `json:"status"`
	CanBunk    int     `json:"canBunk"`
	MustAttend int     `json:"mustAttend"`
	// Unlimited is set when the class has no minimum.
	Unlimited bool `json:"unlimited,omitempty"`
	// Unrecoverable is set when no number of future periods can lift the
	// percentage back to the threshold.
	Unrecoverable bool   `json:"unrecoverable,omitempty"`
	Message       string `json:"message"`
}

// Percentage returns attended/total as a percentage rounded to one decimal.
// A subject with no periods yet is at 100.
func Percentage(attended, total int) float64 {
	if total <= 0 {
		return 100
	}
	return round1(float64(attended) / float64(total) * 100)
}

// Project classifies one subject's totals.
func Project(total, attended int, p Policy) Projection {
	thr := math.Min(p.Threshold, 100)
	buf := math.Max(p.Buffer, 0)
	if attended > total {
		attended = total
	}
	pct := Percentage(attended, total)
	out := Projection{Percentage: pct}
	// full attendance is always safe, even when thr+buf exceeds 100
	safeLine := math.Min(thr+buf, 100)

	switch {
	case thr <= 0:
		out.Status = StatusSafe
		out.Unlimited = true
		out.Message = "Safe! No minimum attendance is required."
	case total == 0:
		out.Status = StatusSafe
		out.Message = "Safe! No classes have been held yet."
	case pct >= safeLine:
		out.Status = StatusSafe
		n := floor(float64(attended)/(thr/100) - float64(total))
		if n < 0 {
			n = 0
		}
		out.CanBunk = n
		out.Message = fmt.Sprintf("Safe! You can bunk %d more %s.", n, plural(n))
	case pct < thr:
		out.Status = StatusDanger
		if thr >= 100 {
			out.Unrecoverable = true
			out.Message = fmt.Sprintf("Danger! %s%% can no longer be reached.", trim(thr))
			break
		}
		t := thr / 100
		n := ceil((t*float64(total) - float64(attended)) / (1 - t))
		if n < 1 {
			n = 1
		}
		out.MustAttend = n
		out.Message = fmt.Sprintf("Danger! Attend %d more %s to reach %s%%.", n, plural(n), trim(thr))
	default:
		out.Status = StatusBorderline
		out.Message = fmt.Sprintf("Borderline! You are close to %s%%. Avoid missing classes.", trim(thr))
	}
	return out
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }

// floor and ceil absorb representation error so an exact boundary such as
// 30/0.75 is not read as 39.999.
func floor(x float64) int { return int(math.Floor(x + epsilon)) }
func ceil(x float64) int  { return int(math.Ceil(x - epsilon)) }

func plural(n int) string {
	if n == 1 {
		return "class"
	}
	return "classes"
}

func trim(f float64) string { return fmt.Sprintf("%g", f) }
