package attendance

import (
	"math"
	"sort"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-attendance/core"
)

// Rate is the rounded percentage of attended over total, 0 when total is 0.
func Rate(attended, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(attended) / float64(total) * 100))
}

// classKey tells a missing section apart from a section named "".
type classKey struct {
	name       string
	section    string
	hasSection bool
}

func newClassKey(name string, section null.String) classKey {
	return classKey{name: name, section: section.String, hasSection: section.Valid}
}

// ComputeClassStats groups events by class name and section. Events without a class are ignored.
// Seeded classes are reported even when no event matches them.
func ComputeClassStats(events []Event, seed ...Class) []ClassStat {
	groups := make(map[classKey]*ClassStat)
	group := func(name string, section null.String) *ClassStat {
		key := newClassKey(name, section)
		st, ok := groups[key]
		if !ok {
			st = &ClassStat{ClassName: name, Section: section}
			groups[key] = st
		}
		return st
	}

	for _, c := range seed {
		group(c.Name, c.Section)
	}
	for _, e := range events {
		if !e.ClassID.Valid {
			continue
		}
		st := group(e.ClassName.String, e.Section)
		st.Total++
		switch e.Status {
		case StatusPresent:
			st.Present++
		case StatusAbsent:
			st.Absent++
		case StatusLate:
			st.Late++
		}
	}

	stats := make([]ClassStat, 0, len(groups))
	for _, st := range groups {
		st.Rate = Rate(st.Present+st.Late, st.Total)
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.ClassName != b.ClassName {
			return a.ClassName < b.ClassName
		}
		if a.Section.Valid != b.Section.Valid {
			return !a.Section.Valid
		}
		return a.Section.String < b.Section.String
	})
	return stats
}

// ComputeStudentStats groups events by student, lowest attendance rate first.
// Students whose rate is below threshold are flagged.
func ComputeStudentStats(events []Event, threshold int) []StudentStat {
	groups := make(map[string]*StudentStat)
	for _, e := range events {
		st, ok := groups[e.StudentID]
		if !ok {
			st = &StudentStat{StudentID: e.StudentID, StudentCode: e.StudentCode, StudentName: e.StudentName}
			groups[e.StudentID] = st
		}
		st.TotalDays++
		switch e.Status {
		case StatusPresent:
			st.PresentDays++
		case StatusAbsent:
			st.AbsentDays++
		case StatusLate:
			st.LateDays++
		}
	}

	stats := make([]StudentStat, 0, len(groups))
	for _, st := range groups {
		st.AttendanceRate = Rate(st.PresentDays+st.LateDays, st.TotalDays)
		st.BelowThreshold = st.AttendanceRate < threshold
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.AttendanceRate != b.AttendanceRate {
			return a.AttendanceRate < b.AttendanceRate
		}
		if a.StudentName != b.StudentName {
			return a.StudentName < b.StudentName
		}
		return a.StudentID < b.StudentID
	})
	return stats
}

// ComputeDailySeries returns one entry per date of rng, zero-filled for days without events.
// Events outside rng are ignored.
func ComputeDailySeries(rng core.DateRange, events []Event) []DailyStat {
	days := rng.Days()
	series := make([]DailyStat, len(days))
	index := make(map[core.Date]int, len(days))
	for i, d := range days {
		series[i].Date = d
		index[d] = i
	}

	for _, e := range events {
		i, ok := index[e.Date]
		if !ok {
			continue
		}
		st := &series[i]
		st.Total++
		switch e.Status {
		case StatusPresent:
			st.Present++
		case StatusAbsent:
			st.Absent++
		case StatusLate:
			st.Late++
		}
	}
	for i := range series {
		series[i].Rate = Rate(series[i].Present+series[i].Late, series[i].Total)
	}
	return series
}

// ComputeTodaySummary summarizes the events of date against the active roster.
// The rate is computed over the recorded events unless denominator is RateOverRoster,
// in which case it is the share of roster students who attended.
func ComputeTodaySummary(date core.Date, events []Event, roster []Student, denominator string) TodaySummary {
	sum := TodaySummary{Date: date, TotalStudents: len(roster)}

	marked := make(map[string]bool, len(events))
	attended := make(map[string]bool, len(events))
	var recorded int
	for _, e := range events {
		if !e.Date.Equal(date) {
			continue
		}
		recorded++
		marked[e.StudentID] = true
		switch e.Status {
		case StatusPresent:
			sum.PresentToday++
		case StatusAbsent:
			sum.AbsentToday++
		case StatusLate:
			sum.LateToday++
		case StatusExcused:
			sum.ExcusedToday++
		}
		if e.Status.Attended() {
			attended[e.StudentID] = true
		}
	}

	var attendedOnRoster int
	for _, s := range roster {
		if !marked[s.ID] {
			sum.Unmarked++
		}
		if attended[s.ID] {
			attendedOnRoster++
		}
	}

	if denominator == RateOverRoster {
		sum.AttendanceRate = Rate(attendedOnRoster, sum.TotalStudents)
	} else {
		sum.AttendanceRate = Rate(sum.PresentToday+sum.LateToday, recorded)
	}
	return sum
}
