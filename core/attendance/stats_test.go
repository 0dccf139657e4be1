package attendance

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-attendance/core"
)

var day = core.NewDate(2024, time.March, 4)

func event(studentID, classID string, date core.Date, status Status) Event {
	e := Event{StudentID: studentID, StudentName: "name-" + studentID, Date: date, Status: status}
	if classID != "" {
		e.ClassID = null.StringFrom(classID)
		e.ClassName = null.StringFrom("class-" + classID)
	}
	return e
}

// repeat returns n events of the student with the given status on consecutive days.
func repeat(studentID string, status Status, n int) []Event {
	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, event(studentID, "", day.AddDays(i), status))
	}
	return events
}

func TestRate(t *testing.T) {
	tests := []struct {
		attended, total int
		want            int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{0, 4, 0},
		{3, 4, 75},
		{1, 8, 13}, // 12.5 rounds up
		{2, 3, 67},
		{37, 50, 74},
		{4, 4, 100},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.attended, tt.total), func(t *testing.T) {
			if got := Rate(tt.attended, tt.total); got != tt.want {
				t.Errorf("Rate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeClassStats(t *testing.T) {
	named := func(e Event, section null.String) Event {
		e.ClassName = null.StringFrom("Grade 5")
		e.Section = section
		return e
	}

	t.Run("counts and rate", func(t *testing.T) {
		events := []Event{
			event("s1", "c1", day, StatusPresent),
			event("s2", "c1", day, StatusLate),
			event("s3", "c1", day, StatusAbsent),
			event("s4", "c1", day, StatusExcused),
			event("s5", "", day, StatusPresent), // no class
		}
		stats := ComputeClassStats(events)
		assert.Equal(t, []ClassStat{
			{ClassName: "class-c1", Present: 1, Absent: 1, Late: 1, Total: 4, Rate: 50},
		}, stats)
	})

	t.Run("missing section is not the empty section", func(t *testing.T) {
		events := []Event{
			named(event("s1", "c1", day, StatusPresent), null.String{}),
			named(event("s2", "c2", day, StatusAbsent), null.StringFrom("")),
			named(event("s3", "c3", day, StatusPresent), null.StringFrom("B")),
		}
		stats := ComputeClassStats(events)
		if len(stats) != 3 {
			t.Fatalf("ComputeClassStats() returned %d groups, want 3", len(stats))
		}
		assert.False(t, stats[0].Section.Valid)
		assert.Equal(t, 100, stats[0].Rate)
		assert.Equal(t, null.StringFrom(""), stats[1].Section)
		assert.Equal(t, 0, stats[1].Rate)
		assert.Equal(t, null.StringFrom("B"), stats[2].Section)
	})

	t.Run("seeded class without events", func(t *testing.T) {
		seed := Class{ID: "c9", Name: "Grade 9", Section: null.StringFrom("C")}
		stats := ComputeClassStats(nil, seed)
		assert.Equal(t, []ClassStat{{ClassName: "Grade 9", Section: null.StringFrom("C")}}, stats)
	})

	t.Run("ordered by name then section", func(t *testing.T) {
		events := []Event{
			event("s1", "b", day, StatusPresent),
			event("s2", "a", day, StatusPresent),
		}
		stats := ComputeClassStats(events)
		assert.Equal(t, "class-a", stats[0].ClassName)
		assert.Equal(t, "class-b", stats[1].ClassName)
	})
}

func TestComputeStudentStats(t *testing.T) {
	t.Run("lowest rate first", func(t *testing.T) {
		var events []Event
		events = append(events, repeat("s90", StatusPresent, 9)...)
		events = append(events, repeat("s90", StatusAbsent, 1)...)
		events = append(events, repeat("s60", StatusPresent, 6)...)
		events = append(events, repeat("s60", StatusAbsent, 4)...)
		events = append(events, repeat("s75", StatusLate, 3)...)
		events = append(events, repeat("s75", StatusAbsent, 1)...)

		stats := ComputeStudentStats(events, DefaultThreshold)
		got := make([]int, 0, len(stats))
		for _, st := range stats {
			got = append(got, st.AttendanceRate)
		}
		assert.Equal(t, []int{60, 75, 90}, got)
		assert.Equal(t, "s60", stats[0].StudentID)
		assert.Equal(t, 3, stats[1].LateDays)
		assert.Equal(t, 4, stats[1].TotalDays)
	})

	t.Run("threshold boundary", func(t *testing.T) {
		var events []Event
		events = append(events, repeat("s74", StatusPresent, 37)...)
		events = append(events, repeat("s74", StatusAbsent, 13)...)
		events = append(events, repeat("s75", StatusPresent, 3)...)
		events = append(events, repeat("s75", StatusAbsent, 1)...)

		stats := ComputeStudentStats(events, 75)
		if stats[0].AttendanceRate != 74 || !stats[0].BelowThreshold {
			t.Errorf("74%% student = %+v, want flagged", stats[0])
		}
		if stats[1].AttendanceRate != 75 || stats[1].BelowThreshold {
			t.Errorf("75%% student = %+v, want not flagged", stats[1])
		}
	})

	t.Run("configurable threshold", func(t *testing.T) {
		events := repeat("s", StatusPresent, 4)
		events = append(events, repeat("s", StatusAbsent, 1)...)
		stats := ComputeStudentStats(events, 90)
		assert.True(t, stats[0].BelowThreshold)
	})

	t.Run("ties ordered by name", func(t *testing.T) {
		events := []Event{event("b", "", day, StatusPresent), event("a", "", day, StatusPresent)}
		stats := ComputeStudentStats(events, 75)
		assert.Equal(t, "name-a", stats[0].StudentName)
	})
}

func TestComputeDailySeries(t *testing.T) {
	rng := core.DateRange{Start: day, End: day.AddDays(6)}
	events := []Event{
		event("s1", "", day, StatusPresent),
		event("s2", "", day, StatusAbsent),
		event("s1", "", day.AddDays(3), StatusLate),
		event("s1", "", day.AddDays(30), StatusLate), // out of range
	}

	series := ComputeDailySeries(rng, events)
	if len(series) != 7 {
		t.Fatalf("ComputeDailySeries() returned %d entries, want 7", len(series))
	}
	var empty int
	for i, st := range series {
		if !st.Date.Equal(day.AddDays(i)) {
			t.Errorf("series[%d].Date = %v, want %v", i, st.Date, day.AddDays(i))
		}
		if st.Total == 0 {
			empty++
			assert.Equal(t, 0, st.Rate)
		}
	}
	assert.Equal(t, 5, empty)
	assert.Equal(t, DailyStat{Date: day, Present: 1, Absent: 1, Total: 2, Rate: 50}, series[0])
	assert.Equal(t, DailyStat{Date: day.AddDays(3), Late: 1, Total: 1, Rate: 100}, series[3])
}

func TestComputeTodaySummary(t *testing.T) {
	roster := []Student{{ID: "s1"}, {ID: "s2"}, {ID: "s3"}, {ID: "s4"}}
	events := []Event{
		event("s1", "c1", day, StatusPresent),
		event("s2", "c1", day, StatusLate),
		event("s3", "c1", day, StatusAbsent),
		event("s1", "c1", day.AddDays(-1), StatusAbsent), // another day
	}

	tests := []struct {
		name        string
		denominator string
		want        TodaySummary
	}{
		{
			name:        "rate over recorded events",
			denominator: RateOverRecorded,
			want: TodaySummary{
				Date: day, TotalStudents: 4, PresentToday: 1, AbsentToday: 1, LateToday: 1, Unmarked: 1, AttendanceRate: 67,
			},
		},
		{
			name:        "rate over roster",
			denominator: RateOverRoster,
			want: TodaySummary{
				Date: day, TotalStudents: 4, PresentToday: 1, AbsentToday: 1, LateToday: 1, Unmarked: 1, AttendanceRate: 50,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTodaySummary(day, events, roster, tt.denominator)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("nothing recorded", func(t *testing.T) {
		got := ComputeTodaySummary(day, nil, nil, RateOverRecorded)
		assert.Equal(t, TodaySummary{Date: day}, got)
	})
}

func TestNewAmendment(t *testing.T) {
	prev := Event{ID: "e1", TenantID: "t1", Status: StatusAbsent}
	next := prev
	next.MarkedBy = null.StringFrom("u1")

	if _, changed := NewAmendment(prev, next); changed {
		t.Error("NewAmendment() changed = true, want false when only marked_by differs")
	}

	next.Status = StatusPresent
	next.TimeIn = null.StringFrom("08:00:00")
	a, changed := NewAmendment(prev, next)
	if !changed {
		t.Fatal("NewAmendment() changed = false, want true")
	}
	assert.Equal(t, "e1", a.EventID)
	assert.Equal(t, StatusAbsent, a.OldStatus)
	assert.Equal(t, StatusPresent, a.NewStatus)
	assert.Equal(t, null.StringFrom("u1"), a.AmendedBy)
}
