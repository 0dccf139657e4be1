package attendance

import "strconv"

// Table is a tabular rendition of stats, ready for export.
// Columns follow the declared field order of the stat type and use its JSON names.
type Table struct {
	Columns []string
	Rows    [][]string
	// Numeric names the count and rate columns. Every other column is text.
	Numeric map[string]bool
}

// IsNumeric reports whether column i holds integers.
func (t Table) IsNumeric(i int) bool {
	return i < len(t.Columns) && t.Numeric[t.Columns[i]]
}

var (
	classStatColumns   = []string{"class_name", "section", "present", "absent", "late", "total", "rate"}
	studentStatColumns = []string{
		"student_id", "student_code", "student_name", "present_days", "absent_days",
		"late_days", "total_days", "attendance_rate", "below_threshold",
	}
	dailyStatColumns    = []string{"date", "present", "absent", "late", "total", "rate"}
	todaySummaryColumns = []string{
		"date", "total_students", "present_today", "absent_today",
		"late_today", "excused_today", "unmarked", "attendance_rate",
	}

	numericColumns = columnSet(
		"present", "absent", "late", "total", "rate",
		"present_days", "absent_days", "late_days", "total_days", "attendance_rate",
		"total_students", "present_today", "absent_today", "late_today", "excused_today", "unmarked",
	)
)

func columnSet(cols ...string) map[string]bool {
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	return set
}

func newTable(cols []string, size int) Table {
	return Table{Columns: cols, Rows: make([][]string, 0, size), Numeric: numericColumns}
}

func ClassStatsTable(stats []ClassStat) Table {
	t := newTable(classStatColumns, len(stats))
	for _, st := range stats {
		t.Rows = append(t.Rows, []string{
			st.ClassName,
			st.Section.String,
			itoa(st.Present),
			itoa(st.Absent),
			itoa(st.Late),
			itoa(st.Total),
			itoa(st.Rate),
		})
	}
	return t
}

func StudentStatsTable(stats []StudentStat) Table {
	t := newTable(studentStatColumns, len(stats))
	for _, st := range stats {
		t.Rows = append(t.Rows, []string{
			st.StudentID,
			st.StudentCode,
			st.StudentName,
			itoa(st.PresentDays),
			itoa(st.AbsentDays),
			itoa(st.LateDays),
			itoa(st.TotalDays),
			itoa(st.AttendanceRate),
			strconv.FormatBool(st.BelowThreshold),
		})
	}
	return t
}

func DailySeriesTable(stats []DailyStat) Table {
	t := newTable(dailyStatColumns, len(stats))
	for _, st := range stats {
		t.Rows = append(t.Rows, []string{
			st.Date.String(),
			itoa(st.Present),
			itoa(st.Absent),
			itoa(st.Late),
			itoa(st.Total),
			itoa(st.Rate),
		})
	}
	return t
}

// TodaySummaryTable renders the summary as a single row.
func TodaySummaryTable(sum TodaySummary) Table {
	t := newTable(todaySummaryColumns, 1)
	t.Rows = append(t.Rows, []string{
		sum.Date.String(),
		itoa(sum.TotalStudents),
		itoa(sum.PresentToday),
		itoa(sum.AbsentToday),
		itoa(sum.LateToday),
		itoa(sum.ExcusedToday),
		itoa(sum.Unmarked),
		itoa(sum.AttendanceRate),
	})
	return t
}

func itoa(i int) string { return strconv.Itoa(i) }
