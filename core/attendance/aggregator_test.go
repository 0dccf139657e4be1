package attendance_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
	inmemdb "github.com/trezcool/masomo-attendance/storage/database/inmem"
	"github.com/trezcool/masomo-attendance/testutil"
)

func setupAggregator(t *testing.T, opts attendance.Options) (attendance.Aggregator, attendance.Recorder, testutil.School) {
	t.Helper()
	db := inmemdb.Open()
	school := testutil.SeedSchool(db)
	repo := inmemdb.NewAttendanceRepository(db)
	roster := inmemdb.NewRosterRepository(db)
	validate, translator := testutil.NewValidator()
	testutil.FixedNow(t, callTime)

	opts.Location = wat
	rec := attendance.NewRecorder(repo, roster, validate, translator, opts)
	return attendance.NewAggregator(repo, roster, opts), rec, school
}

func Test_aggregator_ClassStats(t *testing.T) {
	agg, rec, school := setupAggregator(t, attendance.Options{})
	ctx := context.Background()
	week := core.DateRange{Start: monday, End: monday.AddDays(6)}

	testutil.Mark(t, rec, school.Alice.ID, testutil.ClassA, monday, attendance.StatusPresent)
	testutil.Mark(t, rec, school.Bob.ID, testutil.ClassA, monday, attendance.StatusAbsent)
	testutil.Mark(t, rec, school.Carol.ID, testutil.ClassA, monday, attendance.StatusLate)
	testutil.Mark(t, rec, school.Dan.ID, "", monday, attendance.StatusPresent) // no class

	stats, err := agg.ClassStats(ctx, testutil.TenantID, week, "")
	require.NoError(t, err)
	assert.Equal(t, []attendance.ClassStat{
		{ClassName: "Grade 5", Section: null.StringFrom("A"), Present: 1, Absent: 1, Late: 1, Total: 3, Rate: 67},
	}, stats)

	t.Run("filtered class without events", func(t *testing.T) {
		stats, err := agg.ClassStats(ctx, testutil.TenantID, week, testutil.ClassB)
		require.NoError(t, err)
		assert.Equal(t, []attendance.ClassStat{{ClassName: "Grade 6"}}, stats)
	})

	t.Run("unknown class", func(t *testing.T) {
		_, err := agg.ClassStats(ctx, testutil.TenantID, week, "c1a55f00-0000-4000-8000-00000000000f")
		assert.True(t, core.IsValidationError(err), "error = %v, want a validation error", err)
	})

	t.Run("invalid range", func(t *testing.T) {
		_, err := agg.ClassStats(ctx, testutil.TenantID, core.DateRange{Start: monday, End: monday.AddDays(-1)}, "")
		assert.True(t, core.IsValidationError(err), "error = %v, want a validation error", err)
	})
}

func Test_aggregator_StudentStats(t *testing.T) {
	agg, rec, school := setupAggregator(t, attendance.Options{Threshold: null.IntFrom(60)})
	ctx := context.Background()

	marks := map[string][]attendance.Status{
		school.Alice.ID: {attendance.StatusPresent, attendance.StatusPresent, attendance.StatusPresent},
		school.Bob.ID:   {attendance.StatusAbsent, attendance.StatusLate, attendance.StatusAbsent},
		school.Carol.ID: {attendance.StatusPresent, attendance.StatusAbsent},
	}
	for studentID, statuses := range marks {
		for i, status := range statuses {
			testutil.Mark(t, rec, studentID, testutil.ClassA, monday.AddDays(i), status)
		}
	}

	stats, err := agg.StudentStats(ctx, testutil.TenantID, core.DateRange{Start: monday, End: monday.AddDays(6)}, testutil.ClassA)
	require.NoError(t, err)
	require.Len(t, stats, 3)

	assert.Equal(t, school.Bob.ID, stats[0].StudentID)
	assert.Equal(t, "STU-002", stats[0].StudentCode)
	assert.Equal(t, 33, stats[0].AttendanceRate)
	assert.True(t, stats[0].BelowThreshold)
	assert.Equal(t, school.Carol.ID, stats[1].StudentID)
	assert.Equal(t, 50, stats[1].AttendanceRate)
	assert.True(t, stats[1].BelowThreshold)
	assert.Equal(t, school.Alice.ID, stats[2].StudentID)
	assert.False(t, stats[2].BelowThreshold)
	assert.Equal(t, 60, agg.Threshold())
}

func Test_aggregator_threshold(t *testing.T) {
	tests := []struct {
		name        string
		opts        attendance.Options
		want        int
		wantFlagged bool
	}{
		{name: "unset", opts: attendance.Options{}, want: attendance.DefaultThreshold, wantFlagged: true},
		{name: "zero flags nobody", opts: attendance.Options{Threshold: null.IntFrom(0)}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, rec, school := setupAggregator(t, tt.opts)
			testutil.Mark(t, rec, school.Bob.ID, testutil.ClassA, monday, attendance.StatusAbsent)

			stats, err := agg.StudentStats(context.Background(), testutil.TenantID, core.DateRange{Start: monday, End: monday}, "")
			require.NoError(t, err)
			require.Len(t, stats, 1)
			assert.Equal(t, 0, stats[0].AttendanceRate)
			assert.Equal(t, tt.wantFlagged, stats[0].BelowThreshold)
			assert.Equal(t, tt.want, agg.Threshold())
		})
	}
}

func Test_aggregator_DailySeries(t *testing.T) {
	agg, rec, school := setupAggregator(t, attendance.Options{})
	ctx := context.Background()

	testutil.Mark(t, rec, school.Alice.ID, testutil.ClassA, monday, attendance.StatusPresent)
	testutil.Mark(t, rec, school.Bob.ID, testutil.ClassA, monday.AddDays(2), attendance.StatusAbsent)

	series, err := agg.DailySeries(ctx, testutil.TenantID, core.DateRange{Start: monday, End: monday.AddDays(6)}, "")
	require.NoError(t, err)
	require.Len(t, series, 7)

	var empty int
	for _, st := range series {
		if st.Total == 0 {
			empty++
		}
	}
	assert.Equal(t, 5, empty)
	assert.Equal(t, 100, series[0].Rate)
	assert.Equal(t, 0, series[2].Rate)

	t.Run("range too long", func(t *testing.T) {
		_, err := agg.DailySeries(ctx, testutil.TenantID, core.DateRange{Start: monday, End: monday.AddDays(400)}, "")
		assert.True(t, core.IsValidationError(err), "error = %v, want a validation error", err)
	})
}

func Test_aggregator_TodaySummary(t *testing.T) {
	tests := []struct {
		name        string
		denominator string
		classID     string
		want        attendance.TodaySummary
	}{
		{
			name:    "whole school",
			classID: "",
			want: attendance.TodaySummary{
				Date: monday, TotalStudents: 4, PresentToday: 1, LateToday: 1, Unmarked: 2, AttendanceRate: 100,
			},
		},
		{
			name:        "whole school over roster",
			denominator: attendance.RateOverRoster,
			want: attendance.TodaySummary{
				Date: monday, TotalStudents: 4, PresentToday: 1, LateToday: 1, Unmarked: 2, AttendanceRate: 50,
			},
		},
		{
			name:    "one class",
			classID: testutil.ClassA,
			want: attendance.TodaySummary{
				Date: monday, TotalStudents: 3, PresentToday: 1, LateToday: 1, Unmarked: 1, AttendanceRate: 100,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, rec, school := setupAggregator(t, attendance.Options{TodayRateDenominator: tt.denominator})
			testutil.Mark(t, rec, school.Alice.ID, testutil.ClassA, monday, attendance.StatusPresent)
			testutil.Mark(t, rec, school.Bob.ID, testutil.ClassA, monday, attendance.StatusLate)
			testutil.Mark(t, rec, school.Carol.ID, testutil.ClassA, monday.AddDays(-1), attendance.StatusAbsent)

			got, err := agg.TodaySummary(context.Background(), testutil.TenantID, tt.classID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
