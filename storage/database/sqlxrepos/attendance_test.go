package sqlxrepos

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
)

const (
	tenantID = "0b6f1f0e-4bde-4b6e-9a43-7c1c0a6b1d01"
	classID  = "c1a55a00-0000-4000-8000-00000000000a"
	aliceID  = "5a000000-0000-4000-8000-000000000001"
	bobID    = "5a000000-0000-4000-8000-000000000002"
)

var (
	day      = core.NewDate(2024, time.March, 4)
	markedAt = time.Date(2024, time.March, 4, 7, 45, 10, 0, time.UTC)

	lockColumns   = []string{"id", "tenant_id", "student_id", "class_id", "attendance_date", "status", "time_in", "time_out", "notes", "marked_by", "created_at", "updated_at"}
	joinedRowCols = append(append([]string{}, lockColumns...), "student_code", "student_name", "class_name", "section")
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func newEvent(id, studentID string, status attendance.Status) attendance.Event {
	return attendance.Event{
		ID:        id,
		TenantID:  tenantID,
		StudentID: studentID,
		ClassID:   null.StringFrom(classID),
		Date:      day,
		Status:    status,
		MarkedBy:  null.StringFrom("teacher"),
		CreatedAt: markedAt,
		UpdatedAt: markedAt,
	}
}

func TestAttendanceRepository_UpsertEvents(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAttendanceRepository(db)

	alice := newEvent("e0000000-0000-4000-8000-000000000001", aliceID, attendance.StatusPresent)
	alice.TimeIn = null.StringFrom("07:45:10")
	bob := newEvent("e0000000-0000-4000-8000-000000000002", bobID, attendance.StatusAbsent)
	storedBobID := "e0000000-0000-4000-8000-0000000000b0"
	createdAt := markedAt.Add(-time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM student_attendance WHERE .+ FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(lockColumns).
			AddRow(storedBobID, tenantID, bobID, classID, day.Time(), "late", "08:10:00", nil, nil, "teacher", createdAt, createdAt))
	mock.ExpectQuery(`INSERT INTO student_attendance .+ ON CONFLICT .+ RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(alice.ID).AddRow(storedBobID))
	mock.ExpectExec(`INSERT INTO attendance_amendments`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .+ FROM student_attendance a JOIN students s ON s.id = a.student_id LEFT JOIN classes c ON c.id = a.class_id WHERE a.id IN`).
		WillReturnRows(sqlmock.NewRows(joinedRowCols).
			// returned out of input order
			AddRow(storedBobID, tenantID, bobID, classID, day.Time(), "absent", nil, nil, nil, "teacher", createdAt, markedAt, "STU-002", "Bob Kalala", "Grade 5", "A").
			AddRow(alice.ID, tenantID, aliceID, classID, day.Time(), "present", "07:45:10", nil, nil, "teacher", markedAt, markedAt, "STU-001", "Alice Mwamba", "Grade 5", "A"))
	mock.ExpectCommit()

	saved, err := repo.UpsertEvents(context.Background(), []attendance.Event{alice, bob})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	assert.Equal(t, alice.ID, saved[0].ID)
	assert.Equal(t, "Alice Mwamba", saved[0].StudentName)
	assert.Equal(t, null.StringFrom("07:45:10"), saved[0].TimeIn)

	assert.Equal(t, storedBobID, saved[1].ID, "stored id is kept")
	assert.True(t, saved[1].CreatedAt.Equal(createdAt), "stored created_at is kept")
	assert.Equal(t, attendance.StatusAbsent, saved[1].Status)
	assert.Equal(t, day, saved[1].Date)
	assert.Equal(t, null.StringFrom("A"), saved[1].Section)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_UpsertEvents_unchangedSkipsAmendments(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAttendanceRepository(db)

	bob := newEvent("e0000000-0000-4000-8000-000000000002", bobID, attendance.StatusAbsent)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(lockColumns).
			AddRow(bob.ID, tenantID, bobID, classID, day.Time(), "absent", nil, nil, nil, "teacher", markedAt, markedAt))
	mock.ExpectQuery(`INSERT INTO student_attendance`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(bob.ID))
	mock.ExpectQuery(`FROM student_attendance a`).
		WillReturnRows(sqlmock.NewRows(joinedRowCols).
			AddRow(bob.ID, tenantID, bobID, classID, day.Time(), "absent", nil, nil, nil, "teacher", markedAt, markedAt, "STU-002", "Bob Kalala", "Grade 5", "A"))
	mock.ExpectCommit()

	saved, err := repo.UpsertEvents(context.Background(), []attendance.Event{bob})
	require.NoError(t, err)
	assert.Len(t, saved, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_UpsertEvents_rollsBack(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows(lockColumns))
	mock.ExpectQuery(`INSERT INTO student_attendance`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	saved, err := repo.UpsertEvents(context.Background(), []attendance.Event{newEvent("e1", aliceID, attendance.StatusLate)})
	assert.Nil(t, saved)
	assert.True(t, core.IsStorageError(err), "UpsertEvents() error = %v, want a storage error", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_UpsertEvents_unknownReference(t *testing.T) {
	tests := []struct {
		constraint string
		wantField  string
	}{
		{constraint: "student_attendance_student_id_fkey", wantField: "student_id"},
		{constraint: "student_attendance_class_id_fkey", wantField: "class_id"},
	}
	for _, tt := range tests {
		t.Run(tt.wantField, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewAttendanceRepository(db)

			mock.ExpectBegin()
			mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows(lockColumns))
			mock.ExpectQuery(`INSERT INTO student_attendance`).
				WillReturnError(&pq.Error{Code: "23503", Constraint: tt.constraint})
			mock.ExpectRollback()

			_, err := repo.UpsertEvents(context.Background(), []attendance.Event{newEvent("e1", aliceID, attendance.StatusLate)})
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr), "UpsertEvents() error = %v, want a validation error", err)
			assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
			assert.False(t, core.IsStorageError(err))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAttendanceRepository_UpsertEvents_empty(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAttendanceRepository(db)

	saved, err := repo.UpsertEvents(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_QueryEvents(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAttendanceRepository(db)

	tests := []struct {
		name    string
		filter  attendance.QueryFilter
		query   string
		args    []driver.Value
		wantErr bool
	}{
		{
			name:   "tenant only",
			filter: attendance.QueryFilter{TenantID: tenantID},
			query:  `WHERE a.tenant_id = \$1 ORDER BY a.attendance_date DESC, a.created_at DESC`,
			args:   []driver.Value{tenantID},
		},
		{
			name:   "class, status and search",
			filter: attendance.QueryFilter{TenantID: tenantID, ClassID: classID, Status: attendance.StatusLate, Search: "bo_b"},
			query:  `WHERE a.tenant_id = \$1 AND a.class_id = \$2 AND a.status = \$3 AND \(s.student_code ILIKE \$4 .+ ILIKE \$7\)`,
			args:   []driver.Value{tenantID, classID, "late", `%bo\_b%`, `%bo\_b%`, `%bo\_b%`, `%bo\_b%`},
		},
		{
			name: "ordering",
			filter: attendance.QueryFilter{TenantID: tenantID, Ordering: []core.DBOrdering{
				{Field: "student_name", Ascending: true},
				{Field: "attendance_date"},
			}},
			query: `ORDER BY student_name ASC, a.attendance_date DESC`,
			args:  []driver.Value{tenantID},
		},
		{
			name:    "unknown ordering",
			filter:  attendance.QueryFilter{TenantID: tenantID, Ordering: []core.DBOrdering{{Field: "password"}}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.wantErr {
				mock.ExpectQuery(tt.query).WithArgs(tt.args...).
					WillReturnRows(sqlmock.NewRows(joinedRowCols).
						AddRow("e1", tenantID, bobID, classID, day.Time(), "late", "08:10:00", nil, nil, "teacher", markedAt, markedAt, "STU-002", "Bob Kalala", "Grade 5", "A"))
			}

			events, err := repo.QueryEvents(context.Background(), tt.filter)
			if (err != nil) != tt.wantErr {
				t.Fatalf("QueryEvents() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				assert.True(t, core.IsValidationError(err))
				return
			}
			require.Len(t, events, 1)
			assert.Equal(t, null.StringFrom("08:10:00"), events[0].TimeIn)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAttendanceRepository_GetEvent(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(`a.id = \$1 AND a.tenant_id = \$2`).
		WithArgs("missing", tenantID).
		WillReturnRows(sqlmock.NewRows(joinedRowCols))
	_, err := repo.GetEvent(context.Background(), tenantID, "missing")
	assert.Equal(t, attendance.ErrNotFound, err)

	mock.ExpectQuery(`a.id = \$1 AND a.tenant_id = \$2`).
		WithArgs("e1", tenantID).
		WillReturnError(errors.New("boom"))
	_, err = repo.GetEvent(context.Background(), tenantID, "e1")
	assert.True(t, core.IsStorageError(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_QueryAmendments(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAttendanceRepository(db)

	cols := []string{
		"id", "event_id", "tenant_id", "old_status", "new_status", "old_time_in", "new_time_in",
		"old_time_out", "new_time_out", "old_notes", "new_notes", "amended_by", "amended_at",
	}
	mock.ExpectQuery(`FROM attendance_amendments WHERE .*event_id = \$1 AND tenant_id = \$2.* ORDER BY amended_at DESC`).
		WithArgs("e1", tenantID).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a1", "e1", tenantID, "absent", "late", nil, "08:10:00", nil, nil, nil, "bus", "teacher", markedAt))

	amendments, err := repo.QueryAmendments(context.Background(), tenantID, "e1")
	require.NoError(t, err)
	require.Len(t, amendments, 1)
	assert.Equal(t, attendance.StatusAbsent, amendments[0].OldStatus)
	assert.Equal(t, attendance.StatusLate, amendments[0].NewStatus)
	assert.Equal(t, null.StringFrom("bus"), amendments[0].NewNotes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_ActiveTenants(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(`SELECT DISTINCT tenant_id FROM student_attendance WHERE attendance_date >= \$1 ORDER BY tenant_id`).
		WithArgs("2024-03-04").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).AddRow(tenantID))

	tenants, err := repo.ActiveTenants(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, []string{tenantID}, tenants)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_contains(t *testing.T) {
	assert.Equal(t, `%50\%%`, contains("50%"))
	assert.Equal(t, `%a\\b%`, contains(`a\b`))
}
