package sqlxrepos

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
)

func TestRosterRepository_ActiveStudents(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRosterRepository(db)
	cols := []string{"id", "student_code", "student_name"}

	tests := []struct {
		name    string
		classID string
		query   string
	}{
		{
			name:    "class roster",
			classID: classID,
			query: `SELECT DISTINCT s.id, s.student_code, .+ FROM student_enrollments e JOIN students s ON s.id = e.student_id ` +
				`WHERE .+ AND e.enrolled_on <= \$\d AND \(e.withdrawn_on IS NULL OR e.withdrawn_on > \$\d\) ORDER BY student_name, s.id`,
		},
		{
			name:  "whole tenant",
			query: `SELECT s.id, s.student_code, .+ FROM students s WHERE .+ ORDER BY student_name, s.id`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectQuery(tt.query).
				WillReturnRows(sqlmock.NewRows(cols).
					AddRow(aliceID, "STU-001", "Alice Mwamba").
					AddRow(bobID, "STU-002", "Bob Kalala"))

			students, err := repo.ActiveStudents(context.Background(), tenantID, tt.classID, day)
			require.NoError(t, err)
			assert.Equal(t, []attendance.Student{
				{ID: aliceID, Code: "STU-001", Name: "Alice Mwamba"},
				{ID: bobID, Code: "STU-002", Name: "Bob Kalala"},
			}, students)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRosterRepository_ActiveStudents_storageError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRosterRepository(db)

	mock.ExpectQuery(`FROM student_enrollments`).WillReturnError(errors.New("timeout"))
	_, err := repo.ActiveStudents(context.Background(), tenantID, classID, day)
	assert.True(t, core.IsStorageError(err), "ActiveStudents() error = %v, want a storage error", err)
}

func TestRosterRepository_GetClass(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRosterRepository(db)
	cols := []string{"id", "class_name", "section"}

	mock.ExpectQuery(`SELECT id, class_name, section FROM classes WHERE .*id = \$1 AND tenant_id = \$2`).
		WithArgs(classID, tenantID).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(classID, "Grade 5", "A"))
	class, err := repo.GetClass(context.Background(), tenantID, classID)
	require.NoError(t, err)
	assert.Equal(t, attendance.Class{ID: classID, Name: "Grade 5", Section: null.StringFrom("A")}, class)

	mock.ExpectQuery(`FROM classes`).WillReturnRows(sqlmock.NewRows(cols))
	_, err = repo.GetClass(context.Background(), tenantID, "unknown")
	assert.Equal(t, attendance.ErrClassNotFound, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
