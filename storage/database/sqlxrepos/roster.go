package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
)

const activeStatus = "active"

type rosterRepository struct {
	db *sqlx.DB
}

var _ attendance.Roster = (*rosterRepository)(nil) // interface compliance check

// NewRosterRepository reads the roster from the enrollment tables.
func NewRosterRepository(db *sqlx.DB) attendance.Roster {
	return &rosterRepository{db: db}
}

func (repo *rosterRepository) ActiveStudents(ctx context.Context, tenantID, classID string, on core.Date) ([]attendance.Student, error) {
	q := psql.Select("s.id", "s.student_code", "TRIM(s.first_name || ' ' || s.last_name) AS student_name")
	if classID == "" {
		q = q.From("students s").
			Where(sq.Eq{"s.tenant_id": tenantID, "s.status": activeStatus})
	} else {
		q = q.Distinct().
			From("student_enrollments e").
			Join("students s ON s.id = e.student_id").
			Where(sq.Eq{
				"e.tenant_id":         tenantID,
				"e.class_id":          classID,
				"e.enrollment_status": activeStatus,
				"s.status":            activeStatus,
			}).
			Where(sq.LtOrEq{"e.enrolled_on": on}).
			Where(sq.Or{sq.Eq{"e.withdrawn_on": nil}, sq.Gt{"e.withdrawn_on": on}})
	}

	query, args, err := q.OrderBy("student_name", "s.id").ToSql()
	if err != nil {
		return nil, core.NewStorageError("building roster query", err)
	}
	students := make([]attendance.Student, 0)
	if err = repo.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, core.NewStorageError(fmt.Sprintf("listing students of class %q on %s", classID, on), err)
	}
	return students, nil
}

func (repo *rosterRepository) GetClass(ctx context.Context, tenantID, classID string) (attendance.Class, error) {
	query, args, err := psql.Select("id", "class_name", "section").
		From("classes").
		Where(sq.Eq{"tenant_id": tenantID, "id": classID}).
		ToSql()
	if err != nil {
		return attendance.Class{}, core.NewStorageError("building class query", err)
	}

	var class attendance.Class
	if err = repo.db.GetContext(ctx, &class, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return attendance.Class{}, attendance.ErrClassNotFound
		}
		return attendance.Class{}, core.NewStorageError("getting class "+classID, err)
	}
	return class, nil
}
