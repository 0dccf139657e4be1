// Package sqlxrepos implements the attendance stores on postgres with sqlx and squirrel.
package sqlxrepos

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core/attendance"
)

const foreignKeyViolation = "23503"

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

// contains returns a pattern matching values that contain s.
func contains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// rollback aborts tx unless it was committed, keeping err as the reported error.
func rollback(tx *sqlx.Tx, err *error) {
	if *err == nil {
		return
	}
	if rbErr := tx.Rollback(); rbErr != nil {
		*err = errors.Wrapf(*err, "rollback failed: %v", rbErr)
	}
}

// referenceError turns a foreign key violation of an attendance row into a validation error
// on the offending field. Other errors yield nil.
func referenceError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != foreignKeyViolation {
		return nil
	}
	if strings.Contains(pqErr.Constraint, "class_id") {
		return attendance.UnknownReferenceError("class_id")
	}
	return attendance.UnknownReferenceError("student_id")
}
