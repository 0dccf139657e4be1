package attendance

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core"
)

var ErrNotFound = errors.New("attendance record not found")

// UnknownReferenceError reports a mark naming a student ("student_id") or class ("class_id")
// the tenant does not have.
func UnknownReferenceError(field string) error {
	return core.NewValidationError(nil, core.FieldError{Field: field, Error: strings.TrimSuffix(field, "_id") + " not found"})
}

// EmptyRosterError is returned by a bulk mark when the class has no active students on the date.
// Nothing is written; callers report it as information rather than a failure.
type EmptyRosterError struct {
	ClassID string
	Date    core.Date
}

func (err *EmptyRosterError) Error() string {
	return fmt.Sprintf("no students found in class %s on %s", err.ClassID, err.Date)
}

// IsEmptyRoster reports whether any error in err's chain is an *EmptyRosterError.
func IsEmptyRoster(err error) bool {
	var erErr *EmptyRosterError
	return errors.As(err, &erErr)
}
