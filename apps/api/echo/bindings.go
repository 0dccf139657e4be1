package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
)

const (
	orderingParam = "ordering"
	allClasses    = "all"
)

// queryParams collects the field errors of query parameter parsing.
type queryParams struct {
	ctx  echo.Context
	errs []core.FieldError
}

func newQueryParams(ctx echo.Context) *queryParams {
	return &queryParams{ctx: ctx}
}

func (q *queryParams) string(name string) string {
	return core.CleanString(q.ctx.QueryParam(name))
}

func (q *queryParams) date(name string) core.Date {
	val := q.string(name)
	if val == "" {
		return core.Date{}
	}
	d, err := core.ParseDate(val)
	if err != nil {
		q.errs = append(q.errs, core.FieldError{Field: name, Error: "must be a date formatted as YYYY-MM-DD"})
	}
	return d
}

// classID treats "all" like no class filter.
func (q *queryParams) classID() string {
	val := q.string("class_id")
	if strings.EqualFold(val, allClasses) {
		return ""
	}
	return val
}

func (q *queryParams) status() attendance.Status {
	s := attendance.Status(strings.ToLower(q.string("status")))
	if s != "" && !s.IsValid() {
		q.errs = append(q.errs, core.FieldError{Field: "status", Error: "status must be one of: present, absent, late, excused"})
	}
	return s
}

// dateRange reads from and to. When both are missing it returns def.
func (q *queryParams) dateRange(def core.DateRange) core.DateRange {
	from, to := q.date("from"), q.date("to")
	switch {
	case from.IsZero() && to.IsZero():
		return def
	case from.IsZero():
		q.errs = append(q.errs, core.FieldError{Field: "from", Error: "from is required with to"})
	case to.IsZero():
		q.errs = append(q.errs, core.FieldError{Field: "to", Error: "to is required with from"})
	}
	return core.DateRange{Start: from, End: to}
}

func (q *queryParams) ordering(allowed ...string) []core.DBOrdering {
	ords, err := core.ParseOrderings(q.ctx.QueryParam(orderingParam), allowed...)
	if err != nil {
		if vErr, ok := err.(*core.ValidationError); ok {
			q.errs = append(q.errs, vErr.Fields...)
		}
	}
	return ords
}

func (q *queryParams) err() error {
	if len(q.errs) == 0 {
		return nil
	}
	return core.NewValidationError(nil, q.errs...)
}

// monthOf returns the calendar month holding d.
func monthOf(d core.Date) core.DateRange {
	t := d.Time()
	start := core.NewDate(t.Year(), t.Month(), 1)
	return core.DateRange{Start: start, End: core.DateOf(start.Time().AddDate(0, 1, -1))}
}

// queryFilter reads the event filter of the list endpoint.
func queryFilter(ctx echo.Context, tenantID string) (attendance.QueryFilter, error) {
	q := newQueryParams(ctx)
	filter := attendance.QueryFilter{
		TenantID:  tenantID,
		Date:      q.date("date"),
		Range:     q.dateRange(core.DateRange{}),
		ClassID:   q.classID(),
		StudentID: q.string("student_id"),
		Status:    q.status(),
		Search:    q.string("search"),
		Ordering:  q.ordering(attendance.OrderingFields...),
	}
	return filter, q.err()
}
