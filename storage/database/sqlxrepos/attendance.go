package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
)

const (
	attendanceTable = "student_attendance"
	amendmentTable  = "attendance_amendments"

	upsertSuffix = `ON CONFLICT (tenant_id, student_id, attendance_date, (COALESCE(class_id, ''))) DO UPDATE SET ` +
		`status = EXCLUDED.status, time_in = EXCLUDED.time_in, time_out = EXCLUDED.time_out, ` +
		`notes = EXCLUDED.notes, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at ` +
		`RETURNING id`
)

var (
	eventColumns = []string{
		"id", "tenant_id", "student_id", "class_id", "attendance_date", "status",
		"time_in", "time_out", "notes", "marked_by", "created_at", "updated_at",
	}
	// TIME columns are read back as HH:MM:SS text
	eventSelectColumns = []string{
		"a.id", "a.tenant_id", "a.student_id", "a.class_id", "a.attendance_date", "a.status",
		"a.time_in::text AS time_in", "a.time_out::text AS time_out", "a.notes", "a.marked_by",
		"a.created_at", "a.updated_at",
	}
	joinedColumns = []string{
		"s.student_code",
		"TRIM(s.first_name || ' ' || s.last_name) AS student_name",
		"c.class_name",
		"c.section",
	}
	amendmentColumns = []string{
		"id", "event_id", "tenant_id", "old_status", "new_status",
		"old_time_in", "new_time_in", "old_time_out", "new_time_out",
		"old_notes", "new_notes", "amended_by", "amended_at",
	}
	orderingColumns = map[string]string{
		"attendance_date": "a.attendance_date",
		"created_at":      "a.created_at",
		"updated_at":      "a.updated_at",
		"status":          "a.status",
		"student_name":    "student_name",
	}
)

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) selectEvents() sq.SelectBuilder {
	return psql.Select(append(append([]string{}, eventSelectColumns...), joinedColumns...)...).
		From(attendanceTable + " a").
		Join("students s ON s.id = a.student_id").
		LeftJoin("classes c ON c.id = a.class_id")
}

// keyPredicate matches the stored event sharing the key of evt.
func keyPredicate(evt attendance.Event) sq.Sqlizer {
	return sq.And{
		sq.Eq{"tenant_id": evt.TenantID, "student_id": evt.StudentID, "attendance_date": evt.Date},
		sq.Expr("COALESCE(class_id, '') = ?", evt.ClassID.String),
	}
}

func (repo *attendanceRepository) UpsertEvents(ctx context.Context, events []attendance.Event) (saved []attendance.Event, err error) {
	if len(events) == 0 {
		return []attendance.Event{}, nil
	}
	op := fmt.Sprintf("upserting %d attendance events of tenant %s", len(events), events[0].TenantID)

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, core.NewStorageError(op, errors.Wrap(err, "beginning transaction"))
	}
	defer rollback(tx, &err)

	// lock the rows about to be replaced
	keys := make(sq.Or, 0, len(events))
	for _, evt := range events {
		keys = append(keys, keyPredicate(evt))
	}
	lockQuery, args, err := psql.Select(
		"id", "tenant_id", "student_id", "class_id", "attendance_date", "status",
		"time_in::text AS time_in", "time_out::text AS time_out", "notes", "marked_by", "created_at", "updated_at",
	).From(attendanceTable).Where(keys).Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return nil, core.NewStorageError(op, errors.Wrap(err, "building lock query"))
	}
	var existing []attendance.Event
	if err = tx.SelectContext(ctx, &existing, lockQuery, args...); err != nil {
		return nil, core.NewStorageError(op, errors.Wrap(err, "locking existing events"))
	}

	insert := psql.Insert(attendanceTable).Columns(eventColumns...)
	for _, evt := range events {
		insert = insert.Values(
			evt.ID, evt.TenantID, evt.StudentID, evt.ClassID, evt.Date, string(evt.Status),
			evt.TimeIn, evt.TimeOut, evt.Notes, evt.MarkedBy, evt.CreatedAt, evt.UpdatedAt,
		)
	}
	insertQuery, args, err := insert.Suffix(upsertSuffix).ToSql()
	if err != nil {
		return nil, core.NewStorageError(op, errors.Wrap(err, "building upsert"))
	}
	var ids []string
	if err = tx.SelectContext(ctx, &ids, insertQuery, args...); err != nil {
		if refErr := referenceError(err); refErr != nil {
			return nil, refErr
		}
		return nil, core.NewStorageError(op, errors.Wrap(err, "upserting events"))
	}

	if err = repo.insertAmendments(ctx, tx, existing, events); err != nil {
		return nil, core.NewStorageError(op, err)
	}

	query, args, err := repo.selectEvents().Where(sq.Eq{"a.id": ids}).ToSql()
	if err != nil {
		return nil, core.NewStorageError(op, errors.Wrap(err, "building select"))
	}
	var stored []attendance.Event
	if err = tx.SelectContext(ctx, &stored, query, args...); err != nil {
		return nil, core.NewStorageError(op, errors.Wrap(err, "reading back events"))
	}

	if err = tx.Commit(); err != nil {
		return nil, core.NewStorageError(op, errors.Wrap(err, "committing"))
	}
	return inInputOrder(events, stored), nil
}

func (repo *attendanceRepository) insertAmendments(ctx context.Context, tx *sqlx.Tx, existing, events []attendance.Event) error {
	byKey := make(map[attendance.Key]attendance.Event, len(events))
	for _, evt := range events {
		byKey[evt.Key()] = evt
	}

	insert := psql.Insert(amendmentTable).Columns(amendmentColumns...)
	var count int
	for _, prev := range existing {
		next, ok := byKey[prev.Key()]
		if !ok {
			continue
		}
		a, changed := attendance.NewAmendment(prev, next)
		if !changed {
			continue
		}
		insert = insert.Values(
			uuid.New().String(), a.EventID, a.TenantID, string(a.OldStatus), string(a.NewStatus),
			a.OldTimeIn, a.NewTimeIn, a.OldTimeOut, a.NewTimeOut,
			a.OldNotes, a.NewNotes, a.AmendedBy, a.AmendedAt,
		)
		count++
	}
	if count == 0 {
		return nil
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return errors.Wrap(err, "building amendments insert")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "inserting amendments")
	}
	return nil
}

// inInputOrder orders stored like the events that were written.
func inInputOrder(events, stored []attendance.Event) []attendance.Event {
	byKey := make(map[attendance.Key]attendance.Event, len(stored))
	for _, evt := range stored {
		byKey[evt.Key()] = evt
	}
	ordered := make([]attendance.Event, 0, len(stored))
	for _, evt := range events {
		if s, ok := byKey[evt.Key()]; ok {
			ordered = append(ordered, s)
		}
	}
	return ordered
}

func (repo *attendanceRepository) QueryEvents(ctx context.Context, filter attendance.QueryFilter) ([]attendance.Event, error) {
	q := repo.selectEvents().Where(sq.Eq{"a.tenant_id": filter.TenantID})
	if !filter.Date.IsZero() {
		q = q.Where(sq.Eq{"a.attendance_date": filter.Date})
	}
	if !filter.Range.Start.IsZero() {
		q = q.Where(sq.GtOrEq{"a.attendance_date": filter.Range.Start})
	}
	if !filter.Range.End.IsZero() {
		q = q.Where(sq.LtOrEq{"a.attendance_date": filter.Range.End})
	}
	if filter.ClassID != "" {
		q = q.Where(sq.Eq{"a.class_id": filter.ClassID})
	}
	if filter.StudentID != "" {
		q = q.Where(sq.Eq{"a.student_id": filter.StudentID})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"a.status": string(filter.Status)})
	}
	if filter.Search != "" {
		val := contains(filter.Search)
		q = q.Where(
			"(s.student_code ILIKE ? OR s.first_name ILIKE ? OR s.last_name ILIKE ? OR (s.first_name || ' ' || s.last_name) ILIKE ?)",
			val, val, val, val,
		)
	}

	if len(filter.Ordering) == 0 {
		q = q.OrderBy("a.attendance_date DESC", "a.created_at DESC")
	} else {
		for _, ord := range filter.Ordering {
			col, ok := orderingColumns[ord.Field]
			if !ok {
				return nil, core.NewValidationError(nil, core.FieldError{Field: "ordering", Error: "cannot order by " + ord.Field})
			}
			ord.Field = col
			q = q.OrderBy(ord.String())
		}
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, core.NewStorageError("querying attendance", errors.Wrap(err, "building query"))
	}
	events := make([]attendance.Event, 0)
	if err = repo.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, core.NewStorageError(fmt.Sprintf("querying attendance of tenant %s", filter.TenantID), err)
	}
	return events, nil
}

func (repo *attendanceRepository) GetEvent(ctx context.Context, tenantID, id string) (attendance.Event, error) {
	query, args, err := repo.selectEvents().Where(sq.Eq{"a.tenant_id": tenantID, "a.id": id}).ToSql()
	if err != nil {
		return attendance.Event{}, core.NewStorageError("getting attendance "+id, err)
	}
	var evt attendance.Event
	if err = repo.db.GetContext(ctx, &evt, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return attendance.Event{}, attendance.ErrNotFound
		}
		return attendance.Event{}, core.NewStorageError("getting attendance "+id, err)
	}
	return evt, nil
}

func (repo *attendanceRepository) QueryAmendments(ctx context.Context, tenantID, eventID string) ([]attendance.Amendment, error) {
	query, args, err := psql.Select(
		"id", "event_id", "tenant_id", "old_status", "new_status",
		"old_time_in::text AS old_time_in", "new_time_in::text AS new_time_in",
		"old_time_out::text AS old_time_out", "new_time_out::text AS new_time_out",
		"old_notes", "new_notes", "amended_by", "amended_at",
	).
		From(amendmentTable).
		Where(sq.Eq{"tenant_id": tenantID, "event_id": eventID}).
		OrderBy("amended_at DESC").
		ToSql()
	if err != nil {
		return nil, core.NewStorageError("querying amendments of "+eventID, err)
	}
	amendments := make([]attendance.Amendment, 0)
	if err = repo.db.SelectContext(ctx, &amendments, query, args...); err != nil {
		return nil, core.NewStorageError("querying amendments of "+eventID, err)
	}
	return amendments, nil
}

func (repo *attendanceRepository) ActiveTenants(ctx context.Context, since core.Date) ([]string, error) {
	query, args, err := psql.Select("DISTINCT tenant_id").
		From(attendanceTable).
		Where(sq.GtOrEq{"attendance_date": since}).
		OrderBy("tenant_id").
		ToSql()
	if err != nil {
		return nil, core.NewStorageError("listing active tenants", err)
	}
	tenants := make([]string, 0)
	if err = repo.db.SelectContext(ctx, &tenants, query, args...); err != nil {
		return nil, core.NewStorageError("listing active tenants", err)
	}
	return tenants, nil
}
