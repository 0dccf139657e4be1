package attendance

import (
	"context"
	"sort"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-attendance/core"
)

const clockLayout = "15:04:05"

// Recorder writes attendance events. Every write replaces the stored values of its key:
// concurrent writers of the same key race and the last write wins.
type Recorder interface {
	Mark(ctx context.Context, tenantID string, in MarkInput) (Event, error)
	// MarkBulk marks students of one class against its active roster in a single atomic write
	// and returns the number of events written.
	MarkBulk(ctx context.Context, tenantID string, in BulkMarkInput) (int, error)
	Query(ctx context.Context, tenantID string, filter QueryFilter) ([]Event, error)
	Get(ctx context.Context, tenantID, id string) (Event, error)
	History(ctx context.Context, tenantID, id string) ([]Amendment, error)
}

type recorder struct {
	repo       Repository
	roster     Roster
	validate   *validator.Validate
	translator ut.Translator
	opts       Options
}

var _ Recorder = (*recorder)(nil)

func NewRecorder(repo Repository, roster Roster, validate *validator.Validate, translator ut.Translator, opts Options) Recorder {
	return &recorder{
		repo:       repo,
		roster:     roster,
		validate:   validate,
		translator: translator,
		opts:       opts.withDefaults(),
	}
}

func (r *recorder) Mark(ctx context.Context, tenantID string, in MarkInput) (Event, error) {
	if err := checkTenant(tenantID); err != nil {
		return Event{}, err
	}
	in.StudentID = core.CleanString(in.StudentID)
	in.ClassID = core.CleanString(in.ClassID)
	if err := core.ValidateStruct(r.validate, r.translator, in); err != nil {
		return Event{}, err
	}

	now := r.opts.now()
	evt := newEvent(tenantID, in.StudentID, in.ClassID, in.Date, in.Status, in.MarkedBy, now)
	evt.TimeIn = stampTimeIn(in.Status, in.TimeIn, now)
	if in.TimeOut != "" {
		evt.TimeOut = null.StringFrom(core.NormalizeClock(in.TimeOut))
	}
	if notes := core.CleanString(in.Notes); notes != "" {
		evt.Notes = null.StringFrom(notes)
	}

	saved, err := r.repo.UpsertEvents(ctx, []Event{evt})
	if err != nil {
		return Event{}, errors.Wrapf(err, "marking student %s on %s (class %q)", in.StudentID, in.Date, in.ClassID)
	}
	if len(saved) == 0 {
		return Event{}, errors.Errorf("marking student %s on %s: nothing stored", in.StudentID, in.Date)
	}
	return saved[0], nil
}

func (r *recorder) MarkBulk(ctx context.Context, tenantID string, in BulkMarkInput) (int, error) {
	if err := checkTenant(tenantID); err != nil {
		return 0, err
	}
	in.ClassID = core.CleanString(in.ClassID)
	if err := core.ValidateStruct(r.validate, r.translator, in); err != nil {
		return 0, err
	}
	if len(in.Statuses) == 0 && in.MarkRemainingAs == "" {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "statuses", Error: "no attendance marks supplied"})
	}
	var flds []core.FieldError
	for studentID, status := range in.Statuses {
		if !status.IsValid() {
			flds = append(flds, statusFieldError(statusesField(studentID), status))
		}
	}
	if len(flds) > 0 {
		return 0, core.NewValidationError(nil, sortFieldErrors(flds)...)
	}

	roster, err := r.roster.ActiveStudents(ctx, tenantID, in.ClassID, in.Date)
	if err != nil {
		return 0, errors.Wrapf(err, "resolving roster of class %s on %s", in.ClassID, in.Date)
	}
	if len(roster) == 0 {
		return 0, &EmptyRosterError{ClassID: in.ClassID, Date: in.Date}
	}

	enrolled := make(map[string]bool, len(roster))
	for _, s := range roster {
		enrolled[s.ID] = true
	}
	for studentID := range in.Statuses {
		if !enrolled[studentID] {
			flds = append(flds, core.FieldError{
				Field: statusesField(studentID),
				Error: "student is not actively enrolled in this class",
			})
		}
	}
	if len(flds) > 0 {
		return 0, core.NewValidationError(nil, sortFieldErrors(flds)...)
	}

	now := r.opts.now()
	events := make([]Event, 0, len(roster))
	for _, s := range roster {
		status, ok := in.Statuses[s.ID]
		if !ok {
			if in.MarkRemainingAs == "" {
				continue
			}
			status = in.MarkRemainingAs
		}
		evt := newEvent(tenantID, s.ID, in.ClassID, in.Date, status, in.MarkedBy, now)
		evt.TimeIn = stampTimeIn(status, "", now)
		events = append(events, evt)
	}

	saved, err := r.repo.UpsertEvents(ctx, events)
	if err != nil {
		return 0, errors.Wrapf(err, "bulk marking %d students of class %s on %s", len(events), in.ClassID, in.Date)
	}
	return len(saved), nil
}

func (r *recorder) Query(ctx context.Context, tenantID string, filter QueryFilter) ([]Event, error) {
	if err := checkTenant(tenantID); err != nil {
		return nil, err
	}
	filter.TenantID = tenantID
	filter.Search = core.CleanString(filter.Search)
	if !filter.Range.Start.IsZero() || !filter.Range.End.IsZero() {
		if err := filter.Range.Validate(r.opts.MaxReportDays); err != nil {
			return nil, err
		}
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, core.NewValidationError(nil, statusFieldError("status", filter.Status))
	}

	events, err := r.repo.QueryEvents(ctx, filter)
	return events, errors.Wrap(err, "querying attendance")
}

func (r *recorder) Get(ctx context.Context, tenantID, id string) (Event, error) {
	if err := checkTenant(tenantID); err != nil {
		return Event{}, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return Event{}, ErrNotFound
	}
	evt, err := r.repo.GetEvent(ctx, tenantID, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Event{}, ErrNotFound
		}
		return Event{}, errors.Wrapf(err, "getting attendance %s", id)
	}
	return evt, nil
}

func (r *recorder) History(ctx context.Context, tenantID, id string) ([]Amendment, error) {
	if _, err := r.Get(ctx, tenantID, id); err != nil {
		return nil, err
	}
	amendments, err := r.repo.QueryAmendments(ctx, tenantID, id)
	return amendments, errors.Wrapf(err, "querying amendments of attendance %s", id)
}

func newEvent(tenantID, studentID, classID string, date core.Date, status Status, markedBy string, now time.Time) Event {
	evt := Event{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		StudentID: studentID,
		Date:      date,
		Status:    status,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if classID != "" {
		evt.ClassID = null.StringFrom(classID)
	}
	if markedBy != "" {
		evt.MarkedBy = null.StringFrom(markedBy)
	}
	return evt
}

// stampTimeIn returns the given time in, or the current wall clock time for statuses
// that imply presence when none was given.
func stampTimeIn(status Status, timeIn string, now time.Time) null.String {
	if timeIn != "" {
		return null.StringFrom(core.NormalizeClock(timeIn))
	}
	if status.Attended() {
		return null.StringFrom(now.Format(clockLayout))
	}
	return null.String{}
}

func statusesField(studentID string) string {
	return "statuses[" + studentID + "]"
}

func sortFieldErrors(flds []core.FieldError) []core.FieldError {
	sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
	return flds
}
