package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) UpsertEvents(ctx context.Context, events []attendance.Event) ([]attendance.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewStorageError("upserting attendance", err)
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// nothing is written unless every event references known rows
	for _, evt := range events {
		if err := repo.checkReferences(evt); err != nil {
			return nil, err
		}
	}

	saved := make([]attendance.Event, 0, len(events))
	for _, evt := range events {
		key := eventKey{tenantID: evt.TenantID, Key: evt.Key()}
		if id, ok := repo.db.eventKeys[key]; ok {
			stored := repo.db.events[id]
			if amendment, changed := attendance.NewAmendment(*stored, evt); changed {
				amendment.ID = uuid.New().String()
				repo.db.amendments = append(repo.db.amendments, amendment)
			}
			stored.Status = evt.Status
			stored.TimeIn = evt.TimeIn
			stored.TimeOut = evt.TimeOut
			stored.Notes = evt.Notes
			stored.MarkedBy = evt.MarkedBy
			stored.UpdatedAt = evt.UpdatedAt
			saved = append(saved, repo.join(*stored))
			continue
		}

		stored := evt
		repo.db.events[stored.ID] = &stored
		repo.db.eventKeys[key] = stored.ID
		saved = append(saved, repo.join(stored))
	}
	return saved, nil
}

func (repo *attendanceRepository) checkReferences(evt attendance.Event) error {
	if s, ok := repo.db.students[evt.StudentID]; !ok || s.tenantID != evt.TenantID {
		return attendance.UnknownReferenceError("student_id")
	}
	if evt.ClassID.Valid {
		if c, ok := repo.db.classes[evt.ClassID.String]; !ok || c.tenantID != evt.TenantID {
			return attendance.UnknownReferenceError("class_id")
		}
	}
	return nil
}

// join fills in the student and class display attributes.
func (repo *attendanceRepository) join(evt attendance.Event) attendance.Event {
	if s, ok := repo.db.students[evt.StudentID]; ok {
		evt.StudentCode = s.Code
		evt.StudentName = s.Name
	}
	if evt.ClassID.Valid {
		if c, ok := repo.db.classes[evt.ClassID.String]; ok {
			evt.ClassName.SetValid(c.Name)
			evt.Section = c.Section
		}
	}
	return evt
}

func (repo *attendanceRepository) matches(evt attendance.Event, filter attendance.QueryFilter) bool {
	if evt.TenantID != filter.TenantID {
		return false
	}
	if !filter.Date.IsZero() && !evt.Date.Equal(filter.Date) {
		return false
	}
	if !filter.Range.Start.IsZero() && evt.Date.Before(filter.Range.Start) {
		return false
	}
	if !filter.Range.End.IsZero() && evt.Date.After(filter.Range.End) {
		return false
	}
	if filter.ClassID != "" && evt.ClassID.String != filter.ClassID {
		return false
	}
	if filter.StudentID != "" && evt.StudentID != filter.StudentID {
		return false
	}
	if filter.Status != "" && evt.Status != filter.Status {
		return false
	}
	if filter.Search != "" && !containsFold(evt.StudentCode, filter.Search) && !containsFold(evt.StudentName, filter.Search) {
		return false
	}
	return true
}

func (repo *attendanceRepository) QueryEvents(ctx context.Context, filter attendance.QueryFilter) ([]attendance.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewStorageError("querying attendance", err)
	}

	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	events := make([]attendance.Event, 0)
	for _, stored := range repo.db.events {
		evt := repo.join(*stored)
		if repo.matches(evt, filter) {
			events = append(events, evt)
		}
	}

	ordering := filter.Ordering
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "attendance_date"}, {Field: "created_at"}}
	}
	sort.SliceStable(events, func(i, j int) bool {
		for _, ord := range ordering {
			if c := compareEvents(events[i], events[j], ord.Field); c != 0 {
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

func compareEvents(a, b attendance.Event, field string) int {
	switch field {
	case "attendance_date":
		return compareTimes(a.Date.Time().Unix(), b.Date.Time().Unix())
	case "created_at":
		return compareTimes(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	case "updated_at":
		return compareTimes(a.UpdatedAt.UnixNano(), b.UpdatedAt.UnixNano())
	case "status":
		return compareStrings(string(a.Status), string(b.Status))
	case "student_name":
		return compareStrings(a.StudentName, b.StudentName)
	}
	return 0
}

func compareTimes(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (repo *attendanceRepository) GetEvent(ctx context.Context, tenantID, id string) (attendance.Event, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Event{}, core.NewStorageError("getting attendance", err)
	}

	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if stored, ok := repo.db.events[id]; ok && stored.TenantID == tenantID {
		return repo.join(*stored), nil
	}
	return attendance.Event{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) QueryAmendments(ctx context.Context, tenantID, eventID string) ([]attendance.Amendment, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewStorageError("querying amendments", err)
	}

	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	amendments := make([]attendance.Amendment, 0)
	for i := len(repo.db.amendments) - 1; i >= 0; i-- { // newest first
		a := repo.db.amendments[i]
		if a.TenantID == tenantID && a.EventID == eventID {
			amendments = append(amendments, a)
		}
	}
	return amendments, nil
}

func (repo *attendanceRepository) ActiveTenants(ctx context.Context, since core.Date) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewStorageError("listing active tenants", err)
	}

	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	seen := make(map[string]bool)
	tenants := make([]string, 0)
	for _, evt := range repo.db.events {
		if !evt.Date.Before(since) && !seen[evt.TenantID] {
			seen[evt.TenantID] = true
			tenants = append(tenants, evt.TenantID)
		}
	}
	sort.Strings(tenants)
	return tenants, nil
}
